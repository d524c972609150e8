// Package report renders attempt history exports.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/quizzer/internal/model"
)

// Format is an export file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

const (
	attemptsSheet = "Attempts"
	answersSheet  = "Answers"
	timeLayout    = time.RFC3339
)

// ParseFormat maps a flag value to a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatXLSX:
		return f, nil
	case "":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported export format: %q", s)
}

// Build wraps attempt results in an export document.
func Build(results []model.AttemptResult, generatedAt time.Time) model.AttemptExport {
	if results == nil {
		results = []model.AttemptResult{}
	}
	return model.AttemptExport{
		GeneratedAt: generatedAt.UTC(),
		Attempts:    results,
	}
}

// Write renders export in the given format.
func Write(w io.Writer, format Format, export model.AttemptExport) error {
	switch format {
	case FormatXLSX:
		return WriteXLSX(w, export)
	case FormatJSON, "":
		return WriteJSON(w, export)
	}
	return fmt.Errorf("unsupported export format: %q", format)
}

// WriteJSON writes export as indented JSON followed by a newline.
func WriteJSON(w io.Writer, export model.AttemptExport) error {
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}

// WriteXLSX writes an "Attempts" sheet with one row per attempt and an
// "Answers" sheet with one row per recorded answer.
func WriteXLSX(w io.Writer, export model.AttemptExport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", attemptsSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(answersSheet); err != nil {
		return err
	}

	sw, err := f.NewStreamWriter(attemptsSheet)
	if err != nil {
		return fmt.Errorf("create stream writer: %w", err)
	}
	headers := []any{"Attempt ID", "Username", "Display Name", "Quiz", "Quiz Title", "Started", "Completed", "Correct", "Total", "Percent"}
	if err := sw.SetRow("A1", headers); err != nil {
		return fmt.Errorf("write headers: %w", err)
	}
	for i, r := range export.Attempts {
		completed := ""
		if r.CompletedAt != nil {
			completed = r.CompletedAt.UTC().Format(timeLayout)
		}
		row := []any{
			r.AttemptID,
			sanitizeForExcel(r.Username),
			sanitizeForExcel(r.DisplayName),
			sanitizeForExcel(r.QuizSlug),
			sanitizeForExcel(r.QuizTitle),
			r.StartedAt.UTC().Format(timeLayout),
			completed,
			r.Correct,
			r.TotalQuestions,
			r.Percent,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", attemptsSheet, err)
	}

	aw, err := f.NewStreamWriter(answersSheet)
	if err != nil {
		return fmt.Errorf("create stream writer: %w", err)
	}
	if err := aw.SetRow("A1", []any{"Attempt ID", "Question", "Selected", "Correct"}); err != nil {
		return fmt.Errorf("write headers: %w", err)
	}
	rowNum := 2
	for _, r := range export.Attempts {
		for _, a := range r.Answers {
			cell, _ := excelize.CoordinatesToCellName(1, rowNum)
			row := []any{r.AttemptID, sanitizeForExcel(a.Question), sanitizeForExcel(a.Selected), a.WasCorrect}
			if err := aw.SetRow(cell, row); err != nil {
				return fmt.Errorf("write answer row %d: %w", rowNum, err)
			}
			rowNum++
		}
	}
	if err := aw.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", answersSheet, err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// sanitizeForExcel escapes values that spreadsheet apps would run as formulas.
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}
