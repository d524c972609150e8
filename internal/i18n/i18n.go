// Package i18n translates user-facing console and API messages.
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

type ctxKey struct{}

var (
	bundle      *i18n.Bundle
	defaultLang = "en"
)

// Init loads the translation bundle with lang as the default language.
func Init(lang string) error {
	tag, err := language.Parse(lang)
	if err != nil {
		return fmt.Errorf("parse language %q: %w", lang, err)
	}
	base, _ := tag.Base()
	if !slices.Contains(Languages(), base.String()) {
		return fmt.Errorf("unsupported language %q (available: %s)", lang, strings.Join(Languages(), ", "))
	}

	b := i18n.NewBundle(tag)
	b.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return fmt.Errorf("read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return fmt.Errorf("read locale file %s: %w", e.Name(), err)
		}
		if _, err := b.ParseMessageFileBytes(data, e.Name()); err != nil {
			return fmt.Errorf("parse locale file %s: %w", e.Name(), err)
		}
		slog.Debug("loaded locale file", "file", e.Name())
	}

	bundle = b
	defaultLang = base.String()
	return nil
}

// Languages lists the embedded locales, e.g. "en", "ru".
func Languages() []string {
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil
	}
	var langs []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".json"); ok {
			langs = append(langs, name)
		}
	}
	return langs
}

// NewLocalizer creates a localizer preferring langs in order. Each entry may
// be a tag or an Accept-Language header value.
func NewLocalizer(langs ...string) *i18n.Localizer {
	return i18n.NewLocalizer(bundle, langs...)
}

// WithLocalizer stores a localizer in the context.
func WithLocalizer(ctx context.Context, loc *i18n.Localizer) context.Context {
	return context.WithValue(ctx, ctxKey{}, loc)
}

func localizerFromCtx(ctx context.Context) *i18n.Localizer {
	if loc, ok := ctx.Value(ctxKey{}).(*i18n.Localizer); ok {
		return loc
	}
	return i18n.NewLocalizer(bundle, defaultLang)
}

// T translates a message by ID.
func T(ctx context.Context, msgID string) string {
	return localize(ctx, &i18n.LocalizeConfig{MessageID: msgID})
}

// Td translates a message by ID with template data.
func Td(ctx context.Context, msgID string, data map[string]any) string {
	return localize(ctx, &i18n.LocalizeConfig{
		MessageID:    msgID,
		TemplateData: data,
	})
}

// Tp translates a pluralized message by ID.
func Tp(ctx context.Context, msgID string, count int) string {
	return localize(ctx, &i18n.LocalizeConfig{
		MessageID:    msgID,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
}

// localize falls back to the message ID when no translation exists.
func localize(ctx context.Context, cfg *i18n.LocalizeConfig) string {
	s, err := localizerFromCtx(ctx).Localize(cfg)
	if err != nil {
		slog.Warn("missing translation", "id", cfg.MessageID, "error", err)
		return cfg.MessageID
	}
	return s
}
