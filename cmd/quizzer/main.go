package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/quizzer/internal/cache"
	"github.com/pavelanni/quizzer/internal/console"
	"github.com/pavelanni/quizzer/internal/handler"
	appI18n "github.com/pavelanni/quizzer/internal/i18n"
	"github.com/pavelanni/quizzer/internal/quiz"
	"github.com/pavelanni/quizzer/internal/report"
	"github.com/pavelanni/quizzer/internal/seed"
	"github.com/pavelanni/quizzer/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "quizzer",
		Short:        "Interactive multiple-choice quizzes in the terminal",
		SilenceUsage: true,
	}

	play := playCmd()
	root.AddCommand(play, importCmd(), exportCmd(), serveCmd())

	// Make "play" the default when no subcommand is given.
	root.RunE = play.RunE

	// Register play flags on root so bare `quizzer -u alice` still works.
	root.Flags().AddFlagSet(play.Flags())

	return root
}

func addStoreFlags(cmd *cobra.Command, defaultLogLevel string) {
	f := cmd.Flags()
	f.String("db-driver", string(store.DriverSQLite), "Database driver (sqlite, postgres)")
	f.String("db", "quiz.db", "SQLite database path or Postgres DSN")
	f.String("log-level", defaultLogLevel, "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func playCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Take quizzes interactively",
		Args:  cobra.NoArgs,
		RunE:  runPlay,
	}
	f := cmd.Flags()
	f.StringP("username", "u", "", "Username (prompted when empty)")
	f.String("display-name", "", "Display name for a newly created user")
	f.StringP("lang", "l", "en", "UI language (en, ru)")
	f.Uint64("seed", 0, "Random seed for question order (0 = random)")
	f.IntP("limit", "n", 0, "Questions per quiz (0 = ask each time)")
	f.String("redis-addr", "", "Redis address for duplicate-answer protection (optional)")
	f.Duration("redis-ttl", cache.DefaultAnsweredTTL, "Lifetime of duplicate-answer markers in Redis")
	f.Bool("no-seed-data", false, "Do not load the demo quiz sets into an empty database")
	// Console output shares the terminal with the log, so only warnings show by default.
	addStoreFlags(cmd, "warn")
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import quiz sets from JSON files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	addStoreFlags(cmd, "info")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all attempts as JSON or XLSX",
		Args:  cobra.NoArgs,
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("format", string(report.FormatJSON), "Output format (json, xlsx)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addStoreFlags(cmd, "info")
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve quiz sets and attempt history as a read-only JSON API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("lang", "l", "en", "Default language for error messages (en, ru)")
	f.StringSlice("cors-origins", nil, "Allowed CORS origins (repeatable; empty disables CORS)")
	f.Bool("no-seed-data", false, "Do not load the demo quiz sets into an empty database")
	addStoreFlags(cmd, "info")
	return cmd
}

func setupLogging(v *viper.Viper) {
	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))

	if path := v.ConfigFileUsed(); path != "" {
		slog.Info("loaded config file", "path", path)
	}
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("QUIZZER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("quizzer")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/quizzer")
	v.AddConfigPath("/etc/quizzer")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "warning: error reading config file: %v\n", err)
		}
	}

	return v
}

// setup prepares config and logging shared by every command.
func setup(cmd *cobra.Command) *viper.Viper {
	v := viperForCmd(cmd)
	setupLogging(v)
	return v
}

func openStore(v *viper.Viper) (*store.Store, error) {
	driver, err := store.ParseDriver(v.GetString("db-driver"))
	if err != nil {
		return nil, err
	}
	db, err := store.New(driver, v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	slog.Debug("opened database", "driver", driver)
	return db, nil
}

// guardNamespace scopes Redis answer markers to one database. SQLite paths
// are made absolute so the same file maps to the same namespace from any
// working directory.
func guardNamespace(driver store.Driver, dsn string) string {
	if driver == store.DriverSQLite {
		path, _, _ := strings.Cut(dsn, "?")
		if path != ":memory:" {
			if abs, err := filepath.Abs(path); err == nil {
				dsn = abs
			}
		}
	}
	return cache.Namespace(string(driver), dsn)
}

func runPlay(cmd *cobra.Command, _ []string) error {
	v := setup(cmd)
	log := slog.Default().With("run_id", uuid.NewString())

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	if !v.GetBool("no-seed-data") {
		if err := seed.EnsureSeeded(db); err != nil {
			return fmt.Errorf("seed data: %w", err)
		}
	}

	var opts []quiz.Option
	if s := v.GetUint64("seed"); s != 0 {
		opts = append(opts, quiz.WithSeed(s))
	}
	if addr := v.GetString("redis-addr"); addr != "" {
		ns := guardNamespace(db.Driver(), v.GetString("db"))
		guard, err := cache.Dial(cmd.Context(), addr, ns, v.GetDuration("redis-ttl"))
		if err != nil {
			return err
		}
		defer guard.Close()
		opts = append(opts, quiz.WithAnswerGuard(guard))
		log.Info("answer guard enabled", "redis_addr", addr, "namespace", ns)
	}
	engine := quiz.NewEngine(db, opts...)

	session := console.New(engine, cmd.InOrStdin(), cmd.OutOrStdout(),
		console.WithUsername(v.GetString("username")),
		console.WithDisplayName(v.GetString("display-name")),
		console.WithLimit(v.GetInt("limit")),
		console.WithLogger(log),
	)
	ctx := appI18n.WithLocalizer(cmd.Context(), appI18n.NewLocalizer(lang))
	log.Info("session started", "lang", lang, "seed", v.GetUint64("seed"))
	return session.Run(ctx)
}

func runImport(cmd *cobra.Command, args []string) error {
	v := setup(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	total := 0
	for _, path := range args {
		n, err := seed.ImportFile(db, path)
		if err != nil {
			return err
		}
		total += n
	}
	slog.Info("import finished", "files", len(args), "sets", total)
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	v := setup(cmd)

	format, err := report.ParseFormat(v.GetString("format"))
	if err != nil {
		return err
	}

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := db.ExportAllAttempts()
	if err != nil {
		return fmt.Errorf("export attempts: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if err := report.Write(w, format, report.Build(results, time.Now())); err != nil {
		return err
	}
	slog.Info("exported attempts", "count", len(results), "format", format, "output", outPath)
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := setup(cmd)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	if !v.GetBool("no-seed-data") {
		if err := seed.EnsureSeeded(db); err != nil {
			return fmt.Errorf("seed data: %w", err)
		}
	}

	h := handler.New(db, quiz.NewEngine(db))

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	if origins := v.GetStringSlice("cors-origins"); len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Accept-Language", "Content-Type"},
			MaxAge:         300,
		}))
	}
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	users, err := db.UserCount()
	if err != nil {
		return err
	}
	sets, err := db.QuizSetCount()
	if err != nil {
		return err
	}

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"users", users,
		"quiz_sets", sets,
		"cors_origins", v.GetStringSlice("cors-origins"),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("server stopped")
	return nil
}
