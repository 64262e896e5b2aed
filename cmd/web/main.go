package main

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/joho/godotenv"
	"github.com/myrjola/stride/internal/devicehandler"
	"github.com/myrjola/stride/internal/envstruct"
	"github.com/myrjola/stride/internal/errors"
	"github.com/myrjola/stride/internal/flightrecorder"
	"github.com/myrjola/stride/internal/logging"
	"github.com/myrjola/stride/internal/metrics"
	"github.com/myrjola/stride/internal/program"
	"github.com/myrjola/stride/internal/sqlite"
	"github.com/myrjola/stride/internal/workout"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/yuin/goldmark"
)

type application struct {
	logger         *slog.Logger
	deviceHandler  *devicehandler.DeviceHandler
	sessionManager *scs.SessionManager
	workoutService *workout.Service
	metrics        *metrics.Manager
	markdown       goldmark.Markdown
	// recorder is nil unless STRIDE_TRACES_DIR is set.
	recorder    *flightrecorder.Recorder
	corsOrigins []string
	exportDir   string
}

type config struct {
	// Addr is the address to listen on. It's possible to choose the address dynamically with localhost:0.
	Addr string `env:"STRIDE_ADDR" envDefault:"localhost:8081"`
	// SqliteURL is the URL to the SQLite database. You can use ":memory:" for an ethereal in-memory database.
	SqliteURL string `env:"STRIDE_SQLITE_URL" envDefault:"./stride.sqlite3"`
	// CORSOrigins is a comma-separated list of origins allowed to call the API from a browser, e.g. the PWA host.
	CORSOrigins string `env:"STRIDE_CORS_ORIGINS" envDefault:""`
	// CacheBytes sizes the generated workout cache.
	CacheBytes int `env:"STRIDE_CACHE_BYTES" envDefault:"67108864"`
	// SecureCookies must be disabled when serving plain HTTP outside localhost.
	SecureCookies bool `env:"STRIDE_SECURE_COOKIES" envDefault:"true"`
	// SessionLifetime is how long a device keeps its identity without visiting.
	SessionLifetime time.Duration `env:"STRIDE_SESSION_LIFETIME" envDefault:"8760h"`
	// MetricsAddr is the optional address of the Prometheus listener.
	MetricsAddr string `env:"STRIDE_METRICS_ADDR" envDefault:""`
	// TracesDir enables the flight recorder. Timed out requests dump an execution trace there.
	TracesDir string `env:"STRIDE_TRACES_DIR" envDefault:""`
	// ExportDir holds temporary SQLite exports. Empty means the OS temp directory.
	ExportDir string `env:"STRIDE_EXPORT_DIR" envDefault:""`
}

// logConfig is read before run so that startup failures are logged in the configured format.
type logConfig struct {
	JSON      bool   `env:"STRIDE_LOG_JSON" envDefault:"false"`
	Level     string `env:"STRIDE_LOG_LEVEL" envDefault:"DEBUG"`
	File      string `env:"STRIDE_LOG_FILE" envDefault:""`
	MaxSizeMB int    `env:"STRIDE_LOG_MAX_SIZE_MB" envDefault:"100"`
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var (
		cancel context.CancelFunc
		err    error
	)

	ctx, cancel = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err = envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}

	plan, err := program.LoadReference(program.WithLogger(logger))
	if err != nil {
		return errors.Wrap(err, "load program")
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "loaded program",
		slog.String("plan_id", plan.ID()), slog.Int("total_weeks", plan.TotalWeeks()))

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return errors.Wrap(err, "open db", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "failed to close db", errors.SlogError(closeErr))
		}
	}()
	logger.LogAttrs(ctx, slog.LevelInfo, "connected to db")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewDBStatsCollector(db.ReadWrite, "readwrite"),
		collectors.NewDBStatsCollector(db.ReadOnly, "readonly"),
	)
	m := metrics.NewManager("stride", "web", registry)

	sessionManager := initializeSessionManager(db, cfg)

	var recorder *flightrecorder.Recorder
	if cfg.TracesDir != "" {
		if recorder, err = flightrecorder.New(logger, flightrecorder.Config{
			Dir:      cfg.TracesDir,
			MinAge:   0,
			MaxBytes: 0,
			Cooldown: 0,
		}); err != nil {
			return errors.Wrap(err, "new flight recorder")
		}
		if err = recorder.Start(ctx); err != nil {
			return errors.Wrap(err, "start flight recorder")
		}
		defer recorder.Stop(ctx)
	}

	app := application{
		logger:         logger,
		deviceHandler:  devicehandler.New(logger, sessionManager, db, m),
		sessionManager: sessionManager,
		workoutService: workout.NewService(db, logger, plan, m, workout.WithCacheBytes(cfg.CacheBytes)),
		metrics:        m,
		markdown:       newMarkdown(),
		recorder:       recorder,
		corsOrigins:    splitList(cfg.CORSOrigins),
		exportDir:      cfg.ExportDir,
	}

	handler, err := app.routes()
	if err != nil {
		return errors.Wrap(err, "configure routes")
	}

	if err = app.configureAndStartServer(ctx, cfg.Addr, handler, cfg.MetricsAddr, registry); err != nil {
		return errors.Wrap(err, "start server")
	}
	return nil
}

func initializeSessionManager(dbs *sqlite.Database, cfg config) *scs.SessionManager {
	sessionManager := scs.New()
	sessionManager.Store = sqlite3store.NewWithCleanupInterval(dbs.ReadWrite, 24*time.Hour) //nolint:mnd // day
	sessionManager.Lifetime = cfg.SessionLifetime
	sessionManager.Cookie.Name = "stride_session"
	sessionManager.Cookie.Persist = true
	sessionManager.Cookie.Secure = cfg.SecureCookies
	sessionManager.Cookie.HttpOnly = true
	sessionManager.Cookie.SameSite = http.SameSiteLaxMode
	return sessionManager
}

func splitList(s string) []string {
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// newLogger builds the process logger from the environment. The returned function flushes and closes the log file.
func newLogger(lookupEnv func(string) (string, bool)) (*slog.Logger, func() error, error) {
	var cfg logConfig
	if err := envstruct.Populate(&cfg, lookupEnv); err != nil {
		return nil, nil, errors.Wrap(err, "populate log config")
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, nil, errors.Wrap(err, "parse log level", slog.String("level", cfg.Level))
	}
	handler, closer := logging.NewHandler(os.Stdout, logging.Config{
		JSON:      cfg.JSON,
		Level:     level,
		File:      cfg.File,
		MaxSizeMB: cfg.MaxSizeMB,
	})
	return slog.New(handler), closer.Close, nil
}

func main() {
	ctx := context.Background()

	dotenv, ok := os.LookupEnv("STRIDE_DOTENV")
	if !ok {
		dotenv = ".env"
	}
	// A missing .env is normal in production where the environment is set by the platform.
	dotenvErr := godotenv.Load(dotenv)
	if errors.Is(dotenvErr, fs.ErrNotExist) {
		dotenvErr = nil
	}

	logger, closeLog, err := newLogger(os.LookupEnv)
	if err != nil {
		slog.Default().LogAttrs(ctx, slog.LevelError, "failure configuring logger", errors.SlogError(err))
		os.Exit(1)
	}
	if dotenvErr != nil {
		logger.LogAttrs(ctx, slog.LevelWarn, "failed to load dotenv file",
			slog.String("file", dotenv), errors.SlogError(dotenvErr))
	}

	err = run(ctx, logger, os.LookupEnv)
	if err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
	}
	if closeErr := closeLog(); closeErr != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failed to close log file", errors.SlogError(closeErr))
	}
	if err != nil {
		os.Exit(1)
	}
}
