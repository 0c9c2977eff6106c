package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/HabitAudit/internal/api"
	"github.com/BTreeMap/HabitAudit/internal/flow"
	"github.com/BTreeMap/HabitAudit/internal/genai"
	"github.com/BTreeMap/HabitAudit/internal/lockfile"
	"github.com/BTreeMap/HabitAudit/internal/store"
	"github.com/BTreeMap/HabitAudit/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for HabitAudit state data
	DefaultStateDir = "/var/lib/habitaudit"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "habitaudit.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	slog.Info("Bootstrapping HabitAudit with configured modules")
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr, "quota_limit", *flags.quotaLimit)

	if err := run(flags); err != nil {
		slog.Error("HabitAudit failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("HabitAudit exited successfully")
}

func run(flags Flags) error {
	// Guard the state directory so two instances never share one SQLite file.
	if store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		lock, err := lockfile.AcquireLock(*flags.stateDir)
		if err != nil {
			return err
		}
		defer lock.Release()
	}

	st, err := buildStore(flags)
	if err != nil {
		return err
	}
	defer st.Close()

	client, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		return err
	}

	orchestrator := flow.NewOrchestrator(st, client, buildFlowOptions(flags)...)
	server := api.NewServer(orchestrator, buildAPIOptions(flags)...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Reclaim abandoned sessions in the background.
	go func() {
		ticker := time.NewTicker(flow.DefaultIdleSessionTimeout / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := orchestrator.CleanupIdleSessions(flow.DefaultIdleSessionTimeout); err != nil {
					slog.Error("Idle session cleanup failed", "error", err)
				}
			}
		}
	}()

	return server.Run(ctx)
}

// Config holds environment configuration
type Config struct {
	DatabaseURL string
	StateDir    string
	OpenAIKey   string
	Model       string
	APIAddr     string
	QuotaLimit  int
	Debug       bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir   *string
	dbDSN      *string
	openaiKey  *string
	model      *string
	apiAddr    *string
	quotaLimit *int
}

// initializeLogger sets up structured logging. Debug level is opt-in via
// HABITAUDIT_DEBUG.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("HABITAUDIT_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("HABITAUDIT_STATE_DIR"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		Model:       os.Getenv("HABITAUDIT_MODEL"),
		APIAddr:     os.Getenv("API_ADDR"),
		QuotaLimit:  flow.DefaultMonthlyQuota,
	}

	if raw := os.Getenv("HABITAUDIT_MONTHLY_QUOTA"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			config.QuotaLimit = parsed
		} else {
			slog.Warn("Invalid HABITAUDIT_MONTHLY_QUOTA, using default", "value", raw, "default", config.QuotaLimit)
		}
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No HABITAUDIT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"HABITAUDIT_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"HABITAUDIT_MODEL", config.Model,
		"API_ADDR", config.APIAddr,
		"HABITAUDIT_MONTHLY_QUOTA", config.QuotaLimit)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:   flag.String("state-dir", config.StateDir, "state directory for HabitAudit data (overrides $HABITAUDIT_STATE_DIR)"),
		dbDSN:      flag.String("db-dsn", config.DatabaseURL, "database DSN, SQLite path or PostgreSQL URL (overrides $DATABASE_URL)"),
		openaiKey:  flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		model:      flag.String("model", config.Model, "chat completion model (overrides $HABITAUDIT_MODEL)"),
		apiAddr:    flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		quotaLimit: flag.Int("monthly-quota", config.QuotaLimit, "completed assessments per user per month, -1 for unlimited (overrides $HABITAUDIT_MONTHLY_QUOTA)"),
	}

	flag.Parse()

	// Follow an overridden state directory when the DSN still points at the
	// default SQLite location.
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// buildStore selects the storage backend from the DSN shape.
func buildStore(flags Flags) (store.Store, error) {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithDSN(*flags.dbDSN))
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.model != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.model))
	}
	return genaiOpts
}

// buildFlowOptions constructs orchestrator configuration options
func buildFlowOptions(flags Flags) []flow.Option {
	return []flow.Option{flow.WithQuotaLimit(*flags.quotaLimit)}
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}
