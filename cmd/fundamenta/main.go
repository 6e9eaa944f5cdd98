package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/openai/openai-go"

	"github.com/fundamenta/fundi/internal/alert"
	"github.com/fundamenta/fundi/internal/api"
	"github.com/fundamenta/fundi/internal/classifier"
	"github.com/fundamenta/fundi/internal/fundi"
	"github.com/fundamenta/fundi/internal/genai"
	"github.com/fundamenta/fundi/internal/huggingface"
	"github.com/fundamenta/fundi/internal/lockfile"
	"github.com/fundamenta/fundi/internal/models"
	"github.com/fundamenta/fundi/internal/orchestrator"
	"github.com/fundamenta/fundi/internal/provider"
	"github.com/fundamenta/fundi/internal/scheduler"
	"github.com/fundamenta/fundi/internal/store"
	"github.com/fundamenta/fundi/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Fundi state data
	DefaultStateDir = "/var/lib/fundamenta"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "fundi.db"
	// InMemoryDSN selects the in-memory store
	InMemoryDSN = "memory"
	// DefaultOutboxPollInterval is how often pending crisis alerts are delivered
	DefaultOutboxPollInterval = 10 * time.Second
)

func main() {
	config := loadEnvironmentConfig()
	initializeLogger(config.LogLevel)

	flags, err := parseCommandLineFlags(flag.CommandLine, os.Args[1:], config)
	if err != nil {
		slog.Error("Failed to parse flags", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping Fundi", "state_dir", flags.StateDir, "dsn_set", flags.DSN != "", "api_addr", flags.APIAddr)
	if err := run(ctx, flags); err != nil {
		slog.Error("Fundi failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Fundi exited successfully")
}

// Config holds environment configuration
type Config struct {
	LogLevel    string
	StateDir    string
	DatabaseURL string
	APIAddr     string
	JWTSecret   string

	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
	GenAIDebug    bool
	HFKey         string
	HFBaseURL     string
	HFModel       string

	MaxFailures        int
	Cooldown           time.Duration
	FallbackStartDelay time.Duration
	PrimaryTimeout     time.Duration
	ClassifyDelay      time.Duration
	EmotionDelay       time.Duration
	AlwaysReset        bool
	EmotionAnalysis    bool

	StatsCron     string
	CrisisAlertTo string
}

// Flags holds the final configuration after command line overrides
type Flags struct {
	StateDir  string
	DSN       string
	APIAddr   string
	OpenAIKey string
	StatsCron string
	Config    Config
}

// initializeLogger installs a text handler at the configured level (debug by default)
func initializeLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil || level == "" {
		lvl = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
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
		LogLevel:    os.Getenv("FUNDI_LOG_LEVEL"),
		StateDir:    os.Getenv("FUNDAMENTA_STATE_DIR"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		APIAddr:     os.Getenv("API_ADDR"),
		JWTSecret:   os.Getenv("FUNDI_JWT_SECRET"),

		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   os.Getenv("OPENAI_MODEL"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		GenAIDebug:    util.ParseBoolEnv("GENAI_DEBUG", false),
		HFKey:         os.Getenv("HUGGINGFACE_API_KEY"),
		HFBaseURL:     os.Getenv("HUGGINGFACE_BASE_URL"),
		HFModel:       os.Getenv("HUGGINGFACE_MODEL"),

		MaxFailures:        util.ParseIntEnv("FUNDI_MAX_FAILURES", orchestrator.DefaultMaxFailures),
		Cooldown:           util.ParseMillisEnv("FUNDI_COOLDOWN_MS", orchestrator.DefaultCooldownPeriod),
		FallbackStartDelay: util.ParseMillisEnv("FUNDI_FALLBACK_START_DELAY_MS", orchestrator.DefaultFallbackStartDelay),
		PrimaryTimeout:     util.ParseMillisEnv("FUNDI_PRIMARY_TIMEOUT_MS", orchestrator.DefaultPrimaryTimeout),
		ClassifyDelay:      util.ParseMillisEnv("FUNDI_CLASSIFY_DELAY_MS", orchestrator.DefaultClassifyDelay),
		EmotionDelay:       util.ParseMillisEnv("FUNDI_EMOTION_DELAY_MS", orchestrator.DefaultEmotionDelay),
		AlwaysReset:        util.ParseBoolEnv("FUNDI_ALWAYS_RESET", false),
		EmotionAnalysis:    util.ParseBoolEnv("FUNDI_EMOTION_ANALYSIS", true),

		StatsCron:     os.Getenv("FUNDI_STATS_CRON"),
		CrisisAlertTo: os.Getenv("CRISIS_ALERT_TO"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No FUNDAMENTA_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.StatsCron == "" {
		config.StatsCron = scheduler.DefaultStatsCron
	}

	slog.Debug("environment variables loaded",
		"FUNDAMENTA_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"API_ADDR", config.APIAddr,
		"FUNDI_JWT_SECRET_SET", config.JWTSecret != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"HUGGINGFACE_API_KEY_SET", config.HFKey != "",
		"FUNDI_MAX_FAILURES", config.MaxFailures,
		"FUNDI_COOLDOWN_MS", config.Cooldown.Milliseconds(),
		"FUNDI_STATS_CRON", config.StatsCron,
		"CRISIS_ALERT_TO_SET", config.CrisisAlertTo != "")

	return config
}

// parseCommandLineFlags applies command line overrides on top of the environment
func parseCommandLineFlags(fs *flag.FlagSet, args []string, config Config) (Flags, error) {
	stateDir := fs.String("state-dir", config.StateDir, "state directory for Fundi data (overrides $FUNDAMENTA_STATE_DIR)")
	dsn := fs.String("db-dsn", config.DatabaseURL, "database DSN: Postgres URL, SQLite path or \"memory\" (overrides $DATABASE_URL)")
	apiAddr := fs.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)")
	openaiKey := fs.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)")
	statsCron := fs.String("stats-cron", config.StatsCron, "cron schedule for provider stats snapshots (overrides $FUNDI_STATS_CRON)")

	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	flags := Flags{
		StateDir:  *stateDir,
		DSN:       *dsn,
		APIAddr:   *apiAddr,
		OpenAIKey: *openaiKey,
		StatsCron: *statsCron,
		Config:    config,
	}
	// Without a DSN the transcript lives in SQLite inside the state directory.
	if flags.DSN == "" {
		flags.DSN = filepath.Join(flags.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", flags.DSN)
	}

	slog.Debug("flags parsed",
		"stateDir", flags.StateDir,
		"dsn_set", flags.DSN != "",
		"apiAddr", flags.APIAddr,
		"openaiKeySet", flags.OpenAIKey != "",
		"statsCron", flags.StatsCron)
	return flags, nil
}

// storeDSN maps the configured DSN to what store.Open expects.
func storeDSN(dsn string) string {
	if strings.EqualFold(strings.TrimSpace(dsn), InMemoryDSN) {
		return ""
	}
	return dsn
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var opts []genai.Option
	if flags.OpenAIKey != "" {
		opts = append(opts, genai.WithAPIKey(flags.OpenAIKey))
	}
	if flags.Config.OpenAIModel != "" {
		opts = append(opts, genai.WithModel(flags.Config.OpenAIModel))
	}
	if flags.Config.OpenAIBaseURL != "" {
		opts = append(opts, genai.WithBaseURL(flags.Config.OpenAIBaseURL))
	}
	if flags.Config.GenAIDebug {
		opts = append(opts, genai.WithDebugMode(true), genai.WithStateDir(flags.StateDir))
	}
	return opts
}

// buildHuggingFaceOptions constructs Hugging Face client options
func buildHuggingFaceOptions(flags Flags) []huggingface.Option {
	var opts []huggingface.Option
	if flags.Config.HFKey != "" {
		opts = append(opts, huggingface.WithAPIKey(flags.Config.HFKey))
	}
	if flags.Config.HFBaseURL != "" {
		opts = append(opts, huggingface.WithBaseURL(flags.Config.HFBaseURL))
	}
	if flags.Config.HFModel != "" {
		opts = append(opts, huggingface.WithGenerationModel(flags.Config.HFModel))
	}
	return opts
}

// buildOrchestratorOptions constructs failover configuration options
func buildOrchestratorOptions(config Config) []orchestrator.Option {
	return []orchestrator.Option{
		orchestrator.WithMaxFailures(config.MaxFailures),
		orchestrator.WithCooldownPeriod(config.Cooldown),
		orchestrator.WithFallbackStartDelay(config.FallbackStartDelay),
		orchestrator.WithPrimaryTimeout(config.PrimaryTimeout),
		orchestrator.WithClassifyDelay(config.ClassifyDelay),
		orchestrator.WithEmotionDelay(config.EmotionDelay),
		orchestrator.WithAlwaysReset(config.AlwaysReset),
	}
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var opts []api.Option
	if flags.APIAddr != "" {
		opts = append(opts, api.WithAddr(flags.APIAddr))
	}
	if flags.Config.JWTSecret != "" {
		opts = append(opts, api.WithJWTSecret(flags.Config.JWTSecret))
	}
	return opts
}

// unconfiguredCompleter stands in for the OpenAI client when no key is set.
type unconfiguredCompleter struct{}

func (unconfiguredCompleter) GenerateJSONWithMessages(context.Context, []openai.ChatCompletionMessageParamUnion) (string, error) {
	return "", genai.ErrAPIKeyMissing
}

// buildOrchestrator wires the primary and secondary providers. Without an OpenAI key the
// orchestrator starts in forced fallback.
func buildOrchestrator(flags Flags) *orchestrator.Orchestrator {
	var primary *provider.OpenAIProvider
	forced := false
	gaClient, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		slog.Warn("OpenAI client unavailable, serving from the secondary provider only", "error", err)
		primary = provider.NewOpenAIProvider(unconfiguredCompleter{})
		forced = true
	} else {
		primary = provider.NewOpenAIProvider(gaClient)
	}
	secondary := provider.NewHuggingFaceProvider(huggingface.NewClient(buildHuggingFaceOptions(flags)...))

	orch := orchestrator.New(primary, secondary, buildOrchestratorOptions(flags.Config)...)
	if forced {
		orch.SetForcedFallback(true)
	}
	return orch
}

// statsSource adapts orchestrator counters to stored snapshot records.
func statsSource(orch *orchestrator.Orchestrator) func() []models.ProviderStatsRecord {
	return func() []models.ProviderStatsRecord {
		stats := orch.Stats()
		records := make([]models.ProviderStatsRecord, 0, len(stats))
		for _, s := range stats {
			records = append(records, models.ProviderStatsRecord{
				Provider: s.Provider,
				Calls:    s.Calls,
				Failures: s.Failures,
				Wins:     s.Wins,
			})
		}
		return records
	}
}

// buildAlerts returns a crisis alerter and its outbox sender, or nils when alerts are not
// configured.
func buildAlerts(backend store.Backend, recipients string) (fundi.Alerter, *store.OutboxSender) {
	to := alert.ParseRecipients(recipients)
	if len(to) == 0 {
		slog.Debug("No CRISIS_ALERT_TO set, crisis alerts disabled")
		return nil, nil
	}
	sms, err := alert.NewTwilioClient()
	if err != nil {
		slog.Warn("Crisis alerts disabled: Twilio not configured", "error", err)
		return nil, nil
	}
	sender := store.NewOutboxSender(backend, alert.SendFunc(sms), DefaultOutboxPollInterval)
	return alert.NewNotifier(backend, to...), sender
}

// run wires every component and serves until ctx is cancelled.
func run(ctx context.Context, flags Flags) error {
	lock, err := lockfile.AcquireLock(flags.StateDir)
	if err != nil {
		return fmt.Errorf("acquire state lock: %w", err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			slog.Warn("Failed to release state lock", "error", err)
		}
	}()

	backend, err := store.Open(storeDSN(flags.DSN))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer backend.Close()

	orch := buildOrchestrator(flags)
	cls := classifier.New(orch)

	svcOpts := []fundi.Option{
		fundi.WithCrisisLog(backend),
		fundi.WithEmotionAnalysis(flags.Config.EmotionAnalysis),
	}
	alerter, sender := buildAlerts(backend, flags.Config.CrisisAlertTo)
	if alerter != nil {
		svcOpts = append(svcOpts, fundi.WithAlerter(alerter))
		if err := sender.RecoverStaleMessages(); err != nil {
			slog.Warn("Failed to recover stale crisis alerts", "error", err)
		}
		go sender.Run(ctx)
	}
	svc := fundi.NewService(orch, cls, svcOpts...)

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if err := sched.AddJob(flags.StatsCron, scheduler.StatsSnapshotJob(statsSource(orch), backend, time.Now)); err != nil {
		return fmt.Errorf("schedule stats snapshot: %w", err)
	}

	server := api.NewServer(svc, orch, backend, buildAPIOptions(flags)...)
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	// Final snapshot so counters since the last tick are not lost.
	scheduler.StatsSnapshotJob(statsSource(orch), backend, time.Now)()
	return nil
}
