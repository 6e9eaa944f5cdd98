package main

import (
	"context"
	"flag"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/fundamenta/fundi/internal/orchestrator"
	"github.com/fundamenta/fundi/internal/scheduler"
	"github.com/fundamenta/fundi/internal/store"
)

// clearEnv blanks every variable the config reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"FUNDI_LOG_LEVEL", "FUNDAMENTA_STATE_DIR", "DATABASE_URL", "API_ADDR", "FUNDI_JWT_SECRET",
		"OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL", "GENAI_DEBUG",
		"HUGGINGFACE_API_KEY", "HUGGINGFACE_BASE_URL", "HUGGINGFACE_MODEL",
		"FUNDI_MAX_FAILURES", "FUNDI_COOLDOWN_MS", "FUNDI_FALLBACK_START_DELAY_MS", "FUNDI_PRIMARY_TIMEOUT_MS",
		"FUNDI_CLASSIFY_DELAY_MS", "FUNDI_EMOTION_DELAY_MS", "FUNDI_ALWAYS_RESET", "FUNDI_EMOTION_ANALYSIS",
		"FUNDI_STATS_CRON", "CRISIS_ALERT_TO",
		"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_FROM_NUMBER",
	} {
		t.Setenv(key, "")
	}
}

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("fundamenta", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestLoadEnvironmentConfigDefaults(t *testing.T) {
	clearEnv(t)
	config := loadEnvironmentConfig()

	if config.StateDir != DefaultStateDir {
		t.Errorf("Expected default state dir %q, got %q", DefaultStateDir, config.StateDir)
	}
	if config.StatsCron != scheduler.DefaultStatsCron {
		t.Errorf("Expected default stats cron %q, got %q", scheduler.DefaultStatsCron, config.StatsCron)
	}
	if config.MaxFailures != orchestrator.DefaultMaxFailures || config.Cooldown != orchestrator.DefaultCooldownPeriod {
		t.Errorf("Expected orchestrator defaults, got max=%d cooldown=%v", config.MaxFailures, config.Cooldown)
	}
	if config.FallbackStartDelay != orchestrator.DefaultFallbackStartDelay || config.PrimaryTimeout != orchestrator.DefaultPrimaryTimeout {
		t.Errorf("Unexpected timing defaults: %+v", config)
	}
	if config.AlwaysReset || !config.EmotionAnalysis {
		t.Errorf("Expected stale reset with emotion analysis on, got %+v", config)
	}
}

func TestLoadEnvironmentConfigOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("FUNDAMENTA_STATE_DIR", "/tmp/fundi-state")
	t.Setenv("FUNDI_MAX_FAILURES", "5")
	t.Setenv("FUNDI_COOLDOWN_MS", "30000")
	t.Setenv("FUNDI_FALLBACK_START_DELAY_MS", "4s")
	t.Setenv("FUNDI_PRIMARY_TIMEOUT_MS", "not-a-duration")
	t.Setenv("FUNDI_ALWAYS_RESET", "yes")
	t.Setenv("FUNDI_STATS_CRON", "0 * * * *")

	config := loadEnvironmentConfig()

	if config.StateDir != "/tmp/fundi-state" {
		t.Errorf("Expected custom state dir, got %q", config.StateDir)
	}
	if config.MaxFailures != 5 {
		t.Errorf("Expected 5 max failures, got %d", config.MaxFailures)
	}
	if config.Cooldown != 30*time.Second {
		t.Errorf("Expected 30s cooldown, got %v", config.Cooldown)
	}
	if config.FallbackStartDelay != 4*time.Second {
		t.Errorf("Expected 4s start delay, got %v", config.FallbackStartDelay)
	}
	if config.PrimaryTimeout != orchestrator.DefaultPrimaryTimeout {
		t.Errorf("Invalid value should keep the default, got %v", config.PrimaryTimeout)
	}
	if !config.AlwaysReset {
		t.Error("Expected always-reset policy")
	}
	if config.StatsCron != "0 * * * *" {
		t.Errorf("Expected custom cron, got %q", config.StatsCron)
	}
}

func TestParseCommandLineFlags(t *testing.T) {
	config := Config{StateDir: "/env/state", APIAddr: ":9000", StatsCron: scheduler.DefaultStatsCron}

	flags, err := parseCommandLineFlags(newFlagSet(), nil, config)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if flags.DSN != filepath.Join("/env/state", DefaultDBFileName) {
		t.Errorf("Expected SQLite default in state dir, got %q", flags.DSN)
	}
	if flags.APIAddr != ":9000" {
		t.Errorf("Expected env api addr, got %q", flags.APIAddr)
	}

	flags, err = parseCommandLineFlags(newFlagSet(), []string{"-state-dir", "/flag/state", "-api-addr", ":7000"}, config)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if flags.StateDir != "/flag/state" || flags.APIAddr != ":7000" {
		t.Errorf("Flags should override env, got %+v", flags)
	}
	if flags.DSN != filepath.Join("/flag/state", DefaultDBFileName) {
		t.Errorf("Default DSN should follow the flag state dir, got %q", flags.DSN)
	}

	flags, err = parseCommandLineFlags(newFlagSet(), []string{"-db-dsn", "postgres://u:p@localhost/fundi"}, config)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if store.DetectDSNType(flags.DSN) != store.DSNTypePostgres {
		t.Errorf("Expected Postgres DSN, got %q", flags.DSN)
	}

	if _, err := parseCommandLineFlags(newFlagSet(), []string{"-unknown"}, config); err == nil {
		t.Error("Expected error for unknown flag")
	}
}

func TestStoreDSN(t *testing.T) {
	tests := map[string]string{
		"memory":                  "",
		" MEMORY ":                "",
		"/var/lib/fundi/fundi.db": "/var/lib/fundi/fundi.db",
		"postgres://localhost/db": "postgres://localhost/db",
	}
	for in, want := range tests {
		if got := storeDSN(in); got != want {
			t.Errorf("storeDSN(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildOrchestratorWithoutOpenAIKey(t *testing.T) {
	clearEnv(t)
	flags := Flags{StateDir: t.TempDir(), Config: Config{
		MaxFailures: 3, Cooldown: time.Minute, FallbackStartDelay: time.Second,
		PrimaryTimeout: time.Second, ClassifyDelay: time.Second, EmotionDelay: time.Second,
	}}

	orch := buildOrchestrator(flags)
	st := orch.Status()
	if !st.ForcedFallback || st.State != orchestrator.StateForcedFallback {
		t.Errorf("Expected forced fallback without an OpenAI key, got %+v", st)
	}
	if st.Primary != "openai" || st.Secondary != "huggingface" {
		t.Errorf("Unexpected providers %q/%q", st.Primary, st.Secondary)
	}
	if records := statsSource(orch)(); len(records) != 0 {
		t.Errorf("Expected no stats before any call, got %+v", records)
	}
}

func TestBuildAlertsDisabled(t *testing.T) {
	clearEnv(t)
	backend := store.NewInMemoryStore()

	if a, s := buildAlerts(backend, ""); a != nil || s != nil {
		t.Error("Expected alerts disabled without recipients")
	}
	if a, s := buildAlerts(backend, "+15550001111"); a != nil || s != nil {
		t.Error("Expected alerts disabled without Twilio credentials")
	}

	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("TWILIO_AUTH_TOKEN", "token")
	t.Setenv("TWILIO_FROM_NUMBER", "+15550002222")
	if a, s := buildAlerts(backend, "+15550001111"); a == nil || s == nil {
		t.Error("Expected alerts enabled with recipients and credentials")
	}
}

func TestBuildAPIOptions(t *testing.T) {
	if opts := buildAPIOptions(Flags{}); len(opts) != 0 {
		t.Errorf("Expected no options, got %d", len(opts))
	}
	if opts := buildAPIOptions(Flags{APIAddr: ":8081", Config: Config{JWTSecret: "s"}}); len(opts) != 2 {
		t.Errorf("Expected 2 options, got %d", len(opts))
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	clearEnv(t)
	flags := Flags{
		StateDir:  t.TempDir(),
		DSN:       InMemoryDSN,
		APIAddr:   "127.0.0.1:0",
		StatsCron: scheduler.DefaultStatsCron,
		Config: Config{
			MaxFailures: 3, Cooldown: time.Minute, FallbackStartDelay: time.Second,
			PrimaryTimeout: time.Second, ClassifyDelay: time.Second, EmotionDelay: time.Second,
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, flags) }()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}

func TestRunRejectsBadCron(t *testing.T) {
	clearEnv(t)
	flags := Flags{StateDir: t.TempDir(), DSN: InMemoryDSN, APIAddr: "127.0.0.1:0", StatsCron: "not a cron"}
	if err := run(context.Background(), flags); err == nil {
		t.Fatal("Expected error for invalid cron expression")
	}
}
