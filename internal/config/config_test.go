package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"GNASTY_SINKS",
		"GNASTY_SINK_SQLITE_PATH",
		"GNASTY_SINK_BATCH_SIZE",
		"GNASTY_SINK_FLUSH_MAX_MS",
		"GNASTY_SETTINGS_PATH",
		"GNASTY_SETTINGS_WATCH",
		"GNASTY_RULES_DELAY_MS",
		"GNASTY_TWITCH_ENABLED",
		"GNASTY_TWITCH_CHANNELS",
		"GNASTY_TWITCH_NICK",
		"GNASTY_TWITCH_TOKEN",
		"GNASTY_TWITCH_TOKEN_FILE",
		"GNASTY_TWITCH_TLS",
		"GNASTY_HTTP_ADDR",
		"GNASTY_HTTP_CORS_ORIGINS",
		"GNASTY_HTTP_RATE_RPS",
		"GNASTY_HTTP_RATE_BURST",
		"GNASTY_HTTP_METRICS",
		"GNASTY_HTTP_CHECK_RPS",
		"GNASTY_HTTP_CHECK_BURST",
		"GNASTY_HTTP_CHECK_MAX_BYTES",
		"GNASTY_DEFAULT_SOUND_URL",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	if !cfg.HasSink("sqlite") {
		t.Fatalf("expected sqlite sink by default, got %v", cfg.Sinks)
	}
	if cfg.Sink.SQLite.Path != "highlights.db" {
		t.Fatalf("unexpected sqlite path: %q", cfg.Sink.SQLite.Path)
	}
	if cfg.Batch() != 1 {
		t.Fatalf("expected default batch size 1, got %d", cfg.Batch())
	}
	if cfg.FlushInterval() != 0 {
		t.Fatalf("expected zero flush interval, got %s", cfg.FlushInterval())
	}
	if cfg.Settings.Path != "highlights.yaml" {
		t.Fatalf("unexpected settings path: %q", cfg.Settings.Path)
	}
	if !cfg.Settings.Watch {
		t.Fatalf("expected settings watch enabled by default")
	}
	if cfg.RulesDelay() != 100*time.Millisecond {
		t.Fatalf("expected 100ms rules delay, got %s", cfg.RulesDelay())
	}
	if cfg.Twitch.Enabled {
		t.Fatalf("expected twitch disabled without channels")
	}
	if !cfg.Twitch.TLS {
		t.Fatalf("expected twitch TLS enabled by default")
	}
	if cfg.HTTP.RateRPS != 20 || cfg.HTTP.RateBurst != 40 || !cfg.HTTP.Metrics {
		t.Fatalf("unexpected http defaults: %+v", cfg.HTTP)
	}
	if cfg.HTTP.CheckRPS != 5 || cfg.HTTP.CheckBurst != 10 || cfg.HTTP.CheckMaxBytes != 64<<10 {
		t.Fatalf("unexpected check defaults: %+v", cfg.HTTP)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GNASTY_SINK_SQLITE_PATH", "/data/elora.db")
	t.Setenv("GNASTY_SINK_BATCH_SIZE", "25")
	t.Setenv("GNASTY_SINK_FLUSH_MAX_MS", "250")
	t.Setenv("GNASTY_SETTINGS_PATH", "/etc/gnasty/highlights.yaml")
	t.Setenv("GNASTY_SETTINGS_WATCH", "false")
	t.Setenv("GNASTY_RULES_DELAY_MS", "0")
	t.Setenv("GNASTY_TWITCH_CHANNELS", "#Elora, gnasty elora")
	t.Setenv("GNASTY_TWITCH_NICK", "elora_bot")
	t.Setenv("GNASTY_TWITCH_TOKEN", "oauth:abc")
	t.Setenv("GNASTY_TWITCH_TLS", "false")
	t.Setenv("GNASTY_HTTP_ADDR", ":8765")
	t.Setenv("GNASTY_HTTP_CORS_ORIGINS", "https://a.test,https://b.test")
	t.Setenv("GNASTY_HTTP_RATE_RPS", "-3")
	t.Setenv("GNASTY_HTTP_CHECK_RPS", "2")
	t.Setenv("GNASTY_HTTP_CHECK_MAX_BYTES", "1024")
	t.Setenv("GNASTY_DEFAULT_SOUND_URL", "https://example.test/ping.wav")

	cfg := Load()
	if cfg.Sink.SQLite.Path != "/data/elora.db" {
		t.Fatalf("unexpected sqlite path: %q", cfg.Sink.SQLite.Path)
	}
	if cfg.Batch() != 25 {
		t.Fatalf("batch size mismatch: %d", cfg.Batch())
	}
	if cfg.FlushInterval() != 250*time.Millisecond {
		t.Fatalf("flush interval mismatch: %s", cfg.FlushInterval())
	}
	if cfg.Settings.Path != "/etc/gnasty/highlights.yaml" || cfg.Settings.Watch {
		t.Fatalf("unexpected settings config: %+v", cfg.Settings)
	}
	if cfg.RulesDelay() != 0 {
		t.Fatalf("expected synchronous rule notifications, got %s", cfg.RulesDelay())
	}
	if !cfg.Twitch.Enabled {
		t.Fatalf("expected twitch enabled")
	}
	if len(cfg.Twitch.Channels) != 2 || cfg.Twitch.Channels[0] != "elora" || cfg.Twitch.Channels[1] != "gnasty" {
		t.Fatalf("expected two normalized twitch channels, got %v", cfg.Twitch.Channels)
	}
	if cfg.Twitch.TLS {
		t.Fatalf("expected TLS disabled from env override")
	}
	if len(cfg.HTTP.CORSOrigins) != 2 {
		t.Fatalf("unexpected cors origins: %v", cfg.HTTP.CORSOrigins)
	}
	if cfg.HTTP.RateRPS != 20 {
		t.Fatalf("expected negative rate to fall back to default, got %d", cfg.HTTP.RateRPS)
	}
	if cfg.HTTP.CheckRPS != 2 || cfg.HTTP.CheckBurst != 10 || cfg.HTTP.CheckMaxBytes != 1024 {
		t.Fatalf("unexpected check limits: %+v", cfg.HTTP)
	}
	if cfg.Sound.DefaultURL != "https://example.test/ping.wav" {
		t.Fatalf("unexpected default sound: %q", cfg.Sound.DefaultURL)
	}
}

func TestRedactedSnapshot(t *testing.T) {
	cfg := Config{
		Sinks: []string{"sqlite"},
		Sink: SinkConfig{
			SQLite:     SQLiteConfig{Path: "/data/elora.db"},
			BatchSize:  10,
			FlushMaxMS: 500,
		},
		Settings: SettingsConfig{Path: "highlights.yaml", Watch: true, RulesDelayMS: 100},
		Twitch: TwitchConfig{
			Enabled:  true,
			Channels: []string{"elora"},
			Nick:     "elora_bot",
			Token:    "oauth:secret",
		},
	}

	summary := cfg.Summary()
	if summary.Twitch.Token != "***REDACTED*** (len=12)" {
		t.Fatalf("expected redacted token, got %q", summary.Twitch.Token)
	}
	if summary.Twitch.Channels != 1 {
		t.Fatalf("expected channel count, got %d", summary.Twitch.Channels)
	}
	redacted := cfg.Redacted()
	twitchRaw := redacted["twitch"].(map[string]any)
	if twitchRaw["token"].(string) != "***REDACTED*** (len=12)" {
		t.Fatalf("unexpected redacted token: %v", twitchRaw["token"])
	}
	if redacted["sink"].(map[string]any)["sqlite_path"].(string) != "/data/elora.db" {
		t.Fatalf("expected sqlite path preserved in redacted snapshot")
	}
	if redacted["settings"].(map[string]any)["path"].(string) != "highlights.yaml" {
		t.Fatalf("expected settings path preserved in redacted snapshot")
	}
	if len(cfg.SummaryJSON()) == 0 || len(cfg.RedactedJSON()) == 0 {
		t.Fatalf("expected JSON snapshots")
	}
}
