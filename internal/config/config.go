package config

import (
	"encoding/json"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Sinks    []string
	Sink     SinkConfig
	Settings SettingsConfig
	Twitch   TwitchConfig
	HTTP     HTTPConfig
	Sound    SoundConfig
}

type SinkConfig struct {
	SQLite     SQLiteConfig
	BatchSize  int
	FlushMaxMS int
}

type SQLiteConfig struct {
	Path string
}

type SettingsConfig struct {
	Path         string
	Watch        bool
	RulesDelayMS int
}

type TwitchConfig struct {
	Enabled   bool
	Channels  []string
	Nick      string
	Token     string
	TokenFile string
	TLS       bool
	// DebugDrops logs every ignored IRC line at debug level.
	DebugDrops bool
}

type HTTPConfig struct {
	Addr        string
	CORSOrigins []string
	RateRPS     int
	RateBurst   int
	Metrics     bool
	// /check runs the full rule sequence per request, so it gets its own
	// bucket and body cap.
	CheckRPS      int
	CheckBurst    int
	CheckMaxBytes int
}

type SoundConfig struct {
	DefaultURL string
}

const (
	defaultSettingsPath = "highlights.yaml"
	defaultSQLitePath   = "highlights.db"
	defaultBatchSize    = 1
	defaultFlushMS      = 0
	defaultRulesDelayMS = 100
	defaultRateRPS      = 20
	defaultRateBurst    = 40
	defaultCheckRPS     = 5
	defaultCheckBurst   = 10
	defaultCheckBytes   = 64 << 10
)

func Load() Config {
	cfg := Config{}

	raw := strings.TrimSpace(os.Getenv("GNASTY_SINKS"))
	if raw == "" {
		raw = "sqlite"
	}
	cfg.Sinks = splitList(raw)

	cfg.Sink.SQLite.Path = strings.TrimSpace(os.Getenv("GNASTY_SINK_SQLITE_PATH"))
	if cfg.Sink.SQLite.Path == "" {
		cfg.Sink.SQLite.Path = defaultSQLitePath
	}
	cfg.Sink.BatchSize = readInt("GNASTY_SINK_BATCH_SIZE", defaultBatchSize)
	cfg.Sink.FlushMaxMS = readInt("GNASTY_SINK_FLUSH_MAX_MS", defaultFlushMS)

	cfg.Settings.Path = strings.TrimSpace(os.Getenv("GNASTY_SETTINGS_PATH"))
	if cfg.Settings.Path == "" {
		cfg.Settings.Path = defaultSettingsPath
	}
	cfg.Settings.Watch = readBool("GNASTY_SETTINGS_WATCH", true)
	cfg.Settings.RulesDelayMS = readNonNegativeInt("GNASTY_RULES_DELAY_MS", defaultRulesDelayMS)

	cfg.Twitch.Channels = dedupe(splitList(os.Getenv("GNASTY_TWITCH_CHANNELS")))
	cfg.Twitch.Nick = strings.TrimSpace(os.Getenv("GNASTY_TWITCH_NICK"))
	cfg.Twitch.Token = strings.TrimSpace(os.Getenv("GNASTY_TWITCH_TOKEN"))
	cfg.Twitch.TokenFile = strings.TrimSpace(os.Getenv("GNASTY_TWITCH_TOKEN_FILE"))
	cfg.Twitch.TLS = readBool("GNASTY_TWITCH_TLS", true)
	cfg.Twitch.DebugDrops = readBool("GNASTY_TWITCH_DEBUG_DROPS", false)
	cfg.Twitch.Enabled = readBool("GNASTY_TWITCH_ENABLED", false) || len(cfg.Twitch.Channels) > 0

	cfg.HTTP.Addr = strings.TrimSpace(os.Getenv("GNASTY_HTTP_ADDR"))
	cfg.HTTP.CORSOrigins = splitList(os.Getenv("GNASTY_HTTP_CORS_ORIGINS"))
	cfg.HTTP.RateRPS = readInt("GNASTY_HTTP_RATE_RPS", defaultRateRPS)
	cfg.HTTP.RateBurst = readInt("GNASTY_HTTP_RATE_BURST", defaultRateBurst)
	cfg.HTTP.Metrics = readBool("GNASTY_HTTP_METRICS", true)
	cfg.HTTP.CheckRPS = readInt("GNASTY_HTTP_CHECK_RPS", defaultCheckRPS)
	cfg.HTTP.CheckBurst = readInt("GNASTY_HTTP_CHECK_BURST", defaultCheckBurst)
	cfg.HTTP.CheckMaxBytes = readInt("GNASTY_HTTP_CHECK_MAX_BYTES", defaultCheckBytes)

	cfg.Sound.DefaultURL = strings.TrimSpace(os.Getenv("GNASTY_DEFAULT_SOUND_URL"))

	return cfg
}

func splitList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		switch r {
		case ',', ';', ' ', '\t', '\n':
			return true
		}
		return false
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		key := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(v), "#"))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func readInt(name string, def int) int {
	n := readNonNegativeInt(name, def)
	if n <= 0 {
		return def
	}
	return n
}

func readNonNegativeInt(name string, def int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func readBool(name string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

type Summary struct {
	Sinks      []string        `json:"sinks"`
	SQLitePath string          `json:"sqlite_path"`
	BatchSize  int             `json:"batch"`
	FlushMaxMS int             `json:"flush_ms"`
	Settings   SettingsSummary `json:"settings"`
	Twitch     TwitchSummary   `json:"twitch"`
	HTTPAddr   string          `json:"http_addr,omitempty"`
}

type SettingsSummary struct {
	Path         string `json:"path"`
	Watch        bool   `json:"watch"`
	RulesDelayMS int    `json:"rules_delay_ms"`
}

type TwitchSummary struct {
	Enabled   bool   `json:"enabled"`
	Channels  int    `json:"channels"`
	Nick      string `json:"nick,omitempty"`
	Token     string `json:"token,omitempty"`
	TokenFile string `json:"token_file,omitempty"`
	TLS       bool   `json:"tls"`
}

func (c Config) Summary() Summary {
	return Summary{
		Sinks:      append([]string(nil), c.Sinks...),
		SQLitePath: c.Sink.SQLite.Path,
		BatchSize:  c.Sink.BatchSize,
		FlushMaxMS: c.Sink.FlushMaxMS,
		Settings: SettingsSummary{
			Path:         c.Settings.Path,
			Watch:        c.Settings.Watch,
			RulesDelayMS: c.Settings.RulesDelayMS,
		},
		Twitch: TwitchSummary{
			Enabled:   c.Twitch.Enabled,
			Channels:  len(c.Twitch.Channels),
			Nick:      c.Twitch.Nick,
			Token:     redactString(c.Twitch.Token),
			TokenFile: c.Twitch.TokenFile,
			TLS:       c.Twitch.TLS,
		},
		HTTPAddr: c.HTTP.Addr,
	}
}

func (c Config) Redacted() map[string]any {
	return map[string]any{
		"sinks": append([]string(nil), c.Sinks...),
		"sink": map[string]any{
			"sqlite_path": c.Sink.SQLite.Path,
			"batch_size":  c.Sink.BatchSize,
			"flush_ms":    c.Sink.FlushMaxMS,
		},
		"settings": map[string]any{
			"path":           c.Settings.Path,
			"watch":          c.Settings.Watch,
			"rules_delay_ms": c.Settings.RulesDelayMS,
		},
		"twitch": map[string]any{
			"enabled":    c.Twitch.Enabled,
			"channels":   append([]string(nil), c.Twitch.Channels...),
			"nick":       c.Twitch.Nick,
			"token":      redactString(c.Twitch.Token),
			"token_file": c.Twitch.TokenFile,
			"tls":        c.Twitch.TLS,
		},
		"http": map[string]any{
			"addr":         c.HTTP.Addr,
			"cors_origins": append([]string(nil), c.HTTP.CORSOrigins...),
			"rate_rps":     c.HTTP.RateRPS,
			"rate_burst":   c.HTTP.RateBurst,
			"metrics":      c.HTTP.Metrics,
			"check_rps":    c.HTTP.CheckRPS,
			"check_burst":  c.HTTP.CheckBurst,
			"check_bytes":  c.HTTP.CheckMaxBytes,
		},
		"sound": map[string]any{
			"default_url": c.Sound.DefaultURL,
		},
	}
}

func (c Config) RedactedJSON() []byte {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return data
}

func redactString(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return "***REDACTED*** (len=" + strconv.Itoa(len(value)) + ")"
}

func (c Config) HasSink(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, s := range c.Sinks {
		if strings.ToLower(strings.TrimSpace(s)) == name {
			return true
		}
	}
	return false
}

func (c Config) FlushInterval() time.Duration {
	if c.Sink.FlushMaxMS <= 0 {
		return 0
	}
	return time.Duration(c.Sink.FlushMaxMS) * time.Millisecond
}

func (c Config) Batch() int {
	if c.Sink.BatchSize <= 0 {
		return defaultBatchSize
	}
	return c.Sink.BatchSize
}

// RulesDelay is the coalescing window for rule list change notifications.
func (c Config) RulesDelay() time.Duration {
	if c.Settings.RulesDelayMS <= 0 {
		return 0
	}
	return time.Duration(c.Settings.RulesDelayMS) * time.Millisecond
}

func (c Config) SummaryJSON() []byte {
	summary := struct {
		Config Summary `json:"config_summary"`
	}{Config: c.Summary()}
	data, _ := json.Marshal(summary)
	return data
}
