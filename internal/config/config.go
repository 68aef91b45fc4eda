// Package config loads and validates watcher configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	// Embedded zone data for minimal container images.
	_ "time/tzdata"

	"github.com/spf13/viper"

	"github.com/JakeFAU/boardwatch/internal/notify"
)

// Render drivers.
const (
	RenderChromedp = "chromedp"
	RenderStatic   = "static"
)

// Storage drivers.
const (
	StorageFile     = "file"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageGCS      = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Target    TargetConfig   `mapstructure:"target"`
	Keywords  []string       `mapstructure:"keywords"`
	Poll      PollConfig     `mapstructure:"poll"`
	Cycle     CycleConfig    `mapstructure:"cycle"`
	Timezone  string         `mapstructure:"timezone"`
	Locale    string         `mapstructure:"locale"`
	UserAgent string         `mapstructure:"user_agent"`
	Telegram  TelegramConfig `mapstructure:"telegram"`
	Render    RenderConfig   `mapstructure:"render"`
	Extract   ExtractConfig  `mapstructure:"extract"`
	Notify    NotifyConfig   `mapstructure:"notify"`
	PubSub    PubSubConfig   `mapstructure:"pubsub"`
	Storage   StorageConfig  `mapstructure:"storage"`
	Server    ServerConfig   `mapstructure:"server"`
	Logging   LoggingConfig  `mapstructure:"logging"`
}

// TargetConfig names the monitored board.
type TargetConfig struct {
	URL string `mapstructure:"url"`
}

// PollConfig controls the schedule.
type PollConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

// CycleConfig bounds a single cycle.
type CycleConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// TelegramConfig holds Bot API credentials.
type TelegramConfig struct {
	Token string `mapstructure:"token"`
	// ChatID is numeric or an @channel name.
	ChatID string `mapstructure:"chat_id"`
}

// RenderConfig configures the document renderer.
type RenderConfig struct {
	Driver                  string   `mapstructure:"driver"`
	AcceptLanguage          string   `mapstructure:"accept_language"`
	NavTimeoutSeconds       int      `mapstructure:"nav_timeout_seconds"`
	ContentTimeoutSeconds   int      `mapstructure:"content_timeout_seconds"`
	ChallengeMarker         string   `mapstructure:"challenge_marker"`
	ChallengeTimeoutSeconds int      `mapstructure:"challenge_timeout_seconds"`
	ChallengeGraceSeconds   int      `mapstructure:"challenge_grace_seconds"`
	QuietWindowMs           int      `mapstructure:"quiet_window_ms"`
	WaitSelectors           []string `mapstructure:"wait_selectors"`
	ExecPath                string   `mapstructure:"exec_path"`
	NoSandbox               bool     `mapstructure:"no_sandbox"`
}

// ExtractConfig tunes the strategy chain.
type ExtractConfig struct {
	MinCandidates int `mapstructure:"min_candidates"`
	MaxItems      int `mapstructure:"max_items"`
}

// NotifyConfig holds message templates and delivery options.
type NotifyConfig struct {
	DryRun          bool                   `mapstructure:"dry_run"`
	DefaultTag      string                 `mapstructure:"default_tag"`
	Rules           map[string]notify.Rule `mapstructure:"rules"`
	TagOnlyKeywords []string               `mapstructure:"tag_only_keywords"`
	RatePerSecond   float64                `mapstructure:"rate_per_second"`
}

// PubSubConfig enables the optional alert mirror.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// StorageConfig selects where the seen set lives.
type StorageConfig struct {
	Driver        string `mapstructure:"driver"`
	Path          string `mapstructure:"path"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	PostgresTable string `mapstructure:"postgres_table"`
	GCSBucket     string `mapstructure:"gcs_bucket"`
	GCSObject     string `mapstructure:"gcs_object"`
	StateKey      string `mapstructure:"state_key"`
}

// ServerConfig controls the optional HTTP surface.
type ServerConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Port        int    `mapstructure:"port"`
	FetchSecret string `mapstructure:"fetch_secret"`
}

// LoggingConfig toggles zap development features and the level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BOARDWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindAliases(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("target.url", "https://theqoo.net/bl")
	v.SetDefault("keywords", []string{"도둑들", "주한", "민재"})
	v.SetDefault("poll.interval_seconds", 300)
	v.SetDefault("cycle.timeout_seconds", 180)
	v.SetDefault("timezone", "Asia/Seoul")
	v.SetDefault("locale", "ko-KR")
	v.SetDefault("user_agent", "")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("render.driver", RenderChromedp)
	v.SetDefault("render.accept_language", "")
	v.SetDefault("render.nav_timeout_seconds", 45)
	v.SetDefault("render.content_timeout_seconds", 10)
	v.SetDefault("render.challenge_marker", "잠시만 기다리십시오")
	v.SetDefault("render.challenge_timeout_seconds", 15)
	v.SetDefault("render.challenge_grace_seconds", 3)
	v.SetDefault("render.quiet_window_ms", 500)
	v.SetDefault("render.wait_selectors", []string{"table.bd_lst", "td.title", ".bd_lst_wrp"})
	v.SetDefault("render.exec_path", "")
	v.SetDefault("render.no_sandbox", false)
	v.SetDefault("extract.min_candidates", 5)
	v.SetDefault("extract.max_items", 30)
	v.SetDefault("notify.dry_run", false)
	v.SetDefault("notify.default_tag", "🌰")
	v.SetDefault("notify.rules", map[string]any{
		"도둑들": map[string]any{"tag": "🐣", "include_link": false},
	})
	v.SetDefault("notify.tag_only_keywords", []string{})
	v.SetDefault("notify.rate_per_second", 1.0)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("storage.driver", StorageFile)
	v.SetDefault("storage.path", "seen.json")
	v.SetDefault("storage.sqlite_path", "boardwatch.db")
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.postgres_table", "boardwatch_state")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.gcs_object", "boardwatch/seen.json")
	v.SetDefault("storage.state_key", "default")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.fetch_secret", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")
}

// bindAliases accepts the conventional Telegram variable names as well.
func bindAliases(v *viper.Viper) error {
	if err := v.BindEnv("telegram.token", "BOARDWATCH_TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN"); err != nil {
		return fmt.Errorf("bind telegram.token: %w", err)
	}
	if err := v.BindEnv("telegram.chat_id", "BOARDWATCH_TELEGRAM_CHAT_ID", "TELEGRAM_CHAT_ID"); err != nil {
		return fmt.Errorf("bind telegram.chat_id: %w", err)
	}
	return nil
}

func (c *Config) normalize() {
	c.Keywords = splitList(c.Keywords)
	c.Render.WaitSelectors = splitList(c.Render.WaitSelectors)
	c.Notify.TagOnlyKeywords = splitList(c.Notify.TagOnlyKeywords)
	c.Render.Driver = strings.ToLower(strings.TrimSpace(c.Render.Driver))
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Telegram.ChatID = strings.TrimSpace(c.Telegram.ChatID)
}

// splitList flattens comma-separated entries and drops blanks.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, entry := range in {
		for _, part := range strings.Split(entry, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	u, err := url.Parse(c.Target.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("target.url must be an absolute http(s) URL, got %q", c.Target.URL)
	}
	if c.Poll.IntervalSeconds <= 0 {
		return fmt.Errorf("poll.interval_seconds must be > 0")
	}
	if c.Cycle.TimeoutSeconds <= 0 {
		return fmt.Errorf("cycle.timeout_seconds must be > 0")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	switch c.Render.Driver {
	case RenderChromedp, RenderStatic:
	default:
		return fmt.Errorf("render.driver must be %q or %q, got %q", RenderChromedp, RenderStatic, c.Render.Driver)
	}
	if c.Render.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("render.nav_timeout_seconds must be > 0")
	}
	if c.Extract.MinCandidates <= 0 || c.Extract.MaxItems <= 0 {
		return fmt.Errorf("extract.min_candidates and extract.max_items must be > 0")
	}
	if err := c.Storage.validate(); err != nil {
		return err
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.Topic == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic must be set together")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the server is enabled")
	}
	return nil
}

func (s StorageConfig) validate() error {
	switch s.Driver {
	case StorageFile:
		if s.Path == "" {
			return fmt.Errorf("storage.path is required for the file driver")
		}
	case StorageSQLite:
		if s.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite driver")
		}
	case StoragePostgres:
		if s.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required for the postgres driver")
		}
	case StorageGCS:
		if s.GCSBucket == "" || s.GCSObject == "" {
			return fmt.Errorf("storage.gcs_bucket and storage.gcs_object are required for the gcs driver")
		}
	default:
		return fmt.Errorf("storage.driver %q is not supported", s.Driver)
	}
	if s.Driver != StorageFile && s.StateKey == "" {
		return fmt.Errorf("storage.state_key is required for the %s driver", s.Driver)
	}
	return nil
}

// ValidateTelegram reports missing credentials for live delivery.
func (c Config) ValidateTelegram() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token (or TELEGRAM_BOT_TOKEN) is required unless notify.dry_run is set")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id (or TELEGRAM_CHAT_ID) is required unless notify.dry_run is set")
	}
	return nil
}

// PollInterval returns the requested interval; the scheduler applies the floor.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalSeconds) * time.Second
}

// CycleTimeout bounds one cycle.
func (c Config) CycleTimeout() time.Duration {
	return time.Duration(c.Cycle.TimeoutSeconds) * time.Second
}

// Location loads the configured timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	return loc, nil
}

// Seconds converts an integer seconds knob.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
