// Package config loads and validates fetcher configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration, loaded once at startup and
// passed explicitly to the components that need it.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	SAM       SAMConfig       `mapstructure:"sam"`
	Output    OutputConfig    `mapstructure:"output"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Warehouse WarehouseConfig `mapstructure:"warehouse"`
	Email     EmailConfig     `mapstructure:"email"`
	Events    EventsConfig    `mapstructure:"events"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// SAMConfig governs access to the SAM.gov opportunities search API.
type SAMConfig struct {
	APIKey           string   `mapstructure:"api_key"`
	BaseURL          string   `mapstructure:"base_url"`
	OrgCodes         []string `mapstructure:"org_codes"`
	NoticeTypes      string   `mapstructure:"notice_types"`
	Limit            int      `mapstructure:"limit"`
	TimeoutSeconds   int      `mapstructure:"timeout_seconds"`
	MaxRetries       int      `mapstructure:"max_retries"`
	BackoffInitialMs int      `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int      `mapstructure:"backoff_max_ms"`
	PostedFrom       string   `mapstructure:"posted_from"`
	PostedTo         string   `mapstructure:"posted_to"`
}

// OutputConfig controls where the local JSON file is written.
type OutputConfig struct {
	Dir               string `mapstructure:"dir"`
	RemoveAfterUpload bool   `mapstructure:"remove_after_upload"`
}

// StorageConfig sets the object storage destination for the output file.
type StorageConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

// WarehouseConfig controls the Postgres warehouse sink.
type WarehouseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
	Table   string `mapstructure:"table"`
}

// EmailConfig holds Mailgun notification settings. An enabled flag with
// incomplete credentials disables sending rather than failing the run.
type EmailConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	MailgunDomain string `mapstructure:"mailgun_domain"`
	MailgunAPIKey string `mapstructure:"mailgun_api_key"`
	To            string `mapstructure:"to"`
}

// EventsConfig holds metadata for run-completion Pub/Sub events.
type EventsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// ScheduleConfig controls the serve command's cron trigger and admin port.
type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
	Port int    `mapstructure:"port"`
}

// configKeys lists every key Unmarshal reads. AutomaticEnv only resolves
// keys viper already knows about, so each key is bound explicitly; without
// this, a value supplied only through the environment (no file, no default)
// never reaches the Config struct.
var configKeys = []string{
	"logging.development",
	"sam.api_key",
	"sam.base_url",
	"sam.org_codes",
	"sam.notice_types",
	"sam.limit",
	"sam.timeout_seconds",
	"sam.max_retries",
	"sam.backoff_initial_ms",
	"sam.backoff_max_ms",
	"sam.posted_from",
	"sam.posted_to",
	"output.dir",
	"output.remove_after_upload",
	"storage.enabled",
	"storage.bucket",
	"storage.prefix",
	"warehouse.enabled",
	"warehouse.dsn",
	"warehouse.table",
	"email.enabled",
	"email.mailgun_domain",
	"email.mailgun_api_key",
	"email.to",
	"events.enabled",
	"events.project_id",
	"events.topic_id",
	"schedule.cron",
	"schedule.port",
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CONTRACTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range configKeys {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	setDefaults(v)

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

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", false)
	v.SetDefault("sam.base_url", "https://api.sam.gov/opportunities/v2/search")
	v.SetDefault("sam.org_codes", []string{"070"})
	v.SetDefault("sam.limit", 200)
	v.SetDefault("sam.timeout_seconds", 30)
	v.SetDefault("sam.max_retries", 2)
	v.SetDefault("sam.backoff_initial_ms", 250)
	v.SetDefault("sam.backoff_max_ms", 2000)
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.remove_after_upload", false)
	v.SetDefault("storage.prefix", "contracts")
	v.SetDefault("warehouse.table", "contracts")
	v.SetDefault("schedule.cron", "0 6 * * *")
	v.SetDefault("schedule.port", 8080)
}

// Validate enforces required values and reasonable limits.
// Missing credentials fail here, before any network call is made.
func (c Config) Validate() error {
	if c.SAM.APIKey == "" {
		return fmt.Errorf("sam.api_key must be set")
	}
	if len(c.SAM.OrgCodes) == 0 {
		return fmt.Errorf("sam.org_codes must include at least one organization code")
	}
	if c.SAM.Limit <= 0 {
		return fmt.Errorf("sam.limit must be > 0")
	}
	if c.SAM.TimeoutSeconds <= 0 {
		return fmt.Errorf("sam.timeout_seconds must be > 0")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir must be set")
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket must be set when storage is enabled")
	}
	if c.Warehouse.Enabled && c.Warehouse.DSN == "" {
		return fmt.Errorf("warehouse.dsn must be set when warehouse is enabled")
	}
	if c.Events.Enabled && (c.Events.ProjectID == "" || c.Events.TopicID == "") {
		return fmt.Errorf("events.project_id and events.topic_id must be set when events are enabled")
	}
	if c.Schedule.Port <= 0 {
		return fmt.Errorf("schedule.port must be > 0")
	}
	return nil
}

// RequestTimeout converts the configured per-request timeout into a duration.
func (c SAMConfig) RequestTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
