// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Platform  PlatformConfig  `mapstructure:"platform"`
	Renderer  RendererConfig  `mapstructure:"renderer"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	Comments  CommentsConfig  `mapstructure:"comments"`
	Throttle  ThrottleConfig  `mapstructure:"throttle"`
	DB        DBConfig        `mapstructure:"db"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// PlatformConfig identifies the source platform and its page layout.
type PlatformConfig struct {
	Name               string `mapstructure:"name"`
	Origin             string `mapstructure:"origin"`
	BookURLTemplate    string `mapstructure:"book_url_template"`
	CatalogURLTemplate string `mapstructure:"catalog_url_template"`
	MaxChapters        int    `mapstructure:"max_chapters"`
	ArchivePages       bool   `mapstructure:"archive_pages"`
}

// RendererConfig configures the headless browser session.
type RendererConfig struct {
	Headless      bool    `mapstructure:"headless"`
	UserAgent     string  `mapstructure:"user_agent"`
	NavTimeoutSec int     `mapstructure:"nav_timeout_seconds"`
	DomainQPS     float64 `mapstructure:"domain_qps"`
	WindowWidth   int     `mapstructure:"window_width"`
	WindowHeight  int     `mapstructure:"window_height"`
}

// ExtractorConfig sets content-extraction thresholds.
type ExtractorConfig struct {
	MinFullLength   int     `mapstructure:"min_full_length"`
	MinAcceptLength int     `mapstructure:"min_accept_length"`
	MaxBlockLength  int     `mapstructure:"max_block_length"`
	MinCJKRatio     float64 `mapstructure:"min_cjk_ratio"`
}

// CommentsConfig configures the comment API client and crawl depth.
type CommentsConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	Referer           string `mapstructure:"referer"`
	PageSize          int    `mapstructure:"page_size"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	MaxPagesPerTarget int    `mapstructure:"max_pages_per_target"`
	ChapterLimit      int    `mapstructure:"chapter_limit"`
}

// ThrottleConfig bounds the randomized pause between requests.
type ThrottleConfig struct {
	MinMs int `mapstructure:"min_ms"`
	MaxMs int `mapstructure:"max_ms"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN                string `mapstructure:"dsn"`
	MaxConns           int32  `mapstructure:"max_conns"`
	MinConns           int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMin int    `mapstructure:"max_conn_lifetime_minutes"`
}

// SchedulerConfig governs batch and incremental crawl rounds.
type SchedulerConfig struct {
	PhasePauseMinSec int `mapstructure:"phase_pause_min_seconds"`
	PhasePauseMaxSec int `mapstructure:"phase_pause_max_seconds"`
	BatchSize        int `mapstructure:"batch_size"`
	IncrementalLimit int `mapstructure:"incremental_limit"`
	StalenessHours   int `mapstructure:"staleness_hours"`
	CheckIntervalMin int `mapstructure:"check_interval_minutes"`
	CooldownMin      int `mapstructure:"cooldown_minutes"`
	FailureReportMax int `mapstructure:"failure_report_max"`
}

// MetricsConfig toggles the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("QDCRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

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
	v.SetDefault("platform.name", "起点中文网")
	v.SetDefault("platform.origin", "https://www.qidian.com")
	v.SetDefault("platform.book_url_template", "https://www.qidian.com/book/%s/")
	v.SetDefault("platform.catalog_url_template", "https://www.qidian.com/book/%s/catalog/")
	v.SetDefault("platform.max_chapters", 30)
	v.SetDefault("platform.archive_pages", true)
	v.SetDefault("renderer.headless", true)
	v.SetDefault("renderer.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("renderer.nav_timeout_seconds", 15)
	v.SetDefault("renderer.domain_qps", 0.5)
	v.SetDefault("renderer.window_width", 1400)
	v.SetDefault("renderer.window_height", 900)
	v.SetDefault("extractor.min_full_length", 300)
	v.SetDefault("extractor.min_accept_length", 100)
	v.SetDefault("extractor.max_block_length", 30000)
	v.SetDefault("extractor.min_cjk_ratio", 0.3)
	v.SetDefault("comments.base_url", "https://read.qidian.com/ajax/book/comment")
	v.SetDefault("comments.referer", "https://www.qidian.com/")
	v.SetDefault("comments.page_size", 20)
	v.SetDefault("comments.timeout_seconds", 15)
	v.SetDefault("comments.max_pages_per_target", 3)
	v.SetDefault("comments.chapter_limit", 10)
	v.SetDefault("throttle.min_ms", 2000)
	v.SetDefault("throttle.max_ms", 5000)
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.max_conn_lifetime_minutes", 30)
	v.SetDefault("scheduler.phase_pause_min_seconds", 15)
	v.SetDefault("scheduler.phase_pause_max_seconds", 30)
	v.SetDefault("scheduler.batch_size", 10)
	v.SetDefault("scheduler.incremental_limit", 3)
	v.SetDefault("scheduler.staleness_hours", 72)
	v.SetDefault("scheduler.check_interval_minutes", 10)
	v.SetDefault("scheduler.cooldown_minutes", 5)
	v.SetDefault("scheduler.failure_report_max", 10)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Platform.Origin == "" {
		return fmt.Errorf("platform.origin is required")
	}
	if c.Platform.MaxChapters <= 0 {
		return fmt.Errorf("platform.max_chapters must be > 0")
	}
	if c.Renderer.NavTimeoutSec <= 0 {
		return fmt.Errorf("renderer.nav_timeout_seconds must be > 0")
	}
	if c.Renderer.UserAgent == "" {
		return fmt.Errorf("renderer.user_agent is required")
	}
	if c.Extractor.MinAcceptLength > c.Extractor.MinFullLength {
		return fmt.Errorf("extractor.min_accept_length must not exceed extractor.min_full_length")
	}
	if c.Extractor.MinCJKRatio < 0 || c.Extractor.MinCJKRatio > 1 {
		return fmt.Errorf("extractor.min_cjk_ratio must be within [0, 1]")
	}
	if c.Comments.PageSize <= 0 {
		return fmt.Errorf("comments.page_size must be > 0")
	}
	if c.Throttle.MinMs < 0 || c.Throttle.MaxMs < c.Throttle.MinMs {
		return fmt.Errorf("throttle.max_ms must be >= throttle.min_ms >= 0")
	}
	if c.Scheduler.StalenessHours <= 0 {
		return fmt.Errorf("scheduler.staleness_hours must be > 0")
	}
	if c.Scheduler.PhasePauseMaxSec < c.Scheduler.PhasePauseMinSec || c.Scheduler.PhasePauseMinSec < 0 {
		return fmt.Errorf("scheduler.phase_pause_max_seconds must be >= scheduler.phase_pause_min_seconds >= 0")
	}
	if c.Metrics.Enabled && c.Metrics.Port <= 0 {
		return fmt.Errorf("metrics.port must be > 0 when metrics are enabled")
	}
	return nil
}

// Staleness converts the configured window into a duration.
func (c Config) Staleness() time.Duration {
	return time.Duration(c.Scheduler.StalenessHours) * time.Hour
}

// CheckInterval converts the configured pause into a duration.
func (c Config) CheckInterval() time.Duration {
	return time.Duration(c.Scheduler.CheckIntervalMin) * time.Minute
}

// Cooldown converts the configured error pause into a duration.
func (c Config) Cooldown() time.Duration {
	return time.Duration(c.Scheduler.CooldownMin) * time.Minute
}
