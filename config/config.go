// Package config loads the deployment configuration: broadcast cadence,
// cache TTL, curve start dates, and optional overrides for the
// risky-services map and Kafka event mirroring. Connection settings stay
// in environment variables; this file only tunes behavior.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vulndash/vulndash-backend/util"
)

const dateLayout = "2006-01-02"

// File is the on-disk YAML shape. Intervals and TTLs are whole seconds.
type File struct {
	DashboardIntervalSecs int `yaml:"dashboard_interval_seconds"`
	CybexIntervalSecs     int `yaml:"cybex_interval_seconds"`
	BODIntervalSecs       int `yaml:"bod_interval_seconds"`
	FeedIntervalSecs      int `yaml:"feed_interval_seconds"`
	CacheTTLSecs          int `yaml:"cache_ttl_seconds"`
	JobTimeoutSecs        int `yaml:"job_timeout_seconds"`

	GraphStartDate string `yaml:"graph_start_date"`
	CybexStartDate string `yaml:"cybex_start_date"`
	BODStartDate   string `yaml:"bod_start_date"`

	RiskyServices map[string]string `yaml:"risky_services"`

	KafkaTopic string `yaml:"kafka_topic"`
}

// Config is the resolved runtime configuration.
type Config struct {
	DashboardInterval time.Duration
	CybexInterval     time.Duration
	BODInterval       time.Duration
	FeedInterval      time.Duration
	CacheTTL          time.Duration
	JobTimeout        time.Duration

	GraphStartDate time.Time
	CybexStartDate time.Time
	BODStartDate   time.Time

	// RiskyServices overrides the built-in service map when non-empty.
	RiskyServices map[string]string

	// KafkaBrokers empty disables the event producer.
	KafkaBrokers string
	KafkaTopic   string
}

// Defaults returns the stock configuration. The cybex and bod cadences
// carry a one-second stagger so the three families never all land on the
// same scheduler tick.
func Defaults() *Config {
	graphStart := time.Date(2015, time.May, 21, 0, 0, 0, 0, time.UTC)
	return &Config{
		DashboardInterval: 60 * time.Second,
		CybexInterval:     600*time.Second + time.Second,
		BODInterval:       300*time.Second + time.Second,
		FeedInterval:      300 * time.Second,
		CacheTTL:          60 * time.Second,
		JobTimeout:        10 * time.Second,
		GraphStartDate:    graphStart,
		CybexStartDate:    graphStart,
		BODStartDate:      graphStart,
		KafkaTopic:        "vulndash.ticket.changed",
	}
}

// Load resolves the configuration: defaults, then the YAML file named by
// VULNDASH_CONFIG (when set and present), then connection env vars.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := util.GetEnvDefault("VULNDASH_CONFIG", ""); path != "" {
		raw, err := os.ReadFile(path) // #nosec G304
		if err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		var f File
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		if err := cfg.apply(&f); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	cfg.KafkaBrokers = util.GetEnvDefault("KAFKA_BROKERS", "")
	if topic := util.GetEnvDefault("KAFKA_TOPIC", ""); topic != "" {
		cfg.KafkaTopic = topic
	}
	return cfg, nil
}

func (c *Config) apply(f *File) error {
	secs := []struct {
		dst *time.Duration
		val int
	}{
		{&c.DashboardInterval, f.DashboardIntervalSecs},
		{&c.CybexInterval, f.CybexIntervalSecs},
		{&c.BODInterval, f.BODIntervalSecs},
		{&c.FeedInterval, f.FeedIntervalSecs},
		{&c.CacheTTL, f.CacheTTLSecs},
		{&c.JobTimeout, f.JobTimeoutSecs},
	}
	for _, s := range secs {
		if s.val > 0 {
			*s.dst = time.Duration(s.val) * time.Second
		}
	}

	if f.GraphStartDate != "" {
		t, err := time.ParseInLocation(dateLayout, f.GraphStartDate, time.UTC)
		if err != nil {
			return fmt.Errorf("graph_start_date %q: %w", f.GraphStartDate, err)
		}
		c.GraphStartDate = t
	}
	// Family start dates follow the graph start unless pinned explicitly.
	c.CybexStartDate = c.GraphStartDate
	c.BODStartDate = c.GraphStartDate
	if f.CybexStartDate != "" {
		t, err := time.ParseInLocation(dateLayout, f.CybexStartDate, time.UTC)
		if err != nil {
			return fmt.Errorf("cybex_start_date %q: %w", f.CybexStartDate, err)
		}
		c.CybexStartDate = t
	}
	if f.BODStartDate != "" {
		t, err := time.ParseInLocation(dateLayout, f.BODStartDate, time.UTC)
		if err != nil {
			return fmt.Errorf("bod_start_date %q: %w", f.BODStartDate, err)
		}
		c.BODStartDate = t
	}

	if len(f.RiskyServices) > 0 {
		c.RiskyServices = f.RiskyServices
	}
	if f.KafkaTopic != "" {
		c.KafkaTopic = f.KafkaTopic
	}
	return nil
}
