// Package conf loads and holds process-wide configuration.
package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings is the full process configuration, loaded once at startup.
// Retention settings (retention days, archive interval) are not here:
// they live in the datastore so the control surface can change them at
// runtime, and are re-read on every archival cycle.
type Settings struct {
	// DataDir is where the SQLite datastore lives.
	DataDir string `mapstructure:"data_dir"`

	// SourceDSN points at the external access-log store the pipeline
	// reads from. Its schema is owned by the log collector, not by us.
	SourceDSN string `mapstructure:"source_dsn"`

	// Listen is the HTTP control surface bind address.
	Listen string `mapstructure:"listen"`

	// APIToken guards mutating control-surface endpoints. Empty disables
	// the check.
	APIToken string `mapstructure:"api_token"`

	// TriggerEnabled allows administratively disabling the manual
	// trigger endpoint without stopping the scheduler.
	TriggerEnabled bool `mapstructure:"trigger_enabled"`

	// TickInterval is the scheduler's base timer period.
	TickInterval Duration `mapstructure:"tick_interval"`

	// FetchTimeout bounds each call to the external log source.
	FetchTimeout Duration `mapstructure:"fetch_timeout"`

	// DeliveryTimeout bounds each notification delivery attempt.
	DeliveryTimeout Duration `mapstructure:"delivery_timeout"`

	// CycleConcurrency caps how many agents are processed in parallel
	// within one scheduler cycle.
	CycleConcurrency int `mapstructure:"cycle_concurrency"`

	// NotifyURLs are shoutrrr service URLs for alert delivery.
	NotifyURLs []string `mapstructure:"notify_urls"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", ".")
	v.SetDefault("source_dsn", "")
	v.SetDefault("listen", ":8090")
	v.SetDefault("api_token", "")
	v.SetDefault("trigger_enabled", true)
	v.SetDefault("tick_interval", "1m")
	v.SetDefault("fetch_timeout", "15s")
	v.SetDefault("delivery_timeout", "10s")
	v.SetDefault("cycle_concurrency", 4)
	v.SetDefault("notify_urls", []string{})
	v.SetDefault("log_level", "info")
}

// Load reads settings from the given config file (optional) and the
// PROXYPULSE_* environment, applying defaults for anything unset.
func Load(configFile string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("proxypulse")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects settings the scheduler cannot safely run with.
func (s *Settings) Validate() error {
	if s.TickInterval.Std() < time.Second {
		return fmt.Errorf("tick_interval %s too short: minimum is 1s", s.TickInterval.Std())
	}
	if s.FetchTimeout.Std() <= 0 {
		return fmt.Errorf("fetch_timeout must be positive")
	}
	if s.DeliveryTimeout.Std() <= 0 {
		return fmt.Errorf("delivery_timeout must be positive")
	}
	if s.CycleConcurrency < 1 {
		return fmt.Errorf("cycle_concurrency must be at least 1")
	}
	return nil
}
