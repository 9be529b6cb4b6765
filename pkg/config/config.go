// Package config loads VoxLoop's runtime configuration. Everything that the
// spec calls out as "configuration, not code" (§6) lives here: legal-hours
// windows, concurrency cap, retry policy, phase timeouts, barge-in
// thresholds, and the default objection theme.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RetryPolicy configures retry delay and attempt budget for one terminal
// status. Only NoAnswer and Busy are ever scheduled for retry (§7).
type RetryPolicy struct {
	Delay       time.Duration `mapstructure:"delay"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// LegalHoursWindow is one allowed calling interval on a given weekday.
// Start/End are "HH:MM" in the campaign's configured timezone.
type LegalHoursWindow struct {
	Weekday time.Weekday `mapstructure:"-"`
	Start   string       `mapstructure:"start"`
	End     string       `mapstructure:"end"`
}

// PhaseTimeouts carries the hard wall-clock budgets from §4.6 and §5.
type PhaseTimeouts struct {
	RTPPrimingDelay     time.Duration `mapstructure:"rtp_priming_delay"`
	AMDRecordingWindow  time.Duration `mapstructure:"amd_recording_window"`
	BargeInThreshold    time.Duration `mapstructure:"barge_in_threshold"`
	BargeInGracePeriod  time.Duration `mapstructure:"barge_in_grace_period"`
	SmoothInterruptDelay time.Duration `mapstructure:"smooth_interrupt_delay"`
	SilenceThreshold    time.Duration `mapstructure:"silence_threshold"`
	MinSpeechDuration   time.Duration `mapstructure:"min_speech_duration"`
	DefaultStepTimeout  time.Duration `mapstructure:"default_step_timeout"`
	MaxCallDuration     time.Duration `mapstructure:"max_call_duration"`
	FileGrowthPollEvery time.Duration `mapstructure:"file_growth_poll_interval"`
}

// Config is the fully resolved runtime configuration for a VoxLoop process.
type Config struct {
	Softswitch struct {
		EventHost string `mapstructure:"event_host"`
		EventPort int    `mapstructure:"event_port"`
		APIHost   string `mapstructure:"api_host"`
		APIPort   int    `mapstructure:"api_port"`
		Password  string `mapstructure:"password"`
	} `mapstructure:"softswitch"`

	Speech struct {
		BatchEndpoint     string `mapstructure:"batch_endpoint"`
		StreamEndpoint    string `mapstructure:"stream_endpoint"`
		NoSpeechThreshold float64 `mapstructure:"no_speech_threshold"`
		BeamWidth         int    `mapstructure:"beam_width"`
	} `mapstructure:"speech"`

	Persistence struct {
		PostgresDSN string `mapstructure:"postgres_dsn"`
		RedisAddr   string `mapstructure:"redis_addr"`
	} `mapstructure:"persistence"`

	Campaign struct {
		MaxConcurrentCalls int                           `mapstructure:"max_concurrent_calls"`
		PollInterval       time.Duration                 `mapstructure:"poll_interval"`
		BatchSize          int                            `mapstructure:"batch_size"`
		LegalHours         map[string][]LegalHoursWindow `mapstructure:"legal_hours"`
		Retry              map[string]RetryPolicy        `mapstructure:"retry"`
		Timezone           string                         `mapstructure:"timezone"`
	} `mapstructure:"campaign"`

	Timeouts PhaseTimeouts `mapstructure:"timeouts"`

	DefaultObjectionTheme string `mapstructure:"default_objection_theme"`
	QualificationThreshold float64 `mapstructure:"qualification_threshold"`

	NATSUrl string `mapstructure:"nats_url"`

	Temporal struct {
		HostPort  string `mapstructure:"host_port"`
		Namespace string `mapstructure:"namespace"`
		TaskQueue string `mapstructure:"task_queue"`
	} `mapstructure:"temporal"`

	Logging struct {
		Level string `mapstructure:"level"`
		JSON  bool   `mapstructure:"json"`
	} `mapstructure:"logging"`
}

// Load reads configuration from a named file across the given search paths
// and environment variables prefixed VOXLOOP_, following the same pattern
// as pkg/config/providers/viper.NewViperProvider. An empty configName loads
// purely from environment and defaults.
func Load(configName string, configPaths []string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configName != "" {
		v.SetConfigName(configName)
		for _, p := range configPaths {
			v.AddConfigPath(p)
		}
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("config: read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("voxloop")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("campaign.max_concurrent_calls", 10)
	v.SetDefault("campaign.poll_interval", "15s")
	v.SetDefault("campaign.batch_size", 20)
	v.SetDefault("campaign.timezone", "UTC")
	v.SetDefault("qualification_threshold", 60.0)
	v.SetDefault("default_objection_theme", "default")

	v.SetDefault("timeouts.rtp_priming_delay", "350ms")
	v.SetDefault("timeouts.amd_recording_window", "2.3s")
	v.SetDefault("timeouts.barge_in_threshold", "1.8s")
	v.SetDefault("timeouts.barge_in_grace_period", "500ms")
	v.SetDefault("timeouts.smooth_interrupt_delay", "500ms")
	v.SetDefault("timeouts.silence_threshold", "600ms")
	v.SetDefault("timeouts.min_speech_duration", "300ms")
	v.SetDefault("timeouts.default_step_timeout", "10s")
	v.SetDefault("timeouts.max_call_duration", "5m")
	v.SetDefault("timeouts.file_growth_poll_interval", "100ms")

	v.SetDefault("temporal.task_queue", "voxloop-retries")
	v.SetDefault("temporal.namespace", "default")

	v.SetDefault("logging.level", "info")
}

// Validate rejects configuration that would violate §5/§8 invariants before
// any call is placed.
func (c *Config) Validate() error {
	if c.Campaign.MaxConcurrentCalls <= 0 {
		return fmt.Errorf("config: campaign.max_concurrent_calls must be > 0")
	}
	if c.Timeouts.DefaultStepTimeout <= 0 {
		return fmt.Errorf("config: timeouts.default_step_timeout must be > 0")
	}
	for status, p := range c.Campaign.Retry {
		if status != "NoAnswer" && status != "Busy" {
			return fmt.Errorf("config: retry policy for %q is not retryable per §7", status)
		}
		if p.MaxAttempts < 0 {
			return fmt.Errorf("config: retry.%s.max_attempts must be >= 0", status)
		}
	}
	return nil
}
