package esl

import "time"

// Config configures the Event Socket provider.
type Config struct {
	Host     string        `mapstructure:"host" env:"VOXLOOP_SOFTSWITCH_HOST" validate:"required"`
	Port     int           `mapstructure:"port" env:"VOXLOOP_SOFTSWITCH_PORT" default:"8021"`
	Password string        `mapstructure:"password" env:"VOXLOOP_SOFTSWITCH_PASSWORD" validate:"required"`

	DialTimeout     time.Duration `mapstructure:"dial_timeout" default:"5s"`
	ReconnectMin    time.Duration `mapstructure:"reconnect_min" default:"500ms"`
	ReconnectMax    time.Duration `mapstructure:"reconnect_max" default:"30s"`
	EventBufferSize int           `mapstructure:"event_buffer_size" default:"64"`

	// BreakerFailureThreshold/BreakerResetTimeout tune the circuit breaker
	// guarding ExecApi: repeated timeouts trip it so callers fail fast
	// with ErrCodeProviderDegraded instead of queuing behind a dead link.
	BreakerFailureThreshold int           `mapstructure:"breaker_failure_threshold" default:"5"`
	BreakerResetTimeout     time.Duration `mapstructure:"breaker_reset_timeout" default:"30s"`
}

// NewConfig returns a Config with the §5/§6 defaults filled in.
func NewConfig(host, password string) *Config {
	return &Config{
		Host:                    host,
		Port:                    8021,
		Password:                password,
		DialTimeout:             5 * time.Second,
		ReconnectMin:            500 * time.Millisecond,
		ReconnectMax:            30 * time.Second,
		EventBufferSize:         64,
		BreakerFailureThreshold: 5,
		BreakerResetTimeout:     30 * time.Second,
	}
}
