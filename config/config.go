// Package config loads the kernel configuration from environment
// variables.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// Threshold maps an attempt count to the delay imposed once that count
// is reached within the tier's interval.
type Threshold struct {
	Attempts int
	Delay    time.Duration
}

// ThresholdTable is an ordered sequence of thresholds, ascending by
// attempt count. The environment form is "attempts:delaySeconds" pairs
// separated by commas, e.g. "3:10,5:60".
type ThresholdTable []Threshold

// UnmarshalText parses the environment form of a threshold table.
func (t *ThresholdTable) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*t = nil
		return nil
	}

	var table ThresholdTable
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid threshold %q: want attempts:delaySeconds", pair)
		}
		attempts, err := strconv.Atoi(parts[0])
		if err != nil {
			return fmt.Errorf("invalid threshold attempts %q: %w", parts[0], err)
		}
		seconds, err := strconv.Atoi(parts[1])
		if err != nil {
			return fmt.Errorf("invalid threshold delay %q: %w", parts[1], err)
		}
		table = append(table, Threshold{Attempts: attempts, Delay: time.Duration(seconds) * time.Second})
	}

	*t = table
	return nil
}

// Config is the configuration surface consumed by the kernel.
type Config struct {
	// LoginAttributes names the user attributes a login credential is
	// matched against, in order.
	LoginAttributes []string `env:"WARDEN_LOGIN_ATTRIBUTES" envDefault:"email"`

	ActivationTTL  time.Duration `env:"WARDEN_ACTIVATION_TTL"  envDefault:"72h"`
	ReminderTTL    time.Duration `env:"WARDEN_REMINDER_TTL"    envDefault:"4h"`
	PersistenceTTL time.Duration `env:"WARDEN_PERSISTENCE_TTL" envDefault:"8760h"`

	// SingleSession makes a new persistence token invalidate all of the
	// user's prior tokens.
	SingleSession bool `env:"WARDEN_SINGLE_SESSION" envDefault:"false"`

	Wildcard string `env:"WARDEN_PERMISSION_WILDCARD" envDefault:"*"`

	GlobalInterval   time.Duration  `env:"WARDEN_THROTTLE_GLOBAL_INTERVAL" envDefault:"15m"`
	GlobalThresholds ThresholdTable `env:"WARDEN_THROTTLE_GLOBAL_THRESHOLDS" envDefault:"16:900"`
	IPInterval       time.Duration  `env:"WARDEN_THROTTLE_IP_INTERVAL" envDefault:"15m"`
	IPThresholds     ThresholdTable `env:"WARDEN_THROTTLE_IP_THRESHOLDS" envDefault:"5:900"`
	UserInterval     time.Duration  `env:"WARDEN_THROTTLE_USER_INTERVAL" envDefault:"15m"`
	UserThresholds   ThresholdTable `env:"WARDEN_THROTTLE_USER_THRESHOLDS" envDefault:"5:900"`
}

// Load parses the configuration from environment variables and
// validates it.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad is Load for bootstrap paths where a bad configuration must
// abort startup.
func MustLoad(logger *zerolog.Logger) *Config {
	cfg, err := Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load warden configuration")
	}
	return cfg
}

// Default returns the configuration the kernel uses when no environment
// is consulted.
func Default() *Config {
	return &Config{
		LoginAttributes:  []string{"email"},
		ActivationTTL:    72 * time.Hour,
		ReminderTTL:      4 * time.Hour,
		PersistenceTTL:   8760 * time.Hour,
		Wildcard:         "*",
		GlobalInterval:   15 * time.Minute,
		GlobalThresholds: ThresholdTable{{Attempts: 16, Delay: 900 * time.Second}},
		IPInterval:       15 * time.Minute,
		IPThresholds:     ThresholdTable{{Attempts: 5, Delay: 900 * time.Second}},
		UserInterval:     15 * time.Minute,
		UserThresholds:   ThresholdTable{{Attempts: 5, Delay: 900 * time.Second}},
	}
}

// Validate checks the configuration for bootstrap-time errors.
func (c *Config) Validate() error {
	if len(c.LoginAttributes) == 0 {
		return fmt.Errorf("at least one login attribute is required")
	}
	if utf8.RuneCountInString(c.Wildcard) != 1 {
		return fmt.Errorf("permission wildcard must be a single character, got %q", c.Wildcard)
	}
	if c.ActivationTTL <= 0 || c.ReminderTTL <= 0 || c.PersistenceTTL <= 0 {
		return fmt.Errorf("code and persistence TTLs must be positive")
	}

	tiers := []struct {
		name     string
		interval time.Duration
		table    ThresholdTable
	}{
		{"global", c.GlobalInterval, c.GlobalThresholds},
		{"ip", c.IPInterval, c.IPThresholds},
		{"user", c.UserInterval, c.UserThresholds},
	}
	for _, tier := range tiers {
		if tier.interval <= 0 {
			return fmt.Errorf("%s throttle interval must be positive", tier.name)
		}
		for i := 1; i < len(tier.table); i++ {
			if tier.table[i].Attempts <= tier.table[i-1].Attempts {
				return fmt.Errorf("%s throttle thresholds must ascend by attempt count", tier.name)
			}
		}
	}

	return nil
}

// WildcardRune returns the configured wildcard as a rune.
func (c *Config) WildcardRune() rune {
	r, _ := utf8.DecodeRuneInString(c.Wildcard)
	return r
}
