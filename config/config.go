// Package config loads the policy settings shared by the kurudhi binaries.
//
// Process-level settings (listen addresses, which backend to use) stay as
// command-line flags on each binary.  Everything here can come from an
// optional config file and from KURUDHI_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"kurudhi-koodai/eligibility"
	"kurudhi-koodai/identity"

	"github.com/spf13/viper"
)

type Config struct {
	// Minimum whole days between two donations by one donor.
	CooldownDays int64 `mapstructure:"cooldown_days"`

	// Unfinished donations older than this are cancelled by the poller.
	// Zero disables expiry.
	PendingDonationExpiry time.Duration `mapstructure:"pending_donation_expiry"`

	SessionLifetime time.Duration `mapstructure:"session_lifetime"`

	// Region used to read donor phone numbers without a country code.
	PhoneRegion string `mapstructure:"phone_region"`

	GoogleOAuthClientID string `mapstructure:"google_oauth_client_id"`

	MailFromName    string `mapstructure:"mail_from_name"`
	MailFromAddress string `mapstructure:"mail_from_address"`
	PublicBaseURL   string `mapstructure:"public_base_url"`

	// Per-user limit on code verification attempts, shared by the API and the
	// web UI.
	VerifyRatePerMinute float64 `mapstructure:"verify_rate_per_minute"`
	VerifyBurst         int     `mapstructure:"verify_burst"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cooldown_days", eligibility.DefaultCooldownDays)
	v.SetDefault("pending_donation_expiry", time.Duration(0))
	v.SetDefault("session_lifetime", identity.DefaultSessionLifetime)
	v.SetDefault("phone_region", "IN")
	v.SetDefault("google_oauth_client_id", "")
	v.SetDefault("mail_from_name", "Kurudhi Koodai")
	v.SetDefault("mail_from_address", "bot@kurudhikoodai.org")
	v.SetDefault("public_base_url", "https://kurudhikoodai.org")
	v.SetDefault("verify_rate_per_minute", 10.0)
	v.SetDefault("verify_burst", 5)
}

// Load reads the config file at path, if path is non-empty, layering
// environment variables on top.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("KURUDHI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("while reading config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("while unmarshaling config: %w", err)
	}

	if cfg.CooldownDays < 0 {
		return nil, fmt.Errorf("cooldown_days must not be negative, got %d", cfg.CooldownDays)
	}
	if cfg.PendingDonationExpiry < 0 {
		return nil, fmt.Errorf("pending_donation_expiry must not be negative, got %v", cfg.PendingDonationExpiry)
	}
	return cfg, nil
}

func (c *Config) EligibilityPolicy() eligibility.Policy {
	return eligibility.Policy{CooldownDays: c.CooldownDays}
}
