// Package config loads and validates agriauth configuration from the environment
// and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/layer-3/agriauth/core"
)

// OTP delivery modes.
const (
	DeliveryDev    = "dev"
	DeliverySMS    = "sms"
	DeliveryStream = "stream"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on.
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// Env is the application environment. Dev delivery is only accepted in
	// "development" and "test".
	Env string `mapstructure:"APP_ENV"`
	// LogDebug enables debug level logging.
	LogDebug bool `mapstructure:"LOG_DEBUG"`

	// RedisURL selects the Redis stores and stream publisher. Empty keeps
	// everything in process.
	RedisURL string `mapstructure:"REDIS_URL"`
	// DatabaseURL is the Postgres DSN of the principal registry. Empty uses the
	// memory registry seeded from PrincipalsFile.
	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	PrincipalsFile string `mapstructure:"PRINCIPALS_FILE"`

	// JWTPrivateKey is an inline PEM EC key or a path to one. Empty generates
	// a key at startup.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	JWTIssuer     string `mapstructure:"JWT_ISSUER"`

	ChallengeTTLRaw   string `mapstructure:"CHALLENGE_TTL"`
	ChallengeAttempts int    `mapstructure:"CHALLENGE_ATTEMPTS"`
	OTPDigits         int    `mapstructure:"OTP_DIGITS"`
	LenderTTLRaw      string `mapstructure:"SESSION_TTL_LENDER"`
	AdminTTLRaw       string `mapstructure:"SESSION_TTL_INSTITUTION_ADMIN"`
	ReaperIntervalRaw string `mapstructure:"REAPER_INTERVAL"`
	BcryptCost        int    `mapstructure:"BCRYPT_COST"`
	OTPDelivery       string `mapstructure:"OTP_DELIVERY"`
	EventsTopicPrefix string `mapstructure:"EVENTS_TOPIC_PREFIX"`

	// AuthRatePerMinute throttles /auth requests per client IP; 0 disables it.
	AuthRatePerMinute int `mapstructure:"AUTH_RATE_PER_MINUTE"`
	AuthRateBurst     int `mapstructure:"AUTH_RATE_BURST"`

	// SMS Local settings, used when OTPDelivery is "sms".
	SMSLocalAPIKey  string `mapstructure:"SMS_LOCAL_API_KEY"`
	SMSLocalBaseURL string `mapstructure:"SMS_LOCAL_BASE_URL"`
	SMSLocalSender  string `mapstructure:"SMS_LOCAL_SENDER"`
}

// Load reads .env (if present), then builds and validates Config from the environment.
// Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // missing .env is fine

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":9000")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_DEBUG", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("PRINCIPALS_FILE", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_ISSUER", "agriauth")
	v.SetDefault("CHALLENGE_TTL", "5m")
	v.SetDefault("CHALLENGE_ATTEMPTS", 3)
	v.SetDefault("OTP_DIGITS", 6)
	v.SetDefault("SESSION_TTL_LENDER", "1h")
	v.SetDefault("SESSION_TTL_INSTITUTION_ADMIN", "8h")
	v.SetDefault("REAPER_INTERVAL", "1m")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("OTP_DELIVERY", DeliverySMS)
	v.SetDefault("EVENTS_TOPIC_PREFIX", "agriauth")
	v.SetDefault("AUTH_RATE_PER_MINUTE", 30)
	v.SetDefault("AUTH_RATE_BURST", 10)
	v.SetDefault("SMS_LOCAL_API_KEY", "")
	v.SetDefault("SMS_LOCAL_BASE_URL", "")
	v.SetDefault("SMS_LOCAL_SENDER", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	switch c.OTPDelivery {
	case DeliveryDev:
		if !c.DevEnvironment() {
			return fmt.Errorf("config: OTP_DELIVERY=dev needs APP_ENV=development or test, got %q", c.Env)
		}
	case DeliverySMS:
		if c.SMSLocalAPIKey == "" {
			return errors.New("config: OTP_DELIVERY=sms requires SMS_LOCAL_API_KEY")
		}
	case DeliveryStream:
		if c.RedisURL == "" {
			return errors.New("config: OTP_DELIVERY=stream requires REDIS_URL")
		}
	default:
		return fmt.Errorf("config: unknown OTP_DELIVERY %q", c.OTPDelivery)
	}
	if c.ChallengeAttempts < 1 {
		return errors.New("config: CHALLENGE_ATTEMPTS must be at least 1")
	}
	if c.OTPDigits < 4 || c.OTPDigits > 10 {
		return errors.New("config: OTP_DIGITS must be between 4 and 10")
	}
	if c.AuthRatePerMinute < 0 || c.AuthRateBurst < 0 {
		return errors.New("config: AUTH_RATE_PER_MINUTE and AUTH_RATE_BURST must not be negative")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	for key, raw := range map[string]string{
		"CHALLENGE_TTL":                 c.ChallengeTTLRaw,
		"SESSION_TTL_LENDER":            c.LenderTTLRaw,
		"SESSION_TTL_INSTITUTION_ADMIN": c.AdminTTLRaw,
		"REAPER_INTERVAL":               c.ReaperIntervalRaw,
	} {
		if d, err := time.ParseDuration(raw); err != nil || d <= 0 {
			return fmt.Errorf("config: %s must be a positive duration, got %q", key, raw)
		}
	}
	return nil
}

// Production reports whether APP_ENV is production.
func (c *Config) Production() bool {
	return c.Env == "production"
}

// DevEnvironment reports whether APP_ENV names a local environment.
func (c *Config) DevEnvironment() bool {
	return c.Env == "development" || c.Env == "test"
}

// DevDelivery reports whether codes go to the in-memory dev inbox.
func (c *Config) DevDelivery() bool {
	return c.OTPDelivery == DeliveryDev
}

// ChallengeTTL returns CHALLENGE_TTL. Returns 5m if unset or invalid.
func (c *Config) ChallengeTTL() time.Duration {
	return duration(c.ChallengeTTLRaw, 5*time.Minute)
}

// ReaperInterval returns REAPER_INTERVAL. Returns 1m if unset or invalid.
func (c *Config) ReaperInterval() time.Duration {
	return duration(c.ReaperIntervalRaw, time.Minute)
}

// SessionTTLs returns the session lifetime per role.
func (c *Config) SessionTTLs() map[core.Role]time.Duration {
	return map[core.Role]time.Duration{
		core.RoleLender:           duration(c.LenderTTLRaw, time.Hour),
		core.RoleInstitutionAdmin: duration(c.AdminTTLRaw, 8*time.Hour),
	}
}

func duration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
