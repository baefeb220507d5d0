package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	DiscordToken string `envconfig:"DISCORD_TOKEN"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`

	CoinServiceURL string `envconfig:"COIN_SERVICE_URL"`

	SentryDSN         string  `envconfig:"SENTRY_DSN"`
	SentryEnvironment string  `envconfig:"SENTRY_ENVIRONMENT" default:"development"`
	SentrySampleRate  float64 `envconfig:"SENTRY_SAMPLE_RATE" default:"1.0"`

	// Review window and vote thresholds. General submissions and personal
	// profiles review under separate threshold sets.
	ReviewWindow              time.Duration `envconfig:"REVIEW_WINDOW" default:"5m"`
	ApprovalThreshold         int           `envconfig:"APPROVAL_THRESHOLD" default:"5"`
	InstantApprovalThreshold  int           `envconfig:"INSTANT_APPROVAL_THRESHOLD" default:"10"`
	RejectionThreshold        int           `envconfig:"REJECTION_THRESHOLD" default:"3"`
	PersonalApprovalThreshold int           `envconfig:"PERSONAL_APPROVAL_THRESHOLD" default:"2"`
	PersonalInstantThreshold  int           `envconfig:"PERSONAL_INSTANT_THRESHOLD" default:"7"`
	PersonalRejectThreshold   int           `envconfig:"PERSONAL_REJECT_THRESHOLD" default:"3"`

	SweepInterval     time.Duration `envconfig:"SWEEP_INTERVAL" default:"60s"`
	IndexPollInterval time.Duration `envconfig:"INDEX_POLL_INTERVAL" default:"5s"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("WORLDBOOK", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasDiscord() bool {
	return c.DiscordToken != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasCoinService() bool {
	return c.CoinServiceURL != ""
}
