package config

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration for the partner service.
type Config struct {
	Addr           string   `env:"ADDR,default=:8080"`
	DBDSN          string   `env:"DB_DSN,required"`
	NATSURL        string   `env:"NATS_URL"`
	PublicBaseURL  string   `env:"PUBLIC_BASE_URL,required"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`
	OTLPEndpoint   string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASS"`
	FromEmail    string `env:"FROM_EMAIL"`

	CVBucket string `env:"CV_BUCKET"`

	TokenValidityDays    int  `env:"TERMS_TOKEN_VALIDITY_DAYS,default=30"`
	RevokePriorOnReissue bool `env:"TERMS_REVOKE_PRIOR_ON_REISSUE,default=false"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
