package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Env         string   `env:"APP_ENV" envDefault:"dev"`
	Port        int      `env:"PORT" envDefault:"8080"`
	ClientURL   string   `env:"CLIENT_URL" envDefault:"http://localhost:3000"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	DB     DB     `envPrefix:"DB_"`
	JWT    JWT    `envPrefix:"JWT_"`
	SMTP   SMTP   `envPrefix:"SMTP_"`
	Redis  Redis  `envPrefix:"REDIS_"`
	Minio  Minio  `envPrefix:"MINIO_"`
	Admin  Admin  `envPrefix:"ADMIN_"`
	OTEL   OTEL   `envPrefix:"OTEL_"`
	Worker Worker `envPrefix:"WORKER_"`

	// fixed-window limit on /auth/* per client IP
	AuthRateLimit  int           `env:"AUTH_RATE_LIMIT" envDefault:"20"`
	AuthRateWindow time.Duration `env:"AUTH_RATE_WINDOW" envDefault:"1m"`

	// fixed-window limit on /users/* per authenticated user
	UserRateLimit  int           `env:"USER_RATE_LIMIT" envDefault:"120"`
	UserRateWindow time.Duration `env:"USER_RATE_WINDOW" envDefault:"1m"`

	// PasswordMinEntropy is the minimum entropy (bits) a new password must carry.
	PasswordMinEntropy float64 `env:"PASSWORD_MIN_ENTROPY" envDefault:"50"`
}

type DB struct {
	Host     string `env:"HOST" envDefault:"127.0.0.1"`
	Port     string `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"storefront"`
	Password string `env:"PASSWORD" envDefault:"storefront"`
	Name     string `env:"NAME" envDefault:"storefront"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
	MaxConns int32  `env:"MAX_CONNS" envDefault:"5"`
	// URL overrides the individual fields when set.
	URL string `env:"URL"`
}

type JWT struct {
	ActivationKey    string        `env:"ACTIVATION_KEY"`
	AccessKey        string        `env:"ACCESS_KEY"`
	SessionKey       string        `env:"SESSION_KEY"`
	ResetPasswordKey string        `env:"RESET_PASSWORD_KEY"`
	ActivationTTL    time.Duration `env:"ACTIVATION_TTL" envDefault:"24h"`
	AccessTTL        time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
	ResetTTL         time.Duration `env:"RESET_TTL" envDefault:"10m"`
}

type SMTP struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM" envDefault:"no-reply@storefront.local"`
}

type Redis struct {
	Addr     string `env:"ADDR" envDefault:"127.0.0.1:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type Minio struct {
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET" envDefault:"storefront-images"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
}

type Admin struct {
	Email     string `env:"EMAIL"`
	Password  string `env:"PASSWORD"`
	UserName  string `env:"USER_NAME" envDefault:"admin"`
	FirstName string `env:"FIRST_NAME" envDefault:"Store"`
	LastName  string `env:"LAST_NAME" envDefault:"Admin"`
}

type OTEL struct {
	Enabled     bool    `env:"ENABLED" envDefault:"false"`
	Endpoint    string  `env:"ENDPOINT" envDefault:"localhost:4317"`
	ServiceName string  `env:"SERVICE_NAME" envDefault:"storefront-api"`
	SampleRatio float64 `env:"SAMPLE_RATIO" envDefault:"1"`
}

type Worker struct {
	PollInterval  time.Duration `env:"POLL_INTERVAL" envDefault:"500ms"`
	MaxAttempts   int           `env:"MAX_ATTEMPTS" envDefault:"5"`
	HealthPort    int           `env:"HEALTH_PORT" envDefault:"8081"`
	ShutdownGrace time.Duration `env:"SHUTDOWN_GRACE" envDefault:"10s"`
	Concurrency   int           `env:"CONCURRENCY" envDefault:"4"`
}

var ErrWeakSecret = errors.New("jwt keys must be set and at least 32 characters outside dev")

// Load reads an optional .env file and then parses the process environment.
func Load() (Config, error) {
	// a missing .env is fine, real deployments inject the environment directly
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Env == "dev" || cfg.Env == "test" {
		cfg.JWT.fillDevDefaults()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	keys := []string{c.JWT.ActivationKey, c.JWT.AccessKey, c.JWT.SessionKey, c.JWT.ResetPasswordKey}

	for _, k := range keys {
		if k == "" {
			return ErrWeakSecret
		}
		if c.Env == "prod" && len(k) < 32 {
			return ErrWeakSecret
		}
	}

	if c.Port <= 0 {
		return fmt.Errorf("invalid port %d", c.Port)
	}

	return nil
}

// DBURL builds the postgres connection string.
func (c Config) DBURL() string {
	if c.DB.URL != "" {
		return c.DB.URL
	}

	return "postgres://" + c.DB.User + ":" + c.DB.Password + "@" + c.DB.Host + ":" + c.DB.Port + "/" + c.DB.Name + "?sslmode=" + c.DB.SSLMode
}

func (c Config) IsProd() bool {
	return c.Env == "prod"
}

func (j *JWT) fillDevDefaults() {
	if j.ActivationKey == "" {
		j.ActivationKey = "dev-activation-key"
	}
	if j.AccessKey == "" {
		j.AccessKey = "dev-access-key"
	}
	if j.SessionKey == "" {
		j.SessionKey = "dev-session-key"
	}
	if j.ResetPasswordKey == "" {
		j.ResetPasswordKey = "dev-reset-password-key"
	}
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}
