package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port        string        `env:"PORT,         default=8080"`
	Env         string        `env:"ENV,          default=development"`
	BaseURL     string        `env:"BASE_URL,     default=http://localhost:8080"`
	JWTSecret   string        `env:"JWT_SECRET,   required"`
	LogLevel    string        `env:"LOG_LEVEL,    default=info"`
	BcryptCost  int           `env:"BCRYPT_COST,  default=10"`
	MailWorkers int           `env:"MAIL_WORKERS, default=4"`
	AlertWindow time.Duration `env:"LOGIN_ALERT_WINDOW, default=10m"`

	Mongo MongoConfig
	Redis RedisConfig
	SMTP  SMTPConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=verimail"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,   default=0"`
}

type SMTPConfig struct {
	Host     string `env:"SMTP_HOST, default=localhost"`
	Port     int    `env:"SMTP_PORT, default=587"`
	Username string `env:"SMTP_USER"`
	Password string `env:"SMTP_PASS"`
	From     string `env:"SMTP_FROM, default=no-reply@verimail.local"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
