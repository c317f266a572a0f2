package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port              string `env:"PORT" envDefault:"8080"`
	MySQLDSN          string `env:"MYSQL_DSN" envDefault:"root:root@tcp(localhost:3306)/backoffice?parseTime=true"`
	RedisAddr         string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	JWTSecret         string `env:"JWT_SECRET" envDefault:"backoffice-dev-secret"`
	TokenHourLifespan int    `env:"TOKEN_HOUR_LIFESPAN" envDefault:"72"`
	ClaimsEndpoint    string `env:"CLAIMS_ENDPOINT"`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
	WorkerCount       int    `env:"WORKER_COUNT" envDefault:"4"`
	QueueSize         int    `env:"QUEUE_SIZE" envDefault:"1024"`
}

// Load reads .env if present, then parses the environment.
func Load() (Config, error) {
	godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c Config) TokenLifespan() time.Duration {
	return time.Duration(c.TokenHourLifespan) * time.Hour
}
