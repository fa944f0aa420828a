package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN       string `env:"DATABASE_DSN,required=true"`
	RedisURL          string `env:"REDIS_URL,required=true"`
	EventsAMQPURL     string `env:"EVENTS_AMQP_URL"`
	ProcessWebhookURL string `env:"PROCESS_WEBHOOK_URL"`
	APIPort           int    `env:"API_PORT,default=8080"`
	MetricsPort       int    `env:"METRICS_PORT,default=9090"`
	LogLevel          string `env:"LOG_LEVEL,default=info"`
	RateLimitPerSec   int    `env:"RATE_LIMIT_PER_SEC,default=100"`

	// Worker pool sizing for the batch processor.
	PoolCoreWorkers    int `env:"POOL_CORE_WORKERS,default=5"`
	PoolMaxWorkers     int `env:"POOL_MAX_WORKERS,default=10"`
	PoolQueueSize      int `env:"POOL_QUEUE_SIZE,default=100"`
	PoolIdleTimeoutSec int `env:"POOL_IDLE_TIMEOUT_SEC,default=60"`

	ProcessDelayMs    int `env:"PROCESS_DELAY_MS,default=100"`
	ProcessTimeoutSec int `env:"PROCESS_TIMEOUT_SEC,default=30"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
