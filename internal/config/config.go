package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all runtime configuration, loaded from the environment.
// Provider credentials and base URLs are injected here rather than read
// from globals so the MT5 client can be constructed explicitly.
type Config struct {
	Port         string `env:"PORT" envDefault:"8080"`
	Env          string `env:"ENV" envDefault:"development"`
	Debug        bool   `env:"DEBUG" envDefault:"false"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"moneyx.db"`
	CORSOrigin   string `env:"CORS_ORIGIN" envDefault:"*"`

	JWTSecret string `env:"JWT_SECRET,required"`

	MT5BaseURL  string        `env:"MT5_API_BASE_URL,required"`
	MT5APIToken string        `env:"MT5_API_TOKEN,required"`
	MT5Timeout  time.Duration `env:"MT5_API_TIMEOUT" envDefault:"10s"`

	AdminEmail     string `env:"ADMIN_EMAIL" envDefault:""`
	AdminAPIKey    string `env:"ADMIN_API_KEY" envDefault:""`
	AdminAPISecret string `env:"ADMIN_API_SECRET" envDefault:""`

	// SyncSchedule is a cron expression for the periodic sync-all sweep.
	SyncSchedule      string        `env:"SYNC_SCHEDULE" envDefault:"0 * * * *"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"2m"`
	StatusCacheTTL    time.Duration `env:"STATUS_CACHE_TTL" envDefault:"30s"`
}

func Load() (Config, error) {
	var cfg Config
	return cfg, env.Parse(&cfg)
}
