package custody

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// DeletedRetention is how long deleted todos, items and progress stay
	// restorable before Snapshot prunes them.
	DeletedRetention time.Duration `env:"DELETED_RETENTION" envDefault:"480h"`
}

func LoadConfig() Config {
	var cfg Config
	_ = env.Parse(&cfg)
	if cfg.DeletedRetention <= 0 {
		cfg.DeletedRetention = 20 * 24 * time.Hour
	}
	return cfg
}
