package storage

import (
	"github.com/caarlos0/env/v11"
)

// Config selects and configures the storage backends.
type Config struct {
	BlobBackend    string `env:"BLOB_BACKEND"    envDefault:"memory"`
	PointerBackend string `env:"POINTER_BACKEND" envDefault:"memory"`

	SQLitePath  string `env:"SQLITE_PATH"  envDefault:"custodian.db"`
	PostgresDSN string `env:"POSTGRES_DSN"`

	RedisAddr     string `env:"REDIS_ADDR"      envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"        envDefault:"0"`
	RedisPrefix   string `env:"REDIS_KEY_PREFIX" envDefault:"custodian:"`

	DataBucket   string `env:"DATA_BUCKET"   envDefault:"data"`
	AuditBucket  string `env:"AUDIT_BUCKET"  envDefault:"audit-logs"`
	BlocksBucket string `env:"BLOCKS_BUCKET" envDefault:"blocks"`
}

// LoadConfig reads storage settings from the environment.
func LoadConfig() Config {
	var cfg Config
	_ = env.Parse(&cfg)
	if cfg.BlobBackend == "" {
		cfg.BlobBackend = "memory"
	}
	if cfg.PointerBackend == "" {
		cfg.PointerBackend = "memory"
	}
	return cfg
}
