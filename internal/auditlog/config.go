package auditlog

import "github.com/caarlos0/env/v11"

// Config controls where the chain head lives and how it is advanced.
type Config struct {
	// HeadKey is the pointer-store key holding the newest entry hash.
	HeadKey string `env:"AUDIT_HEAD_KEY" envDefault:"LATEST_HASH"`
	// StrictHead advances the head with compare-and-swap and fails the append
	// when another writer moved it first. Off by default: the plain overwrite
	// lets concurrent writers fork the chain.
	StrictHead bool `env:"AUDIT_STRICT_HEAD" envDefault:"false"`
}

func LoadConfig() Config {
	var cfg Config
	_ = env.Parse(&cfg)
	if cfg.HeadKey == "" {
		cfg.HeadKey = DefaultHeadKey
	}
	return cfg
}
