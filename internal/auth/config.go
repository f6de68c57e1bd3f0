package auth

import (
	"github.com/caarlos0/env/v11"
)

// Config holds user and actor-resolution settings.
type Config struct {
	// HashAlgorithm selects the password hash (bcrypt or argon2).
	HashAlgorithm string `env:"AUTH_HASH_ALGORITHM" envDefault:"bcrypt"`
	// BcryptCost is the bcrypt cost factor.
	BcryptCost int `env:"AUTH_BCRYPT_COST" envDefault:"12"`
	// Argon2Time is the argon2 time parameter.
	Argon2Time uint32 `env:"AUTH_ARGON2_TIME" envDefault:"1"`
	// Argon2Memory is the argon2 memory parameter in KB.
	Argon2Memory uint32 `env:"AUTH_ARGON2_MEMORY" envDefault:"65536"`
	// Argon2Threads is the argon2 parallelism parameter.
	Argon2Threads uint8 `env:"AUTH_ARGON2_THREADS" envDefault:"4"`
	// DefaultPassword is assigned to every newly created user.
	DefaultPassword string `env:"AUTH_DEFAULT_PASSWORD" envDefault:"changeme"`
	// DefaultActor is recorded when a request carries no known token.
	DefaultActor string `env:"AUTH_DEFAULT_ACTOR" envDefault:"admin"`
	// LoginRatePerMinute bounds login attempts per username.
	LoginRatePerMinute int `env:"AUTH_LOGIN_RATE_PER_MIN" envDefault:"10"`
}

// LoadConfig loads auth configuration from environment variables.
func LoadConfig() Config {
	var cfg Config
	_ = env.Parse(&cfg)
	if cfg.DefaultActor == "" {
		cfg.DefaultActor = DefaultActor
	}
	return cfg
}
