package anchor

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	PriceFeedURL     string        `env:"PRICE_FEED_URL"      envDefault:"https://api.coinbase.com/v2/prices/BTC-USD/spot"`
	PriceFeedField   string        `env:"PRICE_FEED_FIELD"    envDefault:"data.amount"`
	PriceFeedTimeout time.Duration `env:"PRICE_FEED_TIMEOUT"  envDefault:"0s"`
	MaxUploadBytes   int64         `env:"MAX_UPLOAD_BYTES"    envDefault:"33554432"`
	UploadRatePerMin int           `env:"UPLOAD_RATE_PER_MIN" envDefault:"30"`
}

func LoadConfig() Config {
	var cfg Config
	_ = env.Parse(&cfg)
	return cfg
}
