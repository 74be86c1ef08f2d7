// Package config содержит логику чтения конфигурации сервиса корзины и клиента витрины.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress = "localhost:8080"
	defaultHubLat     = 40.7128
	defaultHubLng     = -74.0060
)

// Config содержит параметры конфигурации.
type Config struct {
	RunAddress         string        `env:"RUN_ADDRESS"`
	DatabaseURI        string        `env:"DATABASE_URI"`
	CartServiceAddress string        `env:"CART_SERVICE_ADDRESS"`
	RedisAddress       string        `env:"REDIS_ADDRESS"`
	GeocoderAddress    string        `env:"GEOCODER_ADDRESS"`
	AuthSecret         string        `env:"AUTH_SECRET"`
	HubLat             float64       `env:"HUB_LAT"`
	HubLng             float64       `env:"HUB_LNG"`
	SyncDebounce       time.Duration `env:"SYNC_DEBOUNCE"`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT"`
	AuthToken          string        `env:"AUTH_TOKEN"`
	UserID             string        `env:"USER_ID"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fromEnv := *cfg

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.CartServiceAddress, "r", "", "remote cart service address")
	flag.StringVar(&cfg.RedisAddress, "redis", "", "redis address for the local cart snapshot")
	flag.StringVar(&cfg.GeocoderAddress, "g", "", "geocoding service address")
	flag.StringVar(&cfg.AuthSecret, "secret", "", "auth cookie signing secret")
	flag.Float64Var(&cfg.HubLat, "hub-lat", defaultHubLat, "delivery hub latitude")
	flag.Float64Var(&cfg.HubLng, "hub-lng", defaultHubLng, "delivery hub longitude")
	flag.DurationVar(&cfg.SyncDebounce, "debounce", time.Second, "cart sync debounce window")
	flag.DurationVar(&cfg.RequestTimeout, "timeout", 10*time.Second, "remote request timeout")

	flag.Parse()

	if fromEnv.RunAddress != "" {
		cfg.RunAddress = fromEnv.RunAddress
	}
	if fromEnv.DatabaseURI != "" {
		cfg.DatabaseURI = fromEnv.DatabaseURI
	}
	if fromEnv.CartServiceAddress != "" {
		cfg.CartServiceAddress = fromEnv.CartServiceAddress
	}
	if fromEnv.RedisAddress != "" {
		cfg.RedisAddress = fromEnv.RedisAddress
	}
	if fromEnv.GeocoderAddress != "" {
		cfg.GeocoderAddress = fromEnv.GeocoderAddress
	}
	if fromEnv.AuthSecret != "" {
		cfg.AuthSecret = fromEnv.AuthSecret
	}
	if fromEnv.HubLat != 0 {
		cfg.HubLat = fromEnv.HubLat
	}
	if fromEnv.HubLng != 0 {
		cfg.HubLng = fromEnv.HubLng
	}
	if fromEnv.SyncDebounce != 0 {
		cfg.SyncDebounce = fromEnv.SyncDebounce
	}
	if fromEnv.RequestTimeout != 0 {
		cfg.RequestTimeout = fromEnv.RequestTimeout
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}

	return cfg, nil
}

// Args возвращает позиционные аргументы после флагов.
func Args() []string {
	return flag.Args()
}
