// Package config loads typed configuration structs from the environment.
//
// It wraps github.com/joho/godotenv (a .env file is read once, if present)
// and github.com/caarlos0/env/v11 (struct tags). Each configuration type is
// parsed once and cached for the life of the process.
//
//	type GatewayConfig struct {
//		SecretKey string        `env:"GATEWAY_SECRET_KEY,required"`
//		Timeout   time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"10s"`
//	}
//
//	var cfg GatewayConfig
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
package config
