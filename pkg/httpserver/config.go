package httpserver

import "time"

// Config is the environment-driven server configuration. Zero durations
// fall back to the package defaults.
type Config struct {
	Addr              string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"` // public webhook endpoint; keep short
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"` // covers gateway retries on initiate and verify
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

var defaults = Config{
	Addr:              ":8080",
	ReadHeaderTimeout: 5 * time.Second,
	ReadTimeout:       30 * time.Second,
	WriteTimeout:      30 * time.Second,
	IdleTimeout:       120 * time.Second,
	ShutdownTimeout:   10 * time.Second,
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = defaults.Addr
	}
	for _, d := range []struct{ v, def *time.Duration }{
		{&c.ReadHeaderTimeout, &defaults.ReadHeaderTimeout},
		{&c.ReadTimeout, &defaults.ReadTimeout},
		{&c.WriteTimeout, &defaults.WriteTimeout},
		{&c.IdleTimeout, &defaults.IdleTimeout},
		{&c.ShutdownTimeout, &defaults.ShutdownTimeout},
	} {
		if *d.v <= 0 {
			*d.v = *d.def
		}
	}
	return c
}
