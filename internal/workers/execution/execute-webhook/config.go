// internal/workers/execution/execute-webhook/config.go
package executewebhook

import "time"

type Config struct {
	Timeout     time.Duration
	Temperature float64
}

func LoadConfig() *Config {
	return &Config{
		Timeout:     120 * time.Second,
		Temperature: 0.7,
	}
}
