// internal/workers/execution/execute-scheduled/config.go
package executescheduled

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 300 * time.Second,
	}
}
