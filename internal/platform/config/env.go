package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix namespaces every environment variable read by statecraft processes.
const EnvPrefix = "STATECRAFT_"

// ParseEnv loads configuration from prefixed environment variables.
//
// Struct tags name variables without the shared prefix, so a field tagged
// `env:"CHRONICLE_HTTP_PORT"` reads STATECRAFT_CHRONICLE_HTTP_PORT.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
