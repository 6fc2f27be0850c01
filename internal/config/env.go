package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/profilekeeper/internal/flagx"
)

// loadDotenv is a seam over godotenv.Load.
var loadDotenv = godotenv.Load

// parseEnv loads .env files into the process environment (without overriding
// variables already set) and then overlays PROFILEKEEPER_* variables onto
// config. Variables that are not set leave the field untouched.
func parseEnv(config *Config, args []string) error {
	files := append([]string{".env"}, flagx.EnvFiles(args)...)
	for _, f := range files {
		if err := loadDotenv(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}

	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
