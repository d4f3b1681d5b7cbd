package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// EnvFileName is read from the config file's directory before environment
// overrides are applied, so secrets such as HF_TOKEN can stay out of the
// TOML file.
const EnvFileName = ".env"

// loadEnvFile exports the variables in dir/.env that are not already set.
// A missing file is not an error.
func loadEnvFile(dir string) error {
	if dir == "" {
		return nil
	}
	path := filepath.Join(dir, EnvFileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}
