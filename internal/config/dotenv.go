package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// DotEnvVar names a variable that points at an alternative .env file.
const DotEnvVar = AppName + "_DOTENV"

// LoadDotEnv loads variables from .env, or from the file named by
// CALCULATOR_DOTENV, when present. Existing process variables are not
// overridden. A missing default file is not an error; a missing explicit
// file is.
func LoadDotEnv() error {
	path := os.Getenv(DotEnvVar)
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	err := godotenv.Load(path)
	if err == nil {
		return nil
	}

	if errors.Is(err, os.ErrNotExist) && !explicit {
		return nil
	}

	return fmt.Errorf("load %s: %w", path, err)
}
