package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix is the prefix shared by every environment override.
const EnvPrefix = "IMUCAP_"

// LoadEnv reads IMUCAP_* variables from the optional dotenv file at path and
// from the process environment. Process variables take precedence. A missing
// dotenv file is not an error.
func LoadEnv(path string) (map[string]string, error) {
	env := make(map[string]string)

	if path != "" {
		fileEnv, err := godotenv.Read(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
		}
		for k, v := range fileEnv {
			if strings.HasPrefix(k, EnvPrefix) {
				env[k] = v
			}
		}
	}

	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, EnvPrefix) {
			env[k] = v
		}
	}

	return env, nil
}

// FromEnv builds a partial CaptureConfig from IMUCAP_* variables.
func FromEnv(env map[string]string) (*CaptureConfig, error) {
	cfg := EmptyCaptureConfig()

	str := func(key string) *string {
		if v, ok := env[EnvPrefix+key]; ok {
			return ptrString(v)
		}
		return nil
	}

	cfg.Port = str("PORT")
	cfg.CaptureTimeout = str("CAPTURE_TIMEOUT")
	cfg.PollInterval = str("POLL_INTERVAL")
	cfg.Command = str("COMMAND")
	cfg.OutputPath = str("OUTPUT_PATH")
	cfg.Schema = str("SCHEMA")
	cfg.PlotDir = str("PLOT_DIR")
	cfg.Listen = str("LISTEN")
	cfg.AssetsHost = str("ASSETS_HOST")
	cfg.DBPath = str("DB_PATH")

	if v, ok := env[EnvPrefix+"BAUD_RATE"]; ok {
		baud, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("invalid %sBAUD_RATE %q: %w", EnvPrefix, v, err)
		}
		cfg.BaudRate = ptrInt(baud)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid environment configuration: %w", err)
	}
	return cfg, nil
}
