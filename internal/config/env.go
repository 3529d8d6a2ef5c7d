package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"audio-converter/internal/domain"
)

// Environment keys that override persisted settings.
const (
	EnvTranscoder = "AUDIOCONV_TRANSCODER"
	EnvOutputDir  = "AUDIOCONV_OUTPUT_DIR"
	EnvFormat     = "AUDIOCONV_FORMAT"
	EnvWorkers    = "AUDIOCONV_WORKERS"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// EnvLookup combines the process environment with values from an optional
// dotenv file. Process variables win. A missing file is not an error.
func EnvLookup(dotenvPath string) (LookupFunc, error) {
	fileVars := map[string]string{}
	if strings.TrimSpace(dotenvPath) != "" {
		vars, err := godotenv.Read(dotenvPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read env file %s: %w", dotenvPath, err)
		}
		if vars != nil {
			fileVars = vars
		}
	}

	return func(key string) (string, bool) {
		if value, ok := os.LookupEnv(key); ok {
			return value, true
		}
		value, ok := fileVars[key]
		return value, ok
	}, nil
}

// ApplyEnv overlays environment overrides onto settings.
func ApplyEnv(settings domain.Settings, lookup LookupFunc) (domain.Settings, error) {
	if lookup == nil {
		return settings, nil
	}

	if value, ok := lookup(EnvTranscoder); ok && strings.TrimSpace(value) != "" {
		settings.TranscoderPath = strings.TrimSpace(value)
	}
	if value, ok := lookup(EnvOutputDir); ok && strings.TrimSpace(value) != "" {
		settings.OutputDir = strings.TrimSpace(value)
		settings.SiblingOutput = false
	}
	if value, ok := lookup(EnvFormat); ok && strings.TrimSpace(value) != "" {
		settings.OutputFormat = strings.TrimSpace(value)
	}
	if value, ok := lookup(EnvWorkers); ok && strings.TrimSpace(value) != "" {
		workers, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || workers < 1 {
			return settings, fmt.Errorf("%s must be a positive integer, got %q", EnvWorkers, value)
		}
		settings.Workers = workers
	}

	return settings, nil
}
