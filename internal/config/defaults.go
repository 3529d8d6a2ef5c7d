package config

import (
	"os"
	"path/filepath"

	"audio-converter/internal/domain"
)

// AppDirName is the per-user directory holding settings and logs.
const AppDirName = ".audio-converter"

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		OutputDir:    filepath.Join(homeDir(), "AudioConverter_Output"),
		OutputFormat: string(domain.FormatMP3),
		Channels:     string(domain.ChannelsOriginal),
		Volume:       "100",
		Workers:      1,
	}
}

// DefaultSettingsPath returns the settings file location under the user home.
func DefaultSettingsPath() string {
	return filepath.Join(homeDir(), AppDirName, "settings.json")
}

// DefaultLogPath returns the developer log file location under the user home.
func DefaultLogPath() string {
	return filepath.Join(homeDir(), AppDirName, "logs", "converter.log")
}

func homeDir() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return dir
}
