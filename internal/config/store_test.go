package config

import (
	"os"
	"path/filepath"
	"testing"

	"audio-converter/internal/domain"
)

// TestDefaultSettings verifies baseline defaults are present.
func TestDefaultSettings(t *testing.T) {
	cfg := DefaultSettings()
	if cfg.OutputFormat != "mp3" {
		t.Fatalf("format = %q, want mp3", cfg.OutputFormat)
	}
	if cfg.Channels != "original" {
		t.Fatalf("channels = %q, want original", cfg.Channels)
	}
	if cfg.Workers != 1 {
		t.Fatalf("workers = %d, want 1", cfg.Workers)
	}
	if filepath.Base(cfg.OutputDir) != "AudioConverter_Output" {
		t.Fatalf("output dir = %q", cfg.OutputDir)
	}
}

// TestJSONStoreLoadMissingReturnsDefaults checks first-run behavior.
func TestJSONStoreLoadMissingReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "settings.json")
	store := NewJSONStore(path)

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != DefaultSettings() {
		t.Fatalf("settings = %+v, want defaults", got)
	}
}

// TestJSONStoreSaveAndLoadRoundTrip checks persisted settings fidelity.
func TestJSONStoreSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	store := NewJSONStore(path)
	want := domain.Settings{
		TranscoderPath: "/opt/ffmpeg/bin/ffmpeg",
		OutputDir:      "/out",
		OutputFormat:   "flac",
		CustomEnabled:  true,
		Bitrate:        "192",
		SampleRate:     "44100",
		Channels:       "stereo",
		Volume:         "120",
		Workers:        4,
	}

	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Fatalf("settings = %+v, want %+v", got, want)
	}
}

// TestJSONStoreLoadPartialFileKeepsDefaults checks older files missing keys.
func TestJSONStoreLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"transcoderPath":"/usr/bin/ffmpeg"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := NewJSONStore(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.TranscoderPath != "/usr/bin/ffmpeg" {
		t.Fatalf("transcoder = %q", got.TranscoderPath)
	}
	if got.OutputFormat != "mp3" || got.Volume != "100" || got.Workers != 1 {
		t.Fatalf("defaults not kept: %+v", got)
	}
}

// TestJSONStoreLoadInvalidJSON checks parse error handling.
func TestJSONStoreLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not-json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store := NewJSONStore(path)
	if _, err := store.Load(); err == nil {
		t.Fatal("expected json parse error")
	}
}
