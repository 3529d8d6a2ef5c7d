package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"testing"

	"audio-converter/internal/batch"
	"audio-converter/internal/convert"
	"audio-converter/internal/domain"
	"audio-converter/internal/resolver"
)

// TestExitCodeMapping checks each pre-batch error class.
func TestExitCodeMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: exitOK},
		{name: "resolver", err: &resolver.ResolutionError{Binary: "ffmpeg"}, want: exitNoTranscoder},
		{name: "settings", err: &convert.SettingsError{Field: "bitrate", Value: "-5", Reason: "must be positive"}, want: exitInvalidInput},
		{name: "no files", err: batch.ErrNoFiles, want: exitInvalidInput},
		{name: "unsupported", err: fmt.Errorf("%w: a.txt", batch.ErrUnsupportedInput), want: exitInvalidInput},
		{name: "missing source", err: fmt.Errorf("%w: /music/gone.wav", batch.ErrSourceMissing), want: exitInvalidInput},
		{name: "usage", err: fmt.Errorf("%w: bad flag", errUsage), want: exitInvalidInput},
		{name: "other", err: errors.New("disk on fire"), want: exitFailures},
	}

	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Fatalf("%s: exitCode = %d, want %d", tt.name, got, tt.want)
		}
	}
}

// TestResultExitCode checks failures and cancellation map to 1.
func TestResultExitCode(t *testing.T) {
	if got := resultExitCode(domain.BatchResult{Attempted: 2, Succeeded: 1, Skipped: 1}); got != exitOK {
		t.Fatalf("skipped only = %d, want 0", got)
	}
	if got := resultExitCode(domain.BatchResult{Attempted: 2, Succeeded: 1, Failed: 1}); got != exitFailures {
		t.Fatalf("with failure = %d, want 1", got)
	}
	if got := resultExitCode(domain.BatchResult{Attempted: 1, Succeeded: 1, NotRun: 1, Cancelled: true}); got != exitFailures {
		t.Fatalf("cancelled = %d, want 1", got)
	}
}

// TestParseFlagsAppliesOnlyExplicitOverrides checks persisted values survive unset flags.
func TestParseFlagsAppliesOnlyExplicitOverrides(t *testing.T) {
	opts, err := parseFlags([]string{"-format", "flac", "-out", "/tmp/x", "a.wav", "b.wav"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	settings := domain.Settings{OutputFormat: "mp3", Bitrate: "256", SiblingOutput: true}
	opts.overrides(&settings)

	if settings.OutputFormat != "flac" || settings.OutputDir != "/tmp/x" || settings.SiblingOutput {
		t.Fatalf("settings = %+v", settings)
	}
	if settings.Bitrate != "256" {
		t.Fatalf("bitrate = %s, want unchanged 256", settings.Bitrate)
	}
	if len(opts.files) != 2 {
		t.Fatalf("files = %v", opts.files)
	}

	if _, err := parseFlags([]string{"-workers", "many"}, &bytes.Buffer{}); !errors.Is(err, errUsage) {
		t.Fatalf("error = %v, want errUsage", err)
	}
}

// TestRunExitCodes drives the command end to end with a fake transcoder.
func TestRunExitCodes(t *testing.T) {
	if goruntime.GOOS == "windows" {
		t.Skip("shell script transcoder is POSIX-only")
	}
	root := t.TempDir()
	script := filepath.Join(root, "ffmpeg")
	body := "#!/bin/sh\nfor last; do :; done\ncase \"$*\" in *broken*) echo 'decode error' >&2; exit 1 ;; esac\necho ok > \"$last\"\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	for _, name := range []string{"a.wav", "broken.wav"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("RIFF"), 0o644); err != nil {
			t.Fatalf("write source: %v", err)
		}
	}

	base := []string{
		"-settings", filepath.Join(root, "settings.json"),
		"-env", filepath.Join(root, ".env"),
		"-log", "",
		"-sibling",
		"-format", "mp3",
	}
	withArgs := func(extra ...string) []string {
		return append(append([]string(nil), base...), extra...)
	}

	var stdout, stderr bytes.Buffer
	if code := run(withArgs("-transcoder", script, filepath.Join(root, "a.wav")), &stdout, &stderr); code != exitOK {
		t.Fatalf("success run exit = %d, stderr = %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Succeeded: 1") {
		t.Fatalf("stdout = %s", stdout.String())
	}

	stdout.Reset()
	if code := run(withArgs("-transcoder", script, filepath.Join(root, "a.wav"), filepath.Join(root, "broken.wav")), &stdout, &stderr); code != exitFailures {
		t.Fatalf("failing run exit = %d", code)
	}
	if !strings.Contains(stdout.String(), "| decode error") {
		t.Fatalf("report missing tail: %s", stdout.String())
	}

	if code := run(withArgs("-transcoder", script, "-custom", "-bitrate", "-5", filepath.Join(root, "a.wav")), &stdout, &stderr); code != exitInvalidInput {
		t.Fatalf("invalid settings exit = %d, want %d", code, exitInvalidInput)
	}
	if code := run(withArgs("-transcoder", script), &stdout, &stderr); code != exitInvalidInput {
		t.Fatalf("no files exit = %d, want %d", code, exitInvalidInput)
	}
}
