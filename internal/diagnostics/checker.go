package diagnostics

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/samber/lo"

	"audio-converter/internal/convert"
	"audio-converter/internal/domain"
	"audio-converter/internal/resolver"
)

// Resolver locates the transcoder executable.
type Resolver interface {
	Resolve(userPath string) (domain.ResolvedExecutable, error)
}

// Checker runs preflight checks against the transcoder, the conversion
// settings and the output directory.
type Checker struct {
	resolver   Resolver
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
	now        func() time.Time
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker(res Resolver) *Checker {
	return &Checker{
		resolver:   res,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
		now:        time.Now,
	}
}

// Run executes all checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkTranscoder(settings.TranscoderPath),
		c.checkSettings(settings),
		c.checkOutputDir(settings),
	}

	return domain.DiagnosticReport{
		GeneratedAt: c.now().UTC(),
		HasFailures: lo.SomeBy(items, func(item domain.DiagnosticItem) bool {
			return item.Status == domain.DiagnosticStatusFail
		}),
		Items: items,
	}
}

// checkTranscoder runs the three-tier resolution and reports its trace on failure.
func (c *Checker) checkTranscoder(userPath string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   domain.DiagnosticTranscoder,
		Name: "Transcoder",
	}

	exe, err := c.resolver.Resolve(userPath)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = err.Error()
		item.Fixable = true
		var resErr *resolver.ResolutionError
		if errors.As(err, &resErr) {
			item.Hint = "Searched:\n" + resolver.FormatTrace(resErr.Trace) +
				"\nInstall ffmpeg, place it next to the application, or set its path in settings."
		}
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Found at %s (%s)", exe.Path, exe.Tier)
	return item
}

// checkSettings validates the conversion parameters.
func (c *Checker) checkSettings(settings domain.Settings) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   domain.DiagnosticSettings,
		Name: "Conversion settings",
	}

	conv, err := convert.ParseSettings(settings)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = err.Error()
		item.Hint = "Fix the highlighted value in settings before starting a batch."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	if conv.Custom {
		item.Message = fmt.Sprintf("Output %s with custom parameters", conv.Format)
	} else {
		item.Message = fmt.Sprintf("Output %s with transcoder defaults", conv.Format)
	}
	return item
}

// checkOutputDir validates output directory existence and write access.
func (c *Checker) checkOutputDir(settings domain.Settings) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   domain.DiagnosticOutputDir,
		Name: "Output directory",
	}

	if settings.SiblingOutput {
		item.Status = domain.DiagnosticStatusSkip
		item.Message = "Outputs are written next to each source file."
		return item
	}

	outputDir := strings.TrimSpace(settings.OutputDir)
	if outputDir == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Output directory is empty."
		item.Hint = "Set an output directory or enable writing next to the source files."
		return item
	}

	if err := c.mkdirAll(outputDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create output directory: %s", outputDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		item.Fixable = true
		return item
	}

	tmpFile, err := c.createTemp(outputDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Output directory is not writable: %s", outputDir)
		item.Hint = "Choose a writable directory for converted files."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", outputDir)
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	res Resolver,
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		resolver:   res,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
		now:        time.Now,
	}
}
