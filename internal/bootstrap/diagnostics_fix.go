package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	goruntime "runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"audio-converter/internal/config"
	"audio-converter/internal/domain"
	"audio-converter/internal/resolver"
)

const installStepTimeout = 45 * time.Minute

// packageRecipe is the ordered command list one package manager needs to
// install the transcoder.
type packageRecipe struct {
	manager  string
	steps    [][]string
	elevated bool
}

// transcoderRecipes lists package managers per OS in preference order.
func transcoderRecipes(goos string) []packageRecipe {
	switch goos {
	case "windows":
		return []packageRecipe{
			{manager: "winget", steps: [][]string{{"winget", "install", "--id", "Gyan.FFmpeg", "--exact", "--accept-source-agreements", "--accept-package-agreements"}}},
			{manager: "choco", steps: [][]string{{"choco", "install", "ffmpeg", "-y"}}},
			{manager: "scoop", steps: [][]string{{"scoop", "install", "ffmpeg"}}},
		}
	case "darwin":
		return []packageRecipe{
			{manager: "brew", steps: [][]string{{"brew", "install", "ffmpeg"}}},
		}
	default:
		return []packageRecipe{
			{manager: "apt-get", elevated: true, steps: [][]string{{"apt-get", "update"}, {"apt-get", "install", "-y", "ffmpeg"}}},
			{manager: "dnf", elevated: true, steps: [][]string{{"dnf", "install", "-y", "ffmpeg"}}},
			{manager: "pacman", elevated: true, steps: [][]string{{"pacman", "-Sy", "--noconfirm", "ffmpeg"}}},
			{manager: "zypper", elevated: true, steps: [][]string{{"zypper", "install", "-y", "ffmpeg"}}},
			{manager: "brew", steps: [][]string{{"brew", "install", "ffmpeg"}}},
		}
	}
}

// transcoderInstaller installs the transcoder with the first package manager
// present on the host.
type transcoderInstaller struct {
	goos     string
	lookPath func(string) (string, error)
	run      func(ctx context.Context, argv []string) ([]byte, error)
}

func newTranscoderInstaller() *transcoderInstaller {
	return &transcoderInstaller{
		goos:     goruntime.GOOS,
		lookPath: exec.LookPath,
		run: func(ctx context.Context, argv []string) ([]byte, error) {
			return exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
		},
	}
}

// Install returns the manager that succeeded, or every manager's failure.
func (i *transcoderInstaller) Install(ctx context.Context) (string, error) {
	var failures []error
	for _, recipe := range transcoderRecipes(i.goos) {
		if !i.available(recipe.manager) {
			continue
		}
		if err := i.apply(ctx, recipe); err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", recipe.manager, err))
			continue
		}
		return recipe.manager, nil
	}
	if len(failures) == 0 {
		return "", fmt.Errorf("no supported package manager found for %s", i.goos)
	}
	return "", errors.Join(failures...)
}

func (i *transcoderInstaller) apply(ctx context.Context, recipe packageRecipe) error {
	for _, step := range recipe.steps {
		var attempts []error
		done := false
		for _, argv := range i.elevations(step, recipe.elevated) {
			err := i.step(ctx, argv)
			if err == nil {
				done = true
				break
			}
			attempts = append(attempts, err)
		}
		if !done {
			return errors.Join(attempts...)
		}
	}
	return nil
}

// elevations yields the step as-is, then wrapped by pkexec and non-interactive sudo.
func (i *transcoderInstaller) elevations(step []string, elevated bool) [][]string {
	variants := [][]string{step}
	if !elevated || i.goos != "linux" {
		return variants
	}
	if i.available("pkexec") {
		variants = append(variants, append([]string{"pkexec"}, step...))
	}
	if i.available("sudo") {
		variants = append(variants, append([]string{"sudo", "-n"}, step...))
	}
	return variants
}

func (i *transcoderInstaller) step(ctx context.Context, argv []string) error {
	ctx, cancel := context.WithTimeout(ctx, installStepTimeout)
	defer cancel()

	command := strings.Join(argv, " ")
	output, err := i.run(ctx, argv)
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out after %s", command, installStepTimeout)
	}
	if tail := lastLine(string(output)); tail != "" {
		return fmt.Errorf("%s: %w (%s)", command, err, tail)
	}
	return fmt.Errorf("%s: %w", command, err)
}

func (i *transcoderInstaller) available(name string) bool {
	_, err := i.lookPath(name)
	return err == nil
}

func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// InstallOrFixDiagnostic applies the remediation for one failed diagnostic item.
func (a *App) InstallOrFixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	if a.Store == nil {
		return domain.DiagnosticReport{}, fmt.Errorf("settings store is not configured")
	}

	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	settings = normalizeSettings(settings)

	changed := false
	var fixErr error
	switch id {
	case domain.DiagnosticTranscoder:
		fixErr = a.fixTranscoder(settings)
	case domain.DiagnosticOutputDir:
		settings, changed, fixErr = installOrFixOutputDir(settings)
	default:
		return domain.DiagnosticReport{}, fmt.Errorf("unsupported diagnostic item id: %s", id)
	}

	if changed {
		if saveErr := a.Store.Save(settings); saveErr != nil {
			report := a.refreshDiagnosticsFromSettings(settings)
			return report, fmt.Errorf("save settings after fix: %w", saveErr)
		}
	}

	report, err := a.RefreshDiagnostics()
	if err != nil {
		return report, err
	}
	if fixErr != nil {
		a.log.Warn("diagnostic fix failed", zap.String("item", id), zap.Error(fixErr))
		return report, fixErr
	}
	return report, nil
}

// fixTranscoder installs the transcoder unless the resolver already finds
// one, then resolves again so the reported tier reflects the real lookup.
func (a *App) fixTranscoder(settings domain.Settings) error {
	if exe, err := a.resolver.Resolve(settings.TranscoderPath); err == nil {
		a.log.Info("transcoder already available", zap.String("tier", string(exe.Tier)), zap.String("path", exe.Path))
		return nil
	}

	manager, err := a.installer.Install(context.Background())
	if err != nil {
		return fmt.Errorf("install transcoder: %w", err)
	}

	exe, err := a.resolver.Resolve(settings.TranscoderPath)
	if err != nil {
		var resErr *resolver.ResolutionError
		if errors.As(err, &resErr) {
			return fmt.Errorf("installed with %s but the transcoder is still not found; searched:\n%s: %w",
				manager, resolver.FormatTrace(resErr.Trace), err)
		}
		return fmt.Errorf("installed with %s but the transcoder is still not found: %w", manager, err)
	}
	a.log.Info("transcoder installed",
		zap.String("manager", manager),
		zap.String("tier", string(exe.Tier)),
		zap.String("path", exe.Path),
	)
	return nil
}

// installOrFixOutputDir creates the output directory, falling back to the
// default location when none is configured.
func installOrFixOutputDir(settings domain.Settings) (domain.Settings, bool, error) {
	outputDir := strings.TrimSpace(settings.OutputDir)
	changed := false
	if outputDir == "" {
		outputDir = config.DefaultSettings().OutputDir
		settings.OutputDir = outputDir
		changed = true
	}
	if settings.SiblingOutput {
		settings.SiblingOutput = false
		changed = true
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return settings, changed, fmt.Errorf("create output directory %s: %w", outputDir, err)
	}
	return settings, changed, nil
}
