package resolver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"

	"audio-converter/internal/domain"
)

// DefaultBinary is the transcoder name searched for on every tier.
const DefaultBinary = "ffmpeg"

// ErrExecutableNotFound is returned when every search tier is exhausted.
var ErrExecutableNotFound = errors.New("transcoder executable not found")

// ResolutionError carries the full search trace of a failed resolution.
type ResolutionError struct {
	Binary string
	Trace  []domain.ProbeAttempt
}

// Error summarises the failure for logs and UI.
func (e *ResolutionError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s (checked %d locations)", ErrExecutableNotFound, e.Binary, len(e.Trace))
}

// Is lets errors.Is match ErrExecutableNotFound.
func (e *ResolutionError) Is(target error) bool {
	return target == ErrExecutableNotFound
}

// Resolver locates the transcoder using user path, app directory, then PATH.
// It only reads the filesystem and never caches results.
type Resolver struct {
	binary       string
	goos         string
	stat         func(string) (os.FileInfo, error)
	executable   func() (string, error)
	evalSymlinks func(string) (string, error)
	getenv       func(string) string
}

// New builds a resolver for ffmpeg using real OS dependencies.
func New() *Resolver {
	return &Resolver{
		binary:       DefaultBinary,
		goos:         goruntime.GOOS,
		stat:         os.Stat,
		executable:   os.Executable,
		evalSymlinks: filepath.EvalSymlinks,
		getenv:       os.Getenv,
	}
}

// NewForTests creates a resolver with injectable dependencies.
func NewForTests(
	binary string,
	goos string,
	stat func(string) (os.FileInfo, error),
	executable func() (string, error),
	getenv func(string) string,
) *Resolver {
	return &Resolver{
		binary:       binary,
		goos:         goos,
		stat:         stat,
		executable:   executable,
		evalSymlinks: func(path string) (string, error) { return path, nil },
		getenv:       getenv,
	}
}

// BinaryName returns the platform-specific file name searched for.
func (r *Resolver) BinaryName() string {
	if r.goos == "windows" && !strings.EqualFold(filepath.Ext(r.binary), ".exe") {
		return r.binary + ".exe"
	}
	return r.binary
}

// Resolve runs the three-tier search and returns the first valid candidate.
func (r *Resolver) Resolve(userPath string) (domain.ResolvedExecutable, error) {
	name := r.BinaryName()
	trace := make([]domain.ProbeAttempt, 0, 8)

	if configured := strings.TrimSpace(userPath); configured != "" {
		attempt := r.probe(domain.TierUserConfigured, configured)
		trace = append(trace, attempt)
		if attempt.Result == domain.ProbeFound {
			return found(attempt, trace), nil
		}
	}

	appDir, err := r.appDir()
	if err != nil {
		trace = append(trace, domain.ProbeAttempt{
			Tier:   domain.TierCoLocated,
			Result: domain.ProbeIgnored,
			Detail: fmt.Sprintf("cannot locate running executable: %v", err),
		})
	} else {
		attempt := r.probe(domain.TierCoLocated, filepath.Join(appDir, name))
		trace = append(trace, attempt)
		if attempt.Result == domain.ProbeFound {
			return found(attempt, trace), nil
		}
	}

	for _, dir := range filepath.SplitList(r.getenv("PATH")) {
		if dir == "" || !filepath.IsAbs(dir) {
			trace = append(trace, domain.ProbeAttempt{
				Tier:   domain.TierSystemPath,
				Path:   dir,
				Result: domain.ProbeIgnored,
				Detail: "relative or empty PATH entry",
			})
			continue
		}

		attempt := r.probe(domain.TierSystemPath, filepath.Join(dir, name))
		trace = append(trace, attempt)
		if attempt.Result == domain.ProbeFound {
			return found(attempt, trace), nil
		}
	}

	return domain.ResolvedExecutable{}, &ResolutionError{Binary: name, Trace: trace}
}

// appDir returns the directory holding the running binary, symlinks resolved.
func (r *Resolver) appDir() (string, error) {
	exe, err := r.executable()
	if err != nil {
		return "", err
	}
	if resolved, err := r.evalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

// probe validates one candidate as an existing executable regular file.
func (r *Resolver) probe(tier domain.ResolutionTier, path string) domain.ProbeAttempt {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	attempt := domain.ProbeAttempt{Tier: tier, Path: path}

	info, err := r.stat(path)
	if err != nil {
		attempt.Result = domain.ProbeNotFound
		if !errors.Is(err, fs.ErrNotExist) {
			attempt.Detail = err.Error()
		}
		return attempt
	}
	if !info.Mode().IsRegular() {
		attempt.Result = domain.ProbeNotAFile
		return attempt
	}
	if !r.isExecutable(path, info) {
		attempt.Result = domain.ProbeNotExecutable
		return attempt
	}

	attempt.Result = domain.ProbeFound
	return attempt
}

func (r *Resolver) isExecutable(path string, info os.FileInfo) bool {
	if r.goos == "windows" {
		ext := strings.ToLower(filepath.Ext(path))
		return ext == ".exe" || ext == ".com"
	}
	return info.Mode().Perm()&0o111 != 0
}

func found(attempt domain.ProbeAttempt, trace []domain.ProbeAttempt) domain.ResolvedExecutable {
	return domain.ResolvedExecutable{
		Path:  attempt.Path,
		Tier:  attempt.Tier,
		Trace: trace,
	}
}

// FormatTrace renders a trace as one line per probed location.
func FormatTrace(trace []domain.ProbeAttempt) string {
	var b strings.Builder
	for i, attempt := range trace {
		if i > 0 {
			b.WriteByte('\n')
		}
		path := attempt.Path
		if path == "" {
			path = "(none)"
		}
		fmt.Fprintf(&b, "[%s] %s: %s", attempt.Tier, path, attempt.Result)
		if attempt.Detail != "" {
			fmt.Fprintf(&b, " (%s)", attempt.Detail)
		}
	}
	return b.String()
}
