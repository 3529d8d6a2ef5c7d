package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"audio-converter/internal/convert"
	"audio-converter/internal/domain"
)

var (
	// ErrNoFiles is returned when a batch is planned without sources.
	ErrNoFiles = errors.New("no input files")
	// ErrUnsupportedInput is returned for sources outside the allow-list.
	ErrUnsupportedInput = errors.New("unsupported input file")
	// ErrSourceMissing is returned when a source is not a readable regular file.
	ErrSourceMissing = errors.New("input file not found")
)

// Resolver locates the transcoder for a batch.
type Resolver interface {
	Resolve(userPath string) (domain.ResolvedExecutable, error)
}

// Plan is a validated batch ready for submission.
type Plan struct {
	Jobs       []domain.AudioJob
	Executable domain.ResolvedExecutable
	Settings   domain.ConversionSettings
	Policy     convert.OutputPolicy
	Workers    int
}

// Request converts the plan into an orchestrator request.
func (p Plan) Request() Request {
	return Request{
		Jobs:       p.Jobs,
		Executable: p.Executable,
		Settings:   p.Settings,
		Workers:    p.Workers,
	}
}

// Planner validates inputs and settings, resolves the transcoder, and builds
// jobs. Any failure is reported before a single process is launched.
type Planner struct {
	resolver Resolver
	builder  *convert.Builder
	marker   string
	stat     func(string) (os.FileInfo, error)
}

// NewPlanner creates a planner using the default output marker.
func NewPlanner(resolver Resolver, builder *convert.Builder) *Planner {
	return &Planner{resolver: resolver, builder: builder, marker: convert.DefaultMarker, stat: os.Stat}
}

// WithMarker overrides the conversion marker appended to output names.
func (p *Planner) WithMarker(marker string) *Planner {
	p.marker = marker
	return p
}

// PolicyFor derives the output policy from persisted settings.
func (p *Planner) PolicyFor(settings domain.Settings) convert.OutputPolicy {
	dir := strings.TrimSpace(settings.OutputDir)
	if settings.SiblingOutput {
		dir = ""
	}
	return convert.OutputPolicy{Dir: dir, Marker: p.marker}
}

// Plan validates files, parses settings, resolves the transcoder and builds
// jobs. Sources are compared by absolute path.
func (p *Planner) Plan(files []string, settings domain.Settings) (Plan, error) {
	sources := lo.Uniq(lo.FilterMap(files, func(f string, _ int) (string, bool) {
		f = strings.TrimSpace(f)
		if f == "" {
			return "", false
		}
		if abs, err := filepath.Abs(f); err == nil {
			f = abs
		}
		return f, true
	}))
	if len(sources) == 0 {
		return Plan{}, ErrNoFiles
	}

	unsupported := lo.Reject(sources, func(f string, _ int) bool {
		return domain.IsSupportedInput(f)
	})
	if len(unsupported) > 0 {
		return Plan{}, fmt.Errorf("%w: %s", ErrUnsupportedInput, strings.Join(unsupported, ", "))
	}

	missing := lo.Filter(sources, func(f string, _ int) bool {
		info, err := p.stat(f)
		return err != nil || !info.Mode().IsRegular()
	})
	if len(missing) > 0 {
		return Plan{}, fmt.Errorf("%w: %s", ErrSourceMissing, strings.Join(missing, ", "))
	}

	conv, err := convert.ParseSettings(settings)
	if err != nil {
		return Plan{}, err
	}

	exe, err := p.resolver.Resolve(settings.TranscoderPath)
	if err != nil {
		return Plan{}, err
	}

	policy := p.PolicyFor(settings)
	jobs, err := p.builder.BuildJobs(sources, conv, policy)
	if err != nil {
		return Plan{}, err
	}

	return Plan{
		Jobs:       jobs,
		Executable: exe,
		Settings:   conv,
		Policy:     policy,
		Workers:    ClampWorkers(settings.Workers),
	}, nil
}
