package convert

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"audio-converter/internal/domain"
)

// DefaultMarker is appended to the source stem in output file names.
const DefaultMarker = "_converted"

// OutputPolicy selects where converted files are written. An empty Dir
// writes next to the source file. Marker is used verbatim.
type OutputPolicy struct {
	Dir    string
	Marker string
}

// SiblingPolicy writes outputs beside their sources with the default marker.
func SiblingPolicy() OutputPolicy {
	return OutputPolicy{Marker: DefaultMarker}
}

// DirectoryPolicy writes outputs into dir with the default marker.
func DirectoryPolicy(dir string) OutputPolicy {
	return OutputPolicy{Dir: dir, Marker: DefaultMarker}
}

// Builder derives output paths and detects input/output collisions.
type Builder struct {
	stat  func(string) (os.FileInfo, error)
	newID func() string
}

// NewBuilder creates a builder using the real filesystem for collision checks.
func NewBuilder() *Builder {
	return &Builder{
		stat:  os.Stat,
		newID: uuid.NewString,
	}
}

// NewBuilderForTests creates a builder with injectable dependencies.
func NewBuilderForTests(stat func(string) (os.FileInfo, error), newID func() string) *Builder {
	return &Builder{stat: stat, newID: newID}
}

// OutputPath computes the output file path for a source under a policy.
func OutputPath(source string, format domain.OutputFormat, policy OutputPolicy) (string, error) {
	src := strings.TrimSpace(source)
	if src == "" {
		return "", fmt.Errorf("source path is required")
	}
	abs, err := filepath.Abs(src)
	if err != nil {
		return "", fmt.Errorf("resolve source path %s: %w", src, err)
	}

	dir := filepath.Dir(abs)
	if strings.TrimSpace(policy.Dir) != "" {
		if dir, err = filepath.Abs(strings.TrimSpace(policy.Dir)); err != nil {
			return "", fmt.Errorf("resolve output directory %s: %w", policy.Dir, err)
		}
	}

	base := filepath.Base(abs)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+policy.Marker+"."+format.Extension()), nil
}

// BuildJob creates a pending job for one source. A job whose output would
// overwrite its input is flagged as a collision rather than rejected.
func (b *Builder) BuildJob(source string, settings domain.ConversionSettings, policy OutputPolicy) (domain.AudioJob, error) {
	output, err := OutputPath(source, settings.Format, policy)
	if err != nil {
		return domain.AudioJob{}, err
	}
	src, _ := filepath.Abs(strings.TrimSpace(source))

	return domain.AudioJob{
		ID:         b.newID(),
		SourcePath: src,
		OutputPath: output,
		Status:     domain.JobStatusPending,
		Collision:  b.collides(src, output),
	}, nil
}

// BuildJobs creates jobs for a whole batch. Repeated sources collapse onto
// their first occurrence. An output already claimed by an earlier job, or
// naming another source of the batch, gets a " - dupN" suffix.
func (b *Builder) BuildJobs(sources []string, settings domain.ConversionSettings, policy OutputPolicy) ([]domain.AudioJob, error) {
	unique := make([]string, 0, len(sources))
	inBatch := make(map[string]bool, len(sources))
	for _, source := range sources {
		src := strings.TrimSpace(source)
		if src == "" {
			return nil, fmt.Errorf("source path is required")
		}
		abs, err := filepath.Abs(src)
		if err != nil {
			return nil, fmt.Errorf("resolve source path %s: %w", src, err)
		}
		if inBatch[abs] {
			continue
		}
		inBatch[abs] = true
		unique = append(unique, abs)
	}

	claimed := make(map[string]string, len(unique))
	taken := func(path, source string) bool {
		if owner, ok := claimed[path]; ok && owner != source {
			return true
		}
		return path != source && inBatch[path]
	}

	jobs := make([]domain.AudioJob, 0, len(unique))
	for _, source := range unique {
		job, err := b.BuildJob(source, settings, policy)
		if err != nil {
			return nil, err
		}

		if taken(job.OutputPath, job.SourcePath) {
			job.OutputPath = dedupe(job.OutputPath, job.SourcePath, taken)
			job.Collision = b.collides(job.SourcePath, job.OutputPath)
		}
		claimed[job.OutputPath] = job.SourcePath
		jobs = append(jobs, job)
	}

	return jobs, nil
}

// collides reports whether output refers to the same file as source.
func (b *Builder) collides(source, output string) bool {
	if filepath.Clean(source) == filepath.Clean(output) {
		return true
	}

	srcInfo, err := b.stat(source)
	if err != nil {
		return false
	}
	outInfo, err := b.stat(output)
	if err != nil {
		return false
	}
	return os.SameFile(srcInfo, outInfo)
}

func dedupe(output, source string, taken func(path, source string) bool) string {
	dir := filepath.Dir(output)
	base := filepath.Base(output)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	for n := 1; ; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s - dup%d%s", stem, n, ext))
		if !taken(candidate, source) {
			return candidate
		}
	}
}
