package convert

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"audio-converter/internal/domain"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("job-%d", n)
	}
}

// TestOutputPathSiblingPolicy checks the marker and extension rules.
func TestOutputPathSiblingPolicy(t *testing.T) {
	root := t.TempDir()
	got, err := OutputPath(filepath.Join(root, "a.wav"), domain.FormatMP3, SiblingPolicy())
	if err != nil {
		t.Fatalf("OutputPath() error = %v", err)
	}
	if want := filepath.Join(root, "a_converted.mp3"); got != want {
		t.Fatalf("output = %s, want %s", got, want)
	}
}

// TestOutputPathDirectoryPolicy checks explicit output directories.
func TestOutputPathDirectoryPolicy(t *testing.T) {
	root := t.TempDir()
	outDir := filepath.Join(root, "out")
	got, err := OutputPath(filepath.Join(root, "music", "Track 01.flac"), domain.FormatOGG, DirectoryPolicy(outDir))
	if err != nil {
		t.Fatalf("OutputPath() error = %v", err)
	}
	if want := filepath.Join(outDir, "Track 01_converted.ogg"); got != want {
		t.Fatalf("output = %s, want %s", got, want)
	}
}

// TestBuildJobFlagsCollision checks same input and output paths are flagged.
func TestBuildJobFlagsCollision(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "song.mp3")
	if err := os.WriteFile(source, []byte("id3"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	b := NewBuilderForTests(os.Stat, sequentialIDs())
	job, err := b.BuildJob(source, domain.ConversionSettings{Format: domain.FormatMP3}, OutputPolicy{})
	if err != nil {
		t.Fatalf("BuildJob() error = %v", err)
	}
	if !job.Collision {
		t.Fatalf("expected collision for %s -> %s", job.SourcePath, job.OutputPath)
	}
	if job.Status != domain.JobStatusPending || job.ID != "job-1" {
		t.Fatalf("job = %+v", job)
	}
}

// TestBuildJobNoCollisionWithMarker checks the marker keeps paths distinct.
func TestBuildJobNoCollisionWithMarker(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "song.mp3")

	b := NewBuilderForTests(os.Stat, sequentialIDs())
	job, err := b.BuildJob(source, domain.ConversionSettings{Format: domain.FormatMP3}, SiblingPolicy())
	if err != nil {
		t.Fatalf("BuildJob() error = %v", err)
	}
	if job.Collision {
		t.Fatalf("unexpected collision: %+v", job)
	}
}

// TestBuildJobDetectsSameFileThroughSymlink checks os.SameFile collisions.
func TestBuildJobDetectsSameFileThroughSymlink(t *testing.T) {
	root := t.TempDir()
	realDir := filepath.Join(root, "real")
	link := filepath.Join(root, "link")
	if err := os.MkdirAll(realDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Symlink(realDir, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	source := filepath.Join(realDir, "take.wav")
	if err := os.WriteFile(source, []byte("RIFF"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	b := NewBuilderForTests(os.Stat, sequentialIDs())
	job, err := b.BuildJob(source, domain.ConversionSettings{Format: domain.FormatWAV}, OutputPolicy{Dir: link})
	if err != nil {
		t.Fatalf("BuildJob() error = %v", err)
	}
	if !job.Collision {
		t.Fatalf("expected collision via symlinked dir: %+v", job)
	}
}

// TestBuildJobsDeduplicatesOutputs checks two sources sharing one output.
func TestBuildJobsDeduplicatesOutputs(t *testing.T) {
	root := t.TempDir()
	outDir := filepath.Join(root, "out")
	sources := []string{
		filepath.Join(root, "cd1", "intro.wav"),
		filepath.Join(root, "cd2", "intro.flac"),
		filepath.Join(root, "cd3", "intro.ogg"),
	}

	b := NewBuilderForTests(os.Stat, sequentialIDs())
	jobs, err := b.BuildJobs(sources, domain.ConversionSettings{Format: domain.FormatMP3}, DirectoryPolicy(outDir))
	if err != nil {
		t.Fatalf("BuildJobs() error = %v", err)
	}

	want := []string{
		filepath.Join(outDir, "intro_converted.mp3"),
		filepath.Join(outDir, "intro_converted - dup1.mp3"),
		filepath.Join(outDir, "intro_converted - dup2.mp3"),
	}
	for i, job := range jobs {
		if job.OutputPath != want[i] {
			t.Fatalf("jobs[%d].OutputPath = %s, want %s", i, job.OutputPath, want[i])
		}
	}
}

// TestBuildJobsAvoidsOverwritingAnotherSource checks an output never lands on
// a file that is itself queued as a source.
func TestBuildJobsAvoidsOverwritingAnotherSource(t *testing.T) {
	root := t.TempDir()
	first := filepath.Join(root, "a.wav")
	second := filepath.Join(root, "a_converted.wav")
	for _, p := range []string{first, second} {
		if err := os.WriteFile(p, []byte("audio"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}

	b := NewBuilderForTests(os.Stat, sequentialIDs())
	jobs, err := b.BuildJobs([]string{first, second}, domain.ConversionSettings{Format: domain.FormatWAV}, SiblingPolicy())
	if err != nil {
		t.Fatalf("BuildJobs() error = %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("len(jobs) = %d, want 2", len(jobs))
	}
	if want := filepath.Join(root, "a_converted - dup1.wav"); jobs[0].OutputPath != want {
		t.Fatalf("jobs[0].OutputPath = %s, want %s", jobs[0].OutputPath, want)
	}
	if jobs[0].Collision {
		t.Fatal("jobs[0] should not be a collision after renaming")
	}
	if want := filepath.Join(root, "a_converted_converted.wav"); jobs[1].OutputPath != want {
		t.Fatalf("jobs[1].OutputPath = %s, want %s", jobs[1].OutputPath, want)
	}
	for _, job := range jobs {
		if job.OutputPath == first || job.OutputPath == second {
			t.Fatalf("job %s writes over a batch source", job.ID)
		}
	}
}

// TestBuildJobsCollapsesEquivalentSources checks spellings of one file make one job.
func TestBuildJobsCollapsesEquivalentSources(t *testing.T) {
	chdirTemp(t)
	if err := os.WriteFile("a.wav", []byte("audio"), 0o644); err != nil {
		t.Fatalf("write a.wav: %v", err)
	}
	abs, err := filepath.Abs("a.wav")
	if err != nil {
		t.Fatalf("Abs: %v", err)
	}

	b := NewBuilderForTests(os.Stat, sequentialIDs())
	jobs, err := b.BuildJobs([]string{"a.wav", "./a.wav", abs}, domain.ConversionSettings{Format: domain.FormatMP3}, SiblingPolicy())
	if err != nil {
		t.Fatalf("BuildJobs() error = %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("len(jobs) = %d, want 1: %+v", len(jobs), jobs)
	}
	if want := filepath.Join(filepath.Dir(abs), "a_converted.mp3"); jobs[0].OutputPath != want {
		t.Fatalf("output = %s, want %s", jobs[0].OutputPath, want)
	}
}

func chdirTemp(t *testing.T) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
