package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"audio-converter/internal/domain"
	"audio-converter/internal/jobs"
)

// fakeExecutor records launches and delegates outcomes to a callback.
type fakeExecutor struct {
	mu       sync.Mutex
	launched []string
	execute  func(ctx context.Context, job domain.AudioJob) domain.JobOutcome
}

// Execute records the launch and returns the injected outcome.
func (f *fakeExecutor) Execute(ctx context.Context, job domain.AudioJob, exe domain.ResolvedExecutable, settings domain.ConversionSettings) domain.JobOutcome {
	f.mu.Lock()
	f.launched = append(f.launched, job.ID)
	f.mu.Unlock()
	if f.execute == nil {
		return completed(job, 10)
	}
	return f.execute(ctx, job)
}

func (f *fakeExecutor) launchedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.launched...)
}

func completed(job domain.AudioJob, size int64) domain.JobOutcome {
	job.Status = domain.JobStatusCompleted
	job.OutputSize = size
	return domain.JobOutcome{Job: job}
}

func failed(job domain.AudioJob, tail ...string) domain.JobOutcome {
	job.Status = domain.JobStatusFailed
	return domain.JobOutcome{
		Job:            job,
		Failure:        domain.FailureExit,
		Error:          "process_exit: transcoder exited with code 1",
		DiagnosticTail: tail,
	}
}

func makeJobs(n int) []domain.AudioJob {
	out := make([]domain.AudioJob, n)
	for i := range out {
		name := fmt.Sprintf("track%d.wav", i+1)
		out[i] = domain.AudioJob{
			ID:         fmt.Sprintf("job-%d", i+1),
			SourcePath: filepath.Join("/music", name),
			OutputPath: filepath.Join("/out", fmt.Sprintf("track%d_converted.mp3", i+1)),
			Status:     domain.JobStatusPending,
		}
	}
	return out
}

func newRequest(n int) Request {
	return Request{
		Jobs:       makeJobs(n),
		Executable: domain.ResolvedExecutable{Path: "/usr/bin/ffmpeg", Tier: domain.TierSystemPath},
		Settings:   domain.ConversionSettings{Format: domain.FormatMP3, Channels: domain.ChannelsOriginal, VolumePercent: 100},
	}
}

// TestRunAllSucceed checks counters and byte totals for a clean batch.
func TestRunAllSucceed(t *testing.T) {
	orch := New(&fakeExecutor{}, jobs.NewManager(), nil, Options{})

	var progress []domain.Progress
	result, err := orch.Run(context.Background(), newRequest(2), func(p domain.Progress) {
		progress = append(progress, p)
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Attempted != 2 || result.Succeeded != 2 || result.Failed != 0 || result.Skipped != 0 {
		t.Fatalf("result = %+v", result)
	}
	if result.TotalOutputBytes != 20 {
		t.Fatalf("total bytes = %d, want 20", result.TotalOutputBytes)
	}
	if len(progress) != 2 || progress[1].Completed != 2 || progress[1].Total != 2 || progress[1].Percent != 100 {
		t.Fatalf("progress = %+v", progress)
	}
	if progress[0].FileName != "track1.wav" {
		t.Fatalf("file name = %q", progress[0].FileName)
	}
	if orch.State().Current().State != domain.BatchStateNotStarted {
		t.Fatalf("state = %s, want not_started", orch.State().Current().State)
	}
	if orch.State().Last().State != domain.BatchStateCompleted {
		t.Fatalf("last state = %s, want completed", orch.State().Last().State)
	}
}

// TestRunIsolatesFailures checks one failed job does not stop the batch.
func TestRunIsolatesFailures(t *testing.T) {
	exec := &fakeExecutor{execute: func(ctx context.Context, job domain.AudioJob) domain.JobOutcome {
		if job.ID == "job-1" {
			return failed(job, "Invalid data found when processing input")
		}
		return completed(job, 5)
	}}
	orch := New(exec, jobs.NewManager(), nil, Options{})

	result, err := orch.Run(context.Background(), newRequest(2), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Attempted != 2 || result.Succeeded != 1 || result.Failed != 1 {
		t.Fatalf("result = %+v", result)
	}
	if len(result.Outcomes[0].DiagnosticTail) == 0 {
		t.Fatal("failed job should carry a diagnostic tail")
	}
	if result.Cancelled {
		t.Fatal("batch should not be cancelled")
	}
}

// TestCancelAfterJobStopsLaunching checks jobs after k are never launched.
func TestCancelAfterJobStopsLaunching(t *testing.T) {
	var orch *Orchestrator
	exec := &fakeExecutor{}
	exec.execute = func(ctx context.Context, job domain.AudioJob) domain.JobOutcome {
		if job.ID == "job-2" {
			if err := orch.Cancel(); err != nil {
				t.Errorf("cancel: %v", err)
			}
			time.Sleep(20 * time.Millisecond)
		}
		return completed(job, 1)
	}
	orch = New(exec, jobs.NewManager(), nil, Options{Workers: 1})

	result, err := orch.Run(context.Background(), newRequest(5), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	launched := exec.launchedIDs()
	if len(launched) != 2 || launched[1] != "job-2" {
		t.Fatalf("launched = %v, want job-1 and job-2 only", launched)
	}
	if result.Succeeded != 2 || result.NotRun != 3 || !result.Cancelled {
		t.Fatalf("result = %+v", result)
	}
	if orch.State().Last().State != domain.BatchStateCancelled {
		t.Fatalf("last state = %s, want cancelled", orch.State().Last().State)
	}
	if orch.State().IsRunning() {
		t.Fatal("manager should return to not_started")
	}
}

// TestProgressFollowsSubmissionOrder checks ordering with concurrent workers.
func TestProgressFollowsSubmissionOrder(t *testing.T) {
	exec := &fakeExecutor{execute: func(ctx context.Context, job domain.AudioJob) domain.JobOutcome {
		var n int
		fmt.Sscanf(job.ID, "job-%d", &n)
		time.Sleep(time.Duration(5-n) * 15 * time.Millisecond)
		return completed(job, 1)
	}}
	orch := New(exec, jobs.NewManager(), nil, Options{Workers: 4})

	h, err := orch.Submit(context.Background(), newRequest(4))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	var order []string
	for p := range h.Progress() {
		order = append(order, p.JobID)
		if p.Completed != len(order) {
			t.Fatalf("completed = %d, want %d", p.Completed, len(order))
		}
	}
	want := []string{"job-1", "job-2", "job-3", "job-4"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("progress order = %v, want %v", order, want)
		}
	}
	if result := h.Wait(); result.Succeeded != 4 {
		t.Fatalf("result = %+v", result)
	}
}

// TestSubmitRejectsConcurrentBatch checks the single-batch guard.
func TestSubmitRejectsConcurrentBatch(t *testing.T) {
	release := make(chan struct{})
	exec := &fakeExecutor{execute: func(ctx context.Context, job domain.AudioJob) domain.JobOutcome {
		<-release
		return completed(job, 1)
	}}
	orch := New(exec, jobs.NewManager(), nil, Options{})

	h, err := orch.Submit(context.Background(), newRequest(1))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if _, err := orch.Submit(context.Background(), newRequest(1)); !errors.Is(err, jobs.ErrBatchAlreadyRunning) {
		t.Fatalf("second Submit() error = %v, want ErrBatchAlreadyRunning", err)
	}

	close(release)
	h.Wait()
	if _, err := orch.Run(context.Background(), newRequest(1), nil); err != nil {
		t.Fatalf("Run() after finish error = %v", err)
	}
}

// TestKillOnCancelInterruptsRunningJob checks optional child termination.
func TestKillOnCancelInterruptsRunningJob(t *testing.T) {
	started := make(chan struct{})
	exec := &fakeExecutor{execute: func(ctx context.Context, job domain.AudioJob) domain.JobOutcome {
		close(started)
		<-ctx.Done()
		job.Status = domain.JobStatusFailed
		return domain.JobOutcome{Job: job, Failure: domain.FailureInterrupted, Error: "conversion interrupted"}
	}}
	orch := New(exec, jobs.NewManager(), nil, Options{KillOnCancel: true})

	h, err := orch.Submit(context.Background(), newRequest(3))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	<-started
	if err := h.Cancel(); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	result := h.Wait()
	if !result.Cancelled || result.Failed != 1 || result.NotRun != 2 {
		t.Fatalf("result = %+v", result)
	}
	if result.Outcomes[0].Failure != domain.FailureInterrupted {
		t.Fatalf("failure = %s, want interrupted", result.Outcomes[0].Failure)
	}
}

// TestSubmitWithoutJobs checks empty batches are rejected.
func TestSubmitWithoutJobs(t *testing.T) {
	orch := New(&fakeExecutor{}, nil, nil, Options{})
	if _, err := orch.Submit(context.Background(), Request{}); !errors.Is(err, ErrNoJobs) {
		t.Fatalf("Submit() error = %v, want ErrNoJobs", err)
	}
	if orch.State().IsRunning() {
		t.Fatal("rejected batch must not start")
	}
}

// TestClampWorkers checks worker bounds.
func TestClampWorkers(t *testing.T) {
	for in, want := range map[int]int{-1: 1, 0: 1, 4: 4, 99: MaxWorkers} {
		if got := ClampWorkers(in); got != want {
			t.Fatalf("ClampWorkers(%d) = %d, want %d", in, got, want)
		}
	}
}
