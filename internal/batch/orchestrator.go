// Package batch runs conversion jobs with bounded concurrency, reports
// progress in submission order, and aggregates per-job outcomes.
package batch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"audio-converter/internal/domain"
	"audio-converter/internal/jobs"
)

// MaxWorkers caps concurrent transcoder processes.
const MaxWorkers = 16

// ErrNoJobs is returned when a batch is submitted without jobs.
var ErrNoJobs = errors.New("batch has no jobs")

// Executor converts one job and never fails the batch.
type Executor interface {
	Execute(ctx context.Context, job domain.AudioJob, exe domain.ResolvedExecutable, settings domain.ConversionSettings) domain.JobOutcome
}

// Options configures an Orchestrator.
type Options struct {
	Workers      int
	KillOnCancel bool
}

// Request is one immutable batch submission.
type Request struct {
	Jobs       []domain.AudioJob
	Executable domain.ResolvedExecutable
	Settings   domain.ConversionSettings
	// Workers overrides the orchestrator default when positive.
	Workers int
	// OnOutcome is called for each launched job in submission order,
	// before its progress event is delivered.
	OnOutcome func(domain.JobOutcome)
}

// Orchestrator drives batches through the jobs.Manager state machine.
type Orchestrator struct {
	executor     Executor
	state        *jobs.Manager
	log          *zap.Logger
	workers      int
	killOnCancel bool
	newID        func() string
	now          func() time.Time

	mu         sync.Mutex
	killActive context.CancelFunc
}

// New creates an orchestrator. A nil logger disables logging.
func New(executor Executor, state *jobs.Manager, log *zap.Logger, opts Options) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	if state == nil {
		state = jobs.NewManager()
	}
	return &Orchestrator{
		executor:     executor,
		state:        state,
		log:          log,
		workers:      ClampWorkers(opts.Workers),
		killOnCancel: opts.KillOnCancel,
		newID:        uuid.NewString,
		now:          time.Now,
	}
}

// ClampWorkers bounds a worker count to 1..MaxWorkers.
func ClampWorkers(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}

// Handle is the caller's view of a submitted batch.
type Handle struct {
	id       string
	total    int
	progress chan domain.Progress
	done     chan struct{}
	result   domain.BatchResult
	cancel   func() error
}

// ID returns the batch identifier.
func (h *Handle) ID() string { return h.id }

// Total returns the number of submitted jobs.
func (h *Handle) Total() int { return h.total }

// Progress delivers one event per finished job in submission order. The
// channel is buffered for every job and closed when the batch ends.
func (h *Handle) Progress() <-chan domain.Progress { return h.progress }

// Done is closed once the result is available.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the batch finishes and returns its result.
func (h *Handle) Wait() domain.BatchResult {
	<-h.done
	return h.result
}

// Cancel requests cooperative cancellation of this batch.
func (h *Handle) Cancel() error { return h.cancel() }

// Submit starts a batch in the background. Jobs are launched in order, at
// most Workers at a time, and each launch first checks the cancel flag.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*Handle, error) {
	if len(req.Jobs) == 0 {
		return nil, ErrNoJobs
	}

	id := o.newID()
	if err := o.state.Start(id, len(req.Jobs)); err != nil {
		return nil, err
	}

	runCtx, kill := context.WithCancel(ctx)
	o.mu.Lock()
	o.killActive = kill
	o.mu.Unlock()

	workers := o.workers
	if req.Workers > 0 {
		workers = ClampWorkers(req.Workers)
	}

	h := &Handle{
		id:       id,
		total:    len(req.Jobs),
		progress: make(chan domain.Progress, len(req.Jobs)),
		done:     make(chan struct{}),
		cancel:   o.Cancel,
	}

	o.log.Info("batch started",
		zap.String("batch_id", id),
		zap.Int("jobs", len(req.Jobs)),
		zap.Int("workers", workers),
		zap.String("transcoder", req.Executable.Path),
		zap.String("format", string(req.Settings.Format)),
	)

	jobsCopy := append([]domain.AudioJob(nil), req.Jobs...)
	go o.run(runCtx, kill, h, jobsCopy, req, workers)
	return h, nil
}

// Run submits a batch and blocks until it finishes, forwarding progress.
func (o *Orchestrator) Run(ctx context.Context, req Request, onProgress func(domain.Progress)) (domain.BatchResult, error) {
	h, err := o.Submit(ctx, req)
	if err != nil {
		return domain.BatchResult{}, err
	}
	for p := range h.Progress() {
		if onProgress != nil {
			onProgress(p)
		}
	}
	return h.Wait(), nil
}

// Cancel stops launching new jobs. With KillOnCancel, running transcoders
// are terminated as well.
func (o *Orchestrator) Cancel() error {
	if err := o.state.Cancel(); err != nil {
		return err
	}
	o.log.Warn("batch cancellation requested", zap.String("batch_id", o.state.Current().ID))

	if o.killOnCancel {
		o.mu.Lock()
		kill := o.killActive
		o.mu.Unlock()
		if kill != nil {
			kill()
		}
	}
	return nil
}

// State exposes the underlying state machine.
func (o *Orchestrator) State() *jobs.Manager {
	return o.state
}

func (o *Orchestrator) run(ctx context.Context, kill context.CancelFunc, h *Handle, batchJobs []domain.AudioJob, req Request, workers int) {
	defer kill()
	started := o.now().UTC()

	slots := make([]chan domain.JobOutcome, len(batchJobs))
	for i := range slots {
		slots[i] = make(chan domain.JobOutcome, 1)
	}

	sem := semaphore.NewWeighted(int64(workers))
	var g errgroup.Group
	g.Go(func() error {
		next := 0
		defer func() {
			for ; next < len(slots); next++ {
				close(slots[next])
			}
		}()

		for ; next < len(batchJobs); next++ {
			if err := sem.Acquire(ctx, 1); err != nil {
				return nil
			}
			if o.state.CancelRequested() || ctx.Err() != nil {
				sem.Release(1)
				return nil
			}

			i, job := next, batchJobs[next]
			job.Status = domain.JobStatusRunning
			g.Go(func() error {
				defer sem.Release(1)
				slots[i] <- o.executor.Execute(ctx, job, req.Executable, req.Settings)
				return nil
			})
		}
		return nil
	})

	agg := NewAggregator(h.id)
	finished := 0
	for i, slot := range slots {
		outcome, ok := <-slot
		if !ok {
			agg.AddNotRun()
			continue
		}

		finished++
		agg.Add(outcome)
		if req.OnOutcome != nil {
			req.OnOutcome(outcome)
		}
		h.progress <- domain.Progress{
			BatchID:   h.id,
			JobID:     outcome.Job.ID,
			Completed: finished,
			Total:     len(batchJobs),
			FileName:  filepath.Base(batchJobs[i].SourcePath),
			Percent:   100,
			Status:    outcome.Job.Status,
		}
	}
	_ = g.Wait()

	o.mu.Lock()
	o.killActive = nil
	o.mu.Unlock()

	final := o.state.Finish(ctx.Err() != nil)
	result := agg.Result()
	result.Cancelled = final.State == domain.BatchStateCancelled
	result.StartedAt = started
	result.FinishedAt = o.now().UTC()

	o.log.Info("batch finished",
		zap.String("batch_id", h.id),
		zap.String("state", string(final.State)),
		zap.Int("attempted", result.Attempted),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
		zap.Int("not_run", result.NotRun),
		zap.Int64("output_bytes", result.TotalOutputBytes),
	)

	h.result = result
	close(h.progress)
	close(h.done)
}
