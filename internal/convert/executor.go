package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"audio-converter/internal/domain"
)

// DefaultTailLines is the number of output lines kept for user summaries.
const DefaultTailLines = 20

// Executor runs single conversion jobs and maps process results to outcomes.
type Executor struct {
	runner    commandRunner
	native    NativeCodec
	log       *zap.Logger
	tailLines int
	stat      func(string) (os.FileInfo, error)
	mkdirAll  func(string, os.FileMode) error
	remove    func(string) error
	rename    func(string, string) error
	now       func() time.Time
}

// NewExecutor constructs the production executor with OS dependencies.
func NewExecutor(log *zap.Logger) *Executor {
	return NewExecutorForTests(&execRunner{}, log)
}

// NewExecutorForTests constructs an executor with an injectable runner.
func NewExecutorForTests(runner commandRunner, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		runner:    runner,
		log:       log,
		tailLines: DefaultTailLines,
		stat:      os.Stat,
		mkdirAll:  os.MkdirAll,
		remove:    os.Remove,
		rename:    os.Rename,
		now:       time.Now,
	}
}

// WithNativeCodec routes PCM outputs the codec supports through it.
func (e *Executor) WithNativeCodec(codec NativeCodec) *Executor {
	e.native = codec
	return e
}

// Execute converts one job. It never returns an error: every failure is
// captured in the outcome so the batch can continue.
func (e *Executor) Execute(ctx context.Context, job domain.AudioJob, exe domain.ResolvedExecutable, settings domain.ConversionSettings) domain.JobOutcome {
	started := e.now()
	outcome := e.execute(ctx, job, exe, settings)
	outcome.Duration = e.now().Sub(started)

	fields := []zap.Field{
		zap.String("job_id", job.ID),
		zap.String("source", job.SourcePath),
		zap.String("output", job.OutputPath),
		zap.String("status", string(outcome.Job.Status)),
		zap.Duration("duration", outcome.Duration),
	}
	switch outcome.Job.Status {
	case domain.JobStatusCompleted:
		e.log.Info("conversion completed", append(fields, zap.Int64("bytes", outcome.Job.OutputSize))...)
	case domain.JobStatusSkipped:
		e.log.Warn("conversion skipped", append(fields, zap.String("reason", outcome.Error))...)
	default:
		e.log.Error("conversion failed", append(fields,
			zap.String("kind", string(outcome.Failure)),
			zap.String("error", outcome.Error),
			zap.String("command", outcome.Log.Command),
			zap.Strings("args", outcome.Log.Args),
			zap.Int("exit_code", outcome.Log.ExitCode),
			zap.String("full_output", outcome.Log.Output),
		)...)
	}

	return outcome
}

func (e *Executor) execute(ctx context.Context, job domain.AudioJob, exe domain.ResolvedExecutable, settings domain.ConversionSettings) domain.JobOutcome {
	if job.Collision {
		job.Status = domain.JobStatusSkipped
		return domain.JobOutcome{
			Job:   job,
			Error: ErrInputOutputCollision.Error(),
			Err:   ErrInputOutputCollision,
		}
	}

	info, err := e.stat(job.SourcePath)
	if err != nil || info.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is a directory", job.SourcePath)
		}
		return e.fail(job, &ConversionError{
			Kind:    domain.FailureSourceUnavailable,
			Message: fmt.Sprintf("cannot read source file: %s", job.SourcePath),
			Err:     errors.Join(ErrSourceUnavailable, err),
		}, nil)
	}

	if err := e.mkdirAll(filepath.Dir(job.OutputPath), 0o755); err != nil {
		return e.fail(job, &ConversionError{
			Kind:    domain.FailureOutputMissing,
			Message: fmt.Sprintf("cannot create output directory: %s", filepath.Dir(job.OutputPath)),
			Err:     errors.Join(ErrOutputMissing, err),
		}, nil)
	}

	if err := ctx.Err(); err != nil {
		return e.fail(job, &ConversionError{
			Kind:    domain.FailureInterrupted,
			Message: "batch interrupted before launch",
			Err:     err,
		}, nil)
	}

	// Output lands on job.OutputPath only through the rename below.
	work := job
	work.OutputPath = partialPath(job.OutputPath)

	var convErr *ConversionError
	var log domain.CommandLog
	var output []string
	if e.native != nil && settings.Format.IsPCM() && e.native.Supports(job.SourcePath, settings.Format) {
		log, convErr = e.runNative(ctx, work, settings)
	} else {
		log, output, convErr = e.runTranscoder(ctx, work, exe, settings)
	}
	if convErr != nil {
		_ = e.remove(work.OutputPath)
		return e.fail(job, convErr, output)
	}

	outInfo, err := e.stat(work.OutputPath)
	if err != nil || outInfo.Size() == 0 {
		_ = e.remove(work.OutputPath)
		return e.fail(job, &ConversionError{
			Kind:       domain.FailureOutputMissing,
			Message:    fmt.Sprintf("transcoder exited cleanly but produced no output: %s", job.OutputPath),
			CommandLog: log,
			Err:        ErrOutputMissing,
		}, output)
	}

	if err := e.rename(work.OutputPath, job.OutputPath); err != nil {
		_ = e.remove(work.OutputPath)
		return e.fail(job, &ConversionError{
			Kind:       domain.FailureOutputMissing,
			Message:    fmt.Sprintf("cannot move converted file into place: %s", job.OutputPath),
			CommandLog: log,
			Err:        errors.Join(ErrOutputMissing, err),
		}, output)
	}

	job.Status = domain.JobStatusCompleted
	job.OutputSize = outInfo.Size()
	return domain.JobOutcome{Job: job, Log: log}
}

// partialPath names the in-progress file for output. The extension is kept
// so the transcoder still infers the container from it.
func partialPath(output string) string {
	dir, base := filepath.Split(output)
	ext := filepath.Ext(base)
	return filepath.Join(dir, "."+strings.TrimSuffix(base, ext)+".partial"+ext)
}

// runTranscoder launches the external transcoder and classifies its result.
func (e *Executor) runTranscoder(ctx context.Context, job domain.AudioJob, exe domain.ResolvedExecutable, settings domain.ConversionSettings) (domain.CommandLog, []string, *ConversionError) {
	args := BuildArgs(job.SourcePath, job.OutputPath, settings)
	var lines []string

	result, runErr := e.runner.Run(ctx, exe.Path, args, func(line string) {
		lines = append(lines, line)
	})
	log := domain.CommandLog{
		Command:  exe.Path,
		Args:     args,
		ExitCode: result.ExitCode,
		Output:   strings.Join(lines, "\n"),
	}
	if runErr == nil {
		return log, lines, nil
	}

	switch {
	case !result.Started:
		return log, lines, &ConversionError{
			Kind:       domain.FailureLaunch,
			Message:    fmt.Sprintf("cannot start transcoder: %s", exe.Path),
			CommandLog: log,
			Err:        errors.Join(ErrProcessLaunch, runErr),
		}
	case ctx.Err() != nil:
		return log, lines, &ConversionError{
			Kind:       domain.FailureInterrupted,
			Message:    "conversion interrupted",
			CommandLog: log,
			Err:        ctx.Err(),
		}
	default:
		return log, lines, &ConversionError{
			Kind:       domain.FailureExit,
			Message:    fmt.Sprintf("transcoder exited with code %d", result.ExitCode),
			CommandLog: log,
			Err:        errors.Join(ErrProcessExit, runErr),
		}
	}
}

// runNative converts through the configured NativeCodec.
func (e *Executor) runNative(ctx context.Context, job domain.AudioJob, settings domain.ConversionSettings) (domain.CommandLog, *ConversionError) {
	layout := layoutFor(settings)
	log := domain.CommandLog{
		Command: "native",
		Args: []string{
			string(settings.Format),
			fmt.Sprintf("rate=%d", layout.SampleRateHz),
			fmt.Sprintf("channels=%d", layout.Channels),
			fmt.Sprintf("bits=%d", layout.BitDepth),
		},
	}

	err := convertNative(ctx, e.native, job, settings, e.remove)
	if err == nil {
		return log, nil
	}

	log.ExitCode = -1
	log.Output = err.Error()
	kind := domain.FailureNativeCodec
	if errors.Is(err, ErrFormatNegotiation) {
		kind = domain.FailureFormatNegotiation
	}
	return log, &ConversionError{
		Kind:       kind,
		Message:    "native conversion failed",
		CommandLog: log,
		Err:        err,
	}
}

// fail builds a failed outcome carrying the diagnostic tail.
func (e *Executor) fail(job domain.AudioJob, err *ConversionError, output []string) domain.JobOutcome {
	job.Status = domain.JobStatusFailed
	tail := tailLines(output, e.tailLines)
	if len(tail) == 0 && err.CommandLog.Output != "" {
		tail = tailLines(strings.Split(err.CommandLog.Output, "\n"), e.tailLines)
	}
	return domain.JobOutcome{
		Job:            job,
		Failure:        err.Kind,
		Error:          err.Error(),
		Err:            err,
		DiagnosticTail: tail,
		Log:            err.CommandLog,
	}
}

// tailLines returns the last n non-blank lines.
func tailLines(lines []string, n int) []string {
	kept := lo.Filter(lines, func(line string, _ int) bool {
		return strings.TrimSpace(line) != ""
	})
	if n > 0 && len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return kept
}
