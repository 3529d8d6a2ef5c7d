// Command audioconv converts a batch of audio files with an external
// transcoder and prints an aggregated report.
//
// Exit codes: 0 all jobs completed or skipped, 1 at least one job failed or
// the batch was cancelled, 2 the transcoder could not be found, 3 invalid
// files, settings or flags.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"audio-converter/internal/batch"
	"audio-converter/internal/config"
	"audio-converter/internal/convert"
	"audio-converter/internal/diagnostics"
	"audio-converter/internal/domain"
	"audio-converter/internal/jobs"
	"audio-converter/internal/logging"
	"audio-converter/internal/resolver"
)

const (
	exitOK           = 0
	exitFailures     = 1
	exitNoTranscoder = 2
	exitInvalidInput = 3
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "audioconv: %v\n", err)
		return exitCode(err)
	}

	log, err := logging.New(logging.Options{FilePath: opts.logPath, Verbose: opts.verbose})
	if err != nil {
		fmt.Fprintf(stderr, "audioconv: %v\n", err)
		return exitFailures
	}
	defer log.Close()

	settings, err := loadSettings(opts)
	if err != nil {
		fmt.Fprintf(stderr, "audioconv: %v\n", err)
		return exitCode(err)
	}

	res := resolver.New()
	if opts.checkOnly {
		return printDiagnostics(stdout, diagnostics.NewChecker(res).Run(settings))
	}

	plan, err := batch.NewPlanner(res, convert.NewBuilder()).WithMarker(opts.marker).Plan(opts.files, settings)
	if err != nil {
		var resErr *resolver.ResolutionError
		if errors.As(err, &resErr) {
			fmt.Fprintf(stderr, "audioconv: %v\nSearched:\n%s\n", err, resolver.FormatTrace(resErr.Trace))
		} else {
			fmt.Fprintf(stderr, "audioconv: %v\n", err)
		}
		return exitCode(err)
	}
	log.Debug("transcoder resolved",
		zap.String("path", plan.Executable.Path),
		zap.String("tier", string(plan.Executable.Tier)),
		zap.String("trace", resolver.FormatTrace(plan.Executable.Trace)),
	)

	orch := batch.New(convert.NewExecutor(log.Logger), jobs.NewManager(), log.Logger, batch.Options{
		Workers:      plan.Workers,
		KillOnCancel: opts.killOnCancel,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopSignals := handleInterrupts(orch, cancel, stderr)
	defer stopSignals()

	result, err := orch.Run(ctx, plan.Request(), func(p domain.Progress) {
		fmt.Fprintf(stdout, "[%d/%d] %s: %s\n", p.Completed, p.Total, p.FileName, p.Status)
	})
	if err != nil {
		fmt.Fprintf(stderr, "audioconv: %v\n", err)
		return exitCode(err)
	}

	fmt.Fprintln(stdout)
	fmt.Fprint(stdout, batch.FormatReport(result))
	return resultExitCode(result)
}

// loadSettings layers persisted settings, then the environment, then flags.
func loadSettings(opts cliOptions) (domain.Settings, error) {
	settings, err := config.NewJSONStore(opts.settingsPath).Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("%w: %v", errUsage, err)
	}

	lookup, err := config.EnvLookup(opts.envPath)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("%w: %v", errUsage, err)
	}
	if settings, err = config.ApplyEnv(settings, lookup); err != nil {
		return domain.Settings{}, fmt.Errorf("%w: %v", errUsage, err)
	}

	opts.overrides(&settings)
	return settings, nil
}

// handleInterrupts stops launching jobs on the first signal and kills
// running transcoders on the second.
func handleInterrupts(orch *batch.Orchestrator, kill context.CancelFunc, stderr io.Writer) func() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case <-sigCh:
		case <-done:
			return
		}
		fmt.Fprintln(stderr, "Interrupt received, finishing running conversions (press again to abort)")
		_ = orch.Cancel()

		select {
		case <-sigCh:
		case <-done:
			return
		}
		fmt.Fprintln(stderr, "Aborting running conversions")
		kill()
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

func printDiagnostics(w io.Writer, report domain.DiagnosticReport) int {
	for _, item := range report.Items {
		fmt.Fprintf(w, "%-5s %s: %s\n", item.Status, item.Name, item.Message)
		if item.Hint != "" && item.Status == domain.DiagnosticStatusFail {
			fmt.Fprintf(w, "      %s\n", item.Hint)
		}
	}
	if report.HasFailures {
		return exitFailures
	}
	return exitOK
}

// exitCode maps errors that prevent a batch from starting.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, resolver.ErrExecutableNotFound):
		return exitNoTranscoder
	case errors.Is(err, errUsage),
		errors.Is(err, convert.ErrInvalidSettings),
		errors.Is(err, batch.ErrNoFiles),
		errors.Is(err, batch.ErrUnsupportedInput),
		errors.Is(err, batch.ErrSourceMissing),
		errors.Is(err, os.ErrNotExist):
		return exitInvalidInput
	default:
		return exitFailures
	}
}

func resultExitCode(result domain.BatchResult) int {
	if result.Failed > 0 || result.Cancelled || result.NotRun > 0 {
		return exitFailures
	}
	return exitOK
}
