package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"go.uber.org/zap"

	"audio-converter/internal/batch"
	"audio-converter/internal/config"
	"audio-converter/internal/convert"
	"audio-converter/internal/diagnostics"
	"audio-converter/internal/domain"
	"audio-converter/internal/jobs"
	"audio-converter/internal/logging"
	"audio-converter/internal/resolver"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

var audioDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Audio files",
		Pattern:     strings.Join(domain.SupportedInputPatterns(), ";"),
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// Resolver locates the transcoder for planning and diagnostics.
type Resolver interface {
	Resolve(userPath string) (domain.ResolvedExecutable, error)
}

// QueueState is the queue snapshot returned to the UI after a mutation.
type QueueState struct {
	Files    []string `json:"files"`
	Rejected []string `json:"rejected,omitempty"`
}

// App wires configuration, the file queue, the batch engine, and UI runtime callbacks.
type App struct {
	Settings     domain.Settings
	Store        config.Store
	Jobs         *jobs.Manager
	Queue        *jobs.Queue
	Diagnostics  domain.DiagnosticReport
	assets       fs.FS
	checker      *diagnostics.Checker
	resolver     Resolver
	installer    *transcoderInstaller
	planner      *batch.Planner
	orchestrator *batch.Orchestrator
	log          *zap.Logger
	closeLog     func()
	envLookup    config.LookupFunc

	mu         sync.Mutex
	events     *jobs.EventBus
	runtimeCtx context.Context
	lastResult *domain.BatchResult
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	logger, err := logging.New(logging.Options{FilePath: config.DefaultLogPath()})
	if err != nil {
		return nil, fmt.Errorf("open developer log: %w", err)
	}

	lookup, err := config.EnvLookup(filepath.Join(filepath.Dir(config.DefaultSettingsPath()), ".env"))
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("read environment: %w", err)
	}

	store := config.NewJSONStore(config.DefaultSettingsPath())
	app := newApp(store, resolver.New(), convert.NewExecutor(logger.Logger), logger.Logger, lookup)
	app.assets = assets
	app.closeLog = logger.Close

	if _, err := app.RefreshDiagnostics(); err != nil {
		logger.Close()
		return nil, err
	}
	return app, nil
}

// NewForTests builds an app around injected collaborators and no env overlay.
func NewForTests(store config.Store, res Resolver, executor batch.Executor) *App {
	return newApp(store, res, executor, zap.NewNop(), nil)
}

func newApp(store config.Store, res Resolver, executor batch.Executor, log *zap.Logger, lookup config.LookupFunc) *App {
	state := jobs.NewManager()
	return &App{
		Store:        store,
		Jobs:         state,
		Queue:        jobs.NewQueue(state),
		checker:      diagnostics.NewChecker(res),
		resolver:     res,
		installer:    newTranscoderInstaller(),
		planner:      batch.NewPlanner(res, convert.NewBuilder()),
		orchestrator: batch.New(executor, state, log, batch.Options{}),
		log:          log,
		closeLog:     func() {},
		envLookup:    lookup,
		events:       jobs.NewEventBus(1000),
	}
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Audio Converter",
		Width:       1180,
		Height:      780,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown:  a.Shutdown,
		Bind:        []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// Shutdown stops launching queued jobs and flushes the developer log.
func (a *App) Shutdown(ctx context.Context) {
	if a.Jobs.IsRunning() {
		_ = a.orchestrator.Cancel()
	}

	a.mu.Lock()
	a.runtimeCtx = nil
	closeLog := a.closeLog
	a.mu.Unlock()
	closeLog()
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings validates, normalizes and persists settings, then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if _, err := convert.ParseSettings(normalized); err != nil {
		return domain.Settings{}, err
	}
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	if _, err := a.RefreshDiagnostics(); err != nil {
		return domain.Settings{}, err
	}
	return normalized, nil
}

// RefreshDiagnostics reloads settings and reruns preflight checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.effectiveSettings()
	if err != nil {
		return domain.DiagnosticReport{}, err
	}
	return a.refreshDiagnosticsFromSettings(settings), nil
}

// ResolveTranscoder runs the three-tier search against current settings.
func (a *App) ResolveTranscoder() (domain.ResolvedExecutable, error) {
	settings, err := a.effectiveSettings()
	if err != nil {
		return domain.ResolvedExecutable{}, err
	}

	exe, err := a.resolver.Resolve(settings.TranscoderPath)
	if err != nil {
		a.log.Warn("transcoder not found", zap.Error(err))
		return domain.ResolvedExecutable{}, err
	}
	a.log.Debug("transcoder resolved",
		zap.String("path", exe.Path),
		zap.String("tier", string(exe.Tier)),
		zap.String("trace", resolver.FormatTrace(exe.Trace)),
	)
	return exe, nil
}

// AddFiles queues supported audio files and reports the rejected ones.
func (a *App) AddFiles(paths []string) (QueueState, error) {
	_, rejected, err := a.Queue.Add(paths...)
	if err != nil {
		return QueueState{}, err
	}
	return QueueState{Files: a.Queue.Snapshot(), Rejected: rejected}, nil
}

// RemoveFiles drops the given paths from the queue.
func (a *App) RemoveFiles(paths []string) (QueueState, error) {
	if err := a.Queue.Remove(paths...); err != nil {
		return QueueState{}, err
	}
	return QueueState{Files: a.Queue.Snapshot()}, nil
}

// ClearQueue empties the queue.
func (a *App) ClearQueue() (QueueState, error) {
	if err := a.Queue.Clear(); err != nil {
		return QueueState{}, err
	}
	return QueueState{Files: a.Queue.Snapshot()}, nil
}

// QueuedFiles returns the files selected for the next batch.
func (a *App) QueuedFiles() []string {
	return a.Queue.Snapshot()
}

// PickInputFiles opens a native multi-select dialog and queues the selection.
func (a *App) PickInputFiles() (QueueState, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return QueueState{}, err
	}

	paths, err := wailsruntime.OpenMultipleFilesDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select audio files",
		Filters: audioDialogFilter,
	})
	if err != nil {
		return QueueState{}, err
	}
	return a.AddFiles(paths)
}

// PickTranscoder opens a native file dialog for the transcoder executable.
func (a *App) PickTranscoder() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select ffmpeg executable",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickOutputDirectory opens a native directory picker for converted files.
func (a *App) PickOutputDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select output directory",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// OpenOutputFolder opens the given path, the configured output dir, or the
// folder of the last converted file in the file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		target = a.defaultOutputFolder()
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// StartConversion plans the queued files and runs the batch asynchronously.
// Planning errors are returned before any job is launched.
func (a *App) StartConversion() (domain.Batch, error) {
	settings, err := a.effectiveSettings()
	if err != nil {
		return domain.Batch{}, err
	}

	plan, err := a.planner.Plan(a.Queue.Snapshot(), settings)
	if err != nil {
		a.publishEvent(jobs.Event{
			Type:    jobs.EventTypeError,
			Message: err.Error(),
		})
		return domain.Batch{}, err
	}

	req := plan.Request()
	req.OnOutcome = a.publishOutcome
	handle, err := a.orchestrator.Submit(context.Background(), req)
	if err != nil {
		return domain.Batch{}, err
	}

	a.publishStatus(handle.ID(), domain.BatchStateRunning,
		fmt.Sprintf("Converting %d file(s) to %s", handle.Total(), plan.Settings.Format))
	go a.forwardBatch(handle)
	return a.Jobs.Current(), nil
}

// CancelConversion stops launching queued jobs; running jobs finish.
func (a *App) CancelConversion() error {
	batchID := a.Jobs.Current().ID
	if err := a.orchestrator.Cancel(); err != nil {
		return err
	}
	a.publishStatus(batchID, domain.BatchStateRunning, "Cancellation requested")
	return nil
}

// CurrentBatch returns the running batch, or the zero batch when idle.
func (a *App) CurrentBatch() domain.Batch {
	return a.Jobs.Current()
}

// LastResult returns the aggregated result of the most recent batch.
func (a *App) LastResult() (domain.BatchResult, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastResult == nil {
		return domain.BatchResult{}, false
	}
	return *a.lastResult, true
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// forwardBatch relays ordered progress and publishes the final result.
func (a *App) forwardBatch(handle *batch.Handle) {
	for p := range handle.Progress() {
		a.publishEvent(jobs.ProgressEvent(p))
	}

	result := handle.Wait()
	a.mu.Lock()
	a.lastResult = &result
	a.mu.Unlock()

	state := domain.BatchStateCompleted
	if result.Cancelled {
		state = domain.BatchStateCancelled
	}
	a.publishEvent(jobs.Event{
		BatchID: result.ID,
		Type:    jobs.EventTypeResult,
		State:   state,
		Message: batch.FormatReport(result),
		Result:  &result,
	})
	a.publishStatus(result.ID, domain.BatchStateNotStarted, "Ready")
}

// publishOutcome maps one finished job to log and error events.
func (a *App) publishOutcome(outcome domain.JobOutcome) {
	batchID := a.Jobs.Current().ID
	if outcome.Log.Command != "" {
		a.publishEvent(jobs.Event{
			BatchID:  batchID,
			JobID:    outcome.Job.ID,
			Type:     jobs.EventTypeLog,
			Status:   outcome.Status(),
			Message:  "Command completed",
			Command:  outcome.Log.Command,
			Args:     outcome.Log.Args,
			ExitCode: outcome.Log.ExitCode,
			Output:   outcome.Log.Output,
		})
	}

	switch outcome.Status() {
	case domain.JobStatusFailed, domain.JobStatusSkipped:
		a.publishEvent(jobs.Event{
			BatchID:  batchID,
			JobID:    outcome.Job.ID,
			Type:     jobs.EventTypeError,
			Status:   outcome.Status(),
			FileName: filepath.Base(outcome.Job.SourcePath),
			Message:  outcome.Error,
			Tail:     outcome.DiagnosticTail,
		})
	default:
		a.publishEvent(jobs.Event{
			BatchID:    batchID,
			JobID:      outcome.Job.ID,
			Type:       jobs.EventTypeStatus,
			Status:     outcome.Status(),
			FileName:   filepath.Base(outcome.Job.SourcePath),
			OutputPath: outcome.Job.OutputPath,
			Message:    "Converted " + filepath.Base(outcome.Job.SourcePath),
		})
	}
}

// publishStatus sends a normalized batch state event.
func (a *App) publishStatus(batchID string, state domain.BatchState, message string) {
	a.publishEvent(jobs.Event{
		BatchID: batchID,
		Type:    jobs.EventTypeStatus,
		State:   state,
		Message: message,
	})
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event jobs.Event) {
	published := a.events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "job:event", published)
	}
}

// effectiveSettings loads persisted settings and overlays the environment.
func (a *App) effectiveSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	if a.envLookup != nil {
		if settings, err = config.ApplyEnv(settings, a.envLookup); err != nil {
			return domain.Settings{}, err
		}
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()
	return settings, nil
}

func (a *App) refreshDiagnosticsFromSettings(settings domain.Settings) domain.DiagnosticReport {
	report := a.checker.Run(settings)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.Settings = settings
	a.Diagnostics = report
	return report
}

func (a *App) defaultOutputFolder() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.Settings.SiblingOutput && a.Settings.OutputDir != "" {
		return a.Settings.OutputDir
	}
	if a.lastResult == nil {
		return ""
	}
	for _, outcome := range a.lastResult.Outcomes {
		if outcome.Status() == domain.JobStatusCompleted {
			return filepath.Dir(outcome.Job.OutputPath)
		}
	}
	return ""
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, errors.New("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// normalizeSettings trims user inputs and fills blanks with defaults.
func normalizeSettings(settings domain.Settings) domain.Settings {
	defaults := config.DefaultSettings()

	settings.TranscoderPath = strings.TrimSpace(settings.TranscoderPath)
	settings.OutputDir = strings.TrimSpace(settings.OutputDir)
	settings.OutputFormat = strings.ToLower(strings.TrimSpace(settings.OutputFormat))
	if settings.OutputFormat == "" {
		settings.OutputFormat = defaults.OutputFormat
	}
	settings.Bitrate = strings.TrimSpace(settings.Bitrate)
	settings.SampleRate = strings.TrimSpace(settings.SampleRate)
	settings.Channels = strings.ToLower(strings.TrimSpace(settings.Channels))
	if settings.Channels == "" {
		settings.Channels = defaults.Channels
	}
	settings.BitDepth = strings.TrimSpace(settings.BitDepth)
	settings.Volume = strings.TrimSpace(settings.Volume)
	if settings.Volume == "" {
		settings.Volume = defaults.Volume
	}
	settings.Workers = batch.ClampWorkers(settings.Workers)
	return settings
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
