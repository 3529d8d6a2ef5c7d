package domain

import "time"

// FailureKind classifies why a job did not complete.
type FailureKind string

const (
	FailureNone              FailureKind = ""
	FailureLaunch            FailureKind = "process_launch"
	FailureExit              FailureKind = "process_exit"
	FailureFormatNegotiation FailureKind = "format_negotiation"
	FailureOutputMissing     FailureKind = "output_missing"
	FailureSourceUnavailable FailureKind = "source_unavailable"
	FailureInterrupted       FailureKind = "interrupted"
	FailureNativeCodec       FailureKind = "native_codec"
)

// CommandLog captures one external command invocation with merged output.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Output   string   `json:"output,omitempty"`
}

// JobOutcome is the executor's verdict for one job.
type JobOutcome struct {
	Job            AudioJob      `json:"job"`
	Failure        FailureKind   `json:"failure,omitempty"`
	Error          string        `json:"error,omitempty"`
	Err            error         `json:"-"`
	DiagnosticTail []string      `json:"diagnosticTail,omitempty"`
	Log            CommandLog    `json:"log"`
	Duration       time.Duration `json:"duration"`
}

// Status returns the final status of the outcome's job.
func (o JobOutcome) Status() JobStatus {
	return o.Job.Status
}

// BatchState tracks the orchestrator lifecycle.
type BatchState string

const (
	BatchStateNotStarted BatchState = "not_started"
	BatchStateRunning    BatchState = "running"
	BatchStateCompleted  BatchState = "completed"
	BatchStateCancelled  BatchState = "cancelled"
)

// Batch stores the current batch identity and lifecycle state.
type Batch struct {
	ID         string     `json:"id"`
	State      BatchState `json:"state"`
	Total      int        `json:"total"`
	StartedAt  time.Time  `json:"startedAt,omitempty"`
	FinishedAt time.Time  `json:"finishedAt,omitempty"`
}

// BatchResult summarises one finished batch. Outcomes follow submission order
// and only include jobs that were launched.
type BatchResult struct {
	ID               string       `json:"id"`
	Outcomes         []JobOutcome `json:"outcomes"`
	Attempted        int          `json:"attempted"`
	Succeeded        int          `json:"succeeded"`
	Failed           int          `json:"failed"`
	Skipped          int          `json:"skipped"`
	NotRun           int          `json:"notRun"`
	TotalOutputBytes int64        `json:"totalOutputBytes"`
	Cancelled        bool         `json:"cancelled"`
	StartedAt        time.Time    `json:"startedAt"`
	FinishedAt       time.Time    `json:"finishedAt"`
}

// Progress is emitted once per finished job, in submission order.
type Progress struct {
	BatchID   string    `json:"batchId"`
	JobID     string    `json:"jobId"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
	FileName  string    `json:"fileName"`
	Percent   int       `json:"percent"`
	Status    JobStatus `json:"status"`
}
