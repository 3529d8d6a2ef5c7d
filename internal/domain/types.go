package domain

// JobStatus tracks the lifecycle of a single conversion job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusSkipped   JobStatus = "skipped"
)

// IsFinal reports whether no further transitions are expected.
func (s JobStatus) IsFinal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusSkipped:
		return true
	default:
		return false
	}
}

// Settings contains user-selectable runtime configuration as entered in the UI.
// Numeric fields stay raw strings until a batch starts and they are validated.
type Settings struct {
	TranscoderPath string `json:"transcoderPath"`
	OutputDir      string `json:"outputDir"`
	SiblingOutput  bool   `json:"siblingOutput"`
	OutputFormat   string `json:"outputFormat"`
	CustomEnabled  bool   `json:"customEnabled"`
	Bitrate        string `json:"bitrate"`
	SampleRate     string `json:"sampleRate"`
	Channels       string `json:"channels"`
	BitDepth       string `json:"bitDepth"`
	Volume         string `json:"volume"`
	Workers        int    `json:"workers"`
}

// AudioJob is one source-to-output conversion request owned by one batch.
type AudioJob struct {
	ID         string    `json:"id"`
	SourcePath string    `json:"sourcePath"`
	OutputPath string    `json:"outputPath"`
	Status     JobStatus `json:"status"`
	OutputSize int64     `json:"outputSize,omitempty"`
	Collision  bool      `json:"collision,omitempty"`
}
