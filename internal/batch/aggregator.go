package batch

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"audio-converter/internal/domain"
)

// Report truncation limits for failure diagnostics.
const (
	reportTailLines = 5
	reportLineWidth = 160
)

// Aggregator accumulates job outcomes into a BatchResult.
type Aggregator struct {
	result domain.BatchResult
}

// NewAggregator creates an empty accumulator for one batch.
func NewAggregator(batchID string) *Aggregator {
	return &Aggregator{result: domain.BatchResult{ID: batchID}}
}

// Add records one launched job outcome.
func (a *Aggregator) Add(outcome domain.JobOutcome) {
	a.result.Outcomes = append(a.result.Outcomes, outcome)
	a.result.Attempted++

	switch outcome.Job.Status {
	case domain.JobStatusCompleted:
		a.result.Succeeded++
		a.result.TotalOutputBytes += outcome.Job.OutputSize
	case domain.JobStatusSkipped:
		a.result.Skipped++
	default:
		a.result.Failed++
	}
}

// AddNotRun records a job that was never launched.
func (a *Aggregator) AddNotRun() {
	a.result.NotRun++
}

// Result returns a copy that later Add calls do not affect.
func (a *Aggregator) Result() domain.BatchResult {
	out := a.result
	out.Outcomes = append([]domain.JobOutcome(nil), a.result.Outcomes...)
	return out
}

// Failures returns failed outcomes in submission order.
func Failures(result domain.BatchResult) []domain.JobOutcome {
	return lo.Filter(result.Outcomes, func(o domain.JobOutcome, _ int) bool {
		return o.Job.Status == domain.JobStatusFailed
	})
}

// FormatReport renders counts plus a truncated diagnostic per failure.
func FormatReport(result domain.BatchResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Attempted: %d  Succeeded: %d  Failed: %d  Skipped: %d",
		result.Attempted, result.Succeeded, result.Failed, result.Skipped)
	if result.NotRun > 0 {
		fmt.Fprintf(&b, "  Not run: %d", result.NotRun)
	}
	b.WriteByte('\n')
	fmt.Fprintf(&b, "Total output: %s\n", FormatBytes(result.TotalOutputBytes))
	if result.Cancelled {
		b.WriteString("Batch was cancelled\n")
	}

	failures := Failures(result)
	if len(failures) == 0 {
		return b.String()
	}

	b.WriteString("Failures:\n")
	for _, failure := range failures {
		fmt.Fprintf(&b, "  %s: %s\n", filepath.Base(failure.Job.SourcePath), truncate(failure.Error, reportLineWidth))
		tail := failure.DiagnosticTail
		if len(tail) > reportTailLines {
			tail = tail[len(tail)-reportTailLines:]
		}
		for _, line := range tail {
			fmt.Fprintf(&b, "    | %s\n", truncate(line, reportLineWidth))
		}
	}
	return b.String()
}

// FormatBytes returns a human-readable size (B, KiB, MiB, GiB, TiB).
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit && exp < 3; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), []string{"KiB", "MiB", "GiB", "TiB"}[exp])
}

// truncate shortens s to width runes, never splitting a multi-byte character.
func truncate(s string, width int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-3]) + "..."
}
