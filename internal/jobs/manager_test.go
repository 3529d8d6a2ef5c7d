package jobs

import (
	"errors"
	"testing"

	"audio-converter/internal/domain"
)

// TestManagerLifecycle verifies a batch runs, completes and resets.
func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	if m.IsRunning() {
		t.Fatal("new manager should be idle")
	}

	if err := m.Start("batch-1", 2); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !m.IsRunning() || m.Current().Total != 2 {
		t.Fatalf("current = %+v, want running with 2 jobs", m.Current())
	}

	last := m.Finish(false)
	if last.State != domain.BatchStateCompleted || last.ID != "batch-1" {
		t.Fatalf("last = %+v, want completed batch-1", last)
	}
	if m.Current().State != domain.BatchStateNotStarted {
		t.Fatalf("current state = %s, want not_started", m.Current().State)
	}
	if m.Last().FinishedAt.IsZero() {
		t.Fatal("expected finish time on last batch")
	}
}

// TestManagerRejectsSecondStart checks the single-batch guard.
func TestManagerRejectsSecondStart(t *testing.T) {
	m := NewManager()
	if err := m.Start("batch-1", 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Start("batch-2", 1); !errors.Is(err, ErrBatchAlreadyRunning) {
		t.Fatalf("second start error = %v, want %v", err, ErrBatchAlreadyRunning)
	}
}

// TestManagerCancel verifies the cooperative flag and final state.
func TestManagerCancel(t *testing.T) {
	m := NewManager()
	if err := m.Cancel(); !errors.Is(err, ErrNoRunningBatch) {
		t.Fatalf("idle cancel error = %v, want %v", err, ErrNoRunningBatch)
	}

	if err := m.Start("batch-1", 3); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !m.CancelRequested() {
		t.Fatal("expected cancel flag")
	}
	if err := m.Cancel(); err != nil {
		t.Fatalf("repeated cancel: %v", err)
	}

	if last := m.Finish(false); last.State != domain.BatchStateCancelled {
		t.Fatalf("final state = %s, want cancelled", last.State)
	}
	if m.CancelRequested() {
		t.Fatal("cancel flag should reset for the next batch")
	}
	if err := m.Start("batch-2", 1); err != nil {
		t.Fatalf("restart after cancel: %v", err)
	}
}

// TestIsValidTransition checks state machine edges.
func TestIsValidTransition(t *testing.T) {
	if isValidTransition(domain.BatchStateNotStarted, domain.BatchStateCompleted) {
		t.Fatal("not_started -> completed must be rejected")
	}
	if !isValidTransition(domain.BatchStateCancelled, domain.BatchStateNotStarted) {
		t.Fatal("cancelled -> not_started must be allowed")
	}
}
