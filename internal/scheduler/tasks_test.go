package scheduler

import (
	"testing"

	"github.com/google/uuid"
)

func TestDispatchSweepPayload_RoundTrip(t *testing.T) {
	requestID := uuid.New()

	task, err := NewDispatchSweepTask(DispatchSweepPayload{RequestID: requestID.String()})
	if err != nil {
		t.Fatalf("unexpected error building task: %v", err)
	}
	if task.Type() != TaskDispatchSweep {
		t.Fatalf("expected task type %q, got %q", TaskDispatchSweep, task.Type())
	}

	payload, err := ParseDispatchSweepPayload(task)
	if err != nil {
		t.Fatalf("unexpected error parsing payload: %v", err)
	}
	if payload.RequestID != requestID.String() {
		t.Fatalf("expected request id %s, got %s", requestID, payload.RequestID)
	}
}
