package domain

import "testing"

func TestCanTransition_FullMatrix(t *testing.T) {
	all := []Status{StatusNone, StatusPending, StatusAssigned, StatusCompleted, StatusCancelled}

	legal := map[Status]map[Status]bool{
		StatusNone:     {StatusPending: true},
		StatusPending:  {StatusAssigned: true, StatusCancelled: true},
		StatusAssigned: {StatusCompleted: true},
	}

	for _, from := range all {
		for _, to := range all {
			want := legal[from][to]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if !StatusCompleted.IsTerminal() {
		t.Errorf("completed should be terminal")
	}
	if !StatusCancelled.IsTerminal() {
		t.Errorf("cancelled should be terminal")
	}
	if StatusPending.IsTerminal() {
		t.Errorf("pending should not be terminal")
	}
	if StatusAssigned.IsTerminal() {
		t.Errorf("assigned should not be terminal")
	}
}

func TestReplay_ReconstructsFinalStatus(t *testing.T) {
	ledger := []TrackingEntry{
		{OldStatus: StatusNone, NewStatus: StatusPending, Actor: ActorClient},
		{OldStatus: StatusPending, NewStatus: StatusAssigned, Actor: ActorProfessional},
		{OldStatus: StatusAssigned, NewStatus: StatusCompleted, Actor: ActorClient},
	}

	if got := Replay(ledger); got != StatusCompleted {
		t.Fatalf("expected replay to end at completed, got %s", got)
	}
}

func TestReplay_EmptyLedger(t *testing.T) {
	if got := Replay(nil); got != StatusNone {
		t.Fatalf("expected none for empty ledger, got %s", got)
	}
}

func TestReplay_EveryStepIsLegal(t *testing.T) {
	ledger := []TrackingEntry{
		{OldStatus: StatusNone, NewStatus: StatusPending, Actor: ActorClient},
		{OldStatus: StatusPending, NewStatus: StatusCancelled, Actor: ActorClient},
	}

	for _, e := range ledger {
		if !CanTransition(e.OldStatus, e.NewStatus) {
			t.Errorf("ledger contains illegal transition %s -> %s", e.OldStatus, e.NewStatus)
		}
	}
}
