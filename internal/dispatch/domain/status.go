// Package domain holds the pure dispatch rules: the request lifecycle state
// machine, great-circle distance, candidate ranking and the retry policy.
// Nothing in this package performs I/O.
package domain

// Status is the lifecycle state of an urgent request.
type Status string

const (
	// StatusNone is the pseudo-state before a request exists; only used as
	// the old status of the creation tracking entry.
	StatusNone Status = "none"

	StatusPending   Status = "pending"
	StatusAssigned  Status = "assigned"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Actor identifies who drove a lifecycle transition.
type Actor string

const (
	ActorClient       Actor = "client"
	ActorProfessional Actor = "professional"
	ActorSystem       Actor = "system"
)

// IsTerminal reports whether no further transitions are permitted.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// legalTransitions is the complete transition table. Anything absent is illegal.
var legalTransitions = map[Status][]Status{
	StatusNone:     {StatusPending},
	StatusPending:  {StatusAssigned, StatusCancelled},
	StatusAssigned: {StatusCompleted},
}

// CanTransition reports whether from → to is a legal lifecycle transition.
func CanTransition(from, to Status) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TrackingEntry is one row of the append-only lifecycle ledger.
type TrackingEntry struct {
	OldStatus Status
	NewStatus Status
	Actor     Actor
}

// Replay folds an ordered ledger into the final status. The ledger records
// transitions, it never decides them, so replay is a straight fold.
func Replay(entries []TrackingEntry) Status {
	status := StatusNone
	for _, e := range entries {
		status = e.NewStatus
	}
	return status
}
