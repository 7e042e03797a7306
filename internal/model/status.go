package model

import "fmt"

// State is a GitHub commit status state.
type State string

const (
	StatePending State = "pending"
	StateSuccess State = "success"
	StateError   State = "error"
	StateFailure State = "failure"
	StateNone    State = "none" // no status posted for the context yet
)

// ParseState maps a raw API state onto State. Unknown values map to StateNone.
func ParseState(s string) State {
	switch State(s) {
	case StatePending, StateSuccess, StateError, StateFailure:
		return State(s)
	default:
		return StateNone
	}
}

// Kind is the reviewer's verdict.
type Kind int

const (
	KindPending Kind = iota
	KindAccepted
	KindRejected
)

// State returns the commit status state posted for the verdict.
func (k Kind) State() State {
	switch k {
	case KindAccepted:
		return StateSuccess
	case KindRejected:
		return StateError
	default:
		return StatePending
	}
}

func (k Kind) String() string {
	switch k {
	case KindAccepted:
		return "accepted"
	case KindRejected:
		return "rejected"
	default:
		return "pending"
	}
}

// ParseKind accepts the verdict names used on the command line.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "pending":
		return KindPending, nil
	case "accept", "accepted", "success":
		return KindAccepted, nil
	case "reject", "rejected", "error":
		return KindRejected, nil
	}
	return KindPending, fmt.Errorf("unknown status kind %q (want pending, accept or reject)", s)
}

// Target identifies the commit and status context under review.
type Target struct {
	Owner   string
	Repo    string
	SHA     string
	Context string
}

// Status is one commit status entry.
type Status struct {
	Context     string
	State       State
	Description string
	TargetURL   string // empty if absent
}

// StatusUpdate is the payload for creating a commit status.
type StatusUpdate struct {
	State       State
	Description string
	TargetURL   string
}

// Phase is the lifecycle of the remote status mirror.
type Phase int

const (
	PhaseNoData  Phase = iota // no credential yet
	PhaseLoading              // request in flight
	PhaseLoaded
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	default:
		return "no-data"
	}
}

// Remote mirrors the status of the configured context. Status is only
// meaningful when Phase is PhaseLoaded.
type Remote struct {
	Phase  Phase
	Status Status
}

// NoData is the remote status before a credential exists.
func NoData() Remote { return Remote{Phase: PhaseNoData} }

// Loading is the remote status while a request is in flight.
func Loading() Remote { return Remote{Phase: PhaseLoading} }

// Loaded wraps a fetched status.
func Loaded(s Status) Remote { return Remote{Phase: PhaseLoaded, Status: s} }
