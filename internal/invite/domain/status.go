package domain

type Status string

const (
	StatusPending              Status = "pending"
	StatusAwaitingVerification Status = "awaiting_verification"
	StatusAwaitingActivation   Status = "awaiting_activation"
	StatusAwaitingCouple       Status = "awaiting_couple"
	StatusCompleted            Status = "completed"
	StatusRevoked              Status = "revoked"
	StatusDeclined             Status = "declined"
	StatusExpired              Status = "expired"
)

var forward = map[Status]Status{
	StatusPending:              StatusAwaitingVerification,
	StatusAwaitingVerification: StatusAwaitingActivation,
	StatusAwaitingActivation:   StatusAwaitingCouple,
	StatusAwaitingCouple:       StatusCompleted,
}

// ParseStatus reports whether value names a known status.
func ParseStatus(value string) (Status, bool) {
	s := Status(value)
	switch s {
	case StatusPending, StatusAwaitingVerification, StatusAwaitingActivation, StatusAwaitingCouple,
		StatusCompleted, StatusRevoked, StatusDeclined, StatusExpired:
		return s, true
	}
	return "", false
}

// IsTerminal reports whether no further transition is allowed from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusRevoked, StatusDeclined, StatusExpired:
		return true
	default:
		return false
	}
}

// IsCancelled reports the two side exits a person chose. Guards treat them alike.
func (s Status) IsCancelled() bool {
	return s == StatusRevoked || s == StatusDeclined
}

// CanTransition reports whether from -> to is an edge of the invite graph.
// Forward edges advance one step; side exits are reachable from any
// non-terminal status.
func CanTransition(from, to Status) bool {
	if from.IsTerminal() {
		return false
	}
	switch to {
	case StatusRevoked, StatusDeclined, StatusExpired:
		return true
	}
	next, ok := forward[from]
	return ok && next == to
}

// NonTerminalStatuses lists the statuses counted against the active invite cap.
func NonTerminalStatuses() []Status {
	return []Status{
		StatusPending,
		StatusAwaitingVerification,
		StatusAwaitingActivation,
		StatusAwaitingCouple,
	}
}
