package domain

// TransitionMode selects which legality rules apply to a status change.
type TransitionMode int

const (
	// StandardTransition follows the allowedTransitions table.
	StandardTransition TransitionMode = iota
	// AdministrativeOverride accepts any move to a later status, skipping the table. Backward
	// moves and moves out of DONE are refused so DONE stays terminal.
	AdministrativeOverride
)

var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusNew:        {TicketStatusDiagnosing, TicketStatusRepairing},
	TicketStatusDiagnosing: {TicketStatusRepairing, TicketStatusDone},
	TicketStatusRepairing:  {TicketStatusDone},
	TicketStatusDone:       {},
}

var statusRank = map[TicketStatus]int{
	TicketStatusNew:        0,
	TicketStatusDiagnosing: 1,
	TicketStatusRepairing:  2,
	TicketStatusDone:       3,
}

// IsValid reports whether s is a known lifecycle status.
func (s TicketStatus) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// IsTerminal reports whether no further transitions are possible.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusDone
}

// AllowedNext returns the statuses reachable from s under the standard table.
func (s TicketStatus) AllowedNext() []TicketStatus {
	return append([]TicketStatus(nil), allowedTransitions[s]...)
}

// CanTransition reports whether current may move to next under mode.
// Both modes keep the order forward-only, so Done stays absorbing.
func CanTransition(current, next TicketStatus, mode TransitionMode) bool {
	if !current.IsValid() || !next.IsValid() {
		return false
	}
	if mode == AdministrativeOverride {
		return statusRank[next] > statusRank[current]
	}
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

func (m TransitionMode) String() string {
	if m == AdministrativeOverride {
		return "administrative_override"
	}
	return "standard"
}
