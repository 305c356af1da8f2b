package domain

import "fmt"

// EscalationLevel is the severity tier of a complaint.
type EscalationLevel int

const (
	EscalationNormal          EscalationLevel = 0
	EscalationWarning         EscalationLevel = 1
	EscalationCritical        EscalationLevel = 2
	EscalationFinalEscalation EscalationLevel = 3
)

// escalationTransitions is the only way a level may change: one tier up.
var escalationTransitions = map[EscalationLevel]EscalationLevel{
	EscalationNormal:   EscalationWarning,
	EscalationWarning:  EscalationCritical,
	EscalationCritical: EscalationFinalEscalation,
}

// Next returns the successor tier, or false at FinalEscalation.
func (l EscalationLevel) Next() (EscalationLevel, bool) {
	next, ok := escalationTransitions[l]
	return next, ok
}

// Valid reports whether l is a persisted level.
func (l EscalationLevel) Valid() bool {
	return l >= EscalationNormal && l <= EscalationFinalEscalation
}

func (l EscalationLevel) String() string {
	switch l {
	case EscalationNormal:
		return "Normal"
	case EscalationWarning:
		return "Warning"
	case EscalationCritical:
		return "Critical"
	case EscalationFinalEscalation:
		return "FinalEscalation"
	}
	return fmt.Sprintf("EscalationLevel(%d)", int(l))
}
