package enums

import "fmt"

// AssignmentMode distinguishes a directed transporter offer from the open pool.
type AssignmentMode string

const (
	// AssignmentModeSpecific targets one transporter; only they may accept.
	AssignmentModeSpecific AssignmentMode = "specific"
	// AssignmentModeFree opens the order to the pool; first accept wins.
	AssignmentModeFree AssignmentMode = "free"
)

var validAssignmentModes = []AssignmentMode{
	AssignmentModeSpecific,
	AssignmentModeFree,
}

// String implements fmt.Stringer.
func (a AssignmentMode) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AssignmentMode.
func (a AssignmentMode) IsValid() bool {
	for _, candidate := range validAssignmentModes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAssignmentMode converts raw input into an AssignmentMode.
func ParseAssignmentMode(value string) (AssignmentMode, error) {
	for _, candidate := range validAssignmentModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid assignment mode %q", value)
}

// AssignmentOutcome records how an assignment offer was resolved.
type AssignmentOutcome string

const (
	AssignmentOutcomeAccepted  AssignmentOutcome = "accepted"
	AssignmentOutcomeRejected  AssignmentOutcome = "rejected"
	AssignmentOutcomeExpired   AssignmentOutcome = "expired"
	AssignmentOutcomeCancelled AssignmentOutcome = "cancelled"
)

var validAssignmentOutcomes = []AssignmentOutcome{
	AssignmentOutcomeAccepted,
	AssignmentOutcomeRejected,
	AssignmentOutcomeExpired,
	AssignmentOutcomeCancelled,
}

// IsValid reports whether the value is a known AssignmentOutcome.
func (a AssignmentOutcome) IsValid() bool {
	for _, candidate := range validAssignmentOutcomes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAssignmentOutcome converts raw input into an AssignmentOutcome.
func ParseAssignmentOutcome(value string) (AssignmentOutcome, error) {
	for _, candidate := range validAssignmentOutcomes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid assignment outcome %q", value)
}
