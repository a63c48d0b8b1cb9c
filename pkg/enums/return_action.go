package enums

import "fmt"

// ReturnAction is the wholesaler's verdict on a returned retail order.
type ReturnAction string

const (
	ReturnActionAccept ReturnAction = "accept"
	ReturnActionReject ReturnAction = "reject"
)

var validReturnActions = []ReturnAction{
	ReturnActionAccept,
	ReturnActionReject,
}

// IsValid reports whether the value is a known ReturnAction.
func (r ReturnAction) IsValid() bool {
	for _, candidate := range validReturnActions {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReturnAction converts raw input into a ReturnAction.
func ParseReturnAction(value string) (ReturnAction, error) {
	for _, candidate := range validReturnActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid return action %q", value)
}
