package enums

import "fmt"

// OperationStatus is the lifecycle state of a cleanup operation.
type OperationStatus string

const (
	OperationStatusPending   OperationStatus = "pending"
	OperationStatusRunning   OperationStatus = "running"
	OperationStatusCompleted OperationStatus = "completed"
	OperationStatusFailed    OperationStatus = "failed"
)

var validOperationStatuses = []OperationStatus{
	OperationStatusPending,
	OperationStatusRunning,
	OperationStatusCompleted,
	OperationStatusFailed,
}

// String returns the literal string for the status.
func (o OperationStatus) String() string {
	return string(o)
}

// IsValid reports whether the status is known.
func (o OperationStatus) IsValid() bool {
	for _, candidate := range validOperationStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status ends the operation lifecycle.
func (o OperationStatus) IsTerminal() bool {
	return o == OperationStatusCompleted || o == OperationStatusFailed
}

// ParseOperationStatus converts raw input into an OperationStatus.
func ParseOperationStatus(value string) (OperationStatus, error) {
	for _, candidate := range validOperationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid operation status %q", value)
}
