package enums

import "fmt"

// OperationType records how a cleanup run was triggered.
type OperationType string

const (
	OperationTypeManual    OperationType = "manual"
	OperationTypeScheduled OperationType = "scheduled"
	OperationTypeAutomatic OperationType = "automatic"
)

var validOperationTypes = []OperationType{
	OperationTypeManual,
	OperationTypeScheduled,
	OperationTypeAutomatic,
}

// String returns the literal string for the operation type.
func (o OperationType) String() string {
	return string(o)
}

// IsValid reports whether the operation type is known.
func (o OperationType) IsValid() bool {
	for _, candidate := range validOperationTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOperationType converts raw input into an OperationType.
func ParseOperationType(value string) (OperationType, error) {
	for _, candidate := range validOperationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid operation type %q", value)
}
