package enums

// AlertSeverity grades monitor alerts.
type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityError    AlertSeverity = "error"
	AlertSeverityCritical AlertSeverity = "critical"
)

// String returns the literal string for the severity.
func (a AlertSeverity) String() string {
	return string(a)
}

// HealthStatus summarizes the engine's overall health.
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusWarning  HealthStatus = "warning"
	HealthStatusCritical HealthStatus = "critical"
)

// String returns the literal string for the status.
func (h HealthStatus) String() string {
	return string(h)
}
