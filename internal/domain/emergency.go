package domain

// Severity grades an emergency trigger.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
)

// EmergencyTrigger is one detector's verdict.
type EmergencyTrigger struct {
	Detector  string   `json:"detector"`
	Triggered bool     `json:"triggered"`
	Reason    string   `json:"reason,omitempty"`
	Severity  Severity `json:"severity"`
}
