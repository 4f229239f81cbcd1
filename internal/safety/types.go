package safety

import "time"

// Status is the safety subsystem's own health state, independent of the
// migration state machine. Critical is terminal until an operator intervenes.
type Status string

const (
	StatusNormal   Status = "normal"
	StatusCritical Status = "critical"
)

// ArmingCheck is the outcome of one independent pre-flight check.
type ArmingCheck struct {
	Name        string `json:"name"`
	Passed      bool   `json:"passed"`
	Detail      string `json:"detail,omitempty"`
	Remediation string `json:"remediation,omitempty"`
}

// ArmingResult reports the pre-flight gate. Armed only if every check passed.
type ArmingResult struct {
	Armed  bool          `json:"armed"`
	Checks []ArmingCheck `json:"checks"`
}

// FailedChecks returns the checks that did not pass.
func (r *ArmingResult) FailedChecks() []ArmingCheck {
	var failed []ArmingCheck
	for _, c := range r.Checks {
		if !c.Passed {
			failed = append(failed, c)
		}
	}
	return failed
}

// EmergencyRollbackResult reports the one-shot undo-everything path.
type EmergencyRollbackResult struct {
	Success   bool          `json:"success"`
	BackupID  string        `json:"backup_id,omitempty"`
	Message   string        `json:"message"`
	Status    Status        `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// RecoveryRecommendation is operator guidance derived from the current state
// of the backup store and the safety status.
type RecoveryRecommendation struct {
	Priority string `json:"priority"`
	Action   string `json:"action"`
	Reason   string `json:"reason"`
}

// AlertSeverity ranks monitor alerts.
type AlertSeverity string

const (
	AlertInfo     AlertSeverity = "info"
	AlertWarning  AlertSeverity = "warning"
	AlertCritical AlertSeverity = "critical"
)

// AlertCategory names the condition a monitor alert reports.
type AlertCategory string

const (
	AlertStorageHeadroom AlertCategory = "storage_headroom"
	AlertDataCorruption  AlertCategory = "data_corruption"
	AlertBackupHealth    AlertCategory = "backup_health"
)

// Alert is one finding from a periodic monitor pass.
type Alert struct {
	Severity   AlertSeverity `json:"severity"`
	Category   AlertCategory `json:"category"`
	Message    string        `json:"message"`
	OccurredAt time.Time     `json:"occurred_at"`
}
