package validation

import (
	"time"

	"github.com/dvloznov/finance-migrator/internal/domain"
)

// Severity classifies a single validation issue. Only critical issues abort
// a migration stage; warnings are recorded and never block.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// IssueCategory groups issues by the area of the data model they concern.
type IssueCategory string

const (
	CategoryProfile   IssueCategory = "profile"
	CategoryFinancial IssueCategory = "financial"
	CategoryIntegrity IssueCategory = "integrity"
	CategoryPrivacy   IssueCategory = "privacy"
	CategorySync      IssueCategory = "sync"
	CategoryCross     IssueCategory = "cross_model"
)

// ValidationIssue is one immutable finding from a pre- or post-migration
// check.
type ValidationIssue struct {
	Severity    Severity      `json:"severity"`
	Category    IssueCategory `json:"category"`
	Message     string        `json:"message"`
	FieldPath   string        `json:"field_path,omitempty"`
	Remediation string        `json:"remediation,omitempty"`
}

// Status is the outcome of one validator run.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusWarning Status = "warning"
	StatusFailed  Status = "failed"
)

// ValidationResult is one immutable validator outcome.
type ValidationResult struct {
	Validator string    `json:"validator"`
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Summary aggregates a full validation run.
type Summary struct {
	Status          Status             `json:"status"`
	Results         []ValidationResult `json:"results"`
	Passed          int                `json:"passed"`
	Warnings        int                `json:"warnings"`
	Failed          int                `json:"failed"`
	SuccessRate     float64            `json:"success_rate"`
	Duration        time.Duration      `json:"duration"`
	Recommendations []string           `json:"recommendations,omitempty"`
}

// Input is the pair of entities a validator may inspect. Either field may be
// nil; validators skip entities they do not need.
type Input struct {
	Profile   *domain.UserProfile
	Financial *domain.LocalFinancialData
}

// HasCritical reports whether any issue is critical.
func HasCritical(issues []ValidationIssue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// CriticalMessages returns the messages of all critical issues.
func CriticalMessages(issues []ValidationIssue) []string {
	var msgs []string
	for _, issue := range issues {
		if issue.Severity == SeverityCritical {
			msgs = append(msgs, issue.Message)
		}
	}
	return msgs
}

// aggregateStatus folds result statuses: failed beats warning beats passed.
func aggregateStatus(results []ValidationResult) Status {
	status := StatusPassed
	for _, r := range results {
		switch r.Status {
		case StatusFailed:
			return StatusFailed
		case StatusWarning:
			status = StatusWarning
		}
	}
	return status
}
