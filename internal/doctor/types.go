package doctor

import (
	"context"
)

// Category groups related checks
type Category string

const (
	CategoryConfig  Category = "config"
	CategoryWallet  Category = "wallet"
	CategoryNetwork Category = "network"
)

// Status is the outcome of a single check
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// CheckResult is the result of a single check
type CheckResult struct {
	Name       string   `json:"name"`
	Category   Category `json:"category"`
	Status     Status   `json:"status"`
	Message    string   `json:"message"`
	Details    string   `json:"details,omitempty"`
	FixCommand string   `json:"fix_command,omitempty"`
}

// Checker is implemented by every check
type Checker interface {
	Name() string
	Category() Category
	Check(ctx context.Context) CheckResult
}

// Options configures a doctor run
type Options struct {
	// JSON prints the report as JSON instead of the progress listing
	JSON bool
	// Category limits the run to one category
	Category Category
}

// Report is the result of a run
type Report struct {
	Checks  []CheckResult `json:"checks"`
	Summary Summary       `json:"summary"`
}

// Summary counts results per status
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Warned  int `json:"warned"`
	Skipped int `json:"skipped"`
}

// IsHealthy reports whether no check failed
func (s Summary) IsHealthy() bool {
	return s.Failed == 0
}
