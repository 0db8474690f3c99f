package types

import "time"

// CheckReport is the result of one monitoring or backtesting run.
type CheckReport struct {
	Vault      string      `json:"vault"`
	Network    string      `json:"network"`
	StartTime  time.Time   `json:"start_time"`
	EndTime    time.Time   `json:"end_time"`
	Operations int         `json:"operations_evaluated"`
	Violations []Violation `json:"violations"`
	Summary    Summary     `json:"summary"`
}

// Summary aggregates a run's violations by severity.
type Summary struct {
	TotalChecksFailed  int     `json:"total_checks_failed"`
	TotalViolations    int     `json:"total_violations"`
	CriticalViolations int     `json:"critical_violations"`
	HighViolations     int     `json:"high_violations"`
	MediumViolations   int     `json:"medium_violations"`
	ViolationRate      float64 `json:"violation_rate"`
	Breached           bool    `json:"breached"`
}
