package reporter

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"

	"vaultguard/pkg/types"
)

// Reporter collects evaluated operations and violations for one run and
// renders them to the terminal and to a JSON report file.
type Reporter struct {
	report     *types.CheckReport
	violations []types.Violation
	opCount    int
	verbose    bool
}

// NewReporter creates a reporter for the given vault and network.
func NewReporter(vault, network string, verbose bool) *Reporter {
	return &Reporter{
		report: &types.CheckReport{
			Vault:      vault,
			Network:    network,
			StartTime:  time.Now(),
			Violations: []types.Violation{},
		},
		verbose: verbose,
	}
}

// RecordOperation counts one evaluated operation.
func (r *Reporter) RecordOperation(op types.Operation) {
	r.opCount++
	r.report.Operations = r.opCount
}

// RecordViolation records one failed check.
func (r *Reporter) RecordViolation(v types.Violation) {
	r.violations = append(r.violations, v)
	r.report.Violations = append(r.report.Violations, v)

	if r.verbose {
		r.printViolation(&v)
	}
}

func (r *Reporter) printViolation(v *types.Violation) {
	severityColor := color.New(color.FgYellow)
	switch v.Severity {
	case types.SeverityCritical:
		severityColor = color.New(color.FgRed, color.Bold)
	case types.SeverityHigh:
		severityColor = color.New(color.FgRed)
	}

	fmt.Printf("\n")
	severityColor.Printf("⚠️  [%s] %s\n", v.Severity, v.Check)
	fmt.Printf("   operation: %s\n", v.Operation)
	fmt.Printf("   reason: %s\n", v.Reason)
	if len(v.Details) > 0 {
		fmt.Printf("   details:\n")
		for k, val := range v.Details {
			fmt.Printf("     - %s: %v\n", k, val)
		}
	}
}

// Finalize closes the run and computes the summary.
func (r *Reporter) Finalize() {
	r.report.EndTime = time.Now()
	r.calculateSummary()
}

func (r *Reporter) calculateSummary() {
	summary := &r.report.Summary

	failedChecks := make(map[string]bool)
	for _, v := range r.violations {
		failedChecks[v.Check] = true

		switch v.Severity {
		case types.SeverityCritical:
			summary.CriticalViolations++
		case types.SeverityHigh:
			summary.HighViolations++
		case types.SeverityMedium:
			summary.MediumViolations++
		}
	}

	summary.TotalChecksFailed = len(failedChecks)
	summary.TotalViolations = len(r.violations)
	summary.Breached = summary.CriticalViolations > 0 || summary.HighViolations > 0

	if r.opCount > 0 {
		summary.ViolationRate = float64(summary.TotalViolations) / float64(r.opCount) * 100
	}
}

// PrintSummary renders the run summary to the terminal.
func (r *Reporter) PrintSummary() {
	summary := r.report.Summary

	fmt.Printf("\n")
	fmt.Println("════════════════════════════════════════════════════════════")
	color.New(color.FgCyan, color.Bold).Println("Invariant check summary")
	fmt.Println("════════════════════════════════════════════════════════════")

	fmt.Printf("Vault: %s\n", r.report.Vault)
	fmt.Printf("Network: %s\n", r.report.Network)
	fmt.Printf("Window: %s - %s (%.2fs)\n",
		r.report.StartTime.Format("15:04:05"),
		r.report.EndTime.Format("15:04:05"),
		r.report.EndTime.Sub(r.report.StartTime).Seconds(),
	)
	fmt.Printf("Operations evaluated: %d\n", r.report.Operations)
	fmt.Println("────────────────────────────────────────────────────────────")

	fmt.Printf("Violations: %d\n", summary.TotalViolations)
	fmt.Printf("Checks failed: %d\n", summary.TotalChecksFailed)

	if summary.CriticalViolations > 0 {
		color.New(color.FgRed, color.Bold).Printf("  - critical: %d\n", summary.CriticalViolations)
	}
	if summary.HighViolations > 0 {
		color.New(color.FgRed).Printf("  - high: %d\n", summary.HighViolations)
	}
	if summary.MediumViolations > 0 {
		color.New(color.FgYellow).Printf("  - medium: %d\n", summary.MediumViolations)
	}

	fmt.Printf("Violation rate: %.2f%%\n", summary.ViolationRate)
	fmt.Println("────────────────────────────────────────────────────────────")

	if summary.Breached {
		color.New(color.FgRed, color.Bold).Printf("🚨 Protocol invariant breached\n")
	} else {
		color.New(color.FgGreen).Printf("✓ No invariant breached\n")
	}

	fmt.Println("════════════════════════════════════════════════════════════")
}

// SaveToFile writes the JSON report.
func (r *Reporter) SaveToFile(filename string) error {
	if r.report.EndTime.IsZero() {
		r.Finalize()
	}

	data, err := json.MarshalIndent(r.report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	color.New(color.FgGreen).Printf("✓ Report saved to %s\n", filename)
	return nil
}

// GetReport returns the in-progress report.
func (r *Reporter) GetReport() *types.CheckReport {
	return r.report
}

// GetViolationCount returns the number of recorded violations.
func (r *Reporter) GetViolationCount() int {
	return len(r.violations)
}

// HasCriticalViolations reports whether any critical violation was recorded.
func (r *Reporter) HasCriticalViolations() bool {
	for _, v := range r.violations {
		if v.Severity == types.SeverityCritical {
			return true
		}
	}
	return false
}
