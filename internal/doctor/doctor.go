// Package doctor runs preflight checks for the publish pipeline: config,
// wallet, storage credentials and reachability of the Lens API, the IPFS API
// and the RPC endpoint.
package doctor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// checkTimeout bounds a single network check.
const checkTimeout = 15 * time.Second

// Doctor runs a list of checkers
type Doctor struct {
	checkers []Checker
	output   *Output
	writer   io.Writer
	options  Options
}

// New creates a Doctor writing to w.
func New(opts Options, w io.Writer, useColors bool, checkers ...Checker) *Doctor {
	return &Doctor{
		checkers: checkers,
		output:   NewOutput(w, useColors && !opts.JSON),
		writer:   w,
		options:  opts,
	}
}

// AddChecker adds a checker
func (d *Doctor) AddChecker(c Checker) {
	d.checkers = append(d.checkers, c)
}

// Run executes all checks and returns a report
func (d *Doctor) Run(ctx context.Context) (*Report, error) {
	checkers := d.filterCheckers()
	report := &Report{
		Checks: make([]CheckResult, 0, len(checkers)),
	}

	if !d.options.JSON {
		d.output.Header()
	}

	for i, checker := range checkers {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !d.options.JSON {
			d.output.CheckStart(i+1, len(checkers), checker.Name())
		}

		result := runCheck(ctx, checker)
		report.Checks = append(report.Checks, result)
		updateSummary(&report.Summary, result)

		if !d.options.JSON {
			d.output.CheckResult(result)
		}
	}

	if d.options.JSON {
		enc := json.NewEncoder(d.writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return report, fmt.Errorf("failed to encode report: %w", err)
		}
		return report, nil
	}

	d.output.Summary(report.Summary)
	return report, nil
}

func runCheck(ctx context.Context, checker Checker) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	result := checker.Check(ctx)
	if result.Name == "" {
		result.Name = checker.Name()
	}
	if result.Category == "" {
		result.Category = checker.Category()
	}
	return result
}

func (d *Doctor) filterCheckers() []Checker {
	if d.options.Category == "" {
		return d.checkers
	}

	filtered := make([]Checker, 0, len(d.checkers))
	for _, c := range d.checkers {
		if c.Category() == d.options.Category {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

func updateSummary(summary *Summary, result CheckResult) {
	summary.Total++
	switch result.Status {
	case StatusOK:
		summary.Passed++
	case StatusError:
		summary.Failed++
	case StatusWarning:
		summary.Warned++
	case StatusSkipped:
		summary.Skipped++
	}
}
