// Package probe runs startup checks before the daemon accepts traffic.
// Critical failures abort startup; the rest are logged and ignored.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrSkip marks a check as not applicable to the current configuration.
// Skipped probes never fail startup, critical or not.
var ErrSkip = errors.New("check not applicable")

// CheckFunc performs one startup check. A nil return is a pass.
type CheckFunc func(ctx context.Context) error

// Probe is a single named startup check.
type Probe struct {
	Name     string
	Check    CheckFunc
	Critical bool          // failure prevents startup
	Timeout  time.Duration // per-check budget, defaults to 5s
}

// Result holds the outcome of one executed probe.
type Result struct {
	Probe    Probe
	Error    error
	Duration time.Duration
}

// Skipped reports whether the check declared itself not applicable.
func (r Result) Skipped() bool {
	return errors.Is(r.Error, ErrSkip)
}

const defaultTimeout = 5 * time.Second

// Run executes the probes in order. Each check runs under its own
// deadline so a wedged dependency cannot stall startup forever.
func Run(ctx context.Context, probes []Probe) []Result {
	results := make([]Result, len(probes))

	for i, p := range probes {
		budget := p.Timeout
		if budget <= 0 {
			budget = defaultTimeout
		}

		start := time.Now()
		checkCtx, cancel := context.WithTimeout(ctx, budget)
		err := p.Check(checkCtx)
		cancel()

		results[i] = Result{
			Probe:    p,
			Error:    err,
			Duration: time.Since(start),
		}
	}

	return results
}

// AnalyzeResults logs one line per probe and returns the joined errors
// of all failed critical probes, or nil when startup may proceed.
func AnalyzeResults(results []Result) error {
	var criticalErrors []error

	slog.Info("Startup checks:")

	for _, r := range results {
		elapsed := r.Duration.Round(time.Millisecond)
		switch {
		case r.Skipped():
			slog.Info(fmt.Sprintf("[SKIP] %-20s (%v)", r.Probe.Name, elapsed))
		case r.Error != nil:
			slog.Error(fmt.Sprintf("[FAIL] %-20s (%v)", r.Probe.Name, elapsed), "error", r.Error)
			if r.Probe.Critical {
				criticalErrors = append(criticalErrors, fmt.Errorf("%s: %w", r.Probe.Name, r.Error))
			}
		default:
			slog.Info(fmt.Sprintf("[PASS] %-20s (%v)", r.Probe.Name, elapsed))
		}
	}

	if len(criticalErrors) > 0 {
		return errors.Join(criticalErrors...)
	}
	return nil
}
