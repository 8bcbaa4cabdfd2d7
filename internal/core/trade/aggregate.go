package trade

import "fmt"

// Aggregate rolls per-trade outcomes up into a Batch. A mix of executed
// and simulated with no failures is "mixed", and a batch where nothing
// succeeded is "all_failed" rather than a partial failure.
func Aggregate(batchID string, outcomes []Outcome, dryRun bool) Batch {
	b := Batch{
		ID:       batchID,
		Outcomes: outcomes,
		DryRun:   dryRun,
	}

	var executed, simulated, failed int
	for _, o := range outcomes {
		switch o.Mode {
		case ModeExecuted:
			executed++
		case ModeSimulated:
			simulated++
		case ModeFailed:
			failed++
		}
	}
	total := len(outcomes)

	switch {
	case total > 0 && executed == total:
		b.Overall = OverallAllExecuted
	case total > 0 && simulated == total:
		b.Overall = OverallAllSimulated
	case total > 0 && failed == total:
		b.Overall = OverallAllFailed
	case failed > 0:
		b.Overall = OverallPartialFailure
	default:
		b.Overall = OverallMixed
	}

	b.Summary = fmt.Sprintf("%d/%d trades executed, %d failed", executed+simulated, total, failed)
	return b
}
