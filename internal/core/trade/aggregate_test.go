package trade

import "testing"

func outcomes(modes ...Mode) []Outcome {
	out := make([]Outcome, len(modes))
	for i, m := range modes {
		out[i] = Outcome{
			Intent: Intent{Symbol: "TSLA", Action: ActionBuy, Quantity: 1},
			Mode:   m,
		}
	}
	return out
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name    string
		modes   []Mode
		overall OverallStatus
		summary string
	}{
		{
			name:    "all executed",
			modes:   []Mode{ModeExecuted, ModeExecuted},
			overall: OverallAllExecuted,
			summary: "2/2 trades executed, 0 failed",
		},
		{
			name:    "all simulated",
			modes:   []Mode{ModeSimulated, ModeSimulated, ModeSimulated},
			overall: OverallAllSimulated,
			summary: "3/3 trades executed, 0 failed",
		},
		{
			name:    "all failed",
			modes:   []Mode{ModeFailed, ModeFailed},
			overall: OverallAllFailed,
			summary: "0/2 trades executed, 2 failed",
		},
		{
			name:    "partial failure",
			modes:   []Mode{ModeExecuted, ModeFailed, ModeExecuted},
			overall: OverallPartialFailure,
			summary: "2/3 trades executed, 1 failed",
		},
		{
			name:    "simulated with failure is partial",
			modes:   []Mode{ModeSimulated, ModeFailed},
			overall: OverallPartialFailure,
			summary: "1/2 trades executed, 1 failed",
		},
		{
			name:    "executed and simulated mix without failures",
			modes:   []Mode{ModeExecuted, ModeSimulated},
			overall: OverallMixed,
			summary: "2/2 trades executed, 0 failed",
		},
		{
			name:    "single executed",
			modes:   []Mode{ModeExecuted},
			overall: OverallAllExecuted,
			summary: "1/1 trades executed, 0 failed",
		},
		{
			name:    "single failed",
			modes:   []Mode{ModeFailed},
			overall: OverallAllFailed,
			summary: "0/1 trades executed, 1 failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Aggregate("batch-1", outcomes(tt.modes...), false)

			if b.Overall != tt.overall {
				t.Errorf("expected overall %s, got %s", tt.overall, b.Overall)
			}
			if b.Summary != tt.summary {
				t.Errorf("expected summary %q, got %q", tt.summary, b.Summary)
			}
			if b.ID != "batch-1" {
				t.Errorf("expected batch id to carry through, got %q", b.ID)
			}
		})
	}
}

func TestBatchCounts(t *testing.T) {
	b := Aggregate("batch-2", outcomes(ModeExecuted, ModeFailed, ModeSimulated), true)

	if got := b.Failed(); got != 1 {
		t.Errorf("expected 1 failed, got %d", got)
	}
	if got := b.Succeeded(); got != 2 {
		t.Errorf("expected 2 succeeded, got %d", got)
	}
	if !b.DryRun {
		t.Error("expected dry-run flag to carry through")
	}
}
