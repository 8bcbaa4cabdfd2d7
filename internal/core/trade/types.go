package trade

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parthchandak02/ibkr-cloud-run/internal/core/symbols"
)

// Action is the trade direction. Only BUY and SELL exist.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// ParseAction validates a raw action string case-insensitively.
func ParseAction(raw string) (Action, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(ActionBuy):
		return ActionBuy, true
	case string(ActionSell):
		return ActionSell, true
	default:
		return "", false
	}
}

var symbolRe = regexp.MustCompile(`^[A-Z]{1,5}$`)

// ValidSymbol reports whether s is a plausible ticker: 1-5 uppercase letters.
func ValidSymbol(s string) bool {
	return symbolRe.MatchString(s)
}

// Intent is one validated trade instruction. Immutable once built.
type Intent struct {
	Symbol   string
	Action   Action
	Quantity int
}

// Mode is the terminal state of one trade attempt.
type Mode string

const (
	ModeSimulated Mode = "simulated"
	ModeExecuted  Mode = "executed"
	ModeFailed    Mode = "failed"
)

// Outcome records what happened to one intent. Exactly one Outcome exists
// per Intent, in intent order.
type Outcome struct {
	Intent    Intent
	Contract  *symbols.Contract // nil when the symbol did not resolve
	Mode      Mode
	Message   string
	OrderID   string
	ClientRef string
	Timestamp time.Time
}

// OverallStatus is the batch-level rollup of outcome modes.
type OverallStatus string

const (
	OverallAllExecuted    OverallStatus = "all_executed"
	OverallAllSimulated   OverallStatus = "all_simulated"
	OverallAllFailed      OverallStatus = "all_failed"
	OverallPartialFailure OverallStatus = "partial_failure"
	OverallMixed          OverallStatus = "mixed"
)

// Batch is the aggregate result of one request.
type Batch struct {
	ID       string
	Outcomes []Outcome
	Overall  OverallStatus
	Summary  string
	DryRun   bool
}

// Failed counts failed outcomes.
func (b Batch) Failed() int {
	n := 0
	for _, o := range b.Outcomes {
		if o.Mode == ModeFailed {
			n++
		}
	}
	return n
}

// Succeeded counts executed and simulated outcomes.
func (b Batch) Succeeded() int {
	return len(b.Outcomes) - b.Failed()
}

// RecordRef points at the external calendar record a batch annotates.
type RecordRef struct {
	ID    string
	Title string
}

// NewClientRef builds the client order reference submitted with a live
// order: symbol, millisecond timestamp, and a short random suffix so two
// orders for the same symbol in the same millisecond stay distinct.
func NewClientRef(symbol string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%d-%s", symbol, time.Now().UnixMilli(), suffix)
}

// truncateMessage bounds broker error text carried into outcomes and
// notifications.
func truncateMessage(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
