package trade

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/parthchandak02/ibkr-cloud-run/internal/adapters/outbound/ibkr_http"
	"github.com/parthchandak02/ibkr-cloud-run/internal/core/symbols"
	"github.com/parthchandak02/ibkr-cloud-run/internal/telemetry"
)

var (
	_ SymbolResolver = (*symbols.Resolver)(nil)
	_ SessionEnsurer = (*ibkr_http.Session)(nil)
	_ OrderPlacer    = (*ibkr_http.Client)(nil)
)

// brokerMessageMax bounds how much broker error text an outcome carries.
const brokerMessageMax = 300

// submitTimeout caps one order submission including its confirmation
// rounds. A hung gateway turns into a failed outcome, not a hung request.
const submitTimeout = 30 * time.Second

// Executor walks one intent through resolve and submit (or simulate).
// Every path ends in an Outcome; it never panics the batch and never
// submits in dry-run mode.
type Executor struct {
	resolver SymbolResolver
	session  SessionEnsurer
	orders   OrderPlacer
	dryRun   bool
}

func NewExecutor(resolver SymbolResolver, session SessionEnsurer, orders OrderPlacer, dryRun bool) *Executor {
	return &Executor{
		resolver: resolver,
		session:  session,
		orders:   orders,
		dryRun:   dryRun,
	}
}

func (e *Executor) DryRun() bool { return e.dryRun }

// Execute resolves and then simulates or submits a single intent.
func (e *Executor) Execute(ctx context.Context, intent Intent) Outcome {
	out := Outcome{
		Intent:    intent,
		Timestamp: time.Now().UTC(),
	}

	contract := e.resolver.Resolve(ctx, intent.Symbol)
	out.Contract = contract

	if contract == nil {
		telemetry.Metrics.ResolveFailures.Inc()
		out.Mode = ModeFailed
		if e.dryRun {
			out.Message = fmt.Sprintf("❌ DRY RUN FAILED: Could not find contract for %s", intent.Symbol)
		} else {
			out.Message = fmt.Sprintf("❌ Could not find contract for %s", intent.Symbol)
		}
		return out
	}

	if e.dryRun {
		telemetry.Metrics.TradesSimulated.Inc()
		out.Mode = ModeSimulated
		out.Message = fmt.Sprintf("🔍 DRY RUN: Would %s %s shares of %s (conid: %s)",
			intent.Action, humanize.Comma(int64(intent.Quantity)), intent.Symbol, contract.ConID)
		return out
	}

	return e.submit(ctx, out, intent, contract.ConID)
}

func (e *Executor) submit(ctx context.Context, out Outcome, intent Intent, conid string) Outcome {
	acct, err := e.session.Ensure(ctx)
	if err != nil {
		telemetry.Errorf("trade: broker session unavailable: %v", err)
		out.Mode = ModeFailed
		out.Message = fmt.Sprintf("❌ Broker session unavailable: %s", truncateMessage(err.Error(), brokerMessageMax))
		return out
	}

	out.ClientRef = NewClientRef(intent.Symbol)
	ticket := ibkr_http.OrderTicket{
		ConID:     conid,
		Symbol:    intent.Symbol,
		Side:      string(intent.Action),
		Quantity:  intent.Quantity,
		ClientRef: out.ClientRef,
	}

	submitCtx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()

	start := time.Now()
	result, err := e.orders.PlaceMarketOrder(submitCtx, acct, ticket)
	telemetry.Metrics.SubmitLatency.Record(time.Since(start))

	if err != nil {
		out.Mode = ModeFailed
		out.Message = fmt.Sprintf("❌ Order failed for %s: %s", intent.Symbol, truncateMessage(err.Error(), brokerMessageMax))
		return out
	}

	out.Mode = ModeExecuted
	out.OrderID = result.OrderID
	out.Message = fmt.Sprintf("✅ Executed %s %s shares of %s (conid: %s, order id: %s)",
		intent.Action, humanize.Comma(int64(intent.Quantity)), intent.Symbol, conid, result.OrderID)
	return out
}
