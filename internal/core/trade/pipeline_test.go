package trade_test

import (
	"context"
	"strings"
	"testing"

	"github.com/parthchandak02/ibkr-cloud-run/internal/adapters/outbound/discord"
	"github.com/parthchandak02/ibkr-cloud-run/internal/adapters/outbound/ibkr_http"
	"github.com/parthchandak02/ibkr-cloud-run/internal/core/intent"
	"github.com/parthchandak02/ibkr-cloud-run/internal/core/symbols"
	"github.com/parthchandak02/ibkr-cloud-run/internal/core/trade"
	"github.com/parthchandak02/ibkr-cloud-run/internal/events"
)

// These tests wire the real parser into the real executor and orchestrator,
// with only the broker and side channels stubbed, and walk free text through
// the whole pipeline.

type stubResolver struct {
	contracts map[string]*symbols.Contract
}

func (s *stubResolver) Resolve(_ context.Context, symbol string) *symbols.Contract {
	return s.contracts[symbol]
}

type stubSession struct{}

func (stubSession) Ensure(context.Context) (string, error) { return "U123", nil }

type stubOrders struct {
	tickets []ibkr_http.OrderTicket
	err     error
}

func (s *stubOrders) PlaceMarketOrder(_ context.Context, _ string, t ibkr_http.OrderTicket) (*ibkr_http.OrderResult, error) {
	s.tickets = append(s.tickets, t)
	if s.err != nil {
		return nil, s.err
	}
	return &ibkr_http.OrderResult{OrderID: "987654", OrderStatus: "PreSubmitted"}, nil
}

type stubNotifier struct{}

func (stubNotifier) Notify(context.Context, string, discord.Severity) error { return nil }
func (stubNotifier) BatchSummary(context.Context, string, string, int, int, bool) error {
	return nil
}

type stubRecorder struct{}

func (stubRecorder) Record(context.Context, *trade.RecordRef, trade.Batch) {}

type stubJournal struct{}

func (stubJournal) AppendBatch(trade.Batch) error { return nil }

func newPipeline(resolver *stubResolver, orders *stubOrders, dryRun bool) *trade.Orchestrator {
	executor := trade.NewExecutor(resolver, stubSession{}, orders, dryRun)
	return trade.NewOrchestrator(intent.NewParser(), executor, stubNotifier{}, stubRecorder{}, stubJournal{}, events.NewBus(), 1)
}

func TestPipelineDryRunBatch(t *testing.T) {
	resolver := &stubResolver{contracts: map[string]*symbols.Contract{
		"TSLA": {ConID: "76792991", Exchange: "NASDAQ"},
		"AAPL": {ConID: "265598", Exchange: "NASDAQ"},
	}}
	orders := &stubOrders{}
	orch := newPipeline(resolver, orders, true)

	batch, warnings, err := orch.ExecuteBatch(context.Background(), trade.BatchRequest{
		TradesText: "BUY 10 TSLA, SELL 5 AAPL",
	})
	if err != nil {
		t.Fatalf("ExecuteBatch failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("expected no parse warnings, got %v", warnings)
	}

	if len(batch.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(batch.Outcomes))
	}
	// Outcome order matches input order.
	if batch.Outcomes[0].Intent.Symbol != "TSLA" || batch.Outcomes[1].Intent.Symbol != "AAPL" {
		t.Errorf("expected TSLA then AAPL, got %s then %s",
			batch.Outcomes[0].Intent.Symbol, batch.Outcomes[1].Intent.Symbol)
	}
	if batch.Outcomes[0].Intent.Quantity != 10 || batch.Outcomes[1].Intent.Quantity != 5 {
		t.Errorf("unexpected quantities %d and %d",
			batch.Outcomes[0].Intent.Quantity, batch.Outcomes[1].Intent.Quantity)
	}
	for i, out := range batch.Outcomes {
		if out.Mode != trade.ModeSimulated {
			t.Errorf("outcome %d: expected simulated, got %s (%q)", i, out.Mode, out.Message)
		}
	}

	if batch.Overall != trade.OverallAllSimulated {
		t.Errorf("expected all_simulated, got %s", batch.Overall)
	}
	if batch.Succeeded() != 2 || batch.Failed() != 0 {
		t.Errorf("expected 2 successful and 0 failed, got %d and %d", batch.Succeeded(), batch.Failed())
	}
	if len(orders.tickets) != 0 {
		t.Errorf("dry run must never submit orders, got %d", len(orders.tickets))
	}
}

func TestPipelineLiveUnresolvedContinues(t *testing.T) {
	resolver := &stubResolver{contracts: map[string]*symbols.Contract{
		"TSLA": {ConID: "76792991", Exchange: "NASDAQ"},
	}}
	orders := &stubOrders{}
	orch := newPipeline(resolver, orders, false)

	batch, _, err := orch.ExecuteBatch(context.Background(), trade.BatchRequest{
		TradesText: "BUY 10 TSLA\nSELL 5 ZZZZ",
	})
	if err != nil {
		t.Fatalf("ExecuteBatch failed: %v", err)
	}

	if len(batch.Outcomes) != 2 {
		t.Fatalf("unresolvable symbol must not abort the batch, got %d outcomes", len(batch.Outcomes))
	}
	if batch.Outcomes[0].Mode != trade.ModeExecuted {
		t.Errorf("expected TSLA executed, got %s (%q)", batch.Outcomes[0].Mode, batch.Outcomes[0].Message)
	}
	if batch.Outcomes[1].Mode != trade.ModeFailed {
		t.Errorf("expected ZZZZ failed, got %s", batch.Outcomes[1].Mode)
	}
	if !strings.Contains(batch.Outcomes[1].Message, "ZZZZ") {
		t.Errorf("failure message should name the symbol, got %q", batch.Outcomes[1].Message)
	}

	if batch.Overall != trade.OverallPartialFailure {
		t.Errorf("expected partial_failure, got %s", batch.Overall)
	}
	if len(orders.tickets) != 1 || orders.tickets[0].Symbol != "TSLA" {
		t.Errorf("expected exactly one order for TSLA, got %+v", orders.tickets)
	}
}
