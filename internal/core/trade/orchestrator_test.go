package trade

import (
	"context"
	"errors"
	"testing"

	"github.com/parthchandak02/ibkr-cloud-run/internal/adapters/outbound/discord"
	"github.com/parthchandak02/ibkr-cloud-run/internal/events"
)

type fakeParser struct {
	intents  []Intent
	warnings []string
	texts    []string
}

func (f *fakeParser) Parse(text string) ([]Intent, []string) {
	f.texts = append(f.texts, text)
	return f.intents, f.warnings
}

type fakeNotifier struct {
	messages   []string
	severities []discord.Severity
	summaries  []string
	err        error
}

func (f *fakeNotifier) Notify(_ context.Context, message string, severity discord.Severity) error {
	f.messages = append(f.messages, message)
	f.severities = append(f.severities, severity)
	return f.err
}

func (f *fakeNotifier) BatchSummary(_ context.Context, overall, _ string, _, _ int, _ bool) error {
	f.summaries = append(f.summaries, overall)
	return f.err
}

type fakeRecorder struct {
	refs    []*RecordRef
	batches []Batch
}

func (f *fakeRecorder) Record(_ context.Context, ref *RecordRef, batch Batch) {
	f.refs = append(f.refs, ref)
	f.batches = append(f.batches, batch)
}

type fakeJournal struct {
	batches []Batch
	err     error
}

func (f *fakeJournal) AppendBatch(b Batch) error {
	f.batches = append(f.batches, b)
	return f.err
}

type orchFixture struct {
	orch     *Orchestrator
	notifier *fakeNotifier
	recorder *fakeRecorder
	journal  *fakeJournal
	bus      *events.Bus
}

func newOrchFixture(parser IntentParser, dryRun bool, defaultQty int) *orchFixture {
	executor := NewExecutor(tslaResolver(), &fakeSession{account: "U123"}, &fakeOrders{}, dryRun)
	notifier := &fakeNotifier{}
	recorder := &fakeRecorder{}
	journal := &fakeJournal{}
	bus := events.NewBus()

	return &orchFixture{
		orch:     NewOrchestrator(parser, executor, notifier, recorder, journal, bus, defaultQty),
		notifier: notifier,
		recorder: recorder,
		journal:  journal,
		bus:      bus,
	}
}

func TestExecuteSingleValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     SingleRequest
		wantErr string
	}{
		{
			name:    "bad action",
			req:     SingleRequest{Symbol: "TSLA", Action: "HOLD", Quantity: 1},
			wantErr: "action must be 'BUY' or 'SELL'",
		},
		{
			name:    "bad symbol",
			req:     SingleRequest{Symbol: "TOOLONG", Action: "BUY", Quantity: 1},
			wantErr: "symbol must be 1-5 letters",
		},
		{
			name:    "negative quantity",
			req:     SingleRequest{Symbol: "TSLA", Action: "BUY", Quantity: -5},
			wantErr: "quantity must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newOrchFixture(&fakeParser{}, true, 1)
			_, err := fx.orch.ExecuteSingle(context.Background(), tt.req)

			if err == nil || err.Error() != tt.wantErr {
				t.Fatalf("expected error %q, got %v", tt.wantErr, err)
			}
			if len(fx.journal.batches) != 0 {
				t.Error("rejected request must not reach the journal")
			}
		})
	}
}

func TestExecuteSingleDefaultQuantity(t *testing.T) {
	fx := newOrchFixture(&fakeParser{}, true, 7)

	out, err := fx.orch.ExecuteSingle(context.Background(), SingleRequest{Symbol: "tsla", Action: "buy"})
	if err != nil {
		t.Fatalf("ExecuteSingle failed: %v", err)
	}

	if out.Intent.Quantity != 7 {
		t.Errorf("expected default quantity 7, got %d", out.Intent.Quantity)
	}
	if out.Intent.Symbol != "TSLA" {
		t.Errorf("expected normalized symbol TSLA, got %q", out.Intent.Symbol)
	}
	if out.Mode != ModeSimulated {
		t.Errorf("expected simulated, got %s", out.Mode)
	}
}

func TestExecuteSingleSideChannels(t *testing.T) {
	fx := newOrchFixture(&fakeParser{}, true, 1)

	out, err := fx.orch.ExecuteSingle(context.Background(), SingleRequest{
		Symbol:             "TSLA",
		Action:             "BUY",
		Quantity:           2,
		CalendarEventID:    "evt-42",
		CalendarEventTitle: "Buy Tesla",
	})
	if err != nil {
		t.Fatalf("ExecuteSingle failed: %v", err)
	}

	if len(fx.notifier.messages) != 1 || fx.notifier.messages[0] != out.Message {
		t.Fatalf("expected the outcome message notified, got %v", fx.notifier.messages)
	}
	if len(fx.notifier.summaries) != 0 {
		t.Error("single trades use the plain notification, not the batch summary")
	}
	if fx.notifier.severities[0] != discord.SeverityInfo {
		t.Errorf("simulated outcome should notify info, got %q", fx.notifier.severities[0])
	}

	if len(fx.recorder.refs) != 1 || fx.recorder.refs[0] == nil {
		t.Fatalf("expected a calendar record ref, got %v", fx.recorder.refs)
	}
	if fx.recorder.refs[0].ID != "evt-42" || fx.recorder.refs[0].Title != "Buy Tesla" {
		t.Errorf("unexpected record ref %+v", fx.recorder.refs[0])
	}

	if len(fx.journal.batches) != 1 || len(fx.journal.batches[0].Outcomes) != 1 {
		t.Fatalf("expected one journaled batch with one outcome, got %v", fx.journal.batches)
	}
}

func TestExecuteSingleNoCalendarRef(t *testing.T) {
	fx := newOrchFixture(&fakeParser{}, true, 1)

	if _, err := fx.orch.ExecuteSingle(context.Background(), SingleRequest{Symbol: "TSLA", Action: "SELL", Quantity: 1}); err != nil {
		t.Fatalf("ExecuteSingle failed: %v", err)
	}

	if len(fx.recorder.refs) != 1 || fx.recorder.refs[0] != nil {
		t.Errorf("expected nil record ref without a calendar event, got %v", fx.recorder.refs)
	}
}

func TestExecuteSingleSideChannelFailuresDoNotMask(t *testing.T) {
	fx := newOrchFixture(&fakeParser{}, true, 1)
	fx.notifier.err = errors.New("webhook down")
	fx.journal.err = errors.New("disk full")

	out, err := fx.orch.ExecuteSingle(context.Background(), SingleRequest{Symbol: "TSLA", Action: "BUY", Quantity: 1})

	if err != nil {
		t.Fatalf("side-channel failures must not fail the trade: %v", err)
	}
	if out.Mode != ModeSimulated {
		t.Errorf("expected simulated, got %s", out.Mode)
	}
}

func TestExecuteBatchNeverAborts(t *testing.T) {
	parser := &fakeParser{
		intents: []Intent{
			{Symbol: "TSLA", Action: ActionBuy, Quantity: 10},
			{Symbol: "ZZZZ", Action: ActionSell, Quantity: 5},
		},
		warnings: []string{`could not parse trade: "HOLD 5 MSFT"`},
	}
	fx := newOrchFixture(parser, true, 1)

	batch, warnings, err := fx.orch.ExecuteBatch(context.Background(), BatchRequest{TradesText: "whatever"})
	if err != nil {
		t.Fatalf("ExecuteBatch failed: %v", err)
	}

	if len(batch.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(batch.Outcomes))
	}
	if batch.Outcomes[0].Mode != ModeSimulated {
		t.Errorf("resolvable trade should simulate, got %s", batch.Outcomes[0].Mode)
	}
	if batch.Outcomes[1].Mode != ModeFailed {
		t.Errorf("unresolvable trade should fail, got %s", batch.Outcomes[1].Mode)
	}
	if batch.Overall != OverallPartialFailure {
		t.Errorf("expected partial_failure, got %s", batch.Overall)
	}
	if len(warnings) != 1 {
		t.Errorf("expected parse warnings passed through, got %v", warnings)
	}

	if len(fx.notifier.summaries) != 1 {
		t.Errorf("expected one batch summary notification, got %v", fx.notifier.summaries)
	}
	if len(fx.notifier.messages) != 0 {
		t.Error("batches must not use the single-trade notification")
	}
}

func TestExecuteBatchNothingParsed(t *testing.T) {
	parser := &fakeParser{warnings: []string{`could not parse trade: "garbage"`}}
	fx := newOrchFixture(parser, true, 1)

	_, warnings, err := fx.orch.ExecuteBatch(context.Background(), BatchRequest{TradesText: "garbage"})

	if err == nil || err.Error() != "no valid trades found in request" {
		t.Fatalf("expected no-valid-trades error, got %v", err)
	}
	if len(warnings) != 1 {
		t.Errorf("expected warnings even on rejection, got %v", warnings)
	}
	if len(fx.journal.batches) != 0 || len(fx.notifier.summaries) != 0 {
		t.Error("rejected batch must not reach the side channels")
	}
}

func TestExecuteBatchPublishesEvents(t *testing.T) {
	parser := &fakeParser{
		intents: []Intent{
			{Symbol: "TSLA", Action: ActionBuy, Quantity: 1},
			{Symbol: "TSLA", Action: ActionSell, Quantity: 2},
		},
	}
	fx := newOrchFixture(parser, true, 1)

	var outcomes, completions int
	fx.bus.Subscribe(events.EventTradeOutcome, func(events.Event) error {
		outcomes++
		return nil
	})
	fx.bus.Subscribe(events.EventBatchComplete, func(evt events.Event) error {
		completions++
		bc, ok := evt.Payload.(events.BatchCompleteEvent)
		if !ok {
			t.Errorf("expected BatchCompleteEvent payload, got %T", evt.Payload)
			return nil
		}
		if bc.Total != 2 || bc.Overall != string(OverallAllSimulated) {
			t.Errorf("unexpected completion payload %+v", bc)
		}
		return nil
	})

	if _, _, err := fx.orch.ExecuteBatch(context.Background(), BatchRequest{TradesText: "x"}); err != nil {
		t.Fatalf("ExecuteBatch failed: %v", err)
	}

	if outcomes != 2 {
		t.Errorf("expected 2 trade_outcome events, got %d", outcomes)
	}
	if completions != 1 {
		t.Errorf("expected 1 batch_complete event, got %d", completions)
	}
}
