package trade

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parthchandak02/ibkr-cloud-run/internal/adapters/outbound/discord"
	"github.com/parthchandak02/ibkr-cloud-run/internal/events"
	"github.com/parthchandak02/ibkr-cloud-run/internal/telemetry"
)

// SingleRequest is one structured trade instruction.
type SingleRequest struct {
	Symbol             string
	Action             string
	Quantity           int // 0 = use the configured default
	CalendarEventID    string
	CalendarEventTitle string
}

// BatchRequest is a free-text batch of trade instructions.
type BatchRequest struct {
	TradesText         string
	CalendarEventID    string
	CalendarEventTitle string
}

// Orchestrator runs the trade pipeline: parse, resolve, execute, aggregate,
// then the best-effort side channels (notify, calendar, journal, events).
// A side-channel failure never changes a computed trade result.
type Orchestrator struct {
	parser     IntentParser
	executor   *Executor
	notifier   Notifier
	recorder   Recorder
	journal    Journal
	bus        *events.Bus
	defaultQty int
}

func NewOrchestrator(parser IntentParser, executor *Executor, notifier Notifier, recorder Recorder, journal Journal, bus *events.Bus, defaultQty int) *Orchestrator {
	if defaultQty <= 0 {
		defaultQty = 1
	}
	return &Orchestrator{
		parser:     parser,
		executor:   executor,
		notifier:   notifier,
		recorder:   recorder,
		journal:    journal,
		bus:        bus,
		defaultQty: defaultQty,
	}
}

// DryRun reports whether the pipeline simulates instead of submitting.
func (o *Orchestrator) DryRun() bool { return o.executor.DryRun() }

// ExecuteSingle validates and runs one structured trade. The returned error
// is always an operator input problem; execution failures are reported in
// the Outcome itself.
func (o *Orchestrator) ExecuteSingle(ctx context.Context, req SingleRequest) (Outcome, error) {
	telemetry.Metrics.TradesRequested.Inc()

	action, ok := ParseAction(req.Action)
	if !ok {
		return Outcome{}, fmt.Errorf("action must be 'BUY' or 'SELL'")
	}

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if !ValidSymbol(symbol) {
		return Outcome{}, fmt.Errorf("symbol must be 1-5 letters")
	}

	qty := req.Quantity
	if qty == 0 {
		qty = o.defaultQty
	}
	if qty < 0 {
		return Outcome{}, fmt.Errorf("quantity must be positive")
	}

	intent := Intent{Symbol: symbol, Action: action, Quantity: qty}
	outcome := o.executor.Execute(ctx, intent)

	batchID := uuid.NewString()
	o.publishOutcome(batchID, outcome)

	batch := Aggregate(batchID, []Outcome{outcome}, o.DryRun())
	o.sideChannels(ctx, recordRef(req.CalendarEventID, req.CalendarEventTitle), batch, true)

	return outcome, nil
}

// ExecuteBatch parses and runs a free-text batch. Individual trade failures
// never abort the batch; the only error is a batch with nothing parseable.
func (o *Orchestrator) ExecuteBatch(ctx context.Context, req BatchRequest) (Batch, []string, error) {
	telemetry.Metrics.BatchesRequested.Inc()

	intents, warnings := o.parser.Parse(req.TradesText)
	telemetry.Metrics.IntentsParsed.Add(int64(len(intents)))
	telemetry.Metrics.ParseWarnings.Add(int64(len(warnings)))

	if len(intents) == 0 {
		return Batch{}, warnings, fmt.Errorf("no valid trades found in request")
	}

	batchID := uuid.NewString()
	telemetry.Infof("trade: batch %s starting, %d intents (%d skipped)", batchID, len(intents), len(warnings))

	outcomes := make([]Outcome, 0, len(intents))
	for _, intent := range intents {
		outcome := o.executor.Execute(ctx, intent)
		outcomes = append(outcomes, outcome)
		o.publishOutcome(batchID, outcome)
	}

	batch := Aggregate(batchID, outcomes, o.DryRun())
	telemetry.Infof("trade: batch %s complete: %s (%s)", batchID, batch.Overall, batch.Summary)

	o.sideChannels(ctx, recordRef(req.CalendarEventID, req.CalendarEventTitle), batch, false)

	return batch, warnings, nil
}

// sideChannels fans the finished batch out to the notifier, the calendar
// recorder, and the journal. Failures are logged and swallowed.
func (o *Orchestrator) sideChannels(ctx context.Context, ref *RecordRef, batch Batch, single bool) {
	if single && len(batch.Outcomes) == 1 {
		out := batch.Outcomes[0]
		if err := o.notifier.Notify(ctx, out.Message, outcomeSeverity(out, batch.DryRun)); err != nil {
			telemetry.Metrics.NotifyErrors.Inc()
			telemetry.Warnf("trade: notification failed: %v", err)
		}
	} else {
		if err := o.notifier.BatchSummary(ctx, string(batch.Overall), batch.Summary, len(batch.Outcomes), batch.Failed(), batch.DryRun); err != nil {
			telemetry.Metrics.NotifyErrors.Inc()
			telemetry.Warnf("trade: batch notification failed: %v", err)
		}
	}

	o.recorder.Record(ctx, ref, batch)

	if err := o.journal.AppendBatch(batch); err != nil {
		telemetry.Metrics.JournalErrors.Inc()
		telemetry.Warnf("trade: journal append failed: %v", err)
	}

	o.bus.Publish(events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventBatchComplete,
		BatchID:   batch.ID,
		Timestamp: time.Now().UTC(),
		Payload: events.BatchCompleteEvent{
			BatchID:    batch.ID,
			Overall:    string(batch.Overall),
			Total:      len(batch.Outcomes),
			Successful: batch.Succeeded(),
			Failed:     batch.Failed(),
			Summary:    batch.Summary,
			DryRun:     batch.DryRun,
		},
	})
}

func (o *Orchestrator) publishOutcome(batchID string, out Outcome) {
	evt := events.TradeOutcomeEvent{
		BatchID:   batchID,
		Symbol:    out.Intent.Symbol,
		Action:    string(out.Intent.Action),
		Quantity:  out.Intent.Quantity,
		Mode:      string(out.Mode),
		OrderID:   out.OrderID,
		ClientRef: out.ClientRef,
		Message:   out.Message,
	}
	if out.Contract != nil {
		evt.ConID = out.Contract.ConID
		evt.Exchange = out.Contract.Exchange
	}

	o.bus.Publish(events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTradeOutcome,
		BatchID:   batchID,
		Symbol:    out.Intent.Symbol,
		Timestamp: out.Timestamp,
		Payload:   evt,
	})
}

func recordRef(id, title string) *RecordRef {
	if id == "" {
		return nil
	}
	return &RecordRef{ID: id, Title: title}
}

// outcomeSeverity maps a single outcome to its notification color. A
// dry-run failure warns; only live failures alarm.
func outcomeSeverity(o Outcome, dryRun bool) discord.Severity {
	switch o.Mode {
	case ModeExecuted:
		return discord.SeveritySuccess
	case ModeSimulated:
		return discord.SeverityInfo
	default:
		if dryRun {
			return discord.SeverityWarning
		}
		return discord.SeverityError
	}
}
