package recorder

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/parthchandak02/ibkr-cloud-run/internal/adapters/outbound/calendar"
	"github.com/parthchandak02/ibkr-cloud-run/internal/core/trade"
)

type update struct {
	id, title, desc string
}

type fakeCalendar struct {
	enabled bool
	event   *calendar.Event
	getErr  error
	updErr  error
	gets    []string
	updates []update
}

func (f *fakeCalendar) Enabled() bool { return f.enabled }

func (f *fakeCalendar) GetEvent(_ context.Context, id string) (*calendar.Event, error) {
	f.gets = append(f.gets, id)
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.event, nil
}

func (f *fakeCalendar) UpdateEvent(_ context.Context, id, title, description string) error {
	if f.updErr != nil {
		return f.updErr
	}
	f.updates = append(f.updates, update{id: id, title: title, desc: description})
	return nil
}

func simulatedBatch(messages ...string) trade.Batch {
	outcomes := make([]trade.Outcome, len(messages))
	for i, msg := range messages {
		outcomes[i] = trade.Outcome{
			Intent:  trade.Intent{Symbol: "TSLA", Action: trade.ActionBuy, Quantity: 1},
			Mode:    trade.ModeSimulated,
			Message: msg,
		}
	}
	return trade.Aggregate("batch-1", outcomes, true)
}

func TestRecordAnnotates(t *testing.T) {
	cal := &fakeCalendar{
		enabled: true,
		event:   &calendar.Event{ID: "e1", Title: "Buy Tesla", Description: "morning notes"},
	}
	rec := New(cal)

	rec.Record(context.Background(), &trade.RecordRef{ID: "e1"}, simulatedBatch("🔍 DRY RUN: Would BUY 1 shares of TSLA (conid: 76792991)"))

	if len(cal.updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(cal.updates))
	}
	upd := cal.updates[0]

	if upd.title != "🔍 Buy Tesla" {
		t.Errorf("expected glyph-prefixed title, got %q", upd.title)
	}
	if !strings.HasPrefix(upd.desc, marker) {
		t.Errorf("description should start with the marker, got %q", upd.desc)
	}
	if !strings.Contains(upd.desc, "Status: all_simulated") {
		t.Errorf("description should carry the overall status, got %q", upd.desc)
	}
	if !strings.HasSuffix(upd.desc, "morning notes") {
		t.Errorf("original description should survive at the end, got %q", upd.desc)
	}
}

func TestRecordIdempotentViaMarker(t *testing.T) {
	cal := &fakeCalendar{
		enabled: true,
		event:   &calendar.Event{ID: "e1", Title: "Buy Tesla", Description: marker + "\nalready recorded"},
	}
	rec := New(cal)
	batch := simulatedBatch("msg")

	rec.Record(context.Background(), &trade.RecordRef{ID: "e1"}, batch)
	rec.Record(context.Background(), &trade.RecordRef{ID: "e1"}, batch)

	if len(cal.updates) != 0 {
		t.Errorf("marked event must never be updated again, got %d updates", len(cal.updates))
	}
	// The second call short-circuits on the in-process seen map.
	if len(cal.gets) != 1 {
		t.Errorf("expected 1 fetch, got %d", len(cal.gets))
	}
}

func TestRecordSeenAfterWrite(t *testing.T) {
	cal := &fakeCalendar{
		enabled: true,
		event:   &calendar.Event{ID: "e1", Title: "Buy Tesla"},
	}
	rec := New(cal)
	batch := simulatedBatch("msg")

	rec.Record(context.Background(), &trade.RecordRef{ID: "e1"}, batch)
	rec.Record(context.Background(), &trade.RecordRef{ID: "e1"}, batch)

	if len(cal.updates) != 1 {
		t.Errorf("expected exactly 1 update, got %d", len(cal.updates))
	}
	if len(cal.gets) != 1 {
		t.Errorf("expected 1 fetch, got %d", len(cal.gets))
	}
}

func TestRecordReplacesExistingGlyph(t *testing.T) {
	cal := &fakeCalendar{
		enabled: true,
		event:   &calendar.Event{ID: "e1", Title: "✅ Buy Tesla"},
	}
	rec := New(cal)

	out := trade.Outcome{
		Intent:  trade.Intent{Symbol: "TSLA", Action: trade.ActionBuy, Quantity: 1},
		Mode:    trade.ModeFailed,
		Message: "❌ Could not find contract for TSLA",
	}
	rec.Record(context.Background(), &trade.RecordRef{ID: "e1"}, trade.Aggregate("b", []trade.Outcome{out}, false))

	if len(cal.updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(cal.updates))
	}
	if got := cal.updates[0].title; got != "❌ Buy Tesla" {
		t.Errorf("expected glyph replaced, got %q", got)
	}
}

func TestRecordMultiTradeBreakdown(t *testing.T) {
	cal := &fakeCalendar{
		enabled: true,
		event:   &calendar.Event{ID: "e1", Title: "Trades"},
	}
	rec := New(cal)

	rec.Record(context.Background(), &trade.RecordRef{ID: "e1"}, simulatedBatch("first trade", "second trade"))

	desc := cal.updates[0].desc
	if !strings.Contains(desc, "• first trade") || !strings.Contains(desc, "• second trade") {
		t.Errorf("expected per-trade lines for a multi-trade batch, got %q", desc)
	}
}

func TestRecordFallsBackToRefTitle(t *testing.T) {
	cal := &fakeCalendar{
		enabled: true,
		event:   &calendar.Event{ID: "e1"},
	}
	rec := New(cal)

	rec.Record(context.Background(), &trade.RecordRef{ID: "e1", Title: "Planned Buys"}, simulatedBatch("msg"))

	if got := cal.updates[0].title; got != "🔍 Planned Buys" {
		t.Errorf("expected ref title used when the event has none, got %q", got)
	}
}

func TestRecordNoRef(t *testing.T) {
	cal := &fakeCalendar{enabled: true}
	rec := New(cal)

	rec.Record(context.Background(), nil, simulatedBatch("msg"))
	rec.Record(context.Background(), &trade.RecordRef{}, simulatedBatch("msg"))

	if len(cal.gets) != 0 || len(cal.updates) != 0 {
		t.Error("recording without a ref must not touch the calendar")
	}
}

func TestRecordDisabled(t *testing.T) {
	cal := &fakeCalendar{enabled: false}
	rec := New(cal)

	rec.Record(context.Background(), &trade.RecordRef{ID: "e1"}, simulatedBatch("msg"))

	if len(cal.gets) != 0 {
		t.Error("disabled calendar must not be called")
	}
}

func TestRecordFetchErrorSwallowed(t *testing.T) {
	cal := &fakeCalendar{enabled: true, getErr: errors.New("404")}
	rec := New(cal)
	batch := simulatedBatch("msg")

	rec.Record(context.Background(), &trade.RecordRef{ID: "e1"}, batch)

	// A failed fetch is not remembered; the next record retries.
	rec.Record(context.Background(), &trade.RecordRef{ID: "e1"}, batch)
	if len(cal.gets) != 2 {
		t.Errorf("expected a retry after fetch failure, got %d fetches", len(cal.gets))
	}
}

func TestRecordUpdateErrorSwallowed(t *testing.T) {
	cal := &fakeCalendar{
		enabled: true,
		event:   &calendar.Event{ID: "e1", Title: "Buy Tesla"},
		updErr:  errors.New("403"),
	}
	rec := New(cal)
	batch := simulatedBatch("msg")

	rec.Record(context.Background(), &trade.RecordRef{ID: "e1"}, batch)
	rec.Record(context.Background(), &trade.RecordRef{ID: "e1"}, batch)

	// A failed write is retried, not remembered as done.
	if len(cal.gets) != 2 {
		t.Errorf("expected a retry after update failure, got %d fetches", len(cal.gets))
	}
}
