package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/parthchandak02/ibkr-cloud-run/internal/core/symbols"
	"github.com/parthchandak02/ibkr-cloud-run/internal/core/trade"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "executions.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testBatch(id string, modes ...trade.Mode) trade.Batch {
	outcomes := make([]trade.Outcome, len(modes))
	for i, m := range modes {
		outcomes[i] = trade.Outcome{
			Intent:    trade.Intent{Symbol: "TSLA", Action: trade.ActionBuy, Quantity: 5},
			Mode:      m,
			Message:   "msg " + string(m),
			Timestamp: time.Now().UTC(),
		}
		if m != trade.ModeFailed {
			outcomes[i].Contract = &symbols.Contract{ConID: "76792991", Exchange: "NASDAQ"}
		}
		if m == trade.ModeExecuted {
			outcomes[i].OrderID = "987654"
			outcomes[i].ClientRef = "TSLA-1-abc"
		}
	}
	return trade.Aggregate(id, outcomes, false)
}

func TestAppendAndRecent(t *testing.T) {
	store := testStore(t)

	if err := store.AppendBatch(testBatch("b1", trade.ModeExecuted, trade.ModeFailed)); err != nil {
		t.Fatalf("append batch: %v", err)
	}
	if err := store.AppendBatch(testBatch("b2", trade.ModeSimulated)); err != nil {
		t.Fatalf("append batch: %v", err)
	}

	entries, err := store.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	// Newest first.
	if entries[0].BatchID != "b2" {
		t.Errorf("expected newest batch first, got %q", entries[0].BatchID)
	}
	if entries[0].Mode != string(trade.ModeSimulated) {
		t.Errorf("expected simulated mode, got %q", entries[0].Mode)
	}

	// The executed row carries its broker identifiers.
	var executed *Entry
	for i := range entries {
		if entries[i].Mode == string(trade.ModeExecuted) {
			executed = &entries[i]
		}
	}
	if executed == nil {
		t.Fatal("expected an executed entry")
	}
	if executed.OrderID != "987654" || executed.ConID != "76792991" {
		t.Errorf("unexpected executed entry %+v", executed)
	}

	// The failed row has no contract columns.
	var failed *Entry
	for i := range entries {
		if entries[i].Mode == string(trade.ModeFailed) {
			failed = &entries[i]
		}
	}
	if failed == nil {
		t.Fatal("expected a failed entry")
	}
	if failed.ConID != "" || failed.OrderID != "" {
		t.Errorf("failed entry should have empty broker fields, got %+v", failed)
	}
}

func TestRecentLimit(t *testing.T) {
	store := testStore(t)

	for i := 0; i < 5; i++ {
		if err := store.AppendBatch(testBatch("b", trade.ModeSimulated)); err != nil {
			t.Fatalf("append batch: %v", err)
		}
	}

	entries, err := store.Recent(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected limit of 2, got %d", len(entries))
	}
}

func TestRecentEmptyStore(t *testing.T) {
	store := testStore(t)

	entries, err := store.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}
