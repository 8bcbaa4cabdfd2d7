package recorder

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/parthchandak02/ibkr-cloud-run/internal/adapters/outbound/calendar"
	"github.com/parthchandak02/ibkr-cloud-run/internal/core/trade"
	"github.com/parthchandak02/ibkr-cloud-run/internal/telemetry"
)

var _ trade.Recorder = (*Recorder)(nil)

// CalendarAPI is the slice of the calendar client the recorder needs.
// Satisfied by *calendar.Client.
type CalendarAPI interface {
	Enabled() bool
	GetEvent(ctx context.Context, id string) (*calendar.Event, error)
	UpdateEvent(ctx context.Context, id, title, description string) error
}

// marker is the sentinel line that makes annotation idempotent: an event
// whose description already contains it is never annotated again.
const marker = "[executed-by-trading-bot]"

// Recorder annotates calendar events with execution results, exactly once
// per event. Every calendar failure is swallowed: recording is a side
// channel and must never change a trade result.
type Recorder struct {
	client CalendarAPI

	mu   sync.RWMutex
	seen map[string]bool
}

func New(client CalendarAPI) *Recorder {
	return &Recorder{
		client: client,
		seen:   make(map[string]bool),
	}
}

// Record prepends the execution block to the event's description and
// prefixes the title with the batch's status glyph. No-op without a ref,
// without calendar configuration, or when the event is already annotated.
func (r *Recorder) Record(ctx context.Context, ref *trade.RecordRef, batch trade.Batch) {
	if ref == nil || ref.ID == "" {
		return
	}
	if !r.client.Enabled() {
		telemetry.Debugf("recorder: calendar not configured, skipping event %s", ref.ID)
		return
	}
	if r.hasSeen(ref.ID) {
		telemetry.Metrics.CalendarSkips.Inc()
		telemetry.Infof("recorder: event %s already annotated this run, skipping", ref.ID)
		return
	}

	ev, err := r.client.GetEvent(ctx, ref.ID)
	if err != nil {
		telemetry.Warnf("recorder: fetch event %s failed: %v", ref.ID, err)
		return
	}

	// Calendar backends round-trip text through differing unicode forms;
	// normalize before searching so the marker check stays stable.
	desc := norm.NFC.String(ev.Description)
	if strings.Contains(desc, marker) {
		r.markSeen(ref.ID)
		telemetry.Metrics.CalendarSkips.Inc()
		telemetry.Infof("recorder: event %s already annotated, skipping", ref.ID)
		return
	}

	title := ev.Title
	if title == "" {
		title = ref.Title
	}

	newDesc := executionBlock(batch)
	if desc != "" {
		newDesc += "\n\n" + desc
	}

	if err := r.client.UpdateEvent(ctx, ref.ID, retitle(title, batch.Overall), newDesc); err != nil {
		telemetry.Warnf("recorder: update event %s failed: %v", ref.ID, err)
		return
	}

	r.markSeen(ref.ID)
	telemetry.Metrics.CalendarWrites.Inc()
	telemetry.Infof("recorder: annotated event %s (%s)", ref.ID, batch.Overall)
}

// executionBlock renders the annotation prepended to the description: the
// sentinel marker, a status line, and per-trade lines for multi-trade
// batches.
func executionBlock(batch trade.Batch) string {
	var sb strings.Builder
	sb.WriteString(marker)
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Executed at %s\n", time.Now().UTC().Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Status: %s (%s)\n", batch.Overall, batch.Summary))
	if len(batch.Outcomes) > 1 {
		for _, o := range batch.Outcomes {
			sb.WriteString("• ")
			sb.WriteString(o.Message)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("---")
	return sb.String()
}

func statusGlyph(s trade.OverallStatus) string {
	switch s {
	case trade.OverallAllExecuted:
		return "✅"
	case trade.OverallAllSimulated:
		return "🔍"
	case trade.OverallAllFailed:
		return "❌"
	default:
		return "⚠️"
	}
}

var knownGlyphs = []string{"✅", "🔍", "❌", "⚠️"}

// retitle prefixes the title with the batch's status glyph, replacing a
// previous status glyph instead of stacking a second one.
func retitle(title string, overall trade.OverallStatus) string {
	t := strings.TrimSpace(norm.NFC.String(title))
	for _, g := range knownGlyphs {
		if strings.HasPrefix(t, g) {
			t = strings.TrimSpace(strings.TrimPrefix(t, g))
			break
		}
	}
	if t == "" {
		return statusGlyph(overall)
	}
	return statusGlyph(overall) + " " + t
}

func (r *Recorder) hasSeen(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seen[id]
}

func (r *Recorder) markSeen(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[id] = true
}
