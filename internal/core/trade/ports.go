package trade

import (
	"context"

	"github.com/parthchandak02/ibkr-cloud-run/internal/adapters/outbound/discord"
	"github.com/parthchandak02/ibkr-cloud-run/internal/adapters/outbound/ibkr_http"
	"github.com/parthchandak02/ibkr-cloud-run/internal/core/symbols"
)

// SymbolResolver finds the venue-qualified contract for a ticker, nil when
// it cannot. Satisfied by *symbols.Resolver.
type SymbolResolver interface {
	Resolve(ctx context.Context, symbol string) *symbols.Contract
}

// SessionEnsurer opens the brokerage session on first use and returns the
// account id. Satisfied by *ibkr_http.Session.
type SessionEnsurer interface {
	Ensure(ctx context.Context) (string, error)
}

// OrderPlacer submits one market order, answering confirmation prompts
// along the way. Satisfied by *ibkr_http.Client.
type OrderPlacer interface {
	PlaceMarketOrder(ctx context.Context, accountID string, t ibkr_http.OrderTicket) (*ibkr_http.OrderResult, error)
}

// IntentParser reads free text into intents plus warnings for fragments
// that did not parse. Satisfied by *intent.Parser.
type IntentParser interface {
	Parse(text string) ([]Intent, []string)
}

// Notifier delivers operator-facing status messages. Satisfied by
// *discord.Notifier.
type Notifier interface {
	Notify(ctx context.Context, message string, severity discord.Severity) error
	BatchSummary(ctx context.Context, overall, summary string, total, failed int, dryRun bool) error
}

// Recorder annotates the external calendar record, best-effort. Satisfied
// by *recorder.Recorder.
type Recorder interface {
	Record(ctx context.Context, ref *RecordRef, batch Batch)
}

// Journal persists outcomes for operator review. Satisfied by
// *journal.Store.
type Journal interface {
	AppendBatch(batch Batch) error
}
