package symbols

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/parthchandak02/ibkr-cloud-run/internal/adapters/outbound/ibkr_http"
	"github.com/parthchandak02/ibkr-cloud-run/internal/telemetry"
)

var _ ContractLookup = (*ibkr_http.Client)(nil)

// ContractLookup abstracts the broker's contract search.
// Satisfied by *ibkr_http.Client.
type ContractLookup interface {
	StockConID(ctx context.Context, symbol, exchange string) (*ibkr_http.ContractInfo, error)
}

// Contract is the venue-qualified handle order execution needs.
// A nil *Contract means the symbol did not resolve.
type Contract struct {
	ConID    string
	Exchange string
}

// Resolver maps tickers to contracts through the broker's catalog, with a
// TTL cache for hits and a venue override table for symbols that only trade
// under a different query on a specific exchange.
type Resolver struct {
	client    ContractLookup
	overrides map[string]VenueOverride

	mu    sync.RWMutex
	cache map[string]cacheEntry

	sfGroup singleflight.Group
}

type cacheEntry struct {
	contract  *Contract
	fetchedAt time.Time
}

// Contract ids are stable; the TTL only bounds staleness after relistings.
const contractCacheTTL = time.Hour

func NewResolver(client ContractLookup, overrides map[string]VenueOverride) *Resolver {
	if overrides == nil {
		overrides = defaultVenueOverrides()
	}
	return &Resolver{
		client:    client,
		overrides: overrides,
		cache:     make(map[string]cacheEntry),
	}
}

// Resolve returns the contract for a ticker, or nil when the symbol is
// unknown or the broker lookup fails. It never returns an error: execution
// treats nil as "unresolved" and fails that one trade.
// Concurrent lookups for the same symbol share one broker call.
func (r *Resolver) Resolve(ctx context.Context, symbol string) *Contract {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil
	}

	r.mu.RLock()
	entry, ok := r.cache[symbol]
	r.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < contractCacheTTL {
		return entry.contract
	}

	v, _, _ := r.sfGroup.Do(symbol, func() (any, error) {
		return r.lookup(ctx, symbol), nil
	})
	contract, _ := v.(*Contract)
	return contract
}

func (r *Resolver) lookup(ctx context.Context, symbol string) *Contract {
	query, exchange := symbol, ""
	if ov, ok := r.overrides[symbol]; ok {
		if ov.Query != "" {
			query = ov.Query
		}
		exchange = ov.Exchange
		telemetry.Debugf("symbols: %s queries as %s on %s", symbol, query, exchange)
	}

	start := time.Now()
	info, err := r.client.StockConID(ctx, query, exchange)
	telemetry.Metrics.ResolveLatency.Record(time.Since(start))

	if err != nil {
		telemetry.Warnf("symbols: lookup %s failed: %v", symbol, err)
		return nil
	}
	if info == nil {
		telemetry.Warnf("symbols: no contract found for %s", symbol)
		return nil
	}

	contract := &Contract{ConID: info.ConID, Exchange: info.Exchange}
	r.mu.Lock()
	r.cache[symbol] = cacheEntry{contract: contract, fetchedAt: time.Now()}
	r.mu.Unlock()

	telemetry.Infof("symbols: %s -> conid %s (%s)", symbol, contract.ConID, contract.Exchange)
	return contract
}
