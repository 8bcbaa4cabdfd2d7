// gatewaymock serves a fake IBKR Client Portal gateway on localhost so the
// live order path (session init, contract lookup, submission, confirmation
// prompts) can be exercised end to end without broker credentials or a real
// account.
//
// It accepts any Authorization header, so a throwaway key is enough to get
// the bot past its credential check:
//
//	openssl genpkey -algorithm RSA -out /tmp/mock_key.pem
//	go run ./cmd/gatewaymock
//	IBKR_BASE_URL=http://localhost:5001 IBKR_CONSUMER_KEY=mock \
//	  IBKR_SIGNATURE_KEY_FILE=/tmp/mock_key.pem DRY_RUN=false go run ./cmd
//
// Orders above -prompt-over shares come back with a price-constraint
// confirmation prompt first, mirroring the real gateway's behavior on
// out-of-band prices. A symbol passed via -reject always fails submission.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/parthchandak02/ibkr-cloud-run/internal/telemetry"
)

// Contract ids match the real gateway's.
var stockCatalog = map[string]struct {
	ConID    int64
	Exchange string
}{
	"TSLA":  {76792991, "NASDAQ"},
	"AAPL":  {265598, "NASDAQ"},
	"MSFT":  {272093, "NASDAQ"},
	"AMZN":  {3691937, "NASDAQ"},
	"GOOGL": {208813720, "NASDAQ"},
	"NVDA":  {4815747, "NASDAQ"},
	"1211":  {46652429, "SEHK"},
}

type pendingOrder struct {
	account string
	order   map[string]any
}

type gateway struct {
	promptOver int
	reject     string

	mu          sync.Mutex
	nextOrderID int
	nextReplyID int
	pending     map[string]pendingOrder
}

func main() {
	addr := flag.String("addr", "localhost:5001", "Listen address")
	promptOver := flag.Int("prompt-over", 100, "Quantities above this trigger a confirmation prompt")
	reject := flag.String("reject", "", "Symbol whose orders are always rejected")
	flag.Parse()

	g := &gateway{
		promptOver:  *promptOver,
		reject:      strings.ToUpper(*reject),
		nextOrderID: 10000,
		pending:     make(map[string]pendingOrder),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /iserver/auth/ssodh/init", g.handleInit)
	mux.HandleFunc("GET /portfolio/accounts", g.handleAccounts)
	mux.HandleFunc("POST /tickle", g.handleTickle)
	mux.HandleFunc("GET /trsrv/stocks", g.handleStocks)
	mux.HandleFunc("POST /iserver/account/{accountID}/orders", g.handleOrders)
	mux.HandleFunc("POST /iserver/reply/{replyID}", g.handleReply)

	telemetry.Plainf("gatewaymock: listening on %s  prompt-over=%d  reject=%q",
		*addr, *promptOver, g.reject)
	if err := http.ListenAndServe(*addr, logRequests(mux)); err != nil {
		fmt.Fprintln(os.Stderr, "gatewaymock:", err)
		os.Exit(1)
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		telemetry.Plainf("gatewaymock: %s %s", r.Method, r.URL.RequestURI())
		next.ServeHTTP(w, r)
	})
}

func (g *gateway) handleInit(w http.ResponseWriter, _ *http.Request) {
	respond(w, map[string]any{
		"authenticated": true,
		"connected":     true,
		"competing":     false,
	})
}

func (g *gateway) handleAccounts(w http.ResponseWriter, _ *http.Request) {
	respond(w, []map[string]string{{"accountId": "DU000001"}})
}

func (g *gateway) handleTickle(w http.ResponseWriter, _ *http.Request) {
	respond(w, map[string]any{"session": "gatewaymock", "ssoExpires": 600000})
}

func (g *gateway) handleStocks(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.URL.Query().Get("symbols"))
	entry, ok := stockCatalog[symbol]
	if !ok {
		respond(w, map[string]any{})
		return
	}

	respond(w, map[string]any{
		symbol: []map[string]any{{
			"name":       symbol,
			"assetClass": "STK",
			"contracts": []map[string]any{{
				"conid":    entry.ConID,
				"exchange": entry.Exchange,
				"isUS":     entry.Exchange != "SEHK",
			}},
		}},
	})
}

func (g *gateway) handleOrders(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Orders []map[string]any `json:"orders"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || len(payload.Orders) == 0 {
		respondStatus(w, http.StatusBadRequest, map[string]string{"error": "malformed order payload"})
		return
	}

	order := payload.Orders[0]
	symbol := symbolForConID(order["conid"])
	if g.reject != "" && symbol == g.reject {
		respondStatus(w, http.StatusInternalServerError, map[string]string{"error": "order rejected by mock (-reject " + g.reject + ")"})
		return
	}

	qty, _ := order["quantity"].(float64)
	if int(qty) > g.promptOver {
		g.mu.Lock()
		g.nextReplyID++
		replyID := fmt.Sprintf("mock-reply-%d", g.nextReplyID)
		g.pending[replyID] = pendingOrder{account: r.PathValue("accountID"), order: order}
		g.mu.Unlock()

		respond(w, []map[string]any{{
			"id":      replyID,
			"message": []string{"The price specified exceeds the Percentage constraint of 3%."},
		}})
		return
	}

	respond(w, []map[string]any{g.placedOrder()})
}

func (g *gateway) handleReply(w http.ResponseWriter, r *http.Request) {
	replyID := r.PathValue("replyID")

	g.mu.Lock()
	_, ok := g.pending[replyID]
	delete(g.pending, replyID)
	g.mu.Unlock()

	if !ok {
		respondStatus(w, http.StatusBadRequest, map[string]string{"error": "unknown reply id " + replyID})
		return
	}

	respond(w, []map[string]any{g.placedOrder()})
}

func (g *gateway) placedOrder() map[string]any {
	g.mu.Lock()
	g.nextOrderID++
	id := g.nextOrderID
	g.mu.Unlock()

	return map[string]any{
		"order_id":     fmt.Sprintf("%d", id),
		"order_status": "PreSubmitted",
	}
}

func symbolForConID(v any) string {
	conid, ok := v.(float64)
	if !ok {
		return ""
	}
	for sym, entry := range stockCatalog {
		if entry.ConID == int64(conid) {
			return sym
		}
	}
	return ""
}

func respond(w http.ResponseWriter, v any) {
	respondStatus(w, http.StatusOK, v)
}

func respondStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		telemetry.Warnf("gatewaymock: encode response: %v", err)
	}
}
