package trade_api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/parthchandak02/ibkr-cloud-run/internal/adapters/outbound/ibkr_http"
	"github.com/parthchandak02/ibkr-cloud-run/internal/core/journal"
	"github.com/parthchandak02/ibkr-cloud-run/internal/core/trade"
	"github.com/parthchandak02/ibkr-cloud-run/internal/telemetry"
)

const apiVersion = "1.0.0"

var (
	_ TradeRunner  = (*trade.Orchestrator)(nil)
	_ BrokerStatus = (*ibkr_http.Session)(nil)
	_ ExecutionLog = (*journal.Store)(nil)
)

// TradeRunner is the slice of the orchestrator the API needs.
// Satisfied by *trade.Orchestrator.
type TradeRunner interface {
	ExecuteSingle(ctx context.Context, req trade.SingleRequest) (trade.Outcome, error)
	ExecuteBatch(ctx context.Context, req trade.BatchRequest) (trade.Batch, []string, error)
	DryRun() bool
}

// BrokerStatus reports the broker session state for health checks.
// Satisfied by *ibkr_http.Session.
type BrokerStatus interface {
	Status() string
}

// ExecutionLog serves the recent-executions listing.
// Satisfied by *journal.Store.
type ExecutionLog interface {
	Recent(limit int) ([]journal.Entry, error)
}

// Handler serves the trading HTTP API.
//
// Routes:
//
//	GET  /             -> service banner
//	GET  /health       -> per-service status with degraded rollup
//	POST /trade        -> one structured trade
//	POST /trades/batch -> free-text batch
//	GET  /executions   -> recent journal entries (?limit=N)
//	GET  /ws           -> watch WebSocket (optional ?symbol= filter)
type Handler struct {
	runner     TradeRunner
	broker     BrokerStatus
	log        ExecutionLog
	ws         http.HandlerFunc
	calendarOn bool
	discordOn  bool
}

func NewHandler(runner TradeRunner, broker BrokerStatus, log ExecutionLog, ws http.HandlerFunc, calendarOn, discordOn bool) *Handler {
	return &Handler{
		runner:     runner,
		broker:     broker,
		log:        log,
		ws:         ws,
		calendarOn: calendarOn,
		discordOn:  discordOn,
	}
}

// RegisterRoutes wires HTTP routes onto the provided mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleRoot)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("POST /trade", h.handleTrade)
	mux.HandleFunc("POST /trades/batch", h.handleBatch)
	mux.HandleFunc("GET /executions", h.handleExecutions)
	if h.ws != nil {
		mux.HandleFunc("GET /ws", h.ws)
	}
}

func (h *Handler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{
		Message:   "IBKR Trading Bot is running!",
		Version:   apiVersion,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	services := map[string]string{
		"ibkr":     h.broker.Status(),
		"calendar": configuredLabel(h.calendarOn),
		"discord":  configuredLabel(h.discordOn),
	}

	// Live trading without broker credentials is the one state worth
	// flagging; missing side channels are not.
	status := "healthy"
	if !h.runner.DryRun() && services["ibkr"] == "not_configured" {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    status,
		DryRun:    h.runner.DryRun(),
		Services:  services,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Quantity != nil && *req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}

	qty := 0
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	out, err := h.runner.ExecuteSingle(r.Context(), trade.SingleRequest{
		Symbol:             req.Symbol,
		Action:             req.Action,
		Quantity:           qty,
		CalendarEventID:    req.CalendarEventID,
		CalendarEventTitle: req.CalendarEventTitle,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Live failures become HTTP errors.
	if out.Mode == trade.ModeFailed && !h.runner.DryRun() {
		code := http.StatusBadGateway
		if out.Contract == nil {
			code = http.StatusBadRequest
		}
		writeError(w, code, out.Message)
		return
	}

	resp := tradeResponseFrom(out, h.runner.DryRun())
	// A dry run that can't resolve the symbol attempted nothing, so the
	// wire status is simulated; the DRY RUN FAILED message carries the
	// warning.
	if h.runner.DryRun() && out.Mode == trade.ModeFailed && out.Contract == nil {
		resp.Status = string(trade.ModeSimulated)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.TradesText) == "" {
		writeError(w, http.StatusBadRequest, "trades_text is required")
		return
	}

	batch, warnings, err := h.runner.ExecuteBatch(r.Context(), trade.BatchRequest{
		TradesText:         req.TradesText,
		CalendarEventID:    req.CalendarEventID,
		CalendarEventTitle: req.CalendarEventTitle,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	trades := make([]TradeResponse, 0, len(batch.Outcomes))
	for _, out := range batch.Outcomes {
		trades = append(trades, tradeResponseFrom(out, batch.DryRun))
	}

	writeJSON(w, http.StatusOK, BatchTradeResponse{
		Status:           "completed",
		BatchID:          batch.ID,
		OverallStatus:    string(batch.Overall),
		TotalTrades:      len(batch.Outcomes),
		SuccessfulTrades: batch.Succeeded(),
		FailedTrades:     batch.Failed(),
		Summary:          batch.Summary,
		DryRun:           batch.DryRun,
		Trades:           trades,
		Warnings:         warnings,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleExecutions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > 500 {
		limit = 500
	}

	entries, err := h.log.Recent(limit)
	if err != nil {
		telemetry.Warnf("trade_api: journal read failed: %v", err)
		writeError(w, http.StatusInternalServerError, "journal read failed")
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}

	writeJSON(w, http.StatusOK, executionsResponse{
		Count:      len(entries),
		Executions: entries,
	})
}

func configuredLabel(on bool) string {
	if on {
		return "configured"
	}
	return "not_configured"
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		telemetry.Warnf("trade_api: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, errorResponse{Detail: detail})
}
