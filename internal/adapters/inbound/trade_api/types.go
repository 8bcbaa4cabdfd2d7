package trade_api

import (
	"time"

	"github.com/parthchandak02/ibkr-cloud-run/internal/core/journal"
	"github.com/parthchandak02/ibkr-cloud-run/internal/core/trade"
)

// TradeRequest is the POST /trade body. Quantity is a pointer so an
// omitted quantity (use the configured default) is distinguishable from
// an explicit zero (rejected).
type TradeRequest struct {
	Symbol             string `json:"symbol"`
	Action             string `json:"action"`
	Quantity           *int   `json:"quantity,omitempty"`
	CalendarEventID    string `json:"calendar_event_id,omitempty"`
	CalendarEventTitle string `json:"calendar_event_title,omitempty"`
}

// BatchTradeRequest is the POST /trades/batch body.
type BatchTradeRequest struct {
	TradesText         string `json:"trades_text"`
	CalendarEventID    string `json:"calendar_event_id,omitempty"`
	CalendarEventTitle string `json:"calendar_event_title,omitempty"`
}

// TradeResponse is the POST /trade success body.
type TradeResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Symbol    string `json:"symbol"`
	Action    string `json:"action"`
	Quantity  int    `json:"quantity"`
	ConID     string `json:"conid,omitempty"`
	Exchange  string `json:"exchange,omitempty"`
	OrderID   string `json:"order_id,omitempty"`
	ClientRef string `json:"client_ref,omitempty"`
	DryRun    bool   `json:"dry_run"`
	Timestamp string `json:"timestamp"`
}

// BatchTradeResponse is the POST /trades/batch body.
type BatchTradeResponse struct {
	Status           string          `json:"status"`
	BatchID          string          `json:"batch_id"`
	OverallStatus    string          `json:"overall_status"`
	TotalTrades      int             `json:"total_trades"`
	SuccessfulTrades int             `json:"successful_trades"`
	FailedTrades     int             `json:"failed_trades"`
	Summary          string          `json:"summary"`
	DryRun           bool            `json:"dry_run"`
	Trades           []TradeResponse `json:"trades"`
	Warnings         []string        `json:"warnings,omitempty"`
	Timestamp        string          `json:"timestamp"`
}

type rootResponse struct {
	Message   string `json:"message"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

type healthResponse struct {
	Status    string            `json:"status"`
	DryRun    bool              `json:"dry_run"`
	Services  map[string]string `json:"services"`
	Timestamp string            `json:"timestamp"`
}

type executionsResponse struct {
	Count      int             `json:"count"`
	Executions []journal.Entry `json:"executions"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func tradeResponseFrom(out trade.Outcome, dryRun bool) TradeResponse {
	resp := TradeResponse{
		Status:    string(out.Mode),
		Message:   out.Message,
		Symbol:    out.Intent.Symbol,
		Action:    string(out.Intent.Action),
		Quantity:  out.Intent.Quantity,
		OrderID:   out.OrderID,
		ClientRef: out.ClientRef,
		DryRun:    dryRun,
		Timestamp: out.Timestamp.UTC().Format(time.RFC3339),
	}
	if out.Contract != nil {
		resp.ConID = out.Contract.ConID
		resp.Exchange = out.Contract.Exchange
	}
	return resp
}
