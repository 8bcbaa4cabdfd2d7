package events

// TradeOutcomeEvent is published after each trade attempt, simulated or live.
// One event per intent, in execution order.
type TradeOutcomeEvent struct {
	BatchID  string `json:"batch_id"`
	Symbol   string `json:"symbol"`
	Action   string `json:"action"` // "BUY" or "SELL"
	Quantity int    `json:"quantity"`
	Mode     string `json:"mode"` // "simulated", "executed", "failed"

	// Contract fields are empty when the symbol did not resolve.
	ConID    string `json:"conid,omitempty"`
	Exchange string `json:"exchange,omitempty"`

	OrderID   string `json:"order_id,omitempty"`
	ClientRef string `json:"client_ref,omitempty"`
	Message   string `json:"message,omitempty"`
}

// BatchCompleteEvent is published once per request after aggregation.
type BatchCompleteEvent struct {
	BatchID    string `json:"batch_id"`
	Overall    string `json:"overall"`
	Total      int    `json:"total"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
	Summary    string `json:"summary"`
	DryRun     bool   `json:"dry_run"`
}
