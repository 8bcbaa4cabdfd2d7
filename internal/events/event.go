package events

import "time"

// Event is the envelope that flows through the event bus.
// Every domain event (trade outcome, batch completion) is wrapped in one.
type Event struct {
	ID        string
	Type      EventType
	BatchID   string
	Symbol    string
	Timestamp time.Time
	Payload   any
}

type EventType string

const (
	// Trade pipeline events
	EventTradeOutcome  EventType = "trade_outcome"
	EventBatchComplete EventType = "batch_complete"
)
