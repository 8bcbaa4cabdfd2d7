package fanout

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/parthchandak02/ibkr-cloud-run/internal/events"
)

// Envelope is the wire format for events sent over the watch WebSocket.
type Envelope struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	BatchID   string          `json:"batch_id,omitempty"`
	Symbol    string          `json:"symbol,omitempty"`
	Timestamp time.Time       `json:"ts"`
	Payload   json.RawMessage `json:"payload"`
}

// MarshalEvent serializes an Event into a JSON-encoded Envelope.
func MarshalEvent(evt events.Event) ([]byte, error) {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	env := Envelope{
		Type:      string(evt.Type),
		ID:        evt.ID,
		BatchID:   evt.BatchID,
		Symbol:    evt.Symbol,
		Timestamp: evt.Timestamp,
		Payload:   payload,
	}
	return json.Marshal(env)
}

// UnmarshalEvent deserializes a JSON Envelope back into a typed Event.
func UnmarshalEvent(data []byte) (events.Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return events.Event{}, fmt.Errorf("unmarshal envelope: %w", err)
	}

	evt := events.Event{
		ID:        env.ID,
		Type:      events.EventType(env.Type),
		BatchID:   env.BatchID,
		Symbol:    env.Symbol,
		Timestamp: env.Timestamp,
	}

	switch evt.Type {
	case events.EventTradeOutcome:
		var to events.TradeOutcomeEvent
		if err := json.Unmarshal(env.Payload, &to); err != nil {
			return evt, fmt.Errorf("unmarshal trade_outcome: %w", err)
		}
		evt.Payload = to
	case events.EventBatchComplete:
		var bc events.BatchCompleteEvent
		if err := json.Unmarshal(env.Payload, &bc); err != nil {
			return evt, fmt.Errorf("unmarshal batch_complete: %w", err)
		}
		evt.Payload = bc
	default:
		return evt, fmt.Errorf("unknown event type: %s", env.Type)
	}

	return evt, nil
}
