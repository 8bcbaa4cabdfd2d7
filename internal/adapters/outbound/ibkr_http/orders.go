package ibkr_http

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/parthchandak02/ibkr-cloud-run/internal/telemetry"
)

// OrderTicket is everything needed to submit one market order.
type OrderTicket struct {
	ConID     string
	Symbol    string
	Side      string // "BUY" or "SELL"
	Quantity  int
	ClientRef string // cOID, used for external duplicate detection
}

// OrderResult is the terminal state of a submission.
type OrderResult struct {
	OrderID         string
	OrderStatus     string
	PromptsAnswered int
}

// orderReply covers both shapes the order endpoint returns: a placed order
// ({"order_id": ...}) or a confirmation prompt ({"id": ..., "message": [...]}).
type orderReply struct {
	OrderID     string   `json:"order_id"`
	OrderStatus string   `json:"order_status"`
	ID          string   `json:"id"`
	Messages    []string `json:"message"`
}

type apiError struct {
	Error string `json:"error"`
}

// The gateway occasionally re-prompts after a reply; in practice two rounds
// suffice, so anything past this is a protocol loop and we bail out.
const maxConfirmRounds = 5

// PlaceMarketOrder submits a DAY market order and answers every confirmation
// prompt affirmatively until the gateway returns an order id. Unknown prompt
// wordings are accepted too, loudly.
func (c *Client) PlaceMarketOrder(ctx context.Context, accountID string, t OrderTicket) (*OrderResult, error) {
	conid, err := strconv.ParseInt(t.ConID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad conid %q for %s: %w", t.ConID, t.Symbol, err)
	}

	payload := map[string]any{
		"orders": []map[string]any{{
			"conid":      conid,
			"orderType":  "MKT",
			"side":       strings.ToUpper(t.Side),
			"tif":        "DAY",
			"quantity":   t.Quantity,
			"cOID":       t.ClientRef,
			"outsideRTH": false,
		}},
	}

	path := fmt.Sprintf("/iserver/account/%s/orders", accountID)
	body, status, err := c.Post(ctx, path, payload)
	if err != nil {
		telemetry.Metrics.OrderErrors.Inc()
		return nil, err
	}

	rounds := 0
	for {
		if status < 200 || status >= 300 {
			telemetry.Metrics.OrderErrors.Inc()
			return nil, fmt.Errorf("order rejected: status=%d body=%s", status, errorText(body))
		}

		reply, err := decodeOrderReply(body)
		if err != nil {
			telemetry.Metrics.OrderErrors.Inc()
			return nil, err
		}

		if reply.OrderID != "" {
			telemetry.Metrics.OrdersSubmitted.Inc()
			telemetry.Infof("ibkr: order placed %s %d %s (conid %s) -> %s [%s]",
				t.Side, t.Quantity, t.Symbol, t.ConID, reply.OrderID, reply.OrderStatus)
			return &OrderResult{
				OrderID:         reply.OrderID,
				OrderStatus:     reply.OrderStatus,
				PromptsAnswered: rounds,
			}, nil
		}

		if reply.ID == "" {
			telemetry.Metrics.OrderErrors.Inc()
			return nil, fmt.Errorf("order response has neither order_id nor prompt: %s", string(body))
		}

		rounds++
		if rounds > maxConfirmRounds {
			telemetry.Metrics.OrderErrors.Inc()
			return nil, fmt.Errorf("order stuck after %d confirmation rounds (last prompt: %s)",
				maxConfirmRounds, strings.Join(reply.Messages, " | "))
		}

		for _, msg := range reply.Messages {
			kind := ClassifyPrompt(msg)
			if kind == PromptUnknown {
				telemetry.Warnf("ibkr: unrecognized confirmation prompt, accepting anyway: %q", msg)
			} else {
				telemetry.Infof("ibkr: confirming %s prompt for %s", kind, t.ClientRef)
			}
		}

		body, status, err = c.Post(ctx, "/iserver/reply/"+reply.ID, map[string]bool{"confirmed": true})
		if err != nil {
			telemetry.Metrics.OrderErrors.Inc()
			return nil, fmt.Errorf("confirmation reply %d: %w", rounds, err)
		}
	}
}

// decodeOrderReply unwraps the single-element array the order endpoints
// return. A bare JSON object means the gateway reported an error.
func decodeOrderReply(body []byte) (*orderReply, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var replies []orderReply
		if err := json.Unmarshal(body, &replies); err != nil {
			return nil, fmt.Errorf("unmarshal order reply: %w", err)
		}
		if len(replies) == 0 {
			return nil, fmt.Errorf("empty order reply")
		}
		return &replies[0], nil
	}

	return nil, fmt.Errorf("order failed: %s", errorText(body))
}

// errorText pulls the "error" field out of a gateway error body, falling
// back to the raw body.
func errorText(body []byte) string {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		return apiErr.Error
	}
	return string(body)
}
