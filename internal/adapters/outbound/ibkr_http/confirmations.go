package ibkr_http

import "strings"

// PromptKind classifies the confirmation prompts the order endpoint can
// raise before accepting an order. The set is closed: anything we have not
// seen before is PromptUnknown.
type PromptKind int

const (
	PromptUnknown PromptKind = iota
	PromptPriceConstraint
	PromptValueLimit
	PromptMissingMarketData
)

func (k PromptKind) String() string {
	switch k {
	case PromptPriceConstraint:
		return "price_constraint"
	case PromptValueLimit:
		return "value_limit"
	case PromptMissingMarketData:
		return "missing_market_data"
	default:
		return "unknown"
	}
}

// ClassifyPrompt maps a confirmation message to its kind by matching the
// stable fragments of the gateway's wording.
func ClassifyPrompt(message string) PromptKind {
	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "percentage constraint"), strings.Contains(m, "price exceeds"):
		return PromptPriceConstraint
	case strings.Contains(m, "value limit"), strings.Contains(m, "exceeds the total value"):
		return PromptValueLimit
	case strings.Contains(m, "without market data"), strings.Contains(m, "market data is not subscribed"):
		return PromptMissingMarketData
	default:
		return PromptUnknown
	}
}
