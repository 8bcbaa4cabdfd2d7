package intent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/parthchandak02/ibkr-cloud-run/internal/core/trade"
	"github.com/parthchandak02/ibkr-cloud-run/internal/telemetry"
)

var _ trade.IntentParser = (*Parser)(nil)

// fragmentRe matches one trade instruction: ACTION [QTY] SYMBOL.
var fragmentRe = regexp.MustCompile(`^(BUY|SELL)(?:\s+(\d+))?\s+([A-Z]{1,5})$`)

// Parser reads operator free text into trade intents.
type Parser struct{}

func NewParser() *Parser { return &Parser{} }

// Parse splits text on commas, semicolons, and line breaks, then reads each
// fragment as "ACTION [QTY] SYMBOL" (quantity defaults to 1). Fragments
// that don't parse are skipped and reported as warnings; Parse itself
// never fails and never aborts the rest of the batch.
func (p *Parser) Parse(text string) ([]trade.Intent, []string) {
	var intents []trade.Intent
	var warnings []string

	for _, frag := range splitFragments(text) {
		raw := strings.TrimSpace(frag)
		if raw == "" {
			continue
		}

		m := fragmentRe.FindStringSubmatch(normalize(raw))
		if m == nil {
			warnings = append(warnings, fmt.Sprintf("could not parse trade: %q", raw))
			telemetry.Warnf("intent: skipping unparseable fragment %q", raw)
			continue
		}

		qty := 1
		if m[2] != "" {
			n, err := strconv.Atoi(m[2])
			if err != nil || n <= 0 {
				warnings = append(warnings, fmt.Sprintf("quantity must be positive: %q", raw))
				telemetry.Warnf("intent: skipping fragment with bad quantity %q", raw)
				continue
			}
			qty = n
		}

		intents = append(intents, trade.Intent{
			Symbol:   m[3],
			Action:   trade.Action(m[1]),
			Quantity: qty,
		})
	}

	return intents, warnings
}

func splitFragments(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == '\r'
	})
}

// normalize uppercases and collapses internal whitespace so the fragment
// regexp only has to deal with single spaces.
func normalize(fragment string) string {
	return strings.Join(strings.Fields(strings.ToUpper(fragment)), " ")
}
