package ibkr_http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// ContractInfo identifies a tradable contract on a specific venue.
type ContractInfo struct {
	ConID    string
	Exchange string
}

// stockSecurity mirrors one entry of the /trsrv/stocks response:
// {"TSLA": [{"assetClass": "STK", "contracts": [{"conid": 76792991, ...}]}]}
type stockSecurity struct {
	Name       string `json:"name"`
	AssetClass string `json:"assetClass"`
	Contracts  []struct {
		ConID    json.Number `json:"conid"`
		Exchange string      `json:"exchange"`
		IsUS     bool        `json:"isUS"`
	} `json:"contracts"`
}

// StockConID looks up the contract id for a stock symbol. When exchange is
// non-empty only contracts listed on that exchange are considered; otherwise
// the first contract of the first STK security wins, matching the gateway's
// default filtering. Returns (nil, nil) when the symbol has no contract.
func (c *Client) StockConID(ctx context.Context, symbol, exchange string) (*ContractInfo, error) {
	path := "/trsrv/stocks?symbols=" + url.QueryEscape(symbol)
	body, status, err := c.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if status != 200 {
		return nil, fmt.Errorf("stock lookup %s: status=%d body=%s", symbol, status, string(body))
	}

	var payload map[string][]stockSecurity
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal stock lookup %s: %w", symbol, err)
	}

	securities := payload[strings.ToUpper(symbol)]
	if len(securities) == 0 {
		// some deployments key the response by the query string as sent
		securities = payload[symbol]
	}

	for _, sec := range securities {
		if sec.AssetClass != "" && sec.AssetClass != "STK" {
			continue
		}
		for _, con := range sec.Contracts {
			if exchange != "" && !strings.EqualFold(con.Exchange, exchange) {
				continue
			}
			if con.ConID.String() == "" {
				continue
			}
			return &ContractInfo{
				ConID:    con.ConID.String(),
				Exchange: con.Exchange,
			}, nil
		}
	}

	return nil, nil
}
