// Package yahoo provides a MarketFeed over the Yahoo Finance chart API.
package yahoo

import (
	"fmt"
)

// chartResponse is the /v8/finance/chart/{symbol} payload
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol               string  `json:"symbol"`
		Currency             string  `json:"currency"`
		RegularMarketPrice   float64 `json:"regularMarketPrice"`
		ChartPreviousClose   float64 `json:"chartPreviousClose"`
		ExchangeTimezoneName string  `json:"exchangeTimezoneName"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// APIError represents a non-200 response or an error object from the chart API
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Symbol     string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("yahoo chart error: %s: %s (symbol: %s)", e.Code, e.Message, e.Symbol)
	}
	return fmt.Sprintf("yahoo chart error: status %d: %s (symbol: %s)", e.StatusCode, e.Message, e.Symbol)
}
