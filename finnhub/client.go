// Package finnhub is a small client for the Finnhub REST quote API.
package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rustyeddy/papertrader/market"
	"github.com/shopspring/decimal"
)

// DefaultBaseURL is Finnhub's public API root.
const DefaultBaseURL = "https://finnhub.io/api/v1"

// ErrNoData is returned when Finnhub answers but has no price for the
// symbol. It reports a current price of zero in that case.
var ErrNoData = errors.New("finnhub: no data for symbol")

// Client represents a Finnhub API client
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client. An empty baseURL means DefaultBaseURL.
func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// quoteResponse is the /quote payload. Fields are null for unknown symbols.
type quoteResponse struct {
	C  decimal.Decimal `json:"c"`  // current
	D  decimal.Decimal `json:"d"`  // change
	DP decimal.Decimal `json:"dp"` // percent change
	H  decimal.Decimal `json:"h"`
	L  decimal.Decimal `json:"l"`
	O  decimal.Decimal `json:"o"`
	PC decimal.Decimal `json:"pc"` // previous close
	T  int64           `json:"t"`
}

// Quote fetches the latest quote for symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (market.Quote, error) {
	if symbol == "" {
		return market.Quote{}, fmt.Errorf("symbol is required")
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("token", c.token)
	apiURL := fmt.Sprintf("%s/quote?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return market.Quote{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return market.Quote{}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return market.Quote{}, fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var qr quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return market.Quote{}, fmt.Errorf("decode response: %w", err)
	}
	if !qr.C.IsPositive() {
		return market.Quote{}, fmt.Errorf("quote %s: %w", symbol, ErrNoData)
	}

	q := market.Quote{
		Symbol:        symbol,
		Price:         qr.C,
		Change:        qr.D,
		ChangePercent: qr.DP,
		PreviousClose: qr.PC,
		Open:          qr.O,
		High:          qr.H,
		Low:           qr.L,
		Time:          time.Now().UTC(),
	}
	if qr.T > 0 {
		q.Time = time.Unix(qr.T, 0).UTC()
	}
	return q, nil
}
