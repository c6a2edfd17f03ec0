package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Client fetches market prices from the Yahoo Finance chart API. It exists so
// the price cache can be refreshed without manual marking; the matching and
// harvest engines themselves only ever read the cache.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a price feed client with default HTTP settings.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    "https://query1.finance.yahoo.com",
	}
}

// CurrentPrice returns the most recent closing price for a symbol. It queries
// the last five trading days and takes the latest data point with a valid
// close, so weekends and holidays never leave the caller empty-handed.
func (c *Client) CurrentPrice(ctx context.Context, symbol string) (Quote, error) {
	url := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=5d", c.baseURL, symbol)

	response, err := c.query(ctx, url)
	if err != nil {
		return Quote{}, err
	}
	if len(response.Chart.Result) == 0 {
		return Quote{}, fmt.Errorf("no results returned for symbol %s", symbol)
	}

	result := response.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return Quote{}, fmt.Errorf("no price data returned for symbol %s", symbol)
	}

	closes := result.Indicators.Quote[0].Close
	if len(closes) != len(result.Timestamp) {
		return Quote{}, fmt.Errorf("mismatched data lengths for symbol %s", symbol)
	}

	// Walk backwards past null closes (in-progress or halted sessions).
	for i := len(closes) - 1; i >= 0; i-- {
		if closes[i] <= 0 {
			continue
		}
		return Quote{
			Symbol:   result.Meta.Symbol,
			Currency: result.Meta.Currency,
			Price:    decimal.NewFromFloat(closes[i]),
			AsOf:     time.Unix(result.Timestamp[i], 0).UTC(),
		}, nil
	}

	return Quote{}, fmt.Errorf("no usable close price for symbol %s", symbol)
}

func (c *Client) query(ctx context.Context, url string) (chartResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return chartResponse{}, err
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return chartResponse{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return chartResponse{}, err
	}

	var response chartResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return chartResponse{}, err
	}

	if response.Chart.Error != nil {
		return response, fmt.Errorf("price feed error: %s", *response.Chart.Error)
	}

	return response, nil
}
