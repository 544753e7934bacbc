package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"
)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.binance.com"
	DefaultTimeout = 10 * time.Second
)

// BinanceHTTP polls the Binance public ticker endpoint, one request per
// pair per cycle. Failures are logged and the pair is skipped for the
// cycle.
type BinanceHTTP struct {
	baseURL string
	client  *http.Client
	logger  *log.Logger
}

// BinanceOption configures BinanceHTTP.
type BinanceOption func(*BinanceHTTP)

// WithBaseURL overrides the API base URL. Test hook.
func WithBaseURL(url string) BinanceOption {
	return func(b *BinanceHTTP) {
		b.baseURL = url
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) BinanceOption {
	return func(b *BinanceHTTP) {
		b.client = client
	}
}

// WithLogger sets the fetch failure logger.
func WithLogger(logger *log.Logger) BinanceOption {
	return func(b *BinanceHTTP) {
		b.logger = logger
	}
}

// NewBinanceHTTP creates a polling Binance price source.
func NewBinanceHTTP(opts ...BinanceOption) *BinanceHTTP {
	b := &BinanceHTTP{
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name identifies the source on persisted observations.
func (b *BinanceHTTP) Name() string {
	return "binance"
}

// Fetch returns the latest price for each pair it could serve this cycle.
func (b *BinanceHTTP) Fetch(ctx context.Context, pairs []string) map[string]float64 {
	prices := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		price, err := b.fetchOne(ctx, pair)
		if err != nil {
			b.logf("fetch %s failed: %v", pair, err)
			continue
		}
		prices[pair] = price
	}
	return prices
}

// tickerResponse is the /api/v3/ticker/price payload. Binance serializes
// the price as a string.
type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

func (b *BinanceHTTP) fetchOne(ctx context.Context, pair string) (float64, error) {
	url := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", b.baseURL, pair)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var ticker tickerResponse
	if err := json.NewDecoder(resp.Body).Decode(&ticker); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	if ticker.Price == "" {
		return 0, fmt.Errorf("missing price field for %s", pair)
	}

	price, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", ticker.Price, err)
	}
	return price, nil
}

func (b *BinanceHTTP) logf(format string, args ...interface{}) {
	if b.logger != nil {
		b.logger.Printf("[binance] "+format, args...)
	}
}
