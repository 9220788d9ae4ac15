package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const alphaVantageQuotePath = "/query"

// AlphaVantageOptions parameterise the Alpha Vantage quote client.
type AlphaVantageOptions struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// AlphaVantage fetches quotes from the Alpha Vantage GLOBAL_QUOTE endpoint.
type AlphaVantage struct {
	opts    AlphaVantageOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewAlphaVantage constructs an Alpha Vantage client. The API key is
// required; a missing key is a configuration error surfaced before any
// fetch cycle runs.
func NewAlphaVantage(opts AlphaVantageOptions, logger zerolog.Logger) (*AlphaVantage, error) {
	if opts.APIKey == "" {
		return nil, errors.New("alpha vantage api key not configured")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://www.alphavantage.co"
	}

	return &AlphaVantage{
		opts:    opts,
		logger:  logger.With().Str("component", "alphavantage_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}, nil
}

// Name identifies the source in records and diagnostics.
func (a *AlphaVantage) Name() string { return SourceAlphaVantage }

// Fetch retrieves the latest quote price for symbol.
func (a *AlphaVantage) Fetch(ctx context.Context, symbol string) (float64, error) {
	if symbol == "" {
		return 0, errors.New("symbol required")
	}

	query := url.Values{}
	query.Set("function", "GLOBAL_QUOTE")
	query.Set("symbol", symbol)
	query.Set("apikey", a.opts.APIKey)

	endpoint := a.baseURL + alphaVantageQuotePath + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("alpha vantage error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var quoteRes globalQuoteResponse
	if err := json.Unmarshal(payload, &quoteRes); err != nil {
		return 0, err
	}

	// The API reports throttling as a 200 with a Note/Information body.
	if quoteRes.Note != "" {
		return 0, fmt.Errorf("alpha vantage throttled: %s", quoteRes.Note)
	}
	if quoteRes.Quote.Price == "" {
		return 0, errors.New("alpha vantage returned empty quote")
	}

	price, err := strconv.ParseFloat(quoteRes.Quote.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("parse quote price: %w", err)
	}

	a.logger.Debug().Str("symbol", symbol).Float64("price", price).Msg("quote fetched")
	return price, nil
}

type globalQuoteResponse struct {
	Quote struct {
		Symbol string `json:"01. symbol"`
		Price  string `json:"05. price"`
	} `json:"Global Quote"`
	Note string `json:"Note"`
}

var _ PriceSource = (*AlphaVantage)(nil)
