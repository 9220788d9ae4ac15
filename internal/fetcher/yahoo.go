package fetcher

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

	"github.com/rs/zerolog"
)

const yahooChartPath = "/v8/finance/chart/"

// YahooOptions parameterise the Yahoo Finance chart client.
type YahooOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Yahoo fetches the most recent close from the Yahoo Finance chart endpoint.
type Yahoo struct {
	opts    YahooOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewYahoo constructs a Yahoo Finance client.
func NewYahoo(opts YahooOptions, logger zerolog.Logger) *Yahoo {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}

	return &Yahoo{
		opts:    opts,
		logger:  logger.With().Str("component", "yahoo_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Name identifies the source in records and diagnostics.
func (y *Yahoo) Name() string { return SourceYahoo }

// Fetch retrieves the last 1-minute close of the current trading day.
func (y *Yahoo) Fetch(ctx context.Context, symbol string) (float64, error) {
	if symbol == "" {
		return 0, errors.New("symbol required")
	}

	query := url.Values{}
	query.Set("range", "1d")
	query.Set("interval", "1m")

	endpoint := y.baseURL + yahooChartPath + url.PathEscape(symbol) + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(y.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "pricewatcher/1.0")
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}

	if resp.StatusCode != http.StatusOK {
		return 0, parseChartError(resp.StatusCode, payload)
	}

	var chartRes chartResponse
	if err := json.Unmarshal(payload, &chartRes); err != nil {
		return 0, err
	}

	if chartRes.Chart.Error != nil {
		return 0, fmt.Errorf("yahoo chart error: %s", chartRes.Chart.Error.Description)
	}
	if len(chartRes.Chart.Result) == 0 {
		return 0, errors.New("yahoo returned no chart data")
	}

	result := chartRes.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return 0, errors.New("yahoo returned no quote series")
	}

	closes := result.Indicators.Quote[0].Close
	for i := len(closes) - 1; i >= 0; i-- {
		if closes[i] != nil {
			price := *closes[i]
			y.logger.Debug().Str("symbol", symbol).Float64("price", price).Msg("close fetched")
			return price, nil
		}
	}

	return 0, errors.New("yahoo returned no usable close")
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func parseChartError(status int, payload []byte) error {
	var chartRes chartResponse
	if err := json.Unmarshal(payload, &chartRes); err == nil && chartRes.Chart.Error != nil {
		return fmt.Errorf("yahoo chart error (%d): %s", status, chartRes.Chart.Error.Description)
	}
	if len(payload) > 0 {
		return fmt.Errorf("yahoo chart error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("yahoo chart error (%d)", status)
}

var _ PriceSource = (*Yahoo)(nil)
