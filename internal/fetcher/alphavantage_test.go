package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestAlphaVantageRequiresAPIKey(t *testing.T) {
	if _, err := NewAlphaVantage(AlphaVantageOptions{}, noopLogger()); err == nil {
		t.Fatal("missing api key must fail construction")
	}
}

func TestAlphaVantageFetchSuccess(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"Global Quote": map[string]string{
				"01. symbol": "AAPL",
				"05. price":  "187.4200",
			},
		})
	}))
	defer srv.Close()

	a, err := NewAlphaVantage(AlphaVantageOptions{
		BaseURL: srv.URL,
		APIKey:  "demo",
		Timeout: time.Second,
	}, noopLogger())
	if err != nil {
		t.Fatal(err)
	}

	price, err := a.Fetch(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if price != 187.42 {
		t.Fatalf("want 187.42, got %v", price)
	}
	for _, param := range []string{"function=GLOBAL_QUOTE", "symbol=AAPL", "apikey=demo"} {
		if !strings.Contains(gotQuery, param) {
			t.Fatalf("query missing %q: %q", param, gotQuery)
		}
	}
}

func TestAlphaVantageFetchThrottled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"Note": "Thank you for using Alpha Vantage! Our standard API rate limit is 25 requests per day.",
		})
	}))
	defer srv.Close()

	a, err := NewAlphaVantage(AlphaVantageOptions{BaseURL: srv.URL, APIKey: "demo", Timeout: time.Second}, noopLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Fetch(context.Background(), "AAPL"); err == nil {
		t.Fatal("throttle note must be an error")
	}
}

func TestAlphaVantageFetchEmptyQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"Global Quote": map[string]string{}})
	}))
	defer srv.Close()

	a, err := NewAlphaVantage(AlphaVantageOptions{BaseURL: srv.URL, APIKey: "demo", Timeout: time.Second}, noopLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Fetch(context.Background(), "UNKNOWN"); err == nil {
		t.Fatal("empty quote must be an error")
	}
}

func TestAlphaVantageFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a, err := NewAlphaVantage(AlphaVantageOptions{BaseURL: srv.URL, APIKey: "demo", Timeout: time.Second}, noopLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Fetch(context.Background(), "AAPL"); err == nil {
		t.Fatal("HTTP 503 must be an error")
	}
}
