package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestYahooFetchLastNonNullClose(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		// Trailing nulls happen while the current minute bar is still open.
		_, _ = w.Write([]byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":188.95},
			"indicators":{"quote":[{"close":[187.10,187.55,null,188.95,null,null]}]}}],"error":null}}`))
	}))
	defer srv.Close()

	y := NewYahoo(YahooOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	price, err := y.Fetch(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if price != 188.95 {
		t.Fatalf("want last non-null close 188.95, got %v", price)
	}
	if gotPath != "/v8/finance/chart/AAPL" {
		t.Fatalf("unexpected path %q", gotPath)
	}
}

func TestYahooFetchAllNullCloses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":[{"indicators":{"quote":[{"close":[null,null]}]}}],"error":null}}`))
	}))
	defer srv.Close()

	y := NewYahoo(YahooOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := y.Fetch(context.Background(), "AAPL"); err == nil {
		t.Fatal("all-null closes must be an error")
	}
}

func TestYahooFetchChartError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}))
	defer srv.Close()

	y := NewYahoo(YahooOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	_, err := y.Fetch(context.Background(), "GONE")
	if err == nil {
		t.Fatal("chart error must surface")
	}
}

func TestYahooFetchEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":[],"error":null}}`))
	}))
	defer srv.Close()

	y := NewYahoo(YahooOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := y.Fetch(context.Background(), "AAPL"); err == nil {
		t.Fatal("empty result must be an error")
	}
}
