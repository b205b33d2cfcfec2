// ABOUTME: Tests for the stock quote service
// ABOUTME: Covers source fallback, formatting helpers, and table rendering

package stock

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Bars span a year boundary: one close in December 2025, then the first
// close of 2026 as the year-to-date baseline.
const chartPayload = `{
  "chart": {
    "result": [{
      "meta": {
        "currency": "USD",
        "symbol": "AAPL",
        "longName": "Apple Inc.",
        "regularMarketPrice": 230.5,
        "chartPreviousClose": 215.0,
        "fiftyTwoWeekHigh": 237.8,
        "fiftyTwoWeekLow": 164.1,
        "marketCap": 3450000000000
      },
      "timestamp": [1764633600, 1767312000, 1767398400, 1787500800],
      "indicators": {
        "quote": [{
          "close": [220.0, 210.0, 228.0, 230.5],
          "volume": [40000000, 45000000, 48000000, 52000000]
        }]
      }
    }],
    "error": null
  }
}`

const stooqCSV = "Date,Open,High,Low,Close,Volume\n" +
	"2026-08-27,225.0,229.0,224.5,228.0,48000000\n" +
	"2026-08-28,228.5,231.0,227.0,230.5,52000000\n"

func newTestService(t *testing.T, yahoo, stooq http.HandlerFunc) *Service {
	t.Helper()
	svc := NewService("en", slog.New(slog.NewTextHandler(testWriter{t}, nil)))
	if yahoo != nil {
		server := httptest.NewServer(yahoo)
		t.Cleanup(server.Close)
		svc.primary.baseURL = server.URL + "/chart/"
	} else {
		svc.primary.baseURL = "http://127.0.0.1:1/chart/"
	}
	if stooq != nil {
		server := httptest.NewServer(stooq)
		t.Cleanup(server.Close)
		svc.fallback.baseURL = server.URL + "/csv"
	} else {
		svc.fallback.baseURL = "http://127.0.0.1:1/csv"
	}
	svc.primary.httpClient = &http.Client{Timeout: 2 * time.Second}
	svc.fallback.httpClient = svc.primary.httpClient
	return svc
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func TestLookup_PrimarySource(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "AAPL")
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte(chartPayload))
	}, nil)

	quote, err := svc.Lookup(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Equal(t, "Apple Inc.", quote.Name)
	assert.Equal(t, 230.5, quote.Price)
	assert.Equal(t, 228.0, quote.PrevClose)
	assert.Equal(t, 3.45e12, quote.MarketCap)
	assert.Equal(t, 164.1, quote.Low52)
	assert.Equal(t, 237.8, quote.High52)
	assert.Equal(t, 210.0, quote.YTDStart)
	assert.Equal(t, "yahoo", quote.Source)
}

func TestLookup_FallsBackToCSV(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "aapl.us", r.URL.Query().Get("s"))
		w.Write([]byte(stooqCSV))
	})

	quote, err := svc.Lookup(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 230.5, quote.Price)
	assert.Equal(t, 228.0, quote.PrevClose)
	assert.Equal(t, "stooq", quote.Source)
}

func TestLookup_AllSourcesFail(t *testing.T) {
	svc := newTestService(t, nil, nil)
	_, err := svc.Lookup(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all quote sources failed")
}

func TestLookup_EmptySymbol(t *testing.T) {
	svc := newTestService(t, nil, nil)
	_, err := svc.Lookup(context.Background(), "  ")
	assert.Error(t, err)
}

func TestQuoteText_RendersTable(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chartPayload))
	}, nil)

	text, err := svc.QuoteText(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Contains(t, text, "┌")
	assert.Contains(t, text, "AAPL (Apple Inc.)")
	assert.Contains(t, text, "Last Price")
	assert.Contains(t, text, "$230.50")
	assert.Contains(t, text, "▲ +2.50 (+1.10%)")
	assert.Contains(t, text, "Market Cap")
	assert.Contains(t, text, "$3.45T")
	assert.Contains(t, text, "52W Range")
	assert.Contains(t, text, "164.10 ~ 237.80")
}

func TestCompareText_KeepsErrorRows(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "AAPL") {
			w.Write([]byte(chartPayload))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}, nil)

	text, err := svc.CompareText(context.Background(), []string{"AAPL", "BOGUS"})
	require.NoError(t, err)
	assert.Contains(t, text, "AAPL")
	assert.Contains(t, text, "BOGUS")
	assert.Contains(t, text, "unavailable")
	assert.Contains(t, text, "YTD")
	assert.Contains(t, text, "+9.76%")
	assert.Contains(t, text, "$3.45T")
}

func TestCompareText_NeedsTwoSymbols(t *testing.T) {
	svc := newTestService(t, nil, nil)
	_, err := svc.CompareText(context.Background(), []string{"AAPL"})
	assert.Error(t, err)
}

func TestHelpText_Languages(t *testing.T) {
	en := NewService("en", nil)
	assert.Contains(t, en.HelpText(), "/quote <symbol>")

	zh := NewService("zh-CN", nil)
	assert.Contains(t, zh.HelpText(), "/quote <代码>")
}

func TestFmtCompact(t *testing.T) {
	assert.Equal(t, "-", fmtCompact(0))
	assert.Equal(t, "512", fmtCompact(512))
	assert.Equal(t, "52.00M", fmtCompact(52e6))
	assert.Equal(t, "1.25B", fmtCompact(1.25e9))
	assert.Equal(t, "3.40T", fmtCompact(3.4e12))
}

func TestFmtChange_Direction(t *testing.T) {
	up := &Quote{Price: 101, PrevClose: 100}
	assert.Contains(t, fmtChange(up), "▲")

	down := &Quote{Price: 99, PrevClose: 100}
	assert.Contains(t, fmtChange(down), "▼")

	unknown := &Quote{Price: 99}
	assert.Equal(t, "-", fmtChange(unknown))
}

func TestFmtYTDAndRange(t *testing.T) {
	q := &Quote{Price: 110, YTDStart: 100}
	assert.Equal(t, "+10.00%", fmtYTD(q))
	assert.Equal(t, "-", fmtYTD(&Quote{Price: 110}))

	assert.Equal(t, "$3.45T", fmtMarketCap(3.45e12))
	assert.Equal(t, "-", fmtMarketCap(0))

	assert.Equal(t, "164.10 ~ 237.80", fmtRange(164.1, 237.8))
	assert.Equal(t, "-", fmtRange(0, 237.8))
}

func TestYTDBaseline(t *testing.T) {
	dec := time.Date(2025, 12, 2, 0, 0, 0, 0, time.UTC).Unix()
	jan := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC).Unix()
	aug := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC).Unix()

	assert.Equal(t, 210.0, ytdBaseline([]int64{dec, jan, aug}, []float64{220, 210, 230}))

	// Empty or mismatched series give no baseline.
	assert.Equal(t, 0.0, ytdBaseline(nil, nil))
	assert.Equal(t, 0.0, ytdBaseline([]int64{jan}, []float64{210, 230}))
}

func TestTable_AlignsColumns(t *testing.T) {
	tbl := newTable("A", "Long Header")
	tbl.addRow("wide value", "x")
	out := tbl.render()

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 5)
	for _, line := range lines[1:] {
		assert.Equal(t, lineWidth(lines[0]), lineWidth(line))
	}
}

func lineWidth(s string) int {
	return len([]rune(s))
}
