// ABOUTME: Yahoo Finance chart API source for stock quotes
// ABOUTME: Fetches daily bars and derives last price, previous close, and metadata

package stock

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const yahooChartURL = "https://query1.finance.yahoo.com/v8/finance/chart/"

// browserUA is sent on quote requests. Yahoo rejects requests with the
// default Go user agent.
const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

type yahooSource struct {
	httpClient *http.Client
	baseURL    string
}

func newYahooSource(httpClient *http.Client) *yahooSource {
	return &yahooSource{httpClient: httpClient, baseURL: yahooChartURL}
}

// chartResponse mirrors the subset of the Yahoo chart payload we use.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				Symbol             string  `json:"symbol"`
				LongName           string  `json:"longName"`
				ShortName          string  `json:"shortName"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"chartPreviousClose"`
				FiftyTwoWeekHigh   float64 `json:"fiftyTwoWeekHigh"`
				FiftyTwoWeekLow    float64 `json:"fiftyTwoWeekLow"`
				MarketCap          float64 `json:"marketCap"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close  []float64 `json:"close"`
					Volume []float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (y *yahooSource) fetch(ctx context.Context, symbol string) (*Quote, error) {
	// A year of daily bars covers both the day-over-day change and the
	// year-to-date baseline.
	url := y.baseURL + strings.ToUpper(symbol) + "?range=1y&interval=1d"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Accept", "application/json")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching chart: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("chart endpoint returned status %d", resp.StatusCode)
	}

	var payload chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding chart response: %w", err)
	}
	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("chart error for %s: %s", symbol, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, fmt.Errorf("no chart data for %s", symbol)
	}

	result := payload.Chart.Result[0]
	meta := result.Meta

	var closes, volumes []float64
	if len(result.Indicators.Quote) > 0 {
		closes = result.Indicators.Quote[0].Close
		volumes = result.Indicators.Quote[0].Volume
	}

	price := meta.RegularMarketPrice
	if price == 0 && len(closes) > 0 {
		price = closes[len(closes)-1]
	}
	if price == 0 {
		return nil, fmt.Errorf("no price data for %s", symbol)
	}

	// The chart previous close refers to the bar before the requested
	// range, so the day-over-day baseline comes from the closes.
	var prev float64
	if len(closes) > 1 {
		prev = closes[len(closes)-2]
	}
	if prev == 0 {
		prev = meta.PreviousClose
	}

	var volume float64
	if len(volumes) > 0 {
		volume = volumes[len(volumes)-1]
	}

	name := meta.LongName
	if name == "" {
		name = meta.ShortName
	}
	if name == "" {
		name = strings.ToUpper(symbol)
	}

	return &Quote{
		Symbol:    strings.ToUpper(symbol),
		Name:      name,
		Currency:  meta.Currency,
		Price:     price,
		PrevClose: prev,
		Volume:    volume,
		MarketCap: meta.MarketCap,
		Low52:     meta.FiftyTwoWeekLow,
		High52:    meta.FiftyTwoWeekHigh,
		YTDStart:  ytdBaseline(result.Timestamp, closes),
		Source:    "yahoo",
		AsOf:      time.Now().UTC(),
	}, nil
}

// ytdBaseline returns the first close of the current year, judged by the
// year of the newest bar. Zero when the bars do not reach back to January.
func ytdBaseline(timestamps []int64, closes []float64) float64 {
	if len(timestamps) == 0 || len(closes) != len(timestamps) {
		return 0
	}
	year := time.Unix(timestamps[len(timestamps)-1], 0).UTC().Year()
	for i, ts := range timestamps {
		if time.Unix(ts, 0).UTC().Year() == year && closes[i] > 0 {
			return closes[i]
		}
	}
	return 0
}
