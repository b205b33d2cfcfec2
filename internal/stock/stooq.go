// ABOUTME: Stooq CSV fallback source for stock quotes
// ABOUTME: Parses daily history CSV to recover the last and previous closes

package stock

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const stooqURL = "https://stooq.com/q/d/l/"

type stooqSource struct {
	httpClient *http.Client
	baseURL    string
}

func newStooqSource(httpClient *http.Client) *stooqSource {
	return &stooqSource{httpClient: httpClient, baseURL: stooqURL}
}

// fetch downloads the daily CSV for a US-listed symbol. Stooq addresses US
// tickers with a ".us" suffix.
func (s *stooqSource) fetch(ctx context.Context, symbol string) (*Quote, error) {
	url := fmt.Sprintf("%s?s=%s.us&i=d", s.baseURL, strings.ToLower(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", browserUA)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching csv: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("csv endpoint returned status %d", resp.StatusCode)
	}

	reader := csv.NewReader(resp.Body)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing csv: %w", err)
	}
	// Header plus at least one data row.
	if len(records) < 2 {
		return nil, fmt.Errorf("no history for %s", symbol)
	}

	header := records[0]
	closeIdx, volumeIdx := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "close":
			closeIdx = i
		case "volume":
			volumeIdx = i
		}
	}
	if closeIdx < 0 {
		return nil, fmt.Errorf("csv for %s has no close column", symbol)
	}

	last := records[len(records)-1]
	price, err := strconv.ParseFloat(last[closeIdx], 64)
	if err != nil {
		return nil, fmt.Errorf("parsing close %q: %w", last[closeIdx], err)
	}

	var prev float64
	if len(records) > 2 {
		prevRow := records[len(records)-2]
		prev, _ = strconv.ParseFloat(prevRow[closeIdx], 64)
	}

	var volume float64
	if volumeIdx >= 0 && volumeIdx < len(last) {
		volume, _ = strconv.ParseFloat(last[volumeIdx], 64)
	}

	return &Quote{
		Symbol:    strings.ToUpper(symbol),
		Name:      strings.ToUpper(symbol),
		Currency:  "USD",
		Price:     price,
		PrevClose: prev,
		Volume:    volume,
		Source:    "stooq",
		AsOf:      time.Now().UTC(),
	}, nil
}
