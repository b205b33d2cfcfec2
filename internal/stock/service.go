// ABOUTME: Stock quote service with a primary and a fallback market data source
// ABOUTME: Renders single quotes and side-by-side comparisons as box tables

package stock

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Quote is a point-in-time price snapshot for one symbol. MarketCap, the
// 52-week bounds, and YTDStart are zero when the source does not report them.
type Quote struct {
	Symbol    string
	Name      string
	Currency  string
	Price     float64
	PrevClose float64
	Volume    float64
	MarketCap float64
	Low52     float64
	High52    float64
	YTDStart  float64
	Source    string
	AsOf      time.Time
}

// Change returns the absolute and percentage move against the previous close.
// ok is false when no previous close is known.
func (q *Quote) Change() (abs, pct float64, ok bool) {
	if q.PrevClose == 0 {
		return 0, 0, false
	}
	abs = q.Price - q.PrevClose
	pct = abs / q.PrevClose * 100
	return abs, pct, true
}

// YTD returns the percentage move against the first close of the year.
// ok is false when no year-start baseline is known.
func (q *Quote) YTD() (pct float64, ok bool) {
	if q.YTDStart == 0 {
		return 0, false
	}
	return (q.Price - q.YTDStart) / q.YTDStart * 100, true
}

// Service answers quote and comparison requests.
type Service struct {
	primary  *yahooSource
	fallback *stooqSource
	lang     string
	logger   *slog.Logger
}

// NewService creates a stock service. lang selects output labels, "en" or "zh".
func NewService(lang string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := &http.Client{Timeout: 15 * time.Second}
	return &Service{
		primary:  newYahooSource(httpClient),
		fallback: newStooqSource(httpClient),
		lang:     normalizeLang(lang),
		logger:   logger.With("component", "stock"),
	}
}

func normalizeLang(lang string) string {
	if strings.HasPrefix(strings.ToLower(lang), "zh") {
		return "zh"
	}
	return "en"
}

// Lookup fetches a quote, falling back to the secondary source when the
// primary fails.
func (s *Service) Lookup(ctx context.Context, symbol string) (*Quote, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("empty symbol")
	}

	quote, err := s.primary.fetch(ctx, symbol)
	if err == nil {
		return quote, nil
	}
	s.logger.Warn("primary quote source failed, trying fallback", "symbol", symbol, "error", err)

	quote, fbErr := s.fallback.fetch(ctx, symbol)
	if fbErr != nil {
		return nil, fmt.Errorf("all quote sources failed for %s: %w", symbol, err)
	}
	return quote, nil
}

// QuoteText fetches a symbol and renders it as a box table.
func (s *Service) QuoteText(ctx context.Context, symbol string) (string, error) {
	quote, err := s.Lookup(ctx, symbol)
	if err != nil {
		return "", err
	}
	return s.renderQuote(quote), nil
}

// CompareText fetches several symbols and renders them side by side.
// Symbols that cannot be fetched appear as error rows rather than failing
// the whole comparison.
func (s *Service) CompareText(ctx context.Context, symbols []string) (string, error) {
	if len(symbols) < 2 {
		return "", fmt.Errorf("comparison needs at least two symbols")
	}

	labels := s.labels()
	table := newTable(labels.symbol, labels.lastPrice, labels.change, labels.ytd, labels.mcap)
	for _, symbol := range symbols {
		quote, err := s.Lookup(ctx, symbol)
		if err != nil {
			table.addRow(strings.ToUpper(symbol), "-", labels.unavailable, "-", "-")
			continue
		}
		table.addRow(
			quote.Symbol,
			fmtPrice(quote.Price, quote.Currency),
			fmtChange(quote),
			fmtYTD(quote),
			fmtMarketCap(quote.MarketCap),
		)
	}
	return table.render(), nil
}

// HelpText describes the stock commands in the configured language.
func (s *Service) HelpText() string {
	if s.lang == "zh" {
		return strings.Join([]string{
			"/quote <代码> — 查询单只股票报价，例如 /quote AAPL",
			"/compare <代码> <代码> ... — 对比多只股票，例如 /compare AAPL MSFT",
		}, "\n")
	}
	return strings.Join([]string{
		"/quote <symbol> — latest price for one ticker, e.g. /quote AAPL",
		"/compare <symbol> <symbol> ... — side-by-side comparison, e.g. /compare AAPL MSFT",
	}, "\n")
}

type labelSet struct {
	symbol, name, metric, value, lastPrice, change, ytd string
	mcap, range52, volume, source, unavailable          string
}

func (s *Service) labels() labelSet {
	if s.lang == "zh" {
		return labelSet{
			symbol: "代码", name: "名称", metric: "指标", value: "数值",
			lastPrice: "最新价", change: "涨跌", ytd: "年初至今",
			mcap: "市值", range52: "52周区间", volume: "成交量",
			source: "来源", unavailable: "无数据",
		}
	}
	return labelSet{
		symbol: "Symbol", name: "Name", metric: "Metric", value: "Value",
		lastPrice: "Last Price", change: "Change", ytd: "YTD",
		mcap: "Market Cap", range52: "52W Range", volume: "Volume",
		source: "Source", unavailable: "unavailable",
	}
}

func (s *Service) renderQuote(q *Quote) string {
	labels := s.labels()
	table := newTable(labels.metric, labels.value)
	table.addRow(labels.lastPrice, fmtPrice(q.Price, q.Currency))
	table.addRow(labels.change, fmtChange(q))
	table.addRow(labels.mcap, fmtMarketCap(q.MarketCap))
	table.addRow(labels.range52, fmtRange(q.Low52, q.High52))
	table.addRow(labels.volume, fmtCompact(q.Volume))
	table.addRow(labels.source, q.Source)
	return fmt.Sprintf("%s (%s)\n%s", q.Symbol, q.Name, table.render())
}

// fmtPrice renders a price with its currency.
func fmtPrice(price float64, currency string) string {
	if currency == "" || currency == "USD" {
		return fmt.Sprintf("$%.2f", price)
	}
	return fmt.Sprintf("%.2f %s", price, currency)
}

// fmtChange renders the move against previous close with a direction arrow.
func fmtChange(q *Quote) string {
	abs, pct, ok := q.Change()
	if !ok {
		return "-"
	}
	arrow := "▲"
	if abs < 0 {
		arrow = "▼"
	}
	return fmt.Sprintf("%s %+.2f (%+.2f%%)", arrow, abs, pct)
}

// fmtYTD renders the year-to-date percentage move.
func fmtYTD(q *Quote) string {
	pct, ok := q.YTD()
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%+.2f%%", pct)
}

// fmtMarketCap renders a dollar-denominated compact market cap.
func fmtMarketCap(v float64) string {
	if v == 0 {
		return "-"
	}
	return "$" + fmtCompact(v)
}

// fmtRange renders the 52-week low and high as a span.
func fmtRange(low, high float64) string {
	if low == 0 || high == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f ~ %.2f", low, high)
}

// fmtCompact shortens large numbers with T, B, and M suffixes.
func fmtCompact(v float64) string {
	if v == 0 {
		return "-"
	}
	switch {
	case v >= 1e12:
		return fmt.Sprintf("%.2fT", v/1e12)
	case v >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}
