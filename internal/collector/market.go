package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"NewsSentinel/internal/calculator"
	"NewsSentinel/internal/model"

	"github.com/ternarybob/arbor"
)

// DefaultYahooURL is the Yahoo Finance chart API host.
const DefaultYahooURL = "https://query1.finance.yahoo.com"

// YahooMarket implements MarketContext using the Yahoo Finance public chart API.
type YahooMarket struct {
	BaseURL string
	Suffix  string // appended to local tickers, ".VN" for HOSE
	Client  *http.Client

	logger arbor.ILogger
}

// NewYahooMarket creates a market context provider.
func NewYahooMarket(suffix, proxyURL string, logger arbor.ILogger) *YahooMarket {
	return &YahooMarket{
		BaseURL: DefaultYahooURL,
		Suffix:  suffix,
		Client:  newHTTPClient(proxyURL, 30*time.Second),
		logger:  logger,
	}
}

func (y *YahooMarket) ticker(symbol string) string {
	if y.Suffix == "" || strings.Contains(symbol, ".") || strings.HasPrefix(symbol, "^") {
		return symbol
	}
	return symbol + y.Suffix
}

// Context returns "Stock Price Today: <close> (Change: <pct>%)" plus RSI14, SMA20 and the
// 30-session range when enough bars exist.
func (y *YahooMarket) Context(ctx context.Context, symbol string) string {
	bars, err := y.DailyBars(ctx, symbol)
	if err != nil {
		y.logger.Warn().Str("symbol", symbol).Err(err).Msg("Market data unavailable")
		return MarketUnavailable
	}
	return describeMarket(bars)
}

func describeMarket(bars []model.PriceBar) string {
	if len(bars) == 0 {
		return MarketUnavailable
	}
	last := bars[len(bars)-1].Close
	change, err := calculator.ChangePercent(bars)
	if err != nil {
		change = 0
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Stock Price Today: %s (Change: %.2f%%)", formatPrice(last), change)
	if rsi, err := calculator.RSI(bars, 14); err == nil {
		fmt.Fprintf(&b, ", RSI14: %.1f", rsi)
	}
	if sma, err := calculator.SMA20(bars); err == nil {
		fmt.Fprintf(&b, ", SMA20: %s", formatPrice(sma))
	}
	if high, low, err := calculator.Range(bars, 30); err == nil {
		fmt.Fprintf(&b, ", 30-session range: %s-%s", formatPrice(low), formatPrice(high))
	}
	return b.String()
}

func formatPrice(p float64) string {
	if p >= 1000 {
		return fmt.Sprintf("%.0f", p)
	}
	return fmt.Sprintf("%.2f", p)
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func at(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return 0
	}
	return *vals[i]
}

// DailyBars fetches roughly three months of daily bars, oldest first.
func (y *YahooMarket) DailyBars(ctx context.Context, symbol string) ([]model.PriceBar, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=3mo",
		strings.TrimRight(y.BaseURL, "/"), url.PathEscape(y.ticker(symbol)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := y.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: no data returned")
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]model.PriceBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		c := at(quote.Close, i)
		if c == 0 {
			continue // holidays and halted sessions come back as nulls
		}
		bars = append(bars, model.PriceBar{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   at(quote.Open, i),
			High:   at(quote.High, i),
			Low:    at(quote.Low, i),
			Close:  c,
			Volume: at(quote.Volume, i),
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("yahoo: no price data")
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

// StaticMarket returns a fixed context string. Used when market data is disabled;
// the pipeline does not spend a gate admission on it.
type StaticMarket string

func (s StaticMarket) Context(context.Context, string) string { return string(s) }
