package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/chronos/internal/contracts"
	"github.com/wonny/chronos/pkg/config"
	"github.com/wonny/chronos/pkg/httputil"
	"github.com/wonny/chronos/pkg/logger"
)

// EastmoneyClient fetches daily kline bars from the Eastmoney public
// endpoints. All requests go through the shared rate-limited HTTP
// client; the quote-page HTML parser is a fallback for when the kline
// API is unavailable.
type EastmoneyClient struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewEastmoneyClient creates a remote kline client.
func NewEastmoneyClient(cfg config.ProviderConfig, log *logger.Logger) *EastmoneyClient {
	httpClient := httputil.NewWithTimeout(log, cfg.Timeout).
		WithRetry(3, 500*time.Millisecond).
		WithRateLimit(cfg.RatePerSecond)

	return &EastmoneyClient{
		httpClient: httpClient,
		logger:     log,
		baseURL:    cfg.BaseURL,
	}
}

// klineResponse is the kline API envelope.
type klineResponse struct {
	Data *struct {
		Code   string   `json:"code"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

// secid maps a 6-digit code to the Eastmoney market-prefixed id.
// Shanghai codes start with 6, everything else trades in Shenzhen.
func secid(stockCode string) string {
	if strings.HasPrefix(stockCode, "6") {
		return "1." + stockCode
	}
	return "0." + stockCode
}

// FetchDailyBars retrieves forward-adjusted daily bars for one stock
// within the date range, keyed by trade date. A failed or empty kline
// response falls back to scraping the quote page before giving up.
func (c *EastmoneyClient) FetchDailyBars(ctx context.Context, stockCode string, start, end time.Time) (map[time.Time]*contracts.PriceBar, error) {
	bars, err := c.fetchKlines(ctx, stockCode, start, end)
	if err == nil {
		return bars, nil
	}

	c.logger.WithError(err).WithField("stock", stockCode).Warn("Kline API failed, trying history page")
	bars, htmlErr := c.FetchDailyBarsHTML(ctx, stockCode, start, end)
	if htmlErr != nil {
		return nil, err
	}
	return bars, nil
}

// fetchKlines queries the kline JSON endpoint.
func (c *EastmoneyClient) fetchKlines(ctx context.Context, stockCode string, start, end time.Time) (map[time.Time]*contracts.PriceBar, error) {
	url := fmt.Sprintf(
		"%s/api/qt/stock/kline/get?secid=%s&klt=101&fqt=1&beg=%s&end=%s&fields1=f1,f2,f3&fields2=f51,f52,f53,f54,f55,f56,f57",
		c.baseURL, secid(stockCode), start.Format("20060102"), end.Format("20060102"),
	)

	resp, err := c.httpClient.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("kline request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read kline response failed: %w", err)
	}

	var kr klineResponse
	if err := json.Unmarshal(body, &kr); err != nil {
		return nil, fmt.Errorf("decode kline response failed: %w", err)
	}
	if kr.Data == nil || len(kr.Data.Klines) == 0 {
		return nil, contracts.DataNotFoundError{StockCode: stockCode, Date: start, Kind: "price"}
	}

	bars := make(map[time.Time]*contracts.PriceBar, len(kr.Data.Klines))
	for _, line := range kr.Data.Klines {
		date, bar, err := parseKline(line)
		if err != nil {
			c.logger.WithError(err).WithFields(map[string]interface{}{
				"stock": stockCode,
				"line":  line,
			}).Warn("Skipping malformed kline")
			continue
		}
		bars[date] = bar
	}

	c.logger.WithFields(map[string]interface{}{
		"stock": stockCode,
		"bars":  len(bars),
	}).Debug("Fetched daily bars")
	return bars, nil
}

// parseKline decodes one "date,open,close,high,low,volume,amount" line.
func parseKline(line string) (time.Time, *contracts.PriceBar, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 7 {
		return time.Time{}, nil, fmt.Errorf("kline has %d fields, want 7", len(fields))
	}

	date, err := time.ParseInLocation("2006-01-02", fields[0], time.UTC)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("bad kline date %q: %w", fields[0], err)
	}

	open, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("bad open %q: %w", fields[1], err)
	}
	closePrice, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("bad close %q: %w", fields[2], err)
	}
	high, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("bad high %q: %w", fields[3], err)
	}
	low, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("bad low %q: %w", fields[4], err)
	}
	volume, err := strconv.ParseInt(fields[5], 10, 64)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("bad volume %q: %w", fields[5], err)
	}
	amount, err := strconv.ParseFloat(fields[6], 64)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("bad amount %q: %w", fields[6], err)
	}

	return date, &contracts.PriceBar{
		Open: open, High: high, Low: low, Close: closePrice,
		Volume: volume, Amount: amount,
	}, nil
}
