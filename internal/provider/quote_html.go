package provider

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/chronos/internal/contracts"
)

// FetchDailyBarsHTML scrapes the stock's history table from the quote
// page. This is the fallback path for when the kline API degrades; the
// table carries the same daily OHLCV columns.
func (c *EastmoneyClient) FetchDailyBarsHTML(ctx context.Context, stockCode string, start, end time.Time) (map[time.Time]*contracts.PriceBar, error) {
	url := fmt.Sprintf("%s/stock/history?secid=%s", c.baseURL, secid(stockCode))

	resp, err := c.httpClient.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("history page request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read history page failed: %w", err)
	}

	bars, err := parseHistoryTable(string(body), start, end)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, contracts.DataNotFoundError{StockCode: stockCode, Date: start, Kind: "price"}
	}

	c.logger.WithFields(map[string]interface{}{
		"stock": stockCode,
		"bars":  len(bars),
	}).Debug("Scraped daily bars from history page")
	return bars, nil
}

// parseHistoryTable extracts daily bars from the history table rows.
// Columns: date, open, high, low, close, volume, amount. Rows outside
// the range or with unparsable cells are skipped.
func parseHistoryTable(html string, start, end time.Time) (map[time.Time]*contracts.PriceBar, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse history page failed: %w", err)
	}

	bars := make(map[time.Time]*contracts.PriceBar)
	doc.Find("table.history tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 7 {
			return
		}

		text := func(i int) string {
			return strings.ReplaceAll(strings.TrimSpace(cells.Eq(i).Text()), ",", "")
		}

		date, err := time.ParseInLocation("2006-01-02", text(0), time.UTC)
		if err != nil || date.Before(start) || date.After(end) {
			return
		}

		open, err1 := strconv.ParseFloat(text(1), 64)
		high, err2 := strconv.ParseFloat(text(2), 64)
		low, err3 := strconv.ParseFloat(text(3), 64)
		closePrice, err4 := strconv.ParseFloat(text(4), 64)
		volume, err5 := strconv.ParseInt(text(5), 10, 64)
		amount, err6 := strconv.ParseFloat(text(6), 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil || err6 != nil {
			return
		}

		bars[date] = &contracts.PriceBar{
			Open: open, High: high, Low: low, Close: closePrice,
			Volume: volume, Amount: amount,
		}
	})

	return bars, nil
}
