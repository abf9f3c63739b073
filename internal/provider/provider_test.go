package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wonny/chronos/internal/contracts"
	"github.com/wonny/chronos/pkg/config"
	"github.com/wonny/chronos/pkg/logger"
)

func TestSecid(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"600519", "1.600519"},
		{"601318", "1.601318"},
		{"000001", "0.000001"},
		{"300750", "0.300750"},
	}
	for _, tt := range tests {
		if got := secid(tt.code); got != tt.want {
			t.Errorf("secid(%s) = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestParseKline(t *testing.T) {
	date, bar, err := parseKline("2024-01-02,100.5,102.0,103.2,99.8,1500000,153000000.0")
	if err != nil {
		t.Fatalf("parseKline: %v", err)
	}
	if !date.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date = %v", date)
	}
	if bar.Open != 100.5 || bar.Close != 102.0 || bar.High != 103.2 || bar.Low != 99.8 {
		t.Errorf("bar = %+v", bar)
	}
	if bar.Volume != 1500000 {
		t.Errorf("volume = %d", bar.Volume)
	}

	bad := []string{
		"2024-01-02,100.5,102.0",      // too few fields
		"notadate,1,2,3,4,5,6",        // bad date
		"2024-01-02,x,102,103,99,5,6", // bad number
	}
	for _, line := range bad {
		if _, _, err := parseKline(line); err == nil {
			t.Errorf("parseKline(%q) should fail", line)
		}
	}
}

func TestFetchDailyBars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("secid") != "1.600519" {
			t.Errorf("secid = %s", r.URL.Query().Get("secid"))
		}
		w.Write([]byte(`{"data":{"code":"600519","klines":[
			"2024-01-02,100,101,102,99,1000,101000",
			"2024-01-03,101,103,104,100,1100,113300",
			"garbage line"
		]}}`))
	}))
	defer srv.Close()

	client := NewEastmoneyClient(config.ProviderConfig{
		BaseURL:       srv.URL,
		RatePerSecond: 100,
		Timeout:       5 * time.Second,
	}, logger.NewNop())

	bars, err := client.FetchDailyBars(context.Background(),
		"600519",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	// The malformed third line is skipped, not fatal.
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	bar := bars[time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)]
	if bar == nil || bar.Close != 103 {
		t.Errorf("bar for Jan 3 = %+v", bar)
	}
}

func TestFetchDailyBars_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":null}`))
	}))
	defer srv.Close()

	client := NewEastmoneyClient(config.ProviderConfig{
		BaseURL:       srv.URL,
		RatePerSecond: 100,
		Timeout:       5 * time.Second,
	}, logger.NewNop())

	_, err := client.FetchDailyBars(context.Background(),
		"600519",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))

	var notFound contracts.DataNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want DataNotFoundError", err)
	}
}

func TestFetchDailyBars_HTMLFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/stock/history"):
			w.Write([]byte(`<html><body><table class="history"><tbody>
				<tr><td>2024-01-02</td><td>100.0</td><td>103.0</td><td>99.0</td><td>102.0</td><td>1,500,000</td><td>153,000,000</td></tr>
			</tbody></table></body></html>`))
		default:
			w.Write([]byte(`{"data":null}`))
		}
	}))
	defer srv.Close()

	client := NewEastmoneyClient(config.ProviderConfig{
		BaseURL:       srv.URL,
		RatePerSecond: 100,
		Timeout:       5 * time.Second,
	}, logger.NewNop())

	bars, err := client.FetchDailyBars(context.Background(),
		"600519",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	// An empty kline response falls through to the history page.
	bar := bars[time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)]
	if bar == nil || bar.Close != 102.0 {
		t.Errorf("bar for Jan 2 = %+v", bar)
	}
}

func TestParseHistoryTable(t *testing.T) {
	html := `<html><body><table class="history"><tbody>
		<tr><td>2024-01-02</td><td>100.0</td><td>103.0</td><td>99.0</td><td>102.0</td><td>1,500,000</td><td>153,000,000</td></tr>
		<tr><td>2024-01-03</td><td>102.0</td><td>105.0</td><td>101.0</td><td>104.0</td><td>1,600,000</td><td>166,400,000</td></tr>
		<tr><td>2023-12-29</td><td>98.0</td><td>99.0</td><td>97.0</td><td>98.5</td><td>900,000</td><td>88,650,000</td></tr>
		<tr><td>2024-01-04</td><td>bad</td><td>1</td><td>1</td><td>1</td><td>1</td><td>1</td></tr>
	</tbody></table></body></html>`

	bars, err := parseHistoryTable(html,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// Out-of-range and unparsable rows are dropped.
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	bar := bars[time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)]
	if bar == nil || bar.High != 103.0 || bar.Volume != 1500000 {
		t.Errorf("bar for Jan 2 = %+v", bar)
	}
}

// fakeLocal misses every date except the ones seeded.
type fakeLocal struct {
	bars map[string]*contracts.PriceBar
}

func (f *fakeLocal) GetPriceOnDate(ctx context.Context, stockCode string, date time.Time) (*contracts.PriceBar, error) {
	if bar, ok := f.bars[date.Format("2006-01-02")]; ok {
		return bar, nil
	}
	return nil, contracts.DataNotFoundError{StockCode: stockCode, Date: date, Kind: "price"}
}

func (f *fakeLocal) GetTradingCalendar(ctx context.Context, exchange string, start, end time.Time) ([]time.Time, error) {
	return nil, nil
}

type fakeRemote struct {
	bars  map[string]*contracts.PriceBar
	calls int
}

func (f *fakeRemote) FetchDailyBars(ctx context.Context, stockCode string, start, end time.Time) (map[time.Time]*contracts.PriceBar, error) {
	f.calls++
	out := make(map[time.Time]*contracts.PriceBar)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if bar, ok := f.bars[d.Format("2006-01-02")]; ok {
			out[d] = bar
		}
	}
	if len(out) == 0 {
		return nil, contracts.DataNotFoundError{StockCode: stockCode, Date: start, Kind: "price"}
	}
	return out, nil
}

type fakeWriter struct {
	saved map[string]*contracts.PriceBar
}

func (f *fakeWriter) SavePrices(ctx context.Context, stockCode string, bars map[time.Time]*contracts.PriceBar) error {
	for d, b := range bars {
		f.saved[d.Format("2006-01-02")] = b
	}
	return nil
}

func TestComposite_StoreFirst(t *testing.T) {
	localBar := &contracts.PriceBar{Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10, Amount: 15}
	local := &fakeLocal{bars: map[string]*contracts.PriceBar{"2024-01-02": localBar}}
	remote := &fakeRemote{bars: map[string]*contracts.PriceBar{}}

	p := NewComposite(local, remote, nil, logger.NewNop())

	bar, err := p.GetPriceOnDate(context.Background(), "600519", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if bar != localBar {
		t.Error("local hit should not touch the remote")
	}
	if remote.calls != 0 {
		t.Errorf("remote calls = %d, want 0", remote.calls)
	}
}

func TestComposite_BackfillOnMiss(t *testing.T) {
	remoteBar := &contracts.PriceBar{Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10, Amount: 15}
	local := &fakeLocal{bars: map[string]*contracts.PriceBar{}}
	remote := &fakeRemote{bars: map[string]*contracts.PriceBar{"2024-01-02": remoteBar}}
	writer := &fakeWriter{saved: make(map[string]*contracts.PriceBar)}

	p := NewComposite(local, remote, writer, logger.NewNop())

	bar, err := p.GetPriceOnDate(context.Background(), "600519", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if bar != remoteBar {
		t.Error("miss should return the remote bar")
	}
	if writer.saved["2024-01-02"] != remoteBar {
		t.Error("remote bar should be written back to the store")
	}
}

func TestComposite_MissEverywhere(t *testing.T) {
	local := &fakeLocal{bars: map[string]*contracts.PriceBar{}}
	remote := &fakeRemote{bars: map[string]*contracts.PriceBar{}}

	p := NewComposite(local, remote, nil, logger.NewNop())

	_, err := p.GetPriceOnDate(context.Background(), "600519", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	var notFound contracts.DataNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want DataNotFoundError", err)
	}
}
