package provider

import (
	"context"
	"errors"
	"time"

	"github.com/wonny/chronos/internal/contracts"
	"github.com/wonny/chronos/pkg/logger"
)

// RemoteSource fetches daily bars from a market-data endpoint.
type RemoteSource interface {
	FetchDailyBars(ctx context.Context, stockCode string, start, end time.Time) (map[time.Time]*contracts.PriceBar, error)
}

// BarWriter persists fetched bars so later runs read them locally.
type BarWriter interface {
	SavePrices(ctx context.Context, stockCode string, bars map[time.Time]*contracts.PriceBar) error
}

// Composite is a store-first SnapshotProvider. Reads hit the local
// store; only a missing bar triggers the remote source, and remote
// results are written back so the miss happens once per (stock, date).
type Composite struct {
	local  contracts.SnapshotProvider
	remote RemoteSource
	writer BarWriter
	logger *logger.Logger
}

// NewComposite creates a composite provider. remote and writer may be
// nil, in which case misses surface as DataNotFoundError directly.
func NewComposite(local contracts.SnapshotProvider, remote RemoteSource, writer BarWriter, log *logger.Logger) *Composite {
	return &Composite{local: local, remote: remote, writer: writer, logger: log}
}

// GetPriceOnDate reads the local bar for the date, backfilling from
// the remote source on a miss. A date the remote also lacks (holiday,
// suspension) stays a DataNotFoundError.
func (p *Composite) GetPriceOnDate(ctx context.Context, stockCode string, date time.Time) (*contracts.PriceBar, error) {
	bar, err := p.local.GetPriceOnDate(ctx, stockCode, date)
	if err == nil {
		return bar, nil
	}

	var notFound contracts.DataNotFoundError
	if !errors.As(err, &notFound) || p.remote == nil {
		return nil, err
	}

	bars, rerr := p.remote.FetchDailyBars(ctx, stockCode, date, date)
	if rerr != nil {
		return nil, rerr
	}

	if p.writer != nil {
		if werr := p.writer.SavePrices(ctx, stockCode, bars); werr != nil {
			p.logger.WithError(werr).Warn("Backfill write failed")
		}
	}

	if bar, ok := bars[date]; ok {
		return bar, nil
	}
	return nil, contracts.DataNotFoundError{StockCode: stockCode, Date: date, Kind: "price"}
}

// GetTradingCalendar delegates to the local store. The calendar is
// reference data loaded by migrations or ingestion, never fetched
// per-run.
func (p *Composite) GetTradingCalendar(ctx context.Context, exchange string, start, end time.Time) ([]time.Time, error) {
	return p.local.GetTradingCalendar(ctx, exchange, start, end)
}
