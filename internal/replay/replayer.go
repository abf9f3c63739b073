package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/chronos/internal/contracts"
	"github.com/wonny/chronos/pkg/logger"
)

// Mode namespaces the snapshot cache so that differently sourced runs
// never share entries.
type Mode string

const (
	ModeBacktest Mode = "backtest"
	ModeResearch Mode = "research"
)

// Replayer builds forward-only, chronologically ordered snapshot
// streams. It never accepts or forwards data timestamped after the
// snapshot date: every fetch is keyed to a single historical date, so
// look-ahead is structurally impossible rather than best-effort.
type Replayer struct {
	provider contracts.SnapshotProvider
	factors  contracts.FactorStore
	cache    contracts.SnapshotCache
	exchange string
	logger   *logger.Logger
}

// New creates a replayer. cache may be nil, in which case an in-memory
// cache with process lifetime is used.
func New(provider contracts.SnapshotProvider, factors contracts.FactorStore, cache contracts.SnapshotCache, exchange string, log *logger.Logger) *Replayer {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Replayer{
		provider: provider,
		factors:  factors,
		cache:    cache,
		exchange: exchange,
		logger:   log,
	}
}

// Stream is one replay pass over a date range. Each call to Replay
// returns a fresh stream with its own cursor; streams are restartable
// by calling Replay again.
type Stream struct {
	r           *Replayer
	stockCode   string
	mode        Mode
	combination *contracts.FactorCombination
	dates       []time.Time
	idx         int
	lastEmitted time.Time
	emitted     int
	skipped     int
}

// stepResult is the outcome of attempting one date. A skip is
// recoverable (bad bar, missing data); a fatal error aborts the stream.
// Returning this explicitly keeps callers from confusing the two.
type stepResult struct {
	snapshot *contracts.DataSnapshot
	skip     bool
	reason   string
	err      error
}

// Replay resolves the trading calendar for [start, end] and returns a
// lazy snapshot stream for the stock.
func (r *Replayer) Replay(ctx context.Context, stockCode string, start, end time.Time, combination *contracts.FactorCombination, mode Mode) (*Stream, error) {
	if !end.After(start) {
		return nil, contracts.ValidationError{Field: "date_range", Message: "end must be after start"}
	}
	if combination == nil || len(combination.ActiveFactors()) == 0 {
		return nil, contracts.ValidationError{Field: "combination", Message: "an active factor combination is required"}
	}

	dates, err := r.resolveCalendar(ctx, start, end)
	if err != nil {
		return nil, err
	}

	if err := ValidateTimeline(dates); err != nil {
		return nil, err
	}

	r.logger.WithFields(map[string]interface{}{
		"stock":        stockCode,
		"start":        start.Format("2006-01-02"),
		"end":          end.Format("2006-01-02"),
		"trading_days": len(dates),
		"mode":         mode,
	}).Debug("Replay stream opened")

	return &Stream{
		r:           r,
		stockCode:   stockCode,
		mode:        mode,
		combination: combination,
		dates:       dates,
	}, nil
}

// resolveCalendar asks the provider for the exchange calendar and falls
// back to Mon-Fri business days when the calendar source is unavailable.
func (r *Replayer) resolveCalendar(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	dates, err := r.provider.GetTradingCalendar(ctx, r.exchange, start, end)
	if err != nil || len(dates) == 0 {
		if err != nil {
			r.logger.WithError(err).Warn("Trading calendar unavailable, falling back to business days")
		}
		return BusinessDays(start, end), nil
	}
	return dates, nil
}

// Next advances the stream to the next usable snapshot. It returns
// ok=false when the range is exhausted. Invalid or missing dates are
// skipped and logged; they never abort the stream.
func (s *Stream) Next(ctx context.Context) (*contracts.DataSnapshot, bool, error) {
	for s.idx < len(s.dates) {
		date := s.dates[s.idx]
		s.idx++

		res := s.r.step(ctx, s.stockCode, date, s.combination, s.mode)
		if res.err != nil {
			return nil, false, res.err
		}
		if res.skip {
			s.skipped++
			s.r.logger.WithFields(map[string]interface{}{
				"stock":  s.stockCode,
				"date":   date.Format("2006-01-02"),
				"reason": res.reason,
			}).Debug("Snapshot skipped")
			continue
		}

		// Monotonic ordering is a hard invariant of the stream.
		if !s.lastEmitted.IsZero() && !res.snapshot.Timestamp.After(s.lastEmitted) {
			return nil, false, contracts.OrderingError{
				Index: s.emitted,
				Prev:  s.lastEmitted,
				Curr:  res.snapshot.Timestamp,
			}
		}
		s.lastEmitted = res.snapshot.Timestamp
		s.emitted++

		return res.snapshot, true, nil
	}

	return nil, false, nil
}

// step fetches, validates, and caches the snapshot for one date.
func (r *Replayer) step(ctx context.Context, stockCode string, date time.Time, combination *contracts.FactorCombination, mode Mode) stepResult {
	key := cacheKey(stockCode, date, mode)

	if cached, ok, err := r.cache.Get(ctx, key); err == nil && ok {
		return stepResult{snapshot: cached}
	}

	price, err := r.provider.GetPriceOnDate(ctx, stockCode, date)
	if err != nil {
		var nf contracts.DataNotFoundError
		if errors.As(err, &nf) {
			return stepResult{skip: true, reason: "no price data"}
		}
		return stepResult{err: fmt.Errorf("fetch price for %s on %s: %w", stockCode, date.Format("2006-01-02"), err)}
	}

	factorData, err := r.factors.GetFactorValues(ctx, stockCode, date, combination.FactorNames())
	if err != nil {
		return stepResult{err: fmt.Errorf("fetch factors for %s on %s: %w", stockCode, date.Format("2006-01-02"), err)}
	}

	snapshot := &contracts.DataSnapshot{
		Timestamp:  date,
		StockCode:  stockCode,
		Price:      *price,
		FactorData: factorData,
	}

	if err := snapshot.Validate(); err != nil {
		return stepResult{skip: true, reason: err.Error()}
	}

	if err := r.cache.Set(ctx, key, snapshot); err != nil {
		// Cache failures degrade to re-fetching; never fatal.
		r.logger.WithError(err).Warn("Snapshot cache write failed")
	}

	return stepResult{snapshot: snapshot}
}

// Total returns the number of calendar dates in this stream's range.
func (s *Stream) Total() int { return len(s.dates) }

// Emitted returns the number of snapshots produced so far.
func (s *Stream) Emitted() int { return s.emitted }

// Skipped returns the number of dates skipped so far.
func (s *Stream) Skipped() int { return s.skipped }

// cacheKey builds the (stock, date, mode) memoization key.
func cacheKey(stockCode string, date time.Time, mode Mode) string {
	return fmt.Sprintf("%s:%s:%s", stockCode, date.Format("2006-01-02"), mode)
}

// ValidateTimeline checks that timestamps are strictly increasing.
// Usable by callers as a standalone invariant check.
func ValidateTimeline(timestamps []time.Time) error {
	for i := 1; i < len(timestamps); i++ {
		if !timestamps[i].After(timestamps[i-1]) {
			return contracts.OrderingError{
				Index: i,
				Prev:  timestamps[i-1],
				Curr:  timestamps[i],
			}
		}
	}
	return nil
}
