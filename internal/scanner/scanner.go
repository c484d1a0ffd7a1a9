// Package scanner is the pipeline heart: it walks the selector's
// tradable universe on a ticker clock, computes indicators per
// timeframe, evaluates the composite rule set, and emits/persists the
// resulting signal. Bounded-concurrency fan-out, continuous + adaptive
// full-scan modes, generalized from a per-exchange fan-out idiom (one
// goroutine per configured exchange) to one goroutine per symbol in a
// bounded batch.
package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"spotscan/internal/cache"
	"spotscan/internal/config"
	"spotscan/internal/errs"
	"spotscan/internal/exchange"
	"spotscan/internal/indicators"
	"spotscan/internal/models"
	"spotscan/internal/money"
	"spotscan/internal/selector"
	"spotscan/internal/signalbus"
	"spotscan/pkg/ratelimit"
)

// Universe is the symbol source the scanner iterates — satisfied by
// *selector.Selector; an interface so tests can substitute a fixed list.
type Universe interface {
	Select(ctx context.Context, forceRefresh bool) ([]selector.Candidate, error)
}

// Recorder persists a signal for audit, independent of whether it also
// reaches the signal bus.
type Recorder interface {
	RecordSignal(ctx context.Context, sig models.Signal) error
}

// AssetResolver maps a symbol to its durable asset id.
type AssetResolver interface {
	ResolveAssetID(ctx context.Context, symbol string) (string, error)
}

// StatusBroadcaster pushes a cycle summary to an interested observer,
// typically the dashboard's websocket hub. Optional.
type StatusBroadcaster interface {
	ScannerStatus(mode string, symbolsScanned int)
}

// Scanner runs the per-symbol indicator/rule pipeline on a ticker clock.
type Scanner struct {
	client   exchange.Client
	cache    *cache.Cache
	limiter  *ratelimit.Limiter
	universe Universe
	bus      *signalbus.Bus
	recorder Recorder
	resolver AssetResolver
	bcast    StatusBroadcaster

	indicatorCfg     config.IndicatorConfig
	scannerCfg       config.ScannerConfig
	busThreshold     float64
	persistThreshold float64

	log *zap.SugaredLogger
}

// SetBroadcaster wires an optional dashboard push target for per-cycle
// status. Unset, cycle summaries simply aren't pushed anywhere.
func (s *Scanner) SetBroadcaster(b StatusBroadcaster) {
	s.bcast = b
}

// New builds a Scanner from its wired dependencies.
func New(
	client exchange.Client,
	c *cache.Cache,
	limiter *ratelimit.Limiter,
	universe Universe,
	bus *signalbus.Bus,
	recorder Recorder,
	resolver AssetResolver,
	indicatorCfg config.IndicatorConfig,
	scannerCfg config.ScannerConfig,
	busThreshold, persistThreshold float64,
	log *zap.SugaredLogger,
) *Scanner {
	return &Scanner{
		client:           client,
		cache:            c,
		limiter:          limiter,
		universe:         universe,
		bus:              bus,
		recorder:         recorder,
		resolver:         resolver,
		indicatorCfg:     indicatorCfg,
		scannerCfg:       scannerCfg,
		busThreshold:     busThreshold,
		persistThreshold: persistThreshold,
		log:              log,
	}
}

// Run drives the continuous/full-scan cycle until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	interval := time.Duration(s.scannerCfg.ScanIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	cycle := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cycle++
			if s.scannerCfg.FullScanEveryNCycles > 0 && cycle%s.scannerCfg.FullScanEveryNCycles == 0 {
				s.runFullScan(ctx)
			} else {
				s.runContinuousPass(ctx)
			}
		}
	}
}

// runContinuousPass iterates the selected universe in fixed-size
// batches, processed sequentially to bound in-flight concurrency.
func (s *Scanner) runContinuousPass(ctx context.Context) {
	candidates, err := s.universe.Select(ctx, false)
	if err != nil {
		s.log.Errorw("continuous pass: universe unavailable", "error", err)
		return
	}
	symbols := symbolsOf(candidates)
	s.runBatches(ctx, symbols, s.scannerCfg.ContinuousBatchSize, 0)
	if s.bcast != nil {
		s.bcast.ScannerStatus("continuous", len(symbols))
	}
}

// runFullScan iterates every symbol with a batch size and inter-batch
// delay chosen adaptively from current rate-limiter utilization.
func (s *Scanner) runFullScan(ctx context.Context) {
	candidates, err := s.universe.Select(ctx, false)
	if err != nil {
		s.log.Errorw("full scan: universe unavailable", "error", err)
		return
	}
	symbols := symbolsOf(candidates)

	utilization := s.limiter.Utilization(ratelimit.CategoryMarketData) * 100
	batchSize, delay := adaptiveBatch(utilization)
	s.log.Infow("full scan starting", "symbols", len(symbols), "utilization_pct", utilization, "batch_size", batchSize)
	s.runBatches(ctx, symbols, batchSize, delay)
	if s.bcast != nil {
		s.bcast.ScannerStatus("full", len(symbols))
	}
}

// adaptiveBatch implements the utilization-driven batch-size/delay table.
func adaptiveBatch(utilizationPct float64) (batchSize int, delay time.Duration) {
	switch {
	case utilizationPct < 60:
		return 50, 50 * time.Millisecond
	case utilizationPct < 85:
		return 35, 150 * time.Millisecond
	default:
		return 20, 250 * time.Millisecond
	}
}

func symbolsOf(candidates []selector.Candidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Symbol
	}
	return out
}

// runBatches walks symbols in batches of size batchSize, each batch's
// symbols processed concurrently but batches themselves sequentially,
// sleeping delay between batches (0 = no delay, used by continuous mode).
func (s *Scanner) runBatches(ctx context.Context, symbols []string, batchSize int, delay time.Duration) {
	if batchSize <= 0 {
		batchSize = len(symbols)
	}
	for i := 0; i < len(symbols); i += batchSize {
		if ctx.Err() != nil {
			return
		}
		end := i + batchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		s.scanBatch(ctx, symbols[i:end])

		if delay > 0 && end < len(symbols) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
	}
}

// maxConcurrentScans bounds how many symbols are in flight at once within
// a batch, independent of the batch's own size (a full-scan batch of 50
// should not mean 50 simultaneous exchange round-trips).
const maxConcurrentScans = 16

// scanBatch runs scanSymbol for every symbol in the batch concurrently,
// bounded by a semaphore. A per-symbol failure is isolated via a plain
// (non-context-cancelling) errgroup.Group: it is logged but never aborts
// sibling goroutines or the batch.
func (s *Scanner) scanBatch(ctx context.Context, symbols []string) {
	sem := semaphore.NewWeighted(maxConcurrentScans)
	var eg errgroup.Group

	for _, symbol := range symbols {
		symbol := symbol
		if err := sem.Acquire(ctx, 1); err != nil {
			return // ctx cancelled
		}
		eg.Go(func() error {
			defer sem.Release(1)
			if err := s.scanSymbol(ctx, symbol); err != nil {
				s.log.Debugw("scan symbol failed, isolated", "symbol", symbol, "error", err)
			}
			return nil
		})
	}
	_ = eg.Wait()
}

// scanSymbol runs the full per-symbol pipeline: fetch, compute, evaluate
// rules, aggregate, emit/persist. Insufficient-data errors are treated
// as "no signal, no persist" rather than propagated as scan failures.
func (s *Scanner) scanSymbol(ctx context.Context, symbol string) error {
	tf2h, err := s.timeframeIndicators(ctx, symbol, "2h", 100)
	if err != nil {
		if errs.Is(err, errs.KindInsufficientData) {
			return nil
		}
		return err
	}
	tf4h, err := s.timeframeIndicators(ctx, symbol, "4h", 100)
	if err != nil {
		if errs.Is(err, errs.KindInsufficientData) {
			return nil
		}
		return err
	}

	volumeRatio, err := s.volumeSpikeRatio(ctx, symbol)
	if err != nil && !errs.Is(err, errs.KindInsufficientData) {
		return err
	}

	rules := []*RuleResult{
		ruleMACrossoverRSI(tf2h, tf4h, s.indicatorCfg.RSIMin, s.indicatorCfg.RSIMax),
		ruleMADistance(tf2h, "2h", s.indicatorCfg.MADistance2hPercent, 0.5),
		ruleMADistance(tf4h, "4h", s.indicatorCfg.MADistance4hPercent, 0.6),
		ruleVolumeSpike(tf2h, volumeRatio, s.indicatorCfg.VolumeSpikeThreshold),
	}
	agg := AggregateRules(rules)
	if agg.Type == "" {
		return nil
	}

	assetID, err := s.resolver.ResolveAssetID(ctx, symbol)
	if err != nil {
		return err
	}

	sig := models.Signal{
		ID:             uuid.NewString(),
		AssetID:        assetID,
		Timestamp:      time.Now(),
		Type:           agg.Type,
		Strength:       agg.Confidence,
		RulesTriggered: agg.Rules,
		CreatedAt:      time.Now(),
	}

	if agg.Confidence >= s.persistThreshold {
		if err := s.recorder.RecordSignal(ctx, sig); err != nil {
			s.log.Errorw("failed to persist signal", "symbol", symbol, "error", err)
		}
	}
	if agg.Confidence >= s.busThreshold {
		s.bus.Publish(sig)
	}
	return nil
}

// timeframeIndicators fetches (cached) candles for symbol/timeframe and
// computes MM1/Center/RSI for the latest bar plus MM1/Center for the bar
// before it, the pair DetectCrossover-style logic needs.
func (s *Scanner) timeframeIndicators(ctx context.Context, symbol, timeframe string, limit int) (TFIndicators, error) {
	key := cache.MakeKey(cache.CategoryCandles, symbol, map[string]string{"tf": timeframe})
	raw, err := s.cache.GetOrFetch(cache.CategoryCandles, key, func() (interface{}, error) {
		return s.client.FetchCandles(ctx, symbol, timeframe, limit)
	})
	if err != nil {
		return TFIndicators{}, err
	}
	klines := raw.([]exchange.Kline)
	if len(klines) < limit {
		return TFIndicators{}, errs.InsufficientData("scanner.timeframeIndicators", errInsufficientCandles(symbol, timeframe, len(klines), limit))
	}

	closes := make([]money.Decimal, len(klines))
	for i, k := range klines {
		closes[i] = k.Close
	}

	mm1, err := indicators.EMA(closes, s.indicatorCfg.MM1Period)
	if err != nil {
		return TFIndicators{}, err
	}
	center, err := indicators.EMA(closes, s.indicatorCfg.CenterPeriod)
	if err != nil {
		return TFIndicators{}, err
	}
	prevMM1, err := indicators.EMA(closes[:len(closes)-1], s.indicatorCfg.MM1Period)
	if err != nil {
		return TFIndicators{}, err
	}
	prevCenter, err := indicators.EMA(closes[:len(closes)-1], s.indicatorCfg.CenterPeriod)
	if err != nil {
		return TFIndicators{}, err
	}
	rsi, err := indicators.RSI(closes, s.indicatorCfg.RSIPeriod)
	if err != nil {
		return TFIndicators{}, err
	}

	mm1f, _ := mm1.Float64()
	centerf, _ := center.Float64()
	prevMM1f, _ := prevMM1.Float64()
	prevCenterf, _ := prevCenter.Float64()

	return TFIndicators{
		MM1:        mm1f,
		Center:     centerf,
		PrevMM1:    prevMM1f,
		PrevCenter: prevCenterf,
		RSI:        rsi,
		MADistance: indicators.MADistance(mm1, center),
	}, nil
}

// volumeSpikeRatio fetches (cached) 1m candles and compares the latest
// bar's volume against the trailing VolumeSMA over the configured
// lookback.
func (s *Scanner) volumeSpikeRatio(ctx context.Context, symbol string) (float64, error) {
	lookback := s.indicatorCfg.VolumeSpikeLookback
	limit := lookback + 1

	key := cache.MakeKey(cache.CategoryCandles, symbol, map[string]string{"tf": "1m"})
	raw, err := s.cache.GetOrFetch(cache.CategoryCandles, key, func() (interface{}, error) {
		return s.client.FetchCandles(ctx, symbol, "1m", limit)
	})
	if err != nil {
		return 0, err
	}
	klines := raw.([]exchange.Kline)
	if len(klines) < limit {
		return 0, errs.InsufficientData("scanner.volumeSpikeRatio", errInsufficientCandles(symbol, "1m", len(klines), limit))
	}

	volumes := make([]money.Decimal, len(klines)-1)
	for i, k := range klines[:len(klines)-1] {
		volumes[i] = k.Volume
	}
	avgVolume, err := indicators.VolumeSMA(volumes, lookback)
	if err != nil {
		return 0, err
	}
	currentVolume := klines[len(klines)-1].Volume
	return indicators.VolumeSpikeRatio(currentVolume, avgVolume), nil
}

func errInsufficientCandles(symbol, timeframe string, got, want int) error {
	return fmt.Errorf("%s %s: got %d candles, need %d", symbol, timeframe, got, want)
}
