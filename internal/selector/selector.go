package selector

// selector.go - выбор торгуемых символов (Symbol Selector)
//
// Назначение:
// Периодически оценивает весь USDT-рынок и возвращает "торгуемую
// вселенную" — список символов, прошедших пороги по объёму, спреду,
// волатильности и ликвидности, отсортированный по составному score.
// Независим от сканера: сканер работает только над тем, что вернул
// последний Select.

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"spotscan/internal/config"
	"spotscan/internal/exchange"
	"spotscan/internal/money"
)

// Candidate is a symbol that passed every admission threshold, carrying
// the metrics that produced its score.
type Candidate struct {
	Symbol          string
	Volume24hUSDT   money.Decimal
	SpreadPercent   float64
	Volatility24h   float64
	LiquidityScore  float64
	Score           float64
	Reasons         []string
}

// Selector produces the tradable universe on a TTL-bounded cache,
// re-scoring only when the cache has expired or a caller forces it.
type Selector struct {
	client exchange.Client
	cfg    config.SelectorConfig
	minVol money.Decimal
	ttl    time.Duration
	log    *zap.SugaredLogger

	mu       sync.Mutex
	cached   []Candidate
	cachedAt time.Time

	cron *cron.Cron
}

// New builds a Selector. minVolume24h and ttl come from the trading and
// scanner config blocks respectively — the selector itself only owns
// the spread/volatility/liquidity thresholds.
func New(client exchange.Client, cfg config.SelectorConfig, minVolume24h money.Decimal, ttl time.Duration, log *zap.SugaredLogger) *Selector {
	return &Selector{
		client: client,
		cfg:    cfg,
		minVol: minVolume24h,
		ttl:    ttl,
		log:    log,
	}
}

// Start begins proactively refreshing the universe on s.ttl's cadence,
// so Select(force=false) callers rarely observe a stale read even under
// continuous load. Select remains safe to call without ever starting
// this — the lazy TTL check still applies either way.
func (s *Selector) Start(ctx context.Context) {
	s.cron = cron.New()
	schedule := fmt.Sprintf("@every %s", s.ttl)
	_, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.Select(ctx, true); err != nil {
			s.log.Errorw("scheduled symbol selection failed", "error", err)
		}
	})
	if err != nil {
		s.log.Errorw("failed to schedule symbol selection", "schedule", schedule, "error", err)
		return
	}
	s.cron.Start()
}

// Stop halts the scheduled refresh, if one was started.
func (s *Selector) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Select returns the current tradable universe, ordered by score
// descending (ties broken by liquidity then symbol). Re-scores against
// the exchange only when the cache is stale or forceRefresh is set.
func (s *Selector) Select(ctx context.Context, forceRefresh bool) ([]Candidate, error) {
	s.mu.Lock()
	if !forceRefresh && s.cached != nil && time.Since(s.cachedAt) < s.ttl {
		cached := s.cached
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	markets, err := s.client.FetchMarkets(ctx)
	if err != nil {
		return nil, err
	}

	candidates := s.evaluateAll(ctx, markets)
	sortCandidates(candidates)

	s.mu.Lock()
	s.cached = candidates
	s.cachedAt = time.Now()
	s.mu.Unlock()

	s.log.Infow("symbol selection complete", "evaluated", len(markets), "selected", len(candidates))
	return candidates, nil
}

// evaluateAll fetches a ticker per market concurrently and evaluates
// each against the admission thresholds. A failed ticker fetch drops
// that symbol rather than aborting the whole selection.
func (s *Selector) evaluateAll(ctx context.Context, markets []exchange.Market) []Candidate {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []Candidate
	)

	for _, m := range markets {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()

			ticker, err := s.client.FetchTicker(ctx, symbol)
			if err != nil {
				s.log.Debugw("ticker fetch failed, skipping symbol", "symbol", symbol, "error", err)
				return
			}

			cand, ok := s.evaluate(symbol, ticker)
			if !ok {
				return
			}

			mu.Lock()
			results = append(results, cand)
			mu.Unlock()
		}(m.Symbol)
	}
	wg.Wait()

	return results
}

// evaluate scores a single symbol against the admission thresholds.
// Returns ok=false if any threshold rejects the symbol.
func (s *Selector) evaluate(symbol string, t exchange.Ticker) (Candidate, bool) {
	last, _ := t.LastPrice.Float64()
	if last <= 0 {
		return Candidate{}, false
	}
	bid, _ := t.BidPrice.Float64()
	ask, _ := t.AskPrice.Float64()
	volume, _ := t.Volume24h.Float64()

	spreadPercent := 0.1
	if bid > 0 && ask > 0 {
		spreadPercent = (ask - bid) / last * 100
	}
	high, _ := t.High24h.Float64()
	low, _ := t.Low24h.Float64()
	volatility24h := 1.0
	if high > 0 && low > 0 {
		volatility24h = (high - low) / last * 100
	}

	liquidityScore := liquidityScore(volume, spreadPercent)

	var reasons []string

	minVol, _ := s.minVol.Float64()
	if volume < minVol {
		return Candidate{}, false
	}
	reasons = append(reasons, "volume")
	volumeMultiplier := volume / minVol
	if volumeMultiplier > 100 {
		volumeMultiplier = 100
	}
	volumeTier := 0.3 + 0.7*(volumeMultiplier/100)
	if volumeTier > 1.0 {
		volumeTier = 1.0
	}

	if spreadPercent > s.cfg.MaxSpreadPercent {
		return Candidate{}, false
	}
	reasons = append(reasons, "spread")
	spreadFit := 1 - spreadPercent/s.cfg.MaxSpreadPercent

	if volatility24h < s.cfg.MinVolatility24h || volatility24h > s.cfg.MaxVolatility24h {
		return Candidate{}, false
	}
	reasons = append(reasons, "volatility")
	volFit := volatilityFit(volatility24h, s.cfg.VolatilityOptimalMin, s.cfg.VolatilityOptimalMax)

	if liquidityScore < s.cfg.MinLiquidityScore {
		return Candidate{}, false
	}
	reasons = append(reasons, "liquidity")

	// Composite score is a fixed-weight dot product: 30% volume tier,
	// 25% spread fit, 25% volatility fit, 20% liquidity.
	score := floats.Dot(
		[]float64{volumeTier, spreadFit, volFit, liquidityScore},
		[]float64{0.30, 0.25, 0.25, 0.20},
	)

	return Candidate{
		Symbol:         symbol,
		Volume24hUSDT:  t.Volume24h,
		SpreadPercent:  spreadPercent,
		Volatility24h:  volatility24h,
		LiquidityScore: liquidityScore,
		Score:          score,
		Reasons:        reasons,
	}, true
}

// liquidityScore blends volume and spread into a single 0-1 score:
// 0.7 weight on volume tiering up to $10M, 0.3 weight on tight spread.
func liquidityScore(volume, spreadPercent float64) float64 {
	volumeScore := volume / 10_000_000
	if volumeScore > 1.0 {
		volumeScore = 1.0
	}
	spreadScore := 1 - spreadPercent
	if spreadScore < 0 {
		spreadScore = 0
	}
	return volumeScore*0.7 + spreadScore*0.3
}

// volatilityFit peaks at 1.0 within [optimalMin, optimalMax] and decays
// linearly outside it.
func volatilityFit(volatility, optimalMin, optimalMax float64) float64 {
	if volatility >= optimalMin && volatility <= optimalMax {
		return 1.0
	}
	if volatility < optimalMin {
		return volatility / optimalMin
	}
	return optimalMax / volatility
}

// sortCandidates orders by score descending, then liquidity descending,
// then symbol ascending — a deterministic tie-break chain.
func sortCandidates(cs []Candidate) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Score != cs[j].Score {
			return cs[i].Score > cs[j].Score
		}
		if cs[i].LiquidityScore != cs[j].LiquidityScore {
			return cs[i].LiquidityScore > cs[j].LiquidityScore
		}
		return cs[i].Symbol < cs[j].Symbol
	})
}
