package search

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"

	"github.com/quickkart/smartsearch/internal/config"
)

// RetrievalOutcome is what escalation produced for one request.
type RetrievalOutcome struct {
	// ByStrategy keeps each strategy's candidates separate; fusion needs
	// one score per contributing strategy per product.
	ByStrategy map[StrategyName][]*Candidate

	// Unique is the distinct product count across all strategies.
	Unique int

	// StrategyUsed is the highest-priority strategy that contributed,
	// or StrategyNone when everything came back empty.
	StrategyUsed StrategyName

	// Failed lists strategies that errored or timed out.
	Failed []StrategyName

	// EmergencyUsed marks that the last-resort scan had to run.
	EmergencyUsed bool
}

// Degraded reports whether the request ran below full quality.
func (o *RetrievalOutcome) Degraded() bool {
	return len(o.Failed) > 0 || o.EmergencyUsed
}

// Orchestrator runs strategies in fixed priority order with escalating
// fallback. Lexical and semantic are issued concurrently; structured and
// emergency only fire on under-yield. A failing or timed-out strategy is
// logged and skipped, never aborts the request.
type Orchestrator struct {
	lexical    Strategy
	semantic   Strategy
	structured Strategy
	emergency  Strategy

	cfg      config.RetrievalConfig
	breakers map[StrategyName]*gobreaker.CircuitBreaker[[]*Candidate]
	logger   *slog.Logger
}

// NewOrchestrator wires the four strategies. Lexical and semantic calls
// go through circuit breakers so a collaborator that keeps failing is
// skipped immediately instead of burning its timeout on every request.
func NewOrchestrator(lexical, semantic, structured, emergency Strategy, cfg config.RetrievalConfig, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	breakers := make(map[StrategyName]*gobreaker.CircuitBreaker[[]*Candidate])
	for _, name := range []StrategyName{StrategyLexical, StrategySemantic} {
		breakers[name] = gobreaker.NewCircuitBreaker[[]*Candidate](gobreaker.Settings{
			Name:    string(name),
			Timeout: 5 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < 5 {
					return false
				}
				return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("strategy_breaker_state_change",
					slog.String("strategy", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()))
			},
		})
	}

	return &Orchestrator{
		lexical:    lexical,
		semantic:   semantic,
		structured: structured,
		emergency:  emergency,
		cfg:        cfg,
		breakers:   breakers,
		logger:     logger,
	}
}

// Retrieve runs the escalation state machine and returns everything the
// strategies yielded, grouped by strategy. It never returns an error: an
// all-failure request degrades to an empty outcome.
func (o *Orchestrator) Retrieve(ctx context.Context, req *Request) *RetrievalOutcome {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.RequestBudget)
	defer cancel()

	outcome := &RetrievalOutcome{
		ByStrategy:   make(map[StrategyName][]*Candidate),
		StrategyUsed: StrategyNone,
	}
	seen := make(map[string]struct{})

	// Tier 1+2: lexical and semantic concurrently. Escalation semantics
	// are applied to results in priority order once both arrive.
	var lexicalHits, semanticHits []*Candidate
	var lexicalErr, semanticErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lexicalHits, lexicalErr = o.runStrategy(gctx, o.lexical, req)
		return nil
	})
	g.Go(func() error {
		semanticHits, semanticErr = o.runStrategy(gctx, o.semantic, req)
		return nil
	})
	_ = g.Wait()

	o.accumulate(outcome, seen, StrategyLexical, lexicalHits, lexicalErr)
	o.accumulate(outcome, seen, StrategySemantic, semanticHits, semanticErr)

	// Tier 3: structured scan tops up toward targetCount.
	if outcome.Unique < o.cfg.TargetCount {
		hits, err := o.runStrategy(ctx, o.structured, req)
		o.accumulate(outcome, seen, StrategyStructured, hits, err)
	}

	// Tier 4: emergency scan only on real under-yield.
	if outcome.Unique < o.cfg.MinAcceptable {
		hits, err := o.runStrategy(ctx, o.emergency, req)
		o.accumulate(outcome, seen, StrategyEmergency, hits, err)
		if len(hits) > 0 {
			outcome.EmergencyUsed = true
		}
	}

	return outcome
}

// runStrategy applies the per-strategy timeout and circuit breaker and
// normalizes failures to the sentinel taxonomy.
func (o *Orchestrator) runStrategy(ctx context.Context, s Strategy, req *Request) ([]*Candidate, error) {
	if err := ctx.Err(); err != nil {
		// Request budget already exhausted; treat as a timeout.
		return nil, ErrStrategyTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.StrategyTimeout)
	defer cancel()

	call := func() ([]*Candidate, error) {
		hits, err := s.Retrieve(ctx, req, o.cfg.TargetCount)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, ErrStrategyTimeout
			}
			return nil, err
		}
		return hits, nil
	}

	breaker, ok := o.breakers[s.Name()]
	if !ok {
		return call()
	}

	hits, err := breaker.Execute(call)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrStrategyUnavailable
	}
	return hits, err
}

// accumulate folds one strategy's result into the outcome, counting only
// IDs not yet seen from a higher-priority strategy toward Unique.
func (o *Orchestrator) accumulate(outcome *RetrievalOutcome, seen map[string]struct{}, name StrategyName, hits []*Candidate, err error) {
	if err != nil {
		o.logger.Warn("strategy_failed",
			slog.String("strategy", string(name)),
			slog.String("error", err.Error()))
		outcome.Failed = append(outcome.Failed, name)
		return
	}
	if len(hits) == 0 {
		return
	}

	outcome.ByStrategy[name] = hits
	if outcome.StrategyUsed == StrategyNone {
		outcome.StrategyUsed = name
	}
	for _, c := range hits {
		if _, dup := seen[c.ID]; !dup {
			seen[c.ID] = struct{}{}
			outcome.Unique++
		}
	}
}
