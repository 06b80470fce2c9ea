package search

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickkart/smartsearch/internal/config"
)

// stubStrategy is a scriptable strategy for orchestration tests.
type stubStrategy struct {
	name  StrategyName
	hits  []*Candidate
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (s *stubStrategy) Name() StrategyName { return s.name }

func (s *stubStrategy) Retrieve(ctx context.Context, req *Request, limit int) ([]*Candidate, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.hits, nil
}

func candidates(name StrategyName, ids ...string) []*Candidate {
	out := make([]*Candidate, len(ids))
	for i, id := range ids {
		out[i] = &Candidate{ID: id, Strategy: name, Score: 1.0 / float64(1+i)}
	}
	return out
}

func testRetrievalConfig() config.RetrievalConfig {
	return config.RetrievalConfig{
		TargetCount:     4,
		MinAcceptable:   2,
		StrategyTimeout: 100 * time.Millisecond,
		RequestBudget:   500 * time.Millisecond,
	}
}

func newTestOrchestrator(lex, sem, str, eme Strategy, cfg config.RetrievalConfig) *Orchestrator {
	return NewOrchestrator(lex, sem, str, eme, cfg, nil)
}

func TestOrchestrator_SatisfiedByPrimaryTiers(t *testing.T) {
	lex := &stubStrategy{name: StrategyLexical, hits: candidates(StrategyLexical, "a", "b", "c")}
	sem := &stubStrategy{name: StrategySemantic, hits: candidates(StrategySemantic, "c", "d")}
	str := &stubStrategy{name: StrategyStructured}
	eme := &stubStrategy{name: StrategyEmergency}

	o := newTestOrchestrator(lex, sem, str, eme, testRetrievalConfig())
	outcome := o.Retrieve(context.Background(), &Request{})

	// a,b,c,d = 4 unique; targetCount reached, fallbacks never fire.
	assert.Equal(t, 4, outcome.Unique)
	assert.Equal(t, StrategyLexical, outcome.StrategyUsed)
	assert.Zero(t, str.calls.Load())
	assert.Zero(t, eme.calls.Load())
	assert.False(t, outcome.Degraded())
}

func TestOrchestrator_StructuredTopsUp(t *testing.T) {
	lex := &stubStrategy{name: StrategyLexical, hits: candidates(StrategyLexical, "a", "b")}
	sem := &stubStrategy{name: StrategySemantic, hits: candidates(StrategySemantic, "b")}
	str := &stubStrategy{name: StrategyStructured, hits: candidates(StrategyStructured, "e", "f")}
	eme := &stubStrategy{name: StrategyEmergency}

	o := newTestOrchestrator(lex, sem, str, eme, testRetrievalConfig())
	outcome := o.Retrieve(context.Background(), &Request{})

	// 2 unique from the primary tiers is acceptable but under target,
	// so structured tops up; emergency stays idle.
	assert.Equal(t, 4, outcome.Unique)
	assert.Equal(t, int32(1), str.calls.Load())
	assert.Zero(t, eme.calls.Load())
	assert.Equal(t, StrategyLexical, outcome.StrategyUsed)
	assert.False(t, outcome.EmergencyUsed)
}

func TestOrchestrator_FallbackCompleteness(t *testing.T) {
	// Lexical fails outright; the caller must still get results and no error.
	lex := &stubStrategy{name: StrategyLexical, err: fmt.Errorf("index unavailable")}
	sem := &stubStrategy{name: StrategySemantic, hits: candidates(StrategySemantic, "a", "b", "c", "d")}
	str := &stubStrategy{name: StrategyStructured}
	eme := &stubStrategy{name: StrategyEmergency}

	o := newTestOrchestrator(lex, sem, str, eme, testRetrievalConfig())
	outcome := o.Retrieve(context.Background(), &Request{})

	assert.Equal(t, 4, outcome.Unique)
	assert.Equal(t, StrategySemantic, outcome.StrategyUsed)
	assert.Contains(t, outcome.Failed, StrategyLexical)
	assert.True(t, outcome.Degraded())
}

func TestOrchestrator_TimeoutFallsThrough(t *testing.T) {
	cfg := testRetrievalConfig()
	cfg.StrategyTimeout = 10 * time.Millisecond

	lex := &stubStrategy{name: StrategyLexical, delay: 200 * time.Millisecond, hits: candidates(StrategyLexical, "late")}
	sem := &stubStrategy{name: StrategySemantic, hits: candidates(StrategySemantic, "a", "b", "c", "d")}
	str := &stubStrategy{name: StrategyStructured}
	eme := &stubStrategy{name: StrategyEmergency}

	o := newTestOrchestrator(lex, sem, str, eme, cfg)
	outcome := o.Retrieve(context.Background(), &Request{})

	assert.Contains(t, outcome.Failed, StrategyLexical)
	assert.NotContains(t, outcome.ByStrategy, StrategyLexical)
	assert.Equal(t, StrategySemantic, outcome.StrategyUsed)
	assert.Equal(t, 4, outcome.Unique)
}

func TestOrchestrator_EmergencyLastResort(t *testing.T) {
	lex := &stubStrategy{name: StrategyLexical}
	sem := &stubStrategy{name: StrategySemantic}
	str := &stubStrategy{name: StrategyStructured, hits: candidates(StrategyStructured, "s1")}
	eme := &stubStrategy{name: StrategyEmergency, hits: candidates(StrategyEmergency, "e1", "e2")}

	o := newTestOrchestrator(lex, sem, str, eme, testRetrievalConfig())
	outcome := o.Retrieve(context.Background(), &Request{})

	// One structured hit is below minAcceptable, so emergency fires.
	assert.Equal(t, int32(1), eme.calls.Load())
	assert.True(t, outcome.EmergencyUsed)
	assert.True(t, outcome.Degraded())
	assert.Equal(t, StrategyStructured, outcome.StrategyUsed)
	assert.Equal(t, 3, outcome.Unique)
}

func TestOrchestrator_AllEmpty(t *testing.T) {
	lex := &stubStrategy{name: StrategyLexical}
	sem := &stubStrategy{name: StrategySemantic}
	str := &stubStrategy{name: StrategyStructured}
	eme := &stubStrategy{name: StrategyEmergency}

	o := newTestOrchestrator(lex, sem, str, eme, testRetrievalConfig())
	outcome := o.Retrieve(context.Background(), &Request{})

	assert.Zero(t, outcome.Unique)
	assert.Equal(t, StrategyNone, outcome.StrategyUsed)
	assert.Empty(t, outcome.ByStrategy)
}

func TestOrchestrator_AllFail(t *testing.T) {
	failing := errors.New("down")
	lex := &stubStrategy{name: StrategyLexical, err: failing}
	sem := &stubStrategy{name: StrategySemantic, err: failing}
	str := &stubStrategy{name: StrategyStructured, err: failing}
	eme := &stubStrategy{name: StrategyEmergency, err: failing}

	o := newTestOrchestrator(lex, sem, str, eme, testRetrievalConfig())
	outcome := o.Retrieve(context.Background(), &Request{})

	assert.Zero(t, outcome.Unique)
	assert.Equal(t, StrategyNone, outcome.StrategyUsed)
	require.Len(t, outcome.Failed, 4)
	assert.True(t, outcome.Degraded())
}

func TestOrchestrator_DuplicateIDsCountOnce(t *testing.T) {
	lex := &stubStrategy{name: StrategyLexical, hits: candidates(StrategyLexical, "a", "b")}
	sem := &stubStrategy{name: StrategySemantic, hits: candidates(StrategySemantic, "a", "b")}
	str := &stubStrategy{name: StrategyStructured, hits: candidates(StrategyStructured, "a", "c")}
	eme := &stubStrategy{name: StrategyEmergency}

	o := newTestOrchestrator(lex, sem, str, eme, testRetrievalConfig())
	outcome := o.Retrieve(context.Background(), &Request{})

	assert.Equal(t, 3, outcome.Unique)
	// Both primary strategies keep their own candidate lists for fusion.
	assert.Len(t, outcome.ByStrategy[StrategyLexical], 2)
	assert.Len(t, outcome.ByStrategy[StrategySemantic], 2)
}
