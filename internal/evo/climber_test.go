package evo

import (
	"context"
	"errors"
	"sync"
	"testing"

	"arenaevo/internal/bot"
	"arenaevo/internal/fitness"
)

// countingScorer scores call k with k.
type countingScorer struct {
	mu    sync.Mutex
	calls int
}

func (c *countingScorer) Evaluate(context.Context, [2]bot.Spec, int64) (fitness.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return fitness.Record{Matches: 1, Totals: [2]float64{float64(c.calls), 0}}, nil
}

func scored(recipe string, generation int, score float64) *Sample {
	return &Sample{Recipe: recipe, Generation: generation, Score: score, Scored: true}
}

func TestStackNextKeepsImprovementsAndDropsExhaustedSamples(t *testing.T) {
	s := NewStack(Sample{Recipe: "seed"}, 2, nil)

	next, improved := s.Next(nil)
	if next == nil || next.Recipe != "seed" || improved || s.Len() != 1 {
		t.Fatalf("first next=%+v improved=%v len=%d", next, improved, s.Len())
	}

	next, improved = s.Next(scored("a", 1, 5))
	if !improved || next.Recipe != "a" || next.Children != 1 || s.Len() != 2 {
		t.Fatalf("improvement not kept: next=%+v improved=%v len=%d", next, improved, s.Len())
	}
	if best, ok := s.Best(); !ok || best.Recipe != "a" || best.Score != 5 {
		t.Fatalf("best=%+v ok=%v", best, ok)
	}

	next, improved = s.Next(scored("b", 2, 3))
	if improved || next.Recipe != "a" || next.Children != 2 || s.Len() != 2 {
		t.Fatalf("worse sample replaced top: next=%+v improved=%v len=%d", next, improved, s.Len())
	}

	next, _ = s.Next(nil)
	if next.Recipe != "a" || s.Len() != 1 {
		t.Fatalf("exhausted sample not dropped: next=%+v len=%d", next, s.Len())
	}

	// b descends from a, which is gone; the seed is too far up the line.
	next, improved = s.Next(scored("b", 3, 50))
	if improved || next.Recipe != "seed" || s.Len() != 1 {
		t.Fatalf("out of line sample kept: next=%+v improved=%v len=%d", next, improved, s.Len())
	}
	next, _ = s.Next(nil)
	if next.Recipe != "seed" || s.Len() != 0 {
		t.Fatalf("seed not dropped: next=%+v len=%d", next, s.Len())
	}
	if next, _ = s.Next(scored("c", 1, 99)); next != nil {
		t.Fatalf("empty stack returned %+v", next)
	}
}

func TestDeriveAveragesWithScoredParent(t *testing.T) {
	first := derive(Sample{Recipe: "seed"}, "a", 4)
	if first.Score != 4 || first.Generation != 1 || !first.Scored {
		t.Fatalf("unexpected first child %+v", first)
	}
	second := derive(first, "b", 8)
	if second.Score != 6 || second.Generation != 2 {
		t.Fatalf("unexpected second child %+v", second)
	}
}

func climbConfig(t *testing.T, scorer Scorer, workers int) Config {
	t.Helper()
	cfg := baseConfig(t, scorer)
	cfg.Workers = workers
	return cfg
}

func TestClimberPersistsEveryNewHighScore(t *testing.T) {
	sink := &memorySink{}
	cfg := climbConfig(t, &countingScorer{}, 1)
	cfg.Sink = sink
	c, err := NewClimber(cfg, ClimbLimits{MaxEvaluations: 5})
	if err != nil {
		t.Fatalf("new climber: %v", err)
	}
	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("climb: %v", err)
	}
	if res.Evaluations != 5 || !res.Found {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Best.Generation != 5 || res.Best.Score != 4.0625 {
		t.Fatalf("best=%+v want generation 5 score 4.0625", res.Best)
	}
	if len(sink.entries) != 5 || len(res.Reports) != 5 {
		t.Fatalf("persisted %d entries and %d reports, want 5", len(sink.entries), len(res.Reports))
	}
	for i := 1; i < len(sink.entries); i++ {
		if sink.entries[i].Score <= sink.entries[i-1].Score {
			t.Fatalf("high scores not increasing: %+v", sink.entries)
		}
	}
}

func TestClimberEndsWhenStackEmpties(t *testing.T) {
	sink := &memorySink{}
	cfg := climbConfig(t, constScorer(-5), 1)
	cfg.Sink = sink
	c, err := NewClimber(cfg, ClimbLimits{ChildLimit: 2})
	if err != nil {
		t.Fatalf("new climber: %v", err)
	}
	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("climb: %v", err)
	}
	if res.Evaluations != 9 {
		t.Fatalf("evaluations=%d want 9", res.Evaluations)
	}
	if len(sink.entries) != 1 || res.Best.Score != -5 || res.Best.Generation != 1 {
		t.Fatalf("unexpected best %+v with %d entries", res.Best, len(sink.entries))
	}
}

func TestClimberCapsEvaluationsAcrossWorkers(t *testing.T) {
	c, err := NewClimber(climbConfig(t, constScorer(1), 3), ClimbLimits{MaxEvaluations: 4})
	if err != nil {
		t.Fatalf("new climber: %v", err)
	}
	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("climb: %v", err)
	}
	if res.Evaluations != 4 {
		t.Fatalf("evaluations=%d want 4", res.Evaluations)
	}
}

func TestClimberSurvivesPanickingEvaluation(t *testing.T) {
	c, err := NewClimber(climbConfig(t, &panicScorer{on: 1}, 1), ClimbLimits{MaxEvaluations: 3})
	if err != nil {
		t.Fatalf("new climber: %v", err)
	}
	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("climb: %v", err)
	}
	if res.Dropped != 1 || res.Evaluations != 2 || !res.Found {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestClimberStopsOnCancelledContext(t *testing.T) {
	c, err := NewClimber(climbConfig(t, constScorer(1), 2), ClimbLimits{})
	if err != nil {
		t.Fatalf("new climber: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := c.Run(ctx)
	if !errors.Is(err, context.Canceled) || res.Evaluations != 0 {
		t.Fatalf("evaluations=%d err=%v", res.Evaluations, err)
	}
}
