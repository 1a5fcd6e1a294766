package evo

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/sourcegraph/conc/pool"

	"arenaevo/internal/bot"
	"arenaevo/internal/fitness"
)

// Candidate is one recipe queued for evaluation.
type Candidate struct {
	Index  int
	Recipe string
	Parent string
	Seed   int64
}

// Scored is an evaluated candidate.
type Scored struct {
	Recipe     string         `json:"recipe"`
	Score      float64        `json:"score"`
	Generation int            `json:"generation"`
	Record     fitness.Record `json:"record"`
	index      int
}

type outcome struct {
	index  int
	scored Scored
	err    error
	panic  any
}

// evaluateOne turns a panic inside the scorer into a dropped candidate
// instead of taking the run down.
func evaluateOne(ctx context.Context, scorer Scorer, specs [2]bot.Spec, side int, c Candidate) (out outcome) {
	out.index = c.Index
	defer func() {
		if r := recover(); r != nil {
			out.panic = fmt.Sprintf("%v\n%s", r, debug.Stack())
		}
	}()
	rec, err := scorer.Evaluate(ctx, specs, c.Seed)
	if err != nil {
		out.err = err
		return out
	}
	out.scored = Scored{Recipe: c.Recipe, Score: rec.Mean(side), Record: rec, index: c.Index}
	return out
}

// dispatch evaluates every candidate on a bounded pool and returns the
// outcomes indexed by candidate, whatever order they completed in.
func dispatch(ctx context.Context, scorer Scorer, bots [2]bot.Spec, side, workers int, candidates []Candidate) []outcome {
	results := make(chan outcome, len(candidates))
	p := pool.New().WithMaxGoroutines(workers)
	for _, c := range candidates {
		c := c
		p.Go(func() {
			results <- evaluateOne(ctx, scorer, pairing(bots, side, c.Recipe), side, c)
		})
	}
	p.Wait()
	close(results)

	outcomes := make([]outcome, len(candidates))
	for out := range results {
		outcomes[out.index] = out
	}
	return outcomes
}
