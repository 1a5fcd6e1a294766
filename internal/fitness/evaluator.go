package fitness

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"arenaevo/internal/bot"
	"arenaevo/internal/game"
	"arenaevo/internal/match"
)

var ErrInvalidBatch = errors.New("batch size must be positive for single-path evaluation")

// Evaluator turns many simulated matches between two player specs into one
// Record. Players and boards are rebuilt from their specs for every match so
// nothing leaks between matches.
type Evaluator struct {
	Game       game.Factory
	Bots       bot.Factory
	BatchSize  int
	Exhaustive bool
	// Workers bounds parallel single-path matches. Values below 2 run the
	// batch sequentially.
	Workers int
}

// Evaluate runs the configured batch. Match i of a single-path batch uses
// seed+i for its players, so the record depends only on seed.
func (e *Evaluator) Evaluate(ctx context.Context, specs [2]bot.Spec, seed int64) (Record, error) {
	if e.Game == nil {
		return Record{}, fmt.Errorf("evaluate: game factory is required")
	}
	if e.Exhaustive {
		return e.exhaustive(ctx, specs, seed)
	}
	if e.BatchSize < 1 {
		return Record{}, fmt.Errorf("%w: %d", ErrInvalidBatch, e.BatchSize)
	}
	results, err := e.batch(ctx, specs, seed)
	if err != nil {
		return Record{}, err
	}
	var rec Record
	for _, r := range results {
		rec.Add(r)
	}
	return rec, nil
}

func (e *Evaluator) players(specs [2]bot.Spec, rng *rand.Rand) ([2]bot.Player, error) {
	var players [2]bot.Player
	for side, spec := range specs {
		p, err := e.Bots.Build(spec, side, rng)
		if err != nil {
			return players, err
		}
		players[side] = p
	}
	return players, nil
}

func (e *Evaluator) single(ctx context.Context, specs [2]bot.Spec, seed int64) (game.Result, error) {
	players, err := e.players(specs, rand.New(rand.NewSource(seed)))
	if err != nil {
		return game.Result{}, err
	}
	return match.Play(ctx, e.Game(), players)
}

func (e *Evaluator) exhaustive(ctx context.Context, specs [2]bot.Spec, seed int64) (Record, error) {
	players, err := e.players(specs, rand.New(rand.NewSource(seed)))
	if err != nil {
		return Record{}, err
	}
	rec := Record{Exhaustive: true}
	_, err = match.Explore(ctx, e.Game(), players, func(r game.Result) error {
		rec.Add(r)
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// batch returns results in match order regardless of which worker finished
// first.
func (e *Evaluator) batch(ctx context.Context, specs [2]bot.Spec, seed int64) ([]game.Result, error) {
	out := make([]game.Result, e.BatchSize)
	if e.Workers < 2 || e.BatchSize == 1 {
		for i := range out {
			r, err := e.single(ctx, specs, seed+int64(i))
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	}

	type result struct {
		idx int
		res game.Result
		err error
	}
	jobs := make(chan int)
	results := make(chan result, e.BatchSize)

	workerCount := e.Workers
	if workerCount > e.BatchSize {
		workerCount = e.BatchSize
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if err := ctx.Err(); err != nil {
					results <- result{idx: idx, err: err}
					continue
				}
				r, err := e.single(ctx, specs, seed+int64(idx))
				results <- result{idx: idx, res: r, err: err}
			}
		}()
	}

	for i := 0; i < e.BatchSize; i++ {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	close(results)

	for res := range results {
		if res.err != nil {
			return nil, res.err
		}
		out[res.idx] = res.res
	}
	return out, nil
}
