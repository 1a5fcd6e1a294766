package evo

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/stat"

	"arenaevo/internal/bot"
	"arenaevo/internal/genome"
	"arenaevo/internal/model"
)

// RunResult is the outcome of a finished evolution.
type RunResult struct {
	Side        int
	Opponent    bot.Spec
	Reports     []model.GenerationReport
	Survivors   []Scored
	Threshold   float64
	Evaluations int
}

// Loop evolves the genome backed side of a pairing against a fixed opponent,
// one generation at a time.
type Loop struct {
	cfg       Config
	rng       *rand.Rand
	side      int
	kind      genome.Kind
	bots      [2]bot.Spec
	seed      string
	survivors []Scored
	thresh    float64
}

func NewLoop(cfg Config) (*Loop, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log := cfg.logger()
	side, err := GeneticSide(cfg.Bots, log)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	bots := cfg.Bots
	opponent, err := bot.Freeze(bots[1-side], cfg.Info, rng)
	if err != nil {
		return nil, fmt.Errorf("freeze opponent: %w", err)
	}
	bots[1-side] = opponent

	l := &Loop{
		cfg:    cfg,
		rng:    rng,
		side:   side,
		kind:   genomeKind(bots[side]),
		bots:   bots,
		thresh: InitialThreshold,
	}
	if l.seed, err = loadSeed(l.kind, bots[side].Recipe, cfg.shape(), log); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Loop) Side() int { return l.side }

func (l *Loop) Run(ctx context.Context) (RunResult, error) {
	log := l.cfg.logger()
	result := RunResult{Side: l.side, Opponent: l.bots[1-l.side], Threshold: l.thresh}
	finish := func(err error) (RunResult, error) {
		result.Survivors = append([]Scored(nil), l.survivors...)
		result.Threshold = l.thresh
		return result, err
	}

	for gen := 0; gen < l.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		candidates, err := l.candidates()
		if err != nil {
			return finish(err)
		}
		log.Infow("generation",
			"generation", gen,
			"candidates", humanize.Comma(int64(len(candidates))),
			"survivors", len(l.survivors),
			"threshold", l.thresh,
		)

		outcomes := dispatch(ctx, l.cfg.Scorer, l.bots, l.side, l.cfg.workers(), candidates)
		report, err := l.advance(ctx, gen, outcomes)
		if err != nil {
			return finish(err)
		}
		result.Evaluations += report.Evaluated
		result.Reports = append(result.Reports, report)
		l.cfg.notify(report)
	}
	return finish(nil)
}

// candidates builds the pool for the next generation. All randomness is drawn
// here, on the coordinating goroutine, so a seed fixes the whole run.
func (l *Loop) candidates() ([]Candidate, error) {
	log := l.cfg.logger()
	var out []Candidate
	add := func(recipe, parent string) {
		out = append(out, Candidate{Index: len(out), Recipe: recipe, Parent: parent, Seed: l.rng.Int63()})
	}

	if len(l.survivors) == 0 {
		for i := 0; i < l.cfg.Samples; i++ {
			if l.seed != "" {
				if i == 0 {
					add(l.seed, "")
					continue
				}
				child, changed, err := mutateRecipe(l.kind, l.seed, l.rng, log)
				if err != nil {
					return nil, err
				}
				if !changed {
					log.Warnw("sample did not mutate", "sample", i)
				}
				add(child, l.seed)
				continue
			}
			recipe, err := freshRecipe(l.kind, l.cfg.shape(), l.rng)
			if err != nil {
				return nil, err
			}
			add(recipe, "")
		}
	} else {
		for i, parent := range l.survivors {
			for j := 0; j < l.cfg.Samples; j++ {
				child, changed, err := mutateRecipe(l.kind, parent.Recipe, l.rng, log)
				if err != nil {
					return nil, err
				}
				if !changed {
					log.Warnw("sample did not mutate", "survivor", i, "sample", j)
				}
				add(child, parent.Recipe)
			}
		}
	}

	for i := 0; i < l.cfg.Wild; i++ {
		recipe, err := freshRecipe(l.kind, l.cfg.shape(), l.rng)
		if err != nil {
			return nil, err
		}
		add(recipe, "")
	}
	return out, nil
}

// advance folds one generation's outcomes into the survivor set and the
// threshold.
func (l *Loop) advance(ctx context.Context, gen int, outcomes []outcome) (model.GenerationReport, error) {
	log := l.cfg.logger()
	report := model.GenerationReport{
		RunID:      l.cfg.RunID,
		Generation: gen,
		Candidates: len(outcomes),
		Threshold:  l.thresh,
	}

	var (
		scores []float64
		passed []Scored
	)
	for _, out := range outcomes {
		switch {
		case out.panic != nil:
			report.Dropped++
			log.Errorw("candidate evaluation panicked", "generation", gen, "sample", out.index, "panic", out.panic)
			continue
		case out.err != nil:
			return report, fmt.Errorf("generation %d sample %d: %w", gen, out.index, out.err)
		}
		scored := out.scored
		scored.Generation = gen
		scores = append(scores, scored.Score)
		ok := scored.Score > l.thresh
		log.Debugw("completed candidate", "sample", out.index, "score", scored.Score, "passed", ok)
		if ok {
			passed = append(passed, scored)
		}
	}
	report.Evaluated = len(scores)
	report.Passed = len(passed)
	if len(scores) > 0 {
		report.BestScore = scores[0]
		for _, s := range scores[1:] {
			if s > report.BestScore {
				report.BestScore = s
			}
		}
		report.MeanScore = stat.Mean(scores, nil)
		if len(scores) > 1 {
			report.StdDevScore = stat.StdDev(scores, nil)
		}
	}

	if len(passed) == 0 {
		log.Infow("no improvement", "generation", gen, "threshold", l.thresh)
		report.Survivors = len(l.survivors)
		return report, nil
	}

	pool := backfill(passed, l.survivors, l.cfg.Keep)
	rank(pool)
	if len(pool) > l.cfg.Keep {
		pool = pool[:l.cfg.Keep]
	}

	prior := l.thresh
	best := pool[0].Score
	l.thresh = prior + 0.2*(best-prior)
	l.survivors = pool

	if l.cfg.Sink != nil {
		for _, s := range pool {
			if s.Generation != gen || s.Score <= prior {
				continue
			}
			if err := l.cfg.Sink.Persist(ctx, Entry{
				RunID:      l.cfg.RunID,
				Game:       l.cfg.Info.Name,
				Kind:       string(l.bots[l.side].Kind),
				Recipe:     s.Recipe,
				Score:      s.Score,
				Generation: gen,
			}); err != nil {
				return report, fmt.Errorf("persist generation %d: %w", gen, err)
			}
		}
	}

	report.Improved = true
	report.Survivors = len(pool)
	report.Threshold = l.thresh
	log.Infow("generation improved",
		"generation", gen,
		"best", best,
		"passed", report.Passed,
		"threshold", l.thresh,
	)
	return report, nil
}

// backfill tops passed up to keep entries with the best prior survivors whose
// recipe is not already present.
func backfill(passed, prior []Scored, keep int) []Scored {
	pool := append([]Scored(nil), passed...)
	if len(pool) >= keep {
		return pool
	}
	seen := make(map[string]struct{}, len(pool))
	for _, s := range pool {
		seen[s.Recipe] = struct{}{}
	}
	for _, s := range prior {
		if len(pool) >= keep {
			break
		}
		if _, dup := seen[s.Recipe]; dup {
			continue
		}
		seen[s.Recipe] = struct{}{}
		pool = append(pool, s)
	}
	return pool
}

// rank orders by descending score. Equal scores fall back to the newer
// generation, then candidate order, then recipe, so the result never depends
// on completion order.
func rank(pool []Scored) {
	sort.SliceStable(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Generation != b.Generation {
			return a.Generation > b.Generation
		}
		if a.index != b.index {
			return a.index < b.index
		}
		return a.Recipe < b.Recipe
	})
}
