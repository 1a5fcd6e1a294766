package evo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/dustin/go-humanize"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"arenaevo/internal/bot"
	"arenaevo/internal/genome"
	"arenaevo/internal/model"
)

const DefaultChildLimit = 10

// Sample is one node of the climb stack.
type Sample struct {
	Recipe     string  `json:"recipe"`
	Generation int     `json:"generation"`
	Children   int     `json:"children"`
	Score      float64 `json:"score"`
	Scored     bool    `json:"scored"`
}

// derive builds the sample for a child of parent. The child's score is
// averaged with its parent's to damp lucky batches.
func derive(parent Sample, recipe string, score float64) Sample {
	child := Sample{Recipe: recipe, Generation: parent.Generation + 1, Score: score, Scored: true}
	if parent.Scored {
		child.Score = (score + parent.Score) / 2
	}
	return child
}

// Stack is the depth-first improvement stack. It is owned by one goroutine.
type Stack struct {
	samples    []*Sample
	childLimit int
	best       *Sample
	log        *zap.SugaredLogger
}

func NewStack(seed Sample, childLimit int, log *zap.SugaredLogger) *Stack {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := seed
	return &Stack{samples: []*Sample{&s}, childLimit: childLimit, log: log}
}

func (s *Stack) Len() int { return len(s.samples) }

// Best returns the highest scoring sample seen so far.
func (s *Stack) Best() (Sample, bool) {
	if s.best == nil {
		return Sample{}, false
	}
	return *s.best, true
}

func (s *Stack) push(sample *Sample) { s.samples = append(s.samples, sample) }

func (s *Stack) pop() *Sample {
	if len(s.samples) == 0 {
		return nil
	}
	top := s.samples[len(s.samples)-1]
	s.samples = s.samples[:len(s.samples)-1]
	return top
}

// Next folds the last evaluated sample into the stack and returns the sample
// to derive the next child from, or nil once the stack is empty. last
// replaces the top when it descends from it and scores higher. A sample that
// has produced more than the child limit is handed out one final time and
// dropped. improved reports a new overall high score.
func (s *Stack) Next(last *Sample) (next *Sample, improved bool) {
	sample := s.pop()
	if sample == nil {
		return nil, false
	}
	if last != nil && last.Scored && last.Generation <= sample.Generation+1 &&
		(!sample.Scored || last.Score > sample.Score) {
		if s.best == nil || last.Score > s.best.Score {
			best := *last
			s.best = &best
			improved = true
		}
		s.push(sample)
		kept := *last
		kept.Children = 0
		sample = &kept
	}

	sample.Children++
	if sample.Children > s.childLimit {
		s.log.Infow("dropping generation", "generation", sample.Generation)
		return sample, improved
	}
	s.push(sample)
	clone := *sample
	return &clone, improved
}

// ClimbLimits bounds a climb. Zero values select the defaults.
type ClimbLimits struct {
	ChildLimit     int
	MaxEvaluations int
}

type ClimbResult struct {
	Best        Sample
	Found       bool
	Evaluations int
	Dropped     int
	Reports     []model.GenerationReport
}

// Climber runs a biased depth-first search: it keeps mutating the most recent
// improvement until that line stops paying off, then backtracks. It shares
// Config with Loop; the generation, sample and keep counts are ignored.
type Climber struct {
	cfg    Config
	limits ClimbLimits
	rng    *rand.Rand
	side   int
	kind   genome.Kind
	bots   [2]bot.Spec
}

func NewClimber(cfg Config, limits ClimbLimits) (*Climber, error) {
	if cfg.Scorer == nil {
		return nil, fmt.Errorf("%w: scorer is required", ErrInvalidConfig)
	}
	if cfg.Info.InputCount < 1 || cfg.Info.OutputCount < 1 {
		return nil, fmt.Errorf("%w: game info is required", ErrInvalidConfig)
	}
	if limits.ChildLimit < 0 || limits.MaxEvaluations < 0 || cfg.Workers < 0 {
		return nil, fmt.Errorf("%w: climb limits must be >= 0", ErrInvalidConfig)
	}
	if limits.ChildLimit == 0 {
		limits.ChildLimit = DefaultChildLimit
	}
	cfg.Logger = cfg.logger()

	side, err := GeneticSide(cfg.Bots, cfg.Logger)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	bots := cfg.Bots
	if bots[1-side], err = bot.Freeze(bots[1-side], cfg.Info, rng); err != nil {
		return nil, fmt.Errorf("freeze opponent: %w", err)
	}
	kind := genomeKind(bots[side])
	if bots[side].Recipe, err = loadSeed(kind, bots[side].Recipe, cfg.shape(), cfg.Logger); err != nil {
		return nil, err
	}
	if bots[side].Recipe == "" {
		if bots[side].Recipe, err = freshRecipe(kind, cfg.shape(), rng); err != nil {
			return nil, err
		}
	}
	return &Climber{cfg: cfg, limits: limits, rng: rng, side: side, kind: kind, bots: bots}, nil
}

type climbTask struct {
	parent Sample
	child  Candidate
}

type climbOutcome struct {
	parent Sample
	out    outcome
}

func (c *Climber) Run(ctx context.Context) (ClimbResult, error) {
	log := c.cfg.Logger
	stack := NewStack(Sample{Recipe: c.bots[c.side].Recipe}, c.limits.ChildLimit, log)

	workers := c.cfg.workers()
	tasks := make(chan climbTask, workers)
	results := make(chan climbOutcome, workers)
	p := pool.New()
	for w := 0; w < workers; w++ {
		p.Go(func() {
			for t := range tasks {
				out := evaluateOne(ctx, c.cfg.Scorer, pairing(c.bots, c.side, t.child.Recipe), c.side, t.child)
				results <- climbOutcome{parent: t.parent, out: out}
			}
		})
	}

	var (
		result     ClimbResult
		fatal      error
		inFlight   int
		dispatched int
	)
	send := func(parent *Sample) error {
		child, changed, err := mutateRecipe(c.kind, parent.Recipe, c.rng, log)
		if err != nil {
			return err
		}
		if !changed {
			log.Warnw("sample did not mutate", "generation", parent.Generation)
		}
		tasks <- climbTask{parent: *parent, child: Candidate{Index: dispatched, Recipe: child, Parent: parent.Recipe, Seed: c.rng.Int63()}}
		dispatched++
		inFlight++
		return nil
	}
	canSend := func() bool {
		if fatal != nil || ctx.Err() != nil {
			return false
		}
		return c.limits.MaxEvaluations == 0 || dispatched < c.limits.MaxEvaluations
	}

	for w := 0; w < workers && canSend(); w++ {
		next, _ := stack.Next(nil)
		if next == nil {
			break
		}
		if err := send(next); err != nil {
			fatal = err
		}
	}

	for inFlight > 0 {
		res := <-results
		inFlight--

		var last *Sample
		switch {
		case res.out.panic != nil:
			result.Dropped++
			log.Errorw("climb evaluation panicked", "generation", res.parent.Generation+1, "panic", res.out.panic)
		case res.out.err != nil:
			if fatal == nil {
				fatal = res.out.err
			}
			continue
		default:
			result.Evaluations++
			s := derive(res.parent, res.out.scored.Recipe, res.out.scored.Score)
			last = &s
			log.Debugw("completed climb sample", "generation", s.Generation, "score", s.Score)
		}

		next, improved := stack.Next(last)
		if improved {
			if err := c.improved(ctx, *last, &result); err != nil && fatal == nil {
				fatal = err
			}
		}
		if next == nil || !canSend() {
			continue
		}
		if err := send(next); err != nil && fatal == nil {
			fatal = err
		}
	}
	close(tasks)
	p.Wait()

	if best, ok := stack.Best(); ok {
		result.Best = best
		result.Found = true
	}
	log.Infow("climb finished",
		"evaluations", humanize.Comma(int64(result.Evaluations)),
		"dropped", result.Dropped,
		"best", result.Best.Score,
		"stack", stack.Len(),
	)
	if fatal != nil {
		if errors.Is(fatal, context.Canceled) || errors.Is(fatal, context.DeadlineExceeded) {
			return result, fatal
		}
		return result, fmt.Errorf("climb: %w", fatal)
	}
	return result, ctx.Err()
}

func (c *Climber) improved(ctx context.Context, best Sample, result *ClimbResult) error {
	c.cfg.Logger.Infow("found new high score", "generation", best.Generation, "score", best.Score)
	report := model.GenerationReport{
		RunID:      c.cfg.RunID,
		Generation: best.Generation,
		Evaluated:  result.Evaluations,
		Dropped:    result.Dropped,
		Passed:     1,
		Survivors:  1,
		BestScore:  best.Score,
		MeanScore:  best.Score,
		Threshold:  best.Score,
		Improved:   true,
	}
	result.Reports = append(result.Reports, report)
	c.cfg.notify(report)
	if c.cfg.Sink == nil {
		return nil
	}
	return c.cfg.Sink.Persist(ctx, Entry{
		RunID:      c.cfg.RunID,
		Game:       c.cfg.Info.Name,
		Kind:       string(c.bots[c.side].Kind),
		Recipe:     best.Recipe,
		Score:      best.Score,
		Generation: best.Generation,
	})
}
