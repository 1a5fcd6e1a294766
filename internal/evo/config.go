package evo

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"arenaevo/internal/bot"
	"arenaevo/internal/fitness"
	"arenaevo/internal/game"
	"arenaevo/internal/genome"
	"arenaevo/internal/model"
)

// InitialThreshold is the score a candidate has to beat before any
// generation has improved. It sits just above a disqualification so that
// any bot that finishes its matches passes.
const InitialThreshold = -999.0

const DefaultWorkers = 6

var (
	ErrNoGeneticSide = errors.New("neither bot is genome backed")
	ErrInvalidConfig = errors.New("invalid evolution config")
)

// Scorer produces the fitness record of one pairing. *fitness.Evaluator is
// the production implementation.
type Scorer interface {
	Evaluate(ctx context.Context, specs [2]bot.Spec, seed int64) (fitness.Record, error)
}

// Listener observes progress reports. Calls come from the coordinating
// goroutine only.
type Listener interface {
	OnGeneration(report model.GenerationReport)
}

type ListenerFunc func(report model.GenerationReport)

func (f ListenerFunc) OnGeneration(report model.GenerationReport) { f(report) }

type Config struct {
	RunID  string
	Info   game.Info
	Bots   [2]bot.Spec
	Scorer Scorer

	Generations int
	Samples     int
	Keep        int
	Wild        int
	Workers     int
	Seed        int64

	Logger    *zap.SugaredLogger
	Listeners []Listener
	Sink      Sink
}

func (c Config) validate() error {
	if c.Scorer == nil {
		return fmt.Errorf("%w: scorer is required", ErrInvalidConfig)
	}
	if c.Info.InputCount < 1 || c.Info.OutputCount < 1 {
		return fmt.Errorf("%w: game info is required", ErrInvalidConfig)
	}
	if c.Generations < 1 {
		return fmt.Errorf("%w: generations must be > 0", ErrInvalidConfig)
	}
	if c.Samples < 1 {
		return fmt.Errorf("%w: samples must be > 0", ErrInvalidConfig)
	}
	if c.Keep < 1 {
		return fmt.Errorf("%w: keep must be > 0", ErrInvalidConfig)
	}
	if c.Wild < 0 {
		return fmt.Errorf("%w: wild must be >= 0", ErrInvalidConfig)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0", ErrInvalidConfig)
	}
	return nil
}

func (c Config) workers() int {
	if c.Workers == 0 {
		return DefaultWorkers
	}
	return c.Workers
}

func (c Config) shape() genome.Shape {
	return genome.Shape{Inputs: c.Info.InputCount, Outputs: c.Info.OutputCount}
}

// loadSeed normalises a seed recipe and rejects one sized for another game.
// An empty or unreadable seed comes back as "".
func loadSeed(kind genome.Kind, recipe string, shape genome.Shape, log *zap.SugaredLogger) (string, error) {
	if recipe == "" {
		return "", nil
	}
	g, err := genome.Load(kind, recipe, log)
	if err == nil {
		err = genome.CheckShape(g, shape)
	}
	if err != nil {
		return "", fmt.Errorf("%w: seed recipe: %w", ErrInvalidConfig, err)
	}
	seed, err := g.Recipe()
	if err != nil {
		return "", fmt.Errorf("seed recipe: %w", err)
	}
	if seed == "" {
		log.Warnw("seed recipe is empty, starting from fresh samples", "kind", kind)
	}
	return seed, nil
}

func (c Config) logger() *zap.SugaredLogger {
	if c.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return c.Logger
}

func (c Config) notify(report model.GenerationReport) {
	for _, l := range c.Listeners {
		l.OnGeneration(report)
	}
}

// GeneticSide returns the side whose bot is evolved: the first genome backed
// one.
func GeneticSide(bots [2]bot.Spec, log *zap.SugaredLogger) (int, error) {
	switch {
	case bots[0].Kind.Genetic() && bots[1].Kind.Genetic():
		if log != nil {
			log.Warnw("both bots are genetic, evolving the first", "bot", bots[0].Kind)
		}
		return 0, nil
	case bots[0].Kind.Genetic():
		return 0, nil
	case bots[1].Kind.Genetic():
		return 1, nil
	default:
		return -1, fmt.Errorf("%w: %s vs %s", ErrNoGeneticSide, bots[0].Kind, bots[1].Kind)
	}
}

func pairing(bots [2]bot.Spec, side int, recipe string) [2]bot.Spec {
	specs := bots
	specs[side] = bot.Spec{Kind: bots[side].Kind, Recipe: recipe}
	return specs
}

func genomeKind(spec bot.Spec) genome.Kind {
	kind, _ := spec.Kind.GenomeKind()
	return kind
}
