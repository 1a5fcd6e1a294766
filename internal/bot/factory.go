package bot

import (
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"arenaevo/internal/game"
	"arenaevo/internal/genome"
)

// Factory builds players for one game. It is safe for concurrent use as long
// as every call gets its own rng.
type Factory struct {
	Info    game.Info
	Console *Console
	Logger  *zap.SugaredLogger
}

func (f Factory) shape() genome.Shape {
	return genome.Shape{Inputs: f.Info.InputCount, Outputs: f.Info.OutputCount}
}

// Build creates the player for spec playing the given side.
func (f Factory) Build(spec Spec, side int, rng *rand.Rand) (Player, error) {
	log := f.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	switch spec.Kind {
	case KindRandom:
		return NewRandom(rand.New(rand.NewSource(rng.Int63()))), nil
	case KindOracle:
		return Omni{}, nil
	case KindHuman:
		if f.Console == nil {
			return nil, fmt.Errorf("build %s player: no console attached", spec.Kind)
		}
		return NewHuman(f.Console, f.Info.Identities[side], log), nil
	case KindCircuit, KindNetwork:
		kind, _ := spec.Kind.GenomeKind()
		var (
			g   genome.Genome
			err error
		)
		if spec.Recipe == "" {
			g, err = genome.New(kind, f.shape(), rng)
		} else {
			g, err = genome.Load(kind, spec.Recipe, log)
		}
		if err == nil {
			err = genome.CheckShape(g, f.shape())
		}
		if err != nil {
			return nil, fmt.Errorf("build %s player: %w", spec.Kind, err)
		}
		return NewGenetic(g), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, spec.Kind)
	}
}

// Freeze pins a recipe-less genetic spec to one freshly generated genome so
// that every later build yields the same player.
func Freeze(spec Spec, info game.Info, rng *rand.Rand) (Spec, error) {
	if !spec.Kind.Genetic() || spec.Recipe != "" {
		return spec, nil
	}
	kind, _ := spec.Kind.GenomeKind()
	g, err := genome.New(kind, genome.Shape{Inputs: info.InputCount, Outputs: info.OutputCount}, rng)
	if err != nil {
		return Spec{}, err
	}
	recipe, err := g.Recipe()
	if err != nil {
		return Spec{}, fmt.Errorf("freeze %s: %w", spec.Kind, err)
	}
	spec.Recipe = recipe
	return spec, nil
}
