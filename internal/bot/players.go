package bot

import (
	"math/rand"

	"arenaevo/internal/genome"
)

// Random plays a uniformly random legal move from its own generator.
type Random struct {
	rng *rand.Rand
}

func NewRandom(rng *rand.Rand) *Random {
	return &Random{rng: rng}
}

func (r *Random) Name() string { return string(KindRandom) }

func (r *Random) Decide(_ []float64, legal []int) int {
	return legal[r.rng.Intn(len(legal))]
}

// Omni declares every legal move as a candidate.
type Omni struct{}

func (Omni) Name() string { return string(KindOracle) }

// Decide is only reached when an oracle is misused in a single-path match.
func (Omni) Decide(_ []float64, legal []int) int {
	return legal[0]
}

func (Omni) Candidates(_ []float64, legal []int) []int {
	out := make([]int, len(legal))
	copy(out, legal)
	return out
}

// Genetic delegates decisions to a genome.
type Genetic struct {
	genome genome.Genome
}

func NewGenetic(g genome.Genome) *Genetic {
	return &Genetic{genome: g}
}

func (g *Genetic) Name() string { return string(KindForGenome(g.genome.Kind())) }

func (g *Genetic) Decide(inputs []float64, legal []int) int {
	return g.genome.Decide(inputs, legal)
}

func (g *Genetic) Genome() genome.Genome { return g.genome }
