package evo

import (
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"arenaevo/internal/genome"
)

// freshRecipe generates a random genome sized for shape.
func freshRecipe(kind genome.Kind, shape genome.Shape, rng *rand.Rand) (string, error) {
	g, err := genome.New(kind, shape, rng)
	if err != nil {
		return "", err
	}
	return g.Recipe()
}

// mutateRecipe returns a mutated copy of parent. A mutation that leaves the
// recipe unchanged is still returned and reported as ineffective.
func mutateRecipe(kind genome.Kind, parent string, rng *rand.Rand, log *zap.SugaredLogger) (string, bool, error) {
	g, err := genome.Load(kind, parent, log)
	if err != nil {
		return "", false, fmt.Errorf("load parent: %w", err)
	}
	g.Mutate(rng)
	child, err := g.Recipe()
	if err != nil {
		return "", false, fmt.Errorf("encode child: %w", err)
	}
	return child, child != parent, nil
}
