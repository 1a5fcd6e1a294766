package genome

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"go.uber.org/zap"
)

var (
	ErrUnknownKind      = errors.New("unknown genome kind")
	ErrMalformedRecipe  = errors.New("malformed recipe")
	ErrInvalidReference = errors.New("invalid node reference")
	ErrInputMismatch    = errors.New("input vector length mismatch")
)

// Kind identifies a genome variant. The set is closed: only the kinds declared
// here can be constructed or parsed.
type Kind string

const (
	KindCircuit Kind = "circuit"
	KindNetwork Kind = "network"
)

var kindAliases = map[string]Kind{
	"circuit": KindCircuit,
	"genbot3": KindCircuit,
	"network": KindNetwork,
	"nbot1":   KindNetwork,
}

func ParseKind(name string) (Kind, error) {
	kind, ok := kindAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, name)
	}
	return kind, nil
}

func Kinds() []Kind {
	return []Kind{KindCircuit, KindNetwork}
}

// Shape is the input and output arity a genome is sized for.
type Shape struct {
	Inputs  int
	Outputs int
}

// Genome is a mutable decision function over a fixed-size input vector.
type Genome interface {
	Kind() Kind
	Shape() Shape
	// Decide returns the highest ranked move in legal. Ties go to the move
	// seen first. legal must not be empty.
	Decide(inputs []float64, legal []int) int
	Mutate(rng *rand.Rand)
	Recipe() (string, error)
}

// CheckShape fails with ErrInputMismatch when g is sized for another game.
// The empty genome fits every shape.
func CheckShape(g Genome, want Shape) error {
	got := g.Shape()
	if got == (Shape{}) || got == want {
		return nil
	}
	return fmt.Errorf("%w: %s is sized %d->%d, game needs %d->%d",
		ErrInputMismatch, g.Kind(), got.Inputs, got.Outputs, want.Inputs, want.Outputs)
}

// New creates a freshly randomised genome of the given kind.
func New(kind Kind, shape Shape, rng *rand.Rand) (Genome, error) {
	switch kind {
	case KindCircuit:
		return NewCircuit(shape, rng), nil
	case KindNetwork:
		return NewNetwork(shape, rng), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

// Empty returns the default genome of the given kind. It has no mutable
// sites and always picks the first legal move.
func Empty(kind Kind) (Genome, error) {
	switch kind {
	case KindCircuit:
		return &Circuit{}, nil
	case KindNetwork:
		return &Network{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

// Parse rebuilds a genome from its recipe and reports any defect.
func Parse(kind Kind, recipe string) (Genome, error) {
	switch kind {
	case KindCircuit:
		return ParseCircuit(recipe)
	case KindNetwork:
		return ParseNetwork(recipe)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

// Load is the lenient form of Parse. An empty or malformed recipe yields the
// empty genome and a warning; broken node references are still returned as
// errors because they mean the recipe was produced by something that does
// not honour the genome invariants.
func Load(kind Kind, recipe string, log *zap.SugaredLogger) (Genome, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if strings.TrimSpace(recipe) == "" {
		return Empty(kind)
	}
	g, err := Parse(kind, recipe)
	if err == nil {
		return g, nil
	}
	if errors.Is(err, ErrMalformedRecipe) {
		log.Warnw("falling back to empty genome", "kind", kind, "error", err)
		return Empty(kind)
	}
	return nil, err
}

// Clone deep copies g through its recipe.
func Clone(g Genome) (Genome, error) {
	recipe, err := g.Recipe()
	if err != nil {
		return nil, err
	}
	if recipe == "" {
		return Empty(g.Kind())
	}
	return Parse(g.Kind(), recipe)
}

// pickMove selects the legal move with the strictly highest rank, starting
// from the first legal move.
func pickMove(legal []int, rank func(move int) float64) int {
	if len(legal) == 0 {
		panic("genome: decide called with no legal moves")
	}
	best := legal[0]
	bestRank := rank(best)
	for _, move := range legal[1:] {
		if r := rank(move); r > bestRank {
			best = move
			bestRank = r
		}
	}
	return best
}

// sample picks n distinct values from [0, limit). When limit < n the
// remainder is drawn with replacement so the caller always gets n values.
func sample(rng *rand.Rand, limit, n int) []int {
	if n <= 0 || limit <= 0 {
		return nil
	}
	out := make([]int, 0, n)
	perm := rng.Perm(limit)
	if limit >= n {
		return append(out, perm[:n]...)
	}
	out = append(out, perm...)
	for len(out) < n {
		out = append(out, rng.Intn(limit))
	}
	return out
}
