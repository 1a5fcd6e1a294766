package bot

import (
	"errors"
	"fmt"
	"strings"

	"arenaevo/internal/genome"
)

var (
	ErrUnknownKind = errors.New("unknown bot kind")
	ErrNoInput     = errors.New("console input closed")
)

// Kind identifies a decision source. Aliases accepted by ParseKind resolve to
// one of the kinds declared here.
type Kind string

const (
	KindRandom  Kind = "random"
	KindCircuit Kind = "circuit"
	KindNetwork Kind = "network"
	KindOracle  Kind = "oracle"
	KindHuman   Kind = "human"
)

var kindAliases = map[string]Kind{
	"random":         KindRandom,
	"randombot":      KindRandom,
	"circuit":        KindCircuit,
	"genbot3":        KindCircuit,
	"network":        KindNetwork,
	"nbot1":          KindNetwork,
	"oracle":         KindOracle,
	"omnibot":        KindOracle,
	"magic":          KindOracle,
	"human":          KindHuman,
	"naughts.human":  KindHuman,
	"connect4.human": KindHuman,
}

func ParseKind(name string) (Kind, error) {
	kind, ok := kindAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, name)
	}
	return kind, nil
}

func Kinds() []Kind {
	return []Kind{KindRandom, KindCircuit, KindNetwork, KindOracle, KindHuman}
}

// Genetic reports whether the kind is backed by an evolvable genome.
func (k Kind) Genetic() bool {
	return k == KindCircuit || k == KindNetwork
}

func (k Kind) GenomeKind() (genome.Kind, bool) {
	switch k {
	case KindCircuit:
		return genome.KindCircuit, true
	case KindNetwork:
		return genome.KindNetwork, true
	default:
		return "", false
	}
}

// KindForGenome maps a genome variant back to the bot kind that plays it.
func KindForGenome(kind genome.Kind) Kind {
	if kind == genome.KindNetwork {
		return KindNetwork
	}
	return KindCircuit
}

// Player is a decision source for one side of a match.
type Player interface {
	Name() string
	// Decide returns one move. A move outside legal disqualifies the player.
	Decide(inputs []float64, legal []int) int
}

// Oracle is a player that declares a whole candidate set instead of one
// move. It can only take part in exhaustive exploration.
type Oracle interface {
	Player
	Candidates(inputs []float64, legal []int) []int
}

// Spec is the immutable snapshot a player is rebuilt from. Genetic specs
// without a recipe produce a fresh random genome on every build.
type Spec struct {
	Kind   Kind   `json:"kind"`
	Recipe string `json:"recipe,omitempty"`
}

func ParseSpec(name string) (Spec, error) {
	kind, err := ParseKind(name)
	if err != nil {
		return Spec{}, err
	}
	return Spec{Kind: kind}, nil
}

func (s Spec) String() string {
	if s.Recipe == "" {
		return string(s.Kind)
	}
	return fmt.Sprintf("%s(%d bytes)", s.Kind, len(s.Recipe))
}
