package game

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrUnknownGame = errors.New("unknown game")
	ErrIllegalMove = errors.New("illegal move")
	ErrGameOver    = errors.New("game already ended")
	ErrGameExists  = errors.New("game already registered")
)

// DisqualifiedScore replaces the normal score of a side that plays outside
// the legal move set.
const DisqualifiedScore = -999.0

type Status int

const (
	StatusOpen Status = iota
	StatusWin
	StatusTie
)

func (s Status) String() string {
	switch s {
	case StatusWin:
		return "win"
	case StatusTie:
		return "tie"
	default:
		return "open"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Info describes a game to the decision sources playing it.
type Info struct {
	Name        string    `json:"name"`
	Identities  [2]string `json:"identities"`
	InputCount  int       `json:"input_count"`
	OutputCount int       `json:"output_count"`
}

// Result is the outcome of one finished match.
type Result struct {
	Scores       [2]float64 `json:"scores"`
	Status       Status     `json:"status"`
	Winner       int        `json:"winner"`
	Disqualified int        `json:"disqualified"`
	Turns        [2]int     `json:"turns"`
}

func (r Result) Tie() bool { return r.Status == StatusTie }

// Disqualify builds the result for a match ended by an illegal move.
func Disqualify(offender int, turns [2]int) Result {
	r := Result{
		Status:       StatusWin,
		Winner:       1 - offender,
		Disqualified: offender,
		Turns:        turns,
	}
	r.Scores[offender] = DisqualifiedScore
	return r
}

// Game is the board collaborator driven by the match simulator. Sides are
// indexed 0 and 1 in the order of Info.Identities.
type Game interface {
	Info() Info
	// Inputs returns the input vector seen by side and the moves it may play.
	Inputs(side int) ([]float64, []int)
	Apply(side, move int) error
	Ended() bool
	// Result scores a finished game given the number of turns each side took.
	Result(turns [2]int) Result
	MarshalState() ([]byte, error)
	UnmarshalState(data []byte) error
	// Grid returns the board rows top to bottom, one cell per string.
	Grid() [][]string
}

// Factory creates a game in its initial state.
type Factory func() Game

var registry = struct {
	mu sync.RWMutex
	m  map[string]Factory
}{
	m: map[string]Factory{
		NaughtsName:  func() Game { return NewNaughts() },
		Connect4Name: func() Game { return NewConnect4() },
	},
}

// Register adds a game factory under name.
func Register(name string, factory Factory) error {
	if name == "" || factory == nil {
		return fmt.Errorf("register game: name and factory are required")
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	key := strings.ToLower(name)
	if _, ok := registry.m[key]; ok {
		return fmt.Errorf("%w: %s", ErrGameExists, name)
	}
	registry.m[key] = factory
	return nil
}

// Lookup resolves a game name once so callers can create instances without
// repeating the name match.
func Lookup(name string) (Factory, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	factory, ok := registry.m[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGame, name)
	}
	return factory, nil
}

func New(name string) (Game, error) {
	factory, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return factory(), nil
}

func Names() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	out := make([]string, 0, len(registry.m))
	for name := range registry.m {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// outcomeScore is the shared scoring rule: fewer turns to win scores higher,
// a loss is heavily penalised and a draw scores nothing.
func outcomeScore(base float64, turns int, outcome int) float64 {
	multiplier := 0.0
	switch {
	case outcome > 0:
		multiplier = 1
	case outcome < 0:
		multiplier = -10
	}
	return (base - float64(turns)) * multiplier
}

func scoreResult(base float64, winner int, turns [2]int) Result {
	r := Result{Winner: -1, Disqualified: -1, Turns: turns}
	outcomes := [2]int{}
	if winner < 0 {
		r.Status = StatusTie
	} else {
		r.Status = StatusWin
		r.Winner = winner
		outcomes[winner] = 1
		outcomes[1-winner] = -1
	}
	for side := range r.Scores {
		r.Scores[side] = outcomeScore(base, turns[side], outcomes[side])
	}
	return r
}

func perspective(cells []byte, identity byte) []float64 {
	inputs := make([]float64, 2*len(cells))
	for i, c := range cells {
		switch c {
		case identity:
			inputs[i] = 1
		case ' ':
		default:
			inputs[len(cells)+i] = 1
		}
	}
	return inputs
}
