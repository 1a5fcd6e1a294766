package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"arenaevo/internal/bot"
	"arenaevo/internal/game"
)

var (
	ErrNoLegalMoves     = errors.New("no legal moves in an open game")
	ErrInputMismatch    = errors.New("input vector does not match game inputs")
	ErrMatchEnded       = errors.New("match already ended")
	ErrOracleSinglePath = errors.New("oracle player requires exhaustive exploration")
)

type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseInProgress
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseInProgress:
		return "in_progress"
	case PhaseEnded:
		return "ended"
	default:
		return "not_started"
	}
}

// Snapshot is the serialized state of a match: board contents, turns taken
// by each side and the side to move.
type Snapshot struct {
	Board  json.RawMessage `json:"board"`
	Turns  [2]int          `json:"turns"`
	ToMove int             `json:"to_move"`
}

// Match alternates turns between two players over one game. Side 0 moves
// first.
type Match struct {
	game    game.Game
	info    game.Info
	players [2]bot.Player
	turns   [2]int
	toMove  int
	phase   Phase
	result  game.Result
}

func New(g game.Game, players [2]bot.Player) *Match {
	return &Match{game: g, info: g.Info(), players: players}
}

// Restore loads snap into g and returns a match continuing from it.
func Restore(g game.Game, players [2]bot.Player, snap Snapshot) (*Match, error) {
	if err := g.UnmarshalState(snap.Board); err != nil {
		return nil, fmt.Errorf("restore match: %w", err)
	}
	m := New(g, players)
	m.turns = snap.Turns
	m.toMove = snap.ToMove
	m.phase = PhaseInProgress
	if g.Ended() {
		m.finish(g.Result(m.turns))
	}
	return m, nil
}

func (m *Match) Phase() Phase { return m.phase }

func (m *Match) Turns() [2]int { return m.turns }

func (m *Match) ToMove() int { return m.toMove }

func (m *Match) Game() game.Game { return m.game }

// Result returns the outcome once the match has ended.
func (m *Match) Result() (game.Result, bool) {
	return m.result, m.phase == PhaseEnded
}

func (m *Match) Snapshot() (Snapshot, error) {
	board, err := m.game.MarshalState()
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot match: %w", err)
	}
	return Snapshot{Board: board, Turns: m.turns, ToMove: m.toMove}, nil
}

func (m *Match) finish(r game.Result) {
	m.result = r
	m.phase = PhaseEnded
}

func (m *Match) start() {
	if m.phase != PhaseNotStarted {
		return
	}
	m.phase = PhaseInProgress
	if m.game.Ended() {
		m.finish(m.game.Result(m.turns))
	}
}

// observe collects the inputs for the side to move and checks the game kept
// its side of the contract.
func (m *Match) observe() ([]float64, []int, error) {
	inputs, legal := m.game.Inputs(m.toMove)
	if len(legal) == 0 {
		return nil, nil, fmt.Errorf("%w: %s side %d", ErrNoLegalMoves, m.info.Name, m.toMove)
	}
	if len(inputs) != m.info.InputCount {
		return nil, nil, fmt.Errorf("%w: %s wants %d, got %d", ErrInputMismatch, m.info.Name, m.info.InputCount, len(inputs))
	}
	return inputs, legal, nil
}

// play validates and applies one move for the side to move. An illegal move
// ends the match with a disqualification.
func (m *Match) play(side, move int, legal []int) error {
	if !slices.Contains(legal, move) {
		m.finish(game.Disqualify(side, m.turns))
		return nil
	}
	if err := m.game.Apply(side, move); err != nil {
		return fmt.Errorf("apply move %d for side %d: %w", move, side, err)
	}
	m.toMove = 1 - side
	if m.game.Ended() {
		m.finish(m.game.Result(m.turns))
	}
	return nil
}

// Step plays a single turn.
func (m *Match) Step() error {
	m.start()
	if m.phase == PhaseEnded {
		return ErrMatchEnded
	}
	side := m.toMove
	if _, ok := m.players[side].(bot.Oracle); ok {
		return fmt.Errorf("%w: side %d", ErrOracleSinglePath, side)
	}
	inputs, legal, err := m.observe()
	if err != nil {
		return err
	}
	m.turns[side]++
	return m.play(side, m.players[side].Decide(inputs, legal), legal)
}

// Run plays the match to the end along a single path.
func (m *Match) Run(ctx context.Context) (game.Result, error) {
	m.start()
	for m.phase != PhaseEnded {
		if err := ctx.Err(); err != nil {
			return game.Result{}, err
		}
		if err := m.Step(); err != nil {
			return game.Result{}, err
		}
	}
	return m.result, nil
}

// Play runs a single-path match between two players on g.
func Play(ctx context.Context, g game.Game, players [2]bot.Player) (game.Result, error) {
	return New(g, players).Run(ctx)
}
