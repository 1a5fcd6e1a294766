package match

import (
	"context"
	"fmt"
	"slices"

	"arenaevo/internal/bot"
	"arenaevo/internal/game"
)

// Explore walks every line of play reachable when oracle sides declare all
// their candidates. Each finished branch is passed to visit exactly once.
// g is used as scratch space and is left in an unspecified state.
//
// Branches are independent serialized snapshots kept on a depth-first
// stack. Players are shared between branches and must not keep per-game
// state.
func Explore(ctx context.Context, g game.Game, players [2]bot.Player, visit func(game.Result) error) (int, error) {
	root, err := New(g, players).Snapshot()
	if err != nil {
		return 0, err
	}
	stack := []Snapshot{root}
	leaves := 0
	emit := func(r game.Result) error {
		leaves++
		return visit(r)
	}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return leaves, err
		}
		snap := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		m, err := Restore(g, players, snap)
		if err != nil {
			return leaves, err
		}
		children, err := m.advance(emit)
		if err != nil {
			return leaves, err
		}
		if r, ended := m.Result(); ended {
			if err := emit(r); err != nil {
				return leaves, err
			}
			continue
		}
		stack = append(stack, children...)
	}
	return leaves, nil
}

// advance plays single-path turns until the match ends or an oracle is to
// move. On an oracle turn it returns one snapshot per legal candidate,
// ordered so that the first candidate is popped first. Illegal candidates,
// and an empty candidate set, are disqualified leaves and go straight to emit.
func (m *Match) advance(emit func(game.Result) error) ([]Snapshot, error) {
	for m.phase != PhaseEnded {
		side := m.toMove
		oracle, ok := m.players[side].(bot.Oracle)
		if !ok {
			if err := m.Step(); err != nil {
				return nil, err
			}
			continue
		}
		inputs, legal, err := m.observe()
		if err != nil {
			return nil, err
		}
		m.turns[side]++
		candidates := oracle.Candidates(inputs, legal)
		if len(candidates) == 0 {
			// An oracle that declines every move forfeits the branch.
			return nil, emit(game.Disqualify(side, m.turns))
		}
		parent, err := m.game.MarshalState()
		if err != nil {
			return nil, fmt.Errorf("snapshot branch: %w", err)
		}
		children := make([]Snapshot, 0, len(candidates))
		for i := len(candidates) - 1; i >= 0; i-- {
			move := candidates[i]
			if !slices.Contains(legal, move) {
				if err := emit(game.Disqualify(side, m.turns)); err != nil {
					return nil, err
				}
				continue
			}
			if err := m.game.UnmarshalState(parent); err != nil {
				return nil, fmt.Errorf("restore branch: %w", err)
			}
			if err := m.game.Apply(side, move); err != nil {
				return nil, fmt.Errorf("apply move %d for side %d: %w", move, side, err)
			}
			board, err := m.game.MarshalState()
			if err != nil {
				return nil, fmt.Errorf("snapshot branch: %w", err)
			}
			children = append(children, Snapshot{Board: board, Turns: m.turns, ToMove: 1 - side})
		}
		return children, nil
	}
	return nil, nil
}
