package game

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	NaughtsName = "naughts"

	naughtsCells     = 9
	naughtsScoreBase = 10
)

var naughtsLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

var identities = [2]string{"X", "O"}

// Naughts is noughts and crosses on a 3x3 board. Cells are numbered left to
// right, top to bottom.
type Naughts struct {
	cells [naughtsCells]byte
}

type boardState struct {
	Data string `json:"data"`
}

func NewNaughts() *Naughts {
	n := &Naughts{}
	for i := range n.cells {
		n.cells[i] = ' '
	}
	return n
}

func (n *Naughts) Info() Info {
	return Info{
		Name:        NaughtsName,
		Identities:  identities,
		InputCount:  2 * naughtsCells,
		OutputCount: naughtsCells,
	}
}

func (n *Naughts) Inputs(side int) ([]float64, []int) {
	return perspective(n.cells[:], identities[side][0]), n.legalMoves()
}

func (n *Naughts) legalMoves() []int {
	moves := make([]int, 0, naughtsCells)
	for i, c := range n.cells {
		if c == ' ' {
			moves = append(moves, i)
		}
	}
	return moves
}

func (n *Naughts) Apply(side, move int) error {
	if n.Ended() {
		return ErrGameOver
	}
	if move < 0 || move >= naughtsCells || n.cells[move] != ' ' {
		return fmt.Errorf("%w: naughts cell %d", ErrIllegalMove, move)
	}
	n.cells[move] = identities[side][0]
	return nil
}

// winner returns the winning side, -1 for none.
func (n *Naughts) winner() int {
	for _, line := range naughtsLines {
		c := n.cells[line[0]]
		if c != ' ' && c == n.cells[line[1]] && c == n.cells[line[2]] {
			if c == identities[0][0] {
				return 0
			}
			return 1
		}
	}
	return -1
}

func (n *Naughts) full() bool {
	for _, c := range n.cells {
		if c == ' ' {
			return false
		}
	}
	return true
}

func (n *Naughts) Ended() bool {
	return n.winner() >= 0 || n.full()
}

func (n *Naughts) Result(turns [2]int) Result {
	return scoreResult(naughtsScoreBase, n.winner(), turns)
}

func (n *Naughts) MarshalState() ([]byte, error) {
	return json.Marshal(boardState{Data: string(n.cells[:])})
}

func (n *Naughts) UnmarshalState(data []byte) error {
	var state boardState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("decode naughts state: %w", err)
	}
	if len(state.Data) != naughtsCells {
		return fmt.Errorf("decode naughts state: want %d cells, got %d", naughtsCells, len(state.Data))
	}
	copy(n.cells[:], state.Data)
	return nil
}

func (n *Naughts) Grid() [][]string {
	grid := make([][]string, 3)
	for r := range grid {
		grid[r] = strings.Split(string(n.cells[r*3:r*3+3]), "")
	}
	return grid
}
