package game

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	Connect4Name = "connect4"

	connect4Width     = 7
	connect4Height    = 7
	connect4ScoreBase = 25
)

// Connect4 drops pieces into columns under gravity. Row 0 is the bottom row.
type Connect4 struct {
	cells [connect4Width * connect4Height]byte
}

func NewConnect4() *Connect4 {
	c := &Connect4{}
	for i := range c.cells {
		c.cells[i] = ' '
	}
	return c
}

func (c *Connect4) at(col, row int) byte {
	return c.cells[row*connect4Width+col]
}

func (c *Connect4) Info() Info {
	return Info{
		Name:        Connect4Name,
		Identities:  identities,
		InputCount:  2 * len(c.cells),
		OutputCount: connect4Width,
	}
}

func (c *Connect4) Inputs(side int) ([]float64, []int) {
	return perspective(c.cells[:], identities[side][0]), c.legalMoves()
}

func (c *Connect4) legalMoves() []int {
	moves := make([]int, 0, connect4Width)
	for col := 0; col < connect4Width; col++ {
		if c.at(col, connect4Height-1) == ' ' {
			moves = append(moves, col)
		}
	}
	return moves
}

func (c *Connect4) Apply(side, move int) error {
	if c.Ended() {
		return ErrGameOver
	}
	if move < 0 || move >= connect4Width {
		return fmt.Errorf("%w: connect4 column %d", ErrIllegalMove, move)
	}
	for row := 0; row < connect4Height; row++ {
		if c.at(move, row) == ' ' {
			c.cells[row*connect4Width+move] = identities[side][0]
			return nil
		}
	}
	return fmt.Errorf("%w: connect4 column %d is full", ErrIllegalMove, move)
}

// winner scans right, up and both upward diagonals from every occupied cell.
func (c *Connect4) winner() int {
	dirs := [4][2]int{{1, 0}, {0, 1}, {-1, 1}, {1, 1}}
	for row := 0; row < connect4Height; row++ {
		for col := 0; col < connect4Width; col++ {
			p := c.at(col, row)
			if p == ' ' {
				continue
			}
			for _, d := range dirs {
				endCol, endRow := col+3*d[0], row+3*d[1]
				if endCol < 0 || endCol >= connect4Width || endRow >= connect4Height {
					continue
				}
				if c.at(col+d[0], row+d[1]) == p && c.at(col+2*d[0], row+2*d[1]) == p && c.at(endCol, endRow) == p {
					if p == identities[0][0] {
						return 0
					}
					return 1
				}
			}
		}
	}
	return -1
}

func (c *Connect4) Ended() bool {
	return c.winner() >= 0 || len(c.legalMoves()) == 0
}

func (c *Connect4) Result(turns [2]int) Result {
	return scoreResult(connect4ScoreBase, c.winner(), turns)
}

func (c *Connect4) MarshalState() ([]byte, error) {
	return json.Marshal(boardState{Data: string(c.cells[:])})
}

func (c *Connect4) UnmarshalState(data []byte) error {
	var state boardState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("decode connect4 state: %w", err)
	}
	if len(state.Data) != len(c.cells) {
		return fmt.Errorf("decode connect4 state: want %d cells, got %d", len(c.cells), len(state.Data))
	}
	copy(c.cells[:], state.Data)
	return nil
}

func (c *Connect4) Grid() [][]string {
	grid := make([][]string, 0, connect4Height)
	for row := connect4Height - 1; row >= 0; row-- {
		start := row * connect4Width
		grid = append(grid, strings.Split(string(c.cells[start:start+connect4Width]), ""))
	}
	return grid
}
