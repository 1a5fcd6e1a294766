package game

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

var identityColors = map[string]string{
	"X": "1",
	"O": "4",
}

// Render draws the board of g to w. Pieces are coloured when w is a terminal
// that supports it.
func Render(w io.Writer, g Game) error {
	out := termenv.NewOutput(w)
	grid := g.Grid()
	if len(grid) == 0 {
		return nil
	}
	divider := strings.Repeat("-", 4*len(grid[0])-1)
	for r, row := range grid {
		cells := make([]string, len(row))
		for i, cell := range row {
			style := out.String(cell)
			if color, ok := identityColors[cell]; ok {
				style = style.Foreground(out.Color(color)).Bold()
			}
			cells[i] = style.String()
		}
		if _, err := fmt.Fprintf(w, " %s \n", strings.Join(cells, " | ")); err != nil {
			return err
		}
		if r < len(grid)-1 {
			if _, err := fmt.Fprintln(w, divider); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}
