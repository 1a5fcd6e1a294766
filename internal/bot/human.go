package bot

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"arenaevo/internal/game"
)

// Console connects a human player to a terminal. Board, when set, is
// rendered before every prompt.
type Console struct {
	In    io.Reader
	Out   io.Writer
	Board game.Game

	scanner *bufio.Scanner
}

func (c *Console) lines() *bufio.Scanner {
	if c.scanner == nil {
		c.scanner = bufio.NewScanner(c.In)
	}
	return c.scanner
}

// Human asks the console for every move. It returns whatever number is
// typed, so an out-of-range answer disqualifies like any other bot.
type Human struct {
	console  *Console
	identity string
	log      *zap.SugaredLogger
}

func NewHuman(console *Console, identity string, log *zap.SugaredLogger) *Human {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Human{console: console, identity: identity, log: log}
}

func (h *Human) Name() string { return string(KindHuman) }

func (h *Human) Decide(_ []float64, legal []int) int {
	out := h.console.Out
	if h.console.Board != nil {
		if err := game.Render(out, h.console.Board); err != nil {
			h.log.Warnw("render board", "error", err)
		}
	}
	prompt := fmt.Sprintf("Possible moves are [%s]", joinMoves(legal))
	if len(legal) == 1 {
		fmt.Fprintf(out, "%s (automatically choosing %d)\n", prompt, legal[0])
		return legal[0]
	}
	lines := h.console.lines()
	for {
		fmt.Fprintf(out, "%s %s: ", h.identity, prompt)
		if !lines.Scan() {
			err := lines.Err()
			if err == nil {
				err = ErrNoInput
			}
			h.log.Warnw("no move from console", "identity", h.identity, "error", err)
			return -1
		}
		move, err := strconv.Atoi(strings.TrimSpace(lines.Text()))
		if err != nil {
			fmt.Fprintln(out)
			continue
		}
		return move
	}
}

func joinMoves(moves []int) string {
	parts := make([]string, len(moves))
	for i, m := range moves {
		parts[i] = strconv.Itoa(m)
	}
	return strings.Join(parts, ",")
}
