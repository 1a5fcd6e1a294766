package bot

import (
	"bytes"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"arenaevo/internal/game"
	"arenaevo/internal/genome"
)

func naughtsFactory(t *testing.T) Factory {
	t.Helper()
	return Factory{Info: game.NewNaughts().Info(), Logger: zaptest.NewLogger(t).Sugar()}
}

func TestParseKindAliases(t *testing.T) {
	cases := map[string]Kind{
		"randombot":     KindRandom,
		"GenBot3":       KindCircuit,
		"nbot1":         KindNetwork,
		"omnibot":       KindOracle,
		"magic":         KindOracle,
		"naughts.human": KindHuman,
	}
	for name, want := range cases {
		got, err := ParseKind(name)
		if err != nil || got != want {
			t.Fatalf("ParseKind(%q)=%q, %v want %q", name, got, err, want)
		}
	}
	if _, err := ParseKind("chessbot"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestBuildEveryKindPlaysLegalMoves(t *testing.T) {
	f := naughtsFactory(t)
	rng := rand.New(rand.NewSource(3))
	g := game.NewNaughts()
	inputs, legal := g.Inputs(0)
	for _, kind := range []Kind{KindRandom, KindCircuit, KindNetwork, KindOracle} {
		p, err := f.Build(Spec{Kind: kind}, 0, rng)
		if err != nil {
			t.Fatalf("build %s: %v", kind, err)
		}
		move := p.Decide(inputs, legal)
		if move < 0 || move > 8 {
			t.Fatalf("%s played %d", kind, move)
		}
		_, isOracle := p.(Oracle)
		if isOracle != (kind == KindOracle) {
			t.Fatalf("%s oracle=%v", kind, isOracle)
		}
	}
}

func TestBuildHumanRequiresConsole(t *testing.T) {
	f := naughtsFactory(t)
	if _, err := f.Build(Spec{Kind: KindHuman}, 0, rand.New(rand.NewSource(1))); err == nil {
		t.Fatal("expected error without console")
	}
}

func TestOracleCandidatesCopyLegalMoves(t *testing.T) {
	legal := []int{1, 4, 6}
	got := Omni{}.Candidates(nil, legal)
	got[0] = 99
	if legal[0] != 1 || len(got) != 3 {
		t.Fatalf("candidates alias legal moves: %v %v", legal, got)
	}
}

func TestFreezeProducesStablePlayers(t *testing.T) {
	info := game.NewNaughts().Info()
	spec, err := Freeze(Spec{Kind: KindNetwork}, info, rand.New(rand.NewSource(9)))
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if spec.Recipe == "" {
		t.Fatal("expected frozen recipe")
	}
	f := naughtsFactory(t)
	a, err := f.Build(spec, 1, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	b, _ := f.Build(spec, 1, rand.New(rand.NewSource(2)))
	ra, _ := a.(*Genetic).Genome().Recipe()
	rb, _ := b.(*Genetic).Genome().Recipe()
	if ra != spec.Recipe || rb != spec.Recipe {
		t.Fatal("frozen spec rebuilt into different genomes")
	}
	random := Spec{Kind: KindRandom}
	if same, _ := Freeze(random, info, rand.New(rand.NewSource(1))); same != random {
		t.Fatalf("non genetic spec changed: %+v", same)
	}
}

func TestBuildMalformedRecipeFallsBack(t *testing.T) {
	f := naughtsFactory(t)
	p, err := f.Build(Spec{Kind: KindCircuit, Recipe: "NODE_BOGUS:1"}, 0, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := p.Decide(nil, []int{3, 5}); got != 3 {
		t.Fatalf("empty genome played %d want 3", got)
	}
}

func TestBuildRejectsRecipeForAnotherGame(t *testing.T) {
	c4 := game.NewConnect4().Info()
	rng := rand.New(rand.NewSource(9))
	g, err := genome.New(genome.KindCircuit, genome.Shape{Inputs: c4.InputCount, Outputs: c4.OutputCount}, rng)
	if err != nil {
		t.Fatalf("new genome: %v", err)
	}
	recipe, err := g.Recipe()
	if err != nil {
		t.Fatalf("recipe: %v", err)
	}
	f := naughtsFactory(t)
	if _, err := f.Build(Spec{Kind: KindCircuit, Recipe: recipe}, 0, rng); !errors.Is(err, genome.ErrInputMismatch) {
		t.Fatalf("expected ErrInputMismatch, got %v", err)
	}
	f.Info = c4
	if _, err := f.Build(Spec{Kind: KindCircuit, Recipe: recipe}, 0, rng); err != nil {
		t.Fatalf("build on its own game: %v", err)
	}
}

func TestHumanRepromptsOnGarbage(t *testing.T) {
	var out bytes.Buffer
	console := &Console{In: strings.NewReader("abc\n\n7\n4\n"), Out: &out, Board: game.NewNaughts()}
	h := NewHuman(console, "X", zaptest.NewLogger(t).Sugar())
	if got := h.Decide(nil, []int{0, 4, 8}); got != 7 {
		t.Fatalf("got %d want 7", got)
	}
	if got := h.Decide(nil, []int{0, 4, 8}); got != 4 {
		t.Fatalf("got %d want 4", got)
	}
	if got := h.Decide(nil, []int{0, 4}); got != -1 {
		t.Fatalf("closed console returned %d", got)
	}
	if !strings.Contains(out.String(), "Possible moves are [0,4,8]") {
		t.Fatalf("missing prompt in %q", out.String())
	}
}

func TestHumanSingleMoveIsAutomatic(t *testing.T) {
	var out bytes.Buffer
	h := NewHuman(&Console{In: strings.NewReader(""), Out: &out}, "O", nil)
	if got := h.Decide(nil, []int{6}); got != 6 {
		t.Fatalf("got %d want 6", got)
	}
}
