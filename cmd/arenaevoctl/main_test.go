package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"arenaevo/internal/model"
	"arenaevo/internal/stats"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), append(args, "--log-level", "error"), strings.NewReader(stdin), &out)
	return out.String(), err
}

func mustRunCLI(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, "", args...)
	if err != nil {
		t.Fatalf("%s: %v\noutput:\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	if err := run(context.Background(), nil, strings.NewReader(""), &bytes.Buffer{}); err == nil || !strings.Contains(err.Error(), "usage") {
		t.Fatalf("expected usage error, got %v", err)
	}
	if err := run(context.Background(), []string{"dance"}, strings.NewReader(""), &bytes.Buffer{}); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestValidatePlayFlags(t *testing.T) {
	cases := []struct {
		name  string
		set   []string
		magic bool
		want  string
	}{
		{name: "single", set: nil},
		{name: "batch", set: []string{"batch"}},
		{name: "genetic batch", set: []string{"batch", "genetic", "samples", "keep", "wild"}},
		{name: "genetic magic", set: []string{"magic", "genetic", "keep"}, magic: true},
		{name: "magic and batch", set: []string{"magic", "batch"}, magic: true, want: "--magic cannot be combined with --batch"},
		{name: "genetic alone", set: []string{"genetic"}, want: "--genetic requires --batch or --magic"},
		{name: "wild alone", set: []string{"wild"}, want: "--wild requires --batch or --magic"},
		{name: "samples without genetic", set: []string{"batch", "samples"}, want: "--samples requires --genetic"},
		{name: "keep without genetic", set: []string{"batch", "keep"}, want: "--keep requires --genetic"},
	}
	for _, tc := range cases {
		set := make(map[string]bool)
		for _, name := range tc.set {
			set[name] = true
		}
		err := validatePlayFlags(set, tc.magic)
		switch {
		case tc.want == "" && err != nil:
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		case tc.want != "" && (err == nil || err.Error() != tc.want):
			t.Fatalf("%s: expected %q, got %v", tc.name, tc.want, err)
		}
	}
}

func TestPlaySingleMatchRendersBoard(t *testing.T) {
	out := mustRunCLI(t, "play", "--game", "naughts", "--bot1", "random", "--bot2", "random", "--seed", "3")
	if !strings.Contains(out, "scores: X (random)") {
		t.Fatalf("missing scores line:\n%s", out)
	}
	if strings.Count(out, "-----------") != 2 {
		t.Fatalf("board not rendered:\n%s", out)
	}
}

func TestPlayBatchAndMagic(t *testing.T) {
	out := mustRunCLI(t, "play", "--game", "connect4", "--bot1", "random", "--bot2", "random", "--batch", "4", "--workers", "2")
	if !strings.Contains(out, "batch: 4 matches") || !strings.Contains(out, "draws:") {
		t.Fatalf("unexpected batch output:\n%s", out)
	}
	out = mustRunCLI(t, "play", "--bot1", "circuit", "--bot2", "magic", "--magic")
	if !strings.Contains(out, "exhaustive:") || !strings.Contains(out, "leaves") {
		t.Fatalf("unexpected exhaustive output:\n%s", out)
	}
}

func TestPlayHumanReadsConsole(t *testing.T) {
	out, err := runCLI(t, "4\n0\n8\n2\n6\n1\n3\n5\n7\n", "play", "--bot1", "human", "--bot2", "random", "--seed", "2")
	if err != nil {
		t.Fatalf("play: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Possible moves are") || !strings.Contains(out, "scores:") {
		t.Fatalf("unexpected human output:\n%s", out)
	}
}

func TestPlayFlagErrors(t *testing.T) {
	cases := map[string][]string{
		"samples without genetic": {"play", "--batch", "2", "--samples", "3"},
		"magic with batch":        {"play", "--magic", "--batch", "2"},
		"zero generations":        {"play", "--batch", "2", "--genetic", "0"},
		"climb without batch":     {"climb"},
		"evolve without profile":  {"evolve"},
		"show without target":     {"show"},
		"both seeds":              {"play", "--batch", "2", "--genetic", "1", "--botid", "x", "--recipe", "y"},
	}
	for name, args := range cases {
		if out, err := runCLI(t, "", args...); err == nil {
			t.Fatalf("%s: expected error\n%s", name, out)
		}
	}
}

func TestEvolutionWorkflowWithSQLite(t *testing.T) {
	dir := t.TempDir()
	storeFlags := []string{
		"--store", "sqlite",
		"--store-dsn", filepath.Join(dir, "arenaevo.db"),
		"--artifacts-dir", filepath.Join(dir, "runs"),
		"--score-log", filepath.Join(dir, "scores.csv"),
		"--workers", "2",
	}
	withStore := func(args ...string) []string { return append(args, storeFlags...) }

	out := mustRunCLI(t, withStore("init")...)
	if !strings.Contains(out, "initialized store=sqlite") {
		t.Fatalf("unexpected init output: %s", out)
	}

	recipePath := filepath.Join(dir, "best.recipe")
	out = mustRunCLI(t, withStore("play", "--batch", "2", "--genetic", "2", "--samples", "2", "--keep", "2",
		"--seed", "7", "--botdb", "--save-recipe", recipePath)...)
	if !strings.Contains(out, "genetic: complete") || !strings.Contains(out, "best recipe written") {
		t.Fatalf("unexpected evolution output:\n%s", out)
	}
	best, err := os.ReadFile(recipePath)
	if err != nil {
		t.Fatalf("read saved recipe: %v", err)
	}

	var bots []model.BotRecord
	if err := json.Unmarshal([]byte(mustRunCLI(t, withStore("bots", "--game", "naughts", "--json")...)), &bots); err != nil {
		t.Fatalf("decode bots: %v", err)
	}
	if len(bots) == 0 || bots[0].Kind != "circuit" {
		t.Fatalf("no stored bots: %+v", bots)
	}
	recipe := strings.TrimSpace(mustRunCLI(t, withStore("show", "--bot", bots[0].ID, "--recipe")...))
	if recipe != bots[0].Recipe {
		t.Fatalf("stored recipe %q differs from shown %q", bots[0].Recipe, recipe)
	}
	saved := false
	for _, b := range bots {
		if b.Recipe == strings.TrimSpace(string(best)) && b.Score == bots[0].Score {
			saved = true
		}
	}
	if !saved {
		t.Fatalf("saved recipe %q is not a top stored bot", best)
	}
	entries, err := stats.ReadScoreLog(filepath.Join(dir, "scores.csv"))
	if err != nil || len(entries) != len(bots) {
		t.Fatalf("score log entries=%d bots=%d err=%v", len(entries), len(bots), err)
	}

	var index []stats.RunIndexEntry
	if err := json.Unmarshal([]byte(mustRunCLI(t, withStore("runs", "--json")...)), &index); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(index) != 1 {
		t.Fatalf("expected one indexed run, got %+v", index)
	}
	var summary model.RunSummary
	if err := json.Unmarshal([]byte(mustRunCLI(t, withStore("show", "--run", index[0].RunID)...)), &summary); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if summary.Status != "complete" || len(summary.Generations) != 2 || summary.Config.Seed != 7 {
		t.Fatalf("unexpected stored run %+v", summary)
	}

	profile := filepath.Join(dir, "climb.ini")
	content := "[evolution]\ngame = naughts\nbot1 = random\nbot2 = circuit\nbatch = 2\nmode = climb\nmax_evaluations = 4\nchild_limit = 2\nseed = 3\nbotid = " + bots[0].ID + "\n"
	if err := os.WriteFile(profile, []byte(content), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	out = mustRunCLI(t, withStore("evolve", "--profile", profile)...)
	if !strings.Contains(out, "climb: complete") {
		t.Fatalf("unexpected climb output:\n%s", out)
	}

	out = mustRunCLI(t, withStore("climb", "--batch", "2", "--max-evaluations", "3", "--recipe", recipePath)...)
	if !strings.Contains(out, "climb: complete") {
		t.Fatalf("unexpected climb output:\n%s", out)
	}
	if err := json.Unmarshal([]byte(mustRunCLI(t, withStore("runs", "--json")...)), &index); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(index) != 3 {
		t.Fatalf("expected three indexed runs, got %d", len(index))
	}

	out = mustRunCLI(t, withStore("runs", "--trend")...)
	if !strings.Contains(out, " runs=3 ") {
		t.Fatalf("unexpected trend output:\n%s", out)
	}
}
