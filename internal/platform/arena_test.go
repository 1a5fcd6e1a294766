package platform

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"arenaevo/internal/bot"
	"arenaevo/internal/config"
	"arenaevo/internal/evo"
	"arenaevo/internal/game"
	"arenaevo/internal/genome"
	"arenaevo/internal/model"
	"arenaevo/internal/stats"
	"arenaevo/internal/storage"
)

func newArena(t *testing.T, cfg Config) *Arena {
	t.Helper()
	if cfg.Store == nil {
		cfg.Store = storage.NewMemoryStore()
	}
	if cfg.Logger == nil {
		cfg.Logger = zaptest.NewLogger(t).Sugar()
	}
	a := NewArena(cfg)
	if err := a.Init(context.Background()); err != nil {
		t.Fatalf("init arena: %v", err)
	}
	t.Cleanup(a.Stop)
	return a
}

func storedCircuit(t *testing.T, a *Arena, id string) model.BotRecord {
	t.Helper()
	return storedCircuitFor(t, a, id, game.NaughtsName)
}

func storedCircuitFor(t *testing.T, a *Arena, id, gameName string) model.BotRecord {
	t.Helper()
	g0, err := game.New(gameName)
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	info := g0.Info()
	g, err := genome.New(genome.KindCircuit, genome.Shape{Inputs: info.InputCount, Outputs: info.OutputCount}, rand.New(rand.NewSource(8)))
	if err != nil {
		t.Fatalf("new genome: %v", err)
	}
	recipe, err := g.Recipe()
	if err != nil {
		t.Fatalf("recipe: %v", err)
	}
	record := model.BotRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              id,
		Name:            "stored",
		Game:            info.Name,
		Kind:            string(bot.KindCircuit),
		Recipe:          recipe,
		Score:           3,
		CreatedAt:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := a.Store().SaveBot(context.Background(), record); err != nil {
		t.Fatalf("save bot: %v", err)
	}
	return record
}

func genericRun() model.RunConfig {
	return model.RunConfig{
		Game:        game.NaughtsName,
		Bots:        [2]string{"genbot3", "random"},
		Mode:        config.ModeGenetic,
		BatchSize:   2,
		Generations: 2,
		Samples:     2,
		Keep:        2,
		Workers:     2,
		Seed:        5,
	}
}

func TestArenaRequiresInit(t *testing.T) {
	a := NewArena(Config{Store: storage.NewMemoryStore()})
	if _, err := a.PlayMatch(context.Background(), MatchRequest{Game: game.NaughtsName}, nil); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
	if err := NewArena(Config{}).Init(context.Background()); err == nil {
		t.Fatal("expected error without a store")
	}
}

func TestPlayMatchSingleRendersBoard(t *testing.T) {
	a := newArena(t, Config{})
	var board bytes.Buffer
	out, err := a.PlayMatch(context.Background(), MatchRequest{Game: "Naughts", Bots: [2]string{"circuit", "randombot"}, Seed: 1}, &board)
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if out.Mode != ModeSingle || out.Result == nil || out.Record.Matches != 1 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if strings.Count(board.String(), "\n") < 5 {
		t.Fatalf("board not rendered:\n%s", board.String())
	}
}

func TestPlayMatchBatchAndExhaustive(t *testing.T) {
	a := newArena(t, Config{Workers: 3})
	out, err := a.PlayMatch(context.Background(), MatchRequest{Game: game.Connect4Name, Bots: [2]string{"random", "random"}, Batch: 10, Seed: 2}, nil)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if out.Mode != ModeBatch || out.Record.Matches != 10 || out.Result != nil {
		t.Fatalf("unexpected batch outcome %+v", out)
	}

	stored := storedCircuit(t, a, "seed-bot")
	out, err = a.PlayMatch(context.Background(), MatchRequest{
		Game:       game.NaughtsName,
		Bots:       [2]string{"", "magic"},
		BotIDs:     [2]string{stored.ID, ""},
		Exhaustive: true,
	}, nil)
	if err != nil {
		t.Fatalf("exhaustive: %v", err)
	}
	if out.Mode != ModeExhaustive || !out.Record.Exhaustive || out.Record.Matches < 2 {
		t.Fatalf("unexpected exhaustive outcome %+v", out.Record)
	}
	if out.Bots[0].Recipe != stored.Recipe || out.Bots[1].Kind != bot.KindOracle {
		t.Fatalf("stored recipe not used: %+v", out.Bots)
	}
}

func TestPlayMatchRejectsMismatchedStoredBot(t *testing.T) {
	a := newArena(t, Config{Workers: 4})
	stored := storedCircuit(t, a, "circuit-bot")
	_, err := a.PlayMatch(context.Background(), MatchRequest{
		Game:   game.NaughtsName,
		Bots:   [2]string{"network", "random"},
		BotIDs: [2]string{stored.ID, ""},
	}, nil)
	if !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("expected ErrKindMismatch, got %v", err)
	}
	c4 := storedCircuitFor(t, a, "connect4-bot", game.Connect4Name)
	for _, batch := range []int{0, 8} {
		_, err = a.PlayMatch(context.Background(), MatchRequest{
			Game:   game.NaughtsName,
			BotIDs: [2]string{c4.ID, ""},
			Bots:   [2]string{"", "random"},
			Batch:  batch,
		}, nil)
		if !errors.Is(err, ErrKindMismatch) {
			t.Fatalf("batch %d: expected ErrKindMismatch for a connect4 bot, got %v", batch, err)
		}
	}
	mislabelled := c4
	mislabelled.ID = "mislabelled"
	mislabelled.Game = game.NaughtsName
	if err := a.Store().SaveBot(context.Background(), mislabelled); err != nil {
		t.Fatalf("save bot: %v", err)
	}
	_, err = a.PlayMatch(context.Background(), MatchRequest{
		Game:   game.NaughtsName,
		BotIDs: [2]string{mislabelled.ID, ""},
		Bots:   [2]string{"", "random"},
		Batch:  8,
	}, nil)
	if !errors.Is(err, genome.ErrInputMismatch) {
		t.Fatalf("expected ErrInputMismatch for a mis-sized recipe, got %v", err)
	}
	_, err = a.PlayMatch(context.Background(), MatchRequest{Game: game.NaughtsName, BotIDs: [2]string{"missing", ""}}, nil)
	if !errors.Is(err, ErrUnknownBot) {
		t.Fatalf("expected ErrUnknownBot, got %v", err)
	}
}

type reportCollector struct {
	mu      sync.Mutex
	reports []model.GenerationReport
}

func (c *reportCollector) OnGeneration(r model.GenerationReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, r)
}

func TestRunEvolutionPersistsEverything(t *testing.T) {
	dir := t.TempDir()
	scoreLogPath := filepath.Join(dir, "scores.csv")
	scoreLog, err := stats.OpenScoreLog(scoreLogPath)
	if err != nil {
		t.Fatalf("open score log: %v", err)
	}
	defer scoreLog.Close()
	artifacts := filepath.Join(dir, "runs")
	a := newArena(t, Config{ArtifactsDir: artifacts, ScoreLog: scoreLog})
	collector := &reportCollector{}
	unsubscribe := a.Subscribe(collector)
	defer unsubscribe()

	summary, err := a.RunEvolution(context.Background(), RunRequest{ID: "run-1", Config: genericRun(), Persist: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Status != RunStatusComplete || len(summary.Generations) != 2 || len(summary.Survivors) == 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Config.SubjectSide != 0 || summary.Survivors[0].Kind != string(bot.KindCircuit) {
		t.Fatalf("unexpected subject %+v", summary.Config)
	}
	if len(collector.reports) != 2 || collector.reports[0].RunID != "run-1" {
		t.Fatalf("listener saw %+v", collector.reports)
	}

	stored, err := a.GetRun(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if stored.Status != RunStatusComplete || stored.Threshold != summary.Threshold {
		t.Fatalf("stored summary %+v", stored)
	}
	bots, err := a.ListBots(context.Background(), game.NaughtsName, 0)
	if err != nil {
		t.Fatalf("list bots: %v", err)
	}
	if len(bots) == 0 || bots[0].RunID != "run-1" {
		t.Fatalf("no persisted bots: %+v", bots)
	}

	entries, err := stats.ReadScoreLog(scoreLogPath)
	if err != nil {
		t.Fatalf("read score log: %v", err)
	}
	if len(entries) != len(bots) {
		t.Fatalf("score log has %d entries, store has %d bots", len(entries), len(bots))
	}
	reports, ok, err := stats.ReadGenerations(artifacts, "run-1")
	if err != nil || !ok || len(reports) != 2 {
		t.Fatalf("artifacts reports=%d ok=%v err=%v", len(reports), ok, err)
	}
	index, err := stats.ListRunIndex(artifacts)
	if err != nil || len(index) != 1 || index[0].Mode != config.ModeGenetic {
		t.Fatalf("run index %+v err=%v", index, err)
	}
}

func TestRunEvolutionClimbMode(t *testing.T) {
	a := newArena(t, Config{})
	cfg := genericRun()
	cfg.Mode = config.ModeClimb
	cfg.MaxEvaluations = 6
	cfg.ChildLimit = 3
	summary, err := a.RunEvolution(context.Background(), RunRequest{Config: cfg})
	if err != nil {
		t.Fatalf("climb: %v", err)
	}
	if summary.Status != RunStatusComplete || len(summary.Survivors) != 1 || summary.ID == "" {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(summary.Generations) == 0 || summary.Threshold != summary.Survivors[0].Score {
		t.Fatalf("climb reports missing: %+v", summary)
	}
}

func TestRunEvolutionValidatesRequest(t *testing.T) {
	a := newArena(t, Config{})
	stored := storedCircuit(t, a, "circuit-seed")
	c4 := storedCircuitFor(t, a, "connect4-seed", game.Connect4Name)

	cases := map[string]RunRequest{
		"seed game":       {Config: genericRun(), SeedBotID: c4.ID},
		"seed size":       {Config: genericRun(), SeedRecipe: c4.Recipe},
		"no genetic side": {Config: func() model.RunConfig { c := genericRun(); c.Bots = [2]string{"random", "random"}; return c }()},
		"no batch":        {Config: func() model.RunConfig { c := genericRun(); c.BatchSize = 0; return c }()},
		"bad mode":        {Config: func() model.RunConfig { c := genericRun(); c.Mode = "sideways"; return c }()},
		"seed kind":       {Config: func() model.RunConfig { c := genericRun(); c.Bots[0] = "nbot1"; return c }(), SeedBotID: stored.ID},
		"unknown game":    {Config: func() model.RunConfig { c := genericRun(); c.Game = "chess"; return c }()},
	}
	for name, req := range cases {
		if _, err := a.RunEvolution(context.Background(), req); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := a.RunEvolution(context.Background(), cases["seed game"]); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("expected ErrKindMismatch, got %v", err)
	}
	if _, err := a.StartRun(context.Background(), cases["seed size"]); !errors.Is(err, genome.ErrInputMismatch) {
		t.Fatalf("expected ErrInputMismatch before the run starts, got %v", err)
	}
	if _, err := a.RunEvolution(context.Background(), cases["no genetic side"]); !errors.Is(err, evo.ErrNoGeneticSide) {
		t.Fatalf("expected ErrNoGeneticSide, got %v", err)
	}

	seeded, err := a.RunEvolution(context.Background(), RunRequest{Config: genericRun(), SeedBotID: stored.ID})
	if err != nil {
		t.Fatalf("seeded run: %v", err)
	}
	if seeded.Status != RunStatusComplete {
		t.Fatalf("seeded run status %s", seeded.Status)
	}
}

func waitForRun(t *testing.T, a *Arena, id string) model.RunSummary {
	t.Helper()
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		summary, err := a.GetRun(context.Background(), id)
		if err != nil {
			t.Fatalf("get run: %v", err)
		}
		if summary.Status != RunStatusRunning {
			return summary
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run %s did not finish", id)
	return model.RunSummary{}
}

func TestStartRunCompletesInBackground(t *testing.T) {
	a := newArena(t, Config{})
	id, err := a.StartRun(context.Background(), RunRequest{Config: genericRun()})
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	summary := waitForRun(t, a, id)
	if summary.Status != RunStatusComplete || len(summary.Generations) != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if _, err := a.GetRun(context.Background(), "nope"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestStopCancelsBackgroundRuns(t *testing.T) {
	store := storage.NewMemoryStore()
	a := newArena(t, Config{Store: store})
	cfg := genericRun()
	cfg.Generations = 100000
	cfg.BatchSize = 20
	id, err := a.StartRun(context.Background(), RunRequest{Config: cfg})
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	a.Stop()

	summary, ok, err := store.GetRun(context.Background(), id)
	if err != nil || !ok {
		t.Fatalf("stored run ok=%v err=%v", ok, err)
	}
	if summary.Status != RunStatusStopped || summary.Error == "" {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestGamesListsRegistry(t *testing.T) {
	a := newArena(t, Config{})
	games := a.Games()
	if len(games) != 2 || games[0].Name != game.Connect4Name || games[1].Name != game.NaughtsName {
		t.Fatalf("unexpected games %+v", games)
	}
}
