package platform

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"arenaevo/internal/bot"
	"arenaevo/internal/config"
	"arenaevo/internal/evo"
	"arenaevo/internal/fitness"
	"arenaevo/internal/game"
	"arenaevo/internal/model"
	"arenaevo/internal/stats"
	"arenaevo/internal/storage"
)

// RunRequest launches an evolution or a climb. SeedBotID loads the starting
// recipe of the evolved side from the store and SeedRecipe supplies one
// directly; at most one may be set. Persist saves every improving recipe as
// a bot.
type RunRequest struct {
	ID         string          `json:"id,omitempty"`
	Config     model.RunConfig `json:"config"`
	SeedBotID  string          `json:"seed_bot_id,omitempty"`
	SeedRecipe string          `json:"seed_recipe,omitempty"`
	Persist    bool            `json:"persist"`
}

// RunEvolution runs to completion and returns the stored summary.
func (a *Arena) RunEvolution(ctx context.Context, req RunRequest) (model.RunSummary, error) {
	prepared, err := a.prepare(ctx, req)
	if err != nil {
		return model.RunSummary{}, err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := a.register(prepared, cancel); err != nil {
		return model.RunSummary{}, err
	}
	return a.execute(ctx, prepared)
}

// StartRun validates req, starts it in the background and returns its id.
// The run outlives ctx; Stop cancels it.
func (a *Arena) StartRun(ctx context.Context, req RunRequest) (string, error) {
	prepared, err := a.prepare(ctx, req)
	if err != nil {
		return "", err
	}
	runCtx, cancel := context.WithCancel(context.Background())
	if err := a.register(prepared, cancel); err != nil {
		cancel()
		return "", err
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer cancel()
		if _, err := a.execute(runCtx, prepared); err != nil {
			a.log.Errorw("background run failed", "run", prepared.id, "error", err)
		}
	}()
	return prepared.id, nil
}

type preparedRun struct {
	id      string
	cfg     model.RunConfig
	info    game.Info
	specs   [2]bot.Spec
	scorer  *fitness.Evaluator
	persist bool
}

func (a *Arena) prepare(ctx context.Context, req RunRequest) (preparedRun, error) {
	if err := a.ready(); err != nil {
		return preparedRun{}, err
	}
	cfg := req.Config
	if cfg.Mode == "" {
		cfg.Mode = config.ModeGenetic
	}
	if cfg.Mode != config.ModeGenetic && cfg.Mode != config.ModeClimb {
		return preparedRun{}, fmt.Errorf("%w: mode %q", evo.ErrInvalidConfig, cfg.Mode)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = a.cfg.Workers
	}
	if cfg.Mode == config.ModeGenetic && (cfg.Generations < 1 || cfg.Samples < 1 || cfg.Keep < 1) {
		return preparedRun{}, fmt.Errorf("%w: generations, samples and keep must be > 0", evo.ErrInvalidConfig)
	}
	if !cfg.Exhaustive && cfg.BatchSize < 1 {
		return preparedRun{}, fmt.Errorf("%w: batch size must be > 0 unless exhaustive", evo.ErrInvalidConfig)
	}
	factory, err := game.Lookup(cfg.Game)
	if err != nil {
		return preparedRun{}, err
	}
	info := factory().Info()
	cfg.Game = info.Name

	var ids [2]string
	specs, err := a.resolveSpecs(ctx, info.Name, cfg.Bots, ids)
	if err != nil {
		return preparedRun{}, err
	}
	side, err := evo.GeneticSide(specs, a.log)
	if err != nil {
		return preparedRun{}, err
	}
	cfg.SubjectSide = side
	if req.SeedBotID != "" && req.SeedRecipe != "" {
		return preparedRun{}, fmt.Errorf("%w: seed bot and seed recipe are mutually exclusive", evo.ErrInvalidConfig)
	}
	specs[side].Recipe = req.SeedRecipe
	if req.SeedBotID != "" {
		record, err := a.GetBot(ctx, req.SeedBotID)
		if err != nil {
			return preparedRun{}, err
		}
		if record.Kind != string(specs[side].Kind) || record.Game != info.Name {
			return preparedRun{}, fmt.Errorf("%w: seed bot %s is a %s %s bot, run needs %s %s", ErrKindMismatch, record.ID, record.Game, record.Kind, info.Name, specs[side].Kind)
		}
		specs[side].Recipe = record.Recipe
	}
	if specs[side].Recipe != "" {
		seedCheck := bot.Factory{Info: info, Logger: a.log}
		if _, err := seedCheck.Build(specs[side], side, rand.New(rand.NewSource(cfg.Seed))); err != nil {
			return preparedRun{}, fmt.Errorf("%w: seed: %w", evo.ErrInvalidConfig, err)
		}
	}

	// Candidates are evaluated in parallel; each batch stays sequential.
	scorer := &fitness.Evaluator{
		Game:       factory,
		Bots:       bot.Factory{Info: info, Logger: a.log},
		BatchSize:  cfg.BatchSize,
		Exhaustive: cfg.Exhaustive,
		Workers:    1,
	}
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	return preparedRun{id: id, cfg: cfg, info: info, specs: specs, scorer: scorer, persist: req.Persist}, nil
}

func (a *Arena) register(run preparedRun, cancel context.CancelFunc) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.runs[run.id]; exists {
		return fmt.Errorf("run %s is already in flight", run.id)
	}
	a.runs[run.id] = &runHandle{
		cancel: cancel,
		summary: model.RunSummary{
			VersionedRecord: storage.CurrentVersion(),
			ID:              run.id,
			Config:          run.cfg,
			Status:          RunStatusRunning,
			Threshold:       evo.InitialThreshold,
			StartedAt:       a.cfg.Now().UTC(),
		},
	}
	return nil
}

func (a *Arena) execute(ctx context.Context, run preparedRun) (model.RunSummary, error) {
	defer func() {
		a.mu.Lock()
		delete(a.runs, run.id)
		a.mu.Unlock()
	}()

	var sinks evo.Sinks
	if a.cfg.ScoreLog != nil {
		sinks = append(sinks, evo.ScoreLogSink{Log: a.cfg.ScoreLog})
	}
	if run.persist {
		sinks = append(sinks, evo.StoreSink{Store: a.store, Now: a.cfg.Now})
	}
	evoCfg := evo.Config{
		RunID:       run.id,
		Info:        run.info,
		Bots:        run.specs,
		Scorer:      run.scorer,
		Generations: run.cfg.Generations,
		Samples:     run.cfg.Samples,
		Keep:        run.cfg.Keep,
		Wild:        run.cfg.Wild,
		Workers:     run.cfg.Workers,
		Seed:        run.cfg.Seed,
		Logger:      a.log.With("run", run.id),
		Listeners:   []evo.Listener{a},
		Sink:        sinks,
	}

	a.log.Infow("run started", "run", run.id, "mode", run.cfg.Mode, "game", run.cfg.Game, "bots", run.specs)
	var (
		survivors []model.Survivor
		threshold = evo.InitialThreshold
		runErr    error
	)
	kind := string(run.specs[run.cfg.SubjectSide].Kind)
	switch run.cfg.Mode {
	case config.ModeClimb:
		climber, err := evo.NewClimber(evoCfg, evo.ClimbLimits{ChildLimit: run.cfg.ChildLimit, MaxEvaluations: run.cfg.MaxEvaluations})
		if err != nil {
			runErr = err
			break
		}
		res, err := climber.Run(ctx)
		runErr = err
		if res.Found {
			survivors = []model.Survivor{{Kind: kind, Recipe: res.Best.Recipe, Score: res.Best.Score, Generation: res.Best.Generation}}
			threshold = res.Best.Score
		}
	default:
		loop, err := evo.NewLoop(evoCfg)
		if err != nil {
			runErr = err
			break
		}
		res, err := loop.Run(ctx)
		runErr = err
		for _, s := range res.Survivors {
			survivors = append(survivors, model.Survivor{Kind: kind, Recipe: s.Recipe, Score: s.Score, Generation: s.Generation})
		}
		threshold = res.Threshold
	}

	a.mu.Lock()
	summary := copySummary(a.runs[run.id].summary)
	a.mu.Unlock()
	summary.Survivors = survivors
	summary.Threshold = threshold
	summary.FinishedAt = a.cfg.Now().UTC()
	switch {
	case runErr == nil:
		summary.Status = RunStatusComplete
	case errors.Is(runErr, context.Canceled):
		summary.Status = RunStatusStopped
		summary.Error = runErr.Error()
	default:
		summary.Status = RunStatusFailed
		summary.Error = runErr.Error()
	}

	// The store write must not be lost to the run's own cancellation.
	if err := a.store.SaveRun(context.WithoutCancel(ctx), summary); err != nil {
		return summary, fmt.Errorf("save run %s: %w", run.id, err)
	}
	if a.cfg.ArtifactsDir != "" {
		if err := a.writeArtifacts(summary); err != nil {
			return summary, err
		}
	}
	a.log.Infow("run finished", "run", run.id, "status", summary.Status, "survivors", len(summary.Survivors), "threshold", summary.Threshold)
	if runErr != nil && summary.Status == RunStatusFailed {
		return summary, runErr
	}
	return summary, nil
}

func (a *Arena) writeArtifacts(summary model.RunSummary) error {
	if _, err := stats.WriteRunArtifacts(a.cfg.ArtifactsDir, stats.RunArtifacts{
		RunID:       summary.ID,
		Config:      summary.Config,
		Generations: summary.Generations,
		Survivors:   summary.Survivors,
	}); err != nil {
		return fmt.Errorf("write run artifacts: %w", err)
	}
	best := evo.InitialThreshold
	for _, s := range summary.Survivors {
		if s.Score > best {
			best = s.Score
		}
	}
	return stats.AppendRunIndex(a.cfg.ArtifactsDir, stats.RunIndexEntry{
		RunID:        summary.ID,
		Game:         summary.Config.Game,
		Mode:         summary.Config.Mode,
		Generations:  len(summary.Generations),
		Seed:         summary.Config.Seed,
		Workers:      summary.Config.Workers,
		BestScore:    best,
		CreatedAtUTC: summary.StartedAt.Format(time.RFC3339Nano),
	})
}
