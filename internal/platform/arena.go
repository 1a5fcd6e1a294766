package platform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"arenaevo/internal/bot"
	"arenaevo/internal/evo"
	"arenaevo/internal/game"
	"arenaevo/internal/model"
	"arenaevo/internal/stats"
	"arenaevo/internal/storage"
)

var (
	ErrNotStarted   = errors.New("arena is not initialized")
	ErrUnknownBot   = errors.New("bot not found")
	ErrRunNotFound  = errors.New("run not found")
	ErrKindMismatch = errors.New("bot kind mismatch")
)

const (
	RunStatusRunning  = "running"
	RunStatusComplete = "complete"
	RunStatusFailed   = "failed"
	RunStatusStopped  = "stopped"
)

type Config struct {
	Store        storage.Store
	Logger       *zap.SugaredLogger
	Workers      int
	ArtifactsDir string
	ScoreLog     *stats.ScoreLog
	Console      *bot.Console
	Now          func() time.Time
}

// Arena owns the store, the listeners and every run in flight. Games and bots
// are resolved through their registries on each request.
type Arena struct {
	store storage.Store
	log   *zap.SugaredLogger
	cfg   Config

	mu        sync.RWMutex
	started   bool
	runs      map[string]*runHandle
	listeners map[int]evo.Listener
	nextSub   int
	wg        sync.WaitGroup
}

type runHandle struct {
	summary model.RunSummary
	cancel  context.CancelFunc
}

func NewArena(cfg Config) *Arena {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = evo.DefaultWorkers
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Arena{
		store:     cfg.Store,
		log:       log,
		cfg:       cfg,
		runs:      make(map[string]*runHandle),
		listeners: make(map[int]evo.Listener),
	}
}

func (a *Arena) Init(ctx context.Context) error {
	if a.store == nil {
		return fmt.Errorf("store is required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return nil
	}
	if err := a.store.Init(ctx); err != nil {
		return err
	}
	a.started = true
	return nil
}

func (a *Arena) Started() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.started
}

// Stop cancels every run in flight and waits for background runs to record
// their summaries.
func (a *Arena) Stop() {
	a.mu.Lock()
	for _, h := range a.runs {
		if h.cancel != nil {
			h.cancel()
		}
	}
	a.started = false
	a.mu.Unlock()
	a.wg.Wait()
}

func (a *Arena) Store() storage.Store { return a.store }

func (a *Arena) Logger() *zap.SugaredLogger { return a.log }

// Subscribe registers l for generation reports of every run until the
// returned function is called.
func (a *Arena) Subscribe(l evo.Listener) func() {
	a.mu.Lock()
	id := a.nextSub
	a.nextSub++
	a.listeners[id] = l
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

func (a *Arena) OnGeneration(report model.GenerationReport) {
	a.mu.Lock()
	if h, ok := a.runs[report.RunID]; ok {
		h.summary.Generations = append(h.summary.Generations, report)
		h.summary.Threshold = report.Threshold
	}
	subscribers := make([]evo.Listener, 0, len(a.listeners))
	ids := make([]int, 0, len(a.listeners))
	for id := range a.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		subscribers = append(subscribers, a.listeners[id])
	}
	a.mu.Unlock()

	for _, l := range subscribers {
		l.OnGeneration(report)
	}
}

// Games lists the registered games.
func (a *Arena) Games() []game.Info {
	names := game.Names()
	out := make([]game.Info, 0, len(names))
	for _, name := range names {
		g, err := game.New(name)
		if err != nil {
			continue
		}
		out = append(out, g.Info())
	}
	return out
}

func (a *Arena) ListBots(ctx context.Context, gameName string, limit int) ([]model.BotRecord, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	return a.store.ListBots(ctx, gameName, limit)
}

func (a *Arena) GetBot(ctx context.Context, id string) (model.BotRecord, error) {
	if err := a.ready(); err != nil {
		return model.BotRecord{}, err
	}
	record, ok, err := a.store.GetBot(ctx, id)
	if err != nil {
		return model.BotRecord{}, err
	}
	if !ok {
		return model.BotRecord{}, fmt.Errorf("%w: %s", ErrUnknownBot, id)
	}
	return record, nil
}

// GetRun returns a run in flight from memory and a finished run from the
// store.
func (a *Arena) GetRun(ctx context.Context, id string) (model.RunSummary, error) {
	if err := a.ready(); err != nil {
		return model.RunSummary{}, err
	}
	a.mu.RLock()
	h, ok := a.runs[id]
	var summary model.RunSummary
	if ok {
		summary = copySummary(h.summary)
	}
	a.mu.RUnlock()
	if ok {
		return summary, nil
	}

	stored, found, err := a.store.GetRun(ctx, id)
	if err != nil {
		return model.RunSummary{}, err
	}
	if !found {
		return model.RunSummary{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return stored, nil
}

func (a *Arena) ready() error {
	if !a.Started() {
		return ErrNotStarted
	}
	return nil
}

func copySummary(s model.RunSummary) model.RunSummary {
	s.Generations = append([]model.GenerationReport(nil), s.Generations...)
	s.Survivors = append([]model.Survivor(nil), s.Survivors...)
	return s
}
