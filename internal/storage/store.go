package storage

import (
	"context"
	"errors"

	"arenaevo/internal/model"
)

var (
	ErrNotInitialized     = errors.New("store is not initialized")
	ErrUnsupportedBackend = errors.New("unsupported store backend")
)

// Store persists winning bots and run summaries. ListBots returns the best
// scoring bots first; an empty game lists every game.
type Store interface {
	Init(ctx context.Context) error
	SaveBot(ctx context.Context, bot model.BotRecord) error
	GetBot(ctx context.Context, id string) (model.BotRecord, bool, error)
	ListBots(ctx context.Context, game string, limit int) ([]model.BotRecord, error)
	SaveRun(ctx context.Context, run model.RunSummary) error
	GetRun(ctx context.Context, id string) (model.RunSummary, bool, error)
}
