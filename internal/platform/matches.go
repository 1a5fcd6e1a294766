package platform

import (
	"context"
	"fmt"
	"io"
	"math/rand"

	"github.com/dustin/go-humanize"

	"arenaevo/internal/bot"
	"arenaevo/internal/fitness"
	"arenaevo/internal/game"
	"arenaevo/internal/match"
)

const (
	ModeSingle     = "single"
	ModeBatch      = "batch"
	ModeExhaustive = "exhaustive"
)

// MatchRequest selects a pairing and how to play it. BotIDs, when set for a
// side, load that side's recipe from the store.
type MatchRequest struct {
	Game       string    `json:"game"`
	Bots       [2]string `json:"bots"`
	BotIDs     [2]string `json:"bot_ids,omitempty"`
	Batch      int       `json:"batch"`
	Exhaustive bool      `json:"exhaustive"`
	Seed       int64     `json:"seed"`
}

func (r MatchRequest) Mode() string {
	switch {
	case r.Exhaustive:
		return ModeExhaustive
	case r.Batch > 0:
		return ModeBatch
	default:
		return ModeSingle
	}
}

type MatchOutcome struct {
	Game   string         `json:"game"`
	Mode   string         `json:"mode"`
	Bots   [2]bot.Spec    `json:"bots"`
	Result *game.Result   `json:"result,omitempty"`
	Record fitness.Record `json:"record"`
	Means  [2]float64     `json:"means"`
}

// PlayMatch runs one match, a batch of single-path matches or one exhaustive
// traversal. A single match renders its final board to board when it is not
// nil.
func (a *Arena) PlayMatch(ctx context.Context, req MatchRequest, board io.Writer) (MatchOutcome, error) {
	if err := a.ready(); err != nil {
		return MatchOutcome{}, err
	}
	factory, err := game.Lookup(req.Game)
	if err != nil {
		return MatchOutcome{}, err
	}
	info := factory().Info()
	specs, err := a.resolveSpecs(ctx, info.Name, req.Bots, req.BotIDs)
	if err != nil {
		return MatchOutcome{}, err
	}
	out := MatchOutcome{Game: info.Name, Mode: req.Mode(), Bots: specs}

	if out.Mode == ModeSingle {
		g := factory()
		bots := bot.Factory{Info: info, Console: a.cfg.Console, Logger: a.log}
		if a.cfg.Console != nil {
			a.cfg.Console.Board = g
		}
		rng := rand.New(rand.NewSource(req.Seed))
		var players [2]bot.Player
		for side, spec := range specs {
			if players[side], err = bots.Build(spec, side, rng); err != nil {
				return MatchOutcome{}, err
			}
		}
		result, err := match.Play(ctx, g, players)
		if err != nil {
			return MatchOutcome{}, err
		}
		if board != nil {
			if err := game.Render(board, g); err != nil {
				return MatchOutcome{}, fmt.Errorf("render board: %w", err)
			}
		}
		out.Result = &result
		out.Record.Add(result)
	} else {
		eval := &fitness.Evaluator{
			Game:       factory,
			Bots:       bot.Factory{Info: info, Logger: a.log},
			BatchSize:  req.Batch,
			Exhaustive: req.Exhaustive,
			Workers:    a.cfg.Workers,
		}
		if out.Record, err = eval.Evaluate(ctx, specs, req.Seed); err != nil {
			return MatchOutcome{}, err
		}
	}

	for side := range out.Means {
		out.Means[side] = out.Record.Mean(side)
	}
	a.log.Infow("match finished",
		"game", info.Name,
		"mode", out.Mode,
		"bots", fmt.Sprintf("%s vs %s", specs[0], specs[1]),
		"matches", humanize.Comma(int64(out.Record.Matches)),
		"mean", out.Means,
	)
	return out, nil
}

// resolveSpecs turns bot names and stored bot ids into specs for gameName.
// A stored bot must have been evolved for the same game.
func (a *Arena) resolveSpecs(ctx context.Context, gameName string, names, ids [2]string) ([2]bot.Spec, error) {
	var specs [2]bot.Spec
	for side := range specs {
		if ids[side] == "" {
			spec, err := bot.ParseSpec(names[side])
			if err != nil {
				return specs, err
			}
			specs[side] = spec
			continue
		}
		record, err := a.GetBot(ctx, ids[side])
		if err != nil {
			return specs, err
		}
		if record.Game != gameName {
			return specs, fmt.Errorf("%w: stored bot %s plays %s, not %s", ErrKindMismatch, record.ID, record.Game, gameName)
		}
		spec, err := bot.ParseSpec(record.Kind)
		if err != nil {
			return specs, fmt.Errorf("stored bot %s: %w", record.ID, err)
		}
		if names[side] != "" {
			named, err := bot.ParseSpec(names[side])
			if err != nil {
				return specs, err
			}
			if named.Kind != spec.Kind {
				return specs, fmt.Errorf("%w: stored bot %s is a %s, not a %s", ErrKindMismatch, record.ID, spec.Kind, named.Kind)
			}
		}
		spec.Recipe = record.Recipe
		specs[side] = spec
	}
	return specs, nil
}
