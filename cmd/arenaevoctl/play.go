package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"arenaevo/internal/bot"
	"arenaevo/internal/config"
	"arenaevo/internal/game"
	"arenaevo/internal/model"
	"arenaevo/internal/platform"
)

// matchFlags select the game, the pairing and how matches are played.
type matchFlags struct {
	game  *string
	bot1  *string
	bot2  *string
	batch *int
	magic *bool
	seed  *int64
}

func addMatchFlags(fs *flag.FlagSet, defaults config.Profile) *matchFlags {
	return &matchFlags{
		game:  fs.String("game", defaults.Game, "game: naughts|connect4"),
		bot1:  fs.String("bot1", defaults.Bot1, "first bot: random|circuit|network|oracle|human"),
		bot2:  fs.String("bot2", defaults.Bot2, "second bot"),
		batch: fs.Int("batch", 0, "play N single-path matches"),
		magic: fs.Bool("magic", false, "play one exhaustive traversal of every oracle response"),
		seed:  fs.Int64("seed", 1, "rng seed"),
	}
}

// seedFlags pick the starting recipe of the evolved side and whether
// improvements are stored.
type seedFlags struct {
	botID  *string
	recipe *string
	botDB  *bool
	save   *string
}

func addSeedFlags(fs *flag.FlagSet) *seedFlags {
	return &seedFlags{
		botID:  fs.String("botid", "", "seed the evolved side with this stored bot"),
		recipe: fs.String("recipe", "", "seed the evolved side with the recipe in this file"),
		botDB:  fs.Bool("botdb", false, "store every improving recipe as a bot"),
		save:   fs.String("save-recipe", "", "write the best recipe to this file"),
	}
}

func (s *seedFlags) apply(req *platform.RunRequest) error {
	if *s.botID != "" && *s.recipe != "" {
		return errors.New("use either --botid or --recipe, not both")
	}
	req.SeedBotID = *s.botID
	req.Persist = req.Persist || *s.botDB
	if *s.recipe != "" {
		data, err := os.ReadFile(*s.recipe)
		if err != nil {
			return fmt.Errorf("read seed recipe: %w", err)
		}
		req.SeedRecipe = strings.TrimSpace(string(data))
	}
	return nil
}

// validatePlayFlags enforces the argument rules of the play command.
func validatePlayFlags(set map[string]bool, magic bool) error {
	if magic && set["batch"] {
		return errors.New("--magic cannot be combined with --batch")
	}
	for _, name := range []string{"genetic", "samples", "keep", "wild"} {
		if set[name] && !set["batch"] && !magic {
			return fmt.Errorf("--%s requires --batch or --magic", name)
		}
	}
	for _, name := range []string{"samples", "keep", "wild"} {
		if set[name] && !set["genetic"] {
			return fmt.Errorf("--%s requires --genetic", name)
		}
	}
	return nil
}

func runPlay(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	common := addCommonFlags(fs)
	defaults := config.DefaultProfile()
	match := addMatchFlags(fs, defaults)
	botID1 := fs.String("botid1", "", "load the first bot from the store")
	botID2 := fs.String("botid2", "", "load the second bot from the store")
	genetic := fs.Int("genetic", 0, "evolve the genetic side for N generations")
	samples := fs.Int("samples", defaults.Samples, "candidates per survivor each generation")
	keep := fs.Int("keep", defaults.Keep, "survivors kept between generations")
	wild := fs.Int("wild", 0, "fresh random candidates added each generation")
	seeds := addSeedFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	set := setFlags(fs)
	if err := validatePlayFlags(set, *match.magic); err != nil {
		return err
	}
	if set["batch"] && *match.batch < 1 {
		return errors.New("--batch must be > 0")
	}
	s, err := common.settings()
	if err != nil {
		return err
	}

	if set["genetic"] {
		if *genetic < 1 {
			return errors.New("--genetic must be > 0")
		}
		req := platform.RunRequest{Config: model.RunConfig{
			Game:        *match.game,
			Bots:        [2]string{*match.bot1, *match.bot2},
			Mode:        config.ModeGenetic,
			BatchSize:   *match.batch,
			Exhaustive:  *match.magic,
			Generations: *genetic,
			Samples:     *samples,
			Keep:        *keep,
			Wild:        *wild,
			Workers:     s.Workers,
			Seed:        *match.seed,
		}}
		if err := seeds.apply(&req); err != nil {
			return err
		}
		return evolve(ctx, s, req, *seeds.save, out)
	}

	e, err := openEnv(ctx, s, &bot.Console{In: in, Out: out})
	if err != nil {
		return err
	}
	defer e.close()
	req := platform.MatchRequest{
		Game:       *match.game,
		Bots:       [2]string{*match.bot1, *match.bot2},
		BotIDs:     [2]string{*botID1, *botID2},
		Batch:      *match.batch,
		Exhaustive: *match.magic,
		Seed:       *match.seed,
	}
	if req.BotIDs[0] != "" && !set["bot1"] {
		req.Bots[0] = ""
	}
	if req.BotIDs[1] != "" && !set["bot2"] {
		req.Bots[1] = ""
	}
	outcome, err := e.arena.PlayMatch(ctx, req, out)
	if err != nil {
		return err
	}
	printOutcome(out, outcome)
	return nil
}

func runEvolve(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("evolve", flag.ContinueOnError)
	common := addCommonFlags(fs)
	profilePath := fs.String("profile", "", "evolution profile (.ini or .yaml)")
	seed := fs.Int64("seed", 0, "rng seed (overrides the profile)")
	seeds := addSeedFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *profilePath == "" {
		return errors.New("evolve requires --profile")
	}
	p, err := config.LoadProfile(*profilePath)
	if err != nil {
		return err
	}
	set := setFlags(fs)
	if set["seed"] {
		p.Seed = *seed
	}
	s, err := common.settings()
	if err != nil {
		return err
	}
	if p.Workers > 0 && !set["workers"] {
		s.Workers = p.Workers
	}
	req := platform.RunRequest{Config: profileRunConfig(p, s.Workers), Persist: p.BotDB}
	if !set["botid"] && !set["recipe"] {
		*seeds.botID = p.BotID
	}
	if err := seeds.apply(&req); err != nil {
		return err
	}
	return evolve(ctx, s, req, *seeds.save, out)
}

func profileRunConfig(p config.Profile, workers int) model.RunConfig {
	batch := p.Batch
	if p.Magic {
		batch = 0
	}
	return model.RunConfig{
		Game:           p.Game,
		Bots:           [2]string{p.Bot1, p.Bot2},
		Mode:           p.Mode,
		BatchSize:      batch,
		Exhaustive:     p.Magic,
		Generations:    p.Generations,
		Samples:        p.Samples,
		Keep:           p.Keep,
		Wild:           p.Wild,
		Workers:        workers,
		Seed:           p.Seed,
		ChildLimit:     p.ChildLimit,
		MaxEvaluations: p.MaxEvaluations,
	}
}

func runClimb(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("climb", flag.ContinueOnError)
	common := addCommonFlags(fs)
	defaults := config.DefaultProfile()
	match := addMatchFlags(fs, defaults)
	childLimit := fs.Int("child-limit", defaults.ChildLimit, "children tried per sample before it is dropped")
	maxEvaluations := fs.Int("max-evaluations", 0, "stop after N evaluations (0 runs until the stack empties or interrupted)")
	seeds := addSeedFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	set := setFlags(fs)
	if *match.magic && set["batch"] {
		return errors.New("--magic cannot be combined with --batch")
	}
	if !*match.magic && !set["batch"] {
		return errors.New("climb requires --batch or --magic")
	}
	s, err := common.settings()
	if err != nil {
		return err
	}
	req := platform.RunRequest{Config: model.RunConfig{
		Game:           *match.game,
		Bots:           [2]string{*match.bot1, *match.bot2},
		Mode:           config.ModeClimb,
		BatchSize:      *match.batch,
		Exhaustive:     *match.magic,
		Workers:        s.Workers,
		Seed:           *match.seed,
		ChildLimit:     *childLimit,
		MaxEvaluations: *maxEvaluations,
	}}
	if err := seeds.apply(&req); err != nil {
		return err
	}
	return evolve(ctx, s, req, *seeds.save, out)
}

// evolve runs req to completion, prints its summary and optionally saves the
// best recipe.
func evolve(ctx context.Context, s config.Settings, req platform.RunRequest, savePath string, out io.Writer) error {
	e, err := openEnv(ctx, s, nil)
	if err != nil {
		return err
	}
	defer e.close()

	summary, err := e.arena.RunEvolution(ctx, req)
	if summary.ID != "" {
		printSummary(out, summary)
	}
	if err != nil {
		return err
	}
	if savePath != "" && len(summary.Survivors) > 0 {
		if err := os.WriteFile(savePath, []byte(summary.Survivors[0].Recipe+"\n"), 0o644); err != nil {
			return fmt.Errorf("save recipe: %w", err)
		}
		fmt.Fprintf(out, "best recipe written to %s\n", savePath)
	}
	return nil
}

func printOutcome(out io.Writer, o platform.MatchOutcome) {
	identities := [2]string{"1", "2"}
	if g, err := game.New(o.Game); err == nil {
		identities = g.Info().Identities
	}
	label := func(side int) string {
		return fmt.Sprintf("%s (%s)", identities[side], o.Bots[side].Kind)
	}

	if o.Result != nil {
		r := *o.Result
		switch {
		case r.Disqualified >= 0:
			fmt.Fprintf(out, "%s was disqualified, %s wins\n", label(r.Disqualified), label(r.Winner))
		case r.Tie():
			fmt.Fprintln(out, "draw")
		default:
			fmt.Fprintf(out, "%s wins in %d turns\n", label(r.Winner), r.Turns[r.Winner])
		}
		fmt.Fprintf(out, "scores: %s %.2f, %s %.2f\n", label(0), r.Scores[0], label(1), r.Scores[1])
		return
	}

	kind := "matches"
	if o.Record.Exhaustive {
		kind = "leaves"
	}
	fmt.Fprintf(out, "%s: %s %s\n", o.Mode, humanize.Comma(int64(o.Record.Matches)), kind)
	for side := range o.Means {
		fmt.Fprintf(out, "%s: mean %.3f wins %d losses %d disqualified %d\n",
			label(side), o.Means[side], o.Record.Wins[side], o.Record.Losses(side), o.Record.Disqualifications[side])
	}
	fmt.Fprintf(out, "draws: %d\n", o.Record.Draws)
}

func printSummary(out io.Writer, summary model.RunSummary) {
	fmt.Fprintf(out, "run %s %s: %s, %s reports, threshold %.3f\n",
		summary.ID, summary.Config.Mode, summary.Status,
		humanize.Comma(int64(len(summary.Generations))), summary.Threshold)
	if summary.Error != "" {
		fmt.Fprintf(out, "error: %s\n", summary.Error)
	}
	for i, s := range summary.Survivors {
		fmt.Fprintf(out, "%d. %s score=%.3f generation=%d\n   %s\n", i+1, s.Kind, s.Score, s.Generation, s.Recipe)
	}
}
