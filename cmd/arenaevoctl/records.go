package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"arenaevo/internal/model"
	"arenaevo/internal/stats"
)

func runBots(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("bots", flag.ContinueOnError)
	common := addCommonFlags(fs)
	gameName := fs.String("game", "", "only list bots for this game")
	limit := fs.Int("limit", 20, "max bots to list (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit bots as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := common.settings()
	if err != nil {
		return err
	}
	e, err := openEnv(ctx, s, nil)
	if err != nil {
		return err
	}
	defer e.close()

	bots, err := e.arena.ListBots(ctx, *gameName, *limit)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeIndentedJSON(out, bots)
	}
	if len(bots) == 0 {
		fmt.Fprintln(out, "no bots found")
		return nil
	}
	for _, b := range bots {
		fmt.Fprintf(out, "id=%s name=%s game=%s kind=%s score=%.3f generation=%d created=%s\n",
			b.ID, b.Name, b.Game, b.Kind, b.Score, b.Generation, humanize.Time(b.CreatedAt))
	}
	return nil
}

func runShow(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	common := addCommonFlags(fs)
	botID := fs.String("bot", "", "bot id")
	runID := fs.String("run", "", "run id")
	recipeOnly := fs.Bool("recipe", false, "print only the bot recipe")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if (*botID == "") == (*runID == "") {
		return errors.New("show requires exactly one of --bot or --run")
	}
	s, err := common.settings()
	if err != nil {
		return err
	}
	e, err := openEnv(ctx, s, nil)
	if err != nil {
		return err
	}
	defer e.close()

	if *botID != "" {
		record, err := e.arena.GetBot(ctx, *botID)
		if err != nil {
			return err
		}
		if *recipeOnly {
			fmt.Fprintln(out, record.Recipe)
			return nil
		}
		return writeIndentedJSON(out, record)
	}
	summary, err := e.arena.GetRun(ctx, *runID)
	if err != nil {
		return err
	}
	return writeIndentedJSON(out, summary)
}

// runRuns lists the run index of the artifacts directory.
func runRuns(_ context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	common := addCommonFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs as JSON")
	trend := fs.Bool("trend", false, "average the per-generation best scores of the listed runs")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}
	s, err := common.settings()
	if err != nil {
		return err
	}
	if s.ArtifactsDir == "" {
		return errors.New("runs requires an artifacts directory (--artifacts-dir or artifacts_dir setting)")
	}

	entries, err := stats.ListRunIndex(s.ArtifactsDir)
	if err != nil {
		return err
	}
	if len(entries) > *limit {
		entries = entries[:*limit]
	}
	if *trend {
		return printTrend(out, s.ArtifactsDir, entries, *jsonOut)
	}
	if *jsonOut {
		return writeIndentedJSON(out, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "no runs found")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(out, "run_id=%s created_at=%s game=%s mode=%s seed=%d workers=%d reports=%d best=%.3f\n",
			e.RunID, e.CreatedAtUTC, e.Game, e.Mode, e.Seed, e.Workers, e.Generations, e.BestScore)
	}
	return nil
}

func printTrend(out io.Writer, dir string, entries []stats.RunIndexEntry, jsonOut bool) error {
	runs := make([][]model.GenerationReport, 0, len(entries))
	for _, e := range entries {
		reports, ok, err := stats.ReadGenerations(dir, e.RunID)
		if err != nil {
			return fmt.Errorf("read generations of %s: %w", e.RunID, err)
		}
		if ok {
			runs = append(runs, reports)
		}
	}
	points := stats.BuildTrend(runs)
	if jsonOut {
		return writeIndentedJSON(out, points)
	}
	if len(points) == 0 {
		fmt.Fprintln(out, "no generations found")
		return nil
	}
	for _, p := range points {
		fmt.Fprintf(out, "generation=%d runs=%d best_mean=%.3f best_max=%.3f threshold_mean=%.3f\n",
			p.Generation, p.Runs, p.BestMean, p.BestMax, p.ThresholdMean)
	}
	return nil
}

func writeIndentedJSON(out io.Writer, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
