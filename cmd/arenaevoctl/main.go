package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"arenaevo/internal/bot"
	"arenaevo/internal/config"
	"arenaevo/internal/logging"
	"arenaevo/internal/platform"
	"arenaevo/internal/stats"
	"arenaevo/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:], out)
	case "play":
		return runPlay(ctx, args[1:], in, out)
	case "evolve":
		return runEvolve(ctx, args[1:], out)
	case "climb":
		return runClimb(ctx, args[1:], out)
	case "bots":
		return runBots(ctx, args[1:], out)
	case "show":
		return runShow(ctx, args[1:], out)
	case "runs":
		return runRuns(ctx, args[1:], out)
	case "serve":
		return runServe(ctx, args[1:], out)
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: arenaevoctl <init|play|evolve|climb|bots|show|runs|serve> [flags]", msg)
}

// commonFlags are accepted by every subcommand and override the loaded
// settings when given.
type commonFlags struct {
	fs        *flag.FlagSet
	config    *string
	store     *string
	storeDSN  *string
	logLevel  *string
	logFormat *string
	logFile   *string
	workers   *int
	artifacts *string
	scoreLog  *string
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		fs:        fs,
		config:    fs.String("config", "", "settings file (yaml, json, toml or ini)"),
		store:     fs.String("store", "", "store backend: memory|sqlite|mongo|redis"),
		storeDSN:  fs.String("store-dsn", "", "sqlite path, mongo uri or redis address"),
		logLevel:  fs.String("log-level", "", "log level: debug|info|warn|error"),
		logFormat: fs.String("log-format", "", "log format: console|json"),
		logFile:   fs.String("log-file", "", "extra log output file"),
		workers:   fs.Int("workers", 0, "evaluation workers (0 uses settings)"),
		artifacts: fs.String("artifacts-dir", "", "directory for run artifacts"),
		scoreLog:  fs.String("score-log", "", "append improving recipes to this CSV file"),
	}
}

// setFlags reports which flags of fs were given on the command line.
func setFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func (c *commonFlags) settings() (config.Settings, error) {
	s, err := config.LoadSettings(*c.config)
	if err != nil {
		return config.Settings{}, err
	}
	set := setFlags(c.fs)
	if set["store"] {
		s.Store = *c.store
	}
	if set["store-dsn"] {
		s.StoreDSN = *c.storeDSN
	}
	if set["log-level"] {
		s.LogLevel = *c.logLevel
	}
	if set["log-format"] {
		s.LogFormat = *c.logFormat
	}
	if set["log-file"] {
		s.LogFile = *c.logFile
	}
	if set["workers"] {
		s.Workers = *c.workers
	}
	if set["artifacts-dir"] {
		s.ArtifactsDir = *c.artifacts
	}
	if set["score-log"] {
		s.ScoreLog = *c.scoreLog
	}
	return s, s.Validate()
}

// env is everything a subcommand needs once settings are resolved.
type env struct {
	settings config.Settings
	log      *zap.SugaredLogger
	store    storage.Store
	scoreLog *stats.ScoreLog
	arena    *platform.Arena
}

func openEnv(ctx context.Context, s config.Settings, console *bot.Console) (*env, error) {
	log, err := logging.New(logging.Options{Level: s.LogLevel, Format: s.LogFormat, File: s.LogFile})
	if err != nil {
		return nil, err
	}
	store, err := storage.NewStore(s.Store, s.StoreDSN)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	e := &env{settings: s, log: log, store: store}
	if s.ScoreLog != "" {
		if e.scoreLog, err = stats.OpenScoreLog(s.ScoreLog); err != nil {
			e.close()
			return nil, err
		}
	}
	e.arena = platform.NewArena(platform.Config{
		Store:        store,
		Logger:       log,
		Workers:      s.Workers,
		ArtifactsDir: s.ArtifactsDir,
		ScoreLog:     e.scoreLog,
		Console:      console,
	})
	if err := e.arena.Init(ctx); err != nil {
		e.close()
		return nil, fmt.Errorf("init %s store: %w", s.Store, err)
	}
	return e, nil
}

func (e *env) close() {
	if e.arena != nil {
		e.arena.Stop()
	}
	if e.scoreLog != nil {
		if err := e.scoreLog.Close(); err != nil {
			e.log.Warnw("close score log", "error", err)
		}
	}
	if err := storage.CloseIfSupported(e.store); err != nil {
		e.log.Warnw("close store", "error", err)
	}
	_ = e.log.Sync()
}

func runInit(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	common := addCommonFlags(fs)
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
	fmt.Fprintf(out, "initialized store=%s\n", s.Store)
	return nil
}
