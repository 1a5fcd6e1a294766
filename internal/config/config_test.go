package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := LoadSettings("")
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if s != DefaultSettings() {
		t.Fatalf("settings=%+v want defaults %+v", s, DefaultSettings())
	}
}

func TestLoadSettingsFileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arenaevo.yaml")
	body := "store: sqlite\nstore_dsn: bots.db\nworkers: 4\nlog_format: json\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	t.Setenv("ARENAEVO_WORKERS", "2")
	t.Setenv("ARENAEVO_LISTEN_ADDR", "127.0.0.1:9000")

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if s.Store != "sqlite" || s.StoreDSN != "bots.db" || s.LogFormat != "json" {
		t.Fatalf("file values not applied: %+v", s)
	}
	if s.Workers != 2 || s.ListenAddr != "127.0.0.1:9000" {
		t.Fatalf("environment did not override: %+v", s)
	}
	if s.LogLevel != "info" {
		t.Fatalf("default log level lost: %+v", s)
	}
}

func TestLoadSettingsRejectsInvalidValues(t *testing.T) {
	t.Setenv("ARENAEVO_WORKERS", "0")
	if _, err := LoadSettings(""); !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings, got %v", err)
	}
}

func TestLoadSettingsMissingFile(t *testing.T) {
	if _, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing settings file")
	}
}

func TestLoadProfileIni(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.ini")
	body := `[evolution]
game = connect4
bot1 = nbot1
bot2 = random
batch = 0
magic = true
generations = 3
samples = 4
keep = 2
wild = 1
seed = 99
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	want := DefaultProfile()
	want.Game = "connect4"
	want.Bot1 = "nbot1"
	want.Batch = 0
	want.Magic = true
	want.Generations = 3
	want.Samples = 4
	want.Keep = 2
	want.Wild = 1
	want.Seed = 99
	if p != want {
		t.Fatalf("profile=%+v want %+v", p, want)
	}
}

func TestLoadProfileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	body := "mode: climb\nbot1: random\nbot2: genbot3\nchild_limit: 4\nmax_evaluations: 200\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if p.Mode != ModeClimb || p.Bot2 != "genbot3" || p.ChildLimit != 4 || p.MaxEvaluations != 200 {
		t.Fatalf("unexpected profile %+v", p)
	}
	if p.Game != "naughts" || p.Batch != 10 {
		t.Fatalf("defaults lost: %+v", p)
	}
}

func TestProfileRoundTripsThroughBothFormats(t *testing.T) {
	p := DefaultProfile()
	p.Game = "connect4"
	p.Seed = 7
	p.BotID = "abc"
	p.BotDB = true
	for _, name := range []string{"p.ini", "p.yml"} {
		path := filepath.Join(t.TempDir(), name)
		if err := WriteProfile(path, p); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		got, err := LoadProfile(path)
		if err != nil {
			t.Fatalf("load %s: %v", name, err)
		}
		if got != p {
			t.Fatalf("%s: got %+v want %+v", name, got, p)
		}
	}
}

func TestProfileValidate(t *testing.T) {
	cases := map[string]func(*Profile){
		"unknown mode":     func(p *Profile) { p.Mode = "sideways" },
		"magic with batch": func(p *Profile) { p.Magic = true },
		"no batch":         func(p *Profile) { p.Batch = 0 },
		"no keep":          func(p *Profile) { p.Keep = 0 },
		"negative wild":    func(p *Profile) { p.Wild = -1 },
	}
	for name, mutate := range cases {
		p := DefaultProfile()
		mutate(&p)
		if err := p.Validate(); !errors.Is(err, ErrInvalidProfile) {
			t.Fatalf("%s: expected ErrInvalidProfile, got %v", name, err)
		}
	}
	if _, err := LoadProfile("run.toml"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}
