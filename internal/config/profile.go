package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

const (
	ModeGenetic = "genetic"
	ModeClimb   = "climb"

	profileSection = "evolution"
)

var (
	ErrInvalidProfile = errors.New("invalid profile")
	ErrUnknownFormat  = errors.New("unknown profile format")
)

// Profile describes one evolution or climb run. It can be stored as an ini
// file with an [evolution] section or as yaml.
type Profile struct {
	Game           string `ini:"game" yaml:"game"`
	Bot1           string `ini:"bot1" yaml:"bot1"`
	Bot2           string `ini:"bot2" yaml:"bot2"`
	Batch          int    `ini:"batch" yaml:"batch"`
	Magic          bool   `ini:"magic" yaml:"magic"`
	Mode           string `ini:"mode" yaml:"mode"`
	Generations    int    `ini:"generations" yaml:"generations"`
	Samples        int    `ini:"samples" yaml:"samples"`
	Keep           int    `ini:"keep" yaml:"keep"`
	Wild           int    `ini:"wild" yaml:"wild"`
	Workers        int    `ini:"workers" yaml:"workers"`
	Seed           int64  `ini:"seed" yaml:"seed"`
	ChildLimit     int    `ini:"child_limit" yaml:"child_limit"`
	MaxEvaluations int    `ini:"max_evaluations" yaml:"max_evaluations"`
	BotID          string `ini:"botid" yaml:"botid"`
	BotDB          bool   `ini:"botdb" yaml:"botdb"`
}

func DefaultProfile() Profile {
	return Profile{
		Game:        "naughts",
		Bot1:        "circuit",
		Bot2:        "random",
		Batch:       10,
		Mode:        ModeGenetic,
		Generations: 10,
		Samples:     10,
		Keep:        5,
		Workers:     6,
		ChildLimit:  10,
	}
}

// LoadProfile reads a profile over the defaults, picking the decoder from
// the file extension.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".ini":
		f, err := ini.Load(path)
		if err != nil {
			return Profile{}, fmt.Errorf("load profile %s: %w", path, err)
		}
		if err := f.Section(profileSection).MapTo(&p); err != nil {
			return Profile{}, fmt.Errorf("map profile %s: %w", path, err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return Profile{}, fmt.Errorf("load profile %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &p); err != nil {
			return Profile{}, fmt.Errorf("decode profile %s: %w", path, err)
		}
	default:
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// Validate checks the profile on its own; bot and game names are resolved
// later against their registries.
func (p Profile) Validate() error {
	switch p.Mode {
	case ModeGenetic, ModeClimb:
	default:
		return fmt.Errorf("%w: mode %q", ErrInvalidProfile, p.Mode)
	}
	if p.Magic && p.Batch > 0 {
		return fmt.Errorf("%w: magic cannot be combined with batch", ErrInvalidProfile)
	}
	if !p.Magic && p.Batch < 1 {
		return fmt.Errorf("%w: batch must be > 0 unless magic is set", ErrInvalidProfile)
	}
	if p.Mode == ModeGenetic && (p.Generations < 1 || p.Samples < 1 || p.Keep < 1) {
		return fmt.Errorf("%w: generations, samples and keep must be > 0", ErrInvalidProfile)
	}
	if p.Wild < 0 || p.Workers < 0 || p.ChildLimit < 0 || p.MaxEvaluations < 0 {
		return fmt.Errorf("%w: counts must not be negative", ErrInvalidProfile)
	}
	return nil
}

// WriteProfile stores p as yaml or ini, chosen by the extension of path.
func WriteProfile(path string, p Profile) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".ini":
		f := ini.Empty()
		if err := f.Section(profileSection).ReflectFrom(&p); err != nil {
			return fmt.Errorf("encode profile: %w", err)
		}
		return f.SaveTo(path)
	case ".yaml", ".yml":
		data, err := yaml.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode profile: %w", err)
		}
		return os.WriteFile(path, data, 0o644)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
}
