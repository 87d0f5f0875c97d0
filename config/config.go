// Package config loads executor settings from a TOML file.
//
//	[executor]
//	start_func = "main"
//	host_module = "env"
//
//	[limits]
//	max_functions = 1024
//	max_globals = 1024
//	max_memories = 1
//	max_tables = 16
//	max_host_functions = 64
//	memory_limit_pages = 256
//
//	[log]
//	level = "info"
//	development = false
package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/wasm-executor/errors"
	"github.com/wippyai/wasm-executor/executor"
	"github.com/wippyai/wasm-executor/store"
)

// Config is the file layout.
type Config struct {
	Executor Executor `toml:"executor"`
	Log      Log      `toml:"log"`
	Limits   Limits   `toml:"limits"`
}

type Executor struct {
	// StartFunc is run when a module has no start section.
	StartFunc string `toml:"start_func"`
	// HostModule is the import module name the built-in host functions are
	// registered under.
	HostModule string `toml:"host_module"`
	// CloseOnContextDone aborts a run when its context ends.
	CloseOnContextDone bool `toml:"close_on_context_done"`
}

type Limits struct {
	MaxFunctions     int    `toml:"max_functions"`
	MaxGlobals       int    `toml:"max_globals"`
	MaxMemories      int    `toml:"max_memories"`
	MaxTables        int    `toml:"max_tables"`
	MaxHostFunctions int    `toml:"max_host_functions"`
	MemoryLimitPages uint32 `toml:"memory_limit_pages"`
}

type Log struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// Default returns the configuration used without a file.
func Default() *Config {
	return &Config{
		Executor: Executor{HostModule: "env"},
		Log:      Log{Level: "info"},
	}
}

// Load reads path over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read "+path)
	}
	return Parse(data)
}

// Parse decodes TOML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, errors.DecodeFailed(errors.PhaseConfig, nil, "parse config", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Value(undecoded[0].String()).
			Detail("unknown key %s", undecoded[0]).
			Build()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	l := c.Limits
	for name, v := range map[string]int{
		"max_functions":      l.MaxFunctions,
		"max_globals":        l.MaxGlobals,
		"max_memories":       l.MaxMemories,
		"max_tables":         l.MaxTables,
		"max_host_functions": l.MaxHostFunctions,
	} {
		if v < 0 {
			return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Path("limits", name).
				Value(v).
				Detail("must not be negative").
				Build()
		}
	}
	if l.MemoryLimitPages > 65536 {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("limits", "memory_limit_pages").
			Value(l.MemoryLimitPages).
			Detail("at most 65536 pages").
			Build()
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses Log.Level.
func (c *Config) Level() (zapcore.Level, error) {
	if c.Log.Level == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return 0, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("log", "level").
			Value(c.Log.Level).
			Cause(err).
			Build()
	}
	return lvl, nil
}

// Logger builds a zap logger from the [log] section.
func (c *Config) Logger() (*zap.Logger, error) {
	lvl, err := c.Level()
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

// StoreLimits converts the [limits] section.
func (c *Config) StoreLimits() store.Limits {
	return store.Limits{
		Functions: c.Limits.MaxFunctions,
		Globals:   c.Limits.MaxGlobals,
		Memories:  c.Limits.MaxMemories,
		Tables:    c.Limits.MaxTables,
	}
}

// Options returns executor options for everything but logging and
// observation, which the caller wires.
func (c *Config) Options() []executor.Option {
	return []executor.Option{
		executor.WithStartFunc(c.Executor.StartFunc),
		executor.WithStoreLimits(c.StoreLimits()),
		executor.WithHostFunctionLimit(c.Limits.MaxHostFunctions),
		executor.WithMemoryLimitPages(c.Limits.MemoryLimitPages),
		executor.WithCloseOnContextDone(c.Executor.CloseOnContextDone),
	}
}
