package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tetratelabs/wabin/wasm"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/wasm-executor/ast"
	"github.com/wippyai/wasm-executor/config"
	"github.com/wippyai/wasm-executor/engine"
	"github.com/wippyai/wasm-executor/executor"
	"github.com/wippyai/wasm-executor/linker"
	"github.com/wippyai/wasm-executor/metrics"
	"github.com/wippyai/wasm-executor/snapshot"
	"github.com/wippyai/wasm-executor/value"
)

var Version = "0.1.0"

var (
	configFlag = cli.StringFlag{
		Name:   "config, c",
		Usage:  "Load configuration from `FILE`",
		EnvVar: "WASM_EXECUTOR_CONFIG",
	}
	startFlag = cli.StringFlag{
		Name:  "start, s",
		Usage: "exported function to run when the module has no start section",
	}
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "run"
	app.Version = Version
	app.Usage = "drive a WebAssembly module through the executor lifecycle"

	app.Commands = []cli.Command{
		{
			Name:      "run",
			Usage:     "instantiate a module, run its start function and print the results",
			ArgsUsage: "<module.wasm>",
			Flags: []cli.Flag{
				configFlag,
				startFlag,
				cli.StringFlag{Name: "snapshot", Usage: "restore state from `FILE` (.json, .yaml or .cbor) before running"},
				cli.StringFlag{Name: "dump", Usage: "write the final state to `FILE`"},
				cli.StringSliceFlag{Name: "arg, a", Usage: "argument such as i32:42, repeatable"},
				cli.BoolFlag{Name: "metrics", Usage: "print operation metrics to stderr"},
			},
			Action: runAction,
		},
		{
			Name:      "inspect",
			Usage:     "print a module's imports, exports and start function",
			ArgsUsage: "<module.wasm>",
			Action:    inspectAction,
		},
		{
			Name:      "interactive",
			Aliases:   []string{"i"},
			Usage:     "step through the lifecycle in a terminal UI",
			ArgsUsage: "<module.wasm>",
			Flags:     []cli.Flag{configFlag, startFlag},
			Action:    interactiveAction,
		},
	}
	return app
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if start := c.String("start"); start != "" {
		cfg.Executor.StartFunc = start
	}
	return cfg, nil
}

func moduleArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", cli.NewExitError("expected exactly one module path", 2)
	}
	return c.Args().First(), nil
}

// loadModule reads and decodes a module named after its file.
func loadModule(path string) (*ast.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read module: %w", err)
	}
	mod, err := ast.Decode(data)
	if err != nil {
		return nil, err
	}
	return mod.WithName(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))), nil
}

// newExecutor builds an executor from cfg with the built-in host functions
// registered.
func newExecutor(cfg *config.Config, log *zap.Logger, out io.Writer, extra ...executor.Option) (*executor.Executor, error) {
	opts := append(cfg.Options(), executor.WithLogger(log))
	opts = append(opts, extra...)
	ex := executor.New(opts...)
	if err := registerBuiltins(ex, cfg.Executor.HostModule, out); err != nil {
		_ = ex.Close(context.Background())
		return nil, err
	}
	return ex, nil
}

func runAction(c *cli.Context) error {
	path, err := moduleArg(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	engine.SetLogger(log.Named("engine"))
	linker.SetLogger(log.Named("linker"))

	args := make([]value.Value, 0, len(c.StringSlice("arg")))
	for _, s := range c.StringSlice("arg") {
		v, err := value.Parse(s)
		if err != nil {
			return err
		}
		args = append(args, v)
	}

	var obs *metrics.Observer
	var extra []executor.Option
	if c.Bool("metrics") {
		obs = metrics.New()
		extra = append(extra, executor.WithObserver(obs))
	}

	ctx := context.Background()
	ex, err := newExecutor(cfg, log, os.Stdout, extra...)
	if err != nil {
		return err
	}
	defer ex.Close(ctx)

	mod, err := loadModule(path)
	if err != nil {
		return err
	}
	if err := ex.SetModule(mod); err != nil {
		return err
	}
	if err := ex.Instantiate(ctx); err != nil {
		return err
	}
	if snap := c.String("snapshot"); snap != "" {
		doc, err := snapshot.Load(snap)
		if err != nil {
			return err
		}
		if err := ex.Restore(doc); err != nil {
			return err
		}
	}
	if err := ex.SetArgs(&args); err != nil {
		return err
	}
	runErr := ex.Run(ctx)
	rets, err := ex.GetRets()
	if err != nil {
		return err
	}

	if len(rets) > 0 {
		parts := make([]string, len(rets))
		for i, r := range rets {
			parts[i] = r.String()
		}
		fmt.Println(strings.Join(parts, " "))
	}
	if dump := c.String("dump"); dump != "" {
		doc, err := ex.Capture()
		if err != nil {
			return err
		}
		if err := snapshot.Save(dump, doc); err != nil {
			return err
		}
	}
	if obs != nil {
		if err := obs.WriteText(os.Stderr); err != nil {
			return err
		}
	}
	return runErr
}

func inspectAction(c *cli.Context) error {
	path, err := moduleArg(c)
	if err != nil {
		return err
	}
	mod, err := loadModule(path)
	if err != nil {
		return err
	}
	return describe(os.Stdout, mod)
}

func describe(w io.Writer, mod *ast.Module) error {
	raw := mod.Raw()
	fmt.Fprintf(w, "Module: %s\n", mod.Name())
	fmt.Fprintf(w, "Functions: %d imported, %d defined\n", mod.NumImported(wasm.ExternTypeFunc), len(raw.FunctionSection))
	fmt.Fprintf(w, "Globals: %d\n", len(raw.GlobalSection))
	if raw.MemorySection != nil {
		fmt.Fprintf(w, "Memory: %d pages min\n", raw.MemorySection.Min)
	}

	if len(raw.ImportSection) > 0 {
		fmt.Fprintf(w, "\nImports:\n")
		for _, imp := range raw.ImportSection {
			fmt.Fprintf(w, "  %s.%s (%s)\n", imp.Module, imp.Name, wasm.ExternTypeName(imp.Type))
		}
	}
	if len(raw.ExportSection) > 0 {
		fmt.Fprintf(w, "\nExports:\n")
		for _, exp := range raw.ExportSection {
			line := fmt.Sprintf("  %s (%s %d)", exp.Name, wasm.ExternTypeName(exp.Type), exp.Index)
			if exp.Type == wasm.ExternTypeFunc {
				if ft := mod.FuncType(exp.Index); ft != nil {
					line += " " + signature(ft)
				}
			}
			fmt.Fprintln(w, line)
		}
	}
	if raw.StartSection != nil {
		fmt.Fprintf(w, "\nStart: function %d\n", *raw.StartSection)
	}
	return nil
}

func signature(ft *wasm.FunctionType) string {
	names := func(ts []wasm.ValueType) string {
		out := make([]string, len(ts))
		for i, t := range ts {
			out[i] = wasm.ValueTypeName(t)
		}
		return strings.Join(out, ", ")
	}
	return "(" + names(ft.Params) + ") -> (" + names(ft.Results) + ")"
}

func interactiveAction(c *cli.Context) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return cli.NewExitError("interactive mode needs a terminal", 2)
	}
	path, err := moduleArg(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	return runInteractive(path, cfg)
}
