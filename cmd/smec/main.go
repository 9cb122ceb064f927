// Command smec compiles components to bytecode modules and inspects them.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/deepnoodle-ai/sme"
	"github.com/deepnoodle-ai/sme/cache"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// app holds what every command shares.
type app struct {
	v      *viper.Viper
	stdout io.Writer
	stderr io.Writer
	cfg    *Config
	logger zerolog.Logger
}

func newApp(stdout, stderr io.Writer) *app {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return &app{v: v, stdout: stdout, stderr: stderr, logger: zerolog.Nop()}
}

// setup reads the config file and validates the configuration. It runs
// before every command.
func (a *app) setup(cmd *cobra.Command) error {
	if path := a.v.GetString("config"); path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return err
		}
		a.v.SetConfigFile(expanded)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	} else {
		a.v.SetConfigName("sme")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")
		if err := a.v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("read config: %w", err)
			}
		}
	}
	cfg, err := loadConfig(a.v)
	if err != nil {
		return err
	}
	if cfg.NoColor {
		color.NoColor = true
	}
	logger, err := newLogger(cfg, a.stderr)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	if used := a.v.ConfigFileUsed(); used != "" {
		a.logger.Debug().Str("path", used).Msg("config loaded")
	}
	return nil
}

func (a *app) useColor() bool {
	return !color.NoColor && !a.cfg.NoColor
}

// compileOptions translates the configuration into driver options. The
// returned function closes the cache, if one was opened.
func (a *app) compileOptions() ([]sme.Option, func(), error) {
	opts := []sme.Option{
		sme.WithLevel(a.cfg.Level),
		sme.WithSourceMap(a.cfg.SourceMap),
		sme.WithWorkers(a.cfg.Workers),
		sme.WithLogger(a.logger),
		sme.WithBuildID(a.v.GetString("build-id")),
	}
	if a.cfg.CacheDir == "" {
		return opts, func() {}, nil
	}
	if err := os.MkdirAll(a.cfg.CacheDir, 0o755); err != nil {
		return nil, nil, err
	}
	c, err := cache.Open(filepath.Join(a.cfg.CacheDir, "modules.db"))
	if err != nil {
		return nil, nil, err
	}
	return append(opts, sme.WithCache(c)), func() { c.Close() }, nil
}

// inputs returns the files named on the command line, or the configured
// entry when there are none.
func (a *app) inputs(args []string) ([]sme.File, error) {
	if len(args) == 0 {
		if a.cfg.Entry == "" {
			return nil, fmt.Errorf("no input files (pass paths or set build.entry)")
		}
		args = []string{a.cfg.Entry}
	}
	files, err := sme.LoadFiles(args...)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files found", sme.Extension)
	}
	return files, nil
}

// compile compiles the inputs, printing one diagnostic per error.
func (a *app) compile(ctx context.Context, args []string) (*sme.Build, error) {
	files, err := a.inputs(args)
	if err != nil {
		return nil, err
	}
	opts, closeCache, err := a.compileOptions()
	if err != nil {
		return nil, err
	}
	defer closeCache()
	build, err := sme.CompileFiles(ctx, files, opts...)
	if err != nil {
		n := printErrors(a.stderr, err, a.useColor())
		return build, &exitError{fmt.Sprintf("%d error(s)", n)}
	}
	return build, nil
}

// exitError reports a failure whose details were already printed.
type exitError struct{ msg string }

func (e *exitError) Error() string { return e.msg }

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "smec",
		Short:         "Compile reactive components to bytecode modules",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default ./sme.yaml)")
	flags.IntP("level", "O", 0, "optimization level 0-2")
	flags.Bool("source-map", false, "emit source maps")
	flags.Int("workers", 0, "files compiled concurrently (default: number of CPUs)")
	flags.String("cache-dir", "", "reuse modules from earlier builds in this directory")
	flags.String("build-id", "", "build id recorded in modules (default: random)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "log JSON lines even on a terminal")
	flags.Bool("no-color", false, "disable colored output")

	a.v.BindPFlag("config", flags.Lookup("config"))
	a.v.BindPFlag("build.optimization_level", flags.Lookup("level"))
	a.v.BindPFlag("build.source_map", flags.Lookup("source-map"))
	a.v.BindPFlag("build.workers", flags.Lookup("workers"))
	a.v.BindPFlag("build.cache_dir", flags.Lookup("cache-dir"))
	a.v.BindPFlag("build-id", flags.Lookup("build-id"))
	a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	a.v.BindPFlag("log.json", flags.Lookup("log-json"))
	a.v.BindPFlag("no-color", flags.Lookup("no-color"))

	root.AddCommand(
		newBuildCmd(a),
		newCheckCmd(a),
		newDisCmd(a),
		newGraphCmd(a),
		newRenderCmd(a),
		newVersionCmd(a),
	)
	return root
}

func main() {
	a := newApp(os.Stdout, os.Stderr)
	root := newRootCmd(a)
	if err := root.ExecuteContext(context.Background()); err != nil {
		if _, ok := err.(*exitError); !ok {
			fmt.Fprintln(os.Stderr, red(err.Error()))
		}
		os.Exit(1)
	}
}
