// Package sme compiles reactive components to bytecode modules.
//
// A component source holds a <script> section with declarations and
// handlers, a <template> section with markup, and an optional <style>
// section. Compilation parses the source, builds its dependency graph,
// generates IR and emits an immutable module:
//
//	mod, err := sme.Compile(ctx, source, sme.WithName("Counter"))
//
// Sets of components that reference each other are compiled together with
// CompileFiles. Compiled modules are mounted on a host with the scheduler
// package.
package sme

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/deepnoodle-ai/sme/ast"
	"github.com/deepnoodle-ai/sme/bytecode"
	"github.com/deepnoodle-ai/sme/cache"
	"github.com/deepnoodle-ai/sme/compiler"
	"github.com/deepnoodle-ai/sme/graph"
	"github.com/deepnoodle-ai/sme/parser"
)

// Version is the compiler version recorded in emitted modules.
var Version = "0.1.0"

// Option configures a compilation.
type Option func(*options)

type options struct {
	level     int
	sourceMap bool
	filename  string
	name      string
	buildID   string
	workers   int
	globals   *graph.Globals
	cache     *cache.Cache
	logger    zerolog.Logger
}

func collectOptions(opts ...Option) *options {
	o := &options{workers: DefaultWorkers, logger: zerolog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// WithLevel sets the optimization level, 0 to compiler.MaxLevel.
func WithLevel(level int) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithSourceMap enables the source map in emitted modules, so runtime
// faults carry source locations.
func WithSourceMap(enabled bool) Option {
	return func(o *options) {
		o.sourceMap = enabled
	}
}

// WithFilename sets the file name of a single source, used in diagnostics
// and to derive the component name.
func WithFilename(filename string) Option {
	return func(o *options) {
		o.filename = filename
	}
}

// WithName sets the component name of a single source.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithBuildID sets the build id recorded in emitted modules. A random id is
// generated by default.
func WithBuildID(id string) Option {
	return func(o *options) {
		o.buildID = id
	}
}

// WithWorkers bounds the number of files compiled concurrently.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithGlobals sets the table of components a single source may reference.
func WithGlobals(globals *graph.Globals) Option {
	return func(o *options) {
		o.globals = globals
	}
}

// WithCache reuses modules compiled by earlier builds.
func WithCache(c *cache.Cache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithLogger sets the logger for phase timings and cache activity.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Parse parses a component source.
func Parse(ctx context.Context, source string, opts ...Option) (*ast.Component, error) {
	o := collectOptions(opts...)
	return parse(ctx, source, o.filename, o.name)
}

func parse(ctx context.Context, source, filename, name string) (*ast.Component, error) {
	var popts []parser.Option
	if filename != "" {
		popts = append(popts, parser.WithFilename(filename))
	}
	if name != "" {
		popts = append(popts, parser.WithName(name))
	}
	return parser.Parse(ctx, source, popts...)
}

// Compile compiles a single component source.
func Compile(ctx context.Context, source string, opts ...Option) (*bytecode.Module, error) {
	o := collectOptions(opts...)
	comp, err := parse(ctx, source, o.filename, o.name)
	if err != nil {
		return nil, err
	}
	return o.compile(comp, source)
}

// compile runs the phases after parsing, consulting the cache first.
func (o *options) compile(comp *ast.Component, source string) (*bytecode.Module, error) {
	log := o.logger.With().Str("component", comp.Name).Logger()
	key := cache.Key{
		Source:    source,
		Filename:  comp.File,
		Component: comp.Name,
		Globals:   signature(o.globals),
		Level:     o.level,
		SourceMap: o.sourceMap,
		Compiler:  Version,
	}
	if o.cache != nil {
		mod, ok, err := o.cache.Get(key)
		if err != nil {
			log.Warn().Err(err).Msg("cache read failed")
		} else if ok {
			log.Debug().Msg("cache hit")
			return mod, nil
		}
	}

	start := time.Now()
	g, err := graph.Build(comp, graph.WithGlobals(o.globals))
	if err != nil {
		return nil, err
	}
	graphDone := time.Now()
	prog, err := compiler.Compile(g, &compiler.Config{Level: o.level, BuildID: o.buildID})
	if err != nil {
		return nil, err
	}
	irDone := time.Now()
	mod, err := bytecode.Emit(prog,
		bytecode.WithSourceMap(o.sourceMap),
		bytecode.WithCompilerVersion(Version))
	if err != nil {
		return nil, err
	}
	log.Debug().
		Dur("graph", graphDone.Sub(start)).
		Dur("ir", irDone.Sub(graphDone)).
		Dur("emit", time.Since(irDone)).
		Int("level", o.level).
		Msg("compiled")

	if o.cache != nil {
		if err := o.cache.Put(key, mod); err != nil {
			log.Warn().Err(err).Msg("cache write failed")
		}
	}
	return mod, nil
}
