package sme

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/deepnoodle-ai/sme/ast"
	"github.com/deepnoodle-ai/sme/bytecode"
	"github.com/deepnoodle-ai/sme/errors"
	"github.com/deepnoodle-ai/sme/graph"
)

// Extension is the file extension of component sources.
const Extension = ".sme"

// ModuleExtension is the file extension of encoded modules.
const ModuleExtension = ".smem"

// DefaultWorkers is the default number of files compiled concurrently.
var DefaultWorkers = runtime.NumCPU()

// File is a component source.
type File struct {
	Path   string
	Source string
}

// FileError is a failure to compile one file.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string { return e.Path + ": " + e.Err.Error() }

func (e *FileError) Unwrap() error { return e.Err }

// Build is the result of compiling a set of files.
type Build struct {
	// Modules holds the module of each file, in input order. The entry of a
	// file that failed is nil.
	Modules []*bytecode.Module
	// Globals is the component table the files were compiled against.
	Globals *graph.Globals
}

// Module returns the module of the named component.
func (b *Build) Module(component string) (*bytecode.Module, bool) {
	for _, mod := range b.Modules {
		if mod != nil && mod.Meta.Component == component {
			return mod, true
		}
	}
	return nil, false
}

// Compiled returns the modules that compiled.
func (b *Build) Compiled() []*bytecode.Module {
	var out []*bytecode.Module
	for _, mod := range b.Modules {
		if mod != nil {
			out = append(out, mod)
		}
	}
	return out
}

// LoadFiles reads component sources. Directories are searched recursively
// for files with the source extension.
func LoadFiles(paths ...string) ([]File, error) {
	var files []File
	add := func(path string) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files = append(files, File{Path: path, Source: string(data)})
		return nil
	}
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if err := add(path); err != nil {
				return nil, err
			}
			continue
		}
		err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || filepath.Ext(p) != Extension {
				return nil
			}
			return add(p)
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

// CompileFiles compiles a set of components that may reference each other.
// Every file is parsed and registered before any is compiled; the remaining
// phases run concurrently. A failing file does not stop the others: the
// returned error is a *multierror.Error holding one *FileError per failed
// file, and the Build holds the modules that compiled.
func CompileFiles(ctx context.Context, files []File, opts ...Option) (*Build, error) {
	o := collectOptions(opts...)
	globals := o.globals
	if globals == nil {
		globals = graph.NewGlobals()
	}
	build := &Build{Modules: make([]*bytecode.Module, len(files)), Globals: globals}
	errs := make([]error, len(files))

	comps := make([]*ast.Component, len(files))
	owner := map[string]string{}
	for i, f := range files {
		comp, err := parse(ctx, f.Source, f.Path, "")
		if err != nil {
			errs[i] = err
			continue
		}
		if prev, ok := owner[comp.Name]; ok {
			errs[i] = errors.NewBindingError(errors.E2006, errors.SourceLocation{Filename: f.Path},
				"component %s is already defined in %s", comp.Name, prev)
			continue
		}
		owner[comp.Name] = f.Path
		globals.Register(comp)
		comps[i] = comp
	}
	o.logger.Debug().Int("files", len(files)).Int("components", len(owner)).Msg("parsed")

	fileOpts := *o
	fileOpts.globals = globals
	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, comp := range comps {
		if comp == nil {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			mod, err := fileOpts.compile(comp, files[i].Source)
			if err != nil {
				errs[i] = err
				return nil
			}
			build.Modules[i] = mod
			return nil
		})
	}
	g.Wait()

	var result *multierror.Error
	for i, err := range errs {
		if err != nil {
			result = multierror.Append(result, &FileError{Path: files[i].Path, Err: err})
		}
	}
	return build, result.ErrorOrNil()
}

// WriteModules encodes each module to <dir>/<Component>.smem and returns
// the written paths.
func WriteModules(dir string, mods []*bytecode.Module) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var paths []string
	for _, mod := range mods {
		data, err := bytecode.Marshal(mod)
		if err != nil {
			return paths, fmt.Errorf("encode %s: %w", mod.Meta.Component, err)
		}
		path := filepath.Join(dir, mod.Meta.Component+ModuleExtension)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ReadModule decodes a module file.
func ReadModule(path string) (*bytecode.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	mod, err := bytecode.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return mod, nil
}

// signature describes the component table for cache keys.
func signature(globals *graph.Globals) string {
	var b strings.Builder
	for _, name := range globals.Names() {
		info, _ := globals.Lookup(name)
		b.WriteString(name + "(" + strings.Join(info.Props, ",") + ");")
	}
	return b.String()
}
