package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/deepnoodle-ai/sme/bytecode"
	"github.com/deepnoodle-ai/sme/errors"
	"github.com/deepnoodle-ai/sme/host"
	"github.com/deepnoodle-ai/sme/object"
	"github.com/deepnoodle-ai/sme/scheduler"
	"github.com/deepnoodle-ai/sme/vm"
)

// parseValue reads a command line value: integers, floats, booleans and
// nil by their literal form, JSON arrays, and anything else as a string.
func parseValue(s string) (object.Object, error) {
	switch s {
	case "true":
		return object.True, nil
	case "false":
		return object.False, nil
	case "nil":
		return object.Nil, nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return object.NewInt(i), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return object.NewFloat(f), nil
	}
	if strings.HasPrefix(s, "[") {
		dec := json.NewDecoder(strings.NewReader(s))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("invalid list %s: %w", s, err)
		}
		return object.FromGoType(v)
	}
	return object.NewString(s), nil
}

func parseAssignment(s string) (string, object.Object, error) {
	name, raw, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return "", nil, fmt.Errorf("expected name=value, got %q", s)
	}
	v, err := parseValue(raw)
	return name, v, err
}

// tracer logs handler and binding code as it runs.
type tracer struct {
	vm.NoOpObserver
	logger zerolog.Logger
}

func (t *tracer) Config() vm.ObserverConfig {
	return vm.NewObserverConfig(vm.StepNone)
}

func (t *tracer) OnCall(e vm.CallEvent) bool {
	event := t.logger.Info().Str("component", e.Component).Str("func", e.FunctionName).Int("args", e.ArgCount).Int("depth", e.FrameDepth)
	if !e.Location.IsZero() {
		event = event.Str("at", e.Location.String())
	}
	event.Msg("call")
	return true
}

func (t *tracer) OnReturn(e vm.ReturnEvent) bool {
	t.logger.Debug().Str("component", e.Component).Str("func", e.FunctionName).Int("depth", e.FrameDepth).Msg("return")
	return true
}

func newRenderCmd(a *app) *cobra.Command {
	var (
		component string
		props     []string
		writes    []string
		dispatch  []string
		trace     bool
	)
	cmd := &cobra.Command{
		Use:   "render [files or directories...]",
		Short: "Mount a component in an in-memory document and print its HTML",
		Long: `Mount a component in an in-memory document and print its HTML.

Writes given with --set are applied in order, each as its own task, then
handlers named with --dispatch run in order. Runtime faults are logged and
do not stop rendering.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			build, err := a.compile(ctx, args)
			if err != nil {
				return err
			}
			mods := build.Compiled()
			var root *bytecode.Module
			if component == "" {
				root = mods[0]
			} else if mod, ok := build.Module(component); ok {
				root = mod
			} else {
				return fmt.Errorf("component %s not found", component)
			}

			initial := map[string]any{}
			for _, p := range props {
				name, v, err := parseAssignment(p)
				if err != nil {
					return err
				}
				initial[name] = v
			}

			faults := 0
			opts := []scheduler.Option{
				scheduler.WithLogger(a.logger),
				scheduler.WithComponents(mods...),
				scheduler.WithReporter(scheduler.ReporterFunc(func(f *errors.Fault) {
					faults++
					scheduler.NewLogReporter(a.logger).Report(f)
				})),
			}
			if trace {
				opts = append(opts, scheduler.WithVMOptions(vm.WithObserver(&tracer{logger: a.logger})))
			}
			doc := host.NewDocument()
			s := scheduler.New(doc, opts...)
			h, err := s.Mount(ctx, root, doc.Root(), scheduler.WithProps(initial))
			if err != nil {
				return err
			}
			for _, w := range writes {
				name, v, err := parseAssignment(w)
				if err != nil {
					return err
				}
				if err := s.WriteNamed(h, name, v); err != nil {
					return err
				}
				if err := s.Flush(ctx, h); err != nil {
					return err
				}
			}
			for _, name := range dispatch {
				if err := s.Dispatch(ctx, h, name); err != nil {
					a.logger.Warn().Err(err).Str("handler", name).Msg("dispatch failed")
				}
			}
			fmt.Fprintln(a.stdout, doc.HTML())
			if faults > 0 {
				a.logger.Warn().Int("faults", faults).Msg("rendered with faults")
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&component, "component", "c", "", "component to mount (default: the first compiled)")
	flags.StringArrayVarP(&props, "prop", "p", nil, "initial prop value, name=value")
	flags.StringArrayVarP(&writes, "set", "s", nil, "write a variable after mounting, name=value")
	flags.StringArrayVarP(&dispatch, "dispatch", "d", nil, "run a handler after the writes")
	flags.BoolVar(&trace, "trace", false, "log every function the runtime calls")
	return cmd
}
