package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/deepnoodle-ai/sme"
	"github.com/deepnoodle-ai/sme/ast"
	"github.com/deepnoodle-ai/sme/graph"
)

type graphVar struct {
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Prop    bool     `json:"prop,omitempty"`
	Rank    int      `json:"rank"`
	Deps    []string `json:"deps,omitempty"`
	Updates []string `json:"updates,omitempty"`
}

type graphBinding struct {
	ID   int      `json:"id"`
	Kind string   `json:"kind"`
	Rank int      `json:"rank"`
	Deps []string `json:"deps,omitempty"`
}

type graphReport struct {
	Component string         `json:"component"`
	Order     []string       `json:"order"`
	Vars      []graphVar     `json:"vars"`
	Bindings  []graphBinding `json:"bindings,omitempty"`
}

func describeGraph(g *graph.Graph) graphReport {
	names := func(ids []int) []string {
		var out []string
		for _, id := range ids {
			out = append(out, g.Vars[id].Name)
		}
		return out
	}
	r := graphReport{Component: g.Component.Name}
	for _, n := range g.Order {
		r.Order = append(r.Order, g.Describe(n))
	}
	for _, v := range g.Vars {
		gv := graphVar{Name: v.Name, Kind: v.Kind.String(), Prop: v.Prop, Rank: v.Rank, Deps: names(v.Deps)}
		for _, n := range g.UpdateList(v.ID) {
			gv.Updates = append(gv.Updates, g.Describe(n))
		}
		r.Vars = append(r.Vars, gv)
	}
	for _, b := range g.Bindings {
		r.Bindings = append(r.Bindings, graphBinding{ID: b.ID, Kind: b.Kind.String(), Rank: b.Rank, Deps: names(b.Deps)})
	}
	return r
}

func newGraphCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "graph [files or directories...]",
		Short: "Show the dependency graph and update order of components",
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := a.inputs(args)
			if err != nil {
				return err
			}
			globals := graph.NewGlobals()
			comps := make([]*ast.Component, len(files))
			var errs *multierror.Error
			for i, f := range files {
				comp, err := sme.Parse(cmd.Context(), f.Source, sme.WithFilename(f.Path))
				if err != nil {
					errs = multierror.Append(errs, &sme.FileError{Path: f.Path, Err: err})
					continue
				}
				globals.Register(comp)
				comps[i] = comp
			}
			var reports []graphReport
			for i, comp := range comps {
				if comp == nil {
					continue
				}
				g, err := graph.Build(comp, graph.WithGlobals(globals))
				if err != nil {
					errs = multierror.Append(errs, &sme.FileError{Path: files[i].Path, Err: err})
					continue
				}
				reports = append(reports, describeGraph(g))
			}
			if err := errs.ErrorOrNil(); err != nil {
				n := printErrors(a.stderr, err, a.useColor())
				return &exitError{fmt.Sprintf("%d error(s)", n)}
			}
			if asJSON {
				return writeJSON(a.stdout, reports, a.useColor())
			}
			printGraphs(a, reports)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the graph as JSON")
	return cmd
}

func printGraphs(a *app, reports []graphReport) {
	header := color.New(color.Bold, color.FgMagenta).SprintfFunc()
	for i, r := range reports {
		if i > 0 {
			fmt.Fprintln(a.stdout)
		}
		fmt.Fprintln(a.stdout, header("component %s", r.Component))
		fmt.Fprintf(a.stdout, "order: %s\n", strings.Join(r.Order, ", "))
		for _, v := range r.Vars {
			line := fmt.Sprintf("  %s %s (rank %d)", v.Kind, v.Name, v.Rank)
			if len(v.Deps) > 0 {
				line += " <- " + strings.Join(v.Deps, ", ")
			}
			if len(v.Updates) > 0 {
				line += " -> " + strings.Join(v.Updates, ", ")
			}
			fmt.Fprintln(a.stdout, line)
		}
	}
}
