package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/deepnoodle-ai/sme"
	"github.com/deepnoodle-ai/sme/bytecode"
	"github.com/deepnoodle-ai/sme/dis"
)

// modules loads encoded modules and compiles sources given on the command
// line. Sources are compiled together so they may reference each other.
func (a *app) modules(ctx context.Context, args []string) ([]*bytecode.Module, error) {
	var mods []*bytecode.Module
	var sources []string
	for _, arg := range args {
		if filepath.Ext(arg) != sme.ModuleExtension {
			sources = append(sources, arg)
			continue
		}
		mod, err := sme.ReadModule(arg)
		if err != nil {
			return nil, err
		}
		mods = append(mods, mod)
	}
	if len(sources) > 0 || len(mods) == 0 {
		build, err := a.compile(ctx, sources)
		if err != nil {
			return nil, err
		}
		mods = append(mods, build.Compiled()...)
	}
	return mods, nil
}

func newDisCmd(a *app) *cobra.Command {
	var funcName string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "dis [modules or sources...]",
		Short: "Disassemble compiled modules",
		RunE: func(cmd *cobra.Command, args []string) error {
			mods, err := a.modules(cmd.Context(), args)
			if err != nil {
				return err
			}
			if funcName == "" && !asJSON {
				for i, mod := range mods {
					if i > 0 {
						fmt.Fprintln(a.stdout)
					}
					if err := dis.PrintModule(mod, a.stdout); err != nil {
						return err
					}
				}
				return nil
			}
			listing := map[string]map[string][]dis.Instruction{}
			found := false
			for _, mod := range mods {
				funcs := map[string][]dis.Instruction{}
				for _, fn := range mod.Funcs {
					name := mod.Name(fn.Name)
					if funcName != "" && name != funcName {
						continue
					}
					instructions, err := dis.Disassemble(mod, fn.Code)
					if err != nil {
						return err
					}
					found = true
					if !asJSON {
						fmt.Fprintf(a.stdout, "%s.%s\n", mod.Meta.Component, name)
						dis.Print(instructions, a.stdout)
						continue
					}
					funcs[name] = instructions
				}
				listing[mod.Meta.Component] = funcs
			}
			if funcName != "" && !found {
				return fmt.Errorf("function %q not found", funcName)
			}
			if asJSON {
				return writeJSON(a.stdout, listing, a.useColor())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&funcName, "func", "", "only disassemble this function")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print instructions as JSON")
	return cmd
}
