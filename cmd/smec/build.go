package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deepnoodle-ai/sme"
)

func newBuildCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [files or directories...]",
		Short: "Compile components and write their modules",
		RunE: func(cmd *cobra.Command, args []string) error {
			build, err := a.compile(cmd.Context(), args)
			if err != nil {
				return err
			}
			paths, err := sme.WriteModules(a.cfg.OutputDir, build.Compiled())
			if err != nil {
				return err
			}
			for _, path := range paths {
				a.logger.Info().Str("path", path).Msg("wrote module")
			}
			fmt.Fprintf(a.stdout, "compiled %d component(s) to %s\n", len(paths), a.cfg.OutputDir)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "output directory")
	a.v.BindPFlag("build.output_dir", cmd.Flags().Lookup("output"))
	return cmd
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check [files or directories...]",
		Short: "Report diagnostics without writing modules",
		RunE: func(cmd *cobra.Command, args []string) error {
			build, err := a.compile(cmd.Context(), args)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%d component(s) ok\n", len(build.Compiled()))
			return nil
		},
	}
}
