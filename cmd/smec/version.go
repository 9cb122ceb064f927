package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deepnoodle-ai/sme"
	"github.com/deepnoodle-ai/sme/bytecode"
)

func newVersionCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := map[string]any{
				"version":  version,
				"commit":   commit,
				"date":     date,
				"compiler": sme.Version,
				"format":   bytecode.FormatVersion,
			}
			if asJSON {
				return writeJSON(a.stdout, info, a.useColor())
			}
			fmt.Fprintf(a.stdout, "smec %s (commit %s, built %s)\n", version, commit, date)
			fmt.Fprintf(a.stdout, "compiler %s, module format %d\n", sme.Version, bytecode.FormatVersion)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
