package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wehubfusion/Stagehand/pkg/manifest"
)

func newManifestCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Work with stage bundle manifests",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <file>",
		Short: "Validate a manifest against the available stage types",
		Long: `Check that a manifest is well formed, targets a compatible SDK version, names
only known stage types, and that every sample configuration it carries is valid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Load(args[0])
			if err != nil {
				return err
			}
			if err := m.Check(a.registry); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d stages ok\n", m.PluginID, m.PluginVersion, len(m.Stages))
			return nil
		},
	})
	return cmd
}
