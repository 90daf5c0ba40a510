package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wehubfusion/Stagehand/pkg/schema"
)

func newValidateCmd(a *app) *cobra.Command {
	var flags stageConfigFlags
	cmd := &cobra.Command{
		Use:   "validate <stage>",
		Short: "Check a stage configuration without running it",
		Long: `Validate a stage configuration against the stage type's descriptor and print
every violation.

Examples:
  stagehand validate textcase --set field=title --set mode=upper
  stagehand validate script -f script.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := a.registry.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown stage type %q", args[0])
			}
			raw, err := flags.load(t.ID)
			if err != nil {
				return err
			}

			cfg, err := schema.Validate(t.Descriptor, raw)
			var verr *schema.ConfigValidationError
			if errors.As(err, &verr) {
				for _, e := range verr.Errors {
					fmt.Fprintln(cmd.OutOrStdout(), e.String())
				}
				return fmt.Errorf("%s: %d invalid properties", t.ID, len(verr.Errors))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: configuration is valid (%d properties)\n", t.ID, len(cfg.Names()))
			return nil
		},
	}
	addStageConfigFlags(cmd, &flags)
	return cmd
}

func addStageConfigFlags(cmd *cobra.Command, flags *stageConfigFlags) {
	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "stage configuration file (YAML or JSON)")
	cmd.Flags().StringVar(&flags.manifest, "manifest", "", "manifest whose sample configuration is used as a base")
	cmd.Flags().StringArrayVar(&flags.sets, "set", nil, "set a configuration property (key=value, repeatable)")
}
