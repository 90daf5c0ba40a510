package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wehubfusion/Stagehand/pkg/schema"
)

func newStagesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stages",
		Short: "List the available stage types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDESCRIPTION")
			for _, t := range a.registry.Types() {
				fmt.Fprintf(w, "%s\t%s\n", t.ID, t.Description)
			}
			return w.Flush()
		},
	}
	cmd.AddCommand(newDescribeCmd(a))
	return cmd
}

func newDescribeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <stage>",
		Short: "Show the configuration properties of a stage type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := a.registry.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown stage type %q", args[0])
			}
			out, err := yaml.Marshal(describe(t.Descriptor))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

type propertyView struct {
	Name        string              `yaml:"name"`
	Type        schema.PropertyType `yaml:"type"`
	Required    bool                `yaml:"required,omitempty"`
	Default     interface{}         `yaml:"default,omitempty"`
	Description string              `yaml:"description,omitempty"`
	Choices     []string            `yaml:"choices,omitempty"`
	MinLength   *int                `yaml:"minLength,omitempty"`
	MaxLength   *int                `yaml:"maxLength,omitempty"`
	Pattern     string              `yaml:"pattern,omitempty"`
	Format      string              `yaml:"format,omitempty"`
	Minimum     *float64            `yaml:"minimum,omitempty"`
	Maximum     *float64            `yaml:"maximum,omitempty"`
	Properties  []propertyView      `yaml:"properties,omitempty"`
}

type descriptorView struct {
	ID          string         `yaml:"id"`
	Description string         `yaml:"description,omitempty"`
	Properties  []propertyView `yaml:"properties"`
}

func describe(d *schema.Descriptor) descriptorView {
	return descriptorView{ID: d.ID(), Description: d.Description(), Properties: properties(d)}
}

func properties(d *schema.Descriptor) []propertyView {
	props := d.Properties()
	views := make([]propertyView, 0, len(props))
	for _, p := range props {
		v := propertyView{
			Name:        p.Name,
			Type:        p.Type,
			Required:    p.Required,
			Default:     p.Default,
			Description: p.Description,
		}
		if r := p.Validation; r != nil {
			v.Choices = r.Enum
			v.MinLength, v.MaxLength = r.MinLength, r.MaxLength
			v.Pattern, v.Format = r.Pattern, r.Format
			v.Minimum, v.Maximum = r.Minimum, r.Maximum
		}
		if p.Nested != nil {
			v.Properties = properties(p.Nested)
		}
		views = append(views, v)
	}
	return views
}
