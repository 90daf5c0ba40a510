package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wehubfusion/Stagehand/internal/config"
	"github.com/wehubfusion/Stagehand/pkg/observability"
	"github.com/wehubfusion/Stagehand/pkg/stage"
	"github.com/wehubfusion/Stagehand/pkg/stages"
)

// app is the state shared by every subcommand.
type app struct {
	configFile string

	manager  *config.Manager
	logger   *zap.Logger
	level    zap.AtomicLevel
	registry *stage.Registry
}

func newRootCmd() *cobra.Command {
	a := &app{registry: stages.NewRegistry()}

	root := &cobra.Command{
		Use:   "stagehand",
		Short: "Runs document pipeline stages",
		Long: `Stagehand runs pipeline stages over typed documents.

Documents are read and written as JSON lines in their typed wire form:

  {"_id": "doc-1", "fields": {"title": {"type": "STRING", "values": ["hello"]}}}

Logs go to stderr so stdout only carries documents.`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(
		&a.configFile, "config", "", "config file (default: ./stagehand.yaml or ~/.stagehand/stagehand.yaml)",
	)

	root.AddCommand(
		newStagesCmd(a),
		newValidateCmd(a),
		newRunCmd(a),
		newManifestCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	m, err := config.NewManager(a.configFile, nil)
	if err != nil {
		return err
	}
	logger, level, err := observability.NewLogger(m.Get().Log)
	if err != nil {
		return err
	}
	a.manager = m
	a.logger = logger
	a.level = level
	return nil
}
