package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/wehubfusion/Stagehand/pkg/manifest"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "stagehand %s\n", version)
			fmt.Fprintf(out, "  SDK: %s\n", manifest.SDKVersion)
			fmt.Fprintf(out, "  Go:  %s\n", runtime.Version())
		},
	}
}
