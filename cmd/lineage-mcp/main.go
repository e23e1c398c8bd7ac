package main

import (
	"context"
	"os"

	"github.com/sha1n/mcp-lineage-server/internal/app"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Version is injected at build time
	Version = "dev"
	// Build is injected at build time
	Build = "unknown"
	// ProgramName is injected at build time
	ProgramName = "lineage-mcp"
)

func main() {
	runMain(os.Args, os.Exit)
}

func runMain(args []string, exit func(int)) {
	if err := Execute(Version, Build, ProgramName, args[1:]); err != nil {
		exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing
func Execute(version, build, programName string, args []string) error {
	rootCmd := &cobra.Command{
		Use:     programName,
		Short:   "Lineage MCP Server",
		Long:    "Imports genealogy archives into a note vault and serves them over MCP",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithFlags(cmd.Flags(), version)
		},
	}

	rootCmd.SetVersionTemplate(`{{.Version}}
`)

	app.RegisterFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(newImportCommand())
	rootCmd.SetArgs(args)

	return rootCmd.Execute()
}

func newImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [archive...]",
		Short: "Import archives into the vault and exit",
		Long:  "Imports the given archives, or the configured startup archives, into the vault and prints a summary per archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunImport(cmd.Context(), app.DefaultImportParams(), cmd.Flags(), args)
		},
	}
	app.RegisterImportFlags(cmd.Flags())
	return cmd
}

func runWithFlags(flags *pflag.FlagSet, version string) error {
	return app.RunWithDeps(context.Background(), app.DefaultRunParams(), flags, version)
}
