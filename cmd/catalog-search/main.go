package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sha1n/mcp-catalog-search/internal/app"
	"github.com/sha1n/mcp-catalog-search/internal/catalog"
	"github.com/sha1n/mcp-catalog-search/internal/indexing"
)

var (
	// Version is injected at build time
	Version = "dev"
	// Build is injected at build time
	Build = "unknown"
	// ProgramName is injected at build time
	ProgramName = "catalog-search"
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
		Short:   "Catalog search MCP server",
		Long:    "Keeps a search index in sync with the catalog and serves reconciled catalog searches over MCP",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithFlags(cmd.Flags(), version)
		},
	}

	rootCmd.SetVersionTemplate(`{{.Version}}
`)

	app.RegisterFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(newBuildCommand(), newImportCommand())
	rootCmd.SetArgs(args)

	return rootCmd.Execute()
}

func runWithFlags(flags *pflag.FlagSet, version string) error {
	return app.RunWithDeps(context.Background(), app.DefaultRunParams(), flags, version)
}

func newBuildCommand() *cobra.Command {
	var documentType string
	var rebuild bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Run one index build and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), cmd.Flags(), cmd.OutOrStdout(), documentType, rebuild)
		},
	}
	cmd.Flags().StringVar(&documentType, "document-type", "", "Build a single document type (category or catalogitem)")
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "Clear and re-index instead of applying recent changes")
	return cmd
}

func runBuild(ctx context.Context, flags *pflag.FlagSet, out io.Writer, documentType string, rebuild bool) (err error) {
	settings, err := app.LoadValidSettings(app.DefaultRunParams(), flags)
	if err != nil {
		return err
	}
	app.ConfigureLogging(settings)

	components, err := app.NewComponents(settings)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := components.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	stats := make(map[string]indexing.BuildStats)
	if documentType == "" {
		stats, err = components.Service.BuildAll(ctx, rebuild)
	} else {
		var s indexing.BuildStats
		s, err = components.Service.Build(ctx, documentType, rebuild)
		stats[documentType] = s
	}
	printStats(out, components.Service.Scope(), stats)
	return err
}

func printStats(out io.Writer, scope string, stats map[string]indexing.BuildStats) {
	types := make([]string, 0, len(stats))
	for t := range stats {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		s := stats[t]
		_, _ = fmt.Fprintf(out, "%s/%s: %d partitions, %d indexed, %d removed, %d missing\n",
			scope, t, s.Partitions, s.Indexed, s.Removed, s.Missing)
	}
}

func newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <seed.yaml>",
		Short: "Load catalog entities from a YAML seed file into the catalog store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cmd.Flags(), cmd.OutOrStdout(), args[0])
		},
	}
}

func runImport(ctx context.Context, flags *pflag.FlagSet, out io.Writer, path string) error {
	settings, err := app.LoadValidSettings(app.DefaultRunParams(), flags)
	if err != nil {
		return err
	}
	app.ConfigureLogging(settings)

	seed, err := catalog.LoadSeedFile(path)
	if err != nil {
		return err
	}

	store, err := catalog.NewStore(settings.Catalog.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	saved, deleted, err := catalog.Import(ctx, store, seed)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Imported %d entities, deleted %d\n", saved, deleted)
	return nil
}
