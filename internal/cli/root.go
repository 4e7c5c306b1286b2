// Package cli implements the storymig command-line interface.
// Built with cobra:
// - Migrations run one at a time, in argument order
// - The first fatal error halts the batch
// - --dry-run never touches the remote space
package cli

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose    bool
	quiet      bool
	configPath string
	dryRun     bool
)

// rootCmd is the base command for storymig.
var rootCmd = &cobra.Command{
	Use:   "storymig",
	Short: "Schema and content migrations for a headless CMS space",
	Long: `storymig applies migration files to a headless CMS space.

It provides:
  • Idempotent create, diff-based update and safe delete of components,
    component groups, stories and datasources
  • Bulk content transforms over every story using a component
  • Rollback snapshots written before every destructive update
  • A run journal (SQLite, optionally SQLCipher-encrypted)`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Use alternate config file")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without doing it")

	runCmd.Flags().StringVar(&runFlags.publish, "publish", "", "Publish mutated stories: all, published or published-with-changes")
	runCmd.Flags().StringVar(&runFlags.publishLanguages, "publish-languages", "", "Languages to publish (ALL_LANGUAGES for every language)")
	runCmd.Flags().IntVar(&runFlags.throttle, "throttle", 0, "Maximum requests per second (overrides config)")
	runCmd.Flags().StringVar(&runFlags.space, "space", "", "Target space id (overrides config)")
	runCmd.Flags().StringVar(&runFlags.token, "token", "", "Management API OAuth token (overrides config)")

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of runs to show")
	historyCmd.Flags().BoolVar(&historyPending, "pending", false, "Only show runs that never finished")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(rollbacksCmd)
	rootCmd.AddCommand(transformsCmd)
}

type migrateFlags struct {
	publish          string
	publishLanguages string
	throttle         int
	space            string
	token            string
}

var (
	runFlags       migrateFlags
	historyLimit   int
	historyPending bool
)

var runCmd = &cobra.Command{
	Use:   "run <file>...",
	Short: "Run migration files against the space",
	Long: `Run every migration in the given files, one at a time, in order.

A file may hold several YAML documents; each is one migration.
The batch halts on the first fatal error.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunMigrate(cmd.Context(), args, runFlags)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Load and validate migration files without running them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunValidate(args)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List journaled migration runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunHistory(cmd.Context(), historyLimit, historyPending)
	},
}

var rollbacksCmd = &cobra.Command{
	Use:   "rollbacks",
	Short: "List rollback snapshot files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunRollbacks()
	},
}

var transformsCmd = &cobra.Command{
	Use:   "transforms",
	Short: "List registered content transforms",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunTransforms()
	},
}
