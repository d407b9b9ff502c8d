// Package cli implements the recall command-line interface: storage
// initialization, history inspection, undo/redo navigation, and the
// completion index, over a database selected by flag, config, or
// environment.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/recall/internal/paths"
	"github.com/mesh-intelligence/recall/pkg/graph"
	"github.com/mesh-intelligence/recall/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	database  string
	jsonMode  bool
	verbose   bool
}

var flags rootFlags

// configDatabase holds the db value loaded from config.yaml. Set by
// PersistentPreRunE so all subcommands can use it.
var configDatabase string

// NewRootCmd creates the top-level "recall" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "recall",
		Short:   "Recall is an object-graph store with durable undo/redo",
		Long:    "Recall persists typed records as a graph of JSON vertices and labeled\nedges, and records every mutation in a durable undo/redo history.",
		Version: version,
		// Do not print usage on errors returned by subcommands.
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configDir, err := paths.ResolveConfigDir(flags.configDir)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(configDir)
			if err != nil {
				return err
			}
			configDatabase = cfg.GetString(cfgKeyDatabase)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&flags.database, "db", "", "database file (default: $(CWD)/recall.db)")
	root.PersistentFlags().BoolVar(&flags.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().BoolVar(&flags.verbose, "verbose", false, "enable debug logging")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newUndoCmd())
	root.AddCommand(newRedoCmd())
	root.AddCommand(newCompletionsCmd())

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(exitUserError)
	}
}

// openGraph resolves the database path and opens the engine.
func openGraph() (*graph.Graph, error) {
	path, err := paths.ResolveDatabase(flags.database, configDatabase)
	if err != nil {
		return nil, fmt.Errorf("resolving database path: %w", err)
	}
	log := zap.NewNop()
	if flags.verbose {
		log, err = zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("building logger: %w", err)
		}
	}
	return graph.Open(types.Config{Path: path}, graph.WithLogger(log))
}

// exitError prints the error to stderr and exits with the given code.
func exitError(cmd *cobra.Command, code int, msg string) error {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(code)
	return nil // unreachable
}
