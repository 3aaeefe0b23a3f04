// Package cli implements the command-line interface for OVC.
package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/kilupskalvis/ovc/internal/backend"
	"github.com/kilupskalvis/ovc/internal/config"
	"github.com/kilupskalvis/ovc/internal/core"
	"github.com/kilupskalvis/ovc/internal/gitref"
	"github.com/kilupskalvis/ovc/internal/revset"
	"github.com/kilupskalvis/ovc/internal/store"
)

// cmdContext holds common resources for CLI commands
type cmdContext struct {
	Config *config.Config
	Repo   *core.Repo
}

// Close releases resources held by cmdContext
func (c *cmdContext) Close() {
	if c.Repo != nil {
		c.Repo.Ops.Close()
		c.Repo.Backend.Close()
	}
}

// initContext loads config and opens the repository
func initContext() *cmdContext {
	cfg, err := config.Load()
	if err != nil {
		exitError("%v", err)
	}

	b, err := backend.OpenSQLite(cfg.BackendPath())
	if err != nil {
		exitError("failed to open backend: %v", err)
	}

	ops, err := store.Open(cfg.OplogPath())
	if err != nil {
		b.Close()
		exitError("failed to open operation log: %v", err)
	}

	repo, err := core.Load(b, ops, cfg.Actor())
	if err != nil {
		ops.Close()
		b.Close()
		exitError("%v", err)
	}

	return &cmdContext{Config: cfg, Repo: repo}
}

// openRefs opens the external git ref store
func (c *cmdContext) openRefs() gitref.RefStore {
	refs, err := gitref.OpenBolt(c.Config.GitRefsPath())
	if err != nil {
		exitError("failed to open git ref store: %v", err)
	}
	return refs
}

// resolver returns a revset resolver over the current view
func (c *cmdContext) resolver() *revset.Resolver {
	return &revset.Resolver{
		Backend:   c.Repo.Backend,
		View:      c.Repo.View(),
		Workspace: core.DefaultWorkspace,
	}
}

var rootCmd = &cobra.Command{
	Use:   "ovc",
	Short: "Operation-log Version Control",
	Long: `OVC is a version-control engine built around an append-only operation
log. Every mutation of visible state is recorded as an undoable operation;
commits are immutable and rewrites (abandon, rebase) only change which
commits are visible.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

var debugFlag bool

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(abandonCmd)
	rootCmd.AddCommand(bookmarkCmd)
	rootCmd.AddCommand(opCmd)
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(gitCmd)
}

func setupLogging() {
	log.SetReportTimestamp(false)
	if debugFlag {
		log.SetLevel(log.DebugLevel)
		return
	}
	if lvl := os.Getenv("OVC_LOG_LEVEL"); lvl != "" {
		if parsed, err := log.ParseLevel(lvl); err == nil {
			log.SetLevel(parsed)
			return
		}
	}
	log.SetLevel(log.WarnLevel)
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
