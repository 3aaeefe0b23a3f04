package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilupskalvis/ovc/internal/backend"
	"github.com/kilupskalvis/ovc/internal/config"
	"github.com/kilupskalvis/ovc/internal/core"
	"github.com/kilupskalvis/ovc/internal/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new OVC repository",
	Long: `Initialize a new OVC repository in the current directory.
This creates a .ovc directory holding the commit backend, the operation
log, and the repository configuration.`,
	Run: runInit,
}

var (
	initUserName  string
	initUserEmail string
)

func init() {
	initCmd.Flags().StringVar(&initUserName, "name", "", "User name recorded on operations")
	initCmd.Flags().StringVar(&initUserEmail, "email", "", "User email recorded on operations")
}

func runInit(cmd *cobra.Command, args []string) {
	if _, err := config.FindOVCRoot(); err == nil {
		exitError("ovc repository already exists")
	}

	cfg, err := config.Initialize(initUserName, initUserEmail)
	if err != nil {
		exitError("failed to initialize config: %v", err)
	}

	b, err := backend.OpenSQLite(cfg.BackendPath())
	if err != nil {
		exitError("failed to create backend: %v", err)
	}
	defer b.Close()

	ops, err := store.Open(cfg.OplogPath())
	if err != nil {
		exitError("failed to create operation log: %v", err)
	}
	defer ops.Close()

	repo, err := core.Init(b, ops, cfg.Actor())
	if err != nil {
		exitError("failed to initialize repository: %v", err)
	}

	wc := repo.View().Workspaces[core.DefaultWorkspace]
	fmt.Printf("Initialized empty OVC repository in %s/\n", config.OVCDir)
	fmt.Printf("Working copy now at: %s\n", wc.ShortID())
}
