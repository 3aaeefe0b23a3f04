package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kilupskalvis/ovc/internal/core"
	"github.com/kilupskalvis/ovc/internal/models"
)

var newCmd = &cobra.Command{
	Use:   "new [PARENT...]",
	Short: "Create a new commit and advance the working copy",
	Long: `Create a new commit on top of the given parents and move the
working-copy pointer to it. With no arguments the parent is the current
working copy. With several parents the new commit is a merge.

Examples:
  ovc new -m "start feature"       # Child of the working copy
  ovc new -m "merge" abc123 def45  # Merge commit`,
	Run: runNew,
}

var newMessage string

func init() {
	newCmd.Flags().StringVarP(&newMessage, "message", "m", "", "Commit message")
}

func runNew(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	res := c.resolver()
	var parents []models.CommitID
	for _, arg := range args {
		ids, err := res.Resolve(arg)
		if err != nil {
			exitError("%v", err)
		}
		if len(ids) != 1 {
			exitError("revset %q must resolve to exactly one commit", arg)
		}
		parents = append(parents, ids[0])
	}

	tx := c.Repo.StartTransaction()
	commit, err := c.Repo.NewCommit(tx, parents, newMessage, core.DefaultWorkspace)
	if err != nil {
		tx.Discard()
		exitError("%v", err)
	}

	desc := fmt.Sprintf("new commit %s", commit.ShortID())
	if len(parents) > 1 {
		short := make([]string, len(parents))
		for i, p := range parents {
			short[i] = p.ShortID()
		}
		desc = fmt.Sprintf("new merge commit %s of %s", commit.ShortID(), strings.Join(short, ", "))
	}
	if _, err := tx.Commit(desc); err != nil {
		exitError("%v", err)
	}

	fmt.Printf("Working copy now at: %s %s\n", commit.ShortID(), commit.Message)
}
