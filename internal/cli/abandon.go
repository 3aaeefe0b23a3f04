package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kilupskalvis/ovc/internal/core"
	"github.com/kilupskalvis/ovc/internal/models"
)

var abandonCmd = &cobra.Command{
	Use:   "abandon REVSET...",
	Short: "Abandon commits and rebase their descendants",
	Long: `Hide the given commits from the repository and rebase every visible
descendant onto the abandoned commits' parents. Content of descendants is
carried along unchanged unless --restore-descendants is given, in which
case each descendant's diff is reapplied against its new parents.

Examples:
  ovc abandon abc123            # Abandon one commit
  ovc abandon abc123::          # Abandon a commit and its descendants
  ovc abandon --retain-bookmarks feature`,
	Args: cobra.MinimumNArgs(1),
	Run:  runAbandon,
}

var (
	abandonRetainBookmarks    bool
	abandonRestoreDescendants bool
)

func init() {
	abandonCmd.Flags().BoolVar(&abandonRetainBookmarks, "retain-bookmarks", false,
		"Move bookmarks on abandoned commits to their parents instead of deleting them")
	abandonCmd.Flags().BoolVar(&abandonRestoreDescendants, "restore-descendants", false,
		"Reapply each descendant's content diff against its new parents")
}

func runAbandon(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	res := c.resolver()
	var targets []models.CommitID
	seen := make(map[models.CommitID]bool)
	for _, arg := range args {
		ids, err := res.Resolve(arg)
		if err != nil {
			exitError("%v", err)
		}
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				targets = append(targets, id)
			}
		}
	}
	if len(targets) == 0 {
		fmt.Println("No revisions to abandon.")
		fmt.Println("Nothing changed.")
		return
	}

	tx := c.Repo.StartTransaction()
	report, err := c.Repo.Abandon(tx, targets, core.AbandonOptions{
		RetainBookmarks:    abandonRetainBookmarks,
		RestoreDescendants: abandonRestoreDescendants,
	})
	if err != nil {
		tx.Discard()
		exitError("%v", err)
	}
	if report.Empty() {
		tx.Discard()
		fmt.Println("Nothing changed.")
		return
	}

	desc := fmt.Sprintf("abandon commit %s", report.Abandoned[0].ID.ShortID())
	if len(report.Abandoned) > 1 {
		desc = fmt.Sprintf("abandon %d commits", len(report.Abandoned))
	}
	if _, err := tx.Commit(desc); err != nil {
		exitError("%v", err)
	}

	printAbandonReport(report)
}

func printAbandonReport(report *models.AbandonReport) {
	if len(report.Abandoned) == 1 {
		a := report.Abandoned[0]
		fmt.Printf("Abandoned commit %s %s\n", a.ID.ShortID(), describeMessage(a.Message))
	} else {
		fmt.Println("Abandoned the following commits:")
		for _, a := range report.Abandoned {
			fmt.Printf("  %s %s\n", a.ID.ShortID(), describeMessage(a.Message))
		}
	}

	if len(report.DeletedBookmarks) > 0 {
		fmt.Printf("Deleted bookmarks: %s\n", strings.Join(report.DeletedBookmarks, ", "))
	}
	if report.RebasedDescendants > 0 {
		if abandonRestoreDescendants {
			fmt.Printf("Rebased %d descendant commits (while preserving their content) onto parents of abandoned commits\n",
				report.RebasedDescendants)
		} else {
			fmt.Printf("Rebased %d descendant commits onto parents of abandoned commits\n",
				report.RebasedDescendants)
		}
	}
	if wc, ok := report.NewWorkingCopy[core.DefaultWorkspace]; ok {
		fmt.Printf("Working copy now at: %s\n", wc.ShortID())
	}
}

func describeMessage(message string) string {
	if message == "" {
		return "(no description set)"
	}
	return message
}
