package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kilupskalvis/ovc/internal/core"
	"github.com/kilupskalvis/ovc/internal/models"
)

var bookmarkCmd = &cobra.Command{
	Use:     "bookmark",
	Aliases: []string{"b"},
	Short:   "Manage bookmarks",
	Long: `List, create, move, or delete bookmarks. A bookmark names a commit;
git import and export translate bookmarks to and from external refs.

A bookmark shown with a "??" suffix is conflicted: it moved both locally
and on the remote since the last sync and needs an explicit re-set.`,
}

var bookmarkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List bookmarks",
	Run:   runBookmarkList,
}

var bookmarkCreateCmd = &cobra.Command{
	Use:   "create NAME [REV]",
	Short: "Create a bookmark",
	Args:  cobra.RangeArgs(1, 2),
	Run:   runBookmarkCreate,
}

var bookmarkSetCmd = &cobra.Command{
	Use:   "set NAME REV",
	Short: "Move a bookmark to another commit",
	Args:  cobra.ExactArgs(2),
	Run:   runBookmarkSet,
}

var bookmarkDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a bookmark",
	Args:  cobra.ExactArgs(1),
	Run:   runBookmarkDelete,
}

func init() {
	bookmarkCmd.AddCommand(bookmarkListCmd)
	bookmarkCmd.AddCommand(bookmarkCreateCmd)
	bookmarkCmd.AddCommand(bookmarkSetCmd)
	bookmarkCmd.AddCommand(bookmarkDeleteCmd)
}

func runBookmarkList(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	view := c.Repo.View()
	names := view.BookmarkNames()
	if len(names) == 0 {
		fmt.Println("No bookmarks.")
		return
	}

	magenta := color.New(color.FgMagenta)
	for _, name := range names {
		bt := view.Bookmark(name)
		if !bt.HasLocal() {
			// Deleted locally, deletion not exported yet.
			magenta.Printf("%s", name)
			fmt.Println(" (deleted, pending export)")
			continue
		}

		magenta.Printf("%s", bt.DisplayName(name))
		fmt.Printf(": %s", bt.Local.ShortID())

		if bt.IsConflicted() {
			fmt.Print(" (conflicted)")
			for _, cand := range bt.Conflict {
				fmt.Printf("\n  candidate: %s", cand.ShortID())
			}
			fmt.Println()
			continue
		}

		status, err := c.Repo.BookmarkTracking(bt)
		if err != nil {
			exitError("%v", err)
		}
		if status != nil {
			switch status.State {
			case core.TrackingAhead:
				fmt.Printf(" (ahead by %d commits)", status.Ahead)
			case core.TrackingBehind:
				fmt.Printf(" (behind by %d commits)", status.Behind)
			case core.TrackingDiverged:
				fmt.Printf(" (ahead by %d commits, behind by %d commits)", status.Ahead, status.Behind)
			}
		}
		fmt.Println()
	}
}

func runBookmarkCreate(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	name := args[0]
	if c.Repo.View().Bookmark(name) != nil {
		exitError("bookmark %q already exists", name)
	}

	target := resolveSingle(c, "@")
	if len(args) > 1 {
		target = resolveSingle(c, args[1])
	}

	tx := c.Repo.StartTransaction()
	tx.View().SetBookmark(name, models.NewBookmarkTarget(target))
	if _, err := tx.Commit(fmt.Sprintf("create bookmark %s", name)); err != nil {
		exitError("%v", err)
	}
	fmt.Printf("Created bookmark %s at %s\n", name, target.ShortID())
}

func runBookmarkSet(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	name := args[0]
	target := resolveSingle(c, args[1])

	tx := c.Repo.StartTransaction()
	view := tx.View()
	nb := &models.BookmarkTarget{}
	if bt := view.Bookmark(name); bt != nil {
		nb = bt.Clone()
	}
	// Setting a conflicted bookmark resolves it.
	nb.Conflict = nil
	nb.Local = target
	view.SetBookmark(name, nb)
	if _, err := tx.Commit(fmt.Sprintf("set bookmark %s to %s", name, target.ShortID())); err != nil {
		exitError("%v", err)
	}
	fmt.Printf("Moved bookmark %s to %s\n", name, target.ShortID())
}

func runBookmarkDelete(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	name := args[0]
	tx := c.Repo.StartTransaction()
	view := tx.View()
	bt := view.Bookmark(name)
	if bt == nil || !bt.HasLocal() {
		tx.Discard()
		exitError("bookmark %q doesn't exist", name)
	}

	// Keep remote-tracking memory so the next export propagates the
	// deletion to the external store.
	nb := bt.Clone()
	nb.Local = ""
	nb.Conflict = nil
	view.SetBookmark(name, nb)
	if _, err := tx.Commit(fmt.Sprintf("delete bookmark %s", name)); err != nil {
		exitError("%v", err)
	}
	fmt.Printf("Deleted bookmark %s\n", name)
}

func resolveSingle(c *cmdContext, expr string) models.CommitID {
	ids, err := c.resolver().Resolve(expr)
	if err != nil {
		exitError("%v", err)
	}
	if len(ids) != 1 {
		exitError("revset %q must resolve to exactly one commit", expr)
	}
	return ids[0]
}
