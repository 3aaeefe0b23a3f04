package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kilupskalvis/ovc/internal/core"
	"github.com/kilupskalvis/ovc/internal/gitref"
	"github.com/kilupskalvis/ovc/internal/models"
)

var gitCmd = &cobra.Command{
	Use:   "git",
	Short: "Synchronize bookmarks with the external git ref store",
	Long: `Import reads refs under refs/heads/ from the external store into
bookmarks; the whole import is one operation and fully undoable. Export
writes out-of-sync bookmarks back; undoing an export reverts the in-repo
tracking record but never the refs already written externally.`,
}

var gitImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import external refs into bookmarks",
	Run:   runGitImport,
}

var gitExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export bookmarks to external refs",
	Run:   runGitExport,
}

func init() {
	gitCmd.AddCommand(gitImportCmd)
	gitCmd.AddCommand(gitExportCmd)
}

func runGitImport(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()
	refs := c.openRefs()
	defer refs.Close()

	tx := c.Repo.StartTransaction()
	report, err := c.Repo.ImportRefs(tx, refs, core.ImportOptions{
		AutoTrack: c.Config.AutoTrackBookmarks,
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
	if _, err := tx.Commit("import git refs"); err != nil {
		exitError("%v", err)
	}

	for _, name := range report.Names() {
		fmt.Printf("bookmark: %s %s\n", name, describeImportChange(report.Changes[name], c.Config.AutoTrackBookmarks))
	}
}

func describeImportChange(change models.BookmarkChange, autoTrack bool) string {
	switch change {
	case models.BookmarkCreated:
		if autoTrack {
			return "[new] tracked"
		}
		return "[new] untracked"
	case models.BookmarkUpdated:
		return "[updated] tracked"
	case models.BookmarkDeleted:
		return "[deleted] tracked"
	case models.BookmarkConflicted:
		return "[updated] tracked (conflicted)"
	}
	return string(change)
}

func runGitExport(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()
	refs := c.openRefs()
	defer refs.Close()

	tx := c.Repo.StartTransaction()
	report, err := c.Repo.ExportRefs(tx, refs)
	if err != nil {
		tx.Discard()
		exitError("%v", err)
	}
	if len(report.Results) == 0 {
		tx.Discard()
		fmt.Println("Nothing changed.")
		return
	}
	if _, err := tx.Commit("export git refs"); err != nil {
		exitError("%v", err)
	}

	exported := 0
	for _, res := range report.Results {
		if !res.Failed() {
			exported++
		}
	}
	if exported > 0 {
		fmt.Printf("Exported %d bookmarks\n", exported)
	}

	failures := report.Failures()
	if len(failures) > 0 {
		red := color.New(color.FgRed)
		red.Println("Failed to export some bookmarks:")
		for _, f := range failures {
			fmt.Printf("  %s: %s\n", strings.TrimPrefix(f.Ref, gitref.HeadsNamespace), f.Reason)
		}
	}
}
