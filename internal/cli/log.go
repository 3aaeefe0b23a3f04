package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kilupskalvis/ovc/internal/core"
	"github.com/kilupskalvis/ovc/internal/models"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show visible commits",
	Long:  `Display every commit reachable from the current view's heads, newest first.`,
	Run:   runLog,
}

var logLimit int

func init() {
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 0, "Limit the number of commits to show")
}

func runLog(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	view := c.Repo.View()
	commits, err := visibleCommitList(c, view)
	if err != nil {
		exitError("failed to walk commits: %v", err)
	}

	// Bookmark names per target, for inline decoration.
	decorations := make(map[models.CommitID][]string)
	for _, name := range view.BookmarkNames() {
		bt := view.Bookmark(name)
		if !bt.HasLocal() {
			continue
		}
		decorations[bt.Local] = append(decorations[bt.Local], bt.DisplayName(name))
	}
	wc := view.Workspaces[core.DefaultWorkspace]

	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	magenta := color.New(color.FgMagenta)

	shown := 0
	for _, commit := range commits {
		if logLimit > 0 && shown >= logLimit {
			break
		}
		shown++

		cyan.Printf("%s ", commit.ChangeID.ShortID())
		yellow.Printf("%s ", commit.ShortID())
		if commit.ID == wc {
			cyan.Print("(@) ")
		}
		if names := decorations[commit.ID]; len(names) > 0 {
			magenta.Printf("(%s) ", strings.Join(names, ", "))
		}
		switch {
		case commit.IsRoot():
			fmt.Println("(root)")
		case commit.Message == "":
			fmt.Println("(no description set)")
		default:
			fmt.Println(commit.Message)
		}
	}
}

// visibleCommitList collects every commit reachable from the view's heads,
// sorted newest first with the root pinned last.
func visibleCommitList(c *cmdContext, view *models.View) ([]*models.Commit, error) {
	seen := make(map[models.CommitID]bool)
	queue := append([]models.CommitID(nil), view.Heads...)
	var commits []*models.Commit
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		commit, err := c.Repo.Backend.ReadCommit(id)
		if err != nil {
			return nil, err
		}
		commits = append(commits, commit)
		queue = append(queue, commit.Parents...)
	}
	sort.Slice(commits, func(i, j int) bool {
		if commits[i].IsRoot() != commits[j].IsRoot() {
			return commits[j].IsRoot()
		}
		if !commits[i].Timestamp.Equal(commits[j].Timestamp) {
			return commits[i].Timestamp.After(commits[j].Timestamp)
		}
		return commits[i].ID < commits[j].ID
	})
	return commits, nil
}
