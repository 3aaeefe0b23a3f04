package cli

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kilupskalvis/ovc/internal/models"
)

var opCmd = &cobra.Command{
	Use:   "op",
	Short: "Inspect and roll back the operation log",
	Long: `Every repository mutation is an operation. "op log" lists them,
"op undo" reverts the changes one operation made, and "op restore" rewinds
the whole repository state to what an operation saw.`,
}

var opLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the operation log",
	Run:   runOpLog,
}

var opUndoCmd = &cobra.Command{
	Use:   "undo [OPERATION]",
	Short: "Undo an operation",
	Long: `Apply the inverse of an operation's changes to the current state.
Defaults to the latest operation. Undoing an old operation keeps every
later change; only that operation's delta is reverted.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runOpUndo,
}

var opRestoreCmd = &cobra.Command{
	Use:   "restore OPERATION",
	Short: "Restore the repository to an operation's state",
	Args:  cobra.ExactArgs(1),
	Run:   runOpRestore,
}

func init() {
	opCmd.AddCommand(opLogCmd)
	opCmd.AddCommand(opUndoCmd)
	opCmd.AddCommand(opRestoreCmd)
}

func runOpLog(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	ops, err := ancestorOperations(c, c.Repo.Head().ID)
	if err != nil {
		exitError("failed to walk operation log: %v", err)
	}

	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	for _, op := range ops {
		yellow.Printf("%s ", op.ShortID())
		if op.ID == c.Repo.Head().ID {
			cyan.Print("(current) ")
		}
		fmt.Printf("%s", op.Description)
		if len(op.Parents) > 1 {
			fmt.Printf(" (merged %d heads)", len(op.Parents))
		}
		fmt.Println()
		fmt.Printf("  %s %s\n", op.Actor, op.Timestamp.Local().Format("2006-01-02 15:04:05"))
	}
}

func runOpUndo(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	target := c.Repo.Head()
	if len(args) > 0 {
		target = resolveOperation(c, args[0])
	}

	if _, err := c.Repo.Undo(target.ID); err != nil {
		exitError("%v", err)
	}
	fmt.Printf("Undid operation: %s %s\n", target.ShortID(), target.Description)
}

func runOpRestore(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	target := resolveOperation(c, args[0])
	if _, err := c.Repo.Restore(target.ID); err != nil {
		exitError("%v", err)
	}
	fmt.Printf("Restored to operation: %s %s\n", target.ShortID(), target.Description)
}

// resolveOperation looks an operation up by id or unique prefix.
func resolveOperation(c *cmdContext, prefix string) *models.Operation {
	ids, err := c.Repo.Ops.ResolvePrefix(prefix)
	if err != nil {
		exitError("%v", err)
	}
	switch len(ids) {
	case 1:
		op, err := c.Repo.Ops.GetOperation(ids[0])
		if err != nil {
			exitError("%v", err)
		}
		return op
	case 0:
		exitError("operation %q doesn't exist", prefix)
	default:
		exitError("operation id prefix %q is ambiguous", prefix)
	}
	return nil
}

// ancestorOperations returns every operation reachable from head, newest
// first.
func ancestorOperations(c *cmdContext, head models.OperationID) ([]*models.Operation, error) {
	seen := make(map[models.OperationID]bool)
	queue := []models.OperationID{head}
	var ops []*models.Operation
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		op, err := c.Repo.Ops.GetOperation(id)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		queue = append(queue, op.Parents...)
	}
	sort.Slice(ops, func(i, j int) bool {
		if !ops[i].Timestamp.Equal(ops[j].Timestamp) {
			return ops[i].Timestamp.After(ops[j].Timestamp)
		}
		return ops[i].ID < ops[j].ID
	})
	return ops, nil
}
