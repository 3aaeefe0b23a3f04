package cli

import (
	"github.com/spf13/cobra"
)

// undoCmd is a top-level shorthand for "op undo".
var undoCmd = &cobra.Command{
	Use:   "undo [OPERATION]",
	Short: "Undo an operation (shorthand for \"op undo\")",
	Args:  cobra.MaximumNArgs(1),
	Run:   runOpUndo,
}
