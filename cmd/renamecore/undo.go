package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"renamecore/internal/core"
)

func newUndoCmd(newCtx func() *core.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Undo the most recent staged command",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newCtx()
			defer c.Close(cmd.Context())
			if !c.Undo() {
				color.New(color.FgYellow).Println("Nothing to undo.")
				return nil
			}
			color.New(color.FgGreen).Println("Undone.")
			return nil
		},
	}
}

func newRedoCmd(newCtx func() *core.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "redo",
		Short: "Redo the most recently undone command",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newCtx()
			defer c.Close(cmd.Context())
			if !c.Redo() {
				color.New(color.FgYellow).Println("Nothing to redo.")
				return nil
			}
			color.New(color.FgGreen).Println("Redone.")
			return nil
		},
	}
}

func newHistoryCmd(newCtx func() *core.Context) *cobra.Command {
	var interactive bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the undo stack, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newCtx()
			defer c.Close(cmd.Context())
			hist := c.History()

			if interactive {
				return runHistoryViewer(hist)
			}

			if len(hist) == 0 {
				color.New(color.FgYellow).Println("No history.")
				return nil
			}
			for _, entry := range hist {
				color.New(color.FgCyan).Printf("%s %s\n", entry.Timestamp().Format("15:04:05"), entry.Description())
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "browse history in a scrollable terminal viewer")
	return cmd
}
