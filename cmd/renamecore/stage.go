package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"renamecore/internal/core"
	"renamecore/internal/pathkey"
)

func newStageCmd(newCtx func() *core.Context) *cobra.Command {
	var clear bool
	cmd := &cobra.Command{
		Use:   "stage <file> <field> <old> <new>",
		Short: "Stage a field edit for a file (or clear staged changes with --clear)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newCtx()
			defer c.Close(cmd.Context())

			path := pathkey.Normalize(args[0])

			if clear {
				c.ClearStaging(path)
				color.New(color.FgYellow).Printf("Cleared staged changes for %s\n", path)
				return nil
			}

			if len(args) != 4 {
				return cmd.Help()
			}
			kp := pathkey.ParseKeyPath(args[1])
			c.StageChange(path, kp, args[2], args[3])
			color.New(color.FgGreen).Printf("Staged %s: %q -> %q on %s\n", kp, args[2], args[3], path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "clear staged changes for the file instead of staging a new one")
	return cmd
}
