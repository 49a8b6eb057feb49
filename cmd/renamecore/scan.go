package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"renamecore/internal/coordinator"
	"renamecore/internal/core"
)

func newScanCmd(newCtx func() *core.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <folder>",
		Short: "Load a folder's file list and publish it to the coordinator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := args[0]
			paths, err := walkFiles(root)
			if err != nil {
				return err
			}

			items := make([]coordinator.FileItem, 0, len(paths))
			for _, p := range paths {
				items = append(items, coordinator.FileItem{Path: p, Name: string(p)})
			}

			c := newCtx()
			defer c.Close(cmd.Context())
			c.Coordinator.SetFiles(coordinator.FolderSnapshot{Root: root, Files: items})

			color.New(color.FgGreen).Printf("Loaded %d files from %s\n", len(items), root)
			for _, p := range paths {
				fmt.Println(p)
			}
			return nil
		},
	}
	return cmd
}
