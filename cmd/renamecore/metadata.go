package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"renamecore/internal/core"
	"renamecore/internal/eventbus"
	"renamecore/internal/metadataworker"
)

func newMetadataCmd(newCtx func() *core.Context) *cobra.Command {
	var fast bool
	cmd := &cobra.Command{
		Use:   "metadata <folder>",
		Short: "Load metadata for every file under a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := walkFiles(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := interruptContext()
			defer cancel()

			c := newCtx()
			defer c.Close(cmd.Context())

			bar := newProgressBar(len(paths), "Reading metadata")
			c.Bus.Subscribe(metadataworker.TopicProgress, func(eventbus.Event) { bar.Add(1) })

			results, err := c.RequestMetadata(ctx, paths, fast)
			if err != nil {
				return err
			}

			var ok, failed int
			for _, r := range results {
				if r.Err != nil {
					failed++
					continue
				}
				ok++
			}
			color.New(color.FgGreen).Printf("Loaded: %d, Errors: %d\n", ok, failed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fast, "fast", true, "use the fast local reader when possible instead of the external tool")
	return cmd
}
