package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"renamecore/internal/core"
	"renamecore/internal/pathkey"
	"renamecore/internal/writeback"
)

func newSaveCmd(newCtx func() *core.Context) *cobra.Command {
	var all bool
	var yes bool
	var reportPath string
	cmd := &cobra.Command{
		Use:   "save [files...]",
		Short: "Commit staged changes back to disk through the external metadata tool",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newCtx()
			defer c.Close(cmd.Context())

			if !all && len(args) == 0 {
				return cmd.Help()
			}
			if !yes && !confirmPrompt("Commit staged changes to disk?") {
				color.New(color.FgYellow).Println("Aborted.")
				return nil
			}

			ctx, cancel := interruptContext()
			defer cancel()

			var summary writeback.Summary
			var err error
			if all {
				summary, err = c.SaveAll(ctx)
			} else {
				paths := make([]pathkey.Key, 0, len(args))
				for _, a := range args {
					paths = append(paths, pathkey.Normalize(a))
				}
				summary, err = c.SaveSelected(ctx, paths)
			}
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Println(summary.String())

			if reportPath == "" {
				reportPath = filepath.Join(os.TempDir(), fmt.Sprintf("renamecore_report_%s.html", time.Now().Format("20060102_150405")))
			}
			if err := writeback.WriteHTMLReport(reportPath, summary); err != nil {
				color.New(color.FgYellow).Printf("could not write report: %v\n", err)
			} else {
				color.New(color.FgCyan).Printf("Report: %s\n", reportPath)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "save every file with staged changes")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	cmd.Flags().StringVar(&reportPath, "report", "", "path to write an HTML save report (default: a timestamped file in the temp dir)")
	return cmd
}
