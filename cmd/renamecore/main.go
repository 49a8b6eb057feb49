// renamecore: batch file-renaming metadata engine — hash/metadata caches,
// staged edits with undo/redo, and a write-back command that commits
// staged changes through an external metadata tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"renamecore/internal/core"
	"renamecore/internal/pathkey"
)

func main() {
	var projectDir, dbPath, toolPath string

	rootCmd := &cobra.Command{
		Use:   "renamecore",
		Short: "Stage and commit batch metadata edits across a folder of files",
		Long: `renamecore loads file metadata, lets you stage field edits with
full undo/redo, and commits staged changes back to disk through an
external metadata tool (exiftool by default).`,
	}
	rootCmd.PersistentFlags().StringVar(&projectDir, "project", ".", "project directory (holds the cache database)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the cache database (defaults under --project)")
	rootCmd.PersistentFlags().StringVar(&toolPath, "tool", "", "external metadata tool path (defaults to exiftool on PATH)")

	newCtx := func() *core.Context {
		db := dbPath
		if db == "" {
			db = filepath.Join(projectDir, ".renamecore", "cache.db")
		}
		c, err := core.New(core.Options{ProjectDir: projectDir, DBPath: db, ExternalToolPath: toolPath})
		if err != nil {
			color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "[FATAL] %v\n", err)
			os.Exit(1)
		}
		return c
	}

	rootCmd.AddCommand(
		newScanCmd(newCtx),
		newHashCmd(newCtx),
		newMetadataCmd(newCtx),
		newStageCmd(newCtx),
		newSaveCmd(newCtx),
		newUndoCmd(newCtx),
		newRedoCmd(newCtx),
		newHistoryCmd(newCtx),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// interruptContext returns a context cancelled on SIGINT/SIGTERM, printing a
// colored notice the way the teacher's main.go handled Ctrl+C.
func interruptContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		color.New(color.FgRed, color.Bold).Println("\nInterrupted. Finishing in-flight work and exiting.")
		cancel()
	}()
	return ctx, cancel
}

func walkFiles(root string) ([]pathkey.Key, error) {
	var out []pathkey.Key
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			out = append(out, pathkey.Normalize(path))
		}
		return nil
	})
	return out, err
}

func confirmPrompt(label string) bool {
	p := promptui.Select{Label: label, Items: []string{"Yes", "No"}}
	_, result, err := p.Run()
	if err != nil {
		return false
	}
	return result == "Yes"
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(
		total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionClearOnFinish(),
	)
}
