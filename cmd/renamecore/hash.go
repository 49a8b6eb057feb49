package main

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"renamecore/internal/core"
	"renamecore/internal/eventbus"
	"renamecore/internal/hashworker"
	"renamecore/internal/resume"
)

func newHashCmd(newCtx func() *core.Context) *cobra.Command {
	var algorithm string
	var resumable bool
	var stateDir string
	var op string
	var externalFolder string
	cmd := &cobra.Command{
		Use:   "hash <folder>",
		Short: "Compute hashes for every file under a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := args[0]
			paths, err := walkFiles(root)
			if err != nil {
				return err
			}

			var state *resume.State
			if resumable {
				dir := stateDir
				if dir == "" {
					dir = filepath.Join(root, ".renamecore", "resume")
				}
				existing, _ := resume.FindStateFiles(dir)
				if len(existing) > 0 {
					state, err = resume.Load(existing[0])
				} else {
					state, err = resume.New(dir, root)
				}
				if err != nil {
					return err
				}
				defer state.Close()

				filtered := paths[:0]
				for _, p := range paths {
					if !state.IsProcessed(string(p)) {
						filtered = append(filtered, p)
					}
				}
				paths = filtered
			}

			operation, err := parseHashOp(op)
			if err != nil {
				return err
			}
			if operation == hashworker.OperationExternalComparison && externalFolder == "" {
				return fmt.Errorf("--external-folder is required for --op compare")
			}

			ctx, cancel := interruptContext()
			defer cancel()

			c := newCtx()
			defer c.Close(cmd.Context())

			bar := newProgressBar(len(paths), "Hashing")
			c.Bus.Subscribe(hashworker.TopicProgress, func(eventbus.Event) { bar.Add(1) })

			result, err := c.RequestHashes(ctx, paths, algorithm, operation, externalFolder)
			if err != nil {
				return err
			}

			switch operation {
			case hashworker.OperationDuplicateScan:
				printDuplicateGroups(result.Duplicates)
			case hashworker.OperationExternalComparison:
				printComparisonResults(result.Comparison)
			default:
				var ok, failed, cached int
				for _, r := range result.Checksums {
					if r.Err != nil {
						failed++
						continue
					}
					ok++
					if r.FromCache {
						cached++
					}
					if state != nil {
						state.MarkProcessed(string(r.Path))
					}
				}
				color.New(color.FgGreen).Printf("Hashed: %d (cached: %d), Errors: %d\n", ok, cached, failed)

				if state != nil && failed == 0 && ctx.Err() == nil {
					if err := state.Finish(); err != nil {
						color.New(color.FgYellow).Printf("could not clean up resume state: %v\n", err)
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&algorithm, "algorithm", "crc32", "hash algorithm: crc32 or sha256")
	cmd.Flags().BoolVar(&resumable, "resume", false, "track progress so an interrupted scan can pick up where it left off")
	cmd.Flags().StringVar(&stateDir, "state-dir", "", "directory for resume state files (default: <folder>/.renamecore/resume)")
	cmd.Flags().StringVar(&op, "op", "checksums", "operation: checksums, duplicates, or compare")
	cmd.Flags().StringVar(&externalFolder, "external-folder", "", "folder to compare against (required for --op compare)")
	return cmd
}

func parseHashOp(op string) (hashworker.Operation, error) {
	switch op {
	case "checksums", "":
		return hashworker.OperationChecksum, nil
	case "duplicates":
		return hashworker.OperationDuplicateScan, nil
	case "compare":
		return hashworker.OperationExternalComparison, nil
	default:
		return 0, fmt.Errorf("unknown --op %q: want checksums, duplicates, or compare", op)
	}
}

func printDuplicateGroups(groups []hashworker.DuplicateGroup) {
	if len(groups) == 0 {
		color.New(color.FgGreen).Println("No duplicates found.")
		return
	}
	for _, g := range groups {
		color.New(color.FgYellow).Printf("%s (%d files):\n", g.Digest, len(g.Paths))
		for _, p := range g.Paths {
			fmt.Println("  " + string(p))
		}
	}
}

func printComparisonResults(results []hashworker.ComparisonResult) {
	for _, r := range results {
		switch {
		case r.Err != nil:
			color.New(color.FgRed).Printf("%s: error: %v\n", r.Path, r.Err)
		case !r.Exists:
			color.New(color.FgYellow).Printf("%s: no external counterpart\n", r.Path)
		case r.IsSame:
			color.New(color.FgGreen).Printf("%s: same (%s)\n", r.Path, r.SourceDigest)
		default:
			color.New(color.FgRed).Printf("%s: differs (source %s, external %s)\n", r.Path, r.SourceDigest, r.ExternalDigest)
		}
	}
}
