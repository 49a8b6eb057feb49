// Package writeback commits staged metadata edits to disk (C12), the
// counterpart of the teacher's copyFileWithHash (files.go): where the
// teacher performs one atomic copy-with-hash per file, Save performs one
// external-tool write per staged file, pausing internal/monitor for the
// duration so the tool's own write is never mistaken for an outside
// change, then reconciling the cache and staging layers once the write
// lands.
package writeback

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"

	"renamecore/internal/cache"
	"renamecore/internal/command"
	"renamecore/internal/corerr"
	"renamecore/internal/metadataadapter"
	"renamecore/internal/pathkey"
	"renamecore/internal/staging"
)

const component = "writeback"

// pauser is the subset of internal/monitor.Monitor's API writeback needs;
// kept as an interface so tests don't have to spin up a real fsnotify
// watcher, and so a nil monitor (no watching configured) is trivially
// supported via noopPauser.
type pauser interface {
	Pause() (resume func())
}

type noopPauser struct{}

func (noopPauser) Pause() func() { return func() {} }

// Status classifies one file's outcome from a Save call.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusCancelled Status = "cancelled"
)

// FileResult is one file's outcome from a Save call.
type FileResult struct {
	Path   pathkey.Key
	Fields int
	Status Status
	Err    error
}

// Summary aggregates a Save call's outcome, formatted with
// dustin/go-humanize the way the teacher's accounting summary
// (pipeline.go's GenerateAccountingSummary) reports byte counts.
type Summary struct {
	Succeeded int
	Failed    int
	Skipped   int
	Cancelled int
	Elapsed   time.Duration
	Results   []FileResult
}

// String renders a human-readable one-line summary.
func (s Summary) String() string {
	return humanize.Comma(int64(s.Succeeded)) + " saved, " +
		humanize.Comma(int64(s.Failed)) + " failed, " +
		humanize.Comma(int64(s.Skipped)) + " skipped, " +
		humanize.Comma(int64(s.Cancelled)) + " cancelled in " + s.Elapsed.Round(time.Millisecond).String()
}

// Engine performs the commit of staged changes to disk.
type Engine struct {
	staging *staging.Manager
	meta    *cache.MetadataCache
	adapter *metadataadapter.Adapter
	cmds    *command.Manager
	monitor pauser

	cancelDisabled bool
}

// New constructs an Engine. monitor may be nil if no filesystem watching
// is configured.
func New(s *staging.Manager, mc *cache.MetadataCache, adapter *metadataadapter.Adapter, cmds *command.Manager, monitor pauser) *Engine {
	if monitor == nil {
		monitor = noopPauser{}
	}
	return &Engine{staging: s, meta: mc, adapter: adapter, cmds: cmds, monitor: monitor}
}

// DisableCancellationForExit stops Save from honoring ctx cancellation,
// used during process shutdown so a save already underway finishes rather
// than leaving a file half-written (spec.md §9's exit-time override).
func (e *Engine) DisableCancellationForExit() {
	e.cancelDisabled = true
}

// SaveSelected commits staged changes for exactly the given paths.
func (e *Engine) SaveSelected(ctx context.Context, paths []pathkey.Key) (Summary, error) {
	return e.save(ctx, paths)
}

// SaveAll commits staged changes for every file with a pending edit.
func (e *Engine) SaveAll(ctx context.Context) (Summary, error) {
	return e.save(ctx, e.staging.AllPaths())
}

func (e *Engine) save(ctx context.Context, paths []pathkey.Key) (Summary, error) {
	start := time.Now()
	resume := e.monitor.Pause()
	defer resume()

	var summary Summary
	var savedFiles []pathkey.Key
	savedChanges := make(map[pathkey.Key][]staging.Change)

	for i, path := range paths {
		if !e.cancelDisabled {
			if err := ctx.Err(); err != nil {
				for _, remaining := range paths[i:] {
					summary.Results = append(summary.Results, FileResult{Path: remaining, Status: StatusCancelled})
					summary.Cancelled++
				}
				summary.Elapsed = time.Since(start)
				e.recordSave(savedFiles, savedChanges)
				return summary, corerr.Wrap(component, corerr.Cancelled, err)
			}
		}

		changes := e.staging.Changes(path)
		if len(changes) == 0 {
			summary.Results = append(summary.Results, FileResult{Path: path, Status: StatusSkipped})
			summary.Skipped++
			continue
		}

		result := e.saveOne(ctx, path, changes)
		summary.Results = append(summary.Results, result)
		if result.Err != nil {
			summary.Failed++
			continue
		}
		summary.Succeeded++
		savedFiles = append(savedFiles, path)
		savedChanges[path] = changes
	}
	summary.Elapsed = time.Since(start)
	e.recordSave(savedFiles, savedChanges)
	return summary, nil
}

// saveOne writes fields for path and reconciles the metadata cache and
// staging layers once the write lands. The caller is responsible for
// recording a Save command once per save() call, covering every file
// that succeeds here, rather than per-file.
func (e *Engine) saveOne(ctx context.Context, path pathkey.Key, changes []staging.Change) FileResult {
	fields := make(map[string]interface{}, len(changes))
	for _, c := range changes {
		fields[c.KeyPath.String()] = c.NewValue
	}

	if err := e.adapter.Write(ctx, string(path), fields); err != nil {
		return FileResult{Path: path, Fields: len(changes), Status: StatusFailed, Err: err}
	}

	e.meta.MarkSaved(path, fields)
	e.staging.Commit(path)

	return FileResult{Path: path, Fields: len(changes), Status: StatusSucceeded}
}

// recordSave logs one Save command covering every file that succeeded
// during a save() call, matching how the command history groups a
// multi-file save as a single undo-stack entry.
func (e *Engine) recordSave(files []pathkey.Key, changes map[pathkey.Key][]staging.Change) {
	if len(files) == 0 || e.cmds == nil {
		return
	}
	e.cmds.Execute(command.NewSaveCommand(files, changes))
}
