// Package command implements the undo/redo history (C11) over staged
// field edits, resets, and saves. Unlike every other internal/ package in
// this module it is deliberately NOT safe for concurrent use: spec.md §4.10
// places the command manager on the control thread only, the same
// single-writer assumption the teacher's resume.go ResumeState makes for
// its own state file (only ever touched from main's control flow).
package command

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"renamecore/internal/pathkey"
	"renamecore/internal/staging"
)

// Command is one undoable/redoable action.
type Command interface {
	ID() string
	Kind() string
	Path() pathkey.Key
	Description() string
	Timestamp() time.Time
	Do(s *staging.Manager)
	Undo(s *staging.Manager)
}

type base struct {
	id        string
	kind      string
	path      pathkey.Key
	timestamp time.Time
}

func (b base) ID() string           { return b.id }
func (b base) Kind() string         { return b.kind }
func (b base) Path() pathkey.Key    { return b.path }
func (b base) Timestamp() time.Time { return b.timestamp }

func newBase(kind string, path pathkey.Key) base {
	return base{id: uuid.NewString(), kind: kind, path: path, timestamp: time.Now()}
}

// EditCommand stages a single field edit and can undo it by restaging the
// previous value.
type EditCommand struct {
	base
	KeyPath  pathkey.KeyPath
	OldValue string
	NewValue string
}

// NewEditCommand constructs an EditCommand. Call Do to apply it.
func NewEditCommand(path pathkey.Key, kp pathkey.KeyPath, oldValue, newValue string) *EditCommand {
	return &EditCommand{base: newBase("edit", path), KeyPath: kp, OldValue: oldValue, NewValue: newValue}
}

func (c *EditCommand) Do(s *staging.Manager)   { s.Stage(c.Path(), c.KeyPath, c.OldValue, c.NewValue) }
func (c *EditCommand) Undo(s *staging.Manager) { s.Stage(c.Path(), c.KeyPath, c.NewValue, c.OldValue) }

func (c *EditCommand) Description() string {
	return fmt.Sprintf("Edit %s: %s → %s", c.KeyPath.String(), c.OldValue, c.NewValue)
}

// ResetCommand clears every staged field for a file and can undo by
// restaging them all.
type ResetCommand struct {
	base
	Cleared []staging.Change
}

// NewResetCommand captures whatever is currently staged for path so the
// reset can be undone.
func NewResetCommand(path pathkey.Key, cleared []staging.Change) *ResetCommand {
	return &ResetCommand{base: newBase("reset", path), Cleared: cleared}
}

func (c *ResetCommand) Do(s *staging.Manager) { s.Clear(c.Path()) }
func (c *ResetCommand) Undo(s *staging.Manager) {
	for _, ch := range c.Cleared {
		s.Stage(c.Path(), ch.KeyPath, ch.OldValue, ch.NewValue)
	}
}

func (c *ResetCommand) Description() string {
	return fmt.Sprintf("Reset %s: %d field(s)", filepath.Base(string(c.Path())), len(c.Cleared))
}

// SaveCommand records that a batch of files' staged changes were committed
// to disk in one write-back pass. It is intentionally not undoable: a
// completed write-back is outside the undo window, matching the teacher's
// backup pipeline where a successfully copied file is never "un-copied" by
// the tool itself.
type SaveCommand struct {
	base
	Files []pathkey.Key
	Saved map[pathkey.Key][]staging.Change
}

// NewSaveCommand records a save of the given per-file changes across files.
func NewSaveCommand(files []pathkey.Key, saved map[pathkey.Key][]staging.Change) *SaveCommand {
	var path pathkey.Key
	if len(files) > 0 {
		path = files[0]
	}
	return &SaveCommand{base: newBase("save", path), Files: files, Saved: saved}
}

func (c *SaveCommand) Do(s *staging.Manager)   {}
func (c *SaveCommand) Undo(s *staging.Manager) {}

func (c *SaveCommand) Description() string {
	if len(c.Files) == 1 {
		return "Save metadata: " + filepath.Base(string(c.Files[0]))
	}
	return fmt.Sprintf("Save metadata: %d files", len(c.Files))
}

// BatchCommand groups multiple commands (typically EditCommands produced
// within the grouping window) into one undo/redo step.
type BatchCommand struct {
	base
	Commands []Command
}

// NewBatchCommand groups cmds, adopting the path of the first command.
func NewBatchCommand(cmds []Command) *BatchCommand {
	var path pathkey.Key
	if len(cmds) > 0 {
		path = cmds[0].Path()
	}
	return &BatchCommand{base: newBase("batch", path), Commands: cmds}
}

func (c *BatchCommand) Do(s *staging.Manager) {
	for _, cmd := range c.Commands {
		cmd.Do(s)
	}
}

func (c *BatchCommand) Undo(s *staging.Manager) {
	for i := len(c.Commands) - 1; i >= 0; i-- {
		c.Commands[i].Undo(s)
	}
}

func (c *BatchCommand) Description() string {
	if len(c.Commands) == 1 {
		return c.Commands[0].Description()
	}
	return fmt.Sprintf("Batch: %d edits", len(c.Commands))
}
