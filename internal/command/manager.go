package command

import (
	"time"

	"renamecore/internal/staging"
)

// DefaultGroupingTimeout and DefaultMaxUndoSteps match spec.md §4.10's
// documented defaults; internal/config.Config carries the live values.
const (
	DefaultGroupingTimeout = 1500 * time.Millisecond
	DefaultMaxUndoSteps    = 50
)

// Manager owns the undo/redo stacks and the staging manager they mutate.
// Not safe for concurrent use; see the package doc comment.
type Manager struct {
	staging         *staging.Manager
	groupingTimeout time.Duration
	maxSteps        int

	undoStack []Command
	redoStack []Command
}

// New constructs a Manager bound to s.
func New(s *staging.Manager, groupingTimeout time.Duration, maxSteps int) *Manager {
	if groupingTimeout <= 0 {
		groupingTimeout = DefaultGroupingTimeout
	}
	if maxSteps <= 0 {
		maxSteps = DefaultMaxUndoSteps
	}
	return &Manager{staging: s, groupingTimeout: groupingTimeout, maxSteps: maxSteps}
}

// Execute applies cmd and pushes it onto the undo stack, grouping it into
// the top-of-stack BatchCommand when shouldGroup says the two belong
// together, and clearing the redo stack (a new action invalidates any
// previously undone redo history).
func (m *Manager) Execute(cmd Command) {
	cmd.Do(m.staging)
	m.redoStack = nil

	if len(m.undoStack) > 0 {
		top := m.undoStack[len(m.undoStack)-1]
		if shouldGroup(top, cmd, m.groupingTimeout) {
			if batch, ok := top.(*BatchCommand); ok {
				batch.Commands = append(batch.Commands, cmd)
				return
			}
			grouped := NewBatchCommand([]Command{top, cmd})
			m.undoStack[len(m.undoStack)-1] = grouped
			return
		}
	}

	m.undoStack = append(m.undoStack, cmd)
	if len(m.undoStack) > m.maxSteps {
		m.undoStack = m.undoStack[len(m.undoStack)-m.maxSteps:]
	}
}

// shouldGroup implements spec.md §4.10.1: two commands group when they
// touch the same file, share the same kind, and the second arrives within
// groupingTimeout of the previous command's timestamp. For a BatchCommand
// that is its last member's timestamp (see lastTimestamp).
func shouldGroup(prev, next Command, timeout time.Duration) bool {
	prevKind := prev.Kind()
	if batch, ok := prev.(*BatchCommand); ok && len(batch.Commands) > 0 {
		prevKind = batch.Commands[len(batch.Commands)-1].Kind()
	}
	if prevKind != next.Kind() {
		return false
	}
	if prev.Path() != next.Path() {
		return false
	}
	if next.Kind() != "edit" {
		return false // only edits coalesce; resets/saves never do
	}
	return next.Timestamp().Sub(lastTimestamp(prev)).Abs() <= timeout
}

func lastTimestamp(cmd Command) time.Time {
	if batch, ok := cmd.(*BatchCommand); ok && len(batch.Commands) > 0 {
		return batch.Commands[len(batch.Commands)-1].Timestamp()
	}
	return cmd.Timestamp()
}

// CanUndo reports whether Undo would do anything.
func (m *Manager) CanUndo() bool { return len(m.undoStack) > 0 }

// CanRedo reports whether Redo would do anything.
func (m *Manager) CanRedo() bool { return len(m.redoStack) > 0 }

// Undo reverses the most recent command (or group), moving it to the redo
// stack. Returns false if there was nothing to undo.
func (m *Manager) Undo() bool {
	if !m.CanUndo() {
		return false
	}
	cmd := m.undoStack[len(m.undoStack)-1]
	m.undoStack = m.undoStack[:len(m.undoStack)-1]
	cmd.Undo(m.staging)
	m.redoStack = append(m.redoStack, cmd)
	return true
}

// Redo reapplies the most recently undone command. Returns false if there
// was nothing to redo.
func (m *Manager) Redo() bool {
	if !m.CanRedo() {
		return false
	}
	cmd := m.redoStack[len(m.redoStack)-1]
	m.redoStack = m.redoStack[:len(m.redoStack)-1]
	cmd.Do(m.staging)
	m.undoStack = append(m.undoStack, cmd)
	return true
}

// History returns the undo stack, oldest first, for a history viewer.
func (m *Manager) History() []Command {
	out := make([]Command, len(m.undoStack))
	copy(out, m.undoStack)
	return out
}

// ClearHistory empties both stacks without touching current staged state.
func (m *Manager) ClearHistory() {
	m.undoStack = nil
	m.redoStack = nil
}
