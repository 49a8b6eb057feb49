// Package resume tracks which files a long-running hash or metadata scan
// has already finished, so an interrupted scan over a large folder can
// pick back up without re-walking files it already processed. Grounded
// on the teacher's resume.go ResumeState, adapted from a backup-copy
// state file to a generic processed-path ledger consulted by the CLI's
// hash command rather than by the copy loop itself.
package resume

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// State tracks the set of paths already processed for one scan, persisted
// to a flat state file so a later run can skip them.
type State struct {
	statePath string
	startTime time.Time
	root      string

	mu        sync.Mutex
	processed map[string]bool
	file      *os.File
}

// New creates a fresh State for scanning root, writing its state file under
// stateDir.
func New(stateDir, root string) (*State, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, err
	}
	name := fmt.Sprintf("scan_%s.state", time.Now().Format("20060102_150405"))
	path := filepath.Join(stateDir, name)

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	s := &State{statePath: path, startTime: time.Now(), root: root, processed: make(map[string]bool), file: f}
	if _, err := fmt.Fprintf(f, "START_TIME:%s ROOT:%s\n", s.startTime.Format(time.RFC3339), root); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// Load reads an existing state file back into memory so a scan can resume.
func Load(statePath string) (*State, error) {
	rf, err := os.Open(statePath)
	if err != nil {
		return nil, err
	}
	defer rf.Close()

	s := &State{statePath: statePath, processed: make(map[string]bool)}
	scanner := bufio.NewScanner(rf)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if line == 1 {
			var startStr string
			if _, err := fmt.Sscanf(text, "START_TIME:%s ROOT:%s", &startStr, &s.root); err != nil {
				return nil, fmt.Errorf("resume: malformed header in %s", statePath)
			}
			s.startTime, _ = time.Parse(time.RFC3339, startStr)
			continue
		}
		if text != "" {
			s.processed[text] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(statePath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	s.file = f
	return s, nil
}

// IsProcessed reports whether path has already been recorded done.
func (s *State) IsProcessed(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed[path]
}

// MarkProcessed records path as done and appends it to the state file.
func (s *State) MarkProcessed(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processed[path] {
		return nil
	}
	s.processed[path] = true
	_, err := fmt.Fprintln(s.file, path)
	return err
}

// Progress returns how many paths have been marked done and how long the
// scan has been running.
func (s *State) Progress() (int, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processed), time.Since(s.startTime)
}

// Close releases the underlying state file without deleting it.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

// Finish closes and removes the state file, called once a scan completes
// successfully with nothing left to resume.
func (s *State) Finish() error {
	if err := s.Close(); err != nil {
		return err
	}
	return os.Remove(s.statePath)
}

// FindStateFiles lists resumable state files under stateDir.
func FindStateFiles(stateDir string) ([]string, error) {
	return filepath.Glob(filepath.Join(stateDir, "scan_*.state"))
}
