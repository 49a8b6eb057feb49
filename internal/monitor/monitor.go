// Package monitor watches the filesystem for changes outside the tool's
// own writes (C13): a polling track for drive/mount enumeration and an
// fsnotify-based track for watched folders, both absent from the teacher
// (which never watches — it only walks once per run) and so grounded on
// the corpus's other fsnotify-importing dependency chain (pulled in
// transitively through quantmind-br-gendocs) plus the ignore-glob
// filtering convention bmatcuk/doublestar documents for itself.
package monitor

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"renamecore/internal/corerr"
	"renamecore/internal/eventbus"
	"renamecore/internal/logging"
)

const component = "monitor"

// Event topics published by Monitor.
const (
	TopicDriveAdded   = "monitor.drive_added"
	TopicDriveRemoved = "monitor.drive_removed"
	TopicFileChanged  = "monitor.file_changed"
)

// DriveEvent is published on TopicDriveAdded/TopicDriveRemoved.
type DriveEvent struct {
	Root string
}

// FileChangeEvent is published on TopicFileChanged, debounced so a burst
// of writes to the same path collapses into one event.
type FileChangeEvent struct {
	Path string
	Op   fsnotify.Op
}

// Config configures both tracks; zero values take spec.md's documented
// defaults.
type Config struct {
	DriveScanInterval time.Duration
	FolderDebounce    time.Duration
	IgnoreGlobs       []string
}

// Monitor runs the drive-polling and folder-watching tracks.
type Monitor struct {
	bus *eventbus.Bus
	log *logging.Logger
	cfg Config

	watcher *fsnotify.Watcher

	mu          sync.Mutex
	paused      bool
	pauseRefs   int
	knownDrives map[string]bool

	debounceMu sync.Mutex
	debounce   map[string]*time.Timer

	stop chan struct{}
	wg   sync.WaitGroup
}

// New constructs a Monitor. It does not start watching until Start is called.
func New(bus *eventbus.Bus, cfg Config, log *logging.Logger) (*Monitor, error) {
	if log == nil {
		log = logging.Nop()
	}
	if cfg.DriveScanInterval <= 0 {
		cfg.DriveScanInterval = 2 * time.Second
	}
	if cfg.FolderDebounce <= 0 {
		cfg.FolderDebounce = 500 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, corerr.Wrap(component, corerr.IoError, err)
	}

	return &Monitor{
		bus:         bus,
		log:         log.Named(component),
		cfg:         cfg,
		watcher:     watcher,
		knownDrives: make(map[string]bool),
		debounce:    make(map[string]*time.Timer),
		stop:        make(chan struct{}),
	}, nil
}

// WatchFolder adds dir to the fsnotify watch set.
func (m *Monitor) WatchFolder(dir string) error {
	if err := m.watcher.Add(dir); err != nil {
		return corerr.Wrapf(component, corerr.IoError, err, "watching %s", dir)
	}
	return nil
}

// UnwatchFolder removes dir from the fsnotify watch set.
func (m *Monitor) UnwatchFolder(dir string) error {
	return corerr.Wrap(component, corerr.IoError, m.watcher.Remove(dir))
}

// Start launches both background tracks. Call Close to stop them.
func (m *Monitor) Start() {
	m.wg.Add(2)
	go m.driveLoop()
	go m.folderLoop()
}

// Close stops both tracks and releases the fsnotify handle.
func (m *Monitor) Close() error {
	close(m.stop)
	m.wg.Wait()
	return corerr.Wrap(component, corerr.IoError, m.watcher.Close())
}

// Pause suspends event delivery (not the polling/watching itself, which
// keeps running so no change is missed, only unreported) and returns a
// resume function the caller must invoke exactly once, typically via
// defer, scoping the pause to a single write-back operation (C12).
// Nested Pause calls are reference-counted so overlapping writers never
// resume monitoring prematurely.
func (m *Monitor) Pause() (resume func()) {
	m.mu.Lock()
	m.pauseRefs++
	m.paused = true
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.pauseRefs--
			if m.pauseRefs <= 0 {
				m.pauseRefs = 0
				m.paused = false
			}
			m.mu.Unlock()
		})
	}
}

func (m *Monitor) isPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

func (m *Monitor) driveLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.DriveScanInterval)
	defer ticker.Stop()

	m.scanDrives()
	for {
		select {
		case <-ticker.C:
			m.scanDrives()
		case <-m.stop:
			return
		}
	}
}

func (m *Monitor) scanDrives() {
	current := enumerateMounts()

	m.mu.Lock()
	known := make(map[string]bool, len(m.knownDrives))
	for k := range m.knownDrives {
		known[k] = true
	}
	m.mu.Unlock()

	for _, root := range current {
		if !known[root] {
			m.mu.Lock()
			m.knownDrives[root] = true
			m.mu.Unlock()
			m.publishDrive(TopicDriveAdded, root)
		}
	}
	for root := range known {
		if !containsString(current, root) {
			m.mu.Lock()
			delete(m.knownDrives, root)
			m.mu.Unlock()
			m.publishDrive(TopicDriveRemoved, root)
		}
	}
}

func (m *Monitor) publishDrive(topic, root string) {
	if m.isPaused() || m.bus == nil {
		return
	}
	m.bus.Publish(topic, DriveEvent{Root: root})
}

func (m *Monitor) folderLoop() {
	defer m.wg.Done()
	for {
		select {
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if m.ignored(ev.Name) {
				continue
			}
			m.scheduleDebounced(ev)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.log.Warn("fsnotify error", logging.Err(err))
		case <-m.stop:
			return
		}
	}
}

func (m *Monitor) ignored(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range m.cfg.IgnoreGlobs {
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

func (m *Monitor) scheduleDebounced(ev fsnotify.Event) {
	m.debounceMu.Lock()
	defer m.debounceMu.Unlock()

	if t, ok := m.debounce[ev.Name]; ok {
		t.Stop()
	}
	m.debounce[ev.Name] = time.AfterFunc(m.cfg.FolderDebounce, func() {
		m.debounceMu.Lock()
		delete(m.debounce, ev.Name)
		m.debounceMu.Unlock()

		if m.isPaused() || m.bus == nil {
			return
		}
		m.bus.Publish(TopicFileChanged, FileChangeEvent{Path: ev.Name, Op: ev.Op})
	})
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// enumerateMounts lists top-level mount points to poll for arrival/removal.
// The OS-specific convention mirrors pathkey's case-sensitivity branch:
// Unix-likes are enumerated from /proc or /Volumes where available, with a
// conservative root-only fallback elsewhere.
func enumerateMounts() []string {
	return enumerateMountsOS()
}
