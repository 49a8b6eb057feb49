// Package core is the composition root (spec.md §9's CoreContext): it owns
// one instance of every subsystem and exposes the programmatic API
// (spec.md §6) without ever reaching for a package-level singleton, the
// same no-globals discipline the teacher's main.go follows by threading a
// single *sql.DB and *BatchInserter through explicit function parameters
// instead of init()-time globals.
package core

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"renamecore/internal/batch"
	"renamecore/internal/cache"
	"renamecore/internal/command"
	"renamecore/internal/config"
	"renamecore/internal/coordinator"
	"renamecore/internal/eventbus"
	"renamecore/internal/hashworker"
	"renamecore/internal/logging"
	"renamecore/internal/metadataadapter"
	"renamecore/internal/metadataworker"
	"renamecore/internal/monitor"
	"renamecore/internal/pathkey"
	"renamecore/internal/staging"
	"renamecore/internal/store"
	"renamecore/internal/writeback"
)

// Context is the root object a CLI or any other consumer constructs once
// per process and passes down instead of relying on globals.
type Context struct {
	Config config.Config
	Log    *logging.Logger
	Bus    *eventbus.Bus

	Store       *store.Store
	BatchMgr    *batch.Manager
	HashCache   *cache.HashCache
	MetaCache   *cache.MetadataCache
	Adapter     *metadataadapter.Adapter
	HashWorker  *hashworker.Worker
	MetaWorker  *metadataworker.Worker
	Staging     *staging.Manager
	Commands    *command.Manager
	Writeback   *writeback.Engine
	Monitor     *monitor.Monitor
	Coordinator *coordinator.Coordinator

	monitorOnce sync.Once
	closeOnce   sync.Once
}

// Options configures New.
type Options struct {
	ProjectDir       string
	DBPath           string // defaults to <ProjectDir>/.renamecore/cache.db
	ExternalToolPath string // defaults to "exiftool"
	EnableMonitor    bool
	WatchFolders     []string
	IgnoreGlobs      []string
	ConfigOverrides  map[string]interface{}
}

// New builds a fully wired Context. Subsystems that can fail to construct
// (the store, the filesystem watcher) are initialized eagerly here rather
// than lazily, so a caller learns about a bad database path or a missing
// watch permission immediately instead of on first use.
func New(opts Options) (*Context, error) {
	loader := config.NewLoader()
	cfg, err := loader.Load(opts.ProjectDir, opts.ConfigOverrides)
	if err != nil {
		return nil, err
	}

	log, err := logging.New(logging.DefaultConfig())
	if err != nil {
		return nil, err
	}

	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(opts.ProjectDir, ".renamecore", "cache.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	st, err := store.Open(dbPath, log)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New(256)
	batchMgr := batch.New(st, cfg.BatchMaxItems, cfg.BatchMaxWait, cfg.BatchMaxRetries, log)
	hashCache := cache.NewHashCache(cfg.HashCacheCapacity, st, batchMgr)
	metaCache := cache.NewMetadataCache(cfg.MetadataCacheCapacity, st, batchMgr)

	toolPath := opts.ExternalToolPath
	if toolPath == "" {
		toolPath = "exiftool"
	}
	adapter := metadataadapter.New(toolPath, cfg.ExternalToolIdleTimeout, cfg.ExternalToolRetries, log)

	hw := hashworker.New(hashCache, bus, hashworker.Config{
		ChunkBytes:        cfg.HashChunkBytes,
		ParallelThreshold: cfg.HashParallelThreshold,
		PoolSize:          cfg.HashWorkerPoolSize,
	}, log)
	mw := metadataworker.New(metaCache, adapter, bus, log)

	stagingMgr := staging.New()
	cmds := command.New(stagingMgr, cfg.GroupingTimeout, cfg.UndoMaxSteps)
	coord := coordinator.New(bus)

	ctx := &Context{
		Config:      cfg,
		Log:         log,
		Bus:         bus,
		Store:       st,
		BatchMgr:    batchMgr,
		HashCache:   hashCache,
		MetaCache:   metaCache,
		Adapter:     adapter,
		HashWorker:  hw,
		MetaWorker:  mw,
		Staging:     stagingMgr,
		Commands:    cmds,
		Coordinator: coord,
	}

	if opts.EnableMonitor {
		mon, err := monitor.New(bus, monitor.Config{
			DriveScanInterval: cfg.DriveScanInterval,
			FolderDebounce:    cfg.FolderDebounce,
			IgnoreGlobs:       opts.IgnoreGlobs,
		}, log)
		if err != nil {
			st.Close()
			return nil, err
		}
		for _, dir := range opts.WatchFolders {
			if err := mon.WatchFolder(dir); err != nil {
				log.Warn("failed to watch folder", logging.String("dir", dir), logging.Err(err))
			}
		}
		bus.Subscribe(monitor.TopicDriveRemoved, func(e eventbus.Event) {
			if ev, ok := e.(monitor.DriveEvent); ok {
				_ = ctx.InvalidateDrive(context.Background(), ev.Root)
			}
		})
		mon.Start()
		ctx.Monitor = mon
	}

	ctx.Writeback = writeback.New(stagingMgr, metaCache, adapter, cmds, monitorPauser(ctx.Monitor))

	return ctx, nil
}

// monitorPauser adapts a possibly-nil *monitor.Monitor into the interface
// writeback.New expects, since a typed nil pointer is not itself nil when
// boxed into an interface.
func monitorPauser(m *monitor.Monitor) interface{ Pause() func() } {
	if m == nil {
		return nil
	}
	return m
}

// Close releases every owned resource. Safe to call once; subsequent
// calls are no-ops.
func (c *Context) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		if c.Monitor != nil {
			c.Monitor.Close()
		}
		if e := c.BatchMgr.Shutdown(ctx); e != nil {
			err = e
		}
		c.Adapter.Close()
		c.Store.Close()
		c.Bus.Close()
		c.Log.Sync()
	})
	return err
}

// --- Programmatic API (spec.md §6) ---

// RequestHashes runs one of the three hashworker operations over paths:
// checksums (op = OperationChecksum), duplicates (op = OperationDuplicateScan,
// grouping by digest), or compare (op = OperationExternalComparison, requiring
// externalFolder). Only the OpResult field matching op is populated.
func (c *Context) RequestHashes(ctx context.Context, paths []pathkey.Key, algorithm string, op hashworker.Operation, externalFolder string) (hashworker.OpResult, error) {
	return c.HashWorker.RequestHashes(ctx, paths, algorithm, op, externalFolder)
}

// RequestMetadata loads metadata for paths, fast or extended, and notifies
// the coordinator so any rename preview is invalidated.
func (c *Context) RequestMetadata(ctx context.Context, paths []pathkey.Key, fast bool) ([]metadataworker.Result, error) {
	results, err := c.MetaWorker.LoadBatch(ctx, paths, fast)
	c.Coordinator.NotifyMetadataChanged(paths)
	return results, err
}

// StageChange records a pending field edit through the command manager so
// it participates in undo/redo.
func (c *Context) StageChange(path pathkey.Key, kp pathkey.KeyPath, oldValue, newValue string) {
	c.Commands.Execute(command.NewEditCommand(path, kp, oldValue, newValue))
}

// ClearStaging discards staged changes for path, or every file if path is empty.
func (c *Context) ClearStaging(path pathkey.Key) {
	changes := c.Staging.Changes(path)
	c.Commands.Execute(command.NewResetCommand(path, changes))
}

// HasStagedChanges reports whether path (or any file, if empty) has a
// pending edit.
func (c *Context) HasStagedChanges(path pathkey.Key) bool {
	return c.Staging.HasStagedChanges(path)
}

// SaveSelected commits staged changes for exactly the given paths.
func (c *Context) SaveSelected(ctx context.Context, paths []pathkey.Key) (writeback.Summary, error) {
	summary, err := c.Writeback.SaveSelected(ctx, paths)
	c.Coordinator.NotifyMetadataChanged(paths)
	return summary, err
}

// SaveAll commits every staged change.
func (c *Context) SaveAll(ctx context.Context) (writeback.Summary, error) {
	paths := c.Staging.AllPaths()
	summary, err := c.Writeback.SaveAll(ctx)
	c.Coordinator.NotifyMetadataChanged(paths)
	return summary, err
}

// Undo reverses the most recent command.
func (c *Context) Undo() bool { return c.Commands.Undo() }

// Redo reapplies the most recently undone command.
func (c *Context) Redo() bool { return c.Commands.Redo() }

// CanUndo reports whether Undo would do anything.
func (c *Context) CanUndo() bool { return c.Commands.CanUndo() }

// CanRedo reports whether Redo would do anything.
func (c *Context) CanRedo() bool { return c.Commands.CanRedo() }

// History returns the undo stack, oldest first.
func (c *Context) History() []command.Command { return c.Commands.History() }

// ClearHistory empties the undo/redo stacks.
func (c *Context) ClearHistory() { c.Commands.ClearHistory() }

// Invalidate drops path from the in-memory tier of both caches. Rows in the
// persistent store are left in place.
func (c *Context) Invalidate(ctx context.Context, path pathkey.Key, algorithms []string) error {
	c.HashCache.Invalidate(path, algorithms)
	c.MetaCache.Remove(path)
	return nil
}

// InvalidateDrive drops every cache entry under root, for example when a
// removable drive disappears.
func (c *Context) InvalidateDrive(ctx context.Context, root string) error {
	if err := c.HashCache.InvalidateUnder(ctx, root); err != nil {
		return err
	}
	return c.MetaCache.InvalidateUnder(ctx, root)
}
