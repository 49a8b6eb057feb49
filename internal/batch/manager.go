// Package batch generalizes the teacher's BatchInserter (database.go) from
// a single fixed-schema SQLite insert batch into a per-kind write-behind
// queue (C5) serving both the hash cache (C3) and the metadata cache (C4).
// Each kind accumulates writes until one of four triggers fires: the queue
// reaches its configured size, a maximum wait elapses, a caller explicitly
// flushes, or the manager is shut down.
package batch

import (
	"context"
	"sync"
	"time"

	"renamecore/internal/corerr"
	"renamecore/internal/logging"
	"renamecore/internal/store"
)

const component = "batch"

// Metrics is a point-in-time snapshot of batching effectiveness, useful for
// a save-summary or diagnostics view.
type Metrics struct {
	Queued         int64
	Flushed        int64
	BatchesEmitted int64
	AvgBatchSize   float64
	Retries        int64
	Dropped        int64
}

// Manager coalesces hash and metadata writes against a persistent store.
// It implements cache.HashWriter and cache.MetadataWriter so a HashCache or
// MetadataCache can enqueue through it without importing this package's
// concrete type.
type Manager struct {
	store *store.Store
	log   *logging.Logger

	maxItems   int
	maxWait    time.Duration
	maxRetries int

	mu        sync.Mutex
	hashQueue []store.HashRecord
	metaQueue []store.MetadataRecord
	queued    int64
	flushed   int64
	batches   int64
	retries   int64
	dropped   int64

	ticker   *time.Ticker
	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// New constructs a Manager. A maxItems below 1 is raised to 1; a
// non-positive maxWait disables the time-based flush; maxRetries governs the retry-with-backoff step before per-item fallback.
func New(st *store.Store, maxItems int, maxWait time.Duration, maxRetries int, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.Nop()
	}
	if maxItems <= 0 {
		maxItems = 1
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	m := &Manager{
		store:      st,
		log:        log.Named(component),
		maxItems:   maxItems,
		maxWait:    maxWait,
		maxRetries: maxRetries,
		done:       make(chan struct{}),
	}
	if maxWait > 0 {
		m.ticker = time.NewTicker(maxWait)
		m.wg.Add(1)
		go m.timeLoop()
	}
	return m
}

func (m *Manager) timeLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ticker.C:
			_ = m.Flush(context.Background())
		case <-m.done:
			return
		}
	}
}

// EnqueueHash queues rec for write-behind persistence, flushing the hash
// queue immediately if it has reached maxItems.
func (m *Manager) EnqueueHash(rec store.HashRecord) {
	m.mu.Lock()
	m.hashQueue = append(m.hashQueue, rec)
	m.queued++
	full := len(m.hashQueue) >= m.maxItems
	m.mu.Unlock()

	if full {
		_ = m.Flush(context.Background())
	}
}

// EnqueueMetadata queues rec for write-behind persistence, flushing the
// metadata queue immediately if it has reached maxItems.
func (m *Manager) EnqueueMetadata(rec store.MetadataRecord) {
	m.mu.Lock()
	m.metaQueue = append(m.metaQueue, rec)
	m.queued++
	full := len(m.metaQueue) >= m.maxItems
	m.mu.Unlock()

	if full {
		_ = m.Flush(context.Background())
	}
}

// Flush writes every currently queued record to the store, retrying the
// whole batch up to maxRetries times with linear backoff before falling
// back to writing each item individually so a single bad record cannot
// block its batch-mates.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	hashes := m.hashQueue
	metas := m.metaQueue
	m.hashQueue = nil
	m.metaQueue = nil
	m.mu.Unlock()

	if len(hashes) == 0 && len(metas) == 0 {
		return nil
	}

	var firstErr error

	if len(hashes) > 0 {
		if err := m.flushHashes(ctx, hashes); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if len(metas) > 0 {
		if err := m.flushMetas(ctx, metas); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	m.mu.Lock()
	m.batches++
	m.flushed += int64(len(hashes) + len(metas))
	m.mu.Unlock()

	return firstErr
}

func (m *Manager) flushHashes(ctx context.Context, recs []store.HashRecord) error {
	err := m.withRetry(ctx, func(ctx context.Context) error {
		for _, r := range recs {
			if err := m.store.StoreHash(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		return nil
	}

	// Per-item fallback: isolate the bad record rather than lose the batch.
	var lastErr error
	for _, r := range recs {
		if e := m.store.StoreHash(ctx, r); e != nil {
			lastErr = e
			m.mu.Lock()
			m.dropped++
			m.mu.Unlock()
			m.log.Warn("dropping hash record after fallback failure", logging.String("path", string(r.Path)), logging.Err(e))
		}
	}
	return lastErr
}

func (m *Manager) flushMetas(ctx context.Context, recs []store.MetadataRecord) error {
	err := m.withRetry(ctx, func(ctx context.Context) error {
		for _, r := range recs {
			if err := m.store.StoreMetadata(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		return nil
	}

	var lastErr error
	for _, r := range recs {
		if e := m.store.StoreMetadata(ctx, r); e != nil {
			lastErr = e
			m.mu.Lock()
			m.dropped++
			m.mu.Unlock()
			m.log.Warn("dropping metadata record after fallback failure", logging.String("path", string(r.Path)), logging.Err(e))
		}
	}
	return lastErr
}

func (m *Manager) withRetry(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt < m.maxRetries {
			m.mu.Lock()
			m.retries++
			m.mu.Unlock()
			select {
			case <-time.After(time.Duration(attempt+1) * 50 * time.Millisecond):
			case <-ctx.Done():
				return corerr.Wrap(component, corerr.Cancelled, ctx.Err())
			}
		}
	}
	return err
}

// Metrics returns a snapshot of accumulated counters.
func (m *Manager) Metrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	avg := 0.0
	if m.batches > 0 {
		avg = float64(m.flushed) / float64(m.batches)
	}
	return Metrics{
		Queued:         m.queued,
		Flushed:        m.flushed,
		BatchesEmitted: m.batches,
		AvgBatchSize:   avg,
		Retries:        m.retries,
		Dropped:        m.dropped,
	}
}

// Shutdown flushes any remaining queued records and stops the background
// timer loop. Safe to call once; subsequent calls are no-ops.
func (m *Manager) Shutdown(ctx context.Context) error {
	var err error
	m.stopOnce.Do(func() {
		close(m.done)
		if m.ticker != nil {
			m.ticker.Stop()
		}
		m.wg.Wait()
		err = m.Flush(ctx)
	})
	return err
}
