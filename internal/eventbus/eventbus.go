// Package eventbus replaces GUI-style cross-thread signals (spec.md §9
// design note "Signals across threads") with an explicit, bounded
// multi-producer/multi-consumer event bus plus a marshaling step: workers
// publish events; a single dispatcher goroutine per bus delivers them to
// handlers registered by control-thread consumers. Workers never call
// consumer code directly.
package eventbus

import "sync"

// Event is an arbitrary payload published to a Topic. Components define
// their own concrete event struct types (e.g. hashworker.ProgressEvent)
// and pass them as Event.
type Event interface{}

// Handler receives events published to a topic it subscribed to.
type Handler func(Event)

// Bus is a bounded, topic-keyed publish/subscribe channel. The zero value
// is not usable; construct with New.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	queue    chan publication
	done     chan struct{}
	wg       sync.WaitGroup
}

type publication struct {
	topic string
	event Event
}

// New creates a Bus with the given queue depth. A depth of 0 makes
// Publish synchronous with the dispatcher (still off the caller's own
// handler invocation, since delivery still happens on the dispatcher
// goroutine).
func New(queueDepth int) *Bus {
	b := &Bus{
		handlers: make(map[string][]Handler),
		queue:    make(chan publication, queueDepth),
		done:     make(chan struct{}),
	}
	b.wg.Add(1)
	go b.dispatch()
	return b
}

func (b *Bus) dispatch() {
	defer b.wg.Done()
	for {
		select {
		case pub, ok := <-b.queue:
			if !ok {
				return
			}
			b.mu.RLock()
			handlers := append([]Handler(nil), b.handlers[pub.topic]...)
			b.mu.RUnlock()
			for _, h := range handlers {
				h(pub.event)
			}
		case <-b.done:
			return
		}
	}
}

// Subscribe registers handler for topic. Call from the control thread;
// the handler itself runs on the bus's dispatcher goroutine, so a handler
// that must run on the control thread should re-enqueue rather than
// execute directly if the two threads are not the same.
func (b *Bus) Subscribe(topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
}

// Publish enqueues event for topic. Safe to call from any goroutine.
// Publish blocks if the bus's internal queue is full, providing natural
// backpressure on producers rather than dropping events.
func (b *Bus) Publish(topic string, event Event) {
	select {
	case b.queue <- publication{topic: topic, event: event}:
	case <-b.done:
	}
}

// Close stops the dispatcher goroutine. Pending queued events that have
// not yet been dispatched are dropped.
func (b *Bus) Close() {
	close(b.done)
	b.wg.Wait()
}
