// Package signalbus fans out trading signals from the scanner to
// independent subscribers (persistence, trading engine, dashboard,
// notifier) through a single bounded, lossy-on-overflow queue.
//
// Generalized from a websocket Hub's register/unregister/broadcast
// channel trio: here the "clients" are named subscriber channels
// instead of websocket connections, and overflow drops the oldest
// queued signal instead of disconnecting a slow client.
package signalbus

import (
	"sync"

	"go.uber.org/zap"

	"spotscan/internal/models"
)

const defaultSubscriberBuffer = 64

// Bus is a bounded, drop-oldest-on-overflow signal queue with fanout to
// named subscribers. Each subscriber has its own bounded channel, so a
// slow subscriber only drops signals for itself, never for the others.
type Bus struct {
	log     *zap.SugaredLogger
	maxSize int

	mu     sync.Mutex
	queue  []models.Signal
	notify chan struct{}

	subMu       sync.RWMutex
	subscribers map[string]chan models.Signal

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	droppedQueue      int64
	droppedSubscriber map[string]int64
}

// New builds a Bus with the given intake queue bound (default: 1000).
func New(maxSize int, log *zap.SugaredLogger) *Bus {
	return &Bus{
		log:               log,
		maxSize:           maxSize,
		notify:            make(chan struct{}, 1),
		subscribers:       make(map[string]chan models.Signal),
		stopCh:            make(chan struct{}),
		doneCh:            make(chan struct{}),
		droppedSubscriber: make(map[string]int64),
	}
}

// Start runs the dispatch loop in the caller's goroutine; callers
// typically do `go bus.Start()`.
func (b *Bus) Start() {
	defer close(b.doneCh)
	for {
		select {
		case <-b.stopCh:
			b.drain()
			return
		case <-b.notify:
			b.drain()
		}
	}
}

// Stop halts the dispatch loop and waits for it to exit.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
	<-b.doneCh
}

// Publish enqueues a signal, dropping the oldest queued signal first if
// the bus is at capacity. Never blocks.
func (b *Bus) Publish(sig models.Signal) {
	b.mu.Lock()
	if b.maxSize > 0 && len(b.queue) >= b.maxSize {
		b.queue = b.queue[1:]
		b.droppedQueue++
		b.log.Warnw("signal bus at capacity, dropping oldest", "dropped_total", b.droppedQueue)
	}
	b.queue = append(b.queue, sig)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// drain pops every currently-queued signal and fans each out to every
// subscriber, independently and without blocking on any one of them.
func (b *Bus) drain() {
	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.mu.Unlock()
			return
		}
		sig := b.queue[0]
		b.queue = b.queue[1:]
		b.mu.Unlock()

		b.fanout(sig)
	}
}

func (b *Bus) fanout(sig models.Signal) {
	b.subMu.RLock()
	defer b.subMu.RUnlock()
	for name, ch := range b.subscribers {
		select {
		case ch <- sig:
		default:
			b.droppedSubscriber[name]++
			b.log.Warnw("subscriber channel full, dropping signal for it", "subscriber", name)
		}
	}
}

// Subscribe registers a new named subscriber and returns its receive
// channel. Re-subscribing under the same name replaces the previous
// channel (the old one is closed).
func (b *Bus) Subscribe(name string) <-chan models.Signal {
	ch := make(chan models.Signal, defaultSubscriberBuffer)

	b.subMu.Lock()
	if old, ok := b.subscribers[name]; ok {
		close(old)
	}
	b.subscribers[name] = ch
	b.subMu.Unlock()

	return ch
}

// Unsubscribe removes and closes a named subscriber's channel.
func (b *Bus) Unsubscribe(name string) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	if ch, ok := b.subscribers[name]; ok {
		close(ch)
		delete(b.subscribers, name)
	}
}

// Stats is a point-in-time snapshot of queue and drop counters.
type Stats struct {
	QueueLen            int
	DroppedFromQueue     int64
	DroppedBySubscriber  map[string]int64
}

func (b *Bus) Stats() Stats {
	b.mu.Lock()
	qlen := len(b.queue)
	dropped := b.droppedQueue
	b.mu.Unlock()

	b.subMu.RLock()
	defer b.subMu.RUnlock()
	bySub := make(map[string]int64, len(b.droppedSubscriber))
	for k, v := range b.droppedSubscriber {
		bySub[k] = v
	}
	return Stats{QueueLen: qlen, DroppedFromQueue: dropped, DroppedBySubscriber: bySub}
}
