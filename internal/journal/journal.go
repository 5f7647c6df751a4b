package journal

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/fleet-core/internal/events"
)

// appendTimeout bounds a single insert.
const appendTimeout = 5 * time.Second

// defaultQueueSize is how many events may wait for insertion before new
// ones are dropped.
const defaultQueueSize = 256

// Logger defines the logging interface used by the Writer.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Writer copies every event published on the bus into a Repository.
//
// Bus delivery and inserts run on separate goroutines joined by a bounded
// queue. A slow insert never stalls the bus; once the queue is full new
// events are dropped and counted.
type Writer struct {
	repo   Repository
	bus    *events.Bus
	logger Logger

	mu      sync.Mutex
	ch      chan interface{}
	queue   chan events.Event
	done    chan struct{}
	wg      sync.WaitGroup
	stopped bool
	written int
	dropped int
}

// NewWriter creates a writer. Nothing is journaled until Start.
func NewWriter(repo Repository, bus *events.Bus) *Writer {
	return &Writer{
		repo:   repo,
		bus:    bus,
		logger: noopLogger{},
		queue:  make(chan events.Event, defaultQueueSize),
		done:   make(chan struct{}),
	}
}

// SetLogger sets the logger for the writer.
func (w *Writer) SetLogger(logger Logger) {
	w.logger = logger
}

// Start subscribes to TopicEvent and begins journaling. Cancelling ctx has
// the same effect as Stop.
func (w *Writer) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ch != nil || w.stopped {
		return
	}
	w.ch = w.bus.Subscribe(events.TopicEvent)
	if w.ch == nil {
		return
	}

	w.wg.Add(2)
	go w.receive(w.ch)
	go w.insert()

	go func() {
		select {
		case <-ctx.Done():
			w.Stop()
		case <-w.done:
		}
	}()
}

// Stop unsubscribes and waits for the in-flight insert. Events still queued
// are discarded. Safe to call more than once.
func (w *Writer) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	ch := w.ch
	w.mu.Unlock()

	close(w.done)
	w.wg.Wait()
	w.bus.Unsubscribe(ch, events.TopicEvent)
}

// Written returns the number of events stored so far.
func (w *Writer) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Dropped returns the number of events discarded because the queue was full.
func (w *Writer) Dropped() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

// receive moves events from the bus onto the queue without ever waiting on
// the repository.
func (w *Writer) receive(ch chan interface{}) {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			ev, isEvent := msg.(events.Event)
			if !isEvent {
				continue
			}
			select {
			case w.queue <- ev:
			default:
				w.drop(ev)
			}
		}
	}
}

func (w *Writer) drop(ev events.Event) {
	w.mu.Lock()
	w.dropped++
	n := w.dropped
	w.mu.Unlock()

	if n == 1 || n%100 == 0 {
		w.logger.Warn("journal queue full, dropping events", "event_id", ev.ID, "dropped", n)
	}
}

func (w *Writer) insert() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case ev := <-w.queue:
			w.append(ev)
		}
	}
}

func (w *Writer) append(ev events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()

	if err := w.repo.Append(ctx, ev); err != nil {
		w.logger.Warn("journal append failed", "event_id", ev.ID, "error", err)
		return
	}

	w.mu.Lock()
	w.written++
	w.mu.Unlock()
}
