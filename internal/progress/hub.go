package progress

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Sink consumes progress events. Implementations must tolerate repeated
// calls; the hub invokes them from its dispatch goroutine only.
type Sink interface {
	Consume(ctx context.Context, evt Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Hub satisfies this interface so the
// pipeline stays agnostic about how events are buffered or exported.
type Emitter interface {
	Emit(evt Event)
}

const defaultBufferSize = 1024

// Hub fans Event streams out to registered sinks from a single background
// goroutine. Emit never blocks; a full buffer drops the event with a
// warning. A run produces at most a few events per appid, so the default
// buffer is generous.
type Hub struct {
	sinks  []Sink
	events chan Event
	stop   chan struct{}
	done   chan struct{}
	logger *zap.Logger

	closed    atomic.Bool
	closeOnce sync.Once
}

// NewHub starts the dispatch goroutine over the supplied sinks.
func NewHub(logger *zap.Logger, sinks ...Sink) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		sinks:  append([]Sink(nil), sinks...),
		events: make(chan Event, defaultBufferSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger,
	}
	go h.run()
	return h
}

// Emit enqueues an Event for dispatch. Invalid events are discarded, and
// events emitted after Close begins are ignored.
func (h *Hub) Emit(evt Event) {
	if h == nil || h.closed.Load() {
		return
	}
	if evt.TS.IsZero() {
		evt.TS = time.Now().UTC()
	}
	if err := evt.Validate(); err != nil {
		h.logger.Debug("discarding invalid progress event", zap.Error(err))
		return
	}
	select {
	case h.events <- evt:
	default:
		h.logger.Warn("progress event dropped due to backpressure", zap.String("stage", string(evt.Stage)))
	}
}

// Close drains queued events, closes the sinks, and blocks until the
// dispatch goroutine exits. Safe to call more than once.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		close(h.stop)
	})
	select {
	case <-h.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	var firstErr error
	for _, sink := range h.sinks {
		if err := sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case evt := <-h.events:
			h.dispatch(evt)
		case <-h.stop:
			// Drain whatever was queued before shutdown.
			for {
				select {
				case evt := <-h.events:
					h.dispatch(evt)
				default:
					return
				}
			}
		}
	}
}

func (h *Hub) dispatch(evt Event) {
	for _, sink := range h.sinks {
		if err := sink.Consume(context.Background(), evt); err != nil {
			h.logger.Warn("progress sink failed",
				zap.String("stage", string(evt.Stage)),
				zap.Error(err),
			)
		}
	}
}
