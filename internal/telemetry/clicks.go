package telemetry

import (
	"log/slog"
	"sync"
	"time"
)

// Click is one result-click event.
type Click struct {
	Query     string
	ProductID string
	Position  int
	At        time.Time
}

// ClickSink accepts fire-and-forget click events on a buffered channel.
// Record never blocks the search path: when the buffer is full the event
// is dropped and counted.
type ClickSink struct {
	events  chan Click
	handler func(Click)
	logger  *slog.Logger

	mu      sync.Mutex
	dropped int
	done    chan struct{}
	closed  bool
}

// NewClickSink starts a sink with the given buffer size. The handler
// runs on the sink's own goroutine for every received event; nil means
// log-only.
func NewClickSink(buffer int, handler func(Click), logger *slog.Logger) *ClickSink {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &ClickSink{
		events:  make(chan Click, buffer),
		handler: handler,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *ClickSink) run() {
	defer close(s.done)
	for ev := range s.events {
		if s.handler != nil {
			s.handler(ev)
		}
		s.logger.Debug("click_tracked",
			slog.String("query", ev.Query),
			slog.String("product_id", ev.ProductID),
			slog.Int("position", ev.Position))
	}
}

// Record enqueues a click without blocking. The lock spans the send so a
// concurrent Close cannot close the channel mid-send.
func (s *ClickSink) Record(query, productID string, position int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.events <- Click{Query: query, ProductID: productID, Position: position, At: time.Now()}:
	default:
		s.dropped++
	}
}

// Dropped returns the number of events lost to a full buffer.
func (s *ClickSink) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close stops the sink after draining buffered events.
func (s *ClickSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.events)
	<-s.done
}
