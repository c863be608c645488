package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const inboxSize = 16

// Operation is a one-shot asynchronous task resolving into exactly one
// event tagged with the given operation id.
type Operation func(ctx context.Context, id uuid.UUID) Event

// Loop runs operations in background goroutines and delivers their
// results, in completion order, through a single inbox that the owner
// drains from its own goroutine.
type Loop struct {
	inbox   chan Event
	timeout time.Duration

	lock    sync.Mutex
	pending map[uuid.UUID]struct{}
}

// NewLoop returns a loop whose operations are canceled after the given
// timeout. A zero timeout means no timeout.
func NewLoop(timeout time.Duration) *Loop {
	return &Loop{
		inbox:   make(chan Event, inboxSize),
		timeout: timeout,
		pending: make(map[uuid.UUID]struct{}),
	}
}

// Go starts the operation and returns its id.
func (l *Loop) Go(op Operation) uuid.UUID {
	id := uuid.New()

	l.lock.Lock()
	l.pending[id] = struct{}{}
	l.lock.Unlock()

	go func() {
		ctx := context.Background()
		if l.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, l.timeout)
			defer cancel()
		}

		event := op(ctx, id)
		if event == nil {
			log.Warnf("loop: operation %s resolved without event", id)
			event = missingEvent{id}
		}
		l.inbox <- event
	}()

	return id
}

// Next blocks until an event is available or the context is done.
func (l *Loop) Next(ctx context.Context) (Event, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case event := <-l.inbox:
		l.done(event.OperationID())
		if _, ok := event.(missingEvent); ok {
			return nil, fmt.Errorf("operation %s resolved without event", event.OperationID())
		}
		return event, nil
	}
}

// Drain returns the events already delivered, without blocking.
func (l *Loop) Drain() []Event {
	events := make([]Event, 0)
	for {
		select {
		case event := <-l.inbox:
			l.done(event.OperationID())
			if _, ok := event.(missingEvent); ok {
				continue
			}
			events = append(events, event)
		default:
			return events
		}
	}
}

// Pending returns the number of operations whose event has not been
// consumed yet.
func (l *Loop) Pending() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return len(l.pending)
}

func (l *Loop) done(id uuid.UUID) {
	l.lock.Lock()
	defer l.lock.Unlock()
	delete(l.pending, id)
}

type missingEvent struct {
	id uuid.UUID
}

func (e missingEvent) OperationID() uuid.UUID { return e.id }
func (missingEvent) isEvent()                 {}
