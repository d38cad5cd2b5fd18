// Package eventbus fans out registry state changes to in-process observers
// such as the SSE stream and the metrics collector.
package eventbus

import (
	"context"
	"sync"

	"github.com/soochol/dbadmin/internal/dbadmin"
)

type Handler func(dbadmin.StateChange)

type Bus struct {
	mu       sync.RWMutex
	handlers map[int]Handler
	nextID   int
}

func New() *Bus {
	return &Bus{handlers: make(map[int]Handler)}
}

// Subscribe registers handler and returns a function that removes it.
// Handlers run synchronously on the publishing goroutine.
func (b *Bus) Subscribe(handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

func (b *Bus) Publish(change dbadmin.StateChange) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for id := 0; id < b.nextID; id++ {
		if h, ok := b.handlers[id]; ok {
			handlers = append(handlers, h)
		}
	}
	b.mu.RUnlock()
	for _, h := range handlers {
		h(change)
	}
}

// Channel delivers changes on a buffered channel until ctx is done. Changes
// are dropped when the buffer is full.
func (b *Bus) Channel(ctx context.Context, bufSize int) <-chan dbadmin.StateChange {
	ch := make(chan dbadmin.StateChange, bufSize)
	var mu sync.Mutex
	closed := false
	unsubscribe := b.Subscribe(func(c dbadmin.StateChange) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- c:
		default:
		}
	})
	go func() {
		<-ctx.Done()
		unsubscribe()
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()
	return ch
}

// Subscribers reports the number of registered handlers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}
