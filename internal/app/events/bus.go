// Package events is a typed publish/subscribe primitive.
//
// Emit is synchronous: every handler registered for the name has returned by
// the time Emit does. A panicking handler is logged and skipped; the others
// still run and the emitter never sees the panic.
package events

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"
)

type Handler[T any] func(T)

type Bus[K comparable, T any] struct {
	lock     sync.RWMutex
	handlers map[K]map[uint64]Handler[T]
	nextID   uint64
}

func NewBus[K comparable, T any]() *Bus[K, T] {
	return &Bus[K, T]{
		handlers: make(map[K]map[uint64]Handler[T]),
	}
}

// On registers h for name and returns a func that removes it.
func (b *Bus[K, T]) On(name K, h Handler[T]) (off func()) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.nextID++
	id := b.nextID
	hs, ok := b.handlers[name]
	if !ok {
		hs = make(map[uint64]Handler[T])
		b.handlers[name] = hs
	}
	hs[id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			b.lock.Lock()
			defer b.lock.Unlock()
			delete(b.handlers[name], id)
			if len(b.handlers[name]) == 0 {
				delete(b.handlers, name)
			}
		})
	}
}

func (b *Bus[K, T]) Emit(name K, v T) {
	b.lock.RLock()
	hs := make([]Handler[T], 0, len(b.handlers[name]))
	for _, h := range b.handlers[name] {
		hs = append(hs, h)
	}
	b.lock.RUnlock()

	for _, h := range hs {
		var pc panics.Catcher
		pc.Try(func() { h(v) })
		if r := pc.Recovered(); r != nil {
			log.Error().
				Str("module", "app.events").
				Str("event", fmt.Sprint(name)).
				Str("panic", fmt.Sprint(r.Value)).
				Msg("event handler panicked")
		}
	}
}

func (b *Bus[K, T]) HandlerCount(name K) int {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return len(b.handlers[name])
}
