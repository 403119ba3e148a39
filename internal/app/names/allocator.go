// Package names leases participant display names from a fixed pool.
package names

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/rs/zerolog/log"
)

var DefaultPool = []string{
	"Alexei", "Maria", "Ivan", "Anna", "Dmitri", "Elena",
	"Sergei", "Olga", "Andrei", "Natalia", "Maxim", "Yulia",
}

type Option func(*Allocator)

// WithRand makes selection reproducible.
func WithRand(r *rand.Rand) Option {
	return func(a *Allocator) { a.rnd = r }
}

// Allocator hands out names no other active lease holds. Once the pool is
// exhausted it falls back to "Base N" with the smallest free N, so Allocate
// never fails.
type Allocator struct {
	mu   sync.Mutex
	pool []string
	used map[string]struct{}
	rnd  *rand.Rand
}

func NewAllocator(pool []string, opts ...Option) *Allocator {
	pool = dedupe(pool)
	if len(pool) == 0 {
		pool = DefaultPool
	}
	a := &Allocator{
		pool: pool,
		used: make(map[string]struct{}),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Allocator) Allocate() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	free := make([]string, 0, len(a.pool))
	for _, n := range a.pool {
		if _, taken := a.used[n]; !taken {
			free = append(free, n)
		}
	}

	var name string
	if len(free) > 0 {
		name = free[a.intn(len(free))]
	} else {
		base := a.pool[a.intn(len(a.pool))]
		for i := 1; ; i++ {
			candidate := fmt.Sprintf("%s %d", base, i)
			if _, taken := a.used[candidate]; !taken {
				name = candidate
				break
			}
		}
	}
	a.used[name] = struct{}{}
	log.Debug().Str("module", "app.names").Str("name", name).Int("in_use", len(a.used)).Msg("name leased")
	return name
}

// Release frees name. Unknown names are ignored.
func (a *Allocator) Release(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.used[name]; !ok {
		return
	}
	delete(a.used, name)
	log.Debug().Str("module", "app.names").Str("name", name).Int("in_use", len(a.used)).Msg("name released")
}

func (a *Allocator) InUse(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.used[name]
	return ok
}

func (a *Allocator) Leased() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.used)
}

func (a *Allocator) intn(n int) int {
	if a.rnd != nil {
		return a.rnd.IntN(n)
	}
	return rand.IntN(n)
}

func dedupe(pool []string) []string {
	seen := make(map[string]struct{}, len(pool))
	out := make([]string, 0, len(pool))
	for _, n := range pool {
		if _, ok := seen[n]; ok || n == "" {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
