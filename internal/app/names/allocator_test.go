package names

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

func seeded() Option {
	return WithRand(rand.New(rand.NewPCG(1, 2)))
}

func TestAllocate(t *testing.T) {
	t.Run("never hands out a leased name", func(t *testing.T) {
		a := NewAllocator([]string{"A", "B", "C"}, seeded())
		seen := map[string]bool{}
		for i := 0; i < 20; i++ {
			n := a.Allocate()
			require.False(t, seen[n], "duplicate lease %q", n)
			seen[n] = true
		}
		require.Equal(t, 20, a.Leased())
	})

	t.Run("blank pool falls back to the default names", func(t *testing.T) {
		a := NewAllocator([]string{"", ""}, seeded())
		var n string
		require.NotPanics(t, func() { n = a.Allocate() })
		require.Contains(t, DefaultPool, n)
	})

	t.Run("prefers the pool until it is exhausted", func(t *testing.T) {
		a := NewAllocator([]string{"A", "B"}, seeded())
		got := []string{a.Allocate(), a.Allocate()}
		require.ElementsMatch(t, []string{"A", "B"}, got)

		third := a.Allocate()
		require.Contains(t, []string{"A 1", "B 1"}, third)
	})

	t.Run("suffix picks the smallest free number", func(t *testing.T) {
		a := NewAllocator([]string{"Solo"}, seeded())
		require.Equal(t, "Solo", a.Allocate())
		require.Equal(t, "Solo 1", a.Allocate())
		require.Equal(t, "Solo 2", a.Allocate())

		a.Release("Solo 1")
		require.Equal(t, "Solo 1", a.Allocate())
	})

	t.Run("released name is reused before suffixes", func(t *testing.T) {
		a := NewAllocator([]string{"A", "B"}, seeded())
		first := a.Allocate()
		a.Allocate()
		a.Release(first)
		require.Equal(t, first, a.Allocate())
	})

	t.Run("same seed same sequence", func(t *testing.T) {
		x := NewAllocator(nil, seeded())
		y := NewAllocator(nil, seeded())
		for i := 0; i < len(DefaultPool)+3; i++ {
			require.Equal(t, x.Allocate(), y.Allocate())
		}
	})
}

func TestRelease(t *testing.T) {
	a := NewAllocator([]string{"A"})
	require.NotPanics(t, func() { a.Release("never-leased") })

	n := a.Allocate()
	require.True(t, a.InUse(n))
	a.Release(n)
	a.Release(n)
	require.False(t, a.InUse(n))
	require.Equal(t, 0, a.Leased())
}
