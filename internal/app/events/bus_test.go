package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBus(t *testing.T) {
	t.Run("fans out to every handler", func(t *testing.T) {
		b := NewBus[string, int]()
		var got []int
		b.On("n", func(v int) { got = append(got, v) })
		b.On("n", func(v int) { got = append(got, v*10) })
		b.On("other", func(int) { t.Fatal("wrong event") })

		b.Emit("n", 2)
		require.ElementsMatch(t, []int{2, 20}, got)
	})

	t.Run("unknown name is a no-op", func(t *testing.T) {
		b := NewBus[string, int]()
		require.NotPanics(t, func() { b.Emit("nobody", 1) })
	})

	t.Run("panicking handler is isolated", func(t *testing.T) {
		b := NewBus[string, string]()
		calls := 0
		b.On("e", func(string) { panic("bad handler") })
		b.On("e", func(string) { calls++ })
		b.On("e", func(string) { calls++ })

		require.NotPanics(t, func() { b.Emit("e", "x") })
		require.Equal(t, 2, calls)
	})

	t.Run("off removes only that handler", func(t *testing.T) {
		b := NewBus[string, int]()
		first, second := 0, 0
		off := b.On("e", func(int) { first++ })
		b.On("e", func(int) { second++ })
		require.Equal(t, 2, b.HandlerCount("e"))

		off()
		off()
		b.Emit("e", 1)
		require.Equal(t, 0, first)
		require.Equal(t, 1, second)
		require.Equal(t, 1, b.HandlerCount("e"))
	})

	t.Run("handler may subscribe during emit", func(t *testing.T) {
		b := NewBus[string, int]()
		late := 0
		b.On("e", func(int) {
			b.On("e", func(int) { late++ })
		})
		b.Emit("e", 1)
		require.Equal(t, 0, late)
		b.Emit("e", 1)
		require.Equal(t, 1, late)
	})
}
