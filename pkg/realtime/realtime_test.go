package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcast(t *testing.T) {
	h := NewHub[int](4)
	id1, ch1 := h.Register()
	_, ch2 := h.Register()
	assert.Equal(t, 2, h.Size())

	h.Broadcast(7)
	assert.Equal(t, 7, <-ch1)
	assert.Equal(t, 7, <-ch2)

	h.Unregister(id1)
	h.Unregister(id1)
	assert.Equal(t, 1, h.Size())
	_, ok := <-ch1
	assert.False(t, ok, "unregistered channel should be closed")
}

func TestHubKeepsLatestForSlowListener(t *testing.T) {
	h := NewHub[int](2)
	_, ch := h.Register()

	for i := 1; i <= 5; i++ {
		h.Broadcast(i)
	}

	require.Len(t, ch, 2)
	assert.Equal(t, 4, <-ch)
	assert.Equal(t, 5, <-ch)
}

func TestHubSend(t *testing.T) {
	h := NewHub[string](1)
	id, ch := h.Register()
	_, other := h.Register()

	h.Send(id, "only you")
	h.Send(id+100, "nobody")

	assert.Equal(t, "only you", <-ch)
	assert.Empty(t, other)
}

func TestHubClose(t *testing.T) {
	h := NewHub[int](0)
	_, ch := h.Register()
	h.Close()
	h.Close()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Zero(t, h.Size())

	_, late := h.Register()
	_, ok = <-late
	assert.False(t, ok, "register after close yields a closed channel")

	h.Broadcast(1)
}
