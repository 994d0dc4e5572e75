package camera2

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_RunsInOrder(t *testing.T) {
	h := NewHandler("test")
	defer h.Quit()

	var (
		mu    sync.Mutex
		order []int
	)
	for i := 0; i < 10; i++ {
		i := i
		require.True(t, h.Post(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}
	require.True(t, h.Invoke(func() {}))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestHandler_QuitRejectsTasks(t *testing.T) {
	h := NewHandler("test")
	h.Quit()
	<-h.Done()

	assert.False(t, h.Post(func() {}))
	assert.False(t, h.Invoke(func() {}))

	// Double quit is safe.
	h.Quit()
}
