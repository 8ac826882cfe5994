package scan

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortQueueIsFIFO(t *testing.T) {
	q := NewPortQueue([]Port{22, 80, 443})

	for _, want := range []Port{22, 80, 443} {
		port, ok := q.Take()
		require.True(t, ok)
		assert.Equal(t, want, port)
	}

	for i := 0; i < 3; i++ {
		_, ok := q.Take()
		assert.False(t, ok, "drained queue must stay empty")
	}
	assert.Equal(t, 0, q.Remaining())
}

func TestPortQueueCopiesInput(t *testing.T) {
	ports := []Port{1, 2}
	q := NewPortQueue(ports)
	ports[0] = 99

	port, ok := q.Take()
	require.True(t, ok)
	assert.Equal(t, Port(1), port)
}

func TestPortQueueConcurrentTakeHandsOutEachPortOnce(t *testing.T) {
	ports := portRange(1, 5000)
	q := NewPortQueue(ports)

	var mu sync.Mutex
	seen := make(map[Port]int)

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				port, ok := q.Take()
				if !ok {
					return
				}
				mu.Lock()
				seen[port]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, len(ports))
	for _, port := range ports {
		assert.Equal(t, 1, seen[port], "port %d", port)
	}
}
