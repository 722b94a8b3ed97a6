package snowflake

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDGenerator_NodeIDBounds(t *testing.T) {
	gen, err := NewIDGenerator(1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen.nodeID)

	_, err = NewIDGenerator(-1)
	assert.Error(t, err)

	_, err = NewIDGenerator(nodeMask + 1)
	assert.Error(t, err)

	_, err = NewIDGenerator(0)
	assert.NoError(t, err)

	_, err = NewIDGenerator(nodeMask)
	assert.NoError(t, err)
}

func TestNextID_UniqueAndOrdered(t *testing.T) {
	gen, err := NewIDGenerator(1)
	require.NoError(t, err)

	ids := make([]int64, 100)
	for i := range ids {
		ids[i] = gen.NextID()
	}

	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		assert.Positive(t, id)
		assert.False(t, seen[id], "duplicate ID %d", id)
		seen[id] = true
	}

	for i := 1; i < len(ids); i++ {
		assert.GreaterOrEqual(t, GetTimestamp(ids[i]), GetTimestamp(ids[i-1]),
			"IDs must not travel back in time")
	}
}

func TestNextID_Concurrent(t *testing.T) {
	gen, err := NewIDGenerator(1)
	require.NoError(t, err)

	const workers = 10
	const perWorker = 100

	var wg sync.WaitGroup
	idChan := make(chan int64, workers*perWorker)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				idChan <- gen.NextID()
			}
		}()
	}

	wg.Wait()
	close(idChan)

	seen := make(map[int64]bool)
	for id := range idChan {
		assert.False(t, seen[id], "duplicate ID %d under concurrency", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers*perWorker)
}

func TestNextID_SequenceBurst(t *testing.T) {
	gen, err := NewIDGenerator(1)
	require.NoError(t, err)

	// A burst larger than one millisecond's sequence space forces the
	// generator to wait for the clock, never to reuse an ID
	const burst = 5000
	seen := make(map[int64]bool, burst)
	for i := 0; i < burst; i++ {
		id := gen.NextID()
		assert.False(t, seen[id], "duplicate ID %d in burst", id)
		seen[id] = true
	}
}

func TestParseID(t *testing.T) {
	gen, err := NewIDGenerator(123)
	require.NoError(t, err)

	before := time.Now().UnixMilli()
	id := gen.NextID()
	after := time.Now().UnixMilli()

	timestamp, nodeID, step := ParseID(id)
	assert.Equal(t, int64(123), nodeID)
	assert.GreaterOrEqual(t, step, int64(0))
	assert.LessOrEqual(t, step, int64(stepMask))
	assert.GreaterOrEqual(t, timestamp, before)
	assert.LessOrEqual(t, timestamp, after)

	assert.Equal(t, timestamp, GetTimestamp(id))
	assert.Equal(t, nodeID, GetNodeID(id))
	assert.Equal(t, step, GetStep(id))
}

func TestNextID_DistinctNodes(t *testing.T) {
	gen1, err := NewIDGenerator(1)
	require.NoError(t, err)
	gen2, err := NewIDGenerator(2)
	require.NoError(t, err)

	seen := make(map[int64]bool)
	for i := 0; i < 100; i++ {
		a, b := gen1.NextID(), gen2.NextID()
		assert.False(t, seen[a] || seen[b], "IDs collide across nodes")
		seen[a], seen[b] = true, true

		assert.Equal(t, int64(1), GetNodeID(a))
		assert.Equal(t, int64(2), GetNodeID(b))
	}
}
