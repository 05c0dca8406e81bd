package ringbuffer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWriteReadRoundTrip(t *testing.T) {
	b := New(4096, 100)
	b.Write([]byte("hello"))

	out := make([]byte, 5)
	n := b.Read(out, 1, 50*time.Millisecond)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(out))
}

func TestReadTimesOutAndFillsSilence(t *testing.T) {
	b := New(4096, 100)
	out := []byte{0xFF, 0xFF, 0xFF}
	n := b.Read(out, 1, 20*time.Millisecond)
	assert.Equal(t, 0, n)
	assert.Equal(t, []byte{0, 0, 0}, out)
	assert.Equal(t, uint64(1), b.Snapshot().UnderrunCount)
}

func TestWriteNeverBlocksAndDropsOldestOnOverrun(t *testing.T) {
	b := New(8, 1) // tiny capacity to force overrun
	b.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	b.Write([]byte{9, 9}) // forces discard of oldest 2 bytes

	stats := b.Snapshot()
	assert.Equal(t, uint64(1), stats.OverrunCount)
	assert.Equal(t, 8, stats.Available)

	out := make([]byte, 8)
	b.Read(out, 8, 50*time.Millisecond)
	assert.Equal(t, []byte{3, 4, 5, 6, 7, 8, 9, 9}, out)
}

func TestHasReachedTargetLatchesAndResets(t *testing.T) {
	b := New(4096, 10)
	assert.False(t, b.Snapshot().HasReachedTarget)
	b.Write(make([]byte, 10))
	assert.True(t, b.Snapshot().HasReachedTarget)

	b.Reset()
	assert.False(t, b.Snapshot().HasReachedTarget)
}
