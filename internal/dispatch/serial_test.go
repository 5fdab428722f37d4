package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPostOrdering verifies that tasks run in post order.
func TestPostOrdering(t *testing.T) {
	s := NewSerial()
	defer s.Stop()

	var got []int
	for i := 0; i < 100; i++ {
		n := i
		require.True(t, s.Post(func() { got = append(got, n) }))
	}

	require.True(t, s.PostWait(func() {}))

	require.Len(t, got, 100)
	for i, n := range got {
		assert.Equal(t, i, n)
	}
}

// TestPostAfterStop verifies that a stopped executor drops tasks.
func TestPostAfterStop(t *testing.T) {
	s := NewSerial()
	s.Stop()

	assert.True(t, s.Stopped())
	assert.False(t, s.Post(func() { t.Error("task ran after stop") }))
	assert.False(t, s.PostWait(func() { t.Error("task ran after stop") }))
}

// TestStopFromTask verifies that a task may stop its own executor
// without deadlocking, and that pending tasks are discarded.
func TestStopFromTask(t *testing.T) {
	s := NewSerial()

	ran := make(chan struct{})
	require.True(t, s.Post(func() {
		s.Stop()
		close(ran)
	}))

	<-ran

	assert.False(t, s.Post(func() {}))
}

// TestStopIdempotent verifies that repeated stops are harmless.
func TestStopIdempotent(t *testing.T) {
	s := NewSerial()
	s.Stop()
	s.Stop()

	assert.True(t, s.Stopped())
}
