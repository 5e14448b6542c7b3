package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNATSQueue() *NATSQueue {
	return &NATSQueue{out: make(chan *BuildJob), done: make(chan struct{})}
}

func TestNATSDeliverHandsJobToWorker(t *testing.T) {
	q := newTestNATSQueue()

	delivered := make(chan bool, 1)
	go func() { delivered <- q.deliver(&BuildJob{BuildID: "b1"}) }()

	job := <-q.Jobs()
	assert.Equal(t, "b1", job.BuildID)
	assert.True(t, <-delivered)
}

func TestNATSCloseUnblocksPendingDeliver(t *testing.T) {
	q := newTestNATSQueue()

	// No worker is receiving; the delivery blocks until Close.
	delivered := make(chan bool, 1)
	go func() { delivered <- q.deliver(&BuildJob{BuildID: "b2"}) }()

	require.NoError(t, q.Close())
	select {
	case ok := <-delivered:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("deliver did not unblock after Close")
	}
}

func TestNATSCloseIsIdempotent(t *testing.T) {
	q := newTestNATSQueue()
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	assert.False(t, q.deliver(&BuildJob{BuildID: "b3"}))
}
