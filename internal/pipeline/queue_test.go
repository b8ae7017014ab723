package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"

	video_relay "github.com/alanbriolat/video-relay"
)

func newTestJob(reference string) *video_relay.Job {
	return video_relay.NewJob(reference, "")
}

func TestQueueFIFO(t *testing.T) {
	assert := assert_.New(t)
	q := NewQueue()
	a, b, c := newTestJob("a"), newTestJob("b"), newTestJob("c")
	q.Enqueue(a)
	q.Enqueue(b)
	q.Enqueue(c)
	assert.Equal(3, q.Len())

	for _, want := range []*video_relay.Job{a, b, c} {
		job, ok := q.TryDequeue()
		assert.True(ok)
		assert.Same(want, job)
	}
	assert.True(q.IsEmpty())
}

func TestQueueTryDequeueEmpty(t *testing.T) {
	assert := assert_.New(t)
	q := NewQueue()
	job, ok := q.TryDequeue()
	assert.False(ok)
	assert.Nil(job)
}

func TestQueueDequeueBlocksUntilEnqueue(t *testing.T) {
	assert := assert_.New(t)
	q := NewQueue()
	results := make(chan *video_relay.Job, 1)
	go func() {
		job, err := q.Dequeue(context.Background())
		assert.NoError(err)
		results <- job
	}()

	time.Sleep(10 * time.Millisecond)
	select {
	case <-results:
		assert.Fail("Dequeue returned before anything was enqueued")
	default:
	}

	want := newTestJob("a")
	q.Enqueue(want)
	assert.Same(want, <-results)
}

func TestQueueDequeueCancelled(t *testing.T) {
	assert := assert_.New(t)
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(ctx)
		errs <- err
	}()
	cancel()
	assert.ErrorIs(<-errs, context.Canceled)
}

func TestQueueMultipleWaiters(t *testing.T) {
	assert := assert_.New(t)
	q := NewQueue()
	results := make(chan *video_relay.Job, 2)
	for i := 0; i < 2; i++ {
		go func() {
			job, err := q.Dequeue(context.Background())
			assert.NoError(err)
			results <- job
		}()
	}

	time.Sleep(10 * time.Millisecond)
	a, b := newTestJob("a"), newTestJob("b")
	q.Enqueue(a)
	q.Enqueue(b)

	got := map[*video_relay.Job]bool{<-results: true, <-results: true}
	assert.True(got[a])
	assert.True(got[b])
}

func TestQueueConcurrentProducers(t *testing.T) {
	assert := assert_.New(t)
	q := NewQueue()
	const producers = 10
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(newTestJob(fmt.Sprintf("p%d-%d", p, i)))
			}
		}()
	}
	wg.Wait()

	// A single consumer must see every item exactly once, and each producer's items in the
	// order that producer enqueued them.
	next := make([]int, producers)
	total := 0
	for {
		job, ok := q.TryDequeue()
		if !ok {
			break
		}
		var p, i int
		_, err := fmt.Sscanf(job.Reference, "p%d-%d", &p, &i)
		assert.NoError(err)
		assert.Equal(next[p], i, "producer %d items out of order", p)
		next[p]++
		total++
	}
	assert.Equal(producers*perProducer, total)
}

func TestQueueDequeueDrainsBacklog(t *testing.T) {
	assert := assert_.New(t)
	q := NewQueue()
	for i := 0; i < 5; i++ {
		q.Enqueue(newTestJob(fmt.Sprintf("job-%d", i)))
	}
	for i := 0; i < 5; i++ {
		job, err := q.Dequeue(context.Background())
		assert.NoError(err)
		assert.Equal(fmt.Sprintf("job-%d", i), job.Reference)
	}
	assert.True(q.IsEmpty())
}
