package pipeline

import (
	"context"

	video_relay "github.com/alanbriolat/video-relay"
	"github.com/alanbriolat/video-relay/internal/sync_"
)

// jobList is the Mutexed inner state of a Queue.
type jobList struct {
	items []*video_relay.Job
}

// Queue is an unbounded FIFO of pending jobs, safe for concurrent producers. Enqueue never
// blocks and never drops; Dequeue suspends the caller until an item arrives, without polling.
type Queue struct {
	state *sync_.Mutexed[*jobList]
	// signal carries coalesced "something was enqueued" wakeups; Dequeue always re-checks the
	// list, so one buffered token is enough.
	signal chan struct{}
}

func NewQueue() *Queue {
	return &Queue{
		state:  sync_.NewMutexed(&jobList{}),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends the job to the tail.
func (q *Queue) Enqueue(job *video_relay.Job) {
	_ = q.state.Locked(func(l *jobList) error {
		l.items = append(l.items, job)
		return nil
	})
	q.wake()
}

// TryDequeue removes and returns the head, or ok=false when the queue is empty.
func (q *Queue) TryDequeue() (job *video_relay.Job, ok bool) {
	job, ok, _ = q.pop()
	return job, ok
}

// Dequeue removes and returns the head, blocking until an item is available or ctx ends.
func (q *Queue) Dequeue(ctx context.Context) (*video_relay.Job, error) {
	for {
		if job, ok, more := q.pop(); ok {
			if more {
				// Pass the wakeup on, in case another waiter consumed its token for an item
				// this call took.
				q.wake()
			}
			return job, nil
		}
		select {
		case <-q.signal:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *Queue) Len() int {
	var n int
	_ = q.state.Locked(func(l *jobList) error {
		n = len(l.items)
		return nil
	})
	return n
}

// IsEmpty is a snapshot; the queue may be non-empty again by the time the caller acts on it.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

func (q *Queue) pop() (job *video_relay.Job, ok bool, more bool) {
	_ = q.state.Locked(func(l *jobList) error {
		if len(l.items) == 0 {
			return nil
		}
		job, ok = l.items[0], true
		l.items[0] = nil
		l.items = l.items[1:]
		more = len(l.items) > 0
		return nil
	})
	return job, ok, more
}

func (q *Queue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
