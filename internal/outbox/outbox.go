package outbox

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	video_relay "github.com/alanbriolat/video-relay"
)

// Outbox is the dedicated outbound notification channel between the pipeline worker and
// whatever runtime owns the chat connection. Posting never blocks: when the buffer is full or
// the outbox is closed, the notification is dropped and counted, so a slow or absent consumer
// can never stall a job.
type Outbox struct {
	mu      sync.RWMutex
	ch      chan video_relay.Notification
	closed  bool
	waiting sync.WaitGroup
	dropped atomic.Int64
	log     *zap.SugaredLogger
}

func New(size int) *Outbox {
	return &Outbox{
		ch:  make(chan video_relay.Notification, size),
		log: zap.S().Named("outbox"),
	}
}

// Notify implements video_relay.Sink.
func (o *Outbox) Notify(recipient string, text string) {
	o.Send(video_relay.Notification{Recipient: recipient, Text: text})
}

// Send attempts to post the notification, returning false if it was dropped (buffer full or
// outbox closed).
func (o *Outbox) Send(n video_relay.Notification) bool {
	// Atomically ensure that either the channel send is never attempted or that Close() can
	// wait until no more channel sends are in flight.
	o.mu.RLock()
	if o.closed {
		o.mu.RUnlock()
		o.drop(n)
		return false
	}
	o.waiting.Add(1)
	defer o.waiting.Done()
	o.mu.RUnlock()

	select {
	case o.ch <- n:
		return true
	default:
		o.drop(n)
		return false
	}
}

// Receive returns the channel the consuming runtime ranges over; it is closed by Close once
// no more notifications can arrive.
func (o *Outbox) Receive() <-chan video_relay.Notification {
	return o.ch
}

// Dropped reports how many notifications have been discarded so far.
func (o *Outbox) Dropped() int64 {
	return o.dropped.Load()
}

// Close idempotently ends the outbox: all current and future Send calls fail, and the Receive
// channel is closed once in-flight sends have finished.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	o.waiting.Wait()
	close(o.ch)
}

func (o *Outbox) drop(n video_relay.Notification) {
	o.dropped.Add(1)
	o.log.Warnf("dropped notification for %q (%d dropped so far)", n.Recipient, o.Dropped())
}

var _ video_relay.Sink = (*Outbox)(nil)
