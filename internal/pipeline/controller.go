package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	video_relay "github.com/alanbriolat/video-relay"
	"github.com/alanbriolat/video-relay/internal/sync_"
)

var ErrControllerClosed = errors.New("controller closed")

// Config assembles a Controller's collaborators. Registry and Sink may be left nil to get
// DefaultFetcherRegistry and NopSink.
type Config struct {
	Pipeline video_relay.PipelineConfig
	Registry *video_relay.FetcherRegistry
	Uploader video_relay.Uploader
	Sink     video_relay.Sink
	// KeepArtifacts skips the delete and retention pass after a successful upload, leaving
	// every fetched file in the cache dir.
	KeepArtifacts bool
	// Progress, when set, supplies a per-job progress callback wired into each delivery.
	Progress func(job *video_relay.Job) func(downloaded, expected int64)
}

// Controller owns the job queue and the worker lifecycle. At most one worker goroutine is
// ever active: one is spawned lazily when a job arrives while idle, drains the queue, and
// exits. The idle flag and the queue are coupled through mu so that a job submitted while the
// worker is deciding to exit is never stranded: either the exiting worker sees the job, or
// the submitter sees the idle flag and spawns a fresh worker.
type Controller struct {
	config    Config
	ctx       context.Context
	ctxCancel context.CancelFunc
	log       *zap.SugaredLogger

	queue  *Queue
	worker *Worker

	mu   sync.Mutex
	idle *sync_.Event
}

func New(config Config, ctx context.Context) (*Controller, error) {
	if err := config.Pipeline.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if config.Registry == nil {
		config.Registry = &video_relay.DefaultFetcherRegistry
	}
	if config.Uploader == nil {
		return nil, errors.New("no uploader configured")
	}
	if config.Sink == nil {
		config.Sink = video_relay.NopSink
	}
	ctx, cancel := context.WithCancel(ctx)
	log := zap.S().Named("pipeline")
	c := &Controller{
		config:    config,
		ctx:       ctx,
		ctxCancel: cancel,
		log:       log,
		queue:     NewQueue(),
		worker: &Worker{
			registry:  config.Registry,
			uploader:  config.Uploader,
			sink:      config.Sink,
			retention: video_relay.NewRetentionManager(config.Pipeline.CacheDir, config.Pipeline.MaxResidentFiles),
			cacheDir:  config.Pipeline.CacheDir,
			keep:      config.KeepArtifacts,
			progress:  config.Progress,
			ctx:       ctx,
			log:       log.Named("worker"),
		},
		idle: sync_.NewEvent(),
	}
	c.idle.Set()
	return c, nil
}

// Submit validates the reference, enqueues a new job for it, and ensures a worker is running.
// Validation failures are synchronous and enqueue nothing. Submit never waits on job
// execution and is safe to call from any goroutine.
func (c *Controller) Submit(reference string, recipient string) (*video_relay.Job, error) {
	if c.ctx.Err() != nil {
		return nil, ErrControllerClosed
	}
	if _, err := c.config.Registry.Match(reference); err != nil {
		return nil, err
	}
	job := video_relay.NewJob(reference, recipient)
	c.queue.Enqueue(job)
	// The enqueue above is complete before this test-and-set, and the worker's exit decision
	// runs under the same mutex, so the job is either visible to a draining worker or handled
	// by the worker spawned here.
	c.mu.Lock()
	if c.idle.Clear() {
		go c.run()
	}
	c.mu.Unlock()
	c.log.Infow("job queued", "job_id", job.ID, "reference", job.Reference)
	return job, nil
}

// Depth reports how many jobs are queued but not yet picked up by the worker.
func (c *Controller) Depth() int {
	return c.queue.Len()
}

// Active reports whether a worker goroutine is currently running.
func (c *Controller) Active() bool {
	return !c.idle.IsSet()
}

// WaitIdle returns a channel that closes when the worker has exited with an empty queue.
// Callers that have stopped submitting can use it as a drain barrier.
func (c *Controller) WaitIdle() <-chan struct{} {
	return c.idle.Wait()
}

// Shutdown waits for the queue to drain and the worker to exit, or for ctx to end. It does
// not reject new submissions; callers stop their intake first.
func (c *Controller) Shutdown(ctx context.Context) error {
	select {
	case <-c.WaitIdle():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close rejects further submissions, interrupts any in-flight fetch or upload, and returns
// once the worker has exited. Jobs still queued at that point stay queued, unprocessed.
func (c *Controller) Close() {
	c.ctxCancel()
	<-c.idle.Wait()
}

func (c *Controller) run() {
	c.log.Debugf("worker started")
	for {
		if c.ctx.Err() != nil {
			c.mu.Lock()
			c.idle.Set()
			c.mu.Unlock()
			c.log.Debugf("worker stopped: %v", c.ctx.Err())
			return
		}
		c.mu.Lock()
		job, ok := c.queue.TryDequeue()
		if !ok {
			// The emptiness check and the idle transition are a single atomic decision with
			// respect to Submit; see Submit for the other half of the protocol.
			c.idle.Set()
			c.mu.Unlock()
			c.log.Debugf("worker idle")
			return
		}
		c.mu.Unlock()
		c.worker.Process(job)
	}
}
