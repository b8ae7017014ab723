package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	video_relay "github.com/alanbriolat/video-relay"
)

// Worker drives one job at a time through fetch, upload and cleanup, emitting a status
// notification to the job's recipient at each transition. A job's failure terminates only
// that job: it is recorded on the job itself and never propagates out of Process.
type Worker struct {
	registry  *video_relay.FetcherRegistry
	uploader  video_relay.Uploader
	sink      video_relay.Sink
	retention *video_relay.RetentionManager
	cacheDir  string
	keep      bool
	progress  func(job *video_relay.Job) func(downloaded, expected int64)
	ctx       context.Context
	log       *zap.SugaredLogger
}

func (w *Worker) Process(job *video_relay.Job) {
	log := w.log.With("job_id", job.ID, "reference", job.Reference)

	w.advance(log, job, video_relay.JobStateFetching)
	w.notify(job, fmt.Sprintf("🎬 Starting download for: %s", job.Reference))
	log.Infof("fetching %s", job.Reference)

	path, err := w.fetch(job)
	if err != nil {
		w.fail(log, job, &video_relay.FetchError{Reference: job.Reference, Err: err},
			fmt.Sprintf("❌ Failed to download video from: %s", job.Reference))
		return
	}
	job.LocalPath = path
	name := filepath.Base(path)
	log.Infof("fetched %s", path)

	w.advance(log, job, video_relay.JobStateUploading)
	w.notify(job, fmt.Sprintf("✅ Download complete! Now uploading '%s' to %s...", name, w.uploader.Name()))

	url, err := w.uploader.Upload(w.ctx, path)
	if err != nil {
		// The artifact intentionally stays on disk for manual recovery.
		w.fail(log, job, &video_relay.UploadError{Path: path, Err: err},
			fmt.Sprintf("❌ Failed to upload '%s' to %s.", name, w.uploader.Name()))
		return
	}
	job.PublicURL = url
	log.Infof("uploaded to %s", url)

	w.advance(log, job, video_relay.JobStateCleaningUp)
	w.notify(job, fmt.Sprintf("🎉 Upload complete! Here's your link:\n%s", url))

	if w.keep {
		log.Infof("keeping %s", path)
	} else {
		if err := os.Remove(path); err != nil {
			// Leave it to a later retention pass rather than failing a job that already has a
			// public URL.
			log.Warnf("failed to delete %s: %v", path, err)
		}
		if _, err := w.retention.EnforceLimit(); err != nil {
			log.Warnf("retention pass failed: %v", err)
		}
	}

	w.advance(log, job, video_relay.JobStateDone)
	log.Infof("done")
}

func (w *Worker) fetch(job *video_relay.Job) (string, error) {
	match, err := w.registry.Match(job.Reference)
	if err != nil {
		return "", err
	}
	builder := video_relay.NewDeliveryBuilder().
		WithContext(w.ctx).
		WithCacheDir(w.cacheDir)
	if w.progress != nil {
		builder = builder.WithProgressCallback(w.progress(job))
	}
	d, err := builder.Build()
	if err != nil {
		return "", err
	}
	defer d.Close()
	return match.Media.Fetch(d)
}

func (w *Worker) fail(log *zap.SugaredLogger, job *video_relay.Job, err error, text string) {
	if ferr := job.Fail(err.Error()); ferr != nil {
		log.DPanicf("marking job failed: %v", ferr)
	}
	log.Errorf("job failed: %v", err)
	w.notify(job, text)
}

func (w *Worker) advance(log *zap.SugaredLogger, job *video_relay.Job, next video_relay.JobState) {
	if err := job.Advance(next); err != nil {
		log.DPanicf("advancing job: %v", err)
	}
}

func (w *Worker) notify(job *video_relay.Job, text string) {
	if job.Recipient == "" {
		return
	}
	w.sink.Notify(job.Recipient, text)
}
