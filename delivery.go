package video_relay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// Delivery is the destination side of a fetch: where the artifact lands, how progress is
// reported, and a staging area for fetchers that produce files out-of-band (e.g. via a
// subprocess). Every Save/Promote method returns the final artifact path, so fetchers can
// satisfy the Media.Fetch contract without inspecting the cache directory.
type Delivery interface {
	// AddDownloadedBytes increases how many bytes have been successfully downloaded so far.
	AddDownloadedBytes(n int64)

	// AddExpectedBytes increases how many bytes are expected to be downloaded.
	AddExpectedBytes(n int64)

	// Close cleans up the staging directory, if one was created. Cache files remain.
	Close() error

	// Context is the context of this Delivery; fetchers should stop work when it ends.
	Context() context.Context

	// CreateFile creates (or truncates) filename inside the cache directory.
	CreateFile(filename string) (io.WriteCloser, error)

	// Path returns the cache path that filename would be delivered to.
	Path(filename string) string

	// Progress returns the downloaded and expected bytes of the delivery.
	Progress() (downloaded int64, expected int64)

	// Promote moves a file out of the staging directory into the cache directory, returning
	// the final path. Falls back to copy+remove when a rename crosses filesystems.
	Promote(stagedPath string) (string, error)

	// SaveHTTPRequest executes the request with Context() and then saves the resulting stream
	// like SaveStream.
	SaveHTTPRequest(filename string, req *http.Request) (string, error)

	// SaveStream downloads the stream to the named cache file, returning the final path.
	// Progress is counted via AddDownloadedBytes and the read aborts when Context() ends.
	SaveStream(filename string, stream io.Reader) (string, error)

	// SaveURL makes a GET request to the URL and then saves the resulting stream like
	// SaveStream.
	SaveURL(filename string, url string) (string, error)

	// StageDir returns this Delivery's staging directory, creating it on first use. Staged
	// files do not count as resident cache files until promoted.
	StageDir() (string, error)

	// Write ignores the data but sends the byte count to AddDownloadedBytes. Allows progress
	// tracking using io.MultiWriter (ensure the Delivery is the last writer so failed writes
	// are not counted).
	Write(p []byte) (n int, err error)
}

type delivery struct {
	ctx              context.Context
	progressCallback func(downloaded int64, expected int64)
	cacheDir         string
	stageDir         string
	expectedBytes    int64
	downloadedBytes  int64
}

func (d *delivery) AddDownloadedBytes(n int64) {
	d.downloadedBytes += n
	if d.progressCallback != nil {
		d.progressCallback(d.Progress())
	}
}

func (d *delivery) AddExpectedBytes(n int64) {
	d.expectedBytes += n
	if d.progressCallback != nil {
		d.progressCallback(d.Progress())
	}
}

func (d *delivery) Close() error {
	if d.stageDir == "" {
		return nil
	}
	stageDir := d.stageDir
	d.stageDir = ""
	if err := os.RemoveAll(stageDir); err != nil {
		return fmt.Errorf("failed to remove staging dir: %w", err)
	}
	return nil
}

func (d *delivery) Context() context.Context {
	return d.ctx
}

func (d *delivery) CreateFile(filename string) (io.WriteCloser, error) {
	if err := os.MkdirAll(d.cacheDir, 0o775); err != nil {
		return nil, err
	}
	return os.Create(d.Path(filename))
}

func (d *delivery) Path(filename string) string {
	return filepath.Join(d.cacheDir, filename)
}

func (d *delivery) Progress() (int64, int64) {
	return d.downloadedBytes, d.expectedBytes
}

func (d *delivery) Promote(stagedPath string) (string, error) {
	if err := os.MkdirAll(d.cacheDir, 0o775); err != nil {
		return "", err
	}
	target := d.Path(filepath.Base(stagedPath))
	if err := os.Rename(stagedPath, target); err == nil {
		return target, nil
	}
	src, err := os.Open(stagedPath)
	if err != nil {
		return "", fmt.Errorf("failed to promote staged file: %w", err)
	}
	defer src.Close()
	dst, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("failed to promote staged file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("failed to promote staged file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("failed to promote staged file: %w", err)
	}
	_ = os.Remove(stagedPath)
	return target, nil
}

func (d *delivery) SaveHTTPRequest(filename string, req *http.Request) (string, error) {
	if req == nil {
		return "", fmt.Errorf("nil request")
	}
	req = req.WithContext(d.Context())
	client := http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("download failed: %s", resp.Status)
	}
	if resp.ContentLength > 0 {
		d.AddExpectedBytes(resp.ContentLength)
	}
	return d.SaveStream(filename, resp.Body)
}

func (d *delivery) SaveStream(filename string, stream io.Reader) (string, error) {
	f, err := d.CreateFile(filename)
	if err != nil {
		return "", fmt.Errorf("failed to open target file: %w", err)
	}
	defer f.Close()

	// Wrapping the stream makes io.Copy return early when the context ends.
	_, err = io.Copy(io.MultiWriter(f, d), &readerContext{ctx: d.ctx, r: stream})
	if err != nil {
		return "", fmt.Errorf("failed to save stream: %w", err)
	}
	return d.Path(filename), nil
}

func (d *delivery) SaveURL(filename string, url string) (string, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	return d.SaveHTTPRequest(filename, req)
}

func (d *delivery) StageDir() (string, error) {
	if d.stageDir != "" {
		return d.stageDir, nil
	}
	if err := os.MkdirAll(d.cacheDir, 0o775); err != nil {
		return "", err
	}
	// Staged files live under the cache dir so Promote is a same-filesystem rename; the dot
	// prefix keeps the directory out of retention scans.
	stageDir, err := os.MkdirTemp(d.cacheDir, ".stage-*")
	if err != nil {
		return "", fmt.Errorf("failed to create staging dir: %w", err)
	}
	d.stageDir = stageDir
	return d.stageDir, nil
}

func (d *delivery) Write(p []byte) (n int, err error) {
	n = len(p)
	d.AddDownloadedBytes(int64(n))
	return n, nil
}

// A context-aware io.Reader wrapper.
type readerContext struct {
	ctx context.Context
	r   io.Reader
}

func (r *readerContext) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

type DeliveryBuilder interface {
	Build() (Delivery, error)
	WithCacheDir(dir string) DeliveryBuilder
	WithContext(ctx context.Context) DeliveryBuilder
	WithProgressCallback(f func(downloaded int64, expected int64)) DeliveryBuilder
}

type deliveryBuilder struct {
	ctx              context.Context
	progressCallback func(int64, int64)
	cacheDir         string
}

func NewDeliveryBuilder() DeliveryBuilder {
	return &deliveryBuilder{
		ctx:      context.Background(),
		cacheDir: ".",
	}
}

func (b *deliveryBuilder) Build() (Delivery, error) {
	d := delivery{
		ctx:              b.ctx,
		progressCallback: b.progressCallback,
		cacheDir:         b.cacheDir,
	}
	return &d, nil
}

func (b *deliveryBuilder) WithCacheDir(dir string) DeliveryBuilder {
	b.cacheDir = dir
	return b
}

func (b *deliveryBuilder) WithContext(ctx context.Context) DeliveryBuilder {
	b.ctx = ctx
	return b
}

func (b *deliveryBuilder) WithProgressCallback(f func(int64, int64)) DeliveryBuilder {
	b.progressCallback = f
	return b
}
