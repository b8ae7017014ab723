package direct

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	assert_ "github.com/stretchr/testify/assert"

	video_relay "github.com/alanbriolat/video-relay"
)

func TestMatch(t *testing.T) {
	assert := assert_.New(t)
	cfg := NewConfig()

	accepted := map[string]string{
		"https://media.example/videos/clip.mp4":    "clip.mp4",
		"http://media.example/clip.webm?token=x":   "clip.webm",
		"https://media.example/My%20Video.MP4":     "My Video.MP4",
		"https://media.example/deep/path/file.mkv": "file.mkv",
	}
	for reference, filename := range accepted {
		m, err := cfg.Match(reference)
		assert.NoError(err, reference)
		assert.Equal(reference, m.Reference(), reference)
		assert.Equal(filename, m.(*media).filename, reference)
	}

	rejected := []string{
		"ftp://media.example/clip.mp4",
		"https://media.example/clip.txt",
		"https://media.example/noextension",
		"https://media.example/",
	}
	for _, reference := range rejected {
		_, err := cfg.Match(reference)
		assert.Error(err, reference)
	}
}

func TestFetch(t *testing.T) {
	assert := assert_.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/clip.mp4" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("direct video bytes"))
	}))
	defer server.Close()

	cache := t.TempDir()
	d, err := video_relay.NewDeliveryBuilder().WithCacheDir(cache).Build()
	assert.NoError(err)
	defer d.Close()

	m, err := NewConfig().Match(server.URL + "/clip.mp4")
	assert.NoError(err)
	path, err := m.Fetch(d)
	assert.NoError(err)
	assert.Equal(filepath.Join(cache, "clip.mp4"), path)
	data, err := os.ReadFile(path)
	assert.NoError(err)
	assert.Equal("direct video bytes", string(data))
}

func TestFetchHTTPError(t *testing.T) {
	assert := assert_.New(t)
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	d, err := video_relay.NewDeliveryBuilder().WithCacheDir(t.TempDir()).Build()
	assert.NoError(err)
	defer d.Close()

	m, err := NewConfig().Match(server.URL + "/missing.mp4")
	assert.NoError(err)
	_, err = m.Fetch(d)
	assert.Error(err)
}
