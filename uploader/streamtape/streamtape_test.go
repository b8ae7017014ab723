package streamtape

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func writeArtifact(t *testing.T, name string, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func respondJSON(w http.ResponseWriter, status int, result interface{}) {
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"msg":    http.StatusText(status),
		"result": result,
	})
}

func TestUpload(t *testing.T) {
	assert := assert_.New(t)

	var uploadedName, uploadedBody string
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/file/ul", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("my-login", r.URL.Query().Get("login"))
		assert.Equal("my-key", r.URL.Query().Get("key"))
		respondJSON(w, 200, map[string]string{"url": server.URL + "/upload/one-shot"})
	})
	mux.HandleFunc("/upload/one-shot", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file1")
		if !assert.NoError(err) {
			respondJSON(w, 400, nil)
			return
		}
		defer file.Close()
		body, _ := io.ReadAll(file)
		uploadedName, uploadedBody = header.Filename, string(body)
		respondJSON(w, 200, map[string]string{"code": "AbC123"})
	})

	uploader, err := New(Config{Login: "my-login", Key: "my-key", BaseURL: server.URL})
	assert.NoError(err)
	assert.Equal("Streamtape", uploader.Name())

	link, err := uploader.Upload(context.Background(), writeArtifact(t, "clip.mp4", "video bytes"))
	assert.NoError(err)
	assert.Equal("https://streamtape.com/v/AbC123", link)
	assert.Equal("clip.mp4", uploadedName)
	assert.Equal("video bytes", uploadedBody)
}

func TestUploadPrefersReportedLink(t *testing.T) {
	assert := assert_.New(t)
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()
	mux.HandleFunc("/file/ul", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, 200, map[string]string{"url": server.URL + "/upload"})
	})
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, 200, map[string]string{
			"code": "AbC123",
			"url":  "https://streamtape.com/v/AbC123/clip.mp4",
		})
	})

	uploader, err := New(Config{Login: "login", Key: "key", BaseURL: server.URL})
	assert.NoError(err)
	link, err := uploader.Upload(context.Background(), writeArtifact(t, "clip.mp4", "x"))
	assert.NoError(err)
	assert.Equal("https://streamtape.com/v/AbC123/clip.mp4", link)
}

func TestUploadAPIError(t *testing.T) {
	assert := assert_.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": 403, "msg": "wrong key"})
	}))
	defer server.Close()

	uploader, err := New(Config{Login: "login", Key: "bad", BaseURL: server.URL})
	assert.NoError(err)
	_, err = uploader.Upload(context.Background(), writeArtifact(t, "clip.mp4", "x"))
	assert.ErrorContains(err, "wrong key")
}

func TestUploadServerError(t *testing.T) {
	assert := assert_.New(t)
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()
	mux.HandleFunc("/file/ul", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, 200, map[string]string{"url": server.URL + "/upload"})
	})
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	})

	uploader, err := New(Config{Login: "login", Key: "key", BaseURL: server.URL})
	assert.NoError(err)
	_, err = uploader.Upload(context.Background(), writeArtifact(t, "clip.mp4", "x"))
	assert.Error(err)
}

func TestUploadMissingCode(t *testing.T) {
	assert := assert_.New(t)
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()
	mux.HandleFunc("/file/ul", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, 200, map[string]string{"url": server.URL + "/upload"})
	})
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, 200, map[string]string{})
	})

	uploader, err := New(Config{Login: "login", Key: "key", BaseURL: server.URL})
	assert.NoError(err)
	_, err = uploader.Upload(context.Background(), writeArtifact(t, "clip.mp4", "x"))
	assert.ErrorContains(err, "no file code")
}

func TestUploadMissingFile(t *testing.T) {
	assert := assert_.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, 200, map[string]string{"url": "http://unused.example"})
	}))
	defer server.Close()

	uploader, err := New(Config{Login: "login", Key: "key", BaseURL: server.URL})
	assert.NoError(err)
	_, err = uploader.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	assert.Error(err)
}

func TestNewRequiresCredentials(t *testing.T) {
	assert := assert_.New(t)
	for name, config := range map[string]Config{
		"no login": {Key: "key"},
		"no key":   {Login: "login"},
		"empty":    {},
	} {
		_, err := New(config)
		assert.Error(err, name)
	}
}
