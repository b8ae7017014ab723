// Package streamtape uploads artifacts to Streamtape's hosting API: one GET to obtain a
// one-shot upload endpoint, then a multipart POST of the file.
package streamtape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL  = "https://api.streamtape.com"
	DefaultLinkBase = "https://streamtape.com/v"
)

type Config struct {
	// Login and Key come from the Streamtape account API page.
	Login string
	Key   string
	// BaseURL is the API endpoint, overridable for testing.
	BaseURL string
	// LinkBase is the public watch-link prefix.
	LinkBase string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

type Uploader struct {
	config Config
	client *http.Client
	log    *zap.SugaredLogger
}

func New(config Config) (*Uploader, error) {
	if config.Login == "" || config.Key == "" {
		return nil, errors.New("streamtape: login and key are required")
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.LinkBase == "" {
		config.LinkBase = DefaultLinkBase
	}
	client := config.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Uploader{
		config: config,
		client: client,
		log:    zap.S().Named("streamtape"),
	}, nil
}

func (u *Uploader) Name() string {
	return "Streamtape"
}

// Upload sends the file at path and returns its public watch link.
func (u *Uploader) Upload(ctx context.Context, path string) (string, error) {
	uploadURL, err := u.uploadURL(ctx)
	if err != nil {
		return "", err
	}
	link, err := u.uploadFile(ctx, uploadURL, path)
	if err != nil {
		return "", err
	}
	u.log.Infof("uploaded %s as %s", filepath.Base(path), link)
	return link, nil
}

// uploadURL asks the API for a one-shot upload endpoint.
func (u *Uploader) uploadURL(ctx context.Context) (string, error) {
	query := url.Values{}
	query.Set("login", u.config.Login)
	query.Set("key", u.config.Key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.config.BaseURL+"/file/ul?"+query.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("streamtape: requesting upload URL: %w", err)
	}
	result, err := decodeResponse(resp)
	if err != nil {
		return "", err
	}
	var target struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(result, &target); err != nil || target.URL == "" {
		return "", errors.New("streamtape: no upload URL in response")
	}
	return target.URL, nil
}

// uploadFile streams the file as a multipart POST, returning the public watch link. The API
// reports a url for the uploaded file; when only a file code comes back the link is built
// from LinkBase instead.
func (u *Uploader) uploadFile(ctx context.Context, uploadURL string, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		part, err := form.CreateFormFile("file1", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(form.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, pr)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("streamtape: uploading file: %w", err)
	}
	result, err := decodeResponse(resp)
	if err != nil {
		return "", err
	}
	var file struct {
		URL  string `json:"url"`
		Code string `json:"code"`
	}
	if err := json.Unmarshal(result, &file); err != nil {
		return "", fmt.Errorf("streamtape: decoding upload result: %w", err)
	}
	if file.URL != "" {
		return file.URL, nil
	}
	if file.Code == "" {
		return "", errors.New("streamtape: no file code in response")
	}
	return fmt.Sprintf("%s/%s", u.config.LinkBase, file.Code), nil
}

// apiResponse is the envelope every Streamtape endpoint responds with.
type apiResponse struct {
	Status int             `json:"status"`
	Msg    string          `json:"msg"`
	Result json.RawMessage `json:"result"`
}

func decodeResponse(resp *http.Response) (json.RawMessage, error) {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("streamtape: %s", resp.Status)
	}
	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("streamtape: decoding response: %w", err)
	}
	if envelope.Status != http.StatusOK {
		return nil, fmt.Errorf("streamtape: api status %d: %s", envelope.Status, envelope.Msg)
	}
	return envelope.Result, nil
}
