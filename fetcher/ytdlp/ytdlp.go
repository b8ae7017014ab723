package ytdlp

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	video_relay "github.com/alanbriolat/video-relay"
	"github.com/alanbriolat/video-relay/generic"
)

type Config struct {
	// Path is the yt-dlp executable, resolved against PATH when not absolute.
	Path string
	// MaxHeight is the largest vertical resolution to fetch.
	MaxHeight int
	// Retries is how many times yt-dlp retries a failing download internally.
	Retries int
	// Hosts is the set of URL hostnames handed to yt-dlp.
	Hosts generic.Set[string]
}

func NewConfig() Config {
	return Config{
		Path:      "yt-dlp",
		MaxHeight: 1080,
		Retries:   5,
		Hosts: generic.NewSet(
			"youtube.com",
			"www.youtube.com",
			"m.youtube.com",
			"youtu.be",
			"vimeo.com",
			"www.vimeo.com",
		),
	}
}

// New resolves the yt-dlp binary and returns the fetcher. It fails when the binary does not
// exist, so a registry never ends up with a fetcher that cannot run.
func New(c Config) (video_relay.Fetcher, error) {
	resolved, err := exec.LookPath(c.Path)
	if err != nil {
		return video_relay.Fetcher{}, fmt.Errorf("yt-dlp not available: %w", err)
	}
	c.Path = resolved
	return video_relay.Fetcher{Name: "ytdlp", Match: c.match}, nil
}

func (c Config) match(s string) (video_relay.Media, error) {
	parsedURL, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unknown URL scheme %q", parsedURL.Scheme)
	}
	if !c.Hosts.Contains(parsedURL.Hostname()) {
		return nil, fmt.Errorf("hostname %q not handled by yt-dlp", parsedURL.Hostname())
	}
	return &media{url: s, config: c}, nil
}

type media struct {
	url    string
	config Config
}

func (m *media) Reference() string {
	return m.url
}

func (m *media) String() string {
	return m.url
}

// Fetch shells out to yt-dlp with the delivery's staging directory as the output target, then
// promotes the single produced file into the cache. The promoted path is the artifact path;
// nothing is parsed out of yt-dlp's output.
func (m *media) Fetch(d video_relay.Delivery) (string, error) {
	stage, err := d.StageDir()
	if err != nil {
		return "", err
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(d.Context(), m.config.Path, m.config.args(stage, m.url)...)
	cmd.Stderr = &stderr
	video_relay.Logger(d.Context()).Sugar().Debugf("running %s", strings.Join(cmd.Args, " "))
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("yt-dlp failed: %w: %s", err, lastLine(&stderr))
	}
	entries, err := os.ReadDir(stage)
	if err != nil {
		return "", err
	}
	var produced []string
	for _, entry := range entries {
		if !entry.IsDir() {
			produced = append(produced, entry.Name())
		}
	}
	if len(produced) != 1 {
		return "", fmt.Errorf("expected exactly one output file, found %d", len(produced))
	}
	return d.Promote(filepath.Join(stage, produced[0]))
}

func (c Config) args(stage string, url string) []string {
	return []string{
		"--quiet",
		"--no-progress",
		"--no-playlist",
		"--retries", strconv.Itoa(c.Retries),
		"-f", fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best[height<=%d]", c.MaxHeight, c.MaxHeight),
		"--merge-output-format", "mp4",
		"-o", filepath.Join(stage, "%(title)s [%(id)s].%(ext)s"),
		url,
	}
}

func lastLine(buf *bytes.Buffer) string {
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func init() {
	// Best effort: when yt-dlp is installed it takes precedence over the native fetcher.
	if fetcher, err := New(NewConfig()); err == nil {
		video_relay.DefaultFetcherRegistry.MustAdd(fetcher.WithPriority(video_relay.PriorityHighest))
	}
}
