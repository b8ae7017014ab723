package direct

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	video_relay "github.com/alanbriolat/video-relay"
	"github.com/alanbriolat/video-relay/generic"
	"github.com/alanbriolat/video-relay/util"
)

type Config struct {
	Schemes    generic.Set[string]
	Extensions generic.Set[string]
}

func NewConfig() Config {
	return Config{
		Schemes: generic.NewSet(
			"http",
			"https",
		),
		Extensions: generic.NewSet(
			"flv",
			"m4v",
			"mkv",
			"mov",
			"mp4",
			"webm",
		),
	}
}

func (c Config) Match(s string) (video_relay.Media, error) {
	parsedURL, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	if !c.Schemes.Contains(parsedURL.Scheme) {
		return nil, fmt.Errorf("unknown URL scheme %q", parsedURL.Scheme)
	}
	filename, err := util.FilenameFromURL(parsedURL)
	if err != nil {
		return nil, err
	}
	extension := strings.TrimPrefix(path.Ext(filename), ".")
	if extension == "" {
		return nil, fmt.Errorf("no file extension found")
	}
	if !c.Extensions.Contains(strings.ToLower(extension)) {
		return nil, fmt.Errorf("unknown file extension %q", extension)
	}
	filename, err = util.SanitizeFilename(filename)
	if err != nil {
		return nil, err
	}
	return &media{url: s, filename: filename}, nil
}

func (c Config) Fetcher() video_relay.Fetcher {
	return video_relay.Fetcher{Name: "direct", Match: c.Match}
}

type media struct {
	url      string
	filename string
}

func (m *media) Reference() string {
	return m.url
}

func (m *media) String() string {
	return m.url
}

func (m *media) Fetch(d video_relay.Delivery) (string, error) {
	return d.SaveURL(m.filename, m.url)
}

func init() {
	video_relay.DefaultFetcherRegistry.MustAdd(
		NewConfig().Fetcher().WithPriority(video_relay.PriorityLowest),
	)
}
