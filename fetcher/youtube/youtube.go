package youtube

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/kkdai/youtube/v2"

	video_relay "github.com/alanbriolat/video-relay"
	"github.com/alanbriolat/video-relay/util"
)

type Config struct {
	// MaxHeight is the largest vertical resolution to fetch; 0 means unlimited.
	MaxHeight int
}

func NewConfig() Config {
	return Config{
		MaxHeight: 1080,
	}
}

func (c Config) Match(s string) (video_relay.Media, error) {
	parsedURL, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	videoID, err := extractVideoID(parsedURL)
	if err != nil {
		return nil, err
	}
	return &media{videoID: videoID, maxHeight: c.MaxHeight}, nil
}

func (c Config) Fetcher() video_relay.Fetcher {
	return video_relay.Fetcher{Name: "youtube", Match: c.Match}
}

type media struct {
	videoID   string
	maxHeight int
}

func (m *media) Reference() string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", m.videoID)
}

func (m *media) String() string {
	return m.Reference()
}

func (m *media) Fetch(d video_relay.Delivery) (string, error) {
	client := youtube.Client{}
	video, err := client.GetVideoContext(d.Context(), m.Reference())
	if err != nil {
		return "", fmt.Errorf("failed to get video info: %w", err)
	}
	format, err := pickFormat(video.Formats.WithAudioChannels(), m.maxHeight)
	if err != nil {
		return "", err
	}
	stream, size, err := client.GetStreamContext(d.Context(), video, format)
	if err != nil {
		return "", fmt.Errorf("failed to get stream: %w", err)
	}
	defer stream.Close()
	d.AddExpectedBytes(size)
	return d.SaveStream(buildFilename(video, format), stream)
}

// pickFormat chooses the largest progressive format that fits maxHeight, preferring mp4 on
// equal heights.
func pickFormat(formats youtube.FormatList, maxHeight int) (*youtube.Format, error) {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if maxHeight > 0 && f.Height > maxHeight {
			continue
		}
		if best == nil || f.Height > best.Height || (f.Height == best.Height && isMP4(f) && !isMP4(best)) {
			best = f
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no playable format within %dp", maxHeight)
	}
	return best, nil
}

func isMP4(f *youtube.Format) bool {
	return strings.HasPrefix(f.MimeType, "video/mp4")
}

func buildFilename(video *youtube.Video, format *youtube.Format) string {
	name, err := util.SanitizeFilename(fmt.Sprintf("%s [%s]", video.Title, video.ID))
	if err != nil {
		name = video.ID
	}
	mimeType := strings.SplitN(format.MimeType, ";", 2)[0]
	ext := strings.SplitN(mimeType, "/", 2)[1]
	return name + "." + ext
}

// Extract video ID from a YouTube URL.
//
// Allowed URL formats:
//
//	http(s?)://(www.|m.)?youtube.com/(watch|details)?v={VIDEO_ID}
//	http(s?)://(www.|m.)?youtube.com/(v|shorts|embed)/{VIDEO_ID}
//	http(s?)://youtu.be/{VIDEO_ID}
func extractVideoID(url *url.URL) (string, error) {
	var id string
	switch url.Hostname() {
	case "youtube.com", "www.youtube.com", "m.youtube.com":
		if rest, ok := pathSuffix(url.Path, "/v/", "/shorts/", "/embed/"); ok {
			id = rest
		} else if url.Path == "/watch" || url.Path == "/details" {
			if url.Query().Has("v") {
				id = url.Query().Get("v")
			} else {
				return "", fmt.Errorf("missing ?v= query parameter")
			}
		}
	case "youtu.be":
		id = strings.Trim(url.Path, "/")
	default:
		return "", fmt.Errorf("unrecognised hostname")
	}
	id = strings.SplitN(id, "/", 2)[0]
	if id == "" {
		return "", fmt.Errorf("could not extract video ID")
	}
	return id, nil
}

func pathSuffix(path string, prefixes ...string) (string, bool) {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return strings.TrimPrefix(path, prefix), true
		}
	}
	return "", false
}

func init() {
	video_relay.DefaultFetcherRegistry.MustAdd(NewConfig().Fetcher())
}
