package all

import (
	"testing"

	assert_ "github.com/stretchr/testify/assert"

	video_relay "github.com/alanbriolat/video-relay"
)

func TestDefaultRegistrations(t *testing.T) {
	assert := assert_.New(t)

	names := video_relay.DefaultFetcherRegistry.List()
	assert.Contains(names, "youtube")
	assert.Contains(names, "direct")
	// ytdlp registers only when the binary is installed, always ahead of the others.
	if assert.NotEmpty(names) {
		assert.Equal("direct", names[len(names)-1], "direct must be the last resort")
	}

	match, err := video_relay.DefaultFetcherRegistry.MatchWith("youtube", "https://youtu.be/dQw4w9WgXcQ")
	assert.NoError(err)
	assert.Equal("https://www.youtube.com/watch?v=dQw4w9WgXcQ", match.Media.Reference())

	match, err = video_relay.DefaultFetcherRegistry.Match("https://cdn.example.com/clips/video.mp4")
	assert.NoError(err)
	assert.Equal("direct", match.FetcherName)

	_, err = video_relay.DefaultFetcherRegistry.Match("ftp://example.com/video.mp4")
	assert.Error(err)
}
