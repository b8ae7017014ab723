// Package all registers every built-in fetcher with the default registry.
package all

import (
	_ "github.com/alanbriolat/video-relay/fetcher/direct"
	_ "github.com/alanbriolat/video-relay/fetcher/youtube"
	_ "github.com/alanbriolat/video-relay/fetcher/ytdlp"
)
