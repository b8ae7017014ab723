package video_relay

// Media is a single fetchable video, resolved from a source reference by a Fetcher.
type Media interface {
	// Reference should return the canonical reference for this media. It is assumed that the
	// Fetcher.Match that created the Media would successfully match this canonical reference.
	Reference() string
	// Fetch should download the media via the Delivery, returning the path of the finished
	// local artifact. The path is part of the contract: callers never reconstruct it from
	// directory listings or tool output.
	Fetch(d Delivery) (string, error)
}
