package video_relay

import "fmt"

// PipelineConfig is the behavior of the relay pipeline itself. Collaborator credentials
// (hosting service accounts, chat tokens) belong to the collaborator implementations and are
// supplied once at process start.
type PipelineConfig struct {
	// CacheDir is where fetched artifacts live until upload and cleanup.
	CacheDir string
	// MaxResidentFiles caps how many files remain in CacheDir after a retention pass.
	MaxResidentFiles int
	// OutboxSize is the buffer of the outbound notification channel.
	OutboxSize int
}

var DefaultPipelineConfig = PipelineConfig{
	CacheDir:         "downloads",
	MaxResidentFiles: 10,
	OutboxSize:       64,
}

func (c *PipelineConfig) Validate() error {
	if c.CacheDir == "" {
		return fmt.Errorf("cache dir must not be empty")
	}
	if c.MaxResidentFiles < 1 {
		return fmt.Errorf("max resident files must be positive, got %d", c.MaxResidentFiles)
	}
	if c.OutboxSize < 1 {
		return fmt.Errorf("outbox size must be positive, got %d", c.OutboxSize)
	}
	return nil
}
