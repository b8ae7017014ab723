package video_relay

import (
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestJobLifecycle(t *testing.T) {
	assert := assert_.New(t)

	j := NewJob("https://youtu.be/abc123", "chat-1")
	assert.NotEmpty(j.ID)
	assert.Equal(JobStateQueued, j.State())
	assert.False(j.State().IsTerminal())

	assert.NoError(j.Advance(JobStateFetching))
	assert.NoError(j.Advance(JobStateUploading))
	assert.NoError(j.Advance(JobStateCleaningUp))
	assert.NoError(j.Advance(JobStateDone))
	assert.Equal(JobStateDone, j.State())
	assert.True(j.State().IsTerminal())
}

func TestJobNoBackwardTransitions(t *testing.T) {
	assert := assert_.New(t)

	j := NewJob("https://youtu.be/abc123", "")
	assert.NoError(j.Advance(JobStateUploading))
	assert.ErrorIs(j.Advance(JobStateFetching), ErrStateRegression)
	assert.ErrorIs(j.Advance(JobStateUploading), ErrStateRegression)
	assert.Equal(JobStateUploading, j.State())
}

func TestJobTerminalStatesAreFinal(t *testing.T) {
	assert := assert_.New(t)

	j := NewJob("https://youtu.be/abc123", "")
	assert.NoError(j.Fail("source unavailable"))
	assert.Equal(JobStateFailed, j.State())
	assert.Equal("source unavailable", j.FailureReason)
	assert.ErrorIs(j.Advance(JobStateDone), ErrStateRegression)
	assert.ErrorIs(j.Fail("again"), ErrStateRegression)
	assert.Equal("source unavailable", j.FailureReason)

	k := NewJob("https://youtu.be/def456", "")
	assert.NoError(k.Advance(JobStateFetching))
	assert.NoError(k.Advance(JobStateUploading))
	assert.NoError(k.Advance(JobStateCleaningUp))
	assert.NoError(k.Advance(JobStateDone))
	assert.ErrorIs(k.Fail("too late"), ErrStateRegression)
	assert.Empty(k.FailureReason)
}

func TestNewJobIDUnique(t *testing.T) {
	assert := assert_.New(t)

	seen := make(map[JobID]bool)
	for i := 0; i < 1000; i++ {
		id := NewJobID()
		assert.False(seen[id], "duplicate job ID %s", id)
		seen[id] = true
	}
}
