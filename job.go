package video_relay

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alanbriolat/video-relay/generic"
)

var (
	ErrStateRegression = errors.New("job state cannot move backwards")
)

type JobID string

func NewJobID() JobID {
	return JobID(generic.Unwrap(uuid.NewRandom()).String())
}

type JobState string

const (
	JobStateQueued     JobState = "queued"
	JobStateFetching   JobState = "fetching"
	JobStateUploading  JobState = "uploading"
	JobStateCleaningUp JobState = "cleaning_up"
	JobStateDone       JobState = "done"
	JobStateFailed     JobState = "failed"
)

// stateRank orders states along the job lifecycle. Failed ranks above everything so any
// non-terminal state can fail, while terminal states admit no further transitions.
var stateRank = map[JobState]int{
	JobStateQueued:     0,
	JobStateFetching:   1,
	JobStateUploading:  2,
	JobStateCleaningUp: 3,
	JobStateDone:       4,
	JobStateFailed:     5,
}

var terminalStates = generic.NewSet(JobStateDone, JobStateFailed)

// IsTerminal returns true once a job in this state will never transition again.
func (s JobState) IsTerminal() bool {
	return terminalStates.Contains(s)
}

// Job is one fetch-then-relay unit of work. A Job is owned by at most one goroutine at a
// time: the submitter until it is enqueued, then the queue, then the worker that dequeued it.
// That ownership transfer is what makes the unsynchronized fields safe.
type Job struct {
	ID JobID
	// Reference identifies what to fetch, e.g. a video page URL.
	Reference string
	// Recipient identifies where status notifications go; empty means no notifications.
	Recipient string
	// LocalPath is set exactly once, when the fetch succeeds. On success the artifact is
	// deleted after upload; on upload failure it intentionally remains for manual recovery.
	LocalPath string
	// PublicURL is where the artifact ended up, set when the upload succeeds.
	PublicURL string
	// FailureReason is a human-readable cause, set when the state becomes Failed. The job
	// never retains a live error value.
	FailureReason string
	EnqueuedAt    time.Time

	state JobState
}

func NewJob(reference string, recipient string) *Job {
	return &Job{
		ID:         NewJobID(),
		Reference:  reference,
		Recipient:  recipient,
		EnqueuedAt: time.Now(),
		state:      JobStateQueued,
	}
}

func (j *Job) State() JobState {
	return j.state
}

// Advance moves the job to the next state. Jobs only move forward through the lifecycle;
// attempts to revisit an earlier state or leave a terminal state return ErrStateRegression.
func (j *Job) Advance(next JobState) error {
	if j.state.IsTerminal() || stateRank[next] <= stateRank[j.state] {
		return fmt.Errorf("%w: %s -> %s", ErrStateRegression, j.state, next)
	}
	j.state = next
	return nil
}

// Fail marks the job Failed, recording a human-readable reason.
func (j *Job) Fail(reason string) error {
	if err := j.Advance(JobStateFailed); err != nil {
		return err
	}
	j.FailureReason = reason
	return nil
}

func (j *Job) String() string {
	return fmt.Sprintf("Job{ID:%q, Reference:%q, State:%q}", j.ID, j.Reference, j.state)
}
