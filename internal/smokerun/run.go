package smokerun

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("not found")

// timeLayout has a fixed width, so stored timestamps sort as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
)

// Run is the outcome of one scenario executed against one target.
type Run struct {
	ID       string `dynamodbav:"Id" yaml:"id"`
	Scenario string `dynamodbav:"Scenario" yaml:"scenario"`
	Target   string `dynamodbav:"Target" yaml:"target"`
	Endpoint string `dynamodbav:"Endpoint" yaml:"endpoint"`

	StartedAt time.Time     `dynamodbav:"CreatedAt" yaml:"started_at"`
	Elapsed   time.Duration `dynamodbav:"ElapsedNs" yaml:"elapsed"`

	Status  Status `dynamodbav:"Status" yaml:"status"`
	Failure string `dynamodbav:"Failure,omitempty" yaml:"failure,omitempty"`
}

func New(scenario string, target string, endpoint string) *Run {
	return &Run{
		ID:       uuid.New().String(),
		Scenario: scenario,
		Target:   target,
		Endpoint: endpoint,
	}
}

// Finish records how the run ended. A nil err means the scenario passed.
func (r *Run) Finish(startedAt time.Time, elapsed time.Duration, err error) {
	r.StartedAt = startedAt.UTC()
	r.Elapsed = elapsed
	r.Status = StatusPassed
	r.Failure = ""

	if err != nil {
		r.Status = StatusFailed
		r.Failure = err.Error()
	}
}

func (r *Run) Passed() bool {
	return r.Status == StatusPassed
}

type Repository interface {
	Create(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)

	// List returns runs started within [after, before] ordered by start time.
	List(ctx context.Context, after time.Time, before time.Time) ([]*Run, error)
}
