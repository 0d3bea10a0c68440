package scheduler

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopJob struct{ ran chan struct{} }

func (j *noopJob) Name() string { return "noop" }
func (j *noopJob) Run() error {
	select {
	case j.ran <- struct{}{}:
	default:
	}
	return nil
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(zerolog.Nop())

	err := s.AddJob("@hourly", &noopJob{ran: make(chan struct{}, 1)})
	require.NoError(t, err)
}

func TestScheduler_AddJobInvalidSchedule(t *testing.T) {
	s := New(zerolog.Nop())

	err := s.AddJob("not a schedule", &noopJob{ran: make(chan struct{}, 1)})
	assert.Error(t, err)
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(zerolog.Nop())
	require.NoError(t, s.AddJob("@hourly", &noopJob{ran: make(chan struct{}, 1)}))

	s.Start()
	s.Stop()
}
