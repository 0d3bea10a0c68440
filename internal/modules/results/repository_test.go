package results

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/factorlab/internal/database"
	"github.com/aristath/factorlab/internal/sweep"
)

func testRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "results.db"),
		Profile: database.ProfileResults,
		Name:    "results",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo, err := NewRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, err)
	return repo
}

func testResult() *sweep.Result {
	return &sweep.Result{
		Seed:       42,
		Convention: sweep.ConventionOverall,
		Reducer:    "identity",
		Entries: []sweep.Entry{
			{
				NFactors:     10,
				Lambda:       0.1,
				MeanSharpe:   0.25,
				StdSharpe:    1.0,
				MeanReturn:   0.001,
				StdReturn:    0.004,
				DailyReturns: []float64{0.001, -0.002, 0.004},
				DaysUsed:     3,
			},
			{
				NFactors:    10,
				Lambda:      1.0,
				MeanSharpe:  math.NaN(),
				StdSharpe:   math.NaN(),
				MeanReturn:  math.NaN(),
				StdReturn:   math.NaN(),
				DaysSkipped: 3,
				Undefined:   true,
			},
		},
	}
}

func TestRepository_SaveAndGetRun(t *testing.T) {
	repo := testRepo(t)
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.SaveRun("run-1", created, testResult()))

	detail, err := repo.GetRun("run-1")
	require.NoError(t, err)

	assert.Equal(t, "run-1", detail.Run.ID)
	assert.True(t, created.Equal(detail.Run.CreatedAt))
	assert.Equal(t, int64(42), detail.Run.Seed)
	assert.Equal(t, "identity", detail.Run.Reducer)
	assert.Equal(t, "completed", detail.Run.Status)
	require.Len(t, detail.Entries, 2)

	first := detail.Entries[0]
	assert.Equal(t, 10, first.NFactors)
	assert.Equal(t, 0.1, first.Lambda)
	assert.Equal(t, 0.25, first.MeanSharpe)
	assert.Equal(t, []float64{0.001, -0.002, 0.004}, first.DailyReturns)
	assert.False(t, first.Undefined)

	// Undefined statistics survive the round trip as NaN, not zero.
	second := detail.Entries[1]
	assert.True(t, second.Undefined)
	assert.True(t, math.IsNaN(second.MeanSharpe))
	assert.True(t, math.IsNaN(second.StdReturn))
	assert.Equal(t, 3, second.DaysSkipped)
}

func TestRepository_ListRunsNewestFirst(t *testing.T) {
	repo := testRepo(t)

	older := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveRun("run-old", older, testResult()))
	require.NoError(t, repo.SaveRun("run-new", newer, testResult()))

	runs, err := repo.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "run-new", runs[0].ID)
	assert.Equal(t, "run-old", runs[1].ID)
	assert.Equal(t, 2, runs[0].Entries)
}

func TestRepository_GetRunMissing(t *testing.T) {
	repo := testRepo(t)

	_, err := repo.GetRun("nope")
	require.Error(t, err)
}

func TestRepository_DuplicateRunIDFails(t *testing.T) {
	repo := testRepo(t)
	created := time.Now().UTC()

	require.NoError(t, repo.SaveRun("run-1", created, testResult()))
	require.Error(t, repo.SaveRun("run-1", created, testResult()))
}
