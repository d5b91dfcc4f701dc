package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostscout/api/pkg/domain/shared"
	"github.com/hostscout/api/pkg/domain/source"
)

func testSources(n int) []*source.Source {
	out := make([]*source.Source, n)
	for i := range out {
		out[i] = &source.Source{ID: shared.NewID()}
	}
	return out
}

func TestScanJob_Queue(t *testing.T) {
	t.Run("connect job gets one task per source", func(t *testing.T) {
		sources := testSources(2)
		job, err := NewJob(TypeConnect, []shared.ID{sources[0].ID, sources[1].ID}, Options{})
		require.NoError(t, err)
		require.Equal(t, StatusCreated, job.Status)

		require.NoError(t, job.Queue(sources))
		assert.Equal(t, StatusPending, job.Status)
		require.Len(t, job.Tasks, 2)
		for i, task := range job.Tasks {
			assert.Equal(t, TypeConnect, task.ScanType)
			assert.Equal(t, StatusPending, task.Status)
			assert.Equal(t, i, task.SequenceNumber)
			assert.Empty(t, task.PrerequisiteIDs)
		}
	})

	t.Run("inspect job chains inspect after connect per source", func(t *testing.T) {
		sources := testSources(2)
		job, err := NewJob(TypeInspect, []shared.ID{sources[0].ID, sources[1].ID}, Options{})
		require.NoError(t, err)

		require.NoError(t, job.Queue(sources))
		require.Len(t, job.Tasks, 4)

		connects := job.Tasks[:2]
		inspects := job.Tasks[2:]
		for i, task := range inspects {
			assert.Equal(t, TypeInspect, task.ScanType)
			require.Len(t, task.PrerequisiteIDs, 1)
			assert.True(t, task.PrerequisiteIDs[0].Equals(connects[i].ID),
				"inspect task must wait for its own source's connect task")
		}
	})

	t.Run("fingerprint job gets a single sourceless task", func(t *testing.T) {
		job, err := NewJob(TypeFingerprint, nil, Options{})
		require.NoError(t, err)

		require.NoError(t, job.Queue(nil))
		require.Len(t, job.Tasks, 1)
		assert.Equal(t, TypeFingerprint, job.Tasks[0].ScanType)
		assert.Nil(t, job.Tasks[0].SourceID)
	})

	t.Run("queue twice is a no-op error", func(t *testing.T) {
		sources := testSources(1)
		job, err := NewJob(TypeConnect, []shared.ID{sources[0].ID}, Options{})
		require.NoError(t, err)
		require.NoError(t, job.Queue(sources))

		err = job.Queue(sources)
		assert.True(t, IsNoOpTransition(err))
		assert.Equal(t, StatusPending, job.Status)
	})

	t.Run("rejects non-fingerprint job without sources", func(t *testing.T) {
		_, err := NewJob(TypeInspect, nil, Options{})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestScanJob_RunnableTasks(t *testing.T) {
	sources := testSources(2)
	job, err := NewJob(TypeInspect, []shared.ID{sources[0].ID, sources[1].ID}, Options{})
	require.NoError(t, err)
	require.NoError(t, job.Queue(sources))

	// Only the connect tasks run before anything completed.
	runnable := job.RunnableTasks()
	require.Len(t, runnable, 2)
	for _, task := range runnable {
		assert.Equal(t, TypeConnect, task.ScanType)
	}

	// Completing one connect task unlocks exactly its inspect task.
	connect := job.Tasks[0]
	require.NoError(t, connect.Start())
	require.NoError(t, connect.Complete("done"))

	runnable = job.RunnableTasks()
	require.Len(t, runnable, 2)
	assert.Equal(t, TypeConnect, runnable[0].ScanType)
	assert.Equal(t, TypeInspect, runnable[1].ScanType)
	assert.True(t, runnable[1].PrerequisiteIDs[0].Equals(connect.ID))
}

func TestScanJob_AddFingerprintTask(t *testing.T) {
	sources := testSources(2)
	job, err := NewJob(TypeInspect, []shared.ID{sources[0].ID, sources[1].ID}, Options{})
	require.NoError(t, err)
	require.NoError(t, job.Queue(sources))

	task := job.AddFingerprintTask()
	assert.Equal(t, TypeFingerprint, task.ScanType)
	assert.Equal(t, 4, task.SequenceNumber)
	assert.Len(t, task.PrerequisiteIDs, 2, "every inspect task gates the fingerprint task")
	assert.Len(t, job.Tasks, 5)
}

func TestScanJob_Transitions(t *testing.T) {
	newRunning := func(t *testing.T) *ScanJob {
		t.Helper()
		sources := testSources(1)
		job, err := NewJob(TypeInspect, []shared.ID{sources[0].ID}, Options{})
		require.NoError(t, err)
		require.NoError(t, job.Queue(sources))
		require.NoError(t, job.Start())
		return job
	}

	t.Run("pause cascades to non-terminal tasks", func(t *testing.T) {
		job := newRunning(t)
		require.NoError(t, job.Tasks[0].Start())
		require.NoError(t, job.Tasks[0].Complete("done"))

		require.NoError(t, job.Pause())
		assert.Equal(t, StatusPaused, job.Status)
		assert.Equal(t, StatusCompleted, job.Tasks[0].Status, "terminal tasks stay put")
		assert.Equal(t, StatusPaused, job.Tasks[1].Status)
	})

	t.Run("pause when already paused is a no-op", func(t *testing.T) {
		job := newRunning(t)
		require.NoError(t, job.Pause())

		err := job.Pause()
		assert.True(t, IsNoOpTransition(err))
		assert.Equal(t, StatusPaused, job.Status)
	})

	t.Run("restart moves paused tasks back to pending", func(t *testing.T) {
		job := newRunning(t)
		require.NoError(t, job.Pause())

		require.NoError(t, job.Restart())
		assert.Equal(t, StatusRunning, job.Status)
		for _, task := range job.Tasks {
			assert.Equal(t, StatusPending, task.Status)
		}
	})

	t.Run("cancel stamps end time and cascades", func(t *testing.T) {
		job := newRunning(t)
		require.NoError(t, job.Cancel())
		assert.Equal(t, StatusCanceled, job.Status)
		require.NotNil(t, job.EndTime)
		for _, task := range job.Tasks {
			assert.Equal(t, StatusCanceled, task.Status)
		}
	})

	t.Run("pause after cancel is invalid and leaves state alone", func(t *testing.T) {
		job := newRunning(t)
		require.NoError(t, job.Cancel())

		err := job.Pause()
		assert.True(t, IsInvalidTransition(err))
		assert.Equal(t, StatusCanceled, job.Status)
	})

	t.Run("fail records the message", func(t *testing.T) {
		job := newRunning(t)
		require.NoError(t, job.Fail("ssh unreachable"))
		assert.Equal(t, StatusFailed, job.Status)
		assert.Equal(t, "ssh unreachable", job.StatusMessage)
		assert.NotNil(t, job.EndTime)
	})
}

func TestScanJob_CalculateStats(t *testing.T) {
	sources := testSources(2)
	job, err := NewJob(TypeInspect, []shared.ID{sources[0].ID, sources[1].ID}, Options{})
	require.NoError(t, err)
	require.NoError(t, job.Queue(sources))

	stats := job.CalculateStats()
	assert.Nil(t, stats.SystemsCount, "stats stay nil until the job starts")

	require.NoError(t, job.Start())

	// Connect tasks provide the denominator, inspect tasks the numerator.
	job.Tasks[0].SetCounts(10, 10, 0, 0)
	job.Tasks[1].SetCounts(5, 4, 0, 1)
	job.Tasks[2].SetCounts(10, 8, 2, 0)
	job.Tasks[3].SetCounts(4, 4, 0, 0)

	stats = job.CalculateStats()
	require.NotNil(t, stats.SystemsCount)
	assert.Equal(t, 15, *stats.SystemsCount)
	assert.Equal(t, 12, *stats.SystemsScanned)
	assert.Equal(t, 2, *stats.SystemsFailed)
	assert.Equal(t, 1, *stats.SystemsUnreachable)
}
