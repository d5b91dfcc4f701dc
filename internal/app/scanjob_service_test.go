package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostscout/api/pkg/domain/credential"
	"github.com/hostscout/api/pkg/domain/scan"
	"github.com/hostscout/api/pkg/domain/shared"
	"github.com/hostscout/api/pkg/domain/source"
)

type scanJobFixture struct {
	svc      *ScanJobService
	scanRepo *fakeScanRepo
	srcRepo  *fakeSourceRepo
	enqueuer *fakeEnqueuer
	signals  *fakeSignals
	sourceID shared.ID
}

func newScanJobFixture(t *testing.T) *scanJobFixture {
	t.Helper()
	scanRepo := newFakeScanRepo()
	srcRepo := newFakeSourceRepo()
	enqueuer := &fakeEnqueuer{}
	signals := &fakeSignals{}

	cred, err := credential.NewNetwork("ssh", "root", credential.NetworkAuth{Password: "pw"})
	require.NoError(t, err)
	src, err := source.New("lab", source.TypeNetwork, []string{"10.0.0.[1:10]"}, []shared.ID{cred.ID})
	require.NoError(t, err)
	require.NoError(t, srcRepo.Create(context.Background(), src))

	return &scanJobFixture{
		svc:      NewScanJobService(scanRepo, srcRepo, enqueuer, signals, testLogger()),
		scanRepo: scanRepo,
		srcRepo:  srcRepo,
		enqueuer: enqueuer,
		signals:  signals,
		sourceID: src.ID,
	}
}

func TestScanJobService_Start(t *testing.T) {
	ctx := context.Background()

	t.Run("inspect job queues connect and inspect tasks", func(t *testing.T) {
		f := newScanJobFixture(t)

		job, err := f.svc.Start(ctx, StartScanInput{
			ScanType: "inspect",
			Sources:  []string{f.sourceID.String()},
		})
		require.NoError(t, err)

		assert.Equal(t, scan.StatusPending, job.Status)
		require.Len(t, job.Tasks, 2)
		assert.Equal(t, scan.TypeConnect, job.Tasks[0].ScanType)
		assert.Equal(t, scan.TypeInspect, job.Tasks[1].ScanType)
		require.Len(t, job.Tasks[1].PrerequisiteIDs, 1)
		assert.True(t, job.Tasks[1].PrerequisiteIDs[0].Equals(job.Tasks[0].ID))

		require.Len(t, f.enqueuer.enqueued, 1)
		assert.True(t, f.enqueuer.enqueued[0].Equals(job.ID))
	})

	t.Run("connect job records itself on the source", func(t *testing.T) {
		f := newScanJobFixture(t)

		job, err := f.svc.Start(ctx, StartScanInput{
			ScanType: "connect",
			Sources:  []string{f.sourceID.String()},
		})
		require.NoError(t, err)

		src, err := f.srcRepo.GetByID(ctx, f.sourceID)
		require.NoError(t, err)
		require.NotNil(t, src.MostRecentConnectScanID)
		assert.True(t, src.MostRecentConnectScanID.Equals(job.ID))
	})

	t.Run("unknown source", func(t *testing.T) {
		f := newScanJobFixture(t)

		_, err := f.svc.Start(ctx, StartScanInput{
			ScanType: "connect",
			Sources:  []string{shared.NewID().String()},
		})
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
		assert.Empty(t, f.enqueuer.enqueued)
	})

	t.Run("unknown scan type", func(t *testing.T) {
		f := newScanJobFixture(t)

		_, err := f.svc.Start(ctx, StartScanInput{
			ScanType: "probe",
			Sources:  []string{f.sourceID.String()},
		})
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	})
}

func TestScanJobService_PauseCancelRestart(t *testing.T) {
	ctx := context.Background()

	start := func(t *testing.T, f *scanJobFixture) *scan.ScanJob {
		job, err := f.svc.Start(ctx, StartScanInput{
			ScanType: "inspect",
			Sources:  []string{f.sourceID.String()},
		})
		require.NoError(t, err)
		return job
	}

	t.Run("pause publishes the signal after persisting", func(t *testing.T) {
		f := newScanJobFixture(t)
		job := start(t, f)

		paused, err := f.svc.Pause(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, scan.StatusPaused, paused.Status)
		for _, task := range paused.Tasks {
			assert.Equal(t, scan.StatusPaused, task.Status)
		}
		require.Len(t, f.signals.paused, 1)
		assert.True(t, f.signals.paused[0].Equals(job.ID))
	})

	t.Run("pausing a paused job is a quiet no-op", func(t *testing.T) {
		f := newScanJobFixture(t)
		job := start(t, f)

		_, err := f.svc.Pause(ctx, job.ID)
		require.NoError(t, err)
		again, err := f.svc.Pause(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, scan.StatusPaused, again.Status)

		// Only the first pause reached the signal channel.
		assert.Len(t, f.signals.paused, 1)
	})

	t.Run("cancel from paused", func(t *testing.T) {
		f := newScanJobFixture(t)
		job := start(t, f)

		_, err := f.svc.Pause(ctx, job.ID)
		require.NoError(t, err)
		canceled, err := f.svc.Cancel(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, scan.StatusCanceled, canceled.Status)
		assert.NotNil(t, canceled.EndTime)
		require.Len(t, f.signals.canceled, 1)
	})

	t.Run("pausing a canceled job is an invalid transition", func(t *testing.T) {
		f := newScanJobFixture(t)
		job := start(t, f)

		_, err := f.svc.Cancel(ctx, job.ID)
		require.NoError(t, err)
		_, err = f.svc.Pause(ctx, job.ID)
		require.Error(t, err)
		assert.True(t, scan.IsInvalidTransition(err))
	})

	t.Run("restart re-enqueues a paused job", func(t *testing.T) {
		f := newScanJobFixture(t)
		job := start(t, f)

		_, err := f.svc.Pause(ctx, job.ID)
		require.NoError(t, err)
		restarted, err := f.svc.Restart(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, scan.StatusRunning, restarted.Status)
		for _, task := range restarted.Tasks {
			assert.Equal(t, scan.StatusPending, task.Status)
		}
		// First enqueue from Start, second from Restart.
		assert.Len(t, f.enqueuer.enqueued, 2)
	})
}

func TestScanJobService_Delete(t *testing.T) {
	ctx := context.Background()
	f := newScanJobFixture(t)

	job, err := f.svc.Start(ctx, StartScanInput{
		ScanType: "connect",
		Sources:  []string{f.sourceID.String()},
	})
	require.NoError(t, err)

	t.Run("refused while the job can still run", func(t *testing.T) {
		err := f.svc.Delete(ctx, job.ID)
		require.Error(t, err)
		assert.True(t, shared.IsConflict(err))
	})

	t.Run("allowed once settled", func(t *testing.T) {
		_, err := f.svc.Cancel(ctx, job.ID)
		require.NoError(t, err)
		require.NoError(t, f.svc.Delete(ctx, job.ID))
		_, err = f.svc.Get(ctx, job.ID)
		assert.True(t, shared.IsNotFound(err))
	})
}
