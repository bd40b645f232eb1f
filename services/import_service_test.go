package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/yousufaayman/barcode-manage-cpc-sub000/common/errors"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/models"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/repository"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/services"
	"go.uber.org/zap"
)

type importFixture struct {
	svc      *services.ImportService
	checker  *mockChecker
	sessions *repository.MemorySessionRepository
	archive  *repository.DiskArchive
	jobs     *mockJobStore
}

func newImportFixture(t *testing.T, withJobs bool) *importFixture {
	t.Helper()
	archive, err := repository.NewDiskArchive(t.TempDir())
	require.NoError(t, err)

	f := &importFixture{
		checker:  &mockChecker{},
		sessions: repository.NewMemorySessionRepository(),
		archive:  archive,
	}
	var jobs services.JobStore
	if withJobs {
		f.jobs = newMockJobStore()
		jobs = f.jobs
	}
	pipeline := newPipeline(f.checker, services.PipelineConfig{})
	f.svc = services.NewImportService(pipeline, f.sessions, archive, jobs, services.NewSessionLocks(), 0, zap.NewNop())
	return f
}

func TestImport_Success(t *testing.T) {
	f := newImportFixture(t, false)
	ctx := context.Background()

	batch, err := f.svc.Import(ctx, csvSheet(",Nike,AM90,42,Red,10,2,1"), "batches.csv", "text/csv")

	require.NoError(t, err)
	assert.NotEmpty(t, batch.ID)
	assert.Equal(t, "batches.csv", batch.FileName)
	assert.Equal(t, 1, batch.Counts.Success)

	stored, err := f.svc.Get(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, batch.Counts, stored.Counts)

	upload, err := f.archive.Get(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, "batches.csv", upload.FileName)
}

func TestImport_CheckFailureKeepsUploadForRecheck(t *testing.T) {
	f := newImportFixture(t, false)
	ctx := context.Background()
	f.checker.checkFn = func([]models.CandidateRow) (*models.CheckResponse, error) {
		return nil, errors.New("connection refused")
	}

	_, err := f.svc.Import(ctx, csvSheet(",Nike,AM90,42,Red,10,2,1"), "batches.csv", "")

	var pending *services.PendingImportError
	require.ErrorAs(t, err, &pending)
	assert.NotEmpty(t, pending.ImportID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNetworkFailure))

	_, err = f.svc.Get(ctx, pending.ImportID)
	assert.ErrorIs(t, err, services.ErrImportNotFound)

	f.checker.checkFn = nil
	batch, err := f.svc.Recheck(ctx, pending.ImportID)

	require.NoError(t, err)
	assert.Equal(t, pending.ImportID, batch.ID)
	assert.Equal(t, "batches.csv", batch.FileName)
	assert.Equal(t, 1, batch.Counts.Success)
}

func TestImport_FileStructureErrorDropsUpload(t *testing.T) {
	f := newImportFixture(t, false)

	_, err := f.svc.Import(context.Background(), []byte("brand\nNike\n"), "batches.csv", "")

	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindFileStructure))
	var pending *services.PendingImportError
	assert.False(t, errors.As(err, &pending))
}

func TestRecheck_RejectedAfterSubmit(t *testing.T) {
	f := newImportFixture(t, false)
	ctx := context.Background()

	batch, err := f.svc.Import(ctx, csvSheet(",Nike,AM90,42,Red,10,2,1"), "batches.csv", "")
	require.NoError(t, err)

	submitted := batch.Clone()
	submitted.State = models.StateSubmitted
	require.NoError(t, f.sessions.Save(ctx, submitted))

	_, err = f.svc.Recheck(ctx, batch.ID)

	assert.ErrorIs(t, err, services.ErrRecheckRejected)
}

func TestRecheck_UnknownImport(t *testing.T) {
	f := newImportFixture(t, false)

	_, err := f.svc.Recheck(context.Background(), "3b8f0a62-7a0e-4e0b-9a57-2f1f1b1b1b1b")

	assert.ErrorIs(t, err, services.ErrImportNotFound)
}

func TestDiscard(t *testing.T) {
	f := newImportFixture(t, false)
	ctx := context.Background()

	batch, err := f.svc.Import(ctx, csvSheet(",Nike,AM90,42,Red,10,2,1"), "batches.csv", "")
	require.NoError(t, err)

	require.NoError(t, f.svc.Discard(ctx, batch.ID))

	_, err = f.svc.Get(ctx, batch.ID)
	assert.ErrorIs(t, err, services.ErrImportNotFound)
	_, err = f.archive.Get(ctx, batch.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.ErrorIs(t, f.svc.Discard(ctx, batch.ID), services.ErrImportNotFound)
}

func TestEnqueue_Disabled(t *testing.T) {
	f := newImportFixture(t, false)

	_, err := f.svc.Enqueue(context.Background(), csvSheet(",Nike,AM90,42,Red,10,2,1"), "batches.csv", "")
	assert.ErrorIs(t, err, services.ErrAsyncDisabled)

	_, err = f.svc.JobStatus(context.Background(), "any")
	assert.ErrorIs(t, err, services.ErrAsyncDisabled)
}

func TestEnqueue_ProcessJob(t *testing.T) {
	f := newImportFixture(t, true)
	ctx := context.Background()

	id, err := f.svc.Enqueue(ctx, csvSheet(",Nike,AM90,42,Red,10,2,1", ",Nike,AM90,42,Red,0,2,2"), "batches.csv", "text/csv")
	require.NoError(t, err)

	job, err := f.svc.JobStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, job.Status)

	require.NoError(t, f.svc.ProcessJob(ctx, id))

	job, err = f.svc.JobStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobDone, job.Status)
	require.NotNil(t, job.Counts)
	assert.Equal(t, 1, job.Counts.Success)
	assert.Equal(t, 1, job.Counts.Error)

	batch, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, batch.ID)
}

func TestProcessJob_RecordsFailure(t *testing.T) {
	f := newImportFixture(t, true)
	ctx := context.Background()
	f.checker.checkFn = func([]models.CandidateRow) (*models.CheckResponse, error) {
		return nil, errors.New("store down")
	}

	id, err := f.svc.Enqueue(ctx, csvSheet(",Nike,AM90,42,Red,10,2,1"), "batches.csv", "")
	require.NoError(t, err)

	err = f.svc.ProcessJob(ctx, id)
	require.Error(t, err)

	job, err := f.svc.JobStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, job.Status)
	assert.Contains(t, job.Error, "store down")
}

func TestJobStatus_NotFound(t *testing.T) {
	f := newImportFixture(t, true)

	_, err := f.svc.JobStatus(context.Background(), "missing")

	assert.ErrorIs(t, err, services.ErrJobNotFound)
}
