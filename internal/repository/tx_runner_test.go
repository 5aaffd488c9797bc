//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clinsim-ai/clinsim/internal/domain"
	"github.com/clinsim-ai/clinsim/internal/service"
	"github.com/clinsim-ai/clinsim/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxRunner_Commit(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	runner := NewTxRunner(pool)

	doc := newStoredDocument("Guideline", time.Now())
	job := domain.NewIngestJob(uuid.NewString(), doc.ID, time.Now().UTC().Truncate(time.Microsecond))

	err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
		if err := repos.Documents().Create(ctx, doc); err != nil {
			return err
		}
		return repos.IngestJobs().Create(ctx, job)
	})
	require.NoError(t, err)

	retrieved, err := NewDocumentRepository(pool).GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, retrieved.ID)

	storedJob, err := NewIngestJobRepository(pool).GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestJobStatusPending, storedJob.Status)
}

func TestTxRunner_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	runner := NewTxRunner(pool)

	doc := newStoredDocument("Guideline", time.Now())
	boom := errors.New("chunking failed")

	err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
		if err := repos.Documents().Create(ctx, doc); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// The document insert must not survive the rollback.
	_, err = NewDocumentRepository(pool).GetByID(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}
