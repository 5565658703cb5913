package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/grachmannico95/bank-ledger/internal/domain"
	"github.com/grachmannico95/bank-ledger/internal/storage"
	"github.com/grachmannico95/bank-ledger/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRun(id string) domain.ImportRun {
	now := time.Now()
	return domain.ImportRun{
		ID:            id,
		Status:        domain.ImportStatusCommitted,
		BatchName:     "batch.csv",
		RatesName:     "rates.csv",
		RowsRead:      2,
		RowsCommitted: 2,
		FinalBalance:  100,
		StartedAt:     now,
		FinishedAt:    now,
	}
}

func TestAuditConsumer_RecordsRun(t *testing.T) {
	repo := storage.NewMemoryStore()
	consumer := NewAuditConsumer(repo, logger.NewNop(), 1)
	ctx := context.Background()

	event := NewImportFinishedEvent(sampleRun("run-1"))
	require.NoError(t, consumer.Consume(ctx, event))

	run, err := repo.GetImportRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, run.RowsCommitted)

	processed, err := repo.IsEventProcessed(ctx, event.ID)
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestAuditConsumer_Idempotent(t *testing.T) {
	repo := storage.NewMemoryStore()
	consumer := NewAuditConsumer(repo, logger.NewNop(), 1)
	ctx := context.Background()

	event := NewImportFinishedEvent(sampleRun("run-1"))
	require.NoError(t, consumer.Consume(ctx, event))
	require.NoError(t, consumer.Consume(ctx, event))

	runs, err := repo.ListImportRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestAuditConsumer_InvalidPayload(t *testing.T) {
	consumer := NewAuditConsumer(storage.NewMemoryStore(), logger.NewNop(), 0)

	err := consumer.Consume(context.Background(), Event{ID: "bad", Type: EventTypeImportFinished, Payload: "nope"})
	assert.ErrorIs(t, err, ErrInvalidPayload)
	assert.Equal(t, 1, consumer.GetWorkerCount())
}

func TestAuditConsumer_ThroughBus(t *testing.T) {
	repo := storage.NewMemoryStore()
	bus := New(logger.NewNop(), &Config{ChannelBuffer: 10, MaxRetries: 2, RetryDelay: time.Millisecond})
	require.NoError(t, bus.Subscribe(EventTypeImportFinished, NewAuditConsumer(repo, logger.NewNop(), 2)))
	require.NoError(t, bus.Start(context.Background()))

	require.NoError(t, bus.Publish(context.Background(), NewImportFinishedEvent(sampleRun("run-a"))))
	require.NoError(t, bus.Publish(context.Background(), NewImportFinishedEvent(sampleRun("run-b"))))
	require.NoError(t, bus.Shutdown(context.Background()))

	runs, err := repo.ListImportRuns(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
