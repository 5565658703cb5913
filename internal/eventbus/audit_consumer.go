package eventbus

import (
	"context"
	"fmt"

	"github.com/grachmannico95/bank-ledger/internal/domain"
	"github.com/grachmannico95/bank-ledger/pkg/logger"
)

// AuditConsumer records finished imports in the repository's audit trail.
type AuditConsumer struct {
	repo        domain.Repository
	logger      *logger.Logger
	workerCount int
}

func NewAuditConsumer(repo domain.Repository, log *logger.Logger, workerCount int) *AuditConsumer {
	if workerCount < 1 {
		workerCount = 1
	}
	return &AuditConsumer{
		repo:        repo,
		logger:      log,
		workerCount: workerCount,
	}
}

func (ac *AuditConsumer) Consume(ctx context.Context, event Event) error {
	// Check idempotency
	processed, err := ac.repo.IsEventProcessed(ctx, event.ID)
	if err != nil {
		ac.logger.Error(ctx, "Failed to check event processed status",
			"event_id", event.ID,
			"error", err,
		)
		return err
	}

	if processed {
		ac.logger.Debug(ctx, "Event already processed, skipping",
			"event_id", event.ID,
		)
		return nil
	}

	payload, ok := event.Payload.(ImportFinishedEvent)
	if !ok {
		ac.logger.Error(ctx, "Invalid payload type for import event",
			"event_id", event.ID,
		)
		return fmt.Errorf("%w: %T", ErrInvalidPayload, event.Payload)
	}

	ctx = logger.WithImportID(ctx, payload.Run.ID)

	err = ac.repo.RecordImportRun(ctx, payload.Run)
	if err != nil {
		ac.logger.Error(ctx, "Failed to record import run",
			"event_id", event.ID,
			"error", err,
		)
		return err
	}

	err = ac.repo.MarkEventProcessed(ctx, event.ID)
	if err != nil {
		ac.logger.Error(ctx, "Failed to mark event as processed",
			"event_id", event.ID,
			"error", err,
		)
		return err
	}

	ac.logger.Debug(ctx, "Import run recorded",
		"event_id", event.ID,
		"status", payload.Run.Status,
		"rows_committed", payload.Run.RowsCommitted,
	)

	return nil
}

func (ac *AuditConsumer) GetWorkerCount() int {
	return ac.workerCount
}
