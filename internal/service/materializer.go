package service

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/andrisetia/merchant-ingest-be/internal/domain"
	"github.com/andrisetia/merchant-ingest-be/internal/parser"
	"github.com/andrisetia/merchant-ingest-be/pkg/logger"
)

// Materializer turns parsed rows into persisted PENDING transactions, one
// commit per row. There is deliberately no bulk insert: independent row
// commits are what let a batch hold its first N rows after row N+1 fails.
type Materializer struct {
	repo domain.Repository
	log  *logger.Logger
}

func NewMaterializer(repo domain.Repository, log *logger.Logger) *Materializer {
	return &Materializer{
		repo: repo,
		log:  log,
	}
}

// Materialize consumes the row sequence one row at a time. A failure on any
// row stops consumption; rows after it are never attempted. The transactions
// persisted before the failure are returned alongside the error.
func (m *Materializer) Materialize(ctx context.Context, batch *domain.Batch, rows parser.RowReader) ([]domain.Transaction, error) {
	var persisted []domain.Transaction

	for {
		row, err := rows.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return persisted, err
		}

		tx := domain.Transaction{
			ID:            uuid.New().String(),
			BatchID:       batch.ID,
			MerchantID:    batch.MerchantID,
			AccountNumber: row.AccountNumber,
			Amount:        row.Amount,
			Currency:      row.Currency,
			Remarks:       row.Remarks,
			Status:        domain.TransactionStatusPending,
			CreatedBy:     batch.CreatedBy,
			CreatedAt:     time.Now(),
		}

		if err := m.repo.CreateTransaction(ctx, &tx); err != nil {
			return persisted, err
		}

		persisted = append(persisted, tx)
	}

	m.log.Debug(ctx, "Rows materialized",
		"count", len(persisted),
	)

	return persisted, nil
}
