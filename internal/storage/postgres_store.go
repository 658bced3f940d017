package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/andrisetia/merchant-ingest-be/internal/domain"
	"github.com/andrisetia/merchant-ingest-be/pkg/logger"
	"github.com/andrisetia/merchant-ingest-be/pkg/retry"
)

// PostgresStore implements domain.Repository and domain.AuditSink over gorm.
type PostgresStore struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewPostgresStore opens the DSN with backoff and migrates the schema.
func NewPostgresStore(ctx context.Context, dsn string, log *logger.Logger) (*PostgresStore, error) {
	var db *gorm.DB

	err := retry.Do(ctx, func() error {
		var openErr error
		db, openErr = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		return openErr
	}, retry.WithMaxAttempts(5))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	err = db.AutoMigrate(
		&domain.Batch{},
		&domain.IncomingFile{},
		&domain.Transaction{},
		&domain.ActivityLogEntry{},
		&domain.Merchant{},
		&domain.MerchantBankAccount{},
	)
	if err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &PostgresStore{db: db, log: log}, nil
}

func (s *PostgresStore) CreateBatch(ctx context.Context, batch *domain.Batch) error {
	return s.db.WithContext(ctx).Create(batch).Error
}

func (s *PostgresStore) GetBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	var batch domain.Batch
	err := s.db.WithContext(ctx).First(&batch, "batch_id = ?", batchID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBatchNotFound
		}
		return nil, err
	}
	return &batch, nil
}

func (s *PostgresStore) UpdateBatch(ctx context.Context, batch *domain.Batch) error {
	res := s.db.WithContext(ctx).Model(&domain.Batch{}).
		Where("batch_id = ?", batch.ID).
		Select("*").Omit("batch_id", "created_at", "created_by").
		Updates(batch)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrBatchNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteBatch(ctx context.Context, batchID string) error {
	res := s.db.WithContext(ctx).Delete(&domain.Batch{}, "batch_id = ?", batchID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrBatchNotFound
	}
	return nil
}

func (s *PostgresStore) ListBatches(ctx context.Context) ([]domain.Batch, error) {
	var batches []domain.Batch
	err := s.db.WithContext(ctx).Order("created_at asc").Find(&batches).Error
	return batches, err
}

func (s *PostgresStore) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	return s.db.WithContext(ctx).Create(tx).Error
}

func (s *PostgresStore) ListTransactionsByBatch(ctx context.Context, batchID string) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	err := s.db.WithContext(ctx).Where("batch_id = ?", batchID).Order("created_at asc").Find(&txs).Error
	return txs, err
}

func (s *PostgresStore) DeleteTransactionsByBatch(ctx context.Context, batchID string) (int, error) {
	res := s.db.WithContext(ctx).Delete(&domain.Transaction{}, "batch_id = ?", batchID)
	return int(res.RowsAffected), res.Error
}

func (s *PostgresStore) CreateIncomingFile(ctx context.Context, file *domain.IncomingFile) error {
	return s.db.WithContext(ctx).Create(file).Error
}

func (s *PostgresStore) GetIncomingFile(ctx context.Context, fileID string) (*domain.IncomingFile, error) {
	var file domain.IncomingFile
	err := s.db.WithContext(ctx).First(&file, "batch_file_id = ?", fileID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrFileNotFound
		}
		return nil, err
	}
	return &file, nil
}

func (s *PostgresStore) ListIncomingFiles(ctx context.Context, merchantID string) ([]domain.IncomingFile, error) {
	q := s.db.WithContext(ctx).Order("created_at asc")
	if merchantID != "" {
		q = q.Where("merchant_id = ?", merchantID)
	}

	var files []domain.IncomingFile
	err := q.Find(&files).Error
	return files, err
}

// CreateMerchant persists the bank account and the merchant inside one
// database transaction. The uniqueness check runs inside it, so concurrent
// duplicate creates surface domain.ErrMerchantExists rather than racing past
// the advisory id generator.
func (s *PostgresStore) CreateMerchant(ctx context.Context, merchant *domain.Merchant, account *domain.MerchantBankAccount) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.Merchant
		err := tx.First(&existing, "merchant_id = ?", merchant.MerchantID).Error
		if err == nil {
			return domain.ErrMerchantExists
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Create(account).Error; err != nil {
			return err
		}

		merchant.AccountID = account.AccountID
		return tx.Create(merchant).Error
	})
}

func (s *PostgresStore) GetMerchant(ctx context.Context, merchantID string) (*domain.Merchant, error) {
	var merchant domain.Merchant
	err := s.db.WithContext(ctx).First(&merchant, "merchant_id = ?", merchantID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrMerchantNotFound
		}
		return nil, err
	}
	return &merchant, nil
}

func (s *PostgresStore) ListMerchants(ctx context.Context) ([]domain.Merchant, error) {
	var merchants []domain.Merchant
	err := s.db.WithContext(ctx).Order("merchant_id asc").Find(&merchants).Error
	return merchants, err
}

func (s *PostgresStore) ListMerchantIDsByPrefix(ctx context.Context, prefix string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&domain.Merchant{}).
		Where("merchant_id LIKE ?", prefix+"%").
		Order("merchant_id asc").
		Pluck("merchant_id", &ids).Error
	return ids, err
}

func (s *PostgresStore) CountBankAccounts(ctx context.Context, merchantID string) (int, error) {
	var merchant domain.Merchant
	err := s.db.WithContext(ctx).First(&merchant, "merchant_id = ?", merchantID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}

	var count int64
	err = s.db.WithContext(ctx).Model(&domain.MerchantBankAccount{}).
		Where("account_id = ?", merchant.AccountID).
		Count(&count).Error
	return int(count), err
}

// Record appends an audit entry. Audit writes are best-effort: a failure is
// logged, never propagated into the operation being audited.
func (s *PostgresStore) Record(ctx context.Context, merchantID, activityType, description string) {
	entry := domain.ActivityLogEntry{
		ID:           uuid.New().String(),
		MerchantID:   merchantID,
		ActivityType: activityType,
		Description:  description,
		Timestamp:    time.Now(),
	}

	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.log.Error(ctx, "Failed to write activity log entry",
			"activity_type", activityType,
			"error", err,
		)
	}
}

func (s *PostgresStore) ListActivity(ctx context.Context) ([]domain.ActivityLogEntry, error) {
	var entries []domain.ActivityLogEntry
	err := s.db.WithContext(ctx).Order("timestamp desc").Find(&entries).Error
	return entries, err
}
