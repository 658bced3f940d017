package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/andrisetia/merchant-ingest-be/internal/domain"
	"github.com/andrisetia/merchant-ingest-be/internal/parser"
	"github.com/andrisetia/merchant-ingest-be/pkg/logger"
)

// ObjectStore is the blob storage collaborator for uploaded batch files.
type ObjectStore interface {
	Store(name string, r io.Reader) (string, int64, error)
	StoreUnique(name string, r io.Reader) (string, int64, error)
	Open(key string) (io.ReadCloser, error)
	Path(key string) string
	Delete(key string) error
}

// Upload carries an inbound batch file and its intake metadata.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	MerchantID  string
	CreatedBy   string
	Content     io.Reader
}

// allowedContentTypes is checked only for the staff-initiated flow; the
// merchant intake flow validates by extension alone.
var allowedContentTypes = map[string]bool{
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"text/plain": true,
	"text/csv":   true,
}

// BatchService owns the batch state machine: RECEIVED/UPLOADED on intake,
// READY or FAILED after materialization. Both terminal transitions write an
// audit entry.
type BatchService struct {
	repo         domain.Repository
	audit        domain.AuditSink
	files        ObjectStore
	materializer *Materializer
	log          *logger.Logger
}

func NewBatchService(repo domain.Repository, audit domain.AuditSink, files ObjectStore, materializer *Materializer, log *logger.Logger) *BatchService {
	return &BatchService{
		repo:         repo,
		audit:        audit,
		files:        files,
		materializer: materializer,
		log:          log,
	}
}

// AcceptStaffUpload validates and stores a staff-initiated upload and creates
// the batch in status UPLOADED. The file is stored under its raw name, so a
// second upload with the same name overwrites the first.
func (s *BatchService) AcceptStaffUpload(ctx context.Context, up Upload) (*domain.Batch, error) {
	ctx = logger.WithMerchantID(ctx, up.MerchantID)

	if err := validateUpload(up); err != nil {
		return nil, err
	}
	if !allowedContentTypes[up.ContentType] {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidContentType, up.ContentType)
	}

	key, _, err := s.files.Store(up.FileName, up.Content)
	if err != nil {
		// The merchant is known before storage is attempted, so the failure
		// is auditable even though no batch exists yet.
		s.audit.Record(ctx, up.MerchantID, domain.ActivityUploadBatchFailed,
			fmt.Sprintf("Upload failed: %v", err))
		return nil, fmt.Errorf("store upload: %w", err)
	}

	createdBy := up.CreatedBy
	if createdBy == "" {
		createdBy = "system"
	}

	batch := &domain.Batch{
		ID:               uuid.New().String(),
		FileName:         key,
		OriginalFileName: up.FileName,
		MerchantID:       up.MerchantID,
		Status:           domain.BatchStatusUploaded,
		CreatedBy:        createdBy,
		CreatedAt:        time.Now(),
	}

	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		s.audit.Record(ctx, up.MerchantID, domain.ActivityUploadBatchFailed,
			fmt.Sprintf("Upload failed: %v", err))
		return nil, err
	}

	s.audit.Record(ctx, up.MerchantID, domain.ActivityUploadBatch,
		fmt.Sprintf("Uploaded: %s by %s", key, up.MerchantID))

	s.log.Info(ctx, "Staff upload accepted",
		"batch_id", batch.ID,
		"file_name", key,
	)

	return batch, nil
}

// AcceptIncomingUpload handles the merchant self-serve intake: the merchant
// must already be registered, the stored name is made unique, and a
// one-to-one incoming file record is created alongside the RECEIVED batch.
func (s *BatchService) AcceptIncomingUpload(ctx context.Context, up Upload) (*domain.Batch, *domain.IncomingFile, error) {
	ctx = logger.WithMerchantID(ctx, up.MerchantID)

	if err := validateUpload(up); err != nil {
		return nil, nil, err
	}

	if _, err := s.repo.GetMerchant(ctx, up.MerchantID); err != nil {
		return nil, nil, err
	}

	key, size, err := s.files.StoreUnique(up.FileName, up.Content)
	if err != nil {
		return nil, nil, fmt.Errorf("store upload: %w", err)
	}

	createdBy := up.CreatedBy
	if createdBy == "" {
		createdBy = "merchant"
	}

	now := time.Now()
	batch := &domain.Batch{
		ID:               uuid.New().String(),
		FileName:         key,
		OriginalFileName: up.FileName,
		MerchantID:       up.MerchantID,
		Status:           domain.BatchStatusReceived,
		CreatedBy:        createdBy,
		CreatedAt:        now,
	}

	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		return nil, nil, err
	}

	file := &domain.IncomingFile{
		ID:               uuid.New().String(),
		MerchantID:       up.MerchantID,
		BatchID:          batch.ID,
		OriginalFilename: up.FileName,
		StorageURI:       s.files.Path(key),
		SizeBytes:        size,
		Status:           string(domain.BatchStatusReceived),
		CreatedBy:        createdBy,
		CreatedAt:        now,
	}

	if err := s.repo.CreateIncomingFile(ctx, file); err != nil {
		return nil, nil, err
	}

	s.audit.Record(ctx, up.MerchantID, domain.ActivityUploadBatch,
		fmt.Sprintf("Uploaded: %s by %s", key, up.MerchantID))

	s.log.Info(ctx, "Incoming upload accepted",
		"batch_id", batch.ID,
		"batch_file_id", file.ID,
		"size_bytes", size,
	)

	return batch, file, nil
}

func validateUpload(up Upload) error {
	if up.Size == 0 {
		return domain.ErrEmptyFile
	}
	if up.FileName == "" {
		return domain.ErrInvalidFileName
	}
	if _, err := parser.FormatFromFilename(up.FileName); err != nil {
		return err
	}
	return nil
}

// Materialize streams the stored file's rows into persisted transactions and
// moves the batch to its terminal status. It runs synchronously right after
// acceptance; the caller's connection is held for the full parse.
//
// The terminal transition is not transactional with the rows: on a mid-file
// failure the rows written so far remain while the batch reads FAILED. The
// audit trail and the batch counts make that partial state observable.
func (s *BatchService) Materialize(ctx context.Context, batch *domain.Batch) (*domain.Batch, error) {
	ctx = logger.WithBatchID(logger.WithMerchantID(ctx, batch.MerchantID), batch.ID)

	format, err := parser.FormatFromFilename(batch.FileName)
	if err != nil {
		// Acceptance already validated the extension; reaching this means
		// the stored key was tampered with.
		return s.failBatch(ctx, batch, format, 0, err)
	}

	src, err := s.files.Open(batch.FileName)
	if err != nil {
		return s.failBatch(ctx, batch, format, 0, err)
	}
	defer src.Close()

	rows, err := parser.New(format, src)
	if err != nil {
		return s.failBatch(ctx, batch, format, 0, err)
	}

	txs, err := s.materializer.Materialize(ctx, batch, rows)
	if err != nil {
		return s.failBatch(ctx, batch, format, len(txs), err)
	}

	now := time.Now()
	batch.Status = domain.BatchStatusReady
	batch.TotalCount = len(txs)
	batch.TotalSuccessCount = len(txs)
	batch.TotalFailCount = 0
	batch.LastModifiedAt = &now

	if err := s.repo.UpdateBatch(ctx, batch); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, batch.MerchantID, processActivity(format, false),
		fmt.Sprintf("Processed %s: %s (%d records)", formatLabel(format), batch.FileName, len(txs)))

	s.log.Info(ctx, "Batch materialized",
		"record_count", len(txs),
	)

	return batch, nil
}

func (s *BatchService) failBatch(ctx context.Context, batch *domain.Batch, format parser.Format, persisted int, cause error) (*domain.Batch, error) {
	now := time.Now()
	batch.Status = domain.BatchStatusFailed
	batch.TotalSuccessCount = persisted
	batch.LastModifiedAt = &now

	if err := s.repo.UpdateBatch(ctx, batch); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, batch.MerchantID, processActivity(format, true),
		fmt.Sprintf("%s processing failed for %s: %v", formatLabel(format), batch.FileName, cause))

	s.log.Warn(ctx, "Batch materialization failed",
		"persisted_rows", persisted,
		"error", cause,
	)

	return batch, nil
}

func processActivity(format parser.Format, failed bool) string {
	if format == parser.FormatSpreadsheet {
		if failed {
			return domain.ActivityProcessExcelFailed
		}
		return domain.ActivityProcessExcel
	}
	if failed {
		return domain.ActivityProcessCSVFailed
	}
	return domain.ActivityProcessCSV
}

func formatLabel(format parser.Format) string {
	if format == parser.FormatSpreadsheet {
		return "Excel"
	}
	return "CSV"
}

// Update applies a partial update to a batch's mutable fields.
func (s *BatchService) Update(ctx context.Context, batchID string, patch domain.BatchPatch) (*domain.Batch, error) {
	batch, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	if patch.MerchantID != nil {
		batch.MerchantID = *patch.MerchantID
	}
	if patch.Status != nil {
		batch.Status = *patch.Status
	}

	now := time.Now()
	batch.LastModifiedAt = &now

	if err := s.repo.UpdateBatch(ctx, batch); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, batch.MerchantID, domain.ActivityUpdateBatch,
		fmt.Sprintf("Updated batch ID %s", batchID))

	return batch, nil
}

// Delete removes a batch's transactions and row from the database, then its
// backing file. The two stores are not atomic: a file I/O failure after the
// database rows are gone is reported in the result, not rolled back. An
// already-missing file counts as deleted.
func (s *BatchService) Delete(ctx context.Context, batchID string) (domain.DeleteResult, error) {
	batch, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return domain.DeleteResult{}, err
	}

	ctx = logger.WithBatchID(logger.WithMerchantID(ctx, batch.MerchantID), batchID)

	count, err := s.repo.DeleteTransactionsByBatch(ctx, batchID)
	if err != nil {
		return domain.DeleteResult{}, err
	}
	if count > 0 {
		s.audit.Record(ctx, batch.MerchantID, domain.ActivityDeleteTransactions,
			fmt.Sprintf("Deleted %d transactions for batch %s", count, batchID))
	}

	if err := s.repo.DeleteBatch(ctx, batchID); err != nil {
		return domain.DeleteResult{TransactionsDeleted: count}, err
	}
	s.audit.Record(ctx, batch.MerchantID, domain.ActivityDeleteBatch,
		fmt.Sprintf("Batch ID %s deleted.", batchID))

	result := domain.DeleteResult{
		TransactionsDeleted: count,
		DBDeleted:           true,
	}

	switch err := s.files.Delete(batch.FileName); {
	case err == nil:
		result.FileDeleted = true
		s.audit.Record(ctx, batch.MerchantID, domain.ActivityDeleteFile,
			fmt.Sprintf("Deleted file: %s", batch.FileName))
	case err == domain.ErrFileNotFound:
		// Already gone, still a success.
		result.FileDeleted = true
	default:
		result.FileError = err.Error()
		s.audit.Record(ctx, batch.MerchantID, domain.ActivityDeleteBatchFailed,
			fmt.Sprintf("File deletion failed for batch %s: %v", batchID, err))
		s.log.Error(ctx, "Batch deleted from DB but file removal failed",
			"file_name", batch.FileName,
			"error", err,
		)
	}

	return result, nil
}

func (s *BatchService) GetBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	return s.repo.GetBatch(ctx, batchID)
}

func (s *BatchService) ListBatches(ctx context.Context) ([]domain.Batch, error) {
	return s.repo.ListBatches(ctx)
}

func (s *BatchService) ListTransactions(ctx context.Context, batchID string) ([]domain.Transaction, error) {
	return s.repo.ListTransactionsByBatch(ctx, batchID)
}

func (s *BatchService) GetIncomingFile(ctx context.Context, fileID string) (*domain.IncomingFile, error) {
	return s.repo.GetIncomingFile(ctx, fileID)
}

func (s *BatchService) ListIncomingFiles(ctx context.Context, merchantID string) ([]domain.IncomingFile, error) {
	return s.repo.ListIncomingFiles(ctx, merchantID)
}

// ActivityFeed returns display-formatted audit entries, newest first.
func (s *BatchService) ActivityFeed(ctx context.Context) ([]string, error) {
	entries, err := s.repo.ListActivity(ctx)
	if err != nil {
		return nil, err
	}

	feed := make([]string, 0, len(entries))
	for _, e := range entries {
		feed = append(feed, fmt.Sprintf("[%s] %s", e.Timestamp.Format(time.RFC3339), e.Description))
	}
	return feed, nil
}
