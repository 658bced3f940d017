package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrisetia/merchant-ingest-be/internal/domain"
	"github.com/andrisetia/merchant-ingest-be/internal/objectstore"
	"github.com/andrisetia/merchant-ingest-be/internal/storage"
	"github.com/andrisetia/merchant-ingest-be/pkg/logger"
)

func newBatchService(t *testing.T) (*BatchService, *storage.MemoryStore) {
	t.Helper()

	store := storage.NewMemoryStore()
	files, err := objectstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	log := logger.NewNop()
	svc := NewBatchService(store, store, files, NewMaterializer(store, log), log)
	return svc, store
}

func seedMerchant(t *testing.T, store *storage.MemoryStore, merchantID string) {
	t.Helper()

	err := store.CreateMerchant(context.Background(),
		&domain.Merchant{MerchantID: merchantID, Name: "Test Merchant", Status: "ACTIVE", CreatedAt: time.Now()},
		&domain.MerchantBankAccount{AccountID: "acc-" + merchantID, MerchantAccNum: "12345", MerchantAccName: "Test", IsDefault: true},
	)
	require.NoError(t, err)
}

func staffUpload(content, filename string) Upload {
	return Upload{
		FileName:    filename,
		ContentType: "text/csv",
		Size:        int64(len(content)),
		MerchantID:  "M001",
		Content:     strings.NewReader(content),
	}
}

func TestAcceptStaffUpload_Validation(t *testing.T) {
	svc, _ := newBatchService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		upload  Upload
		wantErr error
	}{
		{
			name:    "empty file",
			upload:  Upload{FileName: "a.csv", ContentType: "text/csv", Size: 0, MerchantID: "M001"},
			wantErr: domain.ErrEmptyFile,
		},
		{
			name:    "missing name",
			upload:  Upload{FileName: "", ContentType: "text/csv", Size: 10, MerchantID: "M001", Content: strings.NewReader("x")},
			wantErr: domain.ErrInvalidFileName,
		},
		{
			name:    "bad extension",
			upload:  Upload{FileName: "a.pdf", ContentType: "text/csv", Size: 10, MerchantID: "M001", Content: strings.NewReader("x")},
			wantErr: domain.ErrInvalidFileType,
		},
		{
			name:    "bad content type",
			upload:  Upload{FileName: "a.csv", ContentType: "application/json", Size: 10, MerchantID: "M001", Content: strings.NewReader("x")},
			wantErr: domain.ErrInvalidContentType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AcceptStaffUpload(ctx, tt.upload)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAcceptStaffUpload_CreatesUploadedBatch(t *testing.T) {
	svc, store := newBatchService(t)
	ctx := context.Background()

	batch, err := svc.AcceptStaffUpload(ctx, staffUpload("ACC1,100,USD\n", "payments.csv"))
	require.NoError(t, err)

	assert.Equal(t, domain.BatchStatusUploaded, batch.Status)
	assert.Equal(t, "payments.csv", batch.FileName)
	assert.Equal(t, "M001", batch.MerchantID)
	assert.Equal(t, "system", batch.CreatedBy)

	entries, err := store.ListActivity(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ActivityUploadBatch, entries[0].ActivityType)
}

func TestMaterialize_AllRowsReady(t *testing.T) {
	svc, store := newBatchService(t)
	ctx := context.Background()

	batch, err := svc.AcceptStaffUpload(ctx, staffUpload("ACC1,100.50,USD\nACC2,200,IDR\nACC3,300,SGD\n", "payments.csv"))
	require.NoError(t, err)

	batch, err = svc.Materialize(ctx, batch)
	require.NoError(t, err)

	assert.Equal(t, domain.BatchStatusReady, batch.Status)
	assert.Equal(t, 3, batch.TotalCount)
	assert.Equal(t, 3, batch.TotalSuccessCount)
	assert.Equal(t, 0, batch.TotalFailCount)

	txs, err := store.ListTransactionsByBatch(ctx, batch.ID)
	require.NoError(t, err)
	require.Len(t, txs, 3)

	for _, tx := range txs {
		assert.Equal(t, domain.TransactionStatusPending, tx.Status)
		assert.Equal(t, batch.MerchantID, tx.MerchantID)
		assert.Equal(t, batch.ID, tx.BatchID)
	}
	assert.Equal(t, "100.5", txs[0].Amount.String())
}

func TestMaterialize_PartialThenFail(t *testing.T) {
	svc, store := newBatchService(t)
	ctx := context.Background()

	// Two good rows, then a malformed amount, then a row that must never be
	// attempted.
	content := "ACC1,100,USD\nACC2,200,USD\nACC3,bogus,USD\nACC4,400,USD\n"
	batch, err := svc.AcceptStaffUpload(ctx, staffUpload(content, "payments.csv"))
	require.NoError(t, err)

	batch, err = svc.Materialize(ctx, batch)
	require.NoError(t, err)

	assert.Equal(t, domain.BatchStatusFailed, batch.Status)
	assert.Equal(t, 2, batch.TotalSuccessCount)

	txs, err := store.ListTransactionsByBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 2, "rows persisted before the failure must remain")

	entries, err := store.ListActivity(ctx)
	require.NoError(t, err)
	types := activityTypes(entries)
	assert.Contains(t, types, domain.ActivityProcessCSVFailed)
}

func TestMaterialize_ShortRowsNotCountedAsFailures(t *testing.T) {
	svc, _ := newBatchService(t)
	ctx := context.Background()

	content := "ACC1,100,USD\nACC2,200\nACC3,300,EUR\n"
	batch, err := svc.AcceptStaffUpload(ctx, staffUpload(content, "payments.csv"))
	require.NoError(t, err)

	batch, err = svc.Materialize(ctx, batch)
	require.NoError(t, err)

	assert.Equal(t, domain.BatchStatusReady, batch.Status)
	assert.Equal(t, 2, batch.TotalCount)
	assert.Equal(t, 0, batch.TotalFailCount)
}

func TestAcceptIncomingUpload_UnknownMerchant(t *testing.T) {
	svc, _ := newBatchService(t)
	ctx := context.Background()

	up := staffUpload("ACC1,100,USD\n", "payments.csv")
	up.MerchantID = "M999"

	_, _, err := svc.AcceptIncomingUpload(ctx, up)
	assert.ErrorIs(t, err, domain.ErrMerchantNotFound)
}

func TestAcceptIncomingUpload_CreatesReceivedBatchAndFileRecord(t *testing.T) {
	svc, store := newBatchService(t)
	ctx := context.Background()
	seedMerchant(t, store, "M001")

	content := "ACC1,100,USD\n"
	up := Upload{
		FileName:   "merchant-batch.csv",
		Size:       int64(len(content)),
		MerchantID: "M001",
		Content:    strings.NewReader(content),
	}

	batch, file, err := svc.AcceptIncomingUpload(ctx, up)
	require.NoError(t, err)

	assert.Equal(t, domain.BatchStatusReceived, batch.Status)
	assert.Equal(t, "merchant", batch.CreatedBy)

	assert.Equal(t, batch.ID, file.BatchID)
	assert.Equal(t, "merchant-batch.csv", file.OriginalFilename)
	assert.Equal(t, int64(len(content)), file.SizeBytes)
	// Stored name is made unique, the original is preserved on the record.
	assert.NotEqual(t, file.OriginalFilename, batch.FileName)
	assert.Contains(t, batch.FileName, "merchant-batch.csv")

	got, err := store.GetIncomingFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, "M001", got.MerchantID)
}

func TestUpdate_NotFound(t *testing.T) {
	svc, _ := newBatchService(t)

	_, err := svc.Update(context.Background(), "missing", domain.BatchPatch{})
	assert.ErrorIs(t, err, domain.ErrBatchNotFound)
}

func TestUpdate_StatusOverride(t *testing.T) {
	svc, _ := newBatchService(t)
	ctx := context.Background()

	batch, err := svc.AcceptStaffUpload(ctx, staffUpload("ACC1,100,USD\n", "payments.csv"))
	require.NoError(t, err)

	status := domain.BatchStatusFailed
	merchant := "M777"
	updated, err := svc.Update(ctx, batch.ID, domain.BatchPatch{Status: &status, MerchantID: &merchant})
	require.NoError(t, err)

	assert.Equal(t, domain.BatchStatusFailed, updated.Status)
	assert.Equal(t, "M777", updated.MerchantID)
	assert.NotNil(t, updated.LastModifiedAt)
}

func TestDelete_MissingFileStillSucceeds(t *testing.T) {
	svc, store := newBatchService(t)
	ctx := context.Background()

	batch, err := svc.AcceptStaffUpload(ctx, staffUpload("ACC1,100,USD\n", "payments.csv"))
	require.NoError(t, err)

	// Remove the file out of band; the batch has zero transactions.
	require.NoError(t, svc.files.Delete(batch.FileName))

	result, err := svc.Delete(ctx, batch.ID)
	require.NoError(t, err)

	assert.True(t, result.DBDeleted)
	assert.True(t, result.FileDeleted)
	assert.Equal(t, 0, result.TransactionsDeleted)

	_, err = store.GetBatch(ctx, batch.ID)
	assert.ErrorIs(t, err, domain.ErrBatchNotFound)
}

func TestDelete_RemovesTransactionsFileAndBatch(t *testing.T) {
	svc, store := newBatchService(t)
	ctx := context.Background()

	batch, err := svc.AcceptStaffUpload(ctx, staffUpload("ACC1,100,USD\nACC2,200,USD\n", "payments.csv"))
	require.NoError(t, err)
	batch, err = svc.Materialize(ctx, batch)
	require.NoError(t, err)

	result, err := svc.Delete(ctx, batch.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, result.TransactionsDeleted)
	assert.True(t, result.DBDeleted)
	assert.True(t, result.FileDeleted)

	entries, err := store.ListActivity(ctx)
	require.NoError(t, err)
	types := activityTypes(entries)
	assert.Contains(t, types, domain.ActivityDeleteTransactions)
	assert.Contains(t, types, domain.ActivityDeleteFile)
	assert.Contains(t, types, domain.ActivityDeleteBatch)
}

// brokenDeleteStore fails file deletion with a non-NotFound error.
type brokenDeleteStore struct {
	ObjectStore
}

func (b brokenDeleteStore) Delete(key string) error {
	return fmt.Errorf("disk offline")
}

func TestDelete_FileFailureReportedNotRolledBack(t *testing.T) {
	store := storage.NewMemoryStore()
	files, err := objectstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	log := logger.NewNop()
	svc := NewBatchService(store, store, brokenDeleteStore{files}, NewMaterializer(store, log), log)

	ctx := context.Background()
	batch, err := svc.AcceptStaffUpload(ctx, staffUpload("ACC1,100,USD\n", "payments.csv"))
	require.NoError(t, err)

	result, err := svc.Delete(ctx, batch.ID)
	require.NoError(t, err)

	assert.True(t, result.DBDeleted)
	assert.False(t, result.FileDeleted)
	assert.Contains(t, result.FileError, "disk offline")

	// The DB-side deletion stands.
	_, err = store.GetBatch(ctx, batch.ID)
	assert.ErrorIs(t, err, domain.ErrBatchNotFound)

	entries, err := store.ListActivity(ctx)
	require.NoError(t, err)
	assert.Contains(t, activityTypes(entries), domain.ActivityDeleteBatchFailed)
}

func TestMaterialize_MissingStoredFileFailsBatch(t *testing.T) {
	svc, _ := newBatchService(t)
	ctx := context.Background()

	batch, err := svc.AcceptStaffUpload(ctx, staffUpload("ACC1,100,USD\n", "payments.csv"))
	require.NoError(t, err)

	require.NoError(t, svc.files.Delete(batch.FileName))

	batch, err = svc.Materialize(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusFailed, batch.Status)
}

func activityTypes(entries []domain.ActivityLogEntry) []string {
	types := make([]string, 0, len(entries))
	for _, e := range entries {
		types = append(types, e.ActivityType)
	}
	return types
}

// failReader aborts mid-copy so storage failures during acceptance are
// exercised without touching the filesystem.
type failReader struct{}

func (failReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

var _ io.Reader = failReader{}

func TestAcceptStaffUpload_StorageFailureAuditsWithoutBatch(t *testing.T) {
	svc, store := newBatchService(t)
	ctx := context.Background()

	up := Upload{
		FileName:    "payments.csv",
		ContentType: "text/csv",
		Size:        10,
		MerchantID:  "M001",
		Content:     failReader{},
	}

	_, err := svc.AcceptStaffUpload(ctx, up)
	require.Error(t, err)

	batches, err := store.ListBatches(ctx)
	require.NoError(t, err)
	assert.Empty(t, batches, "no batch may exist after a storage failure")

	entries, err := store.ListActivity(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ActivityUploadBatchFailed, entries[0].ActivityType)
	assert.Equal(t, "M001", entries[0].MerchantID)
}
