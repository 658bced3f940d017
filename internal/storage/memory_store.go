package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andrisetia/merchant-ingest-be/internal/domain"
)

// MemoryStore implements domain.Repository and domain.AuditSink in process.
// It backs the test suites and lets the service run without a database.
type MemoryStore struct {
	batches       map[string]*domain.Batch
	transactions  map[string][]domain.Transaction
	incomingFiles map[string]*domain.IncomingFile
	merchants     map[string]*domain.Merchant
	bankAccounts  map[string]*domain.MerchantBankAccount
	activity      []domain.ActivityLogEntry
	mu            sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		batches:       make(map[string]*domain.Batch),
		transactions:  make(map[string][]domain.Transaction),
		incomingFiles: make(map[string]*domain.IncomingFile),
		merchants:     make(map[string]*domain.Merchant),
		bankAccounts:  make(map[string]*domain.MerchantBankAccount),
	}
}

func (s *MemoryStore) CreateBatch(ctx context.Context, batch *domain.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *batch
	s.batches[batch.ID] = &copied
	s.transactions[batch.ID] = []domain.Transaction{}

	return nil
}

func (s *MemoryStore) GetBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch, exists := s.batches[batchID]
	if !exists {
		return nil, domain.ErrBatchNotFound
	}

	copied := *batch
	return &copied, nil
}

func (s *MemoryStore) UpdateBatch(ctx context.Context, batch *domain.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.batches[batch.ID]; !exists {
		return domain.ErrBatchNotFound
	}

	copied := *batch
	s.batches[batch.ID] = &copied

	return nil
}

func (s *MemoryStore) DeleteBatch(ctx context.Context, batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.batches[batchID]; !exists {
		return domain.ErrBatchNotFound
	}

	delete(s.batches, batchID)
	delete(s.transactions, batchID)

	return nil
}

func (s *MemoryStore) ListBatches(ctx context.Context) ([]domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batches := make([]domain.Batch, 0, len(s.batches))
	for _, b := range s.batches {
		batches = append(batches, *b)
	}

	sort.Slice(batches, func(i, j int) bool {
		return batches[i].CreatedAt.Before(batches[j].CreatedAt)
	})

	return batches, nil
}

func (s *MemoryStore) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.batches[tx.BatchID]; !exists {
		return domain.ErrBatchNotFound
	}

	s.transactions[tx.BatchID] = append(s.transactions[tx.BatchID], *tx)

	return nil
}

func (s *MemoryStore) ListTransactionsByBatch(ctx context.Context, batchID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs := s.transactions[batchID]
	out := make([]domain.Transaction, len(txs))
	copy(out, txs)

	return out, nil
}

func (s *MemoryStore) DeleteTransactionsByBatch(ctx context.Context, batchID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := len(s.transactions[batchID])
	s.transactions[batchID] = nil

	return count, nil
}

func (s *MemoryStore) CreateIncomingFile(ctx context.Context, file *domain.IncomingFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *file
	s.incomingFiles[file.ID] = &copied

	return nil
}

func (s *MemoryStore) GetIncomingFile(ctx context.Context, fileID string) (*domain.IncomingFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, exists := s.incomingFiles[fileID]
	if !exists {
		return nil, domain.ErrFileNotFound
	}

	copied := *file
	return &copied, nil
}

func (s *MemoryStore) ListIncomingFiles(ctx context.Context, merchantID string) ([]domain.IncomingFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := make([]domain.IncomingFile, 0, len(s.incomingFiles))
	for _, f := range s.incomingFiles {
		if merchantID != "" && f.MerchantID != merchantID {
			continue
		}
		files = append(files, *f)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].CreatedAt.Before(files[j].CreatedAt)
	})

	return files, nil
}

func (s *MemoryStore) CreateMerchant(ctx context.Context, merchant *domain.Merchant, account *domain.MerchantBankAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.merchants[merchant.MerchantID]; exists {
		return domain.ErrMerchantExists
	}

	accCopy := *account
	s.bankAccounts[account.AccountID] = &accCopy

	merchant.AccountID = account.AccountID
	mCopy := *merchant
	s.merchants[merchant.MerchantID] = &mCopy

	return nil
}

func (s *MemoryStore) GetMerchant(ctx context.Context, merchantID string) (*domain.Merchant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	merchant, exists := s.merchants[merchantID]
	if !exists {
		return nil, domain.ErrMerchantNotFound
	}

	copied := *merchant
	return &copied, nil
}

func (s *MemoryStore) ListMerchants(ctx context.Context) ([]domain.Merchant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	merchants := make([]domain.Merchant, 0, len(s.merchants))
	for _, m := range s.merchants {
		merchants = append(merchants, *m)
	}

	sort.Slice(merchants, func(i, j int) bool {
		return merchants[i].MerchantID < merchants[j].MerchantID
	})

	return merchants, nil
}

func (s *MemoryStore) ListMerchantIDsByPrefix(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id := range s.merchants {
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}

	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) CountBankAccounts(ctx context.Context, merchantID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	merchant, exists := s.merchants[merchantID]
	if !exists {
		return 0, nil
	}

	count := 0
	if _, ok := s.bankAccounts[merchant.AccountID]; ok {
		count = 1
	}
	return count, nil
}

// Record appends an activity entry; the log is write-once and never trimmed.
func (s *MemoryStore) Record(ctx context.Context, merchantID, activityType, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activity = append(s.activity, domain.ActivityLogEntry{
		ID:           uuid.New().String(),
		MerchantID:   merchantID,
		ActivityType: activityType,
		Description:  description,
		Timestamp:    time.Now(),
	})
}

func (s *MemoryStore) ListActivity(ctx context.Context) ([]domain.ActivityLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.ActivityLogEntry, len(s.activity))
	copy(entries, s.activity)

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	return entries, nil
}
