package domain

import "context"

// Repository is the persistence collaborator. No query here needs joins
// beyond "transactions belonging to a batch".
type Repository interface {
	// Batch lifecycle
	CreateBatch(ctx context.Context, batch *Batch) error
	GetBatch(ctx context.Context, batchID string) (*Batch, error)
	UpdateBatch(ctx context.Context, batch *Batch) error
	DeleteBatch(ctx context.Context, batchID string) error
	ListBatches(ctx context.Context) ([]Batch, error)

	// Transactions
	CreateTransaction(ctx context.Context, tx *Transaction) error
	ListTransactionsByBatch(ctx context.Context, batchID string) ([]Transaction, error)
	DeleteTransactionsByBatch(ctx context.Context, batchID string) (int, error)

	// Incoming files
	CreateIncomingFile(ctx context.Context, file *IncomingFile) error
	GetIncomingFile(ctx context.Context, fileID string) (*IncomingFile, error)
	ListIncomingFiles(ctx context.Context, merchantID string) ([]IncomingFile, error)

	// Merchants. CreateMerchant persists the bank account and the merchant
	// in one local transaction and is the uniqueness authority for ids.
	CreateMerchant(ctx context.Context, merchant *Merchant, account *MerchantBankAccount) error
	GetMerchant(ctx context.Context, merchantID string) (*Merchant, error)
	ListMerchants(ctx context.Context) ([]Merchant, error)
	ListMerchantIDsByPrefix(ctx context.Context, prefix string) ([]string, error)
	CountBankAccounts(ctx context.Context, merchantID string) (int, error)

	// Activity log, newest first
	ListActivity(ctx context.Context) ([]ActivityLogEntry, error)
}

// AuditSink records activity log entries. It is injected rather than called
// ambiently so the lifecycle logic is testable without a real log store.
type AuditSink interface {
	Record(ctx context.Context, merchantID, activityType, description string)
}
