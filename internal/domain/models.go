package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type BatchStatus string

const (
	// BatchStatusReceived is the initial status for merchant self-serve intake.
	BatchStatusReceived BatchStatus = "RECEIVED"
	// BatchStatusUploaded is the initial status for staff-initiated intake.
	BatchStatusUploaded BatchStatus = "UPLOADED"
	// BatchStatusReady means every row materialized without a fatal error.
	BatchStatusReady BatchStatus = "READY"
	// BatchStatusFailed means storage or parsing aborted the batch. Rows
	// persisted before the failure are kept.
	BatchStatusFailed BatchStatus = "FAILED"
)

type TransactionStatus string

const (
	// TransactionStatusPending is the only status this pipeline assigns;
	// settlement advances it elsewhere.
	TransactionStatusPending TransactionStatus = "PENDING"
)

// Activity types recorded in the merchant activity log.
const (
	ActivityUploadBatch        = "UPLOAD_BATCH"
	ActivityUploadBatchFailed  = "UPLOAD_BATCH_FAILED"
	ActivityProcessCSV         = "PROCESS_CSV"
	ActivityProcessCSVFailed   = "PROCESS_CSV_FAILED"
	ActivityProcessExcel       = "PROCESS_EXCEL"
	ActivityProcessExcelFailed = "PROCESS_EXCEL_FAILED"
	ActivityUpdateBatch        = "UPDATE_BATCH"
	ActivityDeleteBatch        = "DELETE_BATCH"
	ActivityDeleteTransactions = "DELETE_TRANSACTIONS"
	ActivityDeleteFile         = "DELETE_FILE"
	ActivityDeleteBatchFailed  = "DELETE_BATCH_FAILED"
)

// Batch is one uploaded file and its derived processing state.
type Batch struct {
	ID                string      `json:"batchId" gorm:"column:batch_id;primaryKey"`
	FileName          string      `json:"fileName" gorm:"column:file_name;not null"`
	OriginalFileName  string      `json:"originalFileName" gorm:"column:original_file_name"`
	MerchantID        string      `json:"merchantId" gorm:"column:merchant_id;not null;index"`
	TotalCount        int         `json:"totalCount" gorm:"column:total_count"`
	TotalSuccessCount int         `json:"totalSuccessCount" gorm:"column:total_success_count"`
	TotalFailCount    int         `json:"totalFailCount" gorm:"column:total_fail_count"`
	ProcessedBy       string      `json:"processedBy" gorm:"column:processed_by"`
	Status            BatchStatus `json:"status" gorm:"column:batch_status;not null"`
	CreatedBy         string      `json:"createdBy" gorm:"column:created_by;not null"`
	CreatedAt         time.Time   `json:"createdAt" gorm:"column:created_at;not null"`
	LastModifiedBy    string      `json:"lastModifiedBy" gorm:"column:last_modified_by"`
	LastModifiedAt    *time.Time  `json:"lastModifiedAt,omitempty" gorm:"column:last_modified_at"`
	DeletedAt         *time.Time  `json:"deletedAt,omitempty" gorm:"column:deleted_at"`
}

func (Batch) TableName() string { return "batches" }

// IncomingFile is the one-to-one record created for merchant-initiated
// uploads alongside the batch it seeds.
type IncomingFile struct {
	ID               string     `json:"batchFileId" gorm:"column:batch_file_id;primaryKey"`
	MerchantID       string     `json:"merchantId" gorm:"column:merchant_id;not null;index"`
	BatchID          string     `json:"batchId" gorm:"column:batch_id;not null"`
	OriginalFilename string     `json:"originalFilename" gorm:"column:original_filename"`
	StorageURI       string     `json:"storageUri" gorm:"column:storage_uri"`
	SizeBytes        int64      `json:"sizeBytes" gorm:"column:size_bytes"`
	TotalRecordCount int        `json:"totalRecordCount" gorm:"column:total_record_count"`
	SuccessCount     int        `json:"successCount" gorm:"column:success_count"`
	FailCount        int        `json:"failCount" gorm:"column:fail_count"`
	Status           string     `json:"fileStatus" gorm:"column:file_status"`
	Remark           string     `json:"remark,omitempty" gorm:"column:transaction_record_remark"`
	CreatedBy        string     `json:"createdBy" gorm:"column:create_by"`
	CreatedAt        time.Time  `json:"createdAt" gorm:"column:created_at"`
	LastModifiedBy   string     `json:"lastModifiedBy" gorm:"column:last_modified_by"`
	LastModifiedAt   *time.Time `json:"lastModifiedAt,omitempty" gorm:"column:last_modified_at"`
	DeletedAt        *time.Time `json:"deletedAt,omitempty" gorm:"column:deleted_at"`
}

func (IncomingFile) TableName() string { return "incoming_batch_files" }

// Transaction is one materialized row of a batch. MerchantID is denormalized
// from the parent batch and must always equal it.
type Transaction struct {
	ID            string            `json:"id" gorm:"column:id;primaryKey"`
	BatchID       string            `json:"batchId" gorm:"column:batch_id;not null;index"`
	MerchantID    string            `json:"merchantId" gorm:"column:merchant_id;not null"`
	AccountNumber string            `json:"accountNumber" gorm:"column:account_number;not null"`
	Amount        decimal.Decimal   `json:"amount" gorm:"column:amount;type:decimal(20,4);not null"`
	Currency      string            `json:"currency" gorm:"column:currency;not null"`
	Status        TransactionStatus `json:"status" gorm:"column:status;not null"`
	Remarks       string            `json:"remarks,omitempty" gorm:"column:remarks"`
	CreatedBy     string            `json:"createdBy" gorm:"column:created_by;not null"`
	CreatedAt     time.Time         `json:"createdAt" gorm:"column:created_at;not null"`
}

func (Transaction) TableName() string { return "transactions" }

// ActivityLogEntry is an append-only audit record. Entries are never mutated
// or deleted; display order is timestamp descending.
type ActivityLogEntry struct {
	ID           string    `json:"id" gorm:"column:id;primaryKey"`
	MerchantID   string    `json:"merchantId" gorm:"column:merchant_id;index"`
	ActivityType string    `json:"activityType" gorm:"column:activity_type"`
	Description  string    `json:"description" gorm:"column:description"`
	Timestamp    time.Time `json:"timestamp" gorm:"column:timestamp"`
}

func (ActivityLogEntry) TableName() string { return "merchant_activity_log" }

// Merchant is a registered merchant and its link to the default bank account.
type Merchant struct {
	MerchantID     string     `json:"merchantId" gorm:"column:merchant_id;primaryKey"`
	AccountID      string     `json:"accountId" gorm:"column:account_id"`
	Name           string     `json:"merchantName" gorm:"column:merchant_name;not null"`
	Bank           string     `json:"merchantBank" gorm:"column:merchant_bank"`
	Code           string     `json:"merchantCode" gorm:"column:merchant_code"`
	PhoneNum       string     `json:"merchantPhoneNum" gorm:"column:merchant_phone_num"`
	Address        string     `json:"merchantAddress" gorm:"column:merchant_address"`
	ContactPerson  string     `json:"merchantContactPerson" gorm:"column:merchant_contact_person"`
	Status         string     `json:"merchantStatus" gorm:"column:merchant_status"`
	CreatedBy      string     `json:"createdBy" gorm:"column:create_by"`
	CreatedAt      time.Time  `json:"createdAt" gorm:"column:created_at"`
	LastModifiedBy string     `json:"lastModifiedBy" gorm:"column:last_modified_by"`
	LastModifiedAt *time.Time `json:"lastModifiedAt,omitempty" gorm:"column:last_modified_at"`
	DeletedAt      *time.Time `json:"deletedAt,omitempty" gorm:"column:deleted_at"`
}

func (Merchant) TableName() string { return "merchant_info" }

// MerchantBankAccount is created together with its merchant, marked default.
type MerchantBankAccount struct {
	AccountID           string     `json:"accountId" gorm:"column:account_id;primaryKey"`
	MerchantAccNum      string     `json:"merchantAccNum" gorm:"column:merchant_acc_num;not null"`
	MerchantAccName     string     `json:"merchantAccName" gorm:"column:merchant_acc_name;not null"`
	TransactionCurrency string     `json:"transactionCurrency" gorm:"column:transaction_currency;not null"`
	SettlementCurrency  string     `json:"settlementCurrency" gorm:"column:settlement_currency;not null"`
	IsDefault           bool       `json:"isDefault" gorm:"column:is_default"`
	CreatedBy           string     `json:"createdBy" gorm:"column:create_by"`
	CreatedAt           time.Time  `json:"createdAt" gorm:"column:created_at"`
	LastModifiedBy      string     `json:"lastModifiedBy" gorm:"column:last_modified_by"`
	LastModifiedAt      *time.Time `json:"lastModifiedAt,omitempty" gorm:"column:last_modified_at"`
	DeletedAt           *time.Time `json:"deletedAt,omitempty" gorm:"column:deleted_at"`
}

func (MerchantBankAccount) TableName() string { return "merchant_bank_acc" }

// BatchRow is one parsed row of an uploaded file, before materialization.
type BatchRow struct {
	AccountNumber string
	Amount        decimal.Decimal
	Currency      string
	Remarks       string
}

// BatchPatch carries the mutable batch fields for partial updates.
type BatchPatch struct {
	MerchantID *string      `json:"merchantId,omitempty"`
	Status     *BatchStatus `json:"status,omitempty"`
}

// DeleteResult reports the outcome of a batch deletion across the database
// and the object store. The two sides are not atomic: DBDeleted may be true
// while FileDeleted is false.
type DeleteResult struct {
	TransactionsDeleted int    `json:"transactionsDeleted"`
	DBDeleted           bool   `json:"dbDeleted"`
	FileDeleted         bool   `json:"fileDeleted"`
	FileError           string `json:"fileError,omitempty"`
}
