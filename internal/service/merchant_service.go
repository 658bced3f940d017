package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/andrisetia/merchant-ingest-be/internal/domain"
	"github.com/andrisetia/merchant-ingest-be/internal/replication"
	"github.com/andrisetia/merchant-ingest-be/pkg/logger"
)

const merchantIDPrefix = "M"

// CreateMerchantInput carries the merchant and default bank account fields.
type CreateMerchantInput struct {
	MerchantID    string `json:"merchantId"`
	Name          string `json:"merchantName"`
	Bank          string `json:"merchantBank"`
	Code          string `json:"merchantCode"`
	PhoneNum      string `json:"merchantPhoneNum"`
	Address       string `json:"merchantAddress"`
	ContactPerson string `json:"merchantContactPerson"`
	Status        string `json:"merchantStatus"`

	AccountNumber       string `json:"merchantAccNum"`
	AccountName         string `json:"merchantAccName"`
	TransactionCurrency string `json:"transactionCurrency"`
	SettlementCurrency  string `json:"settlementCurrency"`

	CreatedBy string `json:"createdBy"`
}

// MerchantService registers merchants and hands newly-created ones to the
// replication publisher.
type MerchantService struct {
	repo      domain.Repository
	publisher replication.Publisher
	log       *logger.Logger
}

func NewMerchantService(repo domain.Repository, publisher replication.Publisher, log *logger.Logger) *MerchantService {
	return &MerchantService{
		repo:      repo,
		publisher: publisher,
		log:       log,
	}
}

// CreateMerchant creates the default bank account and the merchant in one
// local transaction, then publishes the replication event. The publish step
// sits outside the transaction boundary: it runs only after the local commit
// and its outcome never reaches the caller.
func (s *MerchantService) CreateMerchant(ctx context.Context, input CreateMerchantInput) (*domain.Merchant, error) {
	ctx = logger.WithMerchantID(ctx, input.MerchantID)

	if err := validateMerchantInput(input); err != nil {
		return nil, err
	}

	now := time.Now()
	account := &domain.MerchantBankAccount{
		AccountID:           uuid.New().String(),
		MerchantAccNum:      input.AccountNumber,
		MerchantAccName:     input.AccountName,
		TransactionCurrency: input.TransactionCurrency,
		SettlementCurrency:  input.SettlementCurrency,
		IsDefault:           true,
		CreatedBy:           input.CreatedBy,
		CreatedAt:           now,
	}

	status := input.Status
	if status == "" {
		status = "ACTIVE"
	}

	merchant := &domain.Merchant{
		MerchantID:    input.MerchantID,
		Name:          input.Name,
		Bank:          input.Bank,
		Code:          input.Code,
		PhoneNum:      input.PhoneNum,
		Address:       input.Address,
		ContactPerson: input.ContactPerson,
		Status:        status,
		CreatedBy:     input.CreatedBy,
		CreatedAt:     now,
	}

	if err := s.repo.CreateMerchant(ctx, merchant, account); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "Merchant created",
		"account_id", merchant.AccountID,
	)

	s.publisher.PublishMerchantCreated(ctx, replication.MerchantCreatedEvent{
		MerchantID:          merchant.MerchantID,
		Name:                merchant.Name,
		Bank:                merchant.Bank,
		Code:                merchant.Code,
		PhoneNum:            merchant.PhoneNum,
		Address:             merchant.Address,
		ContactPerson:       merchant.ContactPerson,
		Status:              merchant.Status,
		CreatedBy:           input.CreatedBy,
		CreatedAt:           merchant.CreatedAt.Format(time.RFC3339),
		AccountNumber:       account.MerchantAccNum,
		AccountName:         account.MerchantAccName,
		TransactionCurrency: account.TransactionCurrency,
		SettlementCurrency:  account.SettlementCurrency,
	})

	return merchant, nil
}

func validateMerchantInput(input CreateMerchantInput) error {
	switch {
	case input.MerchantID == "":
		return fmt.Errorf("%w: merchantId", domain.ErrMissingField)
	case input.Name == "":
		return fmt.Errorf("%w: merchantName", domain.ErrMissingField)
	case input.AccountNumber == "":
		return fmt.Errorf("%w: merchantAccNum", domain.ErrMissingField)
	case input.AccountName == "":
		return fmt.Errorf("%w: merchantAccName", domain.ErrMissingField)
	}
	return nil
}

// NextMerchantID suggests the next id in the M-prefixed sequence. The value
// is advisory: two concurrent callers can get the same suggestion, and the
// conflict check inside CreateMerchant is what actually enforces uniqueness.
func (s *MerchantService) NextMerchantID(ctx context.Context) (string, error) {
	ids, err := s.repo.ListMerchantIDsByPrefix(ctx, merchantIDPrefix)
	if err != nil {
		return "", err
	}

	maxNum := 0
	for _, id := range ids {
		num, err := strconv.Atoi(strings.TrimPrefix(id, merchantIDPrefix))
		if err != nil {
			// Non-numeric suffixes don't participate in the sequence.
			continue
		}
		if num > maxNum {
			maxNum = num
		}
	}

	return fmt.Sprintf("%s%03d", merchantIDPrefix, maxNum+1), nil
}

func (s *MerchantService) GetMerchant(ctx context.Context, merchantID string) (*domain.Merchant, error) {
	return s.repo.GetMerchant(ctx, merchantID)
}

func (s *MerchantService) ListMerchants(ctx context.Context) ([]domain.Merchant, error) {
	return s.repo.ListMerchants(ctx)
}

func (s *MerchantService) MerchantExists(ctx context.Context, merchantID string) (bool, error) {
	_, err := s.repo.GetMerchant(ctx, merchantID)
	if err == domain.ErrMerchantNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
