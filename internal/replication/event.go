package replication

// MerchantCreatedEvent is the payload published after a merchant is created
// locally. Downstream sub-systems consume it to mirror the merchant record;
// they must be idempotent on MerchantID since delivery is at-least-once when
// the broker is reachable.
type MerchantCreatedEvent struct {
	MerchantID    string `json:"merchantId"`
	Name          string `json:"merchantName"`
	Bank          string `json:"merchantBank"`
	Code          string `json:"merchantCode"`
	PhoneNum      string `json:"merchantPhoneNum"`
	Address       string `json:"merchantAddress"`
	ContactPerson string `json:"merchantContactPerson"`
	Status        string `json:"merchantStatus"`
	CreatedBy     string `json:"createdBy"`
	CreatedAt     string `json:"createdAt"`

	// Bank account info
	AccountNumber       string `json:"merchantAccNum"`
	AccountName         string `json:"merchantAccName"`
	TransactionCurrency string `json:"transactionCurrency"`
	SettlementCurrency  string `json:"settlementCurrency"`
}
