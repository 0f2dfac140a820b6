package dto

import (
	"time"

	"millstock/internal/core/id"
	"millstock/internal/core/types"
	"millstock/internal/domain/ledger"
)

// PaymentRequest registers one receipt or payment against an account.
type PaymentRequest struct {
	Amount types.Money `json:"amount"`
	Date   *time.Time  `json:"date"`
	Remark string      `json:"remark"`
}

// BatchPaymentEntry is one account of a batch payment.
type BatchPaymentEntry struct {
	AccountID id.ID       `json:"accountId" binding:"required"`
	Amount    types.Money `json:"amount"`
}

// BatchPaymentRequest settles several accounts at once; all or none apply.
type BatchPaymentRequest struct {
	Entries []BatchPaymentEntry `json:"entries" binding:"required,min=1,dive"`
	Date    *time.Time          `json:"date"`
	Remark  string              `json:"remark"`
}

// ToEntries maps the request entries.
func (r BatchPaymentRequest) ToEntries() []ledger.Entry {
	out := make([]ledger.Entry, 0, len(r.Entries))
	for _, e := range r.Entries {
		out = append(out, ledger.Entry{AccountID: e.AccountID, Amount: e.Amount})
	}
	return out
}

// Meta builds the settlement metadata; a missing date means now.
func Meta(date *time.Time, operator, remark string) ledger.Meta {
	m := ledger.Meta{Operator: operator, Remark: remark}
	if date != nil {
		m.Date = *date
	}
	return m
}
