// Package ledger tracks money owed to and by the business: receivables from
// shipped sales, payables from received purchases and dyeing work, and the
// receipts and payments that settle them.
package ledger

import (
	"time"

	"millstock/internal/core/apperror"
	"millstock/internal/core/entity"
	"millstock/internal/core/id"
	"millstock/internal/core/types"
)

// Kind distinguishes receivables from payables.
type Kind string

const (
	KindReceivable Kind = "receivable" // 应收
	KindPayable    Kind = "payable"    // 应付
)

func (k Kind) IsValid() bool {
	return k == KindReceivable || k == KindPayable
}

// SettlementKind returns the document kind that settles k.
func (k Kind) SettlementKind() SettlementKind {
	if k == KindReceivable {
		return SettlementReceipt
	}
	return SettlementPayment
}

// Status is derived from UnpaidAmount and never set directly.
type Status string

const (
	StatusOpen    Status = "未结清"
	StatusSettled Status = "已结清"
)

// Account is an AccountReceivable or AccountPayable.
// PaidAmount + UnpaidAmount == TotalAmount and UnpaidAmount >= 0 always hold.
type Account struct {
	entity.BaseEntity

	Kind           Kind  `db:"kind" json:"kind"`
	CounterpartyID id.ID `db:"counterparty_id" json:"counterpartyId"`

	OrderID     id.ID  `db:"order_id" json:"orderId"`
	OrderNumber string `db:"order_number" json:"orderNumber"`
	OrderType   string `db:"order_type" json:"orderType"`

	TotalAmount  types.Money `db:"total_amount" json:"totalAmount"`
	PaidAmount   types.Money `db:"paid_amount" json:"paidAmount"`
	UnpaidAmount types.Money `db:"unpaid_amount" json:"unpaidAmount"`
	Status       Status      `db:"status" json:"status"`
}

// IsSettled reports whether nothing is left to pay.
func (a *Account) IsSettled() bool {
	return a.Status == StatusSettled
}

// recompute derives UnpaidAmount and Status from Total and Paid.
func (a *Account) recompute() {
	a.UnpaidAmount = a.TotalAmount.Sub(a.PaidAmount)
	if a.UnpaidAmount.IsZero() {
		a.Status = StatusSettled
	} else {
		a.Status = StatusOpen
	}
}

// checkSettle validates a settlement of amount against the account.
func (a *Account) checkSettle(amount types.Money) error {
	if !amount.IsPositive() {
		return apperror.NewValidation("amount must be positive").
			WithDetail("field", "amount").
			WithDetail("account_id", a.ID.String())
	}
	if !types.FitsMoneyPlaces(amount) {
		return apperror.NewValidation("amount has more than 2 decimal places").
			WithDetail("field", "amount").
			WithDetail("account_id", a.ID.String()).
			WithDetail("amount", amount.String())
	}
	if amount.GreaterThan(a.UnpaidAmount) {
		return apperror.NewValidation("amount exceeds unpaid amount").
			WithDetail("field", "amount").
			WithDetail("account_id", a.ID.String()).
			WithDetail("amount", amount.String()).
			WithDetail("unpaid", a.UnpaidAmount.String())
	}
	return nil
}

// settle applies a validated amount.
func (a *Account) settle(amount types.Money) {
	a.PaidAmount = a.PaidAmount.Add(amount)
	a.recompute()
}

// SettlementKind distinguishes receipts (收款) from payments (付款).
type SettlementKind string

const (
	SettlementReceipt SettlementKind = "receipt"
	SettlementPayment SettlementKind = "payment"
)

// Settlement is a Receipt or Payment. Immutable once created.
type Settlement struct {
	ID             id.ID          `db:"id" json:"id"`
	AccountID      id.ID          `db:"account_id" json:"accountId"`
	Kind           SettlementKind `db:"kind" json:"kind"`
	CounterpartyID id.ID          `db:"counterparty_id" json:"counterpartyId"`
	Amount         types.Money    `db:"amount" json:"amount"`
	Date           time.Time      `db:"date" json:"date"`
	Operator       string         `db:"operator" json:"operator"`
	Remark         string         `db:"remark" json:"remark,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
}

// AccountSpec describes an account opened by a committed order.
type AccountSpec struct {
	Kind           Kind
	CounterpartyID id.ID
	OrderID        id.ID
	OrderNumber    string
	OrderType      string
	TotalAmount    types.Money
	PaidAmount     types.Money
}

// Validate checks the spec.
func (s AccountSpec) Validate() error {
	if !s.Kind.IsValid() {
		return apperror.NewValidation("invalid account kind").WithDetail("kind", string(s.Kind))
	}
	if id.IsNil(s.CounterpartyID) {
		return apperror.NewValidation("counterparty is required").WithDetail("field", "counterpartyId")
	}
	if !s.TotalAmount.IsPositive() {
		return apperror.NewValidation("account total must be positive").WithDetail("field", "totalAmount")
	}
	if s.PaidAmount.IsNegative() || s.PaidAmount.GreaterThan(s.TotalAmount) {
		return apperror.NewValidation("paid amount must be between zero and total").
			WithDetail("field", "paidAmount")
	}
	return nil
}

// Meta is the caller-supplied context of a settlement.
type Meta struct {
	Date     time.Time
	Operator string
	Remark   string
}

// Entry is one line of a batch settlement.
type Entry struct {
	AccountID id.ID
	Amount    types.Money
}

// Balance is the open amount of a counterparty for one kind.
type Balance struct {
	CounterpartyID id.ID       `json:"counterpartyId"`
	Kind           Kind        `json:"kind"`
	TotalAmount    types.Money `json:"totalAmount"`
	PaidAmount     types.Money `json:"paidAmount"`
	UnpaidAmount   types.Money `json:"unpaidAmount"`
	OpenAccounts   int         `json:"openAccounts"`
}
