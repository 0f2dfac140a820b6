package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"millstock/internal/core/apperror"
	appctx "millstock/internal/core/context"
	"millstock/internal/core/entity"
	"millstock/internal/core/id"
	"millstock/internal/core/types"
	"millstock/internal/domain"
	"millstock/pkg/logger"
)

// Service holds the ledger primitives. Mutations join the caller's
// transaction; locking belongs to whoever calls them.
type Service struct {
	repo Repository
}

// NewService creates a new ledger service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Open creates the account of a committed order. An upfront payment is part
// of the order, so no settlement is recorded for it.
func (s *Service) Open(ctx context.Context, spec AccountSpec) (*Account, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	a := &Account{
		BaseEntity:     entity.NewBaseEntity(),
		Kind:           spec.Kind,
		CounterpartyID: spec.CounterpartyID,
		OrderID:        spec.OrderID,
		OrderNumber:    spec.OrderNumber,
		OrderType:      spec.OrderType,
		TotalAmount:    spec.TotalAmount,
		PaidAmount:     spec.PaidAmount,
	}
	a.recompute()

	if err := s.repo.CreateAccount(ctx, a); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	logger.Debug(ctx, "account opened",
		"account_id", a.ID, "kind", a.Kind, "order", a.OrderNumber, "unpaid", a.UnpaidAmount.String())
	return a, nil
}

// GetAccount returns an account or NotFound.
func (s *Service) GetAccount(ctx context.Context, accountID id.ID) (*Account, error) {
	a, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("account", accountID)
		}
		return nil, err
	}
	return a, nil
}

// ListAccounts returns a page of accounts.
func (s *Service) ListAccounts(ctx context.Context, filter AccountFilter) (domain.ListResult[*Account], error) {
	if filter.Kind != nil && !filter.Kind.IsValid() {
		return domain.ListResult[*Account]{}, apperror.NewValidation("invalid account kind").
			WithDetail("kind", string(*filter.Kind))
	}
	return s.repo.ListAccounts(ctx, filter)
}

// ListSettlements returns the receipts or payments of an account, oldest first.
func (s *Service) ListSettlements(ctx context.Context, accountID id.ID) ([]Settlement, error) {
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.repo.ListSettlements(ctx, accountID)
}

// CounterpartyBalance sums every account of one kind held against a
// counterparty.
func (s *Service) CounterpartyBalance(ctx context.Context, counterpartyID id.ID, kind Kind) (*Balance, error) {
	if !kind.IsValid() {
		return nil, apperror.NewValidation("invalid account kind").WithDetail("kind", string(kind))
	}

	res, err := s.repo.ListAccounts(ctx, AccountFilter{Kind: &kind, CounterpartyID: &counterpartyID})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	bal := &Balance{
		CounterpartyID: counterpartyID,
		Kind:           kind,
		TotalAmount:    types.Zero(),
		PaidAmount:     types.Zero(),
		UnpaidAmount:   types.Zero(),
	}
	for _, a := range res.Items {
		bal.TotalAmount = bal.TotalAmount.Add(a.TotalAmount)
		bal.PaidAmount = bal.PaidAmount.Add(a.PaidAmount)
		bal.UnpaidAmount = bal.UnpaidAmount.Add(a.UnpaidAmount)
		if !a.IsSettled() {
			bal.OpenAccounts++
		}
	}
	return bal, nil
}

// settle validates every entry against the accounts as they would stand
// after the entries before it, then writes. Nothing is written unless all
// entries pass.
func (s *Service) settle(ctx context.Context, entries []Entry, meta Meta) ([]Settlement, []*Account, error) {
	if len(entries) == 0 {
		return nil, nil, apperror.NewValidation("at least one entry is required").
			WithDetail("field", "entries")
	}

	accounts := make(map[id.ID]*Account, len(entries))
	order := make([]*Account, 0, len(entries))
	for i, e := range entries {
		a, ok := accounts[e.AccountID]
		if !ok {
			loaded, err := s.GetAccount(ctx, e.AccountID)
			if err != nil {
				return nil, nil, err
			}
			a = loaded
			accounts[e.AccountID] = a
			order = append(order, a)
		}
		if err := a.checkSettle(e.Amount); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				appErr.WithDetail("entry", i)
			}
			return nil, nil, err
		}
		a.settle(e.Amount)
	}

	date := meta.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	operator := strings.TrimSpace(meta.Operator)
	if operator == "" {
		operator = appctx.OperatorName(ctx)
	}
	now := time.Now().UTC()

	settlements := make([]Settlement, 0, len(entries))
	for _, e := range entries {
		a := accounts[e.AccountID]
		settlements = append(settlements, Settlement{
			ID:             id.New(),
			AccountID:      a.ID,
			Kind:           a.Kind.SettlementKind(),
			CounterpartyID: a.CounterpartyID,
			Amount:         e.Amount,
			Date:           date,
			Operator:       operator,
			Remark:         meta.Remark,
			CreatedAt:      now,
		})
	}

	for _, a := range order {
		if err := s.repo.UpdateAccount(ctx, a); err != nil {
			return nil, nil, err
		}
	}
	if err := s.repo.CreateSettlements(ctx, settlements); err != nil {
		return nil, nil, fmt.Errorf("create settlements: %w", err)
	}
	return settlements, order, nil
}
