package memory

import (
	"context"
	"sort"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/domain"
	"millstock/internal/domain/ledger"
)

// LedgerRepo stores accounts and settlements.
type LedgerRepo struct {
	s *Store
}

var _ ledger.Repository = (*LedgerRepo)(nil)

// Ledger returns the ledger repository.
func (s *Store) Ledger() *LedgerRepo {
	return &LedgerRepo{s: s}
}

func (r *LedgerRepo) CreateAccount(ctx context.Context, a *ledger.Account) error {
	return insert(ctx, r.s, r.s.accounts, a)
}

func (r *LedgerRepo) GetAccount(ctx context.Context, accountID id.ID) (*ledger.Account, error) {
	a, ok := get(ctx, r.s, r.s.accounts, accountID)
	if !ok {
		return nil, apperror.NewNotFound("account", accountID)
	}
	return a, nil
}

func (r *LedgerRepo) UpdateAccount(ctx context.Context, a *ledger.Account) error {
	if a.UnpaidAmount.IsNegative() {
		return apperror.NewValidation("unpaid amount must not be negative").
			WithDetail("account_id", a.ID.String())
	}
	return update(ctx, r.s, r.s.accounts, a)
}

func (r *LedgerRepo) ListAccounts(ctx context.Context, f ledger.AccountFilter) (domain.ListResult[*ledger.Account], error) {
	items := scan(ctx, r.s, r.s.accounts, func(a *ledger.Account) bool {
		if f.Kind != nil && a.Kind != *f.Kind {
			return false
		}
		if f.CounterpartyID != nil && a.CounterpartyID != *f.CounterpartyID {
			return false
		}
		if f.OrderID != nil && a.OrderID != *f.OrderID {
			return false
		}
		if f.Status != nil && a.Status != *f.Status {
			return false
		}
		return true
	})
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return domain.Paginate(items, domain.ListFilter{Limit: f.Limit, Offset: f.Offset}), nil
}

func (r *LedgerRepo) CreateSettlements(ctx context.Context, settlements []ledger.Settlement) error {
	return r.s.inTx(ctx, func(ctx context.Context) error {
		t := txFrom(ctx)
		t.settlements = append(t.settlements, settlements...)
		return nil
	})
}

func (r *LedgerRepo) ListSettlements(ctx context.Context, accountID id.ID) ([]ledger.Settlement, error) {
	r.s.mu.RLock()
	all := append([]ledger.Settlement(nil), r.s.settlements...)
	r.s.mu.RUnlock()
	if t := txFrom(ctx); t != nil {
		all = append(all, t.settlements...)
	}

	out := make([]ledger.Settlement, 0)
	for _, st := range all {
		if st.AccountID == accountID {
			out = append(out, st)
		}
	}
	return out, nil
}
