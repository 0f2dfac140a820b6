// Package ledger_repo provides the PostgreSQL implementation of the ledger:
// receivable and payable accounts and the settlements against them.
package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/domain"
	"millstock/internal/domain/ledger"
	"millstock/internal/infrastructure/storage/postgres"
)

const (
	accountsTable    = "led_accounts"
	settlementsTable = "led_settlements"

	accountEntity = "account"
)

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType

	accountCols    []string
	settlementCols []string
}

// NewLedgerRepo creates a new ledger repository.
func NewLedgerRepo(txm *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txm:            txm,
		builder:        squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		accountCols:    postgres.ExtractDBColumns[ledger.Account](),
		settlementCols: postgres.ExtractDBColumns[ledger.Settlement](),
	}
}

var _ ledger.Repository = (*LedgerRepo)(nil)

func (r *LedgerRepo) querier(ctx context.Context) postgres.Querier {
	return r.txm.GetQuerier(ctx)
}

// CreateAccount inserts an account. An order opens at most one account of
// each kind; a second one fails as a duplicate.
func (r *LedgerRepo) CreateAccount(ctx context.Context, a *ledger.Account) error {
	sql, args, err := r.builder.Insert(accountsTable).SetMap(postgres.StructToMap(a)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(fmt.Errorf("insert account: %w", err), accountEntity, a.OrderNumber)
	}
	return nil
}

// GetAccount retrieves an account by ID.
func (r *LedgerRepo) GetAccount(ctx context.Context, accountID id.ID) (*ledger.Account, error) {
	sql, args, err := r.builder.Select(r.accountCols...).
		From(accountsTable).
		Where(squirrel.Eq{"id": accountID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	a := &ledger.Account{}
	if err := pgxscan.Get(ctx, r.querier(ctx), a, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(accountEntity, accountID)
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (r *LedgerRepo) updateAccountQuery(a *ledger.Account) squirrel.UpdateBuilder {
	return r.builder.Update(accountsTable).
		Set("paid_amount", a.PaidAmount).
		Set("unpaid_amount", a.UnpaidAmount).
		Set("status", a.Status).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": a.ID}).
		Where(squirrel.Eq{"version": a.Version})
}

// UpdateAccount writes amounts and status with optimistic locking.
func (r *LedgerRepo) UpdateAccount(ctx context.Context, a *ledger.Account) error {
	sql, args, err := r.updateAccountQuery(a).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(fmt.Errorf("update account: %w", err), accountEntity, a.ID)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(accountEntity, a.ID)
	}

	a.Touch()
	return nil
}

func (r *LedgerRepo) listAccountsQuery(filter ledger.AccountFilter) squirrel.SelectBuilder {
	q := r.builder.Select(r.accountCols...).From(accountsTable)
	if filter.Kind != nil {
		q = q.Where(squirrel.Eq{"kind": string(*filter.Kind)})
	}
	if filter.CounterpartyID != nil {
		q = q.Where(squirrel.Eq{"counterparty_id": *filter.CounterpartyID})
	}
	if filter.OrderID != nil {
		q = q.Where(squirrel.Eq{"order_id": *filter.OrderID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": string(*filter.Status)})
	}
	return q
}

// ListAccounts pages through accounts, oldest first.
func (r *LedgerRepo) ListAccounts(ctx context.Context, filter ledger.AccountFilter) (domain.ListResult[*ledger.Account], error) {
	result := domain.ListResult[*ledger.Account]{
		Items:  []*ledger.Account{},
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.listAccountsQuery(filter)

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}

	querier := r.querier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count accounts: %w", err)
	}

	q = q.OrderBy("created_at", "id")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list accounts: %w", err)
	}
	return result, nil
}

func (r *LedgerRepo) insertSettlementsQuery(settlements []ledger.Settlement) squirrel.InsertBuilder {
	q := r.builder.Insert(settlementsTable).Columns(r.settlementCols...)
	for _, s := range settlements {
		q = q.Values(
			s.ID, s.AccountID, string(s.Kind), s.CounterpartyID,
			s.Amount, s.Date, s.Operator, s.Remark, s.CreatedAt,
		)
	}
	return q
}

// CreateSettlements inserts receipts or payments in one statement.
func (r *LedgerRepo) CreateSettlements(ctx context.Context, settlements []ledger.Settlement) error {
	if len(settlements) == 0 {
		return nil
	}

	sql, args, err := r.insertSettlementsQuery(settlements).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(fmt.Errorf("insert settlements: %w", err), "settlement", settlements[0].AccountID)
	}
	return nil
}

// ListSettlements returns the settlements of an account, oldest first.
func (r *LedgerRepo) ListSettlements(ctx context.Context, accountID id.ID) ([]ledger.Settlement, error) {
	sql, args, err := r.builder.Select(r.settlementCols...).
		From(settlementsTable).
		Where(squirrel.Eq{"account_id": accountID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	out := []ledger.Settlement{}
	if err := pgxscan.Select(ctx, r.querier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	return out, nil
}
