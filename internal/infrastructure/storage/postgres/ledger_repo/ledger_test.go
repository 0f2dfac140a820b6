package ledger_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"millstock/internal/core/entity"
	"millstock/internal/core/id"
	"millstock/internal/core/types"
	"millstock/internal/domain/ledger"
)

func TestLedgerRepo_Columns(t *testing.T) {
	repo := NewLedgerRepo(nil)

	assert.Equal(t, []string{
		"id", "version", "created_at", "updated_at",
		"kind", "counterparty_id", "order_id", "order_number", "order_type",
		"total_amount", "paid_amount", "unpaid_amount", "status",
	}, repo.accountCols)
	assert.Equal(t, []string{
		"id", "account_id", "kind", "counterparty_id", "amount", "date", "operator", "remark", "created_at",
	}, repo.settlementCols)
}

func TestLedgerRepo_UpdateAccountIsVersionChecked(t *testing.T) {
	repo := NewLedgerRepo(nil)
	a := &ledger.Account{
		BaseEntity:   entity.NewBaseEntity(),
		TotalAmount:  types.MustMoney("100"),
		PaidAmount:   types.MustMoney("40"),
		UnpaidAmount: types.MustMoney("60"),
		Status:       ledger.StatusOpen,
	}
	a.Version = 2

	sql, args, err := repo.updateAccountQuery(a).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"UPDATE led_accounts SET paid_amount = $1, unpaid_amount = $2, status = $3, version = version + 1, updated_at = NOW() WHERE id = $4 AND version = $5",
		sql)
	require.Len(t, args, 5)
	assert.Equal(t, a.ID.String(), args[3])
	assert.Equal(t, 2, args[4])
}

func TestLedgerRepo_ListAccountsQuery(t *testing.T) {
	repo := NewLedgerRepo(nil)
	kind := ledger.KindReceivable
	status := ledger.StatusOpen
	customer := id.New()

	sql, args, err := repo.listAccountsQuery(ledger.AccountFilter{
		Kind:           &kind,
		CounterpartyID: &customer,
		Status:         &status,
	}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM led_accounts WHERE kind = $1 AND counterparty_id = $2 AND status = $3")
	assert.Equal(t, []any{"receivable", customer.String(), "未结清"}, args)
}

func TestLedgerRepo_InsertSettlementsQuery(t *testing.T) {
	repo := NewLedgerRepo(nil)
	now := time.Now().UTC()
	mk := func(amount string) ledger.Settlement {
		return ledger.Settlement{
			ID: id.New(), AccountID: id.New(), Kind: ledger.SettlementReceipt,
			CounterpartyID: id.New(), Amount: types.MustMoney(amount),
			Date: now, Operator: "财务", CreatedAt: now,
		}
	}

	sql, args, err := repo.insertSettlementsQuery([]ledger.Settlement{mk("10"), mk("20.5")}).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"INSERT INTO led_settlements (id,account_id,kind,counterparty_id,amount,date,operator,remark,created_at) "+
			"VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9),($10,$11,$12,$13,$14,$15,$16,$17,$18)",
		sql)
	assert.Len(t, args, 18)
	assert.Equal(t, "receipt", args[2])
}
