package ledger

import (
	"context"
	"fmt"

	"millstock/internal/core/id"
	"millstock/internal/core/lockkey"
	"millstock/internal/core/types"
	"millstock/internal/domain/audit"
	"millstock/internal/domain/events"
	"millstock/pkg/logger"
)

// Runner executes fn as one serialized, retried atomic unit holding keys.
// The posting engine implements it.
type Runner interface {
	Run(ctx context.Context, keys []string, fn func(ctx context.Context) error) error
}

// SettlementService registers receipts and payments.
type SettlementService struct {
	ledger    *Service
	runner    Runner
	publisher events.Publisher
	audit     audit.Sink
}

// NewSettlementService creates a settlement service.
func NewSettlementService(ledger *Service, runner Runner, publisher events.Publisher, sink audit.Sink) *SettlementService {
	return &SettlementService{ledger: ledger, runner: runner, publisher: publisher, audit: sink}
}

// RegisterPayment settles amount against one account.
func (s *SettlementService) RegisterPayment(ctx context.Context, accountID id.ID, amount types.Money, meta Meta) (*Settlement, error) {
	list, err := s.RegisterBatchPayment(ctx, []Entry{{AccountID: accountID, Amount: amount}}, meta)
	if err != nil {
		return nil, err
	}
	return &list[0], nil
}

// RegisterBatchPayment settles several accounts at once. Either every entry
// is applied or none is.
func (s *SettlementService) RegisterBatchPayment(ctx context.Context, entries []Entry, meta Meta) ([]Settlement, error) {
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, lockkey.Account(e.AccountID))
	}

	var out []Settlement
	err := s.runner.Run(ctx, keys, func(ctx context.Context) error {
		settlements, accounts, err := s.ledger.settle(ctx, entries, meta)
		if err != nil {
			return err
		}

		evts := make([]events.Event, 0, len(accounts))
		for _, a := range accounts {
			evts = append(evts, events.New("account", a.ID, events.TypeAccountSettled, map[string]any{
				"kind":         string(a.Kind),
				"orderId":      a.OrderID.String(),
				"paidAmount":   a.PaidAmount.String(),
				"unpaidAmount": a.UnpaidAmount.String(),
				"status":       string(a.Status),
			}))
			entry := audit.NewEntry(ctx, "account", a.ID, audit.ActionSettle, map[string]any{
				"paidAmount":   a.PaidAmount.String(),
				"unpaidAmount": a.UnpaidAmount.String(),
				"status":       string(a.Status),
			})
			if err := s.audit.Record(ctx, entry); err != nil {
				return fmt.Errorf("audit settlement: %w", err)
			}
		}
		if err := s.publisher.Publish(ctx, evts...); err != nil {
			return fmt.Errorf("publish settlement events: %w", err)
		}

		out = settlements
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "settlements registered", "count", len(out))
	return out, nil
}
