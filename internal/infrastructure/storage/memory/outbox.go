package memory

import (
	"context"

	"millstock/internal/core/id"
	"millstock/internal/domain/audit"
	"millstock/internal/domain/events"
)

var (
	_ events.Publisher = (*Store)(nil)
	_ audit.Log        = (*Store)(nil)
)

// Publish stages events; they become visible when the transaction commits.
func (s *Store) Publish(ctx context.Context, evts ...events.Event) error {
	if len(evts) == 0 {
		return nil
	}
	return s.inTx(ctx, func(ctx context.Context) error {
		t := txFrom(ctx)
		t.outbox = append(t.outbox, evts...)
		return nil
	})
}

// Record stages an audit entry.
func (s *Store) Record(ctx context.Context, entry audit.Entry) error {
	return s.inTx(ctx, func(ctx context.Context) error {
		t := txFrom(ctx)
		t.auditLog = append(t.auditLog, entry)
		return nil
	})
}

// Events returns committed events, oldest first.
func (s *Store) Events() []events.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]events.Event(nil), s.outbox...)
}

// History implements audit.Log.
func (s *Store) History(_ context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = audit.DefaultHistoryLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []audit.Entry{}
	for i := len(s.auditLog) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.auditLog[i]
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

// AuditEntries returns committed audit entries, oldest first.
func (s *Store) AuditEntries() []audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Entry(nil), s.auditLog...)
}
