package memory

import (
	"context"
	"maps"
	"time"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// AuditStore implements domain.AuditStore.
type AuditStore struct {
	db  *DB
	now func() time.Time
}

// NewAuditStore creates an AuditStore over db.
func NewAuditStore(db *DB) *AuditStore {
	return &AuditStore{db: db, now: time.Now}
}

// Log appends e, assigning its id and, when unset, its time.
func (s *AuditStore) Log(_ context.Context, e domain.AuditEntry) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	e.ID = int64(len(s.db.audit) + 1)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	e.Detail = maps.Clone(e.Detail)
	s.db.audit = append(s.db.audit, e)
	return nil
}

// List returns entries newest first.
func (s *AuditStore) List(_ context.Context, q domain.AuditQuery) ([]domain.AuditEntry, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	out := make([]domain.AuditEntry, 0, len(s.db.audit))
	for i := len(s.db.audit) - 1; i >= 0; i-- {
		e := s.db.audit[i]
		if q.MatchID != nil && e.MatchID != *q.MatchID {
			continue
		}
		if q.Since != nil && e.CreatedAt.Before(*q.Since) {
			continue
		}
		if q.Until != nil && e.CreatedAt.After(*q.Until) {
			continue
		}
		out = append(out, e)
	}
	return paginate(out, q.Offset, q.Limit), nil
}
