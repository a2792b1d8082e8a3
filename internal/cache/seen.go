package cache

import (
	"time"

	"github.com/ppiankov/legiswatch/internal/model"
)

// SeenStore remembers which bill versions were already alerted, so an
// operator can opt into suppressing repeats across daily runs
type SeenStore struct {
	cache Cache
	ttl   time.Duration
}

// NewSeenStore creates a seen store on top of c
func NewSeenStore(c Cache, ttl time.Duration) *SeenStore {
	return &SeenStore{cache: c, ttl: ttl}
}

// NewSeenStoreFromConfig returns a disk-backed store, or nil when dedup is off
func NewSeenStoreFromConfig(cfg model.DedupConfig) *SeenStore {
	if !cfg.Enabled {
		return nil
	}
	return NewSeenStore(NewDiskCache(cfg.Dir, cfg.TTL), cfg.TTL)
}

// Seen reports whether this bill version was alerted before
func (s *SeenStore) Seen(bill model.BillRecord) bool {
	_, found := s.cache.Get(SeenKey(bill.Key(), bill.ContentHash()))
	return found
}

// Mark records the alert for this bill version
func (s *SeenStore) Mark(alert model.ComplianceAlert) error {
	return s.cache.Set(SeenKey(alert.BillKey, alert.ContentHash), []byte(alert.AlertID), s.ttl)
}
