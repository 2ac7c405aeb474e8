// Package cache holds the process-wide snapshot of active setting records.
// Entries are invalidated on every successful write, never by time alone, so
// a resolver read after an admin edit can never serve the old price.
package cache

import (
	"sync"

	settingdomain "github.com/smallbiznis/tabung/internal/setting/domain"
)

// Cache guards read-through populates with a per-key generation counter.
// Invalidate and Reset bump the counter, and a populate that started before
// the bump is discarded instead of pinning the pre-write snapshot.
type Cache struct {
	mu    sync.RWMutex
	epoch uint64
	gens  map[string]uint64
	items map[string][]settingdomain.SettingRecord
}

func New() *Cache {
	return &Cache{
		gens:  make(map[string]uint64),
		items: make(map[string][]settingdomain.SettingRecord),
	}
}

// Get returns the cached active records for a setting key. The slice is a
// copy; callers may not observe later invalidation.
func (c *Cache) Get(settingKey string) ([]settingdomain.SettingRecord, bool) {
	if c == nil || settingKey == "" {
		return nil, false
	}
	c.mu.RLock()
	records, ok := c.items[settingKey]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return append([]settingdomain.SettingRecord(nil), records...), true
}

// Generation returns the current write generation for a setting key. Read it
// before loading from the store and pass it back to Set.
func (c *Cache) Generation(settingKey string) uint64 {
	if c == nil || settingKey == "" {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch + c.gens[settingKey]
}

// Set stores a snapshot loaded at the given generation. The snapshot is
// dropped when an invalidation landed after the caller read the generation.
func (c *Cache) Set(settingKey string, generation uint64, records []settingdomain.SettingRecord) {
	if c == nil || settingKey == "" {
		return
	}
	cloned := append([]settingdomain.SettingRecord(nil), records...)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch+c.gens[settingKey] != generation {
		return
	}
	c.items[settingKey] = cloned
}

// Invalidate drops the snapshot for one setting key.
func (c *Cache) Invalidate(settingKey string) {
	if c == nil || settingKey == "" {
		return
	}
	c.mu.Lock()
	delete(c.items, settingKey)
	c.gens[settingKey]++
	c.mu.Unlock()
}

// Reset drops every snapshot, used after batch imports.
func (c *Cache) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.items = make(map[string][]settingdomain.SettingRecord)
	c.epoch++
	c.mu.Unlock()
}
