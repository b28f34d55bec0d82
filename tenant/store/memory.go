// Package store provides Backend implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/vacation-engine/tenant"
)

// =============================================================================
// MEMORY BACKEND - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	items map[itemKey]map[string]string
	feed  *tenant.Feed
}

type itemKey struct {
	PK string
	SK string
}

// NewMemory creates an empty in-memory backend. feed may be nil when change
// delivery is not needed.
func NewMemory(feed *tenant.Feed) *Memory {
	return &Memory{
		items: make(map[itemKey]map[string]string),
		feed:  feed,
	}
}

func (m *Memory) publish(c tenant.Change) {
	if m.feed != nil {
		m.feed.Publish(c)
	}
}

// PutItem stores the full item, overwriting any existing record.
func (m *Memory) PutItem(_ context.Context, item tenant.Item) error {
	k := itemKey{PK: item.PK, SK: item.SK}
	fields := copyFields(item.Fields)

	m.mu.Lock()
	defer m.mu.Unlock()
	_, existed := m.items[k]
	m.items[k] = fields

	kind := tenant.EventInsert
	if existed {
		kind = tenant.EventModify
	}
	// Published under the lock so delivery order is commit order.
	m.publish(tenant.Change{Kind: kind, PK: item.PK, SK: item.SK, NewImage: copyFields(fields)})
	return nil
}

func (m *Memory) GetItem(_ context.Context, pk, sk string) (tenant.Item, bool, error) {
	m.mu.RLock()
	fields, ok := m.items[itemKey{PK: pk, SK: sk}]
	m.mu.RUnlock()
	if !ok {
		return tenant.Item{}, false, nil
	}
	return tenant.Item{PK: pk, SK: sk, Fields: copyFields(fields)}, true, nil
}

// UpdateItem merges updates into an existing item. Missing items are left
// untouched and emit no change.
func (m *Memory) UpdateItem(_ context.Context, pk, sk string, updates map[string]string) (tenant.Item, bool, error) {
	k := itemKey{PK: pk, SK: sk}

	m.mu.Lock()
	defer m.mu.Unlock()
	fields, ok := m.items[k]
	if !ok {
		return tenant.Item{}, false, nil
	}
	for name, value := range updates {
		fields[name] = value
	}
	image := copyFields(fields)

	m.publish(tenant.Change{Kind: tenant.EventModify, PK: pk, SK: sk, NewImage: copyFields(image)})
	return tenant.Item{PK: pk, SK: sk, Fields: image}, true, nil
}

// DeleteItem removes an item. Deleting an absent key is a no-op.
func (m *Memory) DeleteItem(_ context.Context, pk, sk string) (bool, error) {
	k := itemKey{PK: pk, SK: sk}

	m.mu.Lock()
	defer m.mu.Unlock()
	_, existed := m.items[k]
	delete(m.items, k)

	if existed {
		m.publish(tenant.Change{Kind: tenant.EventRemove, PK: pk, SK: sk})
	}
	return existed, nil
}

// QueryPrefix returns all items under pk whose sort key starts with skPrefix,
// ordered by sort key.
func (m *Memory) QueryPrefix(_ context.Context, pk, skPrefix string) ([]tenant.Item, error) {
	m.mu.RLock()
	var out []tenant.Item
	for k, fields := range m.items {
		if k.PK == pk && hasPrefix(k.SK, skPrefix) {
			out = append(out, tenant.Item{PK: k.PK, SK: k.SK, Fields: copyFields(fields)})
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SK < out[j].SK })
	return out, nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func copyFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
