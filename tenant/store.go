/*
store.go - Workspace-scoped keyed-record store

PURPOSE:
  Store is the only way domain code touches persisted records. It rewrites
  every key field with the workspace prefix before the backend sees it, and
  strips the prefix again before results reach the caller. Domain code works
  with natural keys only.

SCOPING CONTRACT:
  The workspace id is an explicit argument on every call, never mutable state
  on the handle. A handle is therefore safe to share across concurrent
  invocations and across workspaces - there is no context to go stale.
  An empty workspace id fails with ErrNoWorkspace, and keys that already
  carry a workspace prefix fail with ErrScopedKey: a pre-scoped key could
  address a different workspace than the scope argument names.

ABSENCE IS NOT EXCEPTIONAL:
  Get returns ok=false for a missing record, Query returns an empty slice,
  Delete of an absent key is a no-op, Update of an absent key changes nothing.
  Only real backend failures produce errors.

ATOMICITY:
  Backends guarantee per-key atomicity for Put/Update/Delete. There are NO
  cross-key transactions: a write that depends on a prior read races with
  concurrent writers, and callers must tolerate that.

AUDIT:
  Every mutating call is logged with the operation name and the already
  prefixed keys.

SEE ALSO:
  - keys.go: key composition and workspace prefixing
  - feed.go: change emission after committed writes
  - store/memory.go, store/sqlite: backend implementations
*/
package tenant

import (
	"context"
	"log/slog"
)

// =============================================================================
// BACKEND - Raw storage on fully-prefixed keys
// =============================================================================

// Item is a record in its persisted form: workspace-prefixed keys.
type Item struct {
	PK     string
	SK     string
	Fields map[string]string
}

// Backend is the raw keyed storage beneath Store. All keys are already
// workspace-prefixed. Implementations emit committed changes to their feed:
// a put over a new key is INSERT, a put over an existing key or an update is
// MODIFY (full new image), a delete of an existing key is REMOVE. Updates and
// deletes of missing keys touch nothing and emit nothing.
type Backend interface {
	PutItem(ctx context.Context, item Item) error
	GetItem(ctx context.Context, pk, sk string) (Item, bool, error)
	UpdateItem(ctx context.Context, pk, sk string, updates map[string]string) (Item, bool, error)
	DeleteItem(ctx context.Context, pk, sk string) (bool, error)
	QueryPrefix(ctx context.Context, pk, skPrefix string) ([]Item, error)
}

// =============================================================================
// STORE - Transparent workspace scoping over a Backend
// =============================================================================

type Store struct {
	backend Backend
	log     *slog.Logger
}

// NewStore wraps a backend. A nil logger falls back to slog.Default().
func NewStore(backend Backend, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{backend: backend, log: log}
}

func checkScope(workspaceID string, keys ...Key) error {
	if workspaceID == "" {
		return ErrNoWorkspace
	}
	for _, k := range keys {
		if k == "" {
			return ErrEmptyKey
		}
		// A pre-scoped key would pass through WithWorkspace untouched and
		// could address another workspace's records. Callers hold natural
		// keys only, so this is always an integration bug.
		if _, _, ok := SplitWorkspace(k); ok {
			return ErrScopedKey
		}
	}
	return nil
}

// Put writes a full record, overwriting any existing one under the same keys.
func (s *Store) Put(ctx context.Context, workspaceID string, rec Record) error {
	if err := checkScope(workspaceID, rec.PK, rec.SK); err != nil {
		return err
	}
	item := Item{
		PK:     string(WithWorkspace(workspaceID, rec.PK)),
		SK:     string(WithWorkspace(workspaceID, rec.SK)),
		Fields: cloneFields(rec.Fields),
	}
	s.log.Info("store put", "pk", item.PK, "sk", item.SK)
	return s.backend.PutItem(ctx, item)
}

// Get reads a record. ok is false when the record does not exist.
func (s *Store) Get(ctx context.Context, workspaceID string, pk, sk Key) (Record, bool, error) {
	if err := checkScope(workspaceID, pk, sk); err != nil {
		return Record{}, false, err
	}
	item, ok, err := s.backend.GetItem(ctx,
		string(WithWorkspace(workspaceID, pk)),
		string(WithWorkspace(workspaceID, sk)))
	if err != nil || !ok {
		return Record{}, false, err
	}
	return stripItem(item), true, nil
}

// Update merges the given attribute values into an existing record.
// Updating a record that does not exist is a no-op.
func (s *Store) Update(ctx context.Context, workspaceID string, pk, sk Key, updates map[string]string) error {
	if err := checkScope(workspaceID, pk, sk); err != nil {
		return err
	}
	ppk := string(WithWorkspace(workspaceID, pk))
	psk := string(WithWorkspace(workspaceID, sk))
	s.log.Info("store update", "pk", ppk, "sk", psk)
	_, _, err := s.backend.UpdateItem(ctx, ppk, psk, updates)
	return err
}

// Delete removes a record. Deleting an absent key is a no-op, not a failure:
// lifecycle handlers may be re-delivered after the record is already gone.
func (s *Store) Delete(ctx context.Context, workspaceID string, pk, sk Key) error {
	if err := checkScope(workspaceID, pk, sk); err != nil {
		return err
	}
	ppk := string(WithWorkspace(workspaceID, pk))
	psk := string(WithWorkspace(workspaceID, sk))
	s.log.Info("store delete", "pk", ppk, "sk", psk)
	_, err := s.backend.DeleteItem(ctx, ppk, psk)
	return err
}

// Query returns all records under a partition key whose sort key starts with
// skPrefix, in sort-key order. A missing partition yields an empty result.
func (s *Store) Query(ctx context.Context, workspaceID string, pk, skPrefix Key) ([]Record, error) {
	if err := checkScope(workspaceID, pk, skPrefix); err != nil {
		return nil, err
	}
	items, err := s.backend.QueryPrefix(ctx,
		string(WithWorkspace(workspaceID, pk)),
		string(WithWorkspace(workspaceID, skPrefix)))
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(items))
	for _, item := range items {
		records = append(records, stripItem(item))
	}
	return records, nil
}

// stripItem converts a persisted item back to the caller-facing form with
// the workspace prefix removed from both key fields.
func stripItem(item Item) Record {
	rec := Record{PK: Key(item.PK), SK: Key(item.SK), Fields: cloneFields(item.Fields)}
	if _, rest, ok := SplitWorkspace(rec.PK); ok {
		rec.PK = rest
	}
	if _, rest, ok := SplitWorkspace(rec.SK); ok {
		rec.SK = rest
	}
	return rec
}
