/*
Package sqlite provides the SQLite-backed implementation of tenant.Backend.

PURPOSE:
  Persists keyed records in a single table addressed by (pk, sk). Both key
  columns arrive fully workspace-prefixed from tenant.Store; this package
  never interprets key contents beyond prefix matching for queries.

SCHEMA:
  records:
    pk          TEXT  workspace-prefixed partition key
    sk          TEXT  workspace-prefixed sort key
    fields_json TEXT  flat attribute map, JSON-encoded
    created_at  TEXT
    updated_at  TEXT
    PRIMARY KEY (pk, sk)

ATOMICITY:
  Each Put/Update/Delete runs in its own SQL transaction, so a single record
  is never observed half-written. There are deliberately NO cross-key
  transactions: read-then-write sequences across records race with concurrent
  writers, and callers own that trade-off.

CHANGE EMISSION:
  After a transaction commits, the backend publishes the resulting change
  (INSERT/MODIFY with the new image, REMOVE for deletes) to the feed.
  Updates and deletes of missing keys commit nothing and emit nothing.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't block
  behind the single writer.

USAGE:
  backend, err := sqlite.New("./data/vacations.db", feed)
  if err != nil {
      log.Fatal(err)
  }
  defer backend.Close()
  store := tenant.NewStore(backend, logger)

SEE ALSO:
  - tenant/store.go: interface contract and workspace scoping
  - tenant/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/vacation-engine/tenant"
)

// Backend implements tenant.Backend on SQLite.
type Backend struct {
	db   *sql.DB
	feed *tenant.Feed
	mu   sync.Mutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database. feed may be nil.
func New(dbPath string, feed *tenant.Feed) (*Backend, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	b := &Backend{db: db, feed: feed}
	if err := b.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return b, nil
}

// Close closes the database connection.
func (b *Backend) Close() error {
	return b.db.Close()
}

func (b *Backend) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		pk          TEXT NOT NULL,
		sk          TEXT NOT NULL,
		fields_json TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL,
		PRIMARY KEY (pk, sk)
	);

	CREATE INDEX IF NOT EXISTS idx_records_pk ON records(pk);
	`
	_, err := b.db.Exec(schema)
	return err
}

func (b *Backend) publish(c tenant.Change) {
	if b.feed != nil {
		b.feed.Publish(c)
	}
}

// PutItem writes the full item, overwriting any existing record under the
// same keys.
func (b *Backend) PutItem(ctx context.Context, item tenant.Item) error {
	data, err := json.Marshal(item.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)

	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx,
		`SELECT fields_json FROM records WHERE pk = ? AND sk = ?`, item.PK, item.SK).Scan(&existing)
	existed := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (pk, sk, fields_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (pk, sk) DO UPDATE SET fields_json = excluded.fields_json, updated_at = excluded.updated_at`,
		item.PK, item.SK, string(data), now, now)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	kind := tenant.EventInsert
	if existed {
		kind = tenant.EventModify
	}
	b.publish(tenant.Change{Kind: kind, PK: item.PK, SK: item.SK, NewImage: decodeFields(data)})
	return nil
}

func (b *Backend) GetItem(ctx context.Context, pk, sk string) (tenant.Item, bool, error) {
	var data string
	err := b.db.QueryRowContext(ctx,
		`SELECT fields_json FROM records WHERE pk = ? AND sk = ?`, pk, sk).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return tenant.Item{}, false, nil
	}
	if err != nil {
		return tenant.Item{}, false, err
	}
	return tenant.Item{PK: pk, SK: sk, Fields: decodeFields([]byte(data))}, true, nil
}

// UpdateItem merges updates into an existing record within one transaction.
// A missing record is left untouched and emits no change.
func (b *Backend) UpdateItem(ctx context.Context, pk, sk string, updates map[string]string) (tenant.Item, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return tenant.Item{}, false, err
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRowContext(ctx,
		`SELECT fields_json FROM records WHERE pk = ? AND sk = ?`, pk, sk).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return tenant.Item{}, false, nil
	}
	if err != nil {
		return tenant.Item{}, false, err
	}

	fields := decodeFields([]byte(data))
	for name, value := range updates {
		fields[name] = value
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return tenant.Item{}, false, fmt.Errorf("failed to encode fields: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx,
		`UPDATE records SET fields_json = ?, updated_at = ? WHERE pk = ? AND sk = ?`,
		string(merged), now, pk, sk)
	if err != nil {
		return tenant.Item{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return tenant.Item{}, false, err
	}

	b.publish(tenant.Change{Kind: tenant.EventModify, PK: pk, SK: sk, NewImage: decodeFields(merged)})
	return tenant.Item{PK: pk, SK: sk, Fields: fields}, true, nil
}

// DeleteItem removes a record. Deleting an absent key is a no-op.
func (b *Backend) DeleteItem(ctx context.Context, pk, sk string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	res, err := b.db.ExecContext(ctx,
		`DELETE FROM records WHERE pk = ? AND sk = ?`, pk, sk)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	b.publish(tenant.Change{Kind: tenant.EventRemove, PK: pk, SK: sk})
	return true, nil
}

// QueryPrefix returns all items under pk whose sort key starts with skPrefix,
// ordered by sort key.
func (b *Backend) QueryPrefix(ctx context.Context, pk, skPrefix string) ([]tenant.Item, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT sk, fields_json FROM records
		WHERE pk = ? AND sk >= ? AND sk < ?
		ORDER BY sk`,
		pk, skPrefix, skPrefix+"￿")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tenant.Item
	for rows.Next() {
		var sk, data string
		if err := rows.Scan(&sk, &data); err != nil {
			return nil, err
		}
		out = append(out, tenant.Item{PK: pk, SK: sk, Fields: decodeFields([]byte(data))})
	}
	return out, rows.Err()
}

// decodeFields tolerates malformed rows by returning an empty map rather
// than failing a whole query.
func decodeFields(data []byte) map[string]string {
	fields := make(map[string]string)
	_ = json.Unmarshal(data, &fields)
	return fields
}
