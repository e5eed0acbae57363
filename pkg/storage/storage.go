// Package storage persists accounts, the saved-addon library, and
// per-account provenance ledgers in a local SQLite database.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/DrZacharySmith/stremio-account-manager/pkg/library"
	"github.com/DrZacharySmith/stremio-account-manager/pkg/syncer"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found in database")

// Account statuses.
const (
	StatusOK           = "ok"
	StatusUnauthorized = "unauthorized"
)

// Account is a registered remote account. The authKey is sealed with the
// vault session key before it ever reaches the database.
type Account struct {
	ID            string
	Name          string
	AuthKeySealed []byte
	Status        string
	AddedAt       time.Time
}

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS meta (
  key   TEXT PRIMARY KEY,
  value BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS accounts (
  id              TEXT PRIMARY KEY,
  name            TEXT NOT NULL,
  auth_key_sealed BLOB NOT NULL,
  status          TEXT NOT NULL DEFAULT 'ok',
  added_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS saved_addons (
  id         TEXT PRIMARY KEY,
  doc        TEXT NOT NULL,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS account_states (
  account_id TEXT PRIMARY KEY,
  doc        TEXT NOT NULL,
  last_sync  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// ── meta ────────────────────────────────────────────────────────────────

// GetMeta returns the stored value for key, or nil when absent.
func (d *DB) GetMeta(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := d.sql.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (d *DB) SetMeta(ctx context.Context, key string, value []byte) error {
	_, err := d.sql.ExecContext(ctx,
		"INSERT INTO meta(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	return err
}

// ── accounts ────────────────────────────────────────────────────────────

func (d *DB) UpsertAccount(ctx context.Context, a Account) error {
	if a.Status == "" {
		a.Status = StatusOK
	}
	_, err := d.sql.ExecContext(ctx, `
INSERT INTO accounts(id, name, auth_key_sealed, status) VALUES(?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name, auth_key_sealed = excluded.auth_key_sealed, status = excluded.status`,
		a.ID, a.Name, a.AuthKeySealed, a.Status)
	return err
}

func (d *DB) GetAccount(ctx context.Context, id string) (Account, error) {
	var a Account
	var addedAt string
	err := d.sql.QueryRowContext(ctx,
		"SELECT id, name, auth_key_sealed, status, added_at FROM accounts WHERE id = ?", id).
		Scan(&a.ID, &a.Name, &a.AuthKeySealed, &a.Status, &addedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Account{}, err
	}
	a.AddedAt = parseSQLiteTime(addedAt)
	return a, nil
}

// ListAccounts returns all accounts ordered by the time they were added.
func (d *DB) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT id, name, auth_key_sealed, status, added_at FROM accounts ORDER BY added_at, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		var a Account
		var addedAt string
		if err := rows.Scan(&a.ID, &a.Name, &a.AuthKeySealed, &a.Status, &addedAt); err != nil {
			return nil, err
		}
		a.AddedAt = parseSQLiteTime(addedAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (d *DB) DeleteAccount(ctx context.Context, id string) error {
	res, err := d.sql.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	// Ledger rows for a removed account are dead weight.
	_, err = d.sql.ExecContext(ctx, "DELETE FROM account_states WHERE account_id = ?", id)
	return err
}

func (d *DB) SetAccountStatus(ctx context.Context, id, status string) error {
	_, err := d.sql.ExecContext(ctx, "UPDATE accounts SET status = ? WHERE id = ?", status, id)
	return err
}

// ── saved addons ────────────────────────────────────────────────────────

// SaveAddon upserts one library entry, serialized as a JSON document.
func (d *DB) SaveAddon(ctx context.Context, saved library.SavedAddon) error {
	doc, err := json.Marshal(saved)
	if err != nil {
		return err
	}
	_, err = d.sql.ExecContext(ctx, `
INSERT INTO saved_addons(id, doc, updated_at) VALUES(?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, updated_at = CURRENT_TIMESTAMP`,
		saved.ID, string(doc))
	return err
}

// LoadLibrary reads the whole saved-addon library keyed by id.
func (d *DB) LoadLibrary(ctx context.Context) (map[string]library.SavedAddon, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT doc FROM saved_addons")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]library.SavedAddon)
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var saved library.SavedAddon
		if err := json.Unmarshal([]byte(doc), &saved); err != nil {
			return nil, fmt.Errorf("corrupt saved addon document: %w", err)
		}
		out[saved.ID] = saved
	}
	return out, rows.Err()
}

// SaveLibrary replaces the whole saved-addon library in one transaction.
func (d *DB) SaveLibrary(ctx context.Context, lib map[string]library.SavedAddon) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM saved_addons"); err != nil {
		return err
	}
	for id, saved := range lib {
		doc, err := json.Marshal(saved)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO saved_addons(id, doc, updated_at) VALUES(?, ?, CURRENT_TIMESTAMP)",
			id, string(doc)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *DB) DeleteSavedAddon(ctx context.Context, id string) error {
	res, err := d.sql.ExecContext(ctx, "DELETE FROM saved_addons WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("saved addon %s: %w", id, ErrNotFound)
	}
	return nil
}

// ── account states ──────────────────────────────────────────────────────

func (d *DB) SaveAccountState(ctx context.Context, state syncer.AccountState) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return err
	}
	_, err = d.sql.ExecContext(ctx, `
INSERT INTO account_states(account_id, doc, last_sync) VALUES(?, ?, ?)
ON CONFLICT(account_id) DO UPDATE SET doc = excluded.doc, last_sync = excluded.last_sync`,
		state.AccountID, string(doc), state.LastSync.UTC().Format(time.RFC3339))
	return err
}

// LoadAccountStates reads all provenance ledgers keyed by account id.
func (d *DB) LoadAccountStates(ctx context.Context) (map[string]syncer.AccountState, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT doc FROM account_states")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]syncer.AccountState)
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var state syncer.AccountState
		if err := json.Unmarshal([]byte(doc), &state); err != nil {
			return nil, fmt.Errorf("corrupt account state document: %w", err)
		}
		out[state.AccountID] = state
	}
	return out, rows.Err()
}

// parseSQLiteTime handles both CURRENT_TIMESTAMP and RFC3339 formats.
func parseSQLiteTime(s string) time.Time {
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}
