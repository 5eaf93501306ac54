package infra

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	// Ensure sqlcipher driver is registered.
	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
)

const (
	storeDBName = "focus.db"

	kindBool   = "bool"
	kindString = "string"
	kindInt    = "int"
)

// EncryptedStore implements domain.PolicyStore using a SQLCipher encrypted
// SQLite database. Every update runs in one IMMEDIATE transaction, so the
// monitor, presence and CLI processes never observe a partial write.
type EncryptedStore struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// NewEncryptedStore opens (or creates) the encrypted policy store.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedStore(dataDir string, key []byte) (*EncryptedStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, storeDBName)
	keyHex := hex.EncodeToString(key)

	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096&_busy_timeout=5000&_txlock=immediate",
		dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Verify encryption works by running a query
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	s := &EncryptedStore{db: db, dbPath: dbPath}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// OpenStore resolves the key for dataDir (generating it on first use) and
// opens the store.
func OpenStore(dataDir string) (*EncryptedStore, error) {
	key, err := EnsureKey(NewFileKeyProvider(dataDir))
	if err != nil {
		return nil, fmt.Errorf("failed to load store key: %w", err)
	}
	return NewEncryptedStore(dataDir, key)
}

func (s *EncryptedStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS prefs (
		key TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *EncryptedStore) Path() string {
	return s.dbPath
}

// Update runs fn in a single transaction; fn's error rolls everything back.
func (s *EncryptedStore) Update(ctx context.Context, fn func(tx domain.StoreTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&storeTx{ctx: ctx, tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Apply writes every entry of d atomically. Nil values delete.
func (s *EncryptedStore) Apply(ctx context.Context, d domain.Delta) error {
	return s.Update(ctx, func(tx domain.StoreTx) error {
		return d.ApplyTo(tx)
	})
}

// Snapshot reads all entries from one consistent transaction.
func (s *EncryptedStore) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	snap := domain.DefaultSnapshot()
	err := s.Update(ctx, func(tx domain.StoreTx) error {
		var err error
		snap, err = domain.ReadSnapshot(tx)
		return err
	})
	return snap, err
}

// Meta reads a bookkeeping value.
func (s *EncryptedStore) Meta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("meta %q: %w", key, domain.ErrKeyNotFound)
	}
	return value, err
}

// SetMeta writes a bookkeeping value.
func (s *EncryptedStore) SetMeta(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value)
	return err
}

// DeleteMeta removes a bookkeeping value.
func (s *EncryptedStore) DeleteMeta(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM meta WHERE key = ?`, key)
	return err
}

// Close releases the database connection.
func (s *EncryptedStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// storeTx implements domain.StoreTx over one sql.Tx.
type storeTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *storeTx) get(key domain.Key) (kind, value string, ok bool, err error) {
	err = t.tx.QueryRowContext(t.ctx, `SELECT kind, value FROM prefs WHERE key = ?`, string(key)).
		Scan(&kind, &value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return kind, value, true, nil
}

// Bool falls back to def for absent or mistyped entries.
func (t *storeTx) Bool(key domain.Key, def bool) (bool, error) {
	kind, value, ok, err := t.get(key)
	if err != nil || !ok || kind != kindBool {
		return def, err
	}
	b, perr := strconv.ParseBool(value)
	if perr != nil {
		return def, nil
	}
	return b, nil
}

func (t *storeTx) String(key domain.Key) (string, bool, error) {
	kind, value, ok, err := t.get(key)
	if err != nil || !ok || kind != kindString {
		return "", false, err
	}
	return value, true, nil
}

// Int64 falls back to def for absent or mistyped entries.
func (t *storeTx) Int64(key domain.Key, def int64) (int64, error) {
	kind, value, ok, err := t.get(key)
	if err != nil || !ok || kind != kindInt {
		return def, err
	}
	n, perr := strconv.ParseInt(value, 10, 64)
	if perr != nil {
		return def, nil
	}
	return n, nil
}

func (t *storeTx) Set(key domain.Key, value any) error {
	var kind, encoded string
	switch v := value.(type) {
	case bool:
		kind, encoded = kindBool, strconv.FormatBool(v)
	case string:
		kind, encoded = kindString, v
	case int:
		kind, encoded = kindInt, strconv.Itoa(v)
	case int64:
		kind, encoded = kindInt, strconv.FormatInt(v, 10)
	case time.Time:
		kind, encoded = kindInt, strconv.FormatInt(v.UnixMilli(), 10)
	case nil:
		return t.Delete(key)
	default:
		return fmt.Errorf("unsupported value type %T for %s", value, key)
	}

	_, err := t.tx.ExecContext(t.ctx, `
		INSERT OR REPLACE INTO prefs (key, kind, value, updated_at)
		VALUES (?, ?, ?, ?)`,
		string(key), kind, encoded, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (t *storeTx) Delete(key domain.Key) error {
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM prefs WHERE key = ?`, string(key)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (t *storeTx) Meta(key string) (string, bool, error) {
	var value string
	err := t.tx.QueryRowContext(t.ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read meta %s: %w", key, err)
	}
	return value, true, nil
}

func (t *storeTx) SetMeta(key, value string) error {
	if _, err := t.tx.ExecContext(t.ctx, `INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value); err != nil {
		return fmt.Errorf("failed to write meta %s: %w", key, err)
	}
	return nil
}

func (t *storeTx) DeleteMeta(key string) error {
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM meta WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete meta %s: %w", key, err)
	}
	return nil
}

// Ensure EncryptedStore implements domain.PolicyStore.
var _ domain.PolicyStore = (*EncryptedStore)(nil)
