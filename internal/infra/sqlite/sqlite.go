// Package sqlite implements the durable transaction queue on an
// embedded SQLite database (modernc.org/sqlite, pure Go, no CGO).
//
// One terminal owns one database file. Every mutation runs inside a
// SQL transaction so a crash mid-write never leaves a half-updated
// record visible to readers.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tillsync/tillsync/internal/domain"
)

// timeLayout is RFC3339 with a fixed-width nanosecond fraction so the
// stored strings sort lexically in chronological order (RFC3339Nano
// trims trailing zeros, which breaks ORDER BY created_at).
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema migration statements.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			id             TEXT PRIMARY KEY,
			items_json     TEXT NOT NULL DEFAULT '[]',
			subtotal_cents INTEGER NOT NULL DEFAULT 0,
			tax_cents      INTEGER NOT NULL DEFAULT 0,
			total_cents    INTEGER NOT NULL DEFAULT 0,
			payment_method TEXT NOT NULL,
			created_at     TEXT NOT NULL,
			status         TEXT NOT NULL DEFAULT 'pending',
			offline        INTEGER NOT NULL DEFAULT 0,
			retries        INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_status ON transactions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_created ON transactions(created_at)`,
	}
}

// ─── Store ──────────────────────────────────────────────────────────────────

// Store is the SQLite-backed durable transaction queue.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the queue database at path and runs
// migrations. Use ":memory:" for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open queue db: %w", err)
	}

	// Single logical owner per terminal; serialize writers.
	db.SetMaxOpenConns(1)

	for _, stmt := range Migrations() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate queue db: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Mutations ──────────────────────────────────────────────────────────────

// Put inserts a new transaction record.
func (s *Store) Put(tx *domain.Transaction) error {
	itemsJSON, err := json.Marshal(tx.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}

	return s.withTx(func(sq *sql.Tx) error {
		_, err := sq.Exec(`
			INSERT INTO transactions (id, items_json, subtotal_cents, tax_cents, total_cents, payment_method, created_at, status, offline, retries)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, tx.ID, string(itemsJSON), tx.SubtotalCents, tx.TaxCents, tx.TotalCents,
			string(tx.PaymentMethod), tx.CreatedAt.UTC().Format(timeLayout),
			string(tx.Status), boolToInt(tx.Offline), tx.Retries)
		if err != nil && isUniqueViolation(err) {
			return fmt.Errorf("put %s: %w", tx.ID, domain.ErrDuplicateID)
		}
		return err
	})
}

// Update replaces a record by id.
func (s *Store) Update(tx *domain.Transaction) error {
	itemsJSON, err := json.Marshal(tx.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}

	return s.withTx(func(sq *sql.Tx) error {
		res, err := sq.Exec(`
			UPDATE transactions
			SET items_json = ?, subtotal_cents = ?, tax_cents = ?, total_cents = ?,
			    payment_method = ?, status = ?, offline = ?, retries = ?
			WHERE id = ?
		`, string(itemsJSON), tx.SubtotalCents, tx.TaxCents, tx.TotalCents,
			string(tx.PaymentMethod), string(tx.Status), boolToInt(tx.Offline), tx.Retries, tx.ID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("update %s: %w", tx.ID, domain.ErrNotFound)
		}
		return nil
	})
}

// Delete removes a record by id.
func (s *Store) Delete(id string) error {
	return s.withTx(func(sq *sql.Tx) error {
		res, err := sq.Exec(`DELETE FROM transactions WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("delete %s: %w", id, domain.ErrNotFound)
		}
		return nil
	})
}

// SetStatus updates one record's status and retry counter in a single
// atomic step.
func (s *Store) SetStatus(id string, status domain.Status, retries int) error {
	return s.withTx(func(sq *sql.Tx) error {
		res, err := sq.Exec(`
			UPDATE transactions SET status = ?, retries = ? WHERE id = ?
		`, string(status), retries, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("set status %s: %w", id, domain.ErrNotFound)
		}
		return nil
	})
}

// MarkSyncing flips all the given ids to syncing in one transaction,
// so a sync pass either claims its whole batch or none of it.
func (s *Store) MarkSyncing(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.withTx(func(sq *sql.Tx) error {
		for _, id := range ids {
			res, err := sq.Exec(`
				UPDATE transactions SET status = ? WHERE id = ?
			`, string(domain.StatusSyncing), id)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("mark syncing %s: %w", id, domain.ErrNotFound)
			}
		}
		return nil
	})
}

// PurgeSynced deletes every synced record and reports how many were
// removed. Calling it with nothing to purge is a no-op.
func (s *Store) PurgeSynced() (int, error) {
	var purged int
	err := s.withTx(func(sq *sql.Tx) error {
		res, err := sq.Exec(`DELETE FROM transactions WHERE status = ?`, string(domain.StatusSynced))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		purged = int(n)
		return err
	})
	return purged, err
}

// RecoverInflight demotes records left in syncing by a crash mid-pass
// back to failed so the next pass retries them. Returns the ids that
// were recovered. Call at startup, before any sync runs.
func (s *Store) RecoverInflight() ([]string, error) {
	var ids []string
	err := s.withTx(func(sq *sql.Tx) error {
		rows, err := sq.Query(`
			SELECT id FROM transactions WHERE status = ? ORDER BY created_at ASC
		`, string(domain.StatusSyncing))
		if err != nil {
			return err
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, id := range ids {
			if _, err := sq.Exec(`
				UPDATE transactions SET status = ?, retries = retries + 1 WHERE id = ?
			`, string(domain.StatusFailed), id); err != nil {
				return err
			}
		}
		return nil
	})
	return ids, err
}

// ─── Queries ────────────────────────────────────────────────────────────────

// Get retrieves one transaction by id.
func (s *Store) Get(id string) (*domain.Transaction, error) {
	row := s.db.QueryRow(`
		SELECT id, items_json, subtotal_cents, tax_cents, total_cents, payment_method, created_at, status, offline, retries
		FROM transactions WHERE id = ?
	`, id)

	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s: %w", id, domain.ErrNotFound)
	}
	return tx, err
}

// ListAll returns every stored transaction, oldest first.
func (s *Store) ListAll() ([]*domain.Transaction, error) {
	return s.list(`
		SELECT id, items_json, subtotal_cents, tax_cents, total_cents, payment_method, created_at, status, offline, retries
		FROM transactions ORDER BY created_at ASC, id ASC
	`)
}

// ListByStatus returns transactions in the given state, oldest first.
func (s *Store) ListByStatus(status domain.Status) ([]*domain.Transaction, error) {
	return s.list(`
		SELECT id, items_json, subtotal_cents, tax_cents, total_cents, payment_method, created_at, status, offline, retries
		FROM transactions WHERE status = ? ORDER BY created_at ASC, id ASC
	`, string(status))
}

// Summary returns per-status counts.
func (s *Store) Summary() (domain.QueueSummary, error) {
	var sum domain.QueueSummary
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM transactions GROUP BY status`)
	if err != nil {
		return sum, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return sum, err
		}
		switch domain.Status(status) {
		case domain.StatusPending:
			sum.Pending = count
		case domain.StatusSyncing:
			sum.Syncing = count
		case domain.StatusSynced:
			sum.Synced = count
		case domain.StatusFailed:
			sum.Failed = count
		}
		sum.Total += count
	}
	return sum, rows.Err()
}

// ─── Internals ──────────────────────────────────────────────────────────────

// withTx runs fn inside a SQL transaction: open → write → commit, or
// rollback on any error.
func (s *Store) withTx(fn func(*sql.Tx) error) error {
	sq, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(sq); err != nil {
		sq.Rollback()
		return err
	}
	if err := sq.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) list(query string, args ...any) ([]*domain.Transaction, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var itemsJSON, payment, createdStr, status string
	var offline int

	err := row.Scan(&tx.ID, &itemsJSON, &tx.SubtotalCents, &tx.TaxCents, &tx.TotalCents,
		&payment, &createdStr, &status, &offline, &tx.Retries)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(itemsJSON), &tx.Items); err != nil {
		return nil, fmt.Errorf("decode items for %s: %w", tx.ID, err)
	}
	tx.PaymentMethod = domain.PaymentMethod(payment)
	tx.Status = domain.Status(status)
	tx.Offline = offline == 1
	tx.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr)
	if err != nil {
		return nil, fmt.Errorf("decode created_at for %s: %w", tx.ID, err)
	}
	return &tx, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite surfaces SQLITE_CONSTRAINT_PRIMARYKEY in the
	// error text; matching on it avoids importing driver internals.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
