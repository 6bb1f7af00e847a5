package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"qtick-agent/internal/domain"
	"qtick-agent/internal/infra/phone"
)

// SQLiteStore implements domain.PhoneDirectory using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, runs the
// schema migration and inserts Seed into an empty table.
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open directory db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate directory db: %w", err)
	}
	s := &SQLiteStore{db: db, logger: logger}
	if err := s.seed(); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed directory db: %w", err)
	}
	return s, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS phone_mappings (
			phone       TEXT PRIMARY KEY,
			business_id INTEGER NOT NULL UNIQUE
		)
	`)
	return err
}

func (s *SQLiteStore) seed() error {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM phone_mappings").Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	// Two seed phones share business 11; the UNIQUE constraint keeps the first.
	for _, p := range []string{"6592701525", "6590306703", "919080534415"} {
		if _, err := s.db.Exec("INSERT OR IGNORE INTO phone_mappings (phone, business_id) VALUES (?, ?)", p, Seed()[p]); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Lookup(ctx context.Context, number string) (int, error) {
	key := phone.Digits(number)
	var id int
	err := s.db.QueryRowContext(ctx, "SELECT business_id FROM phone_mappings WHERE phone = ?", key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.NewDomainError("SQLiteStore.Lookup", domain.ErrPhoneNotMapped, key)
	}
	if err != nil {
		return 0, fmt.Errorf("lookup phone mapping: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) Register(ctx context.Context, number string, businessID int) error {
	key := phone.Digits(number)
	if key == "" || businessID <= 0 {
		return domain.NewDomainError("SQLiteStore.Register", domain.ErrInvalidInput, "phone and business_id are required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin register: %w", err)
	}
	defer tx.Rollback()

	var owner string
	err = tx.QueryRowContext(ctx, "SELECT phone FROM phone_mappings WHERE business_id = ?", businessID).Scan(&owner)
	switch {
	case err == nil && owner == key:
		return nil
	case err == nil:
		return domain.NewDomainError("SQLiteStore.Register", domain.ErrBusinessTaken, fmt.Sprintf("business %d belongs to %s", businessID, owner))
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("check business owner: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO phone_mappings (phone, business_id) VALUES (?, ?) ON CONFLICT(phone) DO UPDATE SET business_id = excluded.business_id",
		key, businessID,
	); err != nil {
		return fmt.Errorf("save phone mapping: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit register: %w", err)
	}
	s.logger.Info("phone mapping registered", "phone", key, "business_id", businessID)
	return nil
}
