package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	staterepo "github.com/quipper/poc/spotify-auth/be/pkg/repositories/state"
	_ "modernc.org/sqlite"
)

// SQLiteRepo keeps issued authorization states in a SQLite table.
type SQLiteRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepo(dsn string) (*SQLiteRepo, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection serialises writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	// Pragmas safe for simple single-process usage
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteRepo{db: db, now: time.Now}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS auth_states (
    state TEXT PRIMARY KEY,
    return_url TEXT NOT NULL,
    expires_at INTEGER NOT NULL,
    used INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_auth_states_expires_at ON auth_states(expires_at);
`)
	return err
}

func (r *SQLiteRepo) Disconnect() { _ = r.db.Close() }

func (r *SQLiteRepo) Health(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Ensure interface compliance
var _ staterepo.Repository = (*SQLiteRepo)(nil)

func (r *SQLiteRepo) CreateState(ctx context.Context, state string, returnURL string, exp time.Time) error {
	if state == "" {
		return errors.New("empty state")
	}
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Cleanup expired and consumed rows
	if _, err := tx.ExecContext(ctx, "DELETE FROM auth_states WHERE expires_at < ? OR used = 1", r.now().Unix()); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO auth_states (state, return_url, expires_at) VALUES (?, ?, ?)`, state, returnURL, exp.Unix())
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLiteRepo) ConsumeState(ctx context.Context, state string) (string, bool, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return "", false, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		returnURL string
		exp       int64
		used      int
	)
	row := tx.QueryRowContext(ctx, `SELECT return_url, expires_at, used FROM auth_states WHERE state = ?`, state)
	if err := row.Scan(&returnURL, &exp, &used); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	if used == 1 || r.now().Unix() > exp {
		return "", false, nil
	}
	// Mark used
	if _, err := tx.ExecContext(ctx, `UPDATE auth_states SET used = 1 WHERE state = ?`, state); err != nil {
		return "", false, err
	}
	if err := tx.Commit(); err != nil {
		return "", false, err
	}
	return returnURL, true, nil
}
