// Package pgstore provides a PostgreSQL-backed refresh.Store over the pgx
// stdlib driver. Rotation runs inside a transaction: the revoke UPDATE is
// gated on revoked = FALSE, so the row count decides the single winner and
// losers observe the credential as already revoked.
package pgstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/larslab/authcore/internal/dbx"
	"github.com/larslab/authcore/refresh"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store implements refresh.Store over a *sql.DB.
type Store struct {
	db *sql.DB
}

// New constructs a Store bound to db.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects via the pgx stdlib driver and pings the database.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate runs the embedded goose migrations against db.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

func (s *Store) Insert(ctx context.Context, rec refresh.Record) error {
	return insert(ctx, s.db, rec)
}

func (s *Store) FindByHash(ctx context.Context, hash string) (refresh.Record, error) {
	return findByHash(ctx, s.db, hash)
}

func (s *Store) MarkRevoked(ctx context.Context, id string) error {
	query := `
		UPDATE refresh_credentials
		SET revoked = TRUE
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return refresh.ErrNotFound
	}
	return nil
}

func (s *Store) Rotate(ctx context.Context, oldHash string, replacement refresh.Record) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE refresh_credentials
			SET revoked = TRUE
			WHERE token_hash = $1 AND revoked = FALSE
		`, oldHash)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if affected == 0 {
			// Either the row never existed or a concurrent rotation already
			// revoked it; distinguish for the caller without leaving the tx.
			if _, err := findByHash(ctx, tx, oldHash); err != nil {
				return err
			}
			return refresh.ErrRevoked
		}
		return insert(ctx, tx, replacement)
	})
}

// DeleteExpired removes records whose expiry is older than cutoff and
// returns the number deleted. Optional maintenance; validation never relies
// on it.
func (s *Store) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM refresh_credentials
		WHERE expires_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}

func insert(ctx context.Context, db dbx.DBTX, rec refresh.Record) error {
	query := `
		INSERT INTO refresh_credentials
			(id, user_id, token_hash, expires_at, created_at, revoked, user_agent_hash, addr_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := db.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.TokenHash, rec.ExpiresAt, rec.CreatedAt,
		rec.Revoked, rec.UserAgentHash, rec.AddrHash)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func findByHash(ctx context.Context, db dbx.DBTX, hash string) (refresh.Record, error) {
	query := `
		SELECT id, user_id, expires_at, created_at, revoked, user_agent_hash, addr_hash
		FROM refresh_credentials
		WHERE token_hash = $1
	`
	rec := refresh.Record{TokenHash: hash}
	err := db.QueryRowContext(ctx, query, hash).Scan(
		&rec.ID, &rec.UserID, &rec.ExpiresAt, &rec.CreatedAt,
		&rec.Revoked, &rec.UserAgentHash, &rec.AddrHash)
	if errors.Is(err, sql.ErrNoRows) {
		return refresh.Record{}, refresh.ErrNotFound
	}
	if err != nil {
		return refresh.Record{}, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}
