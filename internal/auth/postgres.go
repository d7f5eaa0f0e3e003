package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresAccounts stores accounts in the accounts table created by
// migration 000002.
type PostgresAccounts struct {
	pool *pgxpool.Pool
}

var _ Accounts = (*PostgresAccounts)(nil)

func NewPostgresAccounts(pool *pgxpool.Pool) *PostgresAccounts {
	return &PostgresAccounts{pool: pool}
}

const uniqueViolation = "23505"

func (p *PostgresAccounts) Create(ctx context.Context, a Account) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO accounts (uid, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`, a.UID, a.Email, string(a.PasswordHash), a.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrEmailInUse
	}
	if err != nil {
		return fmt.Errorf("inserting account: %w", err)
	}
	return nil
}

func (p *PostgresAccounts) ByEmail(ctx context.Context, email string) (*Account, error) {
	return p.one(ctx, `SELECT uid, email, password_hash, created_at FROM accounts WHERE email = $1`, email)
}

func (p *PostgresAccounts) ByUID(ctx context.Context, uid string) (*Account, error) {
	return p.one(ctx, `SELECT uid, email, password_hash, created_at FROM accounts WHERE uid = $1`, uid)
}

func (p *PostgresAccounts) one(ctx context.Context, query, arg string) (*Account, error) {
	var a Account
	err := p.pool.QueryRow(ctx, query, arg).Scan(&a.UID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying account: %w", err)
	}
	return &a, nil
}

func (p *PostgresAccounts) UpdatePassword(ctx context.Context, uid string, hash []byte) error {
	tag, err := p.pool.Exec(ctx, `UPDATE accounts SET password_hash = $2 WHERE uid = $1`, uid, string(hash))
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
