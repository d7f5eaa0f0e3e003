package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps the tree in PostgreSQL. Each document row holds the
// subtree rooted at the first two path segments (e.g. "userProgress/u1"),
// so per-user writes only lock that user's row.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

// Compile-time check: *PostgresStore satisfies Store.
var _ Store = (*PostgresStore)(nil)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &PostgresStore{Pool: pool}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.Pool.Close()
}

// RunMigrations applies all pending migrations from the given directory.
func RunMigrations(dsn, migrationsPath string) error {
	m, err := migrate.New("file://"+migrationsPath, dsn)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

const docDepth = 2

func splitDoc(path Path) (string, []string, error) {
	if err := path.Validate(); err != nil {
		return "", nil, err
	}
	segs := path.Segments()
	if len(segs) < docDepth {
		return "", nil, fmt.Errorf("%w: %q: at least %d segments required", ErrInvalidPath, path, docDepth)
	}
	return strings.Join(segs[:docDepth], "/"), segs[docDepth:], nil
}

func (s *PostgresStore) Read(ctx context.Context, path Path, dst any) (bool, error) {
	key, inner, err := splitDoc(path)
	if err != nil {
		return false, err
	}

	var raw []byte
	err = s.Pool.QueryRow(ctx, `SELECT value FROM nodes WHERE path = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: reading %s: %w", ErrUnavailable, path, err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false, fmt.Errorf("decoding document %s: %w", key, err)
	}
	n, ok := getAt(doc, inner)
	if !ok {
		return false, nil
	}
	if err := decodeNode(n, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PostgresStore) Write(ctx context.Context, path Path, value any) error {
	key, inner, err := splitDoc(path)
	if err != nil {
		return err
	}
	n, err := toNode(value)
	if err != nil {
		return err
	}

	err = pgx.BeginFunc(ctx, s.Pool, func(tx pgx.Tx) error {
		var doc any
		if len(inner) > 0 {
			var raw []byte
			err := tx.QueryRow(ctx, `SELECT value FROM nodes WHERE path = $1 FOR UPDATE`, key).Scan(&raw)
			switch {
			case errors.Is(err, pgx.ErrNoRows):
			case err != nil:
				return err
			default:
				if err := json.Unmarshal(raw, &doc); err != nil {
					return fmt.Errorf("decoding document %s: %w", key, err)
				}
			}
		}

		doc = setAt(doc, inner, n)
		if doc == nil {
			_, err := tx.Exec(ctx, `DELETE FROM nodes WHERE path = $1`, key)
			return err
		}

		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encoding document %s: %w", key, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO nodes (path, value, updated_at) VALUES ($1, $2::jsonb, NOW())
			ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
		`, key, string(data))
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrUnavailable, path, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, path Path) error {
	return s.Write(ctx, path, nil)
}
