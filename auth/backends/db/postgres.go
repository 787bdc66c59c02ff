package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	autherrors "github.com/MichaelAJay/go-auth/errors"
	"github.com/MichaelAJay/go-logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the SQLSTATE for a unique constraint violation.
const uniqueViolation = "23505"

// pgPools holds one pool per DSN for the whole process. Every store resolved
// for the same DSN shares it.
var pgPools = newHandleRegistry(func(pool *pgxpool.Pool) error {
	pool.Close()
	return nil
})

// postgresTable stores credentials in PostgreSQL using pgx/v5.
type postgresTable struct {
	dsn        string
	poolConfig *pgxpool.Config
	logger     logger.Logger

	mu   sync.Mutex
	pool *pgxpool.Pool
}

// newPostgresTable parses dsn. The shared pool is acquired on first use.
func newPostgresTable(dsn string, maxConns int, log logger.Logger) (*postgresTable, error) {
	if dsn == "" {
		return nil, autherrors.NewConfigurationError("auth.db.dsn", "required for the postgres driver")
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, autherrors.NewConfigurationError("auth.db.dsn", err.Error())
	}
	if maxConns > 0 {
		poolConfig.MaxConns = int32(maxConns)
	}

	return &postgresTable{dsn: dsn, poolConfig: poolConfig, logger: log}, nil
}

// conn returns the shared pool for the table's DSN. The first store to ask
// creates it, with its own max_conns.
func (t *postgresTable) conn() (*pgxpool.Pool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pool != nil {
		return t.pool, nil
	}

	pool, err := pgPools.acquire(t.dsn, func() (*pgxpool.Pool, error) {
		pool, err := pgxpool.NewWithConfig(context.Background(), t.poolConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create connection pool: %w", err)
		}
		return pool, nil
	})
	if err != nil {
		return nil, err
	}

	t.pool = pool
	return pool, nil
}

func (t *postgresTable) Insert(ctx context.Context, cred *Credential) error {
	query := `
		INSERT INTO auth_credentials (
			id, login, password_hash, scheme, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)`

	pool, err := t.conn()
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, query,
		cred.ID,
		cred.Login,
		cred.PasswordHash,
		cred.Scheme,
		cred.CreatedAt,
		cred.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return autherrors.NewLoginExistsError(cred.Login)
		}
		return fmt.Errorf("failed to create credential: %w", err)
	}

	return nil
}

func (t *postgresTable) Get(ctx context.Context, login string) (*Credential, error) {
	query := `
		SELECT id, login, password_hash, scheme, created_at, updated_at
		FROM auth_credentials
		WHERE login = $1`

	pool, err := t.conn()
	if err != nil {
		return nil, err
	}

	cred := &Credential{}
	err = pool.QueryRow(ctx, query, login).Scan(
		&cred.ID,
		&cred.Login,
		&cred.PasswordHash,
		&cred.Scheme,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, autherrors.NewLoginNotFoundError(login)
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	return cred, nil
}

func (t *postgresTable) UpdateHash(ctx context.Context, login, hash, scheme string, updatedAt time.Time) error {
	query := `
		UPDATE auth_credentials
		SET password_hash = $2, scheme = $3, updated_at = $4
		WHERE login = $1`

	pool, err := t.conn()
	if err != nil {
		return err
	}

	result, err := pool.Exec(ctx, query, login, hash, scheme, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}

	if result.RowsAffected() == 0 {
		return autherrors.NewLoginNotFoundError(login)
	}

	return nil
}

func (t *postgresTable) Delete(ctx context.Context, login string) error {
	query := `DELETE FROM auth_credentials WHERE login = $1`

	pool, err := t.conn()
	if err != nil {
		return err
	}

	result, err := pool.Exec(ctx, query, login)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	if result.RowsAffected() == 0 {
		return autherrors.NewLoginNotFoundError(login)
	}

	return nil
}

func (t *postgresTable) List(ctx context.Context) ([]string, error) {
	pool, err := t.conn()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, `SELECT login FROM auth_credentials ORDER BY login ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	var logins []string
	for rows.Next() {
		var login string
		if err := rows.Scan(&login); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		logins = append(logins, login)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating credentials: %w", err)
	}

	return logins, nil
}

func (t *postgresTable) Migrate(ctx context.Context) error {
	pool, err := t.conn()
	if err != nil {
		return err
	}
	return RunMigrations(ctx, pool, t.logger)
}

// Close releases this table's reference to the shared pool. The pool closes
// when no store references it.
func (t *postgresTable) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pool == nil {
		return nil
	}
	t.pool = nil
	return pgPools.release(t.dsn)
}
