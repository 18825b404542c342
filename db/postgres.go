package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/sirupsen/logrus"
)

const pgUndefinedTable = "42P01"

const kvTable = "kv_store"

//PostgresStore implements Store on postgres with a single table keyed by (category, key).
type PostgresStore struct {
	db *sql.DB
}

//OpenPostgres connects to postgres and checks the connection.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxDbPoolConnections)
	sqlDB.SetMaxIdleConns(baseDbPoolConnections)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return NewPostgresStore(sqlDB), nil
}

//NewPostgresStore wraps an existing handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable
}

func (p *PostgresStore) createTable(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+kvTable+` (
		category TEXT NOT NULL,
		key TEXT NOT NULL,
		value JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (category, key)
	)`)
	return err
}

//withTable runs op and, if the table does not exist yet, creates it and retries once.
func (p *PostgresStore) withTable(ctx context.Context, category string, op func() error) error {
	if !validCategory(category) {
		return ErrInvalidCategory
	}
	err := op()
	if err == nil || !isUndefinedTable(err) {
		return err
	}
	logrus.Infof("Creating %v table", kvTable)
	if cerr := p.createTable(ctx); cerr != nil {
		return cerr
	}
	return op()
}

func (p *PostgresStore) GetRaw(ctx context.Context, category, key string) ([]byte, bool, error) {
	var value []byte
	found := false
	err := p.withTable(ctx, category, func() error {
		row := p.db.QueryRowContext(ctx, `SELECT value FROM `+kvTable+` WHERE category = $1 AND key = $2`, category, key)
		err := row.Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil {
		return nil, false, persistenceErr("get", category, key, err)
	}
	return value, found, nil
}

func (p *PostgresStore) SetRaw(ctx context.Context, category, key string, value []byte) error {
	err := p.withTable(ctx, category, func() error {
		_, err := p.db.ExecContext(ctx, `INSERT INTO `+kvTable+` (category, key, value, updated_at) VALUES ($1, $2, $3, NOW())
			ON CONFLICT (category, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`, category, key, value)
		return err
	})
	return persistenceErr("set", category, key, err)
}

func (p *PostgresStore) GetAllRaw(ctx context.Context, category string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	err := p.withTable(ctx, category, func() error {
		rows, err := p.db.QueryContext(ctx, `SELECT key, value FROM `+kvTable+` WHERE category = $1`, category)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var k string
			var v []byte
			if err := rows.Scan(&k, &v); err != nil {
				return err
			}
			out[k] = v
		}
		return rows.Err()
	})
	if err != nil {
		return nil, persistenceErr("list", category, "", err)
	}
	return out, nil
}

func (p *PostgresStore) Remove(ctx context.Context, category, key string) error {
	err := p.withTable(ctx, category, func() error {
		_, err := p.db.ExecContext(ctx, `DELETE FROM `+kvTable+` WHERE category = $1 AND key = $2`, category, key)
		return err
	})
	return persistenceErr("delete", category, key, err)
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}
