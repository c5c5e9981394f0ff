// Package postgres provides the Postgres-backed crawl result store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/crowley/internal/crawler"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// schema creates the domain and link tables. The primary key on domain.url
// makes a second save of the same domain fail.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS domain (
	url TEXT PRIMARY KEY
)`,
	`CREATE TABLE IF NOT EXISTS link (
	url        TEXT NOT NULL,
	domain_url TEXT NOT NULL REFERENCES domain (url)
)`,
	`CREATE INDEX IF NOT EXISTS link_domain_url_idx ON link (domain_url)`,
}

type querier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type pool interface {
	querier
	Begin(context.Context) (pgx.Tx, error)
	Ping(context.Context) error
	Close()
}

// LinkStore persists crawl results into Postgres.
type LinkStore struct {
	pool pool
	db   querier
}

// New connects a pgx pool using cfg.
func New(ctx context.Context, cfg Config) (*LinkStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("store.postgres_dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &LinkStore{pool: p, db: p}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool) (*LinkStore, error) {
	if p == nil {
		return nil, errors.New("pool is required")
	}
	return &LinkStore{pool: p, db: p}, nil
}

// Close releases the underlying pool resources.
func (s *LinkStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks the database is reachable.
func (s *LinkStore) Ping(ctx context.Context) error {
	if s.pool == nil {
		return errors.New("postgres pool is not configured")
	}
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// EnsureSchema creates the tables when they are missing.
func (s *LinkStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// InTx runs fn against a store bound to one transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
func (s *LinkStore) InTx(ctx context.Context, fn func(crawler.Store) error) error {
	if s.pool == nil {
		return errors.New("transactions need a pool-backed store")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&LinkStore{db: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// DomainExists reports whether name has a domain row.
func (s *LinkStore) DomainExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM domain WHERE url = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query domain: %w", err)
	}
	return exists, nil
}

// InsertDomain inserts the domain row for name.
func (s *LinkStore) InsertDomain(ctx context.Context, name string) error {
	if _, err := s.db.Exec(ctx, `INSERT INTO domain (url) VALUES ($1)`, name); err != nil {
		return fmt.Errorf("insert domain: %w", err)
	}
	return nil
}

// InsertLink inserts one link row.
func (s *LinkStore) InsertLink(ctx context.Context, rawURL, domainName string) error {
	if _, err := s.db.Exec(ctx, `INSERT INTO link (url, domain_url) VALUES ($1, $2)`, rawURL, domainName); err != nil {
		return fmt.Errorf("insert link: %w", err)
	}
	return nil
}

// LinksForDomain returns the URLs stored for name in lexical order.
func (s *LinkStore) LinksForDomain(ctx context.Context, name string) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT url FROM link WHERE domain_url = $1 ORDER BY url`, name)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	links := []string{}
	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate links: %w", err)
	}
	return links, nil
}

// CountLinksForDomain returns how many links are stored for name.
func (s *LinkStore) CountLinksForDomain(ctx context.Context, name string) (int, error) {
	var count int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM link WHERE domain_url = $1`, name).Scan(&count); err != nil {
		return 0, fmt.Errorf("count links: %w", err)
	}
	return count, nil
}
