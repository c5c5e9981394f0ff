// Package sqlite provides the SQLite-backed crawl result store. It is the
// default store and needs no server: the database lives in one file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Registers the pure-Go "sqlite" database/sql driver.
	_ "github.com/glebarez/go-sqlite"

	"github.com/JakeFAU/crowley/internal/crawler"
)

// DefaultPath is where the database file lives when no path is configured.
const DefaultPath = "./database.db"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS domain (
	url TEXT PRIMARY KEY NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS link (
	url        TEXT NOT NULL,
	domain_url TEXT NOT NULL REFERENCES domain (url)
)`,
	`CREATE INDEX IF NOT EXISTS link_domain_url_idx ON link (domain_url)`,
}

type execer interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// LinkStore persists crawl results into SQLite.
type LinkStore struct {
	conn *sql.DB
	db   execer
}

// Open opens (creating if needed) the database at path. ":memory:" gives a
// private in-memory database. Driver pragmas may be appended to path as
// query parameters, e.g. "file.db?_pragma=busy_timeout(5000)".
func Open(path string) (*LinkStore, error) {
	if path == "" {
		path = DefaultPath
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection serializes writers and keeps ":memory:" a single database.
	conn.SetMaxOpenConns(1)
	return &LinkStore{conn: conn, db: conn}, nil
}

// Close closes the database.
func (s *LinkStore) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

// Ping checks the database is reachable.
func (s *LinkStore) Ping(ctx context.Context) error {
	if err := s.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// EnsureSchema creates the tables when they are missing.
func (s *LinkStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// InTx runs fn against a store bound to one transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
func (s *LinkStore) InTx(ctx context.Context, fn func(crawler.Store) error) error {
	if s.conn == nil {
		return errors.New("transactions need a connection-backed store")
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&LinkStore{db: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// DomainExists reports whether name has a domain row.
func (s *LinkStore) DomainExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM domain WHERE url = ?)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query domain: %w", err)
	}
	return exists, nil
}

// InsertDomain inserts the domain row for name.
func (s *LinkStore) InsertDomain(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO domain (url) VALUES (?)`, name); err != nil {
		return fmt.Errorf("insert domain: %w", err)
	}
	return nil
}

// InsertLink inserts one link row.
func (s *LinkStore) InsertLink(ctx context.Context, rawURL, domainName string) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO link (url, domain_url) VALUES (?, ?)`, rawURL, domainName); err != nil {
		return fmt.Errorf("insert link: %w", err)
	}
	return nil
}

// LinksForDomain returns the URLs stored for name in lexical order.
func (s *LinkStore) LinksForDomain(ctx context.Context, name string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT url FROM link WHERE domain_url = ? ORDER BY url`, name)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer func() {
		_ = rows.Close() //nolint:errcheck // read-only cursor
	}()

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
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM link WHERE domain_url = ?`, name).Scan(&count); err != nil {
		return 0, fmt.Errorf("count links: %w", err)
	}
	return count, nil
}
