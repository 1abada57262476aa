// Package postgres provides a Postgres-backed snapshot store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/internradar/crawler/internal/scrape"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type db interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Store persists the snapshot in a single table; Save swaps the whole
// snapshot inside one transaction so readers never observe a partial write.
//
// Expected schema:
//
//	CREATE TABLE internships (
//	    position        INT PRIMARY KEY,
//	    internship_id   TEXT NOT NULL,
//	    job_title       TEXT NOT NULL,
//	    company_name    TEXT NOT NULL,
//	    location        TEXT NOT NULL,
//	    duration        TEXT NOT NULL,
//	    stipend         TEXT NOT NULL,
//	    posted_time     TEXT NOT NULL,
//	    actively_hiring BOOLEAN NOT NULL,
//	    details_url     TEXT NOT NULL UNIQUE,
//	    description     TEXT NOT NULL,
//	    skills          JSONB NOT NULL,
//	    apply_by        TEXT NOT NULL
//	);
type Store struct {
	pool  db
	table string
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("storage.dsn is required")
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
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewWithPool(pool, cfg.Table)
}

// NewWithPool constructs a Store from an existing pool (primarily for
// testing with pgxmock).
func NewWithPool(pool db, table string) (*Store, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if table == "" {
		table = "internships"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Load reads the snapshot in stored order.
func (s *Store) Load(ctx context.Context) ([]scrape.Listing, error) {
	query := fmt.Sprintf(`
SELECT internship_id, job_title, company_name, location, duration, stipend,
	posted_time, actively_hiring, details_url, description, skills, apply_by
FROM %s ORDER BY position`, s.table)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	var listings []scrape.Listing
	for rows.Next() {
		var (
			l          scrape.Listing
			skillsJSON []byte
		)
		if err := rows.Scan(
			&l.InternshipID,
			&l.JobTitle,
			&l.CompanyName,
			&l.Location,
			&l.Duration,
			&l.Stipend,
			&l.PostedTime,
			&l.ActivelyHiring,
			&l.DetailsURL,
			&l.Description,
			&skillsJSON,
			&l.ApplyBy,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		if err := json.Unmarshal(skillsJSON, &l.Skills); err != nil {
			return nil, fmt.Errorf("decode skills for %s: %w", l.DetailsURL, err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return listings, nil
}

// Save replaces the whole snapshot in one transaction.
func (s *Store) Save(ctx context.Context, listings []scrape.Listing) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot swap: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", s.table)); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}

	insert := fmt.Sprintf(`
INSERT INTO %s (
	position, internship_id, job_title, company_name, location, duration,
	stipend, posted_time, actively_hiring, details_url, description, skills,
	apply_by
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`, s.table)

	for i, l := range listings {
		skillsJSON, err := json.Marshal(skillsOrEmpty(l.Skills))
		if err != nil {
			return fmt.Errorf("encode skills for %s: %w", l.DetailsURL, err)
		}
		if _, err := tx.Exec(ctx, insert,
			i,
			l.InternshipID,
			l.JobTitle,
			l.CompanyName,
			l.Location,
			l.Duration,
			l.Stipend,
			l.PostedTime,
			l.ActivelyHiring,
			l.DetailsURL,
			l.Description,
			skillsJSON,
			l.ApplyBy,
		); err != nil {
			return fmt.Errorf("insert listing %s: %w", l.DetailsURL, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot swap: %w", err)
	}
	return nil
}

func skillsOrEmpty(skills []string) []string {
	if skills == nil {
		return []string{}
	}
	return skills
}
