package schema

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	_ "modernc.org/sqlite"
)

// Store serves built-in templates and persists custom ones in SQLite.
// Custom templates are independent records: they survive restarts and are
// not tied to any target folder.
type Store struct {
	sqlDB *sql.DB
	node  *snowflake.Node
}

// Open opens (creating if needed) the custom-template database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("schema: database path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("schema: open database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("schema: ping database: %w", err)
	}
	if _, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS custom_templates (
		id             TEXT PRIMARY KEY,
		name           TEXT NOT NULL,
		description    TEXT NOT NULL,
		sections       TEXT NOT NULL,
		filename_field TEXT NOT NULL,
		remarks_field  TEXT NOT NULL,
		created_at     INTEGER NOT NULL
	)`); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("schema: create table: %w", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("schema: id generator: %w", err)
	}
	return &Store{sqlDB: sqlDB, node: node}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// List returns template summaries: built-ins first in declaration order,
// then custom templates in insertion order.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Summary
	for _, b := range Builtins() {
		out = append(out, b.Summary())
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, name, description FROM custom_templates ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("schema: list templates: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.Description); err != nil {
			return nil, fmt.Errorf("schema: list templates: %w", err)
		}
		sum.Custom = true
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schema: list templates: %w", err)
	}
	return out, nil
}

// Get returns the template with the given id, built-in or custom.
func (s *Store) Get(ctx context.Context, id string) (*Schema, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b, ok := Builtin(id); ok {
		return &b, nil
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, description, sections, filename_field, remarks_field
		   FROM custom_templates WHERE id = ?`, id)

	var sc Schema
	var sections string
	err := row.Scan(&sc.ID, &sc.Name, &sc.Description, &sections, &sc.FilenameField, &sc.RemarksField)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
		}
		return nil, fmt.Errorf("schema: get template: %w", err)
	}
	if err := json.Unmarshal([]byte(sections), &sc.Sections); err != nil {
		return nil, fmt.Errorf("schema: decode template %q: %w", id, err)
	}
	sc.Custom = true
	return &sc, nil
}

// SaveCustom validates and persists a custom template. A template with no
// ID gets a generated one; an existing ID is overwritten. Returns the id.
func (s *Store) SaveCustom(ctx context.Context, sc *Schema) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := sc.Validate(); err != nil {
		return "", err
	}
	if _, ok := Builtin(sc.ID); ok {
		return "", fmt.Errorf("%w: id %q is reserved", ErrInvalid, sc.ID)
	}
	id := strings.TrimSpace(sc.ID)
	if id == "" {
		id = s.node.Generate().String()
	}
	sections, err := json.Marshal(sc.Sections)
	if err != nil {
		return "", fmt.Errorf("schema: encode template: %w", err)
	}
	now := time.Now().UTC().UnixMilli()
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO custom_templates (id, name, description, sections, filename_field, remarks_field, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   description = excluded.description,
		   sections = excluded.sections,
		   filename_field = excluded.filename_field,
		   remarks_field = excluded.remarks_field`,
		id, sc.Name, sc.Description, string(sections), sc.FilenameField, sc.RemarksField, now)
	if err != nil {
		return "", fmt.Errorf("schema: save template: %w", err)
	}
	sc.ID = id
	sc.Custom = true
	return id, nil
}

// DeleteCustom removes a custom template record. Snapshots that reference
// the id keep their frozen values; they are recovered through Freeform when
// re-opened.
func (s *Store) DeleteCustom(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := Builtin(id); ok {
		return fmt.Errorf("%w: cannot delete built-in template %q", ErrInvalid, id)
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM custom_templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("schema: delete template: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("schema: delete template: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return nil
}
