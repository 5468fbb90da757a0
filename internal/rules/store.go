// Package rules manages labeling/routing rules: creation against the
// remote filter surface, a local record of every rule, and the
// retroactive application of a new rule to existing messages.
package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/mailwarden/internal/model"
	"github.com/ppiankov/mailwarden/internal/retro"
)

// Record is the locally persisted view of one rule: its remote filter
// id, the criteria and action it was created with, and the report of
// its retroactive run if one happened.
type Record struct {
	ID        string             `json:"id"`
	Selector  model.RuleSelector `json:"selector"`
	Action    model.RuleAction   `json:"action"`
	CreatedAt time.Time          `json:"created_at"`
	RetroRun  *retro.Report      `json:"retro_run,omitempty"`
}

// Store records rules and their retro run reports in a local SQLite
// database, so get/list can report past outcomes without refetching.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the rules database at the given path.
func OpenStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS rules (
	id            TEXT PRIMARY KEY,
	selector_json TEXT NOT NULL,
	action_json   TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	retro_json    TEXT NOT NULL DEFAULT ''
);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Put inserts or replaces a rule record.
func (s *Store) Put(ctx context.Context, rec Record) error {
	selJSON, err := json.Marshal(rec.Selector)
	if err != nil {
		return err
	}
	actJSON, err := json.Marshal(rec.Action)
	if err != nil {
		return err
	}
	retroJSON := ""
	if rec.RetroRun != nil {
		b, err := json.Marshal(rec.RetroRun)
		if err != nil {
			return err
		}
		retroJSON = string(b)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rules (id, selector_json, action_json, created_at, retro_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			selector_json = excluded.selector_json,
			action_json   = excluded.action_json,
			retro_json    = excluded.retro_json
	`, rec.ID, string(selJSON), string(actJSON), rec.CreatedAt.UTC().Format(time.RFC3339), retroJSON)
	if err != nil {
		return fmt.Errorf("store rule %s: %w", rec.ID, err)
	}
	return nil
}

// Get loads one rule record by id.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, selector_json, action_json, created_at, retro_json FROM rules WHERE id = ?`, id)
	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Kind: "rule", ID: id}
	}
	return rec, err
}

// Delete removes a rule record. Missing ids are not an error here; the
// remote surface decides whether the rule existed.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	return err
}

// List returns all rule records, newest first.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, selector_json, action_json, created_at, retro_json FROM rules ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func scanRecord(scan func(dest ...any) error) (*Record, error) {
	var rec Record
	var selJSON, actJSON, createdAt, retroJSON string
	if err := scan(&rec.ID, &selJSON, &actJSON, &createdAt, &retroJSON); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(selJSON), &rec.Selector); err != nil {
		return nil, fmt.Errorf("rule %s: selector: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(actJSON), &rec.Action); err != nil {
		return nil, fmt.Errorf("rule %s: action: %w", rec.ID, err)
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		rec.CreatedAt = t
	}
	if retroJSON != "" {
		var r retro.Report
		if err := json.Unmarshal([]byte(retroJSON), &r); err != nil {
			return nil, fmt.Errorf("rule %s: retro report: %w", rec.ID, err)
		}
		rec.RetroRun = &r
	}
	return &rec, nil
}
