// Package store persists templates and submissions in a local SQLite
// database so a schema built once can back many fill sessions.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/goliatone/go-docfill/pkg/submission"
	"github.com/goliatone/go-docfill/pkg/template"
)

// ErrNotFound reports a lookup that matched nothing.
var ErrNotFound = errors.New("store: not found")

const schema = `
CREATE TABLE IF NOT EXISTS templates (
	name       TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS submissions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	template_name TEXT NOT NULL REFERENCES templates(name) ON DELETE CASCADE,
	payload       TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_submissions_template
	ON submissions(template_name);
`

// Store wraps the SQLite handle. Safe for concurrent use; the database runs
// in WAL mode with a busy timeout.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveTemplate inserts or replaces a template under the given name.
func (s *Store) SaveTemplate(ctx context.Context, name string, tpl *template.Template) error {
	payload, err := template.Marshal(tpl)
	if err != nil {
		return fmt.Errorf("store: encode template: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO templates (name, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		name, string(payload), now, now)
	if err != nil {
		return fmt.Errorf("store: save template %q: %w", name, err)
	}
	return nil
}

// LoadTemplate fetches a template by name.
func (s *Store) LoadTemplate(ctx context.Context, name string) (*template.Template, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM templates WHERE name = ?`, name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: template %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("store: load template %q: %w", name, err)
	}
	return template.Unmarshal([]byte(payload))
}

// ListTemplates returns the stored template names, newest first.
func (s *Store) ListTemplates(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM templates ORDER BY updated_at DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("store: list templates: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("store: scan template name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list templates: %w", err)
	}
	return names, nil
}

// DeleteTemplate removes a template and, via the foreign key, its
// submissions.
func (s *Store) DeleteTemplate(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM templates WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("store: delete template %q: %w", name, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete template %q: %w", name, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: template %q", ErrNotFound, name)
	}
	return nil
}

// SavedSubmission is one stored answer set.
type SavedSubmission struct {
	ID           int64
	TemplateName string
	Values       submission.Submission
	CreatedAt    time.Time
}

// SaveSubmission records an answer set against a stored template and returns
// its id.
func (s *Store) SaveSubmission(ctx context.Context, templateName string, values submission.Submission) (int64, error) {
	payload, err := json.Marshal(values)
	if err != nil {
		return 0, fmt.Errorf("store: encode submission: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions (template_name, payload, created_at)
		VALUES (?, ?, ?)`,
		templateName, string(payload), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("store: save submission for %q: %w", templateName, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: save submission for %q: %w", templateName, err)
	}
	return id, nil
}

// LoadSubmission fetches one stored submission by id.
func (s *Store) LoadSubmission(ctx context.Context, id int64) (SavedSubmission, error) {
	var (
		saved   SavedSubmission
		payload string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, template_name, payload, created_at
		FROM submissions WHERE id = ?`, id).
		Scan(&saved.ID, &saved.TemplateName, &payload, &saved.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SavedSubmission{}, fmt.Errorf("%w: submission %d", ErrNotFound, id)
	}
	if err != nil {
		return SavedSubmission{}, fmt.Errorf("store: load submission %d: %w", id, err)
	}

	saved.Values, err = submission.Parse([]byte(payload))
	if err != nil {
		return SavedSubmission{}, fmt.Errorf("store: decode submission %d: %w", id, err)
	}
	return saved, nil
}

// ListSubmissions returns the stored submissions for a template, newest
// first.
func (s *Store) ListSubmissions(ctx context.Context, templateName string) ([]SavedSubmission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, template_name, payload, created_at
		FROM submissions WHERE template_name = ?
		ORDER BY created_at DESC, id DESC`, templateName)
	if err != nil {
		return nil, fmt.Errorf("store: list submissions for %q: %w", templateName, err)
	}
	defer rows.Close()

	var out []SavedSubmission
	for rows.Next() {
		var (
			saved   SavedSubmission
			payload string
		)
		if err := rows.Scan(&saved.ID, &saved.TemplateName, &payload, &saved.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan submission: %w", err)
		}
		saved.Values, err = submission.Parse([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("store: decode submission %d: %w", saved.ID, err)
		}
		out = append(out, saved)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list submissions for %q: %w", templateName, err)
	}
	return out, nil
}
