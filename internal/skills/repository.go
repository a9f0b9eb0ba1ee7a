// Package skills manages the agent's learned skill repository: named
// macros the agent can replay instead of re-deriving primitive actions.
package skills

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Skill is one learned macro.
type Skill struct {
	Name     string
	Category string
	// Pattern is a space-separated keyword list; a step matches when
	// every keyword appears in its text.
	Pattern  string
	Body     string
	Unlocked bool
	Uses     int
}

// ErrNotFound is returned when no skill matches a lookup.
var ErrNotFound = errors.New("skill not found")

const schema = `
CREATE TABLE IF NOT EXISTS skills (
	name       TEXT PRIMARY KEY,
	category   TEXT NOT NULL,
	pattern    TEXT NOT NULL,
	body       TEXT NOT NULL,
	unlocked   INTEGER NOT NULL DEFAULT 0,
	uses       INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_skills_category ON skills(category);
`

// Repository is a SQLite-backed skill store.
type Repository struct {
	db *sql.DB
}

// Open opens (and migrates) the skill database at path. Use ":memory:"
// for an ephemeral repository.
func Open(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open skill database: %w", err)
	}
	// modernc sqlite serializes internally but keep one writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate skill database: %w", err)
	}
	return &Repository{db: db}, nil
}

// Close releases the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Save inserts or replaces a skill.
func (r *Repository) Save(s *Skill) error {
	if s.Name == "" {
		return fmt.Errorf("skill name is required")
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.Exec(`
		INSERT INTO skills (name, category, pattern, body, unlocked, uses, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			category = excluded.category,
			pattern = excluded.pattern,
			body = excluded.body,
			unlocked = excluded.unlocked,
			updated_at = excluded.updated_at`,
		s.Name, s.Category, s.Pattern, s.Body, boolInt(s.Unlocked), s.Uses, now, now)
	if err != nil {
		return fmt.Errorf("save skill %s: %w", s.Name, err)
	}
	return nil
}

// Get returns a skill by name.
func (r *Repository) Get(name string) (*Skill, error) {
	row := r.db.QueryRow(`
		SELECT name, category, pattern, body, unlocked, uses
		FROM skills WHERE name = ?`, name)
	return scanSkill(row)
}

// Find returns the best skill match for a step in a category: the
// matching skill whose pattern covers the most keywords, unlocked
// first. Returns ErrNotFound when nothing matches.
func (r *Repository) Find(category, stepText string) (*Skill, error) {
	rows, err := r.db.Query(`
		SELECT name, category, pattern, body, unlocked, uses
		FROM skills WHERE category = ?
		ORDER BY unlocked DESC, uses DESC, name`, category)
	if err != nil {
		return nil, fmt.Errorf("query skills for %s: %w", category, err)
	}
	defer rows.Close()

	lower := strings.ToLower(stepText)
	var best *Skill
	bestScore := 0
	for rows.Next() {
		s, err := scanSkillRows(rows)
		if err != nil {
			return nil, err
		}
		score := patternScore(s.Pattern, lower)
		if score == 0 {
			continue
		}
		if best == nil || score > bestScore ||
			(score == bestScore && s.Unlocked && !best.Unlocked) {
			best = s
			bestScore = score
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan skills: %w", err)
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

// patternScore returns the keyword count when every pattern keyword
// appears in the step text, else 0.
func patternScore(pattern, lowerStep string) int {
	words := strings.Fields(strings.ToLower(pattern))
	if len(words) == 0 {
		return 0
	}
	for _, w := range words {
		if !strings.Contains(lowerStep, w) {
			return 0
		}
	}
	return len(words)
}

// Unlock marks a skill as available for replay.
func (r *Repository) Unlock(name string) error {
	res, err := r.db.Exec(`
		UPDATE skills SET unlocked = 1, updated_at = ? WHERE name = ?`,
		time.Now().UTC().Format(time.RFC3339), name)
	if err != nil {
		return fmt.Errorf("unlock skill %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordUse increments a skill's replay counter.
func (r *Repository) RecordUse(name string) error {
	_, err := r.db.Exec(`
		UPDATE skills SET uses = uses + 1, updated_at = ? WHERE name = ?`,
		time.Now().UTC().Format(time.RFC3339), name)
	if err != nil {
		return fmt.Errorf("record skill use %s: %w", name, err)
	}
	return nil
}

// List returns all skills sorted by name.
func (r *Repository) List() ([]*Skill, error) {
	rows, err := r.db.Query(`
		SELECT name, category, pattern, body, unlocked, uses
		FROM skills ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	defer rows.Close()

	var out []*Skill
	for rows.Next() {
		s, err := scanSkillRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSkill(row *sql.Row) (*Skill, error) {
	var s Skill
	var unlocked int
	err := row.Scan(&s.Name, &s.Category, &s.Pattern, &s.Body, &unlocked, &s.Uses)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan skill: %w", err)
	}
	s.Unlocked = unlocked != 0
	return &s, nil
}

func scanSkillRows(rows *sql.Rows) (*Skill, error) {
	var s Skill
	var unlocked int
	if err := rows.Scan(&s.Name, &s.Category, &s.Pattern, &s.Body, &unlocked, &s.Uses); err != nil {
		return nil, fmt.Errorf("scan skill: %w", err)
	}
	s.Unlocked = unlocked != 0
	return &s, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
