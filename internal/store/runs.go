// Package store keeps a history of sampling runs in SQLite: the problem
// each run answered, its counts, and its full sample population, so that a
// population can be conditioned on new knowledge later without resampling.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"demski/internal/logging"
	"demski/internal/registry"
	"demski/internal/sampler"
)

// ErrRunNotFound is returned when no run matches an id.
var ErrRunNotFound = errors.New("run not found")

// Run is one stored sampling or update result. For an update run, Background
// is the full knowledge the population was conditioned on and Added holds
// the sentences that update contributed.
type Run struct {
	ID           string
	ParentID     string
	Source       string
	Declarations []string
	Background   []string
	Target       string
	Added        []string
	Samples      int
	Hits         int
	Seed         int64
	Duration     time.Duration
	CreatedAt    time.Time
}

// Probability is Hits/Samples, or 0 without samples.
func (r Run) Probability() float64 {
	if r.Samples == 0 {
		return 0
	}
	return float64(r.Hits) / float64(r.Samples)
}

// IsUpdate reports whether the run conditioned a parent population.
func (r Run) IsUpdate() bool { return r.ParentID != "" }

// RunStore persists runs and their populations.
type RunStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Open initializes the SQLite database at path. ":memory:" opens a private
// in-memory database.
func Open(path string) (*RunStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "store.Open")
	defer timer.Stop()

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		logging.StoreError("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		logging.StoreDebug("Failed to enable foreign keys: %v", err)
	}

	s := &RunStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Store("run store ready at %s", path)
	return s, nil
}

func (s *RunStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		parent_id TEXT REFERENCES runs(id),
		source TEXT NOT NULL DEFAULT '',
		declarations TEXT NOT NULL,
		background TEXT NOT NULL,
		target TEXT NOT NULL,
		added TEXT NOT NULL DEFAULT '[]',
		samples INTEGER NOT NULL,
		hits INTEGER NOT NULL,
		seed INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_parent ON runs(parent_id);

	CREATE TABLE IF NOT EXISTS paths (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		idx INTEGER NOT NULL,
		literals TEXT NOT NULL,
		PRIMARY KEY(run_id, idx)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return migrate(s.db)
}

// Close closes the database.
func (s *RunStore) Close() error {
	return s.db.Close()
}

// storedLiteral is the JSON form of a sampler.Literal.
type storedLiteral struct {
	Name string `json:"v"`
	Bool *bool  `json:"b,omitempty"`
	Int  *int   `json:"i,omitempty"`
}

func encodePath(p sampler.Path) (string, error) {
	out := make([]storedLiteral, len(p))
	for i, l := range p {
		out[i].Name = l.Var.Name
		if l.Var.IsBool() {
			b := l.Bool
			out[i].Bool = &b
		} else {
			n := l.Int
			out[i].Int = &n
		}
	}
	data, err := json.Marshal(out)
	return string(data), err
}

func decodePath(data string, reg registry.Lookup) (sampler.Path, error) {
	var stored []storedLiteral
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return nil, err
	}
	p := make(sampler.Path, len(stored))
	for i, sl := range stored {
		v, ok := reg.Lookup(sl.Name)
		if !ok {
			return nil, fmt.Errorf("variable %s is not declared", sl.Name)
		}
		p[i].Var = v
		switch {
		case v.IsBool() && sl.Bool != nil:
			p[i].Bool = *sl.Bool
		case !v.IsBool() && sl.Int != nil:
			p[i].Int = *sl.Int
		default:
			return nil, fmt.Errorf("stored value of %s does not match its kind", sl.Name)
		}
	}
	return p, nil
}

// SaveRun stores run and its population in one transaction and returns the
// new run id. run.ID, run.Samples, run.Hits and run.CreatedAt are filled in.
func (s *RunStore) SaveRun(ctx context.Context, run *Run, pop *sampler.Population) (string, error) {
	timer := logging.StartTimer(logging.CategoryStore, "SaveRun")
	defer timer.Stop()

	run.ID = uuid.New().String()
	run.Samples = pop.Len()
	run.Hits = pop.Hits
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	decls, err := json.Marshal(run.Declarations)
	if err != nil {
		return "", err
	}
	background, err := json.Marshal(nonNil(run.Background))
	if err != nil {
		return "", err
	}
	added, err := json.Marshal(nonNil(run.Added))
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var parent interface{}
	if run.ParentID != "" {
		parent = run.ParentID
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, parent_id, source, declarations, background, target, added, samples, hits, seed, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, parent, run.Source, string(decls), string(background), run.Target, string(added),
		run.Samples, run.Hits, run.Seed, run.Duration.Milliseconds(), run.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO paths (run_id, idx, literals) VALUES (?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare path insert: %w", err)
	}
	defer stmt.Close()
	for i, p := range pop.Paths {
		lits, err := encodePath(p)
		if err != nil {
			return "", fmt.Errorf("failed to encode path %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, run.ID, i, lits); err != nil {
			return "", fmt.Errorf("failed to insert path %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	logging.Store("saved run %s (%d/%d)", run.ID, run.Hits, run.Samples)
	return run.ID, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

const runColumns = `id, COALESCE(parent_id, ''), source, declarations, background, target, added, samples, hits, seed, duration_ms, created_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		r                        Run
		decls, background, added string
		durationMS               int64
	)
	err := row.Scan(&r.ID, &r.ParentID, &r.Source, &decls, &background, &r.Target, &added,
		&r.Samples, &r.Hits, &r.Seed, &durationMS, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Duration = time.Duration(durationMS) * time.Millisecond
	if err := json.Unmarshal([]byte(decls), &r.Declarations); err != nil {
		return nil, fmt.Errorf("run %s: bad declarations: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(background), &r.Background); err != nil {
		return nil, fmt.Errorf("run %s: bad background: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(added), &r.Added); err != nil {
		return nil, fmt.Errorf("run %s: bad added sentences: %w", r.ID, err)
	}
	return &r, nil
}

// GetRun returns the run whose id equals id or, failing that, the single
// run whose id starts with id.
func (s *RunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id LIKE ? || '%' LIMIT 2`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var found []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 1:
		return found[0], nil
	}
	return nil, fmt.Errorf("run id prefix %s is ambiguous", id)
}

// ListRuns returns the most recent runs first. limit <= 0 means all.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, rowid DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// LoadPopulation rebuilds the stored population of a run. Variables are
// resolved against reg, which must declare every stored name.
func (s *RunStore) LoadPopulation(ctx context.Context, run *Run, reg registry.Lookup) (*sampler.Population, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT literals FROM paths WHERE run_id = ? ORDER BY idx`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load paths: %w", err)
	}
	defer rows.Close()

	pop := &sampler.Population{Hits: run.Hits}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		p, err := decodePath(data, reg)
		if err != nil {
			return nil, fmt.Errorf("run %s path %d: %w", run.ID, len(pop.Paths), err)
		}
		pop.Paths = append(pop.Paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if pop.Len() != run.Samples {
		return nil, fmt.Errorf("run %s has %d stored paths, expected %d", run.ID, pop.Len(), run.Samples)
	}
	return pop, nil
}
