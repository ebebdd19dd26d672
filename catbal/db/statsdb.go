package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ZanzyTHEbar/catalog-balancer/catbal/stats"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "github.com/tursodatabase/go-libsql"
)

// Run is one benchmark or replay session
type Run struct {
	ID        uuid.UUID
	Kind      string
	Config    string
	StartedAt time.Time
}

// Snapshot captures the catalog weights at the end of an iteration
type Snapshot struct {
	ID        uuid.UUID
	RunID     uuid.UUID
	Iteration int
	TakenAt   time.Time
	Weights   map[string]int64
}

// StatsDB stores benchmark runs, their per-iteration rows and catalog
// snapshots in a libsql database
type StatsDB struct {
	db     *sql.DB
	logger zerolog.Logger
}

// ConnectToDB opens the libsql database file at path, creating its directory
func ConnectToDB(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("could not create database directory: %w", err)
	}
	db, err := sql.Open("libsql", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// NewStatsDB opens or initializes the statistics database at path
func NewStatsDB(path string, logger zerolog.Logger) (*StatsDB, error) {
	db, err := ConnectToDB(path)
	if err != nil {
		return nil, err
	}
	s := &StatsDB{db: db, logger: logger}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug().Str("path", path).Msg("Statistics database ready")
	return s, nil
}

func (s *StatsDB) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY UNIQUE,
		kind TEXT NOT NULL,
		config TEXT,
		started_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}

	_, err = s.db.Exec(`CREATE TABLE IF NOT EXISTS iterations (
		run_id TEXT NOT NULL,
		iteration INTEGER NOT NULL,
		size INTEGER,
		elapsed_ns INTEGER,
		balance INTEGER,
		catalogs INTEGER,
		min_catalogs REAL,
		entries INTEGER,
		mean REAL,
		median REAL,
		max REAL,
		min REAL,
		std_deviation REAL,
		PRIMARY KEY (run_id, iteration)
	)`)
	if err != nil {
		return fmt.Errorf("failed to create iterations table: %w", err)
	}

	_, err = s.db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY UNIQUE,
		run_id TEXT NOT NULL,
		iteration INTEGER NOT NULL,
		taken_at TEXT NOT NULL,
		weights BLOB
	)`)
	if err != nil {
		return fmt.Errorf("failed to create snapshots table: %w", err)
	}
	return nil
}

// Close closes the database
func (s *StatsDB) Close() error {
	return s.db.Close()
}

// StartRun registers a new run
func (s *StatsDB) StartRun(kind, config string) (*Run, error) {
	run := &Run{
		ID:        uuid.New(),
		Kind:      kind,
		Config:    config,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec("INSERT INTO runs (id, kind, config, started_at) VALUES (?, ?, ?, ?)",
		run.ID.String(), run.Kind, run.Config, run.StartedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	s.logger.Debug().Str("run", run.ID.String()).Str("kind", kind).Msg("Run started")
	return run, nil
}

// Runs lists every run, oldest first
func (s *StatsDB) Runs() ([]Run, error) {
	rows, err := s.db.Query("SELECT id, kind, config, started_at FROM runs ORDER BY started_at")
	if err != nil {
		return nil, fmt.Errorf("error querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run           Run
			id, startedAt string
			config        sql.NullString
		)
		if err := rows.Scan(&id, &run.Kind, &config, &startedAt); err != nil {
			return nil, fmt.Errorf("error scanning run: %w", err)
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid run id %q: %w", id, err)
		}
		if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("invalid run timestamp %q: %w", startedAt, err)
		}
		run.Config = config.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RecordIterations stores report rows of a run in one transaction
func (s *StatsDB) RecordIterations(runID uuid.UUID, rows ...stats.Row) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op once committed

	for _, r := range rows {
		_, err := tx.Exec(`INSERT OR REPLACE INTO iterations (
			run_id, iteration, size, elapsed_ns, balance, catalogs, min_catalogs,
			entries, mean, median, max, min, std_deviation
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID.String(), r.Iteration, r.Size, int64(r.Elapsed), r.Balance, r.Count, r.MinCatalogs,
			r.Entries, r.Mean, r.Median, r.Max, r.Min, r.StdDev)
		if err != nil {
			return fmt.Errorf("failed to insert iteration %d: %w", r.Iteration, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Iterations returns the rows of a run ordered by iteration
func (s *StatsDB) Iterations(runID uuid.UUID) ([]stats.Row, error) {
	rows, err := s.db.Query(`SELECT iteration, size, elapsed_ns, balance, catalogs, min_catalogs,
		entries, mean, median, max, min, std_deviation
		FROM iterations WHERE run_id = ? ORDER BY iteration`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("error querying iterations: %w", err)
	}
	defer rows.Close()

	var result []stats.Row
	for rows.Next() {
		var (
			r       stats.Row
			elapsed int64
		)
		err := rows.Scan(&r.Iteration, &r.Size, &elapsed, &r.Balance, &r.Count, &r.MinCatalogs,
			&r.Entries, &r.Mean, &r.Median, &r.Max, &r.Min, &r.StdDev)
		if err != nil {
			return nil, fmt.Errorf("error scanning iteration: %w", err)
		}
		r.Elapsed = time.Duration(elapsed)
		result = append(result, r)
	}
	return result, rows.Err()
}

// TakeSnapshot stores the catalog weights reached at the given iteration
func (s *StatsDB) TakeSnapshot(runID uuid.UUID, iteration int, weights map[string]int64) (*Snapshot, error) {
	state, err := json.Marshal(weights)
	if err != nil {
		return nil, fmt.Errorf("error marshalling catalog weights: %w", err)
	}
	snap := &Snapshot{
		ID:        uuid.New(),
		RunID:     runID,
		Iteration: iteration,
		TakenAt:   time.Now().UTC(),
		Weights:   weights,
	}
	_, err = s.db.Exec("INSERT INTO snapshots (id, run_id, iteration, taken_at, weights) VALUES (?, ?, ?, ?, ?)",
		snap.ID.String(), runID.String(), iteration, snap.TakenAt.Format(time.RFC3339Nano), state)
	if err != nil {
		return nil, fmt.Errorf("error inserting snapshot into database: %w", err)
	}
	return snap, nil
}

// Snapshots returns the snapshots of a run ordered by iteration
func (s *StatsDB) Snapshots(runID uuid.UUID) ([]Snapshot, error) {
	rows, err := s.db.Query("SELECT id, iteration, taken_at, weights FROM snapshots WHERE run_id = ? ORDER BY iteration",
		runID.String())
	if err != nil {
		return nil, fmt.Errorf("error querying snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var (
			snap        Snapshot
			id, takenAt string
			state       []byte
		)
		if err := rows.Scan(&id, &snap.Iteration, &takenAt, &state); err != nil {
			return nil, fmt.Errorf("error scanning snapshot: %w", err)
		}
		if snap.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid snapshot id %q: %w", id, err)
		}
		if snap.TakenAt, err = time.Parse(time.RFC3339Nano, takenAt); err != nil {
			return nil, fmt.Errorf("invalid snapshot timestamp %q: %w", takenAt, err)
		}
		if err := json.Unmarshal(state, &snap.Weights); err != nil {
			return nil, fmt.Errorf("error unmarshalling catalog weights: %w", err)
		}
		snap.RunID = runID
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}
