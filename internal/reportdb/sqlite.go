// Package reportdb keeps a SQLite index of finished execution reports so
// past builds can be listed and inspected. World state is never stored
// here, only what the pipeline itself produced.
package reportdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"geovoxel.dev/internal/protocol"
)

type Store struct {
	db *sql.DB

	ch   chan protocol.ExecutionReport
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db: db,
		ch: make(chan protocol.ExecutionReport, 256),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-only report workload.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS reports (
			run_id TEXT PRIMARY KEY,
			recorded_at TEXT NOT NULL,
			success INTEGER NOT NULL,
			commands_executed INTEGER NOT NULL,
			blocks_affected INTEGER NOT NULL,
			failures INTEGER NOT NULL,
			elapsed_ms INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_reports_recorded ON reports(recorded_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Write queues a report for insertion. Safe for slow disks: writes happen
// in a single background goroutine.
func (s *Store) Write(r protocol.ExecutionReport) error {
	if s.closed.Load() {
		return fmt.Errorf("reportdb closed")
	}
	select {
	case s.ch <- r:
		return nil
	default:
		return fmt.Errorf("reportdb backpressure")
	}
}

func (s *Store) loop() {
	for r := range s.ch {
		raw, err := json.Marshal(r)
		if err != nil {
			continue
		}
		_, _ = s.db.Exec(
			`INSERT OR REPLACE INTO reports
			 (run_id, recorded_at, success, commands_executed, blocks_affected, failures, elapsed_ms, raw_json)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID,
			time.Now().UTC().Format(time.RFC3339Nano),
			boolToInt(r.Success),
			r.CommandsExecuted,
			r.BlocksAffectedTotal,
			len(r.Failures),
			r.ElapsedTotal.Milliseconds(),
			string(raw),
		)
	}
}

type Row struct {
	RunID            string
	RecordedAt       string
	Success          bool
	CommandsExecuted int
	BlocksAffected   int64
	Failures         int
	ElapsedMS        int64
}

// Recent returns the newest n reports, newest first.
func (s *Store) Recent(n int) ([]Row, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := s.db.Query(
		`SELECT run_id, recorded_at, success, commands_executed, blocks_affected, failures, elapsed_ms
		 FROM reports ORDER BY recorded_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var success int
		if err := rows.Scan(&r.RunID, &r.RecordedAt, &success, &r.CommandsExecuted, &r.BlocksAffected, &r.Failures, &r.ElapsedMS); err != nil {
			return nil, err
		}
		r.Success = success != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
