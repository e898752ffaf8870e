// Package persistence provides durable storage for learned values, the
// knowledge base, and run history. Two backends share one contract: plain
// files (FileStore) and SQLite (DB).
package persistence

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/forager/internal/engine"
	"github.com/talgya/forager/internal/geom"
	"github.com/talgya/forager/internal/learning"
)

// DB wraps a SQLite connection.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS q_values (
		table_key TEXT NOT NULL,
		state INTEGER NOT NULL,
		action INTEGER NOT NULL,
		value REAL NOT NULL,
		PRIMARY KEY (table_key, state, action)
	);

	CREATE TABLE IF NOT EXISTS points (
		list_key TEXT NOT NULL,
		seq INTEGER NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		z REAL NOT NULL,
		PRIMARY KEY (list_key, seq)
	);

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		campaign_id TEXT NOT NULL,
		run INTEGER NOT NULL,
		max_runs INTEGER NOT NULL,
		elapsed_s REAL NOT NULL,
		wall_ms INTEGER NOT NULL,
		agents INTEGER NOT NULL,
		found INTEGER NOT NULL,
		timed_out INTEGER NOT NULL,
		finished_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_campaign ON runs(campaign_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type qRow struct {
	State  int     `db:"state"`
	Action int     `db:"action"`
	Value  float64 `db:"value"`
}

// LoadTable returns every stored entry for key; empty when none.
func (db *DB) LoadTable(key string) (map[learning.Key]float64, error) {
	var rows []qRow
	err := db.conn.Select(&rows,
		"SELECT state, action, value FROM q_values WHERE table_key = ?", key)
	if err != nil {
		return nil, err
	}
	values := make(map[learning.Key]float64, len(rows))
	for _, r := range rows {
		k := learning.Key{State: r.State, Action: r.Action}
		if _, dup := values[k]; !dup {
			values[k] = r.Value
		}
	}
	return values, nil
}

// SaveTable replaces every entry for key in one transaction.
func (db *DB) SaveTable(key string, values map[learning.Key]float64) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM q_values WHERE table_key = ?", key); err != nil {
		return err
	}

	stmt, err := tx.Preparex("INSERT INTO q_values (table_key, state, action, value) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for k, v := range values {
		if _, err := stmt.Exec(key, k.State, k.Action, v); err != nil {
			return fmt.Errorf("insert q(%d,%d): %w", k.State, k.Action, err)
		}
	}

	return tx.Commit()
}

type pointRow struct {
	X float64 `db:"x"`
	Y float64 `db:"y"`
	Z float64 `db:"z"`
}

// LoadPoints returns the list stored under key in insertion order.
func (db *DB) LoadPoints(key string) ([]geom.Point3, error) {
	var rows []pointRow
	err := db.conn.Select(&rows,
		"SELECT x, y, z FROM points WHERE list_key = ? ORDER BY seq", key)
	if err != nil {
		return nil, err
	}
	pts := make([]geom.Point3, 0, len(rows))
	for _, r := range rows {
		pts = append(pts, geom.Pt(r.X, r.Y, r.Z))
	}
	return pts, nil
}

// SavePoints replaces the list stored under key in one transaction.
func (db *DB) SavePoints(key string, pts []geom.Point3) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM points WHERE list_key = ?", key); err != nil {
		return err
	}
	for i, p := range pts {
		_, err := tx.Exec("INSERT INTO points (list_key, seq, x, y, z) VALUES (?, ?, ?, ?, ?)",
			key, i, p.X, p.Y, p.Z)
		if err != nil {
			return fmt.Errorf("insert point %d: %w", i, err)
		}
	}

	return tx.Commit()
}

type runRow struct {
	CampaignID string  `db:"campaign_id"`
	Run        int     `db:"run"`
	MaxRuns    int     `db:"max_runs"`
	ElapsedS   float64 `db:"elapsed_s"`
	WallMs     int64   `db:"wall_ms"`
	Agents     int     `db:"agents"`
	Found      int     `db:"found"`
	TimedOut   bool    `db:"timed_out"`
	FinishedAt string  `db:"finished_at"`
}

// RecordRun appends one completed run.
func (db *DB) RecordRun(rec engine.RunRecord) error {
	_, err := db.conn.Exec(`INSERT INTO runs
		(campaign_id, run, max_runs, elapsed_s, wall_ms, agents, found, timed_out, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CampaignID, rec.Run, rec.MaxRuns, rec.Elapsed, rec.Wall.Milliseconds(),
		rec.Agents, rec.Found, rec.TimedOut, rec.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run %d: %w", rec.Run, err)
	}
	slog.Debug("run recorded", "campaign", rec.CampaignID, "run", rec.Run)
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (db *DB) RecentRuns(limit int) ([]engine.RunRecord, error) {
	var rows []runRow
	err := db.conn.Select(&rows, `SELECT campaign_id, run, max_runs, elapsed_s, wall_ms,
		agents, found, timed_out, finished_at FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	out := make([]engine.RunRecord, 0, len(rows))
	for _, r := range rows {
		finished, err := time.Parse(time.RFC3339Nano, r.FinishedAt)
		if err != nil {
			slog.Warn("run has unreadable finish time", "campaign", r.CampaignID, "run", r.Run, "finished_at", r.FinishedAt, "error", err)
		}
		out = append(out, engine.RunRecord{
			CampaignID: r.CampaignID,
			Run:        r.Run,
			MaxRuns:    r.MaxRuns,
			Elapsed:    r.ElapsedS,
			Wall:       time.Duration(r.WallMs) * time.Millisecond,
			Agents:     r.Agents,
			Found:      r.Found,
			TimedOut:   r.TimedOut,
			FinishedAt: finished,
		})
	}
	return out, nil
}
