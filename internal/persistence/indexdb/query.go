package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
)

// Reader runs summary queries against a closed or live index file.
type Reader struct {
	db *sql.DB
}

func OpenReader(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

type TickRange struct {
	Count int64
	First uint64
	Last  uint64
}

func (r *Reader) Ticks(ctx context.Context) (TickRange, error) {
	var out TickRange
	var first, last sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1), MIN(tick), MAX(tick) FROM ticks`).Scan(&out.Count, &first, &last)
	if err != nil {
		return TickRange{}, err
	}
	out.First = uint64(first.Int64)
	out.Last = uint64(last.Int64)
	return out, nil
}

type TypeCount struct {
	Type  string
	Count int64
}

// EventCounts groups archived audit events by type, most frequent first.
func (r *Reader) EventCounts(ctx context.Context) ([]TypeCount, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT type, COUNT(1) AS n FROM audits GROUP BY type ORDER BY n DESC, type ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TypeCount
	for rows.Next() {
		var c TypeCount
		if err := rows.Scan(&c.Type, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type AuditRow struct {
	Tick     uint64
	ID       string
	Type     string
	Severity string
	Message  string
}

// AgentAudits returns the most recent audit rows naming agentID.
func (r *Reader) AgentAudits(ctx context.Context, agentID string, limit int) ([]AuditRow, error) {
	if agentID == "" {
		return nil, fmt.Errorf("empty agent id")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT tick, id, type, severity, message FROM audits WHERE agent_id = ? ORDER BY tick DESC, seq DESC LIMIT ?`,
		agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditRow
	for rows.Next() {
		var a AuditRow
		var tick int64
		if err := rows.Scan(&tick, &a.ID, &a.Type, &a.Severity, &a.Message); err != nil {
			return nil, err
		}
		a.Tick = uint64(tick)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Reader) Meta(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (r *Reader) SnapshotCount(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM snapshots`).Scan(&n)
	return n, err
}
