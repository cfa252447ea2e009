package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flxmf365/hospital-booking-bot/internal/components/assert"
	"github.com/flxmf365/hospital-booking-bot/internal/notifier"
	"github.com/flxmf365/hospital-booking-bot/internal/prober"
	"github.com/flxmf365/hospital-booking-bot/pkg/migrations"

	_ "embed"
)

//go:embed schema.sql
var Schema string

// Store keeps the probe and event history of every run.
type Store struct {
	db    *sql.DB
	runID string
}

func NewStore(database *sql.DB, runID string) Store {
	assert.NotNil(database)
	return Store{db: database, runID: runID}
}

// Open opens (and migrates) the database at path, see migrations.OpenDB for what path may be.
func Open(ctx context.Context, path, runID string) (Store, error) {
	db, err := migrations.OpenAndMigrateDB(ctx, Schema, path)
	if err != nil {
		return Store{}, err
	}
	return NewStore(db, runID), nil
}

func (s Store) Close() error {
	return s.db.Close()
}

func encodeLabels(labels []string) string {
	if labels == nil {
		labels = []string{}
	}
	encoded, _ := json.Marshal(labels)
	return string(encoded)
}

func decodeLabels(raw string) ([]string, error) {
	labels := []string{}
	err := json.Unmarshal([]byte(raw), &labels)
	return labels, err
}

func (s Store) RecordProbe(ctx context.Context, snapshot prober.SlotSnapshot) error {
	var reason sql.NullString
	if snapshot.Err != nil {
		reason = sql.NullString{String: snapshot.Err.Error(), Valid: true}
	}

	_, err := s.db.ExecContext(
		ctx,
		`insert into probes (run_id, target, probed_at, available, labels, error) values (?, ?, ?, ?, ?, ?)`,
		s.runID,
		snapshot.Target,
		snapshot.ProbedAt.UnixMilli(),
		snapshot.Available,
		encodeLabels(snapshot.Labels),
		reason,
	)
	if err != nil {
		return fmt.Errorf("record probe: %w", err)
	}
	return nil
}

func (s Store) RecordEvent(ctx context.Context, ev notifier.Event) error {
	_, err := s.db.ExecContext(
		ctx,
		`insert into events (run_id, target, kind, at, labels) values (?, ?, ?, ?, ?)`,
		s.runID,
		ev.Target,
		string(ev.Kind),
		ev.At.UnixMilli(),
		encodeLabels(ev.Labels),
	)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

type ProbeRecord struct {
	RunID     string
	Target    string
	ProbedAt  time.Time
	Available bool
	Labels    []string
	Error     string
}

type EventRecord struct {
	RunID  string
	Target string
	Kind   notifier.EventKind
	At     time.Time
	Labels []string
}

func scanProbes(rows *sql.Rows) ([]ProbeRecord, error) {
	defer rows.Close()

	var out []ProbeRecord
	for rows.Next() {
		var record ProbeRecord
		var probedAt int64
		var labels string
		var reason sql.NullString
		err := rows.Scan(&record.RunID, &record.Target, &probedAt, &record.Available, &labels, &reason)
		if err != nil {
			return nil, err
		}
		record.ProbedAt = time.UnixMilli(probedAt)
		record.Error = reason.String
		record.Labels, err = decodeLabels(labels)
		if err != nil {
			return nil, fmt.Errorf("decode labels: %w", err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// RecentProbes returns the newest probes first, an empty target means every target.
func (s Store) RecentProbes(ctx context.Context, target string, limit int) ([]ProbeRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`select run_id, target, probed_at, available, labels, error from probes
		where (? = '' or target = ?)
		order by probed_at desc, id desc
		limit ?`,
		target, target, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent probes: %w", err)
	}
	return scanProbes(rows)
}

// LatestProbes returns the newest probe of every target, ordered by target.
func (s Store) LatestProbes(ctx context.Context) ([]ProbeRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`select p.run_id, p.target, p.probed_at, p.available, p.labels, p.error from probes p
		where p.id = (
			select id from probes latest
			where latest.target = p.target
			order by latest.probed_at desc, latest.id desc
			limit 1
		)
		order by p.target`,
	)
	if err != nil {
		return nil, fmt.Errorf("latest probes: %w", err)
	}
	return scanProbes(rows)
}

// RecentEvents returns the newest events first.
func (s Store) RecentEvents(ctx context.Context, limit int) ([]EventRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`select run_id, target, kind, at, labels from events order by at desc, id desc limit ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var record EventRecord
		var at int64
		var kind, labels string
		err := rows.Scan(&record.RunID, &record.Target, &kind, &at, &labels)
		if err != nil {
			return nil, err
		}
		record.Kind = notifier.EventKind(kind)
		record.At = time.UnixMilli(at)
		record.Labels, err = decodeLabels(labels)
		if err != nil {
			return nil, fmt.Errorf("decode labels: %w", err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}
