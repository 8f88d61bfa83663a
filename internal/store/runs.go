package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/Simplici0/extrusion-capacity/internal/capacity"
)

// RunInfo summarizes a stored run.
type RunInfo struct {
	ID          string
	Scenario    string
	BatchID     int64
	GrandTotal  float64
	Diagnostics int
	Blocking    bool
	CreatedAt   time.Time
}

// SaveRun stores a report snapshot under a new id. batchID 0 means the records
// did not come from a stored batch.
func (s *Store) SaveRun(ctx context.Context, rep capacity.Report, batchID int64) (RunInfo, error) {
	data, err := json.Marshal(rep)
	if err != nil {
		return RunInfo{}, fmt.Errorf("encode run report: %w", err)
	}

	info := RunInfo{
		ID:          uuid.NewString(),
		Scenario:    rep.Scenario,
		BatchID:     batchID,
		GrandTotal:  rep.Rollups.GrandTotal,
		Diagnostics: len(rep.Diagnostics),
		Blocking:    capacity.HasBlocking(rep.Diagnostics),
	}
	batch := sql.NullInt64{Int64: batchID, Valid: batchID != 0}

	if _, err := exec(ctx, s.db, psql.Insert("runs").
		Columns("id", "scenario_name", "batch_id", "grand_total", "diagnostics", "blocking", "report_json").
		Values(info.ID, info.Scenario, batch, info.GrandTotal, info.Diagnostics, info.Blocking, string(data))); err != nil {
		return RunInfo{}, fmt.Errorf("insert run: %w", err)
	}

	saved, _, err := s.Run(ctx, info.ID)
	return saved, err
}

var runColumns = []string{"id", "scenario_name", "batch_id", "grand_total", "diagnostics", "blocking", "created_at"}

func scanRun(scan func(dest ...any) error, extra ...any) (RunInfo, error) {
	var info RunInfo
	var batch sql.NullInt64
	dest := append([]any{&info.ID, &info.Scenario, &batch, &info.GrandTotal, &info.Diagnostics, &info.Blocking, timestamp{&info.CreatedAt}}, extra...)
	if err := scan(dest...); err != nil {
		return RunInfo{}, err
	}
	info.BatchID = batch.Int64
	return info, nil
}

// Run returns a stored run and its report.
func (s *Store) Run(ctx context.Context, id string) (RunInfo, capacity.Report, error) {
	row, err := queryRow(ctx, s.db, psql.Select(append(runColumns, "report_json")...).From("runs").Where(sq.Eq{"id": id}))
	if err != nil {
		return RunInfo{}, capacity.Report{}, err
	}

	var data string
	info, err := scanRun(row.Scan, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return RunInfo{}, capacity.Report{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return RunInfo{}, capacity.Report{}, fmt.Errorf("query run: %w", err)
	}

	var rep capacity.Report
	if err := json.Unmarshal([]byte(data), &rep); err != nil {
		return RunInfo{}, capacity.Report{}, fmt.Errorf("decode run report: %w", err)
	}
	return info, rep, nil
}

// ListRuns returns the newest runs first. limit <= 0 returns all of them.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunInfo, error) {
	b := psql.Select(runColumns...).From("runs").OrderBy("datetime(created_at) DESC", "rowid DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	rows, err := query(ctx, s.db, b)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunInfo, 0)
	for rows.Next() {
		info, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func sortedLines(m map[string]capacity.Shift) []string {
	lines := slices.Collect(maps.Keys(m))
	slices.Sort(lines)
	return lines
}
