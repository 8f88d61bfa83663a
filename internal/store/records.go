package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/Simplici0/extrusion-capacity/internal/capacity"
)

// insertChunk keeps multi-row inserts well under SQLite's bound variable limit.
const insertChunk = 500

// Batch is one uploaded set of production records.
type Batch struct {
	ID          int64
	Source      string
	Sheet       string
	RecordCount int
	Warnings    []string
	CreatedAt   time.Time
}

// SaveBatch stores records as a new batch. The newest batch is the current one.
func (s *Store) SaveBatch(ctx context.Context, source, sheet string, records []capacity.ProductionRecord, warnings []string) (Batch, error) {
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return Batch{}, fmt.Errorf("encode batch warnings: %w", err)
	}

	var id int64
	err = s.inTx(ctx, func(q DBTX) error {
		res, err := exec(ctx, q, psql.Insert("record_batches").
			Columns("source", "sheet", "record_count", "warnings_json").
			Values(source, sheet, len(records), string(warningsJSON)))
		if err != nil {
			return fmt.Errorf("insert record batch: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("read record batch id: %w", err)
		}

		for start := 0; start < len(records); start += insertChunk {
			end := min(start+insertChunk, len(records))
			ins := psql.Insert("production_records").
				Columns("batch_id", "line", "formulation", "width_mm", "weight_kg", "run_time_h")
			for _, r := range records[start:end] {
				ins = ins.Values(id, r.Line, r.Formulation, widthValue(r.Width), r.WeightKg, r.RunTimeH)
			}
			if _, err := exec(ctx, q, ins); err != nil {
				return fmt.Errorf("insert production records: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Batch{}, err
	}

	return s.Batch(ctx, id)
}

var batchColumns = []string{"id", "source", "sheet", "record_count", "warnings_json", "created_at"}

// Batch returns a batch by id.
func (s *Store) Batch(ctx context.Context, id int64) (Batch, error) {
	return s.scanBatch(ctx, psql.Select(batchColumns...).From("record_batches").Where(sq.Eq{"id": id}))
}

// LatestBatch returns the most recently stored batch.
func (s *Store) LatestBatch(ctx context.Context) (Batch, error) {
	return s.scanBatch(ctx, psql.Select(batchColumns...).From("record_batches").OrderBy("id DESC").Limit(1))
}

func (s *Store) scanBatch(ctx context.Context, b sq.SelectBuilder) (Batch, error) {
	row, err := queryRow(ctx, s.db, b)
	if err != nil {
		return Batch{}, err
	}

	var batch Batch
	var warningsJSON string
	err = row.Scan(&batch.ID, &batch.Source, &batch.Sheet, &batch.RecordCount, &warningsJSON, timestamp{&batch.CreatedAt})
	if errors.Is(err, sql.ErrNoRows) {
		return Batch{}, fmt.Errorf("record batch: %w", ErrNotFound)
	}
	if err != nil {
		return Batch{}, fmt.Errorf("query record batch: %w", err)
	}
	if err := json.Unmarshal([]byte(warningsJSON), &batch.Warnings); err != nil {
		return Batch{}, fmt.Errorf("decode batch warnings: %w", err)
	}
	return batch, nil
}

// Records returns a batch's records in upload order.
func (s *Store) Records(ctx context.Context, batchID int64) ([]capacity.ProductionRecord, error) {
	rows, err := query(ctx, s.db, psql.
		Select("line", "formulation", "width_mm", "weight_kg", "run_time_h").
		From("production_records").
		Where(sq.Eq{"batch_id": batchID}).
		OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("query production records: %w", err)
	}
	defer rows.Close()

	records := make([]capacity.ProductionRecord, 0)
	for rows.Next() {
		var r capacity.ProductionRecord
		var width sql.NullFloat64
		if err := rows.Scan(&r.Line, &r.Formulation, &width, &r.WeightKg, &r.RunTimeH); err != nil {
			return nil, fmt.Errorf("scan production record: %w", err)
		}
		r.Width = widthFrom(width)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate production records: %w", err)
	}
	return records, nil
}
