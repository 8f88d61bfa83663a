package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/Simplici0/extrusion-capacity/internal/capacity"
)

// EnsureOperating stores p as the operating parameters unless some are stored
// already. It reports whether it inserted.
func (s *Store) EnsureOperating(ctx context.Context, p capacity.OperatingParameters) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM operating_default WHERE id = 1)`).Scan(&exists); err != nil {
		return false, fmt.Errorf("check operating parameters existence: %w", err)
	}
	if exists {
		return false, nil
	}
	if err := s.SaveOperating(ctx, p); err != nil {
		return false, err
	}
	return true, nil
}

// Operating returns the stored operating parameters, or the defaults when none
// have been stored.
func (s *Store) Operating(ctx context.Context) (capacity.OperatingParameters, error) {
	p := capacity.DefaultOperating()

	row, err := queryRow(ctx, s.db, psql.Select("uptime", "days").From("operating_default").Where(sq.Eq{"id": 1}))
	if err != nil {
		return p, err
	}
	err = row.Scan(&p.Default.Uptime, &p.Default.Days)
	if errors.Is(err, sql.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("query operating parameters: %w", err)
	}

	rows, err := query(ctx, s.db, psql.Select("line", "uptime", "days").From("operating_lines").OrderBy("line"))
	if err != nil {
		return p, fmt.Errorf("query line operating parameters: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line string
		var shift capacity.Shift
		if err := rows.Scan(&line, &shift.Uptime, &shift.Days); err != nil {
			return p, fmt.Errorf("scan line operating parameters: %w", err)
		}
		if p.Lines == nil {
			p.Lines = make(map[string]capacity.Shift)
		}
		p.Lines[line] = shift
	}
	if err := rows.Err(); err != nil {
		return p, fmt.Errorf("iterate line operating parameters: %w", err)
	}
	return p, nil
}

// SaveOperating replaces the stored operating parameters.
func (s *Store) SaveOperating(ctx context.Context, p capacity.OperatingParameters) error {
	if err := p.Validate(); err != nil {
		return err
	}

	return s.inTx(ctx, func(q DBTX) error {
		if _, err := exec(ctx, q, psql.Insert("operating_default").
			Columns("id", "uptime", "days").
			Values(1, p.Default.Uptime, p.Default.Days).
			Suffix("ON CONFLICT(id) DO UPDATE SET uptime = excluded.uptime, days = excluded.days, updated_at = CURRENT_TIMESTAMP")); err != nil {
			return fmt.Errorf("upsert operating parameters: %w", err)
		}

		if _, err := exec(ctx, q, psql.Delete("operating_lines")); err != nil {
			return fmt.Errorf("clear line operating parameters: %w", err)
		}
		if len(p.Lines) == 0 {
			return nil
		}
		ins := psql.Insert("operating_lines").Columns("line", "uptime", "days")
		for _, line := range sortedLines(p.Lines) {
			shift := p.Lines[line]
			ins = ins.Values(line, shift.Uptime, shift.Days)
		}
		if _, err := exec(ctx, q, ins); err != nil {
			return fmt.Errorf("insert line operating parameters: %w", err)
		}
		return nil
	})
}
