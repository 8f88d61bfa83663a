package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/Simplici0/extrusion-capacity/internal/capacity"
)

// ScenarioInfo describes a stored scenario without its shares.
type ScenarioInfo struct {
	ID          int64
	Name        string
	Description string
	Builtin     bool
	Shares      int
	UpdatedAt   time.Time
}

// SaveScenario inserts or replaces a scenario by name, keeping its raw share
// tuples in order so that rebuilding it yields the same Scenario.
func (s *Store) SaveScenario(ctx context.Context, sc capacity.Scenario, description string, builtin bool) error {
	return s.inTx(ctx, func(q DBTX) error {
		var id int64
		row, err := queryRow(ctx, q, psql.Select("id").From("scenarios").Where(sq.Eq{"name": sc.Name()}))
		if err != nil {
			return err
		}
		err = row.Scan(&id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res, err := exec(ctx, q, psql.Insert("scenarios").
				Columns("name", "description", "builtin").
				Values(sc.Name(), description, builtin))
			if err != nil {
				return fmt.Errorf("insert scenario %q: %w", sc.Name(), err)
			}
			if id, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("read scenario id: %w", err)
			}
		case err != nil:
			return fmt.Errorf("query scenario %q: %w", sc.Name(), err)
		default:
			if _, err := exec(ctx, q, psql.Update("scenarios").
				Set("description", description).
				Set("builtin", builtin).
				Set("updated_at", sq.Expr("CURRENT_TIMESTAMP")).
				Where(sq.Eq{"id": id})); err != nil {
				return fmt.Errorf("update scenario %q: %w", sc.Name(), err)
			}
			if _, err := exec(ctx, q, psql.Delete("scenario_shares").Where(sq.Eq{"scenario_id": id})); err != nil {
				return fmt.Errorf("clear scenario shares: %w", err)
			}
		}

		entries := sc.Entries()
		for start := 0; start < len(entries); start += insertChunk {
			end := min(start+insertChunk, len(entries))
			ins := psql.Insert("scenario_shares").
				Columns("scenario_id", "position", "line", "formulation", "has_width", "width_mm", "share")
			for i := start; i < end; i++ {
				e := entries[i]
				var width sql.NullFloat64
				if e.Width != nil {
					width = widthValue(*e.Width)
				}
				var share sql.NullFloat64
				if e.Share != nil {
					share = sql.NullFloat64{Float64: *e.Share, Valid: true}
				}
				ins = ins.Values(id, i, e.Line, e.Formulation, e.Width != nil, width, share)
			}
			if _, err := exec(ctx, q, ins); err != nil {
				return fmt.Errorf("insert scenario shares: %w", err)
			}
		}
		return nil
	})
}

// ScenarioExists reports whether a scenario with name is stored.
func (s *Store) ScenarioExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM scenarios WHERE name = ? LIMIT 1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check scenario existence: %w", err)
	}
	return exists, nil
}

// ListScenarios returns stored scenarios ordered by name.
func (s *Store) ListScenarios(ctx context.Context) ([]ScenarioInfo, error) {
	rows, err := query(ctx, s.db, psql.
		Select("s.id", "s.name", "s.description", "s.builtin", "s.updated_at", "COUNT(ss.position)").
		From("scenarios s").
		LeftJoin("scenario_shares ss ON ss.scenario_id = s.id").
		GroupBy("s.id").
		OrderBy("s.name"))
	if err != nil {
		return nil, fmt.Errorf("query scenarios: %w", err)
	}
	defer rows.Close()

	list := make([]ScenarioInfo, 0)
	for rows.Next() {
		var info ScenarioInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.Description, &info.Builtin, timestamp{&info.UpdatedAt}, &info.Shares); err != nil {
			return nil, fmt.Errorf("scan scenario: %w", err)
		}
		list = append(list, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenarios: %w", err)
	}
	return list, nil
}

// LoadScenario rebuilds a stored scenario by replaying its share tuples.
func (s *Store) LoadScenario(ctx context.Context, name string) (capacity.Scenario, error) {
	exists, err := s.ScenarioExists(ctx, name)
	if err != nil {
		return capacity.Scenario{}, err
	}
	if !exists {
		return capacity.Scenario{}, fmt.Errorf("scenario %q: %w", name, ErrNotFound)
	}

	rows, err := query(ctx, s.db, psql.
		Select("ss.line", "ss.formulation", "ss.has_width", "ss.width_mm", "ss.share").
		From("scenario_shares ss").
		Join("scenarios s ON s.id = ss.scenario_id").
		Where(sq.Eq{"s.name": name}).
		OrderBy("ss.position"))
	if err != nil {
		return capacity.Scenario{}, fmt.Errorf("query scenario shares: %w", err)
	}
	defer rows.Close()

	b := capacity.NewScenarioBuilder(name)
	for rows.Next() {
		var e capacity.ShareEntry
		var hasWidth bool
		var width, share sql.NullFloat64
		if err := rows.Scan(&e.Line, &e.Formulation, &hasWidth, &width, &share); err != nil {
			return capacity.Scenario{}, fmt.Errorf("scan scenario share: %w", err)
		}
		if hasWidth {
			w := widthFrom(width)
			e.Width = &w
		}
		if share.Valid {
			v := share.Float64
			e.Share = &v
		}
		b.Append(e)
	}
	if err := rows.Err(); err != nil {
		return capacity.Scenario{}, fmt.Errorf("iterate scenario shares: %w", err)
	}
	return b.Build()
}

// DeleteScenario removes a scenario and its shares.
func (s *Store) DeleteScenario(ctx context.Context, name string) error {
	res, err := exec(ctx, s.db, psql.Delete("scenarios").Where(sq.Eq{"name": name}))
	if err != nil {
		return fmt.Errorf("delete scenario %q: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete scenario %q: %w", name, err)
	}
	if affected == 0 {
		return fmt.Errorf("scenario %q: %w", name, ErrNotFound)
	}
	return nil
}
