package seed

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/Simplici0/extrusion-capacity/internal/capacity"
	"github.com/Simplici0/extrusion-capacity/internal/scenarios"
	"github.com/Simplici0/extrusion-capacity/internal/store"
)

// Config contains the values required by startup seed.
type Config struct {
	AdminEmail    string
	AdminPassword string
	Operating     capacity.OperatingParameters
	// Scenarios are stored as built-in unless a scenario with the same name exists.
	Scenarios []scenarios.Definition
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Updates int
}

// Builtins decodes every embedded scenario, for use as Config.Scenarios.
func Builtins() ([]scenarios.Definition, error) {
	names := scenarios.Names()
	defs := make([]scenarios.Definition, 0, len(names))
	for _, name := range names {
		def, err := scenarios.Builtin(name)
		if err != nil {
			return nil, fmt.Errorf("load built-in scenario %q: %w", name, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Run executes the startup seed in an idempotent way.
func Run(db *sql.DB, cfg Config) (Stats, error) {
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}
	st := store.New(tx)

	if err := seedAdmin(tx, cfg.AdminEmail, cfg.AdminPassword, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureOperating(ctx, st, cfg.Operating, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	for _, def := range cfg.Scenarios {
		if err := ensureScenario(ctx, st, def, &stats); err != nil {
			_ = tx.Rollback()
			return Stats{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func seedAdmin(tx *sql.Tx, email, password string, stats *Stats) error {
	if email == "" || password == "" {
		return nil
	}

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE email = ? LIMIT 1)`, email).Scan(&exists); err != nil {
		return fmt.Errorf("check admin user existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.Exec(`INSERT INTO users (email, password_hash) VALUES (?, ?)`, email, HashPassword(password)); err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	stats.Inserts++
	return nil
}

// HashPassword returns the hex sha256 digest stored in users.password_hash.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func ensureOperating(ctx context.Context, st *store.Store, p capacity.OperatingParameters, stats *Stats) error {
	inserted, err := st.EnsureOperating(ctx, p)
	if err != nil {
		return fmt.Errorf("ensure operating parameters: %w", err)
	}
	if inserted {
		stats.Inserts++
	}
	return nil
}

func ensureScenario(ctx context.Context, st *store.Store, def scenarios.Definition, stats *Stats) error {
	exists, err := st.ScenarioExists(ctx, def.Scenario.Name())
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := st.SaveScenario(ctx, def.Scenario, def.Description, true); err != nil {
		return fmt.Errorf("insert built-in scenario: %w", err)
	}
	stats.Inserts++
	return nil
}
