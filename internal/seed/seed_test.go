package seed

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/Simplici0/extrusion-capacity/internal/capacity"
	"github.com/Simplici0/extrusion-capacity/internal/db"
	"github.com/Simplici0/extrusion-capacity/internal/migrations"
	"github.com/Simplici0/extrusion-capacity/internal/store"
)

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "seed-test.db")
	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	defer database.Close()

	if err := migrations.Up(database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	builtins, err := Builtins()
	if err != nil {
		t.Fatalf("load built-in scenarios: %v", err)
	}
	if len(builtins) != 2 {
		t.Fatalf("expected 2 built-in scenarios, got %d", len(builtins))
	}

	cfg := Config{
		AdminEmail:    "admin@extrusao.local",
		AdminPassword: "12345",
		Operating:     capacity.OperatingParameters{Default: capacity.Shift{Uptime: 0.9, Days: 28}},
		Scenarios:     builtins,
	}

	for i := 0; i < 10; i++ {
		stats, err := Run(database, cfg)
		if err != nil {
			t.Fatalf("run seed (iteration=%d): %v", i, err)
		}
		if i == 0 {
			if stats.Inserts != 4 {
				t.Fatalf("expected 4 inserts in first run, got %d", stats.Inserts)
			}
			continue
		}
		if stats.Inserts != 0 {
			t.Fatalf("expected 0 inserts in iteration %d, got %d", i, stats.Inserts)
		}
	}

	assertCount(t, database, `SELECT COUNT(*) FROM users WHERE email = ?`, "admin@extrusao.local", 1)
	assertCount(t, database, `SELECT COUNT(*) FROM operating_default WHERE id = 1`, nil, 1)
	assertCount(t, database, `SELECT COUNT(*) FROM scenarios WHERE builtin = ?`, true, 2)

	var hash string
	if err := database.QueryRow(`SELECT password_hash FROM users WHERE email = ?`, "admin@extrusao.local").Scan(&hash); err != nil {
		t.Fatalf("query admin hash: %v", err)
	}
	if hash != HashPassword("12345") {
		t.Fatalf("expected admin hash to match password")
	}

	st := store.New(database)
	p, err := st.Operating(context.Background())
	if err != nil {
		t.Fatalf("load operating parameters: %v", err)
	}
	if p.Default != cfg.Operating.Default {
		t.Fatalf("operating = %+v, want %+v", p.Default, cfg.Operating.Default)
	}

	sc, err := st.LoadScenario(context.Background(), "with_widths")
	if err != nil {
		t.Fatalf("load seeded scenario: %v", err)
	}
	if len(sc.Entries()) != len(builtins[1].Scenario.Entries()) {
		t.Fatalf("seeded scenario has %d entries, want %d", len(sc.Entries()), len(builtins[1].Scenario.Entries()))
	}
}

func TestRunKeepsEditedScenarios(t *testing.T) {
	database, err := db.Open(db.MemoryPath)
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	defer database.Close()
	if err := migrations.Up(database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	edited, _ := capacity.NewScenarioBuilder("base").Formula("L1", "F1", 1).Build()
	if err := store.New(database).SaveScenario(context.Background(), edited, "edited", false); err != nil {
		t.Fatalf("save scenario: %v", err)
	}

	builtins, err := Builtins()
	if err != nil {
		t.Fatalf("load built-in scenarios: %v", err)
	}
	stats, err := Run(database, Config{Operating: capacity.DefaultOperating(), Scenarios: builtins})
	if err != nil {
		t.Fatalf("run seed: %v", err)
	}
	if stats.Inserts != 2 {
		t.Fatalf("expected operating + with_widths inserts, got %d", stats.Inserts)
	}

	assertCount(t, database, `SELECT COUNT(*) FROM scenarios WHERE name = 'base' AND description = ?`, "edited", 1)
}

func assertCount(t *testing.T, database *sql.DB, query string, args any, expected int) {
	t.Helper()

	var count int
	var err error
	switch v := args.(type) {
	case nil:
		err = database.QueryRow(query).Scan(&count)
	case []any:
		err = database.QueryRow(query, v...).Scan(&count)
	default:
		err = database.QueryRow(query, v).Scan(&count)
	}
	if err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != expected {
		t.Fatalf("expected count %d, got %d", expected, count)
	}
}
