// Command capacity projects monthly extrusion output for a scenario from
// historical production records.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/Simplici0/extrusion-capacity/internal/capacity"
	"github.com/Simplici0/extrusion-capacity/internal/config"
	"github.com/Simplici0/extrusion-capacity/internal/db"
	"github.com/Simplici0/extrusion-capacity/internal/ingest"
	"github.com/Simplici0/extrusion-capacity/internal/logging"
	"github.com/Simplici0/extrusion-capacity/internal/migrations"
	"github.com/Simplici0/extrusion-capacity/internal/report"
	"github.com/Simplici0/extrusion-capacity/internal/scenarios"
	"github.com/Simplici0/extrusion-capacity/internal/store"
)

const defaultWorkbookName = "Relatorio_Extrusion_Capacidade.xlsx"

type options struct {
	dataPath      string
	scenario      string
	uptime        float64
	days          int
	out           string
	jsonPath      string
	chartsDir     string
	dbPath        string
	listScenarios bool
	// set records which flags were given explicitly.
	set map[string]bool
}

func main() {
	cfg := config.Load()
	logger := logging.Install(logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr))
	cfg.LogWarnings()

	if err := run(context.Background(), os.Args[1:], cfg, os.Stdout, logger); err != nil {
		logger.Error().Err(err).Msg("capacity run failed")
		exitWith(err.Error())
	}
}

func exitWith(message string) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	os.Exit(1)
}

func parseFlags(args []string, cfg config.Config, stderr io.Writer) (options, error) {
	opts := options{set: make(map[string]bool)}

	fs := flag.NewFlagSet("capacity", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.dataPath, "data", cfg.DataPath, "Path to the production records (.xlsx or .csv)")
	fs.StringVar(&opts.scenario, "scenario", "base", "Built-in scenario name, stored scenario name (with -db) or YAML file")
	fs.Float64Var(&opts.uptime, "uptime", cfg.Uptime, "Global uptime fraction (0-1)")
	fs.IntVar(&opts.days, "days", cfg.Days, "Days in the projected period")
	fs.StringVar(&opts.out, "out", filepath.Join(cfg.OutputDir, defaultWorkbookName), "Path to write the xlsx report (empty disables)")
	fs.StringVar(&opts.jsonPath, "json", "", "Optional path to write the JSON report")
	fs.StringVar(&opts.chartsDir, "charts", "", "Optional directory to write PNG charts")
	fs.StringVar(&opts.dbPath, "db", "", "Optional SQLite database to load scenarios from and store the run in")
	fs.BoolVar(&opts.listScenarios, "list-scenarios", false, "List available scenarios and exit")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	if opts.uptime < 0 || opts.uptime > 1 {
		return options{}, fmt.Errorf("uptime must be between 0 and 1")
	}
	if opts.days < 0 {
		return options{}, fmt.Errorf("days must be >= 0")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, cfg config.Config, stdout io.Writer, logger zerolog.Logger) error {
	opts, err := parseFlags(args, cfg, stdout)
	if err != nil {
		return err
	}

	var st *store.Store
	if opts.dbPath != "" {
		database, err := db.Open(opts.dbPath)
		if err != nil {
			return err
		}
		defer database.Close()
		if err := migrations.Up(database); err != nil {
			return err
		}
		st = store.New(database)
	}

	if opts.listScenarios {
		return listScenarios(ctx, stdout, st)
	}

	def, err := resolveScenario(ctx, st, opts.scenario)
	if err != nil {
		return err
	}
	params, err := operatingFor(ctx, st, cfg, def, opts)
	if err != nil {
		return err
	}

	in, err := ingest.ReadFile(opts.dataPath)
	if err != nil {
		return err
	}
	logger.Info().Str("path", opts.dataPath).Str("sheet", in.Sheet).Int("records", len(in.Records)).Int("warnings", len(in.Warnings)).Msg("production records loaded")

	if len(in.Warnings) > 0 {
		fmt.Fprintln(stdout, "Warnings:")
		for _, warning := range in.Warnings {
			fmt.Fprintf(stdout, "- %s\n", warning)
		}
		fmt.Fprintln(stdout)
	}

	rep, err := capacity.Run(in.Records, def.Scenario, params)
	if err != nil {
		return err
	}
	logger.Info().Str("scenario", rep.Scenario).Float64("total_kg", rep.Rollups.GrandTotal).Int("diagnostics", len(rep.Diagnostics)).Msg("scenario evaluated")

	if err := report.WriteText(stdout, rep); err != nil {
		return err
	}

	if opts.out != "" {
		if err := writeFile(opts.out, func(w io.Writer) error { return report.WriteWorkbook(w, rep, in.Records) }); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "\nWorkbook written to %s\n", opts.out)
	}
	if opts.jsonPath != "" {
		if err := writeFile(opts.jsonPath, func(w io.Writer) error { return report.WriteJSON(w, rep) }); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "JSON written to %s\n", opts.jsonPath)
	}
	if opts.chartsDir != "" {
		paths, err := report.WriteCharts(opts.chartsDir, rep)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintf(stdout, "Chart written to %s\n", p)
		}
	}

	if st != nil {
		batch, err := st.SaveBatch(ctx, filepath.Base(opts.dataPath), in.Sheet, in.Records, in.Warnings)
		if err != nil {
			return err
		}
		info, err := st.SaveRun(ctx, rep, batch.ID)
		if err != nil {
			return err
		}
		logger.Info().Str("run_id", info.ID).Int64("batch_id", batch.ID).Msg("run stored")
		fmt.Fprintf(stdout, "Run stored as %s\n", info.ID)
	}
	return nil
}

func listScenarios(ctx context.Context, w io.Writer, st *store.Store) error {
	fmt.Fprintln(w, "Built-in scenarios:")
	for _, name := range scenarios.Names() {
		fmt.Fprintf(w, "- %s\n", name)
	}
	if st == nil {
		return nil
	}

	stored, err := st.ListScenarios(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Stored scenarios:")
	for _, info := range stored {
		fmt.Fprintf(w, "- %s (%d shares) %s\n", info.Name, info.Shares, info.Description)
	}
	return nil
}

// resolveScenario prefers a stored scenario when a database is open, then a
// built-in name, then a YAML file path.
func resolveScenario(ctx context.Context, st *store.Store, name string) (scenarios.Definition, error) {
	if st != nil {
		sc, err := st.LoadScenario(ctx, name)
		if err == nil {
			return scenarios.Definition{Scenario: sc}, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return scenarios.Definition{}, err
		}
	}
	return scenarios.Resolve(name)
}

// operatingFor layers the operating parameters: environment, then stored
// parameters, then the scenario file, then explicit flags.
func operatingFor(ctx context.Context, st *store.Store, cfg config.Config, def scenarios.Definition, opts options) (capacity.OperatingParameters, error) {
	params := cfg.Operating()
	if st != nil {
		stored, err := st.Operating(ctx)
		if err != nil {
			return capacity.OperatingParameters{}, err
		}
		params = stored
	}
	if def.Operating != nil {
		params = *def.Operating
	}
	if opts.set["uptime"] {
		params.Default.Uptime = opts.uptime
	}
	if opts.set["days"] {
		params.Default.Days = opts.days
	}
	return params, params.Validate()
}

func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
