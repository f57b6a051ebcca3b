package export

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ChicagoDave/buildstock/pkg/engine"
	"github.com/ChicagoDave/buildstock/pkg/flow"
	"github.com/ChicagoDave/buildstock/pkg/material"
	"github.com/ChicagoDave/buildstock/pkg/recovery"
	"github.com/ChicagoDave/buildstock/pkg/series"
	"github.com/ChicagoDave/buildstock/pkg/stock"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// ErrNotFound is returned when a run or series is not in the store.
var ErrNotFound = errors.New("not found")

// Run is the stored summary of one run.
type Run struct {
	ID            string        `json:"id"`
	Scenario      string        `json:"scenario"`
	Started       time.Time     `json:"started"`
	Duration      time.Duration `json:"duration"`
	Origin        int           `json:"origin"`
	FirstObserved int           `json:"first_observed"`
	End           int           `json:"end"`
	Regions       int           `json:"regions"`
	Valid         bool          `json:"valid"`
	Summary       string        `json:"summary"`
}

// Store persists runs in SQLite or PostgreSQL.
type Store struct {
	db     *sql.DB
	driver string
}

// OpenStore connects to the database, creating the SQLite file and its
// directory if needed, and applies the schema.
func OpenStore(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("store: create data directory: %w", err)
			}
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("store: unsupported driver %q (want %s or %s)", driver, DriverSQLite, DriverPostgres)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if driver == DriverSQLite {
		// one connection keeps :memory: databases and pragmas consistent
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: enable foreign keys: %w", err)
		}
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema, err := schemaFS.ReadFile("schema/" + s.driver + ".sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	_, err = s.db.Exec(string(schema))
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// bind rewrites ? placeholders into $n for PostgreSQL.
func (s *Store) bind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Write stores res.
func (s *Store) Write(res *engine.Result) error {
	return s.Save(context.Background(), res)
}

// Save stores the run summary, every flow value and the emissions of res in
// one transaction.
func (s *Store) Save(ctx context.Context, res *engine.Result) error {
	if res.Flows == nil {
		return fmt.Errorf("store: run %s has no results", res.ID)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.bind(`
		INSERT INTO runs (id, scenario, started, duration_ms, origin, first_year, end_year, regions, valid, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		res.ID.String(), res.Scenario, res.Started.UTC(), res.Duration.Milliseconds(),
		res.Horizon.Origin, res.Horizon.FirstObserved, res.Horizon.End,
		len(res.Regions), res.Report.Valid, res.Report.Summary)
	if err != nil {
		return fmt.Errorf("store: insert run: %w", err)
	}

	flowCols := []string{"run_id", "region", "area", "type", "material", "flow", "unit", "year", "value"}
	err = s.bulk(ctx, tx, "flow_values", flowCols, func(emit func(...any) error) error {
		for _, r := range res.Flows.Records {
			for i, v := range r.Values.Values {
				if err := emit(res.ID.String(), r.Region, string(r.Category.Area), r.Category.Type,
					string(r.Material), string(r.Flow), r.Unit, r.Values.Start+i, v); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: insert flows: %w", err)
	}

	emissionCols := []string{"run_id", "region", "material", "year", "primary_kt", "secondary_kt", "total_kt"}
	err = s.bulk(ctx, tx, "emissions", emissionCols, func(emit func(...any) error) error {
		for _, e := range res.Emissions {
			for i := range e.Total.Values {
				if err := emit(res.ID.String(), e.Region, string(e.Material), e.Total.Start+i,
					e.Primary.Values[i], e.Secondary.Values[i], e.Total.Values[i]); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: insert emissions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// bulk inserts rows through COPY on PostgreSQL and a prepared INSERT on
// SQLite.
func (s *Store) bulk(ctx context.Context, tx *sql.Tx, table string, cols []string, rows func(emit func(...any) error) error) error {
	var query string
	if s.driver == DriverPostgres {
		query = pq.CopyIn(table, cols...)
	} else {
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), marks)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	err = rows(func(args ...any) error {
		_, err := stmt.ExecContext(ctx, args...)
		return err
	})
	if err != nil {
		return err
	}
	if s.driver == DriverPostgres {
		// flush the COPY buffer
		if _, err := stmt.ExecContext(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Runs lists stored runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scenario, started, duration_ms, origin, first_year, end_year, regions, valid, summary
		FROM runs ORDER BY started DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r  Run
			ms int64
		)
		if err := rows.Scan(&r.ID, &r.Scenario, &r.Started, &ms, &r.Origin, &r.FirstObserved, &r.End, &r.Regions, &r.Valid, &r.Summary); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// Series reads one flow series of a run back.
func (s *Store) Series(ctx context.Context, runID string, region int, c stock.Category, m material.Material, f flow.Flow) (series.Series, error) {
	rows, err := s.db.QueryContext(ctx, s.bind(`
		SELECT year, value FROM flow_values
		WHERE run_id = ? AND region = ? AND area = ? AND type = ? AND material = ? AND flow = ?
		ORDER BY year`),
		runID, region, string(c.Area), c.Type, string(m), string(f))
	if err != nil {
		return series.Series{}, fmt.Errorf("store: query series: %w", err)
	}
	defer rows.Close()

	var (
		start  int
		values []float64
	)
	for rows.Next() {
		var (
			year int
			v    float64
		)
		if err := rows.Scan(&year, &v); err != nil {
			return series.Series{}, fmt.Errorf("store: scan value: %w", err)
		}
		if len(values) == 0 {
			start = year
		} else if year != start+len(values) {
			return series.Series{}, fmt.Errorf("store: series has a gap at %d", year)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return series.Series{}, err
	}
	if len(values) == 0 {
		return series.Series{}, fmt.Errorf("store: %s %d/%s/%s/%s: %w", runID, region, c, m, f, ErrNotFound)
	}
	return series.Series{Start: start, Values: values}, nil
}

// Emissions reads the emissions table of a run back, ordered by region and
// material name.
func (s *Store) Emissions(ctx context.Context, runID string) ([]recovery.Emission, error) {
	rows, err := s.db.QueryContext(ctx, s.bind(`
		SELECT region, material, year, primary_kt, secondary_kt, total_kt FROM emissions
		WHERE run_id = ? ORDER BY region, material, year`), runID)
	if err != nil {
		return nil, fmt.Errorf("store: query emissions: %w", err)
	}
	defer rows.Close()

	var out []recovery.Emission
	for rows.Next() {
		var (
			region        int
			mat           string
			year          int
			p, sec, total float64
		)
		if err := rows.Scan(&region, &mat, &year, &p, &sec, &total); err != nil {
			return nil, fmt.Errorf("store: scan emission: %w", err)
		}
		n := len(out)
		if n == 0 || out[n-1].Region != region || string(out[n-1].Material) != mat {
			out = append(out, recovery.Emission{
				Region:    region,
				Material:  material.Material(mat),
				Primary:   series.Series{Start: year},
				Secondary: series.Series{Start: year},
				Total:     series.Series{Start: year},
			})
			n++
		}
		e := &out[n-1]
		e.Primary.Values = append(e.Primary.Values, p)
		e.Secondary.Values = append(e.Secondary.Values, sec)
		e.Total.Values = append(e.Total.Values, total)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a run and its values.
func (s *Store) Delete(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, s.bind("DELETE FROM runs WHERE id = ?"), runID)
	if err != nil {
		return fmt.Errorf("store: delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("store: run %s: %w", runID, ErrNotFound)
	}
	return nil
}
