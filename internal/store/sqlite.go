package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/weather-etl/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS weather_current (
	id                  TEXT PRIMARY KEY,
	city                TEXT NOT NULL,
	timestamp           TEXT,
	temperature_c       REAL,
	windspeed_kmh       REAL,
	winddirection_deg   REAL,
	weathercode         INTEGER,
	is_day              INTEGER,
	retrieval_timestamp TEXT NOT NULL,
	created_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS etl_runs (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT 'running',
	stats        TEXT,
	error        TEXT,
	started_at   DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_weather_current_city ON weather_current(city);
CREATE INDEX IF NOT EXISTS idx_weather_current_retrieval ON weather_current(retrieval_timestamp);
CREATE INDEX IF NOT EXISTS idx_etl_runs_started_at ON etl_runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertObservations appends the batch inside one transaction and returns
// the number of rows inserted. An empty batch inserts nothing.
func (s *SQLiteStore) InsertObservations(ctx context.Context, observations []model.Observation) (int, error) {
	if len(observations) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO weather_current
		 (id, city, timestamp, temperature_c, windspeed_kmh, winddirection_deg, weathercode, is_day, retrieval_timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, obs := range observations {
		args := append([]any{uuid.New().String()}, obs.Fields()...)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert observation for %s", obs.City)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit")
	}
	return len(observations), nil
}

func (s *SQLiteStore) ListObservations(ctx context.Context, filter ObservationFilter) ([]model.Observation, error) {
	query := `SELECT city, timestamp, temperature_c, windspeed_kmh, winddirection_deg, weathercode, is_day, retrieval_timestamp
	          FROM weather_current WHERE 1=1`
	var args []any

	if filter.City != "" {
		query += ` AND city = ?`
		args = append(args, filter.City)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list observations")
	}
	defer rows.Close()

	var observations []model.Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan observation")
		}
		observations = append(observations, obs)
	}
	return observations, eris.Wrap(rows.Err(), "sqlite: list observations iterate")
}

func (s *SQLiteStore) CreateRun(ctx context.Context) (*model.RunRecord, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO etl_runs (id, status, started_at) VALUES (?, ?, ?)`,
		id, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.RunRecord{ID: id, Status: model.RunStatusRunning, StartedAt: now}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, stats *model.RunStats, runErr string) error {
	var statsJSON sql.NullString
	if stats != nil {
		data, err := json.Marshal(stats)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal run stats")
		}
		statsJSON = sql.NullString{String: string(data), Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE etl_runs SET status = ?, stats = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(status), statsJSON, nullString(runErr), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, stats, error, started_at, completed_at
		 FROM etl_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.RunRecord
	for rows.Next() {
		var r model.RunRecord
		var statsJSON, runErr sql.NullString
		var completedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.Status, &statsJSON, &runErr, &r.StartedAt, &completedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if statsJSON.Valid {
			r.Stats = &model.RunStats{}
			if err := json.Unmarshal([]byte(statsJSON.String), r.Stats); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal run stats")
			}
		}
		r.Error = runErr.String
		if completedAt.Valid {
			t := completedAt.Time
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanObservation(row scannable) (model.Observation, error) {
	var obs model.Observation
	var ts, retrieval sql.NullString
	var temp, wind, winddir sql.NullFloat64
	var code, isDay sql.NullInt64

	err := row.Scan(&obs.City, &ts, &temp, &wind, &winddir, &code, &isDay, &retrieval)
	if err != nil {
		return model.Observation{}, err
	}

	if ts.Valid {
		obs.Timestamp = &ts.String
	}
	if temp.Valid {
		obs.TemperatureC = &temp.Float64
	}
	if wind.Valid {
		obs.WindspeedKmh = &wind.Float64
	}
	if winddir.Valid {
		obs.WinddirectionDeg = &winddir.Float64
	}
	if code.Valid {
		obs.Weathercode = &code.Int64
	}
	if isDay.Valid {
		obs.IsDay = &isDay.Int64
	}
	obs.RetrievalTimestamp = retrieval.String
	return obs, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
