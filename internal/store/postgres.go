package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/weather-etl/internal/db"
	"github.com/sells-group/weather-etl/internal/model"
)

// PostgresStore implements Store using pgxpool. Observation batches go in
// through the COPY protocol.
type PostgresStore struct {
	pool db.Pool
}

// preparedStatements lists queries to prepare on each new connection for the
// hot paths of the scheduled pipeline.
var preparedStatements = map[string]string{
	"insert_run":   `INSERT INTO etl_runs (id, status, started_at) VALUES ($1, $2, $3)`,
	"complete_run": `UPDATE etl_runs SET status = $1, stats = $2, error = $3, completed_at = $4 WHERE id = $5`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 5
	pgxCfg.MinConns = 1
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS weather_current (
	id                  TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	city                TEXT NOT NULL,
	timestamp           TEXT,
	temperature_c       DOUBLE PRECISION,
	windspeed_kmh       DOUBLE PRECISION,
	winddirection_deg   DOUBLE PRECISION,
	weathercode         BIGINT,
	is_day              BIGINT,
	retrieval_timestamp TEXT NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS etl_runs (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	status       TEXT NOT NULL DEFAULT 'running',
	stats        JSONB,
	error        TEXT,
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_weather_current_city ON weather_current(city);
CREATE INDEX IF NOT EXISTS idx_weather_current_retrieval ON weather_current(retrieval_timestamp);
CREATE INDEX IF NOT EXISTS idx_etl_runs_started_at ON etl_runs(started_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// observationCopyColumns is the COPY column list: a generated id followed by
// the canonical observation schema. created_at takes its column default.
var observationCopyColumns = append([]string{"id"}, model.ObservationColumns...)

// InsertObservations appends the batch via COPY and returns the number of
// rows inserted. An empty batch inserts nothing.
func (s *PostgresStore) InsertObservations(ctx context.Context, observations []model.Observation) (int, error) {
	if len(observations) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(observations))
	for _, obs := range observations {
		rows = append(rows, append([]any{uuid.New().String()}, obs.Fields()...))
	}

	n, err := db.CopyFrom(ctx, s.pool, "weather_current", observationCopyColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert observations")
	}
	return int(n), nil
}

func (s *PostgresStore) ListObservations(ctx context.Context, filter ObservationFilter) ([]model.Observation, error) {
	query := `SELECT city, timestamp, temperature_c, windspeed_kmh, winddirection_deg, weathercode, is_day, retrieval_timestamp
	          FROM weather_current WHERE 1=1`
	var args []any

	if filter.City != "" {
		args = append(args, filter.City)
		query += ` AND city = $1`
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list observations")
	}
	defer rows.Close()

	var observations []model.Observation
	for rows.Next() {
		var obs model.Observation
		err := rows.Scan(&obs.City, &obs.Timestamp, &obs.TemperatureC, &obs.WindspeedKmh,
			&obs.WinddirectionDeg, &obs.Weathercode, &obs.IsDay, &obs.RetrievalTimestamp)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan observation")
		}
		observations = append(observations, obs)
	}
	return observations, eris.Wrap(rows.Err(), "postgres: list observations iterate")
}

func (s *PostgresStore) CreateRun(ctx context.Context) (*model.RunRecord, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO etl_runs (id, status, started_at) VALUES ($1, $2, $3)`,
		id, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.RunRecord{ID: id, Status: model.RunStatusRunning, StartedAt: now}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, stats *model.RunStats, runErr string) error {
	var statsJSON []byte
	if stats != nil {
		var err error
		statsJSON, err = json.Marshal(stats)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal run stats")
		}
	}

	var errVal *string
	if runErr != "" {
		errVal = &runErr
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE etl_runs SET status = $1, stats = $2, error = $3, completed_at = $4 WHERE id = $5`,
		string(status), statsJSON, errVal, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, status, stats, error, started_at, completed_at
		 FROM etl_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.RunRecord
	for rows.Next() {
		var r model.RunRecord
		var statsJSON []byte
		var runErr *string
		if err := rows.Scan(&r.ID, &r.Status, &statsJSON, &runErr, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if len(statsJSON) > 0 {
			r.Stats = &model.RunStats{}
			if err := json.Unmarshal(statsJSON, r.Stats); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal run stats")
			}
		}
		if runErr != nil {
			r.Error = *runErr
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
