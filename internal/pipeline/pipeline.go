// Package pipeline orchestrates one Extract → Transform → Load cycle and
// records run bookkeeping in the store.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/weather-etl/internal/config"
	"github.com/sells-group/weather-etl/internal/extract"
	"github.com/sells-group/weather-etl/internal/load"
	"github.com/sells-group/weather-etl/internal/model"
	"github.com/sells-group/weather-etl/internal/store"
	"github.com/sells-group/weather-etl/internal/transform"
)

// Extractor fetches raw payloads for a set of cities.
type Extractor interface {
	ExtractAll(ctx context.Context, cities []model.City) []extract.Record
}

// Normalizer flattens raw payloads into the fixed observation schema.
type Normalizer interface {
	Normalize(records []extract.Record) []model.Observation
}

// Loader persists a normalized batch to CSV and the store.
type Loader interface {
	Load(ctx context.Context, observations []model.Observation) (string, int, error)
}

// Pipeline runs the three ETL phases against a fixed city list.
type Pipeline struct {
	cities     []model.City
	extractor  Extractor
	normalizer Normalizer
	loader     Loader
	store      store.Store
}

// New creates a Pipeline with explicit collaborators.
func New(cities []model.City, ex Extractor, nz Normalizer, ld Loader, st store.Store) *Pipeline {
	return &Pipeline{
		cities:     cities,
		extractor:  ex,
		normalizer: nz,
		loader:     ld,
		store:      st,
	}
}

// FromConfig wires a Pipeline from configuration and an open store.
func FromConfig(cfg *config.Config, st store.Store) *Pipeline {
	fetcher := extract.NewFetcher(extract.Options{
		BaseURL:           cfg.API.BaseURL,
		Timeout:           time.Duration(cfg.API.TimeoutSeconds) * time.Second,
		MaxRetries:        cfg.API.MaxRetries,
		BackoffBase:       cfg.API.BackoffFactor,
		CurrentWeather:    cfg.API.CurrentWeather,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
	})
	return New(
		cfg.Cities,
		extract.NewExtractor(fetcher, cfg.Extract.Workers),
		transform.NewNormalizer(),
		load.NewLoader(st, cfg.Paths.DataDir),
		st,
	)
}

// Run executes one ETL cycle. Per-city fetch failures are tolerated and only
// shrink the batch; a run fails on configuration or persistence errors. A run
// whose batch drains to empty completes with status skipped and nil stats
// beyond the city count.
func (p *Pipeline) Run(ctx context.Context) (*model.RunStats, error) {
	log := zap.L()
	log.Info("pipeline: starting run", zap.Int("cities", len(p.cities)))

	run, err := p.store.CreateRun(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}

	stats := &model.RunStats{CitiesConfigured: len(p.cities)}

	finish := func(status model.RunStatus, runErr string) {
		if completeErr := p.store.CompleteRun(ctx, run.ID, status, stats, runErr); completeErr != nil {
			log.Warn("pipeline: failed to complete run record", zap.Error(completeErr))
		}
	}

	if len(p.cities) == 0 {
		err := eris.New("pipeline: no cities configured")
		finish(model.RunStatusFailed, err.Error())
		return nil, err
	}

	// Phase timing helper.
	phase := func(name string, fn func() error) error {
		start := time.Now()
		phaseErr := fn()
		duration := time.Since(start).Milliseconds()
		if phaseErr != nil {
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
				zap.Error(phaseErr),
			)
			return phaseErr
		}
		log.Info("pipeline: phase complete",
			zap.String("phase", name),
			zap.Int64("duration_ms", duration),
		)
		return nil
	}

	// Extract
	var records []extract.Record
	_ = phase("extract", func() error {
		records = p.extractor.ExtractAll(ctx, p.cities)
		stats.Extracted = len(records)
		return nil
	})
	if len(records) == 0 {
		log.Warn("pipeline: no payloads extracted, skipping run")
		finish(model.RunStatusSkipped, "")
		return stats, nil
	}

	// Transform
	var observations []model.Observation
	_ = phase("transform", func() error {
		observations = p.normalizer.Normalize(records)
		stats.Normalized = len(observations)
		return nil
	})
	if len(observations) == 0 {
		log.Warn("pipeline: no rows survived normalization, skipping run")
		finish(model.RunStatusSkipped, "")
		return stats, nil
	}

	// Load
	loadErr := phase("load", func() error {
		csvPath, inserted, err := p.loader.Load(ctx, observations)
		if err != nil {
			return err
		}
		stats.CSVPath = csvPath
		stats.RowsInserted = inserted
		return nil
	})
	if loadErr != nil {
		finish(model.RunStatusFailed, loadErr.Error())
		return stats, eris.Wrap(loadErr, "pipeline: load")
	}

	finish(model.RunStatusComplete, "")
	log.Info("pipeline: run complete",
		zap.String("run_id", run.ID),
		zap.Int("cities", stats.CitiesConfigured),
		zap.Int("extracted", stats.Extracted),
		zap.Int("normalized", stats.Normalized),
		zap.Int("rows_inserted", stats.RowsInserted),
		zap.String("csv_path", stats.CSVPath),
	)
	return stats, nil
}
