package extract

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/weather-etl/internal/model"
)

// Record pairs a raw API payload with the city it was fetched for.
type Record struct {
	City string
	Raw  map[string]any
}

// Extractor fetches all configured cities, tolerating per-city failure.
// A city whose fetch fails is dropped from the output; the batch never
// fails because one city did.
type Extractor struct {
	fetcher *Fetcher
	workers int
}

// NewExtractor creates an Extractor. workers > 1 enables bounded concurrent
// fetches; back-off sleeps for one city then never delay another.
func NewExtractor(f *Fetcher, workers int) *Extractor {
	if workers < 1 {
		workers = 1
	}
	return &Extractor{fetcher: f, workers: workers}
}

// ExtractAll fetches every city in input order and returns the successful
// records, preserving the relative input order of successes.
func (e *Extractor) ExtractAll(ctx context.Context, cities []model.City) []Record {
	if len(cities) == 0 {
		return nil
	}

	var results []*Record
	if e.workers > 1 {
		results = e.extractConcurrent(ctx, cities)
	} else {
		results = e.extractSequential(ctx, cities)
	}

	records := make([]Record, 0, len(cities))
	for _, r := range results {
		if r != nil {
			records = append(records, *r)
		}
	}

	zap.L().Info("extraction complete",
		zap.Int("succeeded", len(records)),
		zap.Int("total", len(cities)),
	)
	return records
}

func (e *Extractor) extractSequential(ctx context.Context, cities []model.City) []*Record {
	results := make([]*Record, len(cities))
	for i, city := range cities {
		raw, err := e.fetcher.Fetch(ctx, city)
		if err != nil {
			// Already logged at the fetch layer; skip the city.
			continue
		}
		results[i] = &Record{City: city.Name, Raw: raw}
	}
	return results
}

// extractConcurrent fans fetches out over a bounded worker pool. Results
// land in per-index slots so the output keeps input order.
func (e *Extractor) extractConcurrent(ctx context.Context, cities []model.City) []*Record {
	results := make([]*Record, len(cities))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, city := range cities {
		i, city := i, city
		g.Go(func() error {
			raw, err := e.fetcher.Fetch(gCtx, city)
			if err != nil {
				return nil
			}
			results[i] = &Record{City: city.Name, Raw: raw}
			return nil
		})
	}
	// Workers never return errors; failures are per-city skips.
	_ = g.Wait()

	return results
}
