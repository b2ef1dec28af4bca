package load

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/weather-etl/internal/model"
	"github.com/sells-group/weather-etl/internal/store"
)

// Loader is the Load collaborator: append-only persistence of complete,
// normalized rows to CSV and the observation store.
type Loader struct {
	store   store.Store
	dataDir string
}

// NewLoader creates a Loader writing CSV files under dataDir.
func NewLoader(st store.Store, dataDir string) *Loader {
	return &Loader{store: st, dataDir: dataDir}
}

// Load persists the batch and returns the CSV path and the number of rows
// inserted into the store. An empty batch persists nothing.
func (l *Loader) Load(ctx context.Context, observations []model.Observation) (string, int, error) {
	if len(observations) == 0 {
		zap.L().Warn("empty batch, nothing to load")
		return "", 0, nil
	}

	csvPath, err := WriteCSV(observations, l.dataDir)
	if err != nil {
		return "", 0, eris.Wrap(err, "load: write csv")
	}

	inserted, err := l.store.InsertObservations(ctx, observations)
	if err != nil {
		return csvPath, 0, eris.Wrap(err, "load: insert observations")
	}

	zap.L().Info("load complete",
		zap.String("csv_path", csvPath),
		zap.Int("rows_inserted", inserted),
	)
	return csvPath, inserted, nil
}
