// Package load persists normalized observations: a timestamped CSV file per
// run plus an append-only insert into the observation store.
package load

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/weather-etl/internal/model"
)

// WriteCSV writes the batch to a timestamped CSV file under dataDir and
// returns its path. An empty batch writes nothing and returns an empty path.
func WriteCSV(observations []model.Observation, dataDir string) (string, error) {
	return writeCSVAt(observations, dataDir, time.Now().UTC())
}

func writeCSVAt(observations []model.Observation, dataDir string, now time.Time) (string, error) {
	if len(observations) == 0 {
		zap.L().Warn("empty batch, csv not written")
		return "", nil
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", eris.Wrapf(err, "load: create data dir %s", dataDir)
	}

	path := filepath.Join(dataDir, "weather_data_"+now.Format("20060102_150405")+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", eris.Wrapf(err, "load: create csv %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(model.ObservationColumns); err != nil {
		return "", eris.Wrap(err, "load: write csv header")
	}
	for _, obs := range observations {
		if err := w.Write(csvRow(obs)); err != nil {
			return "", eris.Wrapf(err, "load: write csv row for %s", obs.City)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", eris.Wrap(err, "load: flush csv")
	}

	zap.L().Info("csv saved",
		zap.String("path", path),
		zap.Int("rows", len(observations)),
	)
	return path, nil
}

// csvRow renders one observation in ObservationColumns order. Null fields
// become empty cells.
func csvRow(obs model.Observation) []string {
	row := make([]string, 0, len(model.ObservationColumns))
	for _, v := range obs.Fields() {
		row = append(row, csvCell(v))
	}
	return row
}

func csvCell(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case *string:
		if x == nil {
			return ""
		}
		return *x
	case *float64:
		if x == nil {
			return ""
		}
		return strconv.FormatFloat(*x, 'f', -1, 64)
	case *int64:
		if x == nil {
			return ""
		}
		return strconv.FormatInt(*x, 10)
	default:
		return ""
	}
}
