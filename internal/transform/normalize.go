// Package transform flattens raw Open-Meteo payloads into the fixed
// observation schema, coercing field types defensively.
package transform

import (
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/weather-etl/internal/extract"
	"github.com/sells-group/weather-etl/internal/model"
)

// Normalizer converts extracted records into observations. The clock is
// injectable so tests can pin the retrieval timestamp.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer creates a Normalizer using the system clock.
func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// Normalize flattens each record's current_weather block into an
// Observation. Records without the block, or with a block that is not a
// mapping, are skipped and logged; individual missing or uncoercible
// sub-fields become null instead of failing the record. Output order
// matches input order minus skips. Never returns an error: upstream
// payloads are not schema-validated before reaching this stage.
func (n *Normalizer) Normalize(records []extract.Record) []model.Observation {
	observations := make([]model.Observation, 0, len(records))
	for _, rec := range records {
		obs, ok := n.normalizeOne(rec)
		if !ok {
			continue
		}
		observations = append(observations, obs)
	}

	zap.L().Info("transform complete",
		zap.Int("rows", len(observations)),
		zap.Int("skipped", len(records)-len(observations)),
	)
	return observations
}

func (n *Normalizer) normalizeOne(rec extract.Record) (model.Observation, bool) {
	raw, present := rec.Raw["current_weather"]
	if !present || raw == nil {
		zap.L().Warn("no current_weather block, skipping record",
			zap.String("city", rec.City),
		)
		return model.Observation{}, false
	}

	current, ok := raw.(map[string]any)
	if !ok {
		zap.L().Error("current_weather block is not a mapping, skipping record",
			zap.String("city", rec.City),
		)
		return model.Observation{}, false
	}

	return model.Observation{
		City:               rec.City,
		Timestamp:          getString(current, "time"),
		TemperatureC:       getFloat(current, "temperature"),
		WindspeedKmh:       getFloat(current, "windspeed"),
		WinddirectionDeg:   getFloat(current, "winddirection"),
		Weathercode:        getInt(current, "weathercode"),
		IsDay:              getInt(current, "is_day"),
		RetrievalTimestamp: n.now().UTC().Format(time.RFC3339),
	}, true
}

// getString returns the string at key, or nil if absent or not a string.
func getString(m map[string]any, key string) *string {
	if s, ok := m[key].(string); ok {
		return &s
	}
	return nil
}

// getFloat returns the value at key coerced to float64, or nil when the
// value is absent or cannot be coerced.
func getFloat(m map[string]any, key string) *float64 {
	v, ok := m[key]
	if !ok {
		return nil
	}
	switch x := v.(type) {
	case float64:
		return &x
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// getInt returns the value at key coerced to int64. Floats are accepted
// only when integral; anything else becomes null rather than a guess.
func getInt(m map[string]any, key string) *int64 {
	v, ok := m[key]
	if !ok {
		return nil
	}
	switch x := v.(type) {
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) {
			return nil
		}
		i := int64(x)
		return &i
	case string:
		i, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return nil
		}
		return &i
	default:
		return nil
	}
}
