package model

// ObservationColumns is the canonical column order for the weather_current
// table and per-run CSV exports. The schema is fixed: an empty batch has the
// same shape as a full one.
var ObservationColumns = []string{
	"city",
	"timestamp",
	"temperature_c",
	"windspeed_kmh",
	"winddirection_deg",
	"weathercode",
	"is_day",
	"retrieval_timestamp",
}

// Observation is one normalized current-weather reading. Pointer fields are
// nullable: the source payload may omit any individual sub-field.
// RetrievalTimestamp is always set to the normalization wall-clock time in
// RFC 3339 UTC, independent of the payload's own timestamp.
type Observation struct {
	City               string   `json:"city"`
	Timestamp          *string  `json:"timestamp"`
	TemperatureC       *float64 `json:"temperature_c"`
	WindspeedKmh       *float64 `json:"windspeed_kmh"`
	WinddirectionDeg   *float64 `json:"winddirection_deg"`
	Weathercode        *int64   `json:"weathercode"`
	IsDay              *int64   `json:"is_day"`
	RetrievalTimestamp string   `json:"retrieval_timestamp"`
}

// Fields returns the observation values in ObservationColumns order, with
// nil for null columns. Used by the bulk insert paths.
func (o Observation) Fields() []any {
	return []any{
		o.City,
		o.Timestamp,
		o.TemperatureC,
		o.WindspeedKmh,
		o.WinddirectionDeg,
		o.Weathercode,
		o.IsDay,
		o.RetrievalTimestamp,
	}
}
