package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/weather-etl/internal/extract"
	"github.com/sells-group/weather-etl/internal/model"
	"github.com/sells-group/weather-etl/internal/store"
)

type fakeExtractor struct {
	records []extract.Record
	got     []model.City
}

func (f *fakeExtractor) ExtractAll(_ context.Context, cities []model.City) []extract.Record {
	f.got = cities
	return f.records
}

type fakeNormalizer struct {
	observations []model.Observation
}

func (f *fakeNormalizer) Normalize(_ []extract.Record) []model.Observation {
	return f.observations
}

type fakeLoader struct {
	csvPath  string
	inserted int
	err      error
	gotBatch []model.Observation
}

func (f *fakeLoader) Load(_ context.Context, obs []model.Observation) (string, int, error) {
	f.gotBatch = obs
	if f.err != nil {
		return "", 0, f.err
	}
	return f.csvPath, f.inserted, nil
}

// fakeRunStore records run bookkeeping calls.
type fakeRunStore struct {
	store.Store
	createErr error

	completed       bool
	completedStatus model.RunStatus
	completedStats  *model.RunStats
	completedError  string
}

func (f *fakeRunStore) CreateRun(_ context.Context) (*model.RunRecord, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &model.RunRecord{ID: "run-1", Status: model.RunStatusRunning}, nil
}

func (f *fakeRunStore) CompleteRun(_ context.Context, _ string, status model.RunStatus, stats *model.RunStats, runErr string) error {
	f.completed = true
	f.completedStatus = status
	f.completedStats = stats
	f.completedError = runErr
	return nil
}

func testCities() []model.City {
	return []model.City{
		{Name: "Paris", Latitude: 48.8566, Longitude: 2.3522},
		{Name: "Tokyo", Latitude: 35.6762, Longitude: 139.6503},
	}
}

func TestPipeline_Run_Success(t *testing.T) {
	st := &fakeRunStore{}
	ex := &fakeExtractor{records: []extract.Record{
		{City: "Paris", Raw: map[string]any{}},
		{City: "Tokyo", Raw: map[string]any{}},
	}}
	nz := &fakeNormalizer{observations: []model.Observation{
		{City: "Paris"}, {City: "Tokyo"},
	}}
	ld := &fakeLoader{csvPath: "data/weather_data_20260218_223000.csv", inserted: 2}

	p := New(testCities(), ex, nz, ld, st)
	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.CitiesConfigured)
	assert.Equal(t, 2, stats.Extracted)
	assert.Equal(t, 2, stats.Normalized)
	assert.Equal(t, 2, stats.RowsInserted)
	assert.Equal(t, "data/weather_data_20260218_223000.csv", stats.CSVPath)

	assert.Equal(t, testCities(), ex.got)
	assert.Len(t, ld.gotBatch, 2)

	require.True(t, st.completed)
	assert.Equal(t, model.RunStatusComplete, st.completedStatus)
	assert.Empty(t, st.completedError)
	assert.Equal(t, stats, st.completedStats)
}

func TestPipeline_Run_NoCities(t *testing.T) {
	st := &fakeRunStore{}
	p := New(nil, &fakeExtractor{}, &fakeNormalizer{}, &fakeLoader{}, st)

	stats, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, stats)
	assert.Contains(t, err.Error(), "no cities configured")

	require.True(t, st.completed)
	assert.Equal(t, model.RunStatusFailed, st.completedStatus)
	assert.Contains(t, st.completedError, "no cities configured")
}

func TestPipeline_Run_EmptyExtract_Skipped(t *testing.T) {
	st := &fakeRunStore{}
	ld := &fakeLoader{}
	p := New(testCities(), &fakeExtractor{}, &fakeNormalizer{}, ld, st)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.CitiesConfigured)
	assert.Equal(t, 0, stats.Extracted)
	assert.Nil(t, ld.gotBatch)

	require.True(t, st.completed)
	assert.Equal(t, model.RunStatusSkipped, st.completedStatus)
}

func TestPipeline_Run_EmptyNormalize_Skipped(t *testing.T) {
	st := &fakeRunStore{}
	ex := &fakeExtractor{records: []extract.Record{{City: "Paris", Raw: map[string]any{}}}}
	ld := &fakeLoader{}
	p := New(testCities(), ex, &fakeNormalizer{}, ld, st)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Extracted)
	assert.Equal(t, 0, stats.Normalized)
	assert.Nil(t, ld.gotBatch)

	require.True(t, st.completed)
	assert.Equal(t, model.RunStatusSkipped, st.completedStatus)
}

func TestPipeline_Run_LoadError_Failed(t *testing.T) {
	st := &fakeRunStore{}
	ex := &fakeExtractor{records: []extract.Record{{City: "Paris", Raw: map[string]any{}}}}
	nz := &fakeNormalizer{observations: []model.Observation{{City: "Paris"}}}
	ld := &fakeLoader{err: errors.New("disk full")}
	p := New(testCities(), ex, nz, ld, st)

	stats, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NotNil(t, stats)

	require.True(t, st.completed)
	assert.Equal(t, model.RunStatusFailed, st.completedStatus)
	assert.Contains(t, st.completedError, "disk full")
}

func TestPipeline_Run_CreateRunError(t *testing.T) {
	st := &fakeRunStore{createErr: errors.New("db down")}
	p := New(testCities(), &fakeExtractor{}, &fakeNormalizer{}, &fakeLoader{}, st)

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create run")
	assert.False(t, st.completed)
}
