package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandWiring(t *testing.T) {
	assert.Equal(t, "weather-etl", rootCmd.Use)

	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"run", "schedule", "serve", "migrate", "observations", "runs"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestRunsCommandFlags(t *testing.T) {
	limit := runsCmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "50", limit.DefValue)

	require.NotNil(t, runsCmd.Flags().Lookup("json"))
}

func TestObservationsCommandFlags(t *testing.T) {
	require.NotNil(t, observationsCmd.Flags().Lookup("city"))
	require.NotNil(t, observationsCmd.Flags().Lookup("limit"))
	require.NotNil(t, observationsCmd.Flags().Lookup("json"))
}
