package sls

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatistics_Add(t *testing.T) {
	a := Statistics{Steps: 3, Restarts: 1, Repairs: 2}
	b := Statistics{Steps: 4, Overflows: 5, RangeDoublings: 1}
	assert.Equal(t, Statistics{Steps: 7, Restarts: 1, Repairs: 2, Overflows: 5, RangeDoublings: 1}, a.Add(b))
}

func TestStatsSnapshot(t *testing.T) {
	var s StatsSnapshot
	assert.Zero(t, s.CollectStatistics())
	s.Store(Statistics{Steps: 12})
	assert.Equal(t, uint64(12), s.CollectStatistics().Steps)
}

func TestCollector(t *testing.T) {
	var src StatsSnapshot
	src.Store(Statistics{Steps: 10, Restarts: 2, RepairFailures: 1})
	c := NewCollector(&src, "gosls")

	assert.Equal(t, 7, testutil.CollectAndCount(c))

	const want = `
# HELP gosls_sls_steps_total Local search steps.
# TYPE gosls_sls_steps_total counter
gosls_sls_steps_total 10
# HELP gosls_sls_restarts_total Search restarts.
# TYPE gosls_sls_restarts_total counter
gosls_sls_restarts_total 2
# HELP gosls_sls_repair_failures_total Downward repairs that did not restore the definition.
# TYPE gosls_sls_repair_failures_total counter
gosls_sls_repair_failures_total 1
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(want),
		"gosls_sls_steps_total", "gosls_sls_restarts_total", "gosls_sls_repair_failures_total"))

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))
}
