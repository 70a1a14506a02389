package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	registry := prometheus.NewRegistry()
	require.NoError(t, Register(registry))
	require.NoError(t, Register(registry))

	PoolSize.WithLabelValues("1000168", "10").Set(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(PoolSize.WithLabelValues("1000168", "10")))

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestResult(t *testing.T) {
	assert.Equal(t, SuccessLabel, Result(nil))
	assert.Equal(t, FailLabel, Result(errors.New("boom")))
}
