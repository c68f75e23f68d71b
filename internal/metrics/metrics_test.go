package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsRegisterOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Commits.WithLabelValues("mindep", Outcome(nil)).Inc()
	m.Commits.WithLabelValues("mindep", Outcome(errors.New("x"))).Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commits.WithLabelValues("mindep", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commits.WithLabelValues("mindep", "error")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	assert.Panics(t, func() { New(reg) })
}

func TestOrDiscard(t *testing.T) {
	assert.NotNil(t, OrDiscard(nil))
	m := Discard()
	assert.Same(t, m, OrDiscard(m))
}
