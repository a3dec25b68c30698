package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.CaseDone("compare", nil, time.Second)
	m.CaseDone("compare", errors.New("boom"), time.Second)
	m.CaseDone("compare", nil, time.Second)
	m.SliceWritten("compare")
	m.SliceWritten("visualize")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cases.WithLabelValues("compare", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cases.WithLabelValues("compare", StatusFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.slicesWritten.WithLabelValues("visualize")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	m.CaseDone("convert", nil, time.Second)
	m.SliceWritten("convert")
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestWriteTextfile(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	m.SliceWritten("visualize")

	path := filepath.Join(t.TempDir(), "cbct.prom")
	require.NoError(t, m.WriteTextfile(path))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `cbct_slices_written_total{command="visualize"} 1`))
}
