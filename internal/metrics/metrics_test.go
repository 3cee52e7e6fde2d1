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

func TestObserve(t *testing.T) {
	m := New()
	m.ObserveInterpret("accent", nil)
	m.ObserveInterpret("accent", nil)
	m.ObserveInterpret("accent", errors.New("boom"))
	m.ObserveModule("durator", time.Millisecond, nil)
	m.ObserveModule("durator", time.Millisecond, errors.New("boom"))
	m.UtteranceDone()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.interpretTotal.WithLabelValues("accent", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.interpretTotal.WithLabelValues("accent", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.moduleErrors.WithLabelValues("durator")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.utterances))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveInterpret("x", nil)
	m.ObserveModule("x", time.Second, nil)
	m.UtteranceDone()
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveInterpret("phrase", nil)

	path := filepath.Join(t.TempDir(), "prosody.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `prosody_interpret_total{outcome="ok",tree="phrase"} 1`))
}
