package chat

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordsSessionActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	starter := &fakeStarter{run: answering("done\n", "> ")}
	s := newTestSession(t, starter, Options{Policy: PolicyMarker, Quiescence: 5 * time.Second, Metrics: m})

	require.NoError(t, s.Open(context.Background(), testOpenOptions()))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.opens.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.liveProcesses))

	_, err := s.Prompt(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exchanges.WithLabelValues(string(ReasonMarker))))

	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.liveProcesses))

	count, err := testutil.GatherAndCount(reg, "gptrepl_session_exchange_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_RecordsFailedOpen(t *testing.T) {
	m := NewMetrics(nil)
	s := newTestSession(t, &fakeStarter{run: func(p *fakeProcess) {}}, Options{
		ReadyTimeout: 20 * time.Millisecond,
		Metrics:      m,
	})

	require.Error(t, s.Open(context.Background(), testOpenOptions()))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.opens.WithLabelValues("error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.liveProcesses))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.openResult(nil)
		m.processStarted()
		m.processExited()
		m.exchangeDone(&Result{Reason: ReasonQuiescence})
		m.exchangeFailed(ErrSessionClosed)
	})
}
