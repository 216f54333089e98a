package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetrics(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.CommandDispatched("getTitle")
		m.CommandAnswered("getTitle", "ok", time.Millisecond)
		m.StaleResponse("late")
		m.RemotenessChange()
		m.DialogInterrupt()
		m.ConnectionOpened()
		m.ConnectionClosed()
	})
}

func TestRegisterTwice(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestHandler(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.CommandDispatched("getTitle")
	m.CommandAnswered("getTitle", "value", 3*time.Millisecond)
	m.StaleResponse("superseded")
	m.RemotenessChange()
	m.DialogInterrupt()
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()
	resp, err := http.Get(srv.URL) //nolint:noctx
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	for _, line := range []string{
		`marionette_commands_dispatched_total{command="getTitle"} 1`,
		`marionette_commands_answered_total{command="getTitle",outcome="value"} 1`,
		`marionette_command_duration_seconds_count{command="getTitle"} 1`,
		`marionette_stale_responses_total{reason="superseded"} 1`,
		`marionette_remoteness_changes_total 1`,
		`marionette_dialog_interruptions_total 1`,
		`marionette_connections_active 1`,
		`marionette_connections_total 2`,
	} {
		assert.Contains(t, string(body), line)
	}
}
