package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordDispatch(t *testing.T) {
	m := NewMetrics()

	m.RecordDispatch("entities", "CREATE", "ok")
	m.RecordDispatch("entities", "CREATE", "ok")
	m.RecordDispatch("transactions", "CREATE", "rejected")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.dispatchTotal.WithLabelValues("entities", "CREATE", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatchTotal.WithLabelValues("transactions", "CREATE", "rejected")))
}

func TestMetrics_RecordGuardrailRejection(t *testing.T) {
	m := NewMetrics()

	m.RecordGuardrailRejection("GL_NOT_BALANCED")
	m.RecordGuardrailRejection("GL_NOT_BALANCED")
	m.RecordGuardrailRejection("SMARTCODE_REGEX_FAIL")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.guardrailRejections.WithLabelValues("GL_NOT_BALANCED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.guardrailRejections.WithLabelValues("SMARTCODE_REGEX_FAIL")))
}

func TestMetrics_ObserveHTTPRequest(t *testing.T) {
	m := NewMetrics()

	m.ObserveHTTPRequest("POST", "/entities", 201, 15*time.Millisecond)
	m.ObserveHTTPRequest("POST", "/entities", 400, 2*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("POST", "/entities", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("POST", "/entities", "400")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.httpRequestDuration))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.RecordDispatch("entities", "READ", "ok")
	m.RecordGuardrailRejection("ORG_FILTER_MISMATCH")

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(text, MetricDispatchTotal+`{family="entities",operation="READ",outcome="ok"} 1`))
	assert.True(t, strings.Contains(text, MetricGuardrailRejectionsTotal+`{code="ORG_FILTER_MISMATCH"} 1`))
	assert.Contains(t, text, "go_goroutines")
}
