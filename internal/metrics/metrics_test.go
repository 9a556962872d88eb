package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_ObserveRun(t *testing.T) {
	c := NewCollector()

	c.ObserveRun("no_improvement", 20*time.Millisecond, 3, 0.6, nil)
	c.ObserveRun("no_improvement", 10*time.Millisecond, 1, 0.9, nil)
	c.ObserveRun("CANCELLED", time.Millisecond, 0, 1, errors.New("cancelled"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.runs.WithLabelValues("no_improvement", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("CANCELLED", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.runDuration))
}

func TestCollector_SchedulerGauges(t *testing.T) {
	c := NewCollector()

	c.ObserveTask("completed")
	c.ObserveTask("completed")
	c.ObserveTask("failed")
	c.SetQueueDepth(4)
	c.SetActiveWorkers(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.tasks.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.tasks.WithLabelValues("failed")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.queueDepth))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.activeWorkers))
}

func TestServer_Handler(t *testing.T) {
	c := NewCollector()
	c.ObservePattern(12, 1, 5)
	s := NewServer(c, ":0", "/metrics", nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "panda_pattern_area_cells_count 1")
	assert.Contains(t, string(body), "go_goroutines")

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
