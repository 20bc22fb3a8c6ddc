package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsEndpointExposesDomainMetrics(t *testing.T) {
	Init()
	Init() // 重复调用不会 panic

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(MetricsMiddleware())
	r.GET("/metrics", PrometheusHandler())

	before := testutil.ToFloat64(AttemptDenials.WithLabelValues("ineligible"))
	AttemptDenials.WithLabelValues("ineligible").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(AttemptDenials.WithLabelValues("ineligible")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "assessment_attempt_denials_total"))
}
