package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/hundredminds/backend/pkg/metrics"
)

func TestMetricsLabelsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/teams/:id", func(c *gin.Context) {
		require.Equal(t, float64(1), testutil.ToFloat64(metrics.InFlight))
		c.Status(http.StatusOK)
	})

	for _, path := range []string{"/teams/1", "/teams/2", "/wp-login.php"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Equal(t, float64(0), testutil.ToFloat64(metrics.InFlight))
	// One series for the route template and one for every unmatched path.
	require.GreaterOrEqual(t, testutil.CollectAndCount(metrics.APILatency), 2)
}
