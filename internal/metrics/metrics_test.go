package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareLabelsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/projects/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	before := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/projects/:id", "204"))
	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/projects/"+id, nil))
	}
	after := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/projects/:id", "204"))
	assert.Equal(t, float64(2), after-before)
}

func TestRecordDeploy(t *testing.T) {
	before := testutil.ToFloat64(publishes.WithLabelValues("publish", "error"))
	RecordDeploy("publish", assert.AnError)
	assert.Equal(t, float64(1), testutil.ToFloat64(publishes.WithLabelValues("publish", "error"))-before)
}
