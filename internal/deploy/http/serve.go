package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/address"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/deploy/bundle"
)

// BundleServer serves filesystem bundles to requests addressed to
// {slug}.tool.{base}. It is meant for NoRoute: other hosts get a not-found
// envelope. Object-store bundles are served by the bucket's own frontend.
func BundleServer(host *bundle.FSHost, baseDomain string) gin.HandlerFunc {
	return func(c *gin.Context) {
		slug, ok := address.SlugFromHost(c.Request.Host, baseDomain)
		if !ok || (c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead) {
			c.JSON(http.StatusNotFound, gin.H{
				"ok":    false,
				"error": gin.H{"kind": "not_found", "message": "route not found"},
			})
			return
		}
		c.Header("Cache-Control", "no-cache")
		http.FileServer(http.Dir(host.Location(slug))).ServeHTTP(c.Writer, c.Request)
	}
}
