package bootstrap

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	httpapi "github.com/GoSim-25-26J-441/toolsmith-backend/internal/api/http"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/api/http/middleware"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/api/http/routes"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/metrics"
)

type RouterDeps struct {
	ServiceName string
	Version     string
	CORSOrigins []string
	DB          httpapi.Pinger
	Redis       httpapi.Pinger
	V1          routes.V1Deps
	// NoRoute, when set, handles unmatched requests (the filesystem bundle
	// server in single-host setups).
	NoRoute gin.HandlerFunc
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(metrics.Middleware())
	r.Use(cors.New(corsConfig(dep.CORSOrigins)))

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.DB, dep.Redis)
	healthHandler.RegisterRoutes(r)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	routes.RegisterV1(r, dep.V1)

	if dep.NoRoute != nil {
		r.NoRoute(dep.NoRoute)
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-Id"},
		ExposeHeaders:    []string{"X-Request-Id", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
