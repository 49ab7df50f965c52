package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/api/http/middleware"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/auth"
	defhttp "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/http"
	deployhttp "github.com/GoSim-25-26J-441/toolsmith-backend/internal/deploy/http"
	runtimehttp "github.com/GoSim-25-26J-441/toolsmith-backend/internal/runtime/http"
	synthhttp "github.com/GoSim-25-26J-441/toolsmith-backend/internal/synth/http"
)

type V1Deps struct {
	Verifier       auth.Verifier
	Definitions    *defhttp.Handler
	Deploy         *deployhttp.Handler
	Synth          *synthhttp.Handler
	Runtime        *runtimehttp.Handler
	RuntimeLimiter *middleware.RateLimiter
}

// RegisterV1 mounts the author surface behind RequireUser and the runtime
// surface behind OptionalIdentity, where tier checks decide.
func RegisterV1(r *gin.Engine, dep V1Deps) {
	api := r.Group("/api/v1")

	public := api.Group("")
	public.Use(auth.OptionalIdentity(dep.Verifier))
	if dep.RuntimeLimiter != nil {
		public.Use(dep.RuntimeLimiter.Handler())
	}
	dep.Runtime.Register(public)

	authed := api.Group("")
	authed.Use(auth.RequireUser(dep.Verifier))
	dep.Definitions.Register(authed)
	dep.Deploy.Register(authed)
	dep.Synth.Register(authed)
}
