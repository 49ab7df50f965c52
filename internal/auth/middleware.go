package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/logging"
)

func attach(c *gin.Context, id *Identity) {
	c.Set(CtxFirebaseUID, id.SubjectID)
	if id.Email != "" {
		c.Set(CtxEmail, id.Email)
	}
	c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))
}

// RequireUser rejects requests without a valid credential.
func RequireUser(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := v.Verify(c.Request.Context(), c.Request)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, ErrNoCredential) {
				msg = ErrNoCredential.Error()
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"ok":    false,
				"error": gin.H{"kind": "auth", "message": msg},
			})
			return
		}
		attach(c, id)
		c.Next()
	}
}

// OptionalIdentity attaches an identity when one verifies and otherwise
// lets the request through anonymously. An invalid token counts as absent;
// tier checks downstream turn that into an auth error where it matters.
func OptionalIdentity(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := v.Verify(c.Request.Context(), c.Request)
		switch {
		case err == nil:
			attach(c, id)
		case !errors.Is(err, ErrNoCredential):
			logging.FromContext(c.Request.Context()).Debug("ignoring unverifiable credential", zap.Error(err))
		}
		c.Next()
	}
}
