package auth

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	CtxFirebaseUID = "firebase_uid"
	CtxEmail       = "email"
)

// Identity is a verified caller.
type Identity struct {
	SubjectID string `json:"subject_id"`
	Email     string `json:"email,omitempty"`
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the verified identity, or nil for anonymous callers.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}

// UserFirebaseUID extracts the Firebase UID from the Gin context.
// This is set by RequireUser and OptionalIdentity.
func UserFirebaseUID(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(CtxFirebaseUID))
}
