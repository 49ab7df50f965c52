package auth

import (
	"context"
	"net/http"
	"strings"
)

// HeaderVerifier trusts X-User-Id and X-User-Email as-is.
// Use this ONLY for development/testing; config refuses it in production.
type HeaderVerifier struct{}

func (HeaderVerifier) Verify(_ context.Context, r *http.Request) (*Identity, error) {
	uid := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if uid == "" {
		return nil, ErrNoCredential
	}
	return &Identity{SubjectID: uid, Email: strings.TrimSpace(r.Header.Get("X-User-Email"))}, nil
}
