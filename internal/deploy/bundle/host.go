// Package bundle renders a deployed Project's public files and places them
// on a bundle host. Hosts write each publish to its own release and flip a
// single `current` pointer, so readers never see a half-written bundle.
package bundle

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Files maps a bundle-relative path to its content.
type Files map[string][]byte

// Release is a staged, not yet served, copy of a bundle.
type Release struct {
	Slug string
	ID   string
}

type Host interface {
	// Stage writes files as a new release of slug without serving it.
	Stage(ctx context.Context, slug string, files Files) (Release, error)
	// Commit atomically serves rel and returns the release it replaced, or "".
	Commit(ctx context.Context, rel Release) (previous string, err error)
	// Restore points slug back at previous, or unserves it when previous is "".
	Restore(ctx context.Context, slug, previous string) error
	// Discard deletes a release that is not being served.
	Discard(ctx context.Context, rel Release) error
	// Prune deletes releases of slug older than the served one. Newer
	// releases may belong to a publish still in flight.
	Prune(ctx context.Context, slug string) error
	// Remove deletes everything under slug.
	Remove(ctx context.Context, slug string) error
	// List returns every slug with anything on the host.
	List(ctx context.Context) ([]Listing, error)
	// Location describes where slug is served from.
	Location(slug string) string
}

// Listing is one slug on a host and the time its newest content was written.
type Listing struct {
	Slug      string
	UpdatedAt time.Time
}

// newReleaseID sorts by creation time.
func newReleaseID() string {
	return time.Now().UTC().Format("20060102T150405.000000000") + "-" + uuid.NewString()[:8]
}
