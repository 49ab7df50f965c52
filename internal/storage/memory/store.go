// Package memory is an in-process implementation of the storage interfaces
// with the same invariants as the postgres backend. It backs service tests
// and local development without a database.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/access"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/completion"
	defdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/domain"
	deploydomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/deploy/domain"
	rtdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/runtime/domain"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/storage"
)

// Store is safe for concurrent use. A single mutex serializes writers, which
// also makes Activate's check-and-claim atomic.
type Store struct {
	mu           sync.RWMutex
	projects     map[string]defdomain.Project
	steps        map[string]defdomain.Step
	fields       map[string]defdomain.Field
	choices      map[string]defdomain.Choice
	deployments  map[string]deploydomain.Deployment // by project id
	reservations map[string]deploydomain.Reservation
	sessions     map[string]rtdomain.Session
	responses    map[string][]rtdomain.Response
	packages     map[string]access.Package
	grants       []access.Grant
	providers    []completion.Provider
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		projects:     make(map[string]defdomain.Project),
		steps:        make(map[string]defdomain.Step),
		fields:       make(map[string]defdomain.Field),
		choices:      make(map[string]defdomain.Choice),
		deployments:  make(map[string]deploydomain.Deployment),
		reservations: make(map[string]deploydomain.Reservation),
		sessions:     make(map[string]rtdomain.Session),
		responses:    make(map[string][]rtdomain.Response),
		packages:     make(map[string]access.Package),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func newID() string { return uuid.NewString() }

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneProject(p defdomain.Project) defdomain.Project {
	p.Subdomain = cloneString(p.Subdomain)
	return p
}

func cloneField(f defdomain.Field) defdomain.Field {
	f.MinLength = cloneInt(f.MinLength)
	f.MaxLength = cloneInt(f.MaxLength)
	return f
}
