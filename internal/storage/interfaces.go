// Package storage declares the persistence contracts shared by the memory
// and postgres backends.
package storage

import (
	"context"
	"time"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/access"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/completion"
	defdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/domain"
	deploydomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/deploy/domain"
	rtdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/runtime/domain"
)

// ProjectStore owns Projects and whole definition trees.
type ProjectStore interface {
	CreateProject(ctx context.Context, p *defdomain.Project) error
	GetProject(ctx context.Context, id string) (*defdomain.Project, error)
	ListProjects(ctx context.Context, ownerID string) ([]defdomain.Project, error)
	// UpdateProject writes editable attributes; subdomain and deployed are
	// changed only through SetSubdomain and the deployment transitions.
	UpdateProject(ctx context.Context, p *defdomain.Project) error
	DeleteProject(ctx context.Context, id string) error
	SetSubdomain(ctx context.Context, id string, subdomain *string) error
	GetTree(ctx context.Context, projectID string) (*defdomain.Tree, error)
	// CreateTree inserts a new Project and its hierarchy in one transaction,
	// assigning fresh ids.
	CreateTree(ctx context.Context, tree *defdomain.Tree) error
}

// StepStore keeps sibling positions contiguous: creates append, deletes
// compact.
type StepStore interface {
	CreateStep(ctx context.Context, s *defdomain.Step) error
	GetStep(ctx context.Context, id string) (*defdomain.Step, error)
	ListSteps(ctx context.Context, projectID string) ([]defdomain.Step, error)
	UpdateStep(ctx context.Context, s *defdomain.Step) error
	DeleteStep(ctx context.Context, id string) error
	ReorderSteps(ctx context.Context, projectID string, ordered []string) error
}

type FieldStore interface {
	// CreateField inserts the field and its choices together.
	CreateField(ctx context.Context, f *defdomain.Field, choices []defdomain.Choice) error
	GetField(ctx context.Context, id string) (*defdomain.Field, error)
	ListFields(ctx context.Context, stepID string) ([]defdomain.Field, error)
	// FieldNames maps every field name in a project to its field id.
	FieldNames(ctx context.Context, projectID string) (map[string]string, error)
	// UpdateField writes f; when replaceChoices is set the field's choices
	// are replaced by choices (nil deletes them) in the same transaction.
	UpdateField(ctx context.Context, f *defdomain.Field, choices []defdomain.Choice, replaceChoices bool) error
	DeleteField(ctx context.Context, id string) error
	ReorderFields(ctx context.Context, stepID string, ordered []string) error
}

type ChoiceStore interface {
	CreateChoice(ctx context.Context, c *defdomain.Choice) error
	GetChoice(ctx context.Context, id string) (*defdomain.Choice, error)
	ListChoices(ctx context.Context, fieldID string) ([]defdomain.Choice, error)
	UpdateChoice(ctx context.Context, c *defdomain.Choice) error
	// DeleteChoice rejects removing the last choice of a choice-type field.
	DeleteChoice(ctx context.Context, id string) error
	ReorderChoices(ctx context.Context, fieldID string, ordered []string) error
}

// DeploymentStore owns the address claim. Activate runs the given callback
// inside the same transaction as the claim and rolls everything back if it
// fails. Deactivate only changes state; callers remove the bundle once it
// has committed.
type DeploymentStore interface {
	Activate(ctx context.Context, p deploydomain.ActivateParams, materialize func(context.Context) error) (*deploydomain.Deployment, error)
	Deactivate(ctx context.Context, p deploydomain.DeactivateParams) (*deploydomain.Deployment, error)
	GetDeployment(ctx context.Context, projectID string) (*deploydomain.Deployment, error)
	GetActiveDeploymentBySlug(ctx context.Context, slug string) (*deploydomain.Deployment, error)
	// AvailableSlugs reports, per slug, whether projectID could claim it now.
	AvailableSlugs(ctx context.Context, slugs []string, projectID string) (map[string]bool, error)
	ListActiveSlugs(ctx context.Context) ([]string, error)
	ReleaseExpiredReservations(ctx context.Context, now time.Time) (int64, error)
}

type SessionStore interface {
	CreateSession(ctx context.Context, s *rtdomain.Session) error
	// SaveResponses appends the attributed responses and records the
	// unattributed keys on the session.
	SaveResponses(ctx context.Context, sessionID string, responses []rtdomain.Response, unattributed map[string]string) error
	CompleteSession(ctx context.Context, sessionID, aiResponse string, at time.Time) error
	FailSession(ctx context.Context, sessionID, reason string) error
	GetSessionByToken(ctx context.Context, token string) (*rtdomain.Session, error)
	ListResponses(ctx context.Context, sessionID string) ([]rtdomain.Response, error)
}

// Store is the full persistence surface of the service.
type Store interface {
	ProjectStore
	StepStore
	FieldStore
	ChoiceStore
	DeploymentStore
	SessionStore
	access.GrantSource
	completion.ProviderSource

	Ping(ctx context.Context) error
	Close() error
}
