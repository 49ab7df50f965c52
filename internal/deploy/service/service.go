// Package service implements publish, undeploy and re-addressing of
// Projects. A publish claims the slug and swaps the bundle in one store
// transaction; any failure leaves the project as it was.
package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GoSim-25-26J-441/toolsmith-backend/config"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/address"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/analytics"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/apperr"
	defdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/domain"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/deploy/bundle"
	deploydomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/deploy/domain"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/logging"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/metrics"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/storage"
)

type Store interface {
	GetProject(ctx context.Context, id string) (*defdomain.Project, error)
	GetTree(ctx context.Context, projectID string) (*defdomain.Tree, error)
	storage.DeploymentStore
}

// ManifestInvalidator drops cached manifests for slugs.
type ManifestInvalidator interface {
	Invalidate(ctx context.Context, slugs ...string) error
}

// Outcome is what a successful publish reports.
type Outcome struct {
	Deployment *deploydomain.Deployment `json:"deployment"`
	Slug       string                   `json:"slug"`
	PublicURL  string                   `json:"public_url"`
}

type Service struct {
	store  Store
	host   bundle.Host
	cfg    config.DeployConfig
	events analytics.EventWriter
	cache  ManifestInvalidator
	now    func() time.Time
}

func New(store Store, host bundle.Host, cfg config.DeployConfig, events analytics.EventWriter) *Service {
	if events == nil {
		events = analytics.Discard{}
	}
	return &Service{store: store, host: host, cfg: cfg, events: events, now: time.Now}
}

func (s *Service) SetManifestCache(c ManifestInvalidator) {
	s.cache = c
}

// SubmitURL is where a deployed bundle posts its responses.
func (s *Service) SubmitURL(slug string) string {
	return strings.TrimRight(s.cfg.APIPublicURL, "/") + "/api/v1/runtime/" + slug + "/submit"
}

func (s *Service) ownedTree(ctx context.Context, ownerID, projectID string) (*defdomain.Tree, error) {
	tree, err := s.store.GetTree(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if tree.Project.OwnerID != ownerID {
		return nil, apperr.NotFound("project", projectID)
	}
	return tree, nil
}

// Publish deploys a project at its recorded subdomain, or at the slug
// derived from its name. Republishing overwrites the bundle in place.
func (s *Service) Publish(ctx context.Context, ownerID, projectID string) (out *Outcome, err error) {
	defer func() { metrics.RecordDeploy("publish", err) }()

	tree, err := s.ownedTree(ctx, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	if len(tree.Steps) == 0 {
		return nil, apperr.Validation("steps", "a project needs at least one step to be published")
	}

	slug := address.Derive(tree.Project.Name)
	if tree.Project.Subdomain != nil && *tree.Project.Subdomain != "" {
		slug = *tree.Project.Subdomain
	}

	dep, err := s.materialize(ctx, tree, slug)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, slug)
	ev := analytics.NewEvent(analytics.EventDeployed, projectID)
	ev.Slug = slug
	ev.SubjectID = ownerID
	s.events.Write(ev)

	logging.FromContext(ctx).Info("project published",
		zap.String("project_id", projectID),
		zap.String("slug", slug),
		zap.String("deployment_id", dep.ID))
	return &Outcome{Deployment: dep, Slug: slug, PublicURL: dep.PublicURL}, nil
}

// materialize renders and stages the bundle, then claims slug and swaps the
// bundle in inside the store transaction.
func (s *Service) materialize(ctx context.Context, tree *defdomain.Tree, slug string) (*deploydomain.Deployment, error) {
	log := logging.FromContext(ctx)
	manifest := deploydomain.BuildManifest(tree, slug, s.SubmitURL(slug))
	files, err := bundle.Render(manifest)
	if err != nil {
		return nil, apperr.Materialization("failed to render bundle", err)
	}
	rel, err := s.host.Stage(ctx, slug, files)
	if err != nil {
		return nil, apperr.Materialization("failed to stage bundle", err)
	}

	var previous string
	committed := false
	params := deploydomain.ActivateParams{
		ProjectID:      tree.Project.ID,
		Slug:           slug,
		BundleLocation: s.host.Location(slug),
		PublicURL:      address.PublicURL(s.cfg.PublicScheme, slug, s.cfg.BaseDomain),
	}
	dep, err := s.store.Activate(ctx, params, func(ctx context.Context) error {
		prev, err := s.host.Commit(ctx, rel)
		if err != nil {
			return apperr.Materialization("failed to swap bundle", err)
		}
		previous, committed = prev, true
		return nil
	})
	if err != nil {
		if committed {
			if rerr := s.host.Restore(ctx, slug, previous); rerr != nil {
				log.Error("failed to restore previous bundle", zap.String("slug", slug), zap.Error(rerr))
			}
		}
		if derr := s.host.Discard(ctx, rel); derr != nil {
			log.Warn("failed to discard staged bundle", zap.String("slug", slug), zap.Error(derr))
		}
		if apperr.KindOf(err) == apperr.KindConflict {
			return nil, apperr.Conflict(slug, address.AvailableSuggestions(ctx, s.store, tree.Project.Name, tree.Project.ID))
		}
		return nil, err
	}

	if err := s.host.Prune(ctx, slug); err != nil {
		log.Warn("failed to prune old releases", zap.String("slug", slug), zap.Error(err))
	}
	return dep, nil
}

// Undeploy marks the deployment inactive, then removes the public bundle.
// Sessions and responses are kept.
func (s *Service) Undeploy(ctx context.Context, ownerID, projectID string) (out *deploydomain.Deployment, err error) {
	defer func() { metrics.RecordDeploy("undeploy", err) }()

	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != ownerID {
		return nil, apperr.NotFound("project", projectID)
	}
	dep, err := s.store.GetDeployment(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !dep.Active() {
		return nil, apperr.NotFound("active deployment", projectID)
	}

	params := deploydomain.DeactivateParams{
		ProjectID:      projectID,
		ClearSubdomain: !s.cfg.RetainSubdomain,
	}
	if s.cfg.ReservationTTL > 0 {
		params.Reservation = &deploydomain.Reservation{
			Slug:      dep.Slug,
			ProjectID: projectID,
			ExpiresAt: s.now().UTC().Add(s.cfg.ReservationTTL),
		}
	}
	out, err = s.store.Deactivate(ctx, params)
	if err != nil {
		return nil, err
	}
	if err := s.host.Remove(ctx, dep.Slug); err != nil {
		// the slug is no longer active, so the orphan sweep picks it up
		logging.FromContext(ctx).Warn("failed to remove undeployed bundle",
			zap.String("slug", dep.Slug), zap.Error(err))
	}

	s.invalidate(ctx, dep.Slug)
	ev := analytics.NewEvent(analytics.EventUndeployed, projectID)
	ev.Slug = dep.Slug
	ev.SubjectID = ownerID
	s.events.Write(ev)

	logging.FromContext(ctx).Info("project undeployed",
		zap.String("project_id", projectID),
		zap.String("slug", dep.Slug))
	return out, nil
}

// Readdress moves a live deployment to slug. The new address is claimed and
// served before the old bundle is removed.
func (s *Service) Readdress(ctx context.Context, ownerID, projectID, slug string) (out *deploydomain.Deployment, err error) {
	defer func() { metrics.RecordDeploy("readdress", err) }()

	tree, err := s.ownedTree(ctx, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	current, err := s.store.GetDeployment(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !current.Active() {
		return nil, apperr.Validation("subdomain", "project is not deployed")
	}
	if current.Slug == slug {
		return current, nil
	}

	dep, err := s.materialize(ctx, tree, slug)
	if err != nil {
		return nil, err
	}
	if err := s.host.Remove(ctx, current.Slug); err != nil {
		// the sweeper removes bundles without an active deployment
		logging.FromContext(ctx).Warn("failed to remove old bundle",
			zap.String("slug", current.Slug), zap.Error(err))
	}
	s.invalidate(ctx, current.Slug, slug)

	logging.FromContext(ctx).Info("project readdressed",
		zap.String("project_id", projectID),
		zap.String("from", current.Slug),
		zap.String("to", slug))
	return dep, nil
}

// Deployment returns the project's deployment record, active or not.
func (s *Service) Deployment(ctx context.Context, ownerID, projectID string) (*deploydomain.Deployment, error) {
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != ownerID {
		return nil, apperr.NotFound("project", projectID)
	}
	return s.store.GetDeployment(ctx, projectID)
}

// RemoveOrphans deletes bundles whose slug has no active deployment and that
// have not been written to for at least minAge.
func (s *Service) RemoveOrphans(ctx context.Context, minAge time.Duration) (int64, error) {
	active, err := s.store.ListActiveSlugs(ctx)
	if err != nil {
		return 0, err
	}
	live := make(map[string]struct{}, len(active))
	for _, slug := range active {
		live[slug] = struct{}{}
	}
	listed, err := s.host.List(ctx)
	if err != nil {
		return 0, apperr.Materialization("failed to list bundles", err)
	}

	cutoff := s.now().Add(-minAge)
	var removed int64
	for _, l := range listed {
		if _, ok := live[l.Slug]; ok || l.UpdatedAt.After(cutoff) {
			continue
		}
		if err := s.host.Remove(ctx, l.Slug); err != nil {
			logging.FromContext(ctx).Warn("failed to remove orphan bundle", zap.String("slug", l.Slug), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

func (s *Service) invalidate(ctx context.Context, slugs ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, slugs...); err != nil {
		logging.FromContext(ctx).Warn("failed to invalidate manifest cache", zap.Strings("slugs", slugs), zap.Error(err))
	}
}
