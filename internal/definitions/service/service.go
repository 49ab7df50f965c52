// Package service implements the Definition Store: ownership-checked CRUD
// over the Project/Step/Field/Choice tree, clone, export and import.
package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/address"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/apperr"
	defdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/domain"
	deploydomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/deploy/domain"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/logging"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/storage"
)

// Store is the slice of persistence the definition service needs.
type Store interface {
	storage.ProjectStore
	storage.StepStore
	storage.FieldStore
	storage.ChoiceStore
	AvailableSlugs(ctx context.Context, slugs []string, projectID string) (map[string]bool, error)
}

// Deployer handles the parts of project lifecycle that touch a live address.
type Deployer interface {
	Undeploy(ctx context.Context, ownerID, projectID string) (*deploydomain.Deployment, error)
	Readdress(ctx context.Context, ownerID, projectID, slug string) (*deploydomain.Deployment, error)
}

type Service struct {
	store    Store
	deployer Deployer
}

func New(store Store) *Service {
	return &Service{store: store}
}

// SetDeployer wires the deploy service after construction; the two services
// reference each other.
func (s *Service) SetDeployer(d Deployer) {
	s.deployer = d
}

func (s *Service) ownedProject(ctx context.Context, ownerID, projectID string) (*defdomain.Project, error) {
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != ownerID {
		return nil, apperr.NotFound("project", projectID)
	}
	return p, nil
}

func (s *Service) ownedStep(ctx context.Context, ownerID, stepID string) (*defdomain.Step, *defdomain.Project, error) {
	st, err := s.store.GetStep(ctx, stepID)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.ownedProject(ctx, ownerID, st.ProjectID)
	if err != nil {
		return nil, nil, apperr.NotFound("step", stepID)
	}
	return st, p, nil
}

func (s *Service) ownedField(ctx context.Context, ownerID, fieldID string) (*defdomain.Field, *defdomain.Project, error) {
	f, err := s.store.GetField(ctx, fieldID)
	if err != nil {
		return nil, nil, err
	}
	_, p, err := s.ownedStep(ctx, ownerID, f.StepID)
	if err != nil {
		return nil, nil, apperr.NotFound("field", fieldID)
	}
	return f, p, nil
}

func (s *Service) ownedChoice(ctx context.Context, ownerID, choiceID string) (*defdomain.Choice, *defdomain.Field, error) {
	c, err := s.store.GetChoice(ctx, choiceID)
	if err != nil {
		return nil, nil, err
	}
	f, _, err := s.ownedField(ctx, ownerID, c.FieldID)
	if err != nil {
		return nil, nil, apperr.NotFound("choice", choiceID)
	}
	return c, f, nil
}

// Projects -------------------------------------------------------------------

func (s *Service) CreateProject(ctx context.Context, ownerID string, in ProjectInput) (*defdomain.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("name", "name is required")
	}
	tier, err := parseTier(in.Tier)
	if err != nil {
		return nil, err
	}
	p := &defdomain.Project{
		OwnerID:         ownerID,
		Name:            name,
		Description:     in.Description,
		Role:            strings.TrimSpace(in.Role),
		SystemPrompt:    in.SystemPrompt,
		Tier:            tier,
		RequiredPackage: strings.TrimSpace(in.RequiredPackage),
		Enabled:         in.Enabled == nil || *in.Enabled,
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("project created", zap.String("project_id", p.ID), zap.String("owner_id", ownerID))
	return p, nil
}

func (s *Service) GetProject(ctx context.Context, ownerID, projectID string) (*defdomain.Project, error) {
	return s.ownedProject(ctx, ownerID, projectID)
}

func (s *Service) ListProjects(ctx context.Context, ownerID string) ([]defdomain.Project, error) {
	return s.store.ListProjects(ctx, ownerID)
}

func (s *Service) GetTree(ctx context.Context, ownerID, projectID string) (*defdomain.Tree, error) {
	if _, err := s.ownedProject(ctx, ownerID, projectID); err != nil {
		return nil, err
	}
	return s.store.GetTree(ctx, projectID)
}

func (s *Service) UpdateProject(ctx context.Context, ownerID, projectID string, patch ProjectPatch) (*defdomain.Project, error) {
	p, err := s.ownedProject(ctx, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperr.Validation("name", "name is required")
		}
		p.Name = name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Role != nil {
		p.Role = strings.TrimSpace(*patch.Role)
	}
	if patch.SystemPrompt != nil {
		p.SystemPrompt = *patch.SystemPrompt
	}
	if patch.Tier != nil {
		tier, err := parseTier(*patch.Tier)
		if err != nil {
			return nil, err
		}
		p.Tier = tier
	}
	if patch.RequiredPackage != nil {
		p.RequiredPackage = strings.TrimSpace(*patch.RequiredPackage)
	}
	if patch.Enabled != nil {
		p.Enabled = *patch.Enabled
	}
	if err := s.store.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProject undeploys a live project first so no bundle is orphaned.
func (s *Service) DeleteProject(ctx context.Context, ownerID, projectID string) error {
	p, err := s.ownedProject(ctx, ownerID, projectID)
	if err != nil {
		return err
	}
	if p.Deployed {
		if s.deployer == nil {
			return apperr.Validation("project", "project is deployed; undeploy it first")
		}
		if _, err := s.deployer.Undeploy(ctx, ownerID, projectID); err != nil {
			return err
		}
	}
	if err := s.store.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	logging.FromContext(ctx).Info("project deleted", zap.String("project_id", projectID))
	return nil
}

// UpdateSubdomain is the explicit intent to change a project's address. The
// requested value is normalized with the slug rules. A deployed project is
// re-addressed live; a draft only records the seed after an availability check.
func (s *Service) UpdateSubdomain(ctx context.Context, ownerID, projectID, requested string) (*defdomain.Project, error) {
	p, err := s.ownedProject(ctx, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(requested) == "" {
		return nil, apperr.Validation("subdomain", "subdomain is required")
	}
	slug := address.Normalize(requested)

	if p.Deployed {
		if s.deployer == nil {
			return nil, apperr.Validation("subdomain", "cannot re-address a deployed project")
		}
		if _, err := s.deployer.Readdress(ctx, ownerID, projectID, slug); err != nil {
			return nil, err
		}
		return s.store.GetProject(ctx, projectID)
	}

	avail, err := s.store.AvailableSlugs(ctx, []string{slug}, projectID)
	if err != nil {
		return nil, err
	}
	if !avail[slug] {
		return nil, apperr.Conflict(slug, address.AvailableSuggestions(ctx, s.store, p.Name, projectID))
	}
	if err := s.store.SetSubdomain(ctx, projectID, &slug); err != nil {
		return nil, err
	}
	p.Subdomain = &slug
	return p, nil
}

// Clone deep-copies the tree into a new draft. The copy inherits no
// subdomain; its address is derived from its own name at publish time.
func (s *Service) Clone(ctx context.Context, ownerID, projectID string) (*defdomain.Tree, error) {
	tree, err := s.GetTree(ctx, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	tree.Project.Name = tree.Project.Name + " (copy)"
	return s.createTree(ctx, ownerID, tree)
}

// ImportTree validates and commits a candidate tree as a new draft project.
// It is also how synthesized drafts are committed.
func (s *Service) ImportTree(ctx context.Context, ownerID string, tree *defdomain.Tree) (*defdomain.Tree, error) {
	if err := NormalizeTree(tree); err != nil {
		return nil, err
	}
	return s.createTree(ctx, ownerID, tree)
}

func (s *Service) createTree(ctx context.Context, ownerID string, tree *defdomain.Tree) (*defdomain.Tree, error) {
	tree.Project.OwnerID = ownerID
	tree.Project.Subdomain = nil
	tree.Project.Deployed = false
	if err := s.store.CreateTree(ctx, tree); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("project tree created",
		zap.String("project_id", tree.Project.ID),
		zap.Int("steps", len(tree.Steps)),
		zap.Int("fields", tree.FieldCount()))
	return s.store.GetTree(ctx, tree.Project.ID)
}
