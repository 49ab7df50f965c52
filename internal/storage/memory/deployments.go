package memory

import (
	"context"
	"sort"
	"time"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/apperr"
	deploydomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/deploy/domain"
)

// slugHeldLocked reports whether slug is taken for projectID by another
// project's active deployment or unexpired reservation.
func (s *Store) slugHeldLocked(slug, projectID string, now time.Time) bool {
	for _, d := range s.deployments {
		if d.Status == deploydomain.StatusActive && d.Slug == slug && d.ProjectID != projectID {
			return true
		}
	}
	if r, ok := s.reservations[slug]; ok && r.ProjectID != projectID && r.ExpiresAt.After(now) {
		return true
	}
	return false
}

func (s *Store) Activate(ctx context.Context, p deploydomain.ActivateParams, materialize func(context.Context) error) (*deploydomain.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slug := normalizedSlug(p.Slug)
	proj, ok := s.projects[p.ProjectID]
	if !ok {
		return nil, apperr.NotFound("project", p.ProjectID)
	}
	if s.slugHeldLocked(slug, p.ProjectID, time.Now().UTC()) {
		return nil, apperr.Conflict(slug, nil)
	}

	prevDep, hadDep := s.deployments[p.ProjectID]
	prevProj := cloneProject(proj)
	prevRes, hadRes := s.reservations[slug]

	now := time.Now().UTC()
	dep := prevDep
	if !hadDep {
		dep = deploydomain.Deployment{ID: newID(), ProjectID: p.ProjectID, CreatedAt: now}
	}
	dep.Slug = slug
	dep.BundleLocation = p.BundleLocation
	dep.PublicURL = p.PublicURL
	dep.Status = deploydomain.StatusActive
	dep.UpdatedAt = now
	s.deployments[p.ProjectID] = dep

	proj.Subdomain = &slug
	proj.Deployed = true
	proj.UpdatedAt = now
	s.projects[p.ProjectID] = proj
	delete(s.reservations, slug)

	if materialize != nil {
		if err := materialize(ctx); err != nil {
			if hadDep {
				s.deployments[p.ProjectID] = prevDep
			} else {
				delete(s.deployments, p.ProjectID)
			}
			s.projects[p.ProjectID] = prevProj
			if hadRes {
				s.reservations[slug] = prevRes
			}
			return nil, err
		}
	}
	out := dep
	return &out, nil
}

func (s *Store) Deactivate(_ context.Context, p deploydomain.DeactivateParams) (*deploydomain.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dep, ok := s.deployments[p.ProjectID]
	if !ok || dep.Status != deploydomain.StatusActive {
		return nil, apperr.NotFound("active deployment", p.ProjectID)
	}
	proj, ok := s.projects[p.ProjectID]
	if !ok {
		return nil, apperr.NotFound("project", p.ProjectID)
	}
	now := time.Now().UTC()
	dep.Status = deploydomain.StatusInactive
	dep.UpdatedAt = now
	s.deployments[p.ProjectID] = dep

	proj.Deployed = false
	if p.ClearSubdomain {
		proj.Subdomain = nil
	}
	proj.UpdatedAt = now
	s.projects[p.ProjectID] = proj

	if p.Reservation != nil {
		s.reservations[p.Reservation.Slug] = *p.Reservation
	}
	out := dep
	return &out, nil
}

func (s *Store) GetDeployment(_ context.Context, projectID string) (*deploydomain.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.deployments[projectID]
	if !ok {
		return nil, apperr.NotFound("deployment", projectID)
	}
	return &d, nil
}

func (s *Store) GetActiveDeploymentBySlug(_ context.Context, slug string) (*deploydomain.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slug = normalizedSlug(slug)
	for _, d := range s.deployments {
		if d.Status == deploydomain.StatusActive && d.Slug == slug {
			out := d
			return &out, nil
		}
	}
	return nil, apperr.NotFound("deployment", slug)
}

func (s *Store) AvailableSlugs(_ context.Context, slugs []string, projectID string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now().UTC()
	out := make(map[string]bool, len(slugs))
	for _, slug := range slugs {
		out[slug] = !s.slugHeldLocked(normalizedSlug(slug), projectID, now)
	}
	return out, nil
}

func (s *Store) ListActiveSlugs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0)
	for _, d := range s.deployments {
		if d.Status == deploydomain.StatusActive {
			out = append(out, d.Slug)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) ReleaseExpiredReservations(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for slug, r := range s.reservations {
		if !r.ExpiresAt.After(now) {
			delete(s.reservations, slug)
			n++
		}
	}
	return n, nil
}
