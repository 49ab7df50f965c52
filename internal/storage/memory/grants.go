package memory

import (
	"context"
	"sort"
	"time"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/access"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/apperr"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/completion"
)

// PutPackage registers a package for grants to reference.
func (s *Store) PutPackage(p access.Package) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packages[p.ID] = p
}

// Grant gives subjectID the package until expiresAt (nil = no expiry).
func (s *Store) Grant(subjectID, packageID string, expiresAt *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pkg := s.packages[packageID]
	s.grants = append(s.grants, access.Grant{
		SubjectID:   subjectID,
		PackageID:   packageID,
		PackageName: pkg.Name,
		Tier:        pkg.Tier,
		DailyLimit:  pkg.DailyLimit,
		ExpiresAt:   expiresAt,
	})
}

func (s *Store) ActiveGrants(_ context.Context, subjectID string, now time.Time) ([]access.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []access.Grant
	for _, g := range s.grants {
		if g.SubjectID == subjectID && (g.ExpiresAt == nil || g.ExpiresAt.After(now)) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *Store) GetPackage(_ context.Context, id string) (*access.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.packages[id]
	if !ok {
		return nil, apperr.NotFound("package", id)
	}
	return &p, nil
}

// PutProvider records a provider version; the highest version wins.
func (s *Store) PutProvider(p completion.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers = append(s.providers, p)
	sort.Slice(s.providers, func(i, j int) bool { return s.providers[i].Version > s.providers[j].Version })
}

func (s *Store) ActiveProvider(context.Context) (*completion.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.providers) == 0 {
		return nil, nil
	}
	p := s.providers[0]
	return &p, nil
}
