package access

import (
	"context"
	"sync"
	"time"
)

// CachedGrants memoizes ActiveGrants per subject for a short TTL. Package
// lookups pass straight through.
type CachedGrants struct {
	source GrantSource
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]grantEntry
}

type grantEntry struct {
	grants  []Grant
	fetched time.Time
}

func NewCachedGrants(source GrantSource, ttl time.Duration) *CachedGrants {
	return &CachedGrants{
		source:  source,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]grantEntry),
	}
}

func (c *CachedGrants) ActiveGrants(ctx context.Context, subjectID string, now time.Time) ([]Grant, error) {
	if c.ttl <= 0 {
		return c.source.ActiveGrants(ctx, subjectID, now)
	}

	c.mu.Lock()
	e, ok := c.entries[subjectID]
	c.mu.Unlock()
	if ok && c.now().Sub(e.fetched) < c.ttl {
		return activeOnly(e.grants, now), nil
	}

	grants, err := c.source.ActiveGrants(ctx, subjectID, now)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[subjectID] = grantEntry{grants: grants, fetched: c.now()}
	c.mu.Unlock()
	return grants, nil
}

func (c *CachedGrants) GetPackage(ctx context.Context, id string) (*Package, error) {
	return c.source.GetPackage(ctx, id)
}

// Invalidate drops a subject's cached grants.
func (c *CachedGrants) Invalidate(subjectID string) {
	c.mu.Lock()
	delete(c.entries, subjectID)
	c.mu.Unlock()
}

// cached grants can expire between refreshes
func activeOnly(grants []Grant, now time.Time) []Grant {
	out := make([]Grant, 0, len(grants))
	for _, g := range grants {
		if g.activeAt(now) {
			out = append(out, g)
		}
	}
	return out
}
