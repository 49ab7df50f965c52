package access

import (
	"context"
	"time"

	defdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/domain"
)

// Grant is a package an identity holds. DailyLimit 0 means unlimited.
type Grant struct {
	SubjectID   string         `json:"subject_id"`
	PackageID   string         `json:"package_id"`
	PackageName string         `json:"package_name"`
	Tier        defdomain.Tier `json:"tier"`
	DailyLimit  int64          `json:"daily_limit"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
}

func (g Grant) activeAt(now time.Time) bool {
	return g.ExpiresAt == nil || g.ExpiresAt.After(now)
}

// Package is a purchasable entitlement bundle.
type Package struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Tier        defdomain.Tier `json:"tier"`
	DailyLimit  int64          `json:"daily_limit"`
}

// GrantSource is the durable record of entitlements.
type GrantSource interface {
	ActiveGrants(ctx context.Context, subjectID string, now time.Time) ([]Grant, error)
	GetPackage(ctx context.Context, id string) (*Package, error)
}

// best picks the grant with the highest tier, breaking ties by limit with
// 0 (unlimited) ranking highest.
func best(grants []Grant) (Grant, bool) {
	var out Grant
	found := false
	for _, g := range grants {
		if !g.Tier.Valid() {
			continue
		}
		if !found || g.Tier.Rank() > out.Tier.Rank() ||
			(g.Tier.Rank() == out.Tier.Rank() && limitAbove(g.DailyLimit, out.DailyLimit)) {
			out = g
			found = true
		}
	}
	return out, found
}

func limitAbove(a, b int64) bool {
	if a == 0 {
		return b != 0
	}
	if b == 0 {
		return false
	}
	return a > b
}
