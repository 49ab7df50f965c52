package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/access"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/apperr"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/completion"
	defdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/domain"
)

func (s *Store) ActiveGrants(ctx context.Context, subjectID string, now time.Time) ([]access.Grant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.subject_id, p.id, p.name, p.tier, p.daily_limit, e.expires_at
		FROM entitlements e
		JOIN packages p ON p.id = e.package_id
		WHERE e.subject_id = $1 AND (e.expires_at IS NULL OR e.expires_at > $2)
	`, subjectID, now)
	if err != nil {
		return nil, apperr.Persistence("load grants", err)
	}
	defer rows.Close()

	var out []access.Grant
	for rows.Next() {
		var (
			g       access.Grant
			tier    string
			expires sql.NullTime
		)
		if err := rows.Scan(&g.SubjectID, &g.PackageID, &g.PackageName, &tier, &g.DailyLimit, &expires); err != nil {
			return nil, apperr.Persistence("load grants", err)
		}
		g.Tier = defdomain.Tier(tier)
		if expires.Valid {
			t := expires.Time
			g.ExpiresAt = &t
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("load grants", err)
	}
	return out, nil
}

func (s *Store) GetPackage(ctx context.Context, id string) (*access.Package, error) {
	var (
		p    access.Package
		tier string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, tier, daily_limit FROM packages WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Description, &tier, &p.DailyLimit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("package", id)
	}
	if err != nil {
		return nil, apperr.Persistence("get package", err)
	}
	p.Tier = defdomain.Tier(tier)
	return &p, nil
}

// ActiveProvider returns the highest active provider version, or nil if the
// table holds none.
func (s *Store) ActiveProvider(ctx context.Context) (*completion.Provider, error) {
	var (
		p         completion.Provider
		timeoutMS int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT name, version, base_url, model, api_key, timeout_ms
		FROM completion_providers
		WHERE active
		ORDER BY version DESC, created_at DESC
		LIMIT 1
	`).Scan(&p.Name, &p.Version, &p.BaseURL, &p.Model, &p.APIKey, &timeoutMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Persistence("load completion provider", err)
	}
	p.Timeout = time.Duration(timeoutMS) * time.Millisecond
	return &p, nil
}
