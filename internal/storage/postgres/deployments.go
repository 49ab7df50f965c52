package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/apperr"
	deploydomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/deploy/domain"
)

const (
	deploymentColumns    = `id, project_id, slug, bundle_location, public_url, status, created_at, updated_at`
	activeSlugConstraint = "deployments_active_slug_uniq"
)

func scanDeployment(row rowScanner) (*deploydomain.Deployment, error) {
	var (
		d      deploydomain.Deployment
		status string
	)
	if err := row.Scan(&d.ID, &d.ProjectID, &d.Slug, &d.BundleLocation, &d.PublicURL, &status,
		&d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Status = deploydomain.Status(status)
	return &d, nil
}

// Activate claims the slug through the partial unique index on active
// deployments. The claim, the project flip and materialize commit or roll
// back together.
func (s *Store) Activate(ctx context.Context, p deploydomain.ActivateParams, materialize func(context.Context) error) (*deploydomain.Deployment, error) {
	var dep *deploydomain.Deployment
	err := s.withTx(ctx, "activate deployment", func(tx *sql.Tx) error {
		now := time.Now().UTC()

		var holder string
		err := tx.QueryRowContext(ctx, `
			SELECT project_id FROM slug_reservations WHERE slug = $1 AND expires_at > $2
		`, p.Slug, now).Scan(&holder)
		switch {
		case err == nil && holder != p.ProjectID:
			return apperr.Conflict(p.Slug, nil)
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return err
		}

		dep, err = scanDeployment(tx.QueryRowContext(ctx, `
			INSERT INTO deployments (id, project_id, slug, bundle_location, public_url, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, 'active', $6, $6)
			ON CONFLICT (project_id) DO UPDATE
			SET slug = EXCLUDED.slug, bundle_location = EXCLUDED.bundle_location,
				public_url = EXCLUDED.public_url, status = 'active', updated_at = EXCLUDED.updated_at
			RETURNING `+deploymentColumns,
			uuid.NewString(), p.ProjectID, p.Slug, p.BundleLocation, p.PublicURL, now))
		if isUniqueViolation(err, activeSlugConstraint) {
			return apperr.Conflict(p.Slug, nil)
		}
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE projects SET subdomain = $2, deployed = TRUE, updated_at = $3 WHERE id = $1
		`, p.ProjectID, p.Slug, now)
		if err != nil {
			return err
		}
		if err := expectOne(res, "project", p.ProjectID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM slug_reservations WHERE slug = $1`, p.Slug); err != nil {
			return err
		}

		if materialize != nil {
			return materialize(ctx)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dep, nil
}

func (s *Store) Deactivate(ctx context.Context, p deploydomain.DeactivateParams) (*deploydomain.Deployment, error) {
	var dep *deploydomain.Deployment
	err := s.withTx(ctx, "deactivate deployment", func(tx *sql.Tx) error {
		now := time.Now().UTC()
		var err error
		dep, err = scanDeployment(tx.QueryRowContext(ctx, `
			UPDATE deployments SET status = 'inactive', updated_at = $2
			WHERE project_id = $1 AND status = 'active'
			RETURNING `+deploymentColumns, p.ProjectID, now))
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("active deployment", p.ProjectID)
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE projects
			SET deployed = FALSE,
				subdomain = CASE WHEN $2 THEN NULL ELSE subdomain END,
				updated_at = $3
			WHERE id = $1
		`, p.ProjectID, p.ClearSubdomain, now); err != nil {
			return err
		}

		if r := p.Reservation; r != nil {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO slug_reservations (slug, project_id, expires_at)
				VALUES ($1, $2, $3)
				ON CONFLICT (slug) DO UPDATE SET project_id = EXCLUDED.project_id, expires_at = EXCLUDED.expires_at
			`, r.Slug, r.ProjectID, r.ExpiresAt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dep, nil
}

func (s *Store) GetDeployment(ctx context.Context, projectID string) (*deploydomain.Deployment, error) {
	d, err := scanDeployment(s.db.QueryRowContext(ctx, `
		SELECT `+deploymentColumns+` FROM deployments WHERE project_id = $1
	`, projectID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("deployment", projectID)
	}
	if err != nil {
		return nil, apperr.Persistence("get deployment", err)
	}
	return d, nil
}

func (s *Store) GetActiveDeploymentBySlug(ctx context.Context, slug string) (*deploydomain.Deployment, error) {
	d, err := scanDeployment(s.db.QueryRowContext(ctx, `
		SELECT `+deploymentColumns+` FROM deployments WHERE slug = $1 AND status = 'active'
	`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("deployment", slug)
	}
	if err != nil {
		return nil, apperr.Persistence("get deployment", err)
	}
	return d, nil
}

func (s *Store) AvailableSlugs(ctx context.Context, slugs []string, projectID string) (map[string]bool, error) {
	out := make(map[string]bool, len(slugs))
	for _, slug := range slugs {
		out[slug] = true
	}
	if len(slugs) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT slug FROM deployments
		WHERE status = 'active' AND slug = ANY($1) AND project_id::text <> $2
		UNION
		SELECT slug FROM slug_reservations
		WHERE expires_at > $3 AND slug = ANY($1) AND project_id::text <> $2
	`, pq.Array(slugs), projectID, time.Now().UTC())
	if err != nil {
		return nil, apperr.Persistence("check slugs", err)
	}
	defer rows.Close()
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, apperr.Persistence("check slugs", err)
		}
		out[slug] = false
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("check slugs", err)
	}
	return out, nil
}

func (s *Store) ListActiveSlugs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT slug FROM deployments WHERE status = 'active' ORDER BY slug`)
	if err != nil {
		return nil, apperr.Persistence("list slugs", err)
	}
	defer rows.Close()
	out := make([]string, 0, 32)
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, apperr.Persistence("list slugs", err)
		}
		out = append(out, slug)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("list slugs", err)
	}
	return out, nil
}

func (s *Store) ReleaseExpiredReservations(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM slug_reservations WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, apperr.Persistence("release reservations", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Persistence("release reservations", err)
	}
	return n, nil
}
