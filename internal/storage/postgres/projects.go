package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/apperr"
	defdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/domain"
)

const projectColumns = `id, owner_id, name, description, role, system_prompt, tier, required_package,
	subdomain, deployed, enabled, created_at, updated_at`

func scanProject(row rowScanner) (*defdomain.Project, error) {
	var (
		p         defdomain.Project
		tier      string
		subdomain sql.NullString
	)
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.Role, &p.SystemPrompt, &tier,
		&p.RequiredPackage, &subdomain, &p.Deployed, &p.Enabled, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Tier = defdomain.Tier(tier)
	p.Subdomain = stringPtr(subdomain)
	return &p, nil
}

func insertProject(ctx context.Context, q execer, p *defdomain.Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := q.ExecContext(ctx, `
		INSERT INTO projects (id, owner_id, name, description, role, system_prompt, tier, required_package,
			subdomain, deployed, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL, FALSE, $9, $10, $10)
	`, p.ID, p.OwnerID, p.Name, p.Description, p.Role, p.SystemPrompt, string(p.Tier), p.RequiredPackage,
		p.Enabled, now)
	p.Subdomain, p.Deployed = nil, false
	return err
}

func (s *Store) CreateProject(ctx context.Context, p *defdomain.Project) error {
	return wrap("create project", insertProject(ctx, s.db, p))
}

func (s *Store) GetProject(ctx context.Context, id string) (*defdomain.Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("project", id)
	}
	if err != nil {
		return nil, apperr.Persistence("get project", err)
	}
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context, ownerID string) ([]defdomain.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, apperr.Persistence("list projects", err)
	}
	defer rows.Close()

	out := make([]defdomain.Project, 0, 16)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, apperr.Persistence("list projects", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("list projects", err)
	}
	return out, nil
}

func (s *Store) UpdateProject(ctx context.Context, p *defdomain.Project) error {
	updated, err := scanProject(s.db.QueryRowContext(ctx, `
		UPDATE projects
		SET name = $2, description = $3, role = $4, system_prompt = $5, tier = $6,
			required_package = $7, enabled = $8, updated_at = $9
		WHERE id = $1
		RETURNING `+projectColumns,
		p.ID, p.Name, p.Description, p.Role, p.SystemPrompt, string(p.Tier), p.RequiredPackage, p.Enabled,
		time.Now().UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("project", p.ID)
	}
	if err != nil {
		return apperr.Persistence("update project", err)
	}
	*p = *updated
	return nil
}

// DeleteProject relies on ON DELETE CASCADE for the tree, deployments and sessions.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return apperr.Persistence("delete project", err)
	}
	return wrap("delete project", expectOne(res, "project", id))
}

func (s *Store) SetSubdomain(ctx context.Context, id string, subdomain *string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET subdomain = $2, updated_at = $3 WHERE id = $1
	`, id, nullString(subdomain), time.Now().UTC())
	if err != nil {
		return apperr.Persistence("set subdomain", err)
	}
	return wrap("set subdomain", expectOne(res, "project", id))
}

func (s *Store) GetTree(ctx context.Context, projectID string) (*defdomain.Tree, error) {
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	tree := &defdomain.Tree{Project: *p}

	steps, err := s.ListSteps(ctx, projectID)
	if err != nil {
		return nil, err
	}
	stepIdx := make(map[string]int, len(steps))
	for i, st := range steps {
		stepIdx[st.ID] = i
		tree.Steps = append(tree.Steps, defdomain.StepNode{Step: st})
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+fieldColumns+`
		FROM fields WHERE project_id = $1 ORDER BY position`, projectID)
	if err != nil {
		return nil, apperr.Persistence("load fields", err)
	}
	fieldLoc := map[string][2]int{}
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			rows.Close()
			return nil, apperr.Persistence("load fields", err)
		}
		si, ok := stepIdx[f.StepID]
		if !ok {
			continue
		}
		node := &tree.Steps[si]
		node.Fields = append(node.Fields, defdomain.FieldNode{Field: *f})
		fieldLoc[f.ID] = [2]int{si, len(node.Fields) - 1}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("load fields", err)
	}

	crows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.field_id, c.label, c.value, c.position, c.is_default
		FROM choices c
		JOIN fields f ON f.id = c.field_id
		WHERE f.project_id = $1
		ORDER BY c.position
	`, projectID)
	if err != nil {
		return nil, apperr.Persistence("load choices", err)
	}
	defer crows.Close()
	for crows.Next() {
		c, err := scanChoice(crows)
		if err != nil {
			return nil, apperr.Persistence("load choices", err)
		}
		loc, ok := fieldLoc[c.FieldID]
		if !ok {
			continue
		}
		fn := &tree.Steps[loc[0]].Fields[loc[1]]
		fn.Choices = append(fn.Choices, *c)
	}
	if err := crows.Err(); err != nil {
		return nil, apperr.Persistence("load choices", err)
	}
	return tree, nil
}

// CreateTree inserts a whole hierarchy with positions taken from slice order.
func (s *Store) CreateTree(ctx context.Context, tree *defdomain.Tree) error {
	return s.withTx(ctx, "create tree", func(tx *sql.Tx) error {
		tree.Project.ID = ""
		if err := insertProject(ctx, tx, &tree.Project); err != nil {
			return err
		}
		now := time.Now().UTC()
		for i := range tree.Steps {
			st := &tree.Steps[i]
			st.ID, st.ProjectID, st.Position = uuid.NewString(), tree.Project.ID, i+1
			st.CreatedAt, st.UpdatedAt = now, now
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO steps (id, project_id, name, title, subtitle, position, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
			`, st.ID, st.ProjectID, st.Name, st.Title, st.Subtitle, st.Position, now); err != nil {
				return err
			}
			for j := range st.Fields {
				f := &st.Fields[j]
				f.ID, f.StepID, f.Position = uuid.NewString(), st.ID, j+1
				f.CreatedAt, f.UpdatedAt = now, now
				if err := insertField(ctx, tx, tree.Project.ID, &f.Field); err != nil {
					return err
				}
				if err := insertChoices(ctx, tx, f.ID, f.Choices); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
