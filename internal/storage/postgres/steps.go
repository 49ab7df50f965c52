package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/apperr"
	defdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/domain"
)

const stepColumns = `id, project_id, name, title, subtitle, position, created_at, updated_at`

func scanStep(row rowScanner) (*defdomain.Step, error) {
	var st defdomain.Step
	if err := row.Scan(&st.ID, &st.ProjectID, &st.Name, &st.Title, &st.Subtitle, &st.Position,
		&st.CreatedAt, &st.UpdatedAt); err != nil {
		return nil, err
	}
	return &st, nil
}

// lockParent takes a row lock on the parent so concurrent appends serialize.
func lockParent(ctx context.Context, tx *sql.Tx, table, entity, id string) error {
	var got string
	err := tx.QueryRowContext(ctx, `SELECT id FROM `+table+` WHERE id = $1 FOR UPDATE`, id).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(entity, id)
	}
	return err
}

func (s *Store) CreateStep(ctx context.Context, st *defdomain.Step) error {
	return s.withTx(ctx, "create step", func(tx *sql.Tx) error {
		if err := lockParent(ctx, tx, "projects", "project", st.ProjectID); err != nil {
			return err
		}
		st.ID = uuid.NewString()
		now := time.Now().UTC()
		st.CreatedAt, st.UpdatedAt = now, now
		return tx.QueryRowContext(ctx, `
			INSERT INTO steps (id, project_id, name, title, subtitle, position, created_at, updated_at)
			SELECT $1, $2, $3, $4, $5, COALESCE(MAX(position), 0) + 1, $6, $6
			FROM steps WHERE project_id = $2
			RETURNING position
		`, st.ID, st.ProjectID, st.Name, st.Title, st.Subtitle, now).Scan(&st.Position)
	})
}

func (s *Store) GetStep(ctx context.Context, id string) (*defdomain.Step, error) {
	st, err := scanStep(s.db.QueryRowContext(ctx, `SELECT `+stepColumns+` FROM steps WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("step", id)
	}
	if err != nil {
		return nil, apperr.Persistence("get step", err)
	}
	return st, nil
}

func (s *Store) ListSteps(ctx context.Context, projectID string) ([]defdomain.Step, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+stepColumns+`
		FROM steps WHERE project_id = $1 ORDER BY position`, projectID)
	if err != nil {
		return nil, apperr.Persistence("list steps", err)
	}
	defer rows.Close()
	out := make([]defdomain.Step, 0, 8)
	for rows.Next() {
		st, err := scanStep(rows)
		if err != nil {
			return nil, apperr.Persistence("list steps", err)
		}
		out = append(out, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("list steps", err)
	}
	return out, nil
}

func (s *Store) UpdateStep(ctx context.Context, st *defdomain.Step) error {
	updated, err := scanStep(s.db.QueryRowContext(ctx, `
		UPDATE steps SET name = $2, title = $3, subtitle = $4, updated_at = $5
		WHERE id = $1
		RETURNING `+stepColumns, st.ID, st.Name, st.Title, st.Subtitle, time.Now().UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("step", st.ID)
	}
	if err != nil {
		return apperr.Persistence("update step", err)
	}
	*st = *updated
	return nil
}

// compactSQL re-indexes one parent's children to 1..N in a single statement.
func compactSQL(table, parentCol string) string {
	return `
		UPDATE ` + table + ` t SET position = r.rn
		FROM (
			SELECT id, ROW_NUMBER() OVER (ORDER BY position) AS rn
			FROM ` + table + ` WHERE ` + parentCol + ` = $1
		) r
		WHERE t.id = r.id AND t.position <> r.rn`
}

func (s *Store) DeleteStep(ctx context.Context, id string) error {
	return s.withTx(ctx, "delete step", func(tx *sql.Tx) error {
		var projectID string
		err := tx.QueryRowContext(ctx, `DELETE FROM steps WHERE id = $1 RETURNING project_id`, id).Scan(&projectID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("step", id)
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, compactSQL("steps", "project_id"), projectID)
		return err
	})
}

// reorder validates ordered against the current children and writes all
// positions in one statement.
func reorder(ctx context.Context, tx *sql.Tx, table, parentCol, parentID string, ordered []string) error {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM `+table+` WHERE `+parentCol+` = $1 ORDER BY position FOR UPDATE`, parentID)
	if err != nil {
		return err
	}
	var current []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		current = append(current, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if _, err := defdomain.Reorder(current, ordered); err != nil {
		return apperr.Validation("ordered_ids", err.Error())
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE `+table+` t SET position = o.pos
		FROM unnest($2::uuid[]) WITH ORDINALITY AS o(id, pos)
		WHERE t.id = o.id AND t.`+parentCol+` = $1
	`, parentID, pq.Array(ordered))
	return err
}

func (s *Store) ReorderSteps(ctx context.Context, projectID string, ordered []string) error {
	return s.withTx(ctx, "reorder steps", func(tx *sql.Tx) error {
		return reorder(ctx, tx, "steps", "project_id", projectID, ordered)
	})
}
