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

const fieldColumns = `id, step_id, name, label, type, placeholder, help_text, required, position,
	min_length, max_length, pattern, created_at, updated_at`

func scanField(row rowScanner) (*defdomain.Field, error) {
	var (
		f              defdomain.Field
		typ            string
		minLen, maxLen sql.NullInt64
	)
	if err := row.Scan(&f.ID, &f.StepID, &f.Name, &f.Label, &typ, &f.Placeholder, &f.HelpText, &f.Required,
		&f.Position, &minLen, &maxLen, &f.Pattern, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	f.Type = defdomain.FieldType(typ)
	f.MinLength, f.MaxLength = intPtr(minLen), intPtr(maxLen)
	return &f, nil
}

func duplicateName(err error, name string) error {
	if isUniqueViolation(err, "fields_name_uniq") {
		return apperr.Validation("name", "field name already used in this project: "+name)
	}
	return err
}

func insertField(ctx context.Context, q execer, projectID string, f *defdomain.Field) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO fields (id, step_id, project_id, name, label, type, placeholder, help_text, required,
			position, min_length, max_length, pattern, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
	`, f.ID, f.StepID, projectID, f.Name, f.Label, string(f.Type), f.Placeholder, f.HelpText, f.Required,
		f.Position, nullInt(f.MinLength), nullInt(f.MaxLength), f.Pattern, f.CreatedAt)
	return duplicateName(err, f.Name)
}

func insertChoices(ctx context.Context, q execer, fieldID string, choices []defdomain.Choice) error {
	for i := range choices {
		c := &choices[i]
		c.ID, c.FieldID, c.Position = uuid.NewString(), fieldID, i+1
		if _, err := q.ExecContext(ctx, `
			INSERT INTO choices (id, field_id, label, value, position, is_default)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, c.ID, c.FieldID, c.Label, c.Value, c.Position, c.IsDefault); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) CreateField(ctx context.Context, f *defdomain.Field, choices []defdomain.Choice) error {
	return s.withTx(ctx, "create field", func(tx *sql.Tx) error {
		var projectID string
		err := tx.QueryRowContext(ctx, `SELECT project_id FROM steps WHERE id = $1 FOR UPDATE`, f.StepID).Scan(&projectID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("step", f.StepID)
		}
		if err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), 0) + 1 FROM fields WHERE step_id = $1`,
			f.StepID).Scan(&f.Position); err != nil {
			return err
		}
		f.ID = uuid.NewString()
		now := time.Now().UTC()
		f.CreatedAt, f.UpdatedAt = now, now
		if err := insertField(ctx, tx, projectID, f); err != nil {
			return err
		}
		return insertChoices(ctx, tx, f.ID, choices)
	})
}

func (s *Store) GetField(ctx context.Context, id string) (*defdomain.Field, error) {
	f, err := scanField(s.db.QueryRowContext(ctx, `SELECT `+fieldColumns+` FROM fields WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("field", id)
	}
	if err != nil {
		return nil, apperr.Persistence("get field", err)
	}
	return f, nil
}

func (s *Store) ListFields(ctx context.Context, stepID string) ([]defdomain.Field, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+fieldColumns+`
		FROM fields WHERE step_id = $1 ORDER BY position`, stepID)
	if err != nil {
		return nil, apperr.Persistence("list fields", err)
	}
	defer rows.Close()
	out := make([]defdomain.Field, 0, 8)
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, apperr.Persistence("list fields", err)
		}
		out = append(out, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("list fields", err)
	}
	return out, nil
}

func (s *Store) FieldNames(ctx context.Context, projectID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, id FROM fields WHERE project_id = $1`, projectID)
	if err != nil {
		return nil, apperr.Persistence("field names", err)
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var name, id string
		if err := rows.Scan(&name, &id); err != nil {
			return nil, apperr.Persistence("field names", err)
		}
		out[name] = id
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("field names", err)
	}
	return out, nil
}

func (s *Store) UpdateField(ctx context.Context, f *defdomain.Field, choices []defdomain.Choice, replaceChoices bool) error {
	return s.withTx(ctx, "update field", func(tx *sql.Tx) error {
		updated, err := scanField(tx.QueryRowContext(ctx, `
			UPDATE fields
			SET name = $2, label = $3, type = $4, placeholder = $5, help_text = $6, required = $7,
				min_length = $8, max_length = $9, pattern = $10, updated_at = $11
			WHERE id = $1
			RETURNING `+fieldColumns,
			f.ID, f.Name, f.Label, string(f.Type), f.Placeholder, f.HelpText, f.Required,
			nullInt(f.MinLength), nullInt(f.MaxLength), f.Pattern, time.Now().UTC()))
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("field", f.ID)
		}
		if err != nil {
			return duplicateName(err, f.Name)
		}
		*f = *updated
		if !replaceChoices {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM choices WHERE field_id = $1`, f.ID); err != nil {
			return err
		}
		return insertChoices(ctx, tx, f.ID, choices)
	})
}

func (s *Store) DeleteField(ctx context.Context, id string) error {
	return s.withTx(ctx, "delete field", func(tx *sql.Tx) error {
		var stepID string
		err := tx.QueryRowContext(ctx, `DELETE FROM fields WHERE id = $1 RETURNING step_id`, id).Scan(&stepID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("field", id)
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, compactSQL("fields", "step_id"), stepID)
		return err
	})
}

func (s *Store) ReorderFields(ctx context.Context, stepID string, ordered []string) error {
	return s.withTx(ctx, "reorder fields", func(tx *sql.Tx) error {
		return reorder(ctx, tx, "fields", "step_id", stepID, ordered)
	})
}
