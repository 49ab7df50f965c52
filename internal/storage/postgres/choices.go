package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/apperr"
	defdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/domain"
)

const choiceColumns = `id, field_id, label, value, position, is_default`

func scanChoice(row rowScanner) (*defdomain.Choice, error) {
	var c defdomain.Choice
	if err := row.Scan(&c.ID, &c.FieldID, &c.Label, &c.Value, &c.Position, &c.IsDefault); err != nil {
		return nil, err
	}
	return &c, nil
}

// lockChoiceField locks the owning field row and returns its type.
func lockChoiceField(ctx context.Context, tx *sql.Tx, fieldID string) (defdomain.FieldType, error) {
	var typ string
	err := tx.QueryRowContext(ctx, `SELECT type FROM fields WHERE id = $1 FOR UPDATE`, fieldID).Scan(&typ)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.NotFound("field", fieldID)
	}
	return defdomain.FieldType(typ), err
}

func (s *Store) CreateChoice(ctx context.Context, c *defdomain.Choice) error {
	return s.withTx(ctx, "create choice", func(tx *sql.Tx) error {
		typ, err := lockChoiceField(ctx, tx, c.FieldID)
		if err != nil {
			return err
		}
		if !typ.HasChoices() {
			return apperr.Validation("field_id", "field type "+string(typ)+" does not take choices")
		}
		c.ID = uuid.NewString()
		return tx.QueryRowContext(ctx, `
			INSERT INTO choices (id, field_id, label, value, position, is_default)
			SELECT $1, $2, $3, $4, COALESCE(MAX(position), 0) + 1, $5
			FROM choices WHERE field_id = $2
			RETURNING position
		`, c.ID, c.FieldID, c.Label, c.Value, c.IsDefault).Scan(&c.Position)
	})
}

func (s *Store) GetChoice(ctx context.Context, id string) (*defdomain.Choice, error) {
	c, err := scanChoice(s.db.QueryRowContext(ctx, `SELECT `+choiceColumns+` FROM choices WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("choice", id)
	}
	if err != nil {
		return nil, apperr.Persistence("get choice", err)
	}
	return c, nil
}

func (s *Store) ListChoices(ctx context.Context, fieldID string) ([]defdomain.Choice, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+choiceColumns+`
		FROM choices WHERE field_id = $1 ORDER BY position`, fieldID)
	if err != nil {
		return nil, apperr.Persistence("list choices", err)
	}
	defer rows.Close()
	out := make([]defdomain.Choice, 0, 4)
	for rows.Next() {
		c, err := scanChoice(rows)
		if err != nil {
			return nil, apperr.Persistence("list choices", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("list choices", err)
	}
	return out, nil
}

func (s *Store) UpdateChoice(ctx context.Context, c *defdomain.Choice) error {
	updated, err := scanChoice(s.db.QueryRowContext(ctx, `
		UPDATE choices SET label = $2, value = $3, is_default = $4
		WHERE id = $1
		RETURNING `+choiceColumns, c.ID, c.Label, c.Value, c.IsDefault))
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("choice", c.ID)
	}
	if err != nil {
		return apperr.Persistence("update choice", err)
	}
	*c = *updated
	return nil
}

func (s *Store) DeleteChoice(ctx context.Context, id string) error {
	return s.withTx(ctx, "delete choice", func(tx *sql.Tx) error {
		var fieldID string
		err := tx.QueryRowContext(ctx, `SELECT field_id FROM choices WHERE id = $1`, id).Scan(&fieldID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("choice", id)
		}
		if err != nil {
			return err
		}
		typ, err := lockChoiceField(ctx, tx, fieldID)
		if err != nil {
			return err
		}
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM choices WHERE field_id = $1`, fieldID).Scan(&count); err != nil {
			return err
		}
		if typ.HasChoices() && count <= 1 {
			return apperr.Validation("choice", "cannot delete the last choice of a "+string(typ)+" field")
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM choices WHERE id = $1`, id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, compactSQL("choices", "field_id"), fieldID)
		return err
	})
}

func (s *Store) ReorderChoices(ctx context.Context, fieldID string, ordered []string) error {
	return s.withTx(ctx, "reorder choices", func(tx *sql.Tx) error {
		return reorder(ctx, tx, "choices", "field_id", fieldID, ordered)
	})
}
