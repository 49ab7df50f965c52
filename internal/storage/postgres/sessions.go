package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/apperr"
	rtdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/runtime/domain"
)

const sessionColumns = `id, project_id, token, origin_address, subject_id, unattributed, started_at,
	completed_at, ai_response, generation_error`

func scanSession(row rowScanner) (*rtdomain.Session, error) {
	var (
		sess         rtdomain.Session
		unattributed []byte
		completedAt  sql.NullTime
		aiResponse   sql.NullString
		genErr       sql.NullString
	)
	if err := row.Scan(&sess.ID, &sess.ProjectID, &sess.Token, &sess.OriginAddress, &sess.SubjectID,
		&unattributed, &sess.StartedAt, &completedAt, &aiResponse, &genErr); err != nil {
		return nil, err
	}
	if len(unattributed) > 0 {
		if err := json.Unmarshal(unattributed, &sess.Unattributed); err != nil {
			return nil, err
		}
		if len(sess.Unattributed) == 0 {
			sess.Unattributed = nil
		}
	}
	if completedAt.Valid {
		t := completedAt.Time
		sess.CompletedAt = &t
	}
	sess.AIResponse = stringPtr(aiResponse)
	sess.GenerationError = stringPtr(genErr)
	return &sess, nil
}

// CreateSession commits on its own so the session is durable before any
// external call is made.
func (s *Store) CreateSession(ctx context.Context, sess *rtdomain.Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, project_id, token, origin_address, subject_id, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sess.ID, sess.ProjectID, sess.Token, sess.OriginAddress, sess.SubjectID, sess.StartedAt)
	if err != nil {
		return apperr.Persistence("create session", err)
	}
	return nil
}

func (s *Store) SaveResponses(ctx context.Context, sessionID string, responses []rtdomain.Response, unattributed map[string]string) error {
	return s.withTx(ctx, "save responses", func(tx *sql.Tx) error {
		now := time.Now().UTC()
		if len(responses) > 0 {
			stmt, err := tx.PrepareContext(ctx, `
				INSERT INTO responses (id, session_id, step_id, field_id, value, created_at)
				VALUES ($1, $2, $3, $4, $5, $6)
			`)
			if err != nil {
				return err
			}
			defer stmt.Close()
			for i := range responses {
				r := &responses[i]
				if r.ID == "" {
					r.ID = uuid.NewString()
				}
				r.SessionID, r.CreatedAt = sessionID, now
				if _, err := stmt.ExecContext(ctx, r.ID, r.SessionID, r.StepID, r.FieldID, r.Value, r.CreatedAt); err != nil {
					return err
				}
			}
		}
		if len(unattributed) > 0 {
			raw, err := json.Marshal(unattributed)
			if err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx, `UPDATE sessions SET unattributed = $2 WHERE id = $1`, sessionID, raw)
			if err != nil {
				return err
			}
			return expectOne(res, "session", sessionID)
		}
		return nil
	})
}

func (s *Store) CompleteSession(ctx context.Context, sessionID, aiResponse string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET ai_response = $2, completed_at = $3 WHERE id = $1
	`, sessionID, aiResponse, at.UTC())
	if err != nil {
		return apperr.Persistence("complete session", err)
	}
	return wrap("complete session", expectOne(res, "session", sessionID))
}

func (s *Store) FailSession(ctx context.Context, sessionID, reason string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET generation_error = $2 WHERE id = $1`, sessionID, reason)
	if err != nil {
		return apperr.Persistence("fail session", err)
	}
	return wrap("fail session", expectOne(res, "session", sessionID))
}

func (s *Store) GetSessionByToken(ctx context.Context, token string) (*rtdomain.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token = $1`, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("session", token)
	}
	if err != nil {
		return nil, apperr.Persistence("get session", err)
	}
	return sess, nil
}

func (s *Store) ListResponses(ctx context.Context, sessionID string) ([]rtdomain.Response, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, step_id, field_id, value, created_at
		FROM responses WHERE session_id = $1 ORDER BY created_at, id
	`, sessionID)
	if err != nil {
		return nil, apperr.Persistence("list responses", err)
	}
	defer rows.Close()
	out := make([]rtdomain.Response, 0, 8)
	for rows.Next() {
		var r rtdomain.Response
		if err := rows.Scan(&r.ID, &r.SessionID, &r.StepID, &r.FieldID, &r.Value, &r.CreatedAt); err != nil {
			return nil, apperr.Persistence("list responses", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("list responses", err)
	}
	return out, nil
}
