package memory

import (
	"context"
	"errors"
	"time"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/apperr"
	rtdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/runtime/domain"
)

func cloneSession(s rtdomain.Session) rtdomain.Session {
	s.AIResponse = cloneString(s.AIResponse)
	s.GenerationError = cloneString(s.GenerationError)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		s.CompletedAt = &t
	}
	if s.Unattributed != nil {
		m := make(map[string]string, len(s.Unattributed))
		for k, v := range s.Unattributed {
			m[k] = v
		}
		s.Unattributed = m
	}
	return s
}

func (s *Store) CreateSession(_ context.Context, sess *rtdomain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[sess.ProjectID]; !ok {
		return apperr.NotFound("project", sess.ProjectID)
	}
	for _, existing := range s.sessions {
		if existing.Token == sess.Token {
			return apperr.Persistence("create session", errors.New("duplicate session token"))
		}
	}
	if sess.ID == "" {
		sess.ID = newID()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now().UTC()
	}
	s.sessions[sess.ID] = cloneSession(*sess)
	return nil
}

func (s *Store) SaveResponses(_ context.Context, sessionID string, responses []rtdomain.Response, unattributed map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return apperr.NotFound("session", sessionID)
	}
	now := time.Now().UTC()
	for i := range responses {
		r := &responses[i]
		if r.ID == "" {
			r.ID = newID()
		}
		r.SessionID = sessionID
		r.CreatedAt = now
		s.responses[sessionID] = append(s.responses[sessionID], *r)
	}
	if len(unattributed) > 0 {
		sess.Unattributed = unattributed
		s.sessions[sessionID] = cloneSession(sess)
	}
	return nil
}

func (s *Store) CompleteSession(_ context.Context, sessionID, aiResponse string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return apperr.NotFound("session", sessionID)
	}
	at = at.UTC()
	sess.AIResponse = &aiResponse
	sess.CompletedAt = &at
	s.sessions[sessionID] = sess
	return nil
}

func (s *Store) FailSession(_ context.Context, sessionID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return apperr.NotFound("session", sessionID)
	}
	sess.GenerationError = &reason
	s.sessions[sessionID] = sess
	return nil
}

func (s *Store) GetSessionByToken(_ context.Context, token string) (*rtdomain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		if sess.Token == token {
			out := cloneSession(sess)
			return &out, nil
		}
	}
	return nil, apperr.NotFound("session", token)
}

func (s *Store) ListResponses(_ context.Context, sessionID string) ([]rtdomain.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rtdomain.Response, len(s.responses[sessionID]))
	copy(out, s.responses[sessionID])
	return out, nil
}
