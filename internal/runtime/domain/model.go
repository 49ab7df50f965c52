package domain

import "time"

// Session is one end-user run of a deployed Project. A Session with a nil
// AIResponse and a nil CompletedAt is incomplete, which is a valid terminal
// state when generation failed.
type Session struct {
	ID              string            `json:"id"`
	ProjectID       string            `json:"project_id"`
	Token           string            `json:"token"`
	OriginAddress   string            `json:"origin_address"`
	SubjectID       string            `json:"subject_id,omitempty"`
	StartedAt       time.Time         `json:"started_at"`
	CompletedAt     *time.Time        `json:"completed_at"`
	AIResponse      *string           `json:"ai_response"`
	GenerationError *string           `json:"generation_error,omitempty"`
	Unattributed    map[string]string `json:"unattributed,omitempty"`
}

func (s *Session) Completed() bool { return s.CompletedAt != nil && s.AIResponse != nil }

// Response is one Field's recorded value. Immutable once written.
type Response struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	StepID    string    `json:"step_id"`
	FieldID   string    `json:"field_id"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}
