package analytics

import "go.uber.org/zap"

// LogWriter is a fallback EventWriter for local development.
// It logs events as structured JSON via zap.
type LogWriter struct {
	logger *zap.Logger
}

func NewLogWriter(logger *zap.Logger) *LogWriter {
	return &LogWriter{logger: logger}
}

func (w *LogWriter) Write(event *Event) {
	w.logger.Info("tool_event",
		zap.String("event_id", event.EventID),
		zap.String("event_type", string(event.Type)),
		zap.String("project_id", event.ProjectID),
		zap.String("slug", event.Slug),
		zap.String("session_id", event.SessionID),
		zap.String("subject_id", event.SubjectID),
		zap.String("reason", event.Reason),
		zap.Uint32("duration_ms", event.DurationMs),
		zap.Time("timestamp", event.Timestamp),
	)
}

func (w *LogWriter) Close() {}
