package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

const (
	bufferSize    = 10_000
	flushInterval = 500 * time.Millisecond
	flushBatch    = 1000
	drainTimeout  = 2 * time.Second
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS tool_events (
	event_id    String,
	event_type  LowCardinality(String),
	project_id  String,
	slug        String,
	session_id  String,
	subject_id  String,
	reason      String,
	duration_ms UInt32,
	timestamp   DateTime64(3, 'UTC')
) ENGINE = MergeTree
ORDER BY (project_id, timestamp)`

// inserter persists one batch of events.
type inserter interface {
	Insert(ctx context.Context, events []*Event) error
	Close() error
}

// ClickHouseWriter writes events to ClickHouse asynchronously.
// Write() is non-blocking; events are buffered and batch-inserted in a background goroutine.
type ClickHouseWriter struct {
	sink    inserter
	buffer  chan *Event
	done    chan struct{}
	flushed chan struct{} // closed by flushLoop when it returns
	logger  *zap.Logger

	flushInterval time.Duration
	drainTimeout  time.Duration
}

// NewClickHouseWriter connects, ensures the events table and starts the flush loop.
func NewClickHouseWriter(ctx context.Context, dsn string, logger *zap.Logger) (*ClickHouseWriter, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := conn.Exec(ctx, createTableSQL); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return newWriter(clickhouseSink{conn: conn}, logger, flushInterval, drainTimeout), nil
}

func newWriter(sink inserter, logger *zap.Logger, interval, drain time.Duration) *ClickHouseWriter {
	w := &ClickHouseWriter{
		sink:          sink,
		buffer:        make(chan *Event, bufferSize),
		done:          make(chan struct{}),
		flushed:       make(chan struct{}),
		logger:        logger,
		flushInterval: interval,
		drainTimeout:  drain,
	}
	go w.flushLoop()
	return w
}

// Write queues an event for async insertion.
// Non-blocking: drops the event if the buffer is full.
func (w *ClickHouseWriter) Write(event *Event) {
	select {
	case w.buffer <- event:
	default:
		w.logger.Warn("clickhouse buffer full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("project_id", event.ProjectID),
		)
	}
}

// Close flushes what is buffered, giving up after drainTimeout, and closes
// the connection. Safe to call once.
func (w *ClickHouseWriter) Close() {
	close(w.done)
	<-w.flushed
	_ = w.sink.Close()
}

func (w *ClickHouseWriter) flushLoop() {
	defer close(w.flushed)

	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	batch := make([]*Event, 0, flushBatch)

	for {
		select {
		case event := <-w.buffer:
			batch = append(batch, event)
			if len(batch) >= flushBatch {
				w.flush(context.Background(), batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(context.Background(), batch)
				batch = batch[:0]
			}
		case <-w.done:
			w.drain(batch)
			return
		}
	}
}

// drain empties the buffer in flushBatch-sized inserts, all sharing one
// drainTimeout deadline. Whatever is left when it passes is dropped.
func (w *ClickHouseWriter) drain(batch []*Event) {
	ctx, cancel := context.WithTimeout(context.Background(), w.drainTimeout)
	defer cancel()

	for {
		select {
		case event := <-w.buffer:
			batch = append(batch, event)
			if len(batch) < flushBatch {
				continue
			}
		default:
		}
		if len(batch) == 0 {
			return
		}
		if ctx.Err() != nil {
			w.logger.Warn("clickhouse drain timed out, dropping events",
				zap.Int("dropped", len(batch)+len(w.buffer)))
			return
		}
		full := len(batch) >= flushBatch
		w.flush(ctx, batch)
		batch = batch[:0]
		if !full && len(w.buffer) == 0 {
			return
		}
	}
}

func (w *ClickHouseWriter) flush(parent context.Context, events []*Event) {
	ctx, cancel := context.WithTimeout(parent, 5*time.Second)
	defer cancel()

	if err := w.sink.Insert(ctx, events); err != nil {
		w.logger.Error("clickhouse batch send failed",
			zap.Int("batch_size", len(events)),
			zap.Error(err),
		)
	}
}

type clickhouseSink struct {
	conn driver.Conn
}

func (s clickhouseSink) Close() error { return s.conn.Close() }

func (s clickhouseSink) Insert(ctx context.Context, events []*Event) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO tool_events (
			event_id, event_type, project_id, slug, session_id,
			subject_id, reason, duration_ms, timestamp
		)
	`)
	if err != nil {
		return err
	}

	for _, e := range events {
		if err := batch.Append(
			e.EventID,
			string(e.Type),
			e.ProjectID,
			e.Slug,
			e.SessionID,
			e.SubjectID,
			e.Reason,
			e.DurationMs,
			e.Timestamp,
		); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append event %s: %w", e.EventID, err)
		}
	}
	return batch.Send()
}
