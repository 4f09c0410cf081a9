package simplemedia

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) IngestStarted(ctx context.Context, contentID string, pt ProcessingType) error {
	return nil
}

func (n *NoopEventSink) IngestCompleted(ctx context.Context, record *ContentRecord, elapsed time.Duration) error {
	return nil
}

func (n *NoopEventSink) IngestFailed(ctx context.Context, contentID string, reason string) error {
	return nil
}

func (n *NoopEventSink) ThumbnailFailed(ctx context.Context, contentID string) error {
	return nil
}

func (n *NoopEventSink) ContentDeleted(ctx context.Context, contentID string) error {
	return nil
}

// LoggingEventSink logs events but takes no other action.
// Useful for development and debugging.
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger.With("component", "events")}
}

func (l *LoggingEventSink) IngestStarted(ctx context.Context, contentID string, pt ProcessingType) error {
	l.logger.InfoContext(ctx, "ingest started", "content_id", contentID, "processing_type", pt)
	return nil
}

func (l *LoggingEventSink) IngestCompleted(ctx context.Context, record *ContentRecord, elapsed time.Duration) error {
	l.logger.InfoContext(ctx, "ingest completed",
		"content_id", record.ID,
		"category", record.Category,
		"processing_type", record.ProcessingType,
		"elapsed", elapsed)
	return nil
}

func (l *LoggingEventSink) IngestFailed(ctx context.Context, contentID string, reason string) error {
	l.logger.ErrorContext(ctx, "ingest failed", "content_id", contentID, "reason", reason)
	return nil
}

func (l *LoggingEventSink) ThumbnailFailed(ctx context.Context, contentID string) error {
	l.logger.WarnContext(ctx, "thumbnail failed", "content_id", contentID)
	return nil
}

func (l *LoggingEventSink) ContentDeleted(ctx context.Context, contentID string) error {
	l.logger.InfoContext(ctx, "content deleted", "content_id", contentID)
	return nil
}

// MultiEventSink fans events out to several sinks. Every sink sees every
// event; their errors are joined.
type MultiEventSink []EventSink

func (m MultiEventSink) IngestStarted(ctx context.Context, contentID string, pt ProcessingType) error {
	return m.each(func(s EventSink) error { return s.IngestStarted(ctx, contentID, pt) })
}

func (m MultiEventSink) IngestCompleted(ctx context.Context, record *ContentRecord, elapsed time.Duration) error {
	return m.each(func(s EventSink) error { return s.IngestCompleted(ctx, record, elapsed) })
}

func (m MultiEventSink) IngestFailed(ctx context.Context, contentID string, reason string) error {
	return m.each(func(s EventSink) error { return s.IngestFailed(ctx, contentID, reason) })
}

func (m MultiEventSink) ThumbnailFailed(ctx context.Context, contentID string) error {
	return m.each(func(s EventSink) error { return s.ThumbnailFailed(ctx, contentID) })
}

func (m MultiEventSink) ContentDeleted(ctx context.Context, contentID string) error {
	return m.each(func(s EventSink) error { return s.ContentDeleted(ctx, contentID) })
}

func (m MultiEventSink) each(fn func(EventSink) error) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := fn(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
