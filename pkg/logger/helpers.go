package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogFetch records one navigator fetch.
func LogFetch(l Logger, url string, attempt int, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"url":         url,
		"attempt":     attempt,
		"duration_ms": duration.Milliseconds(),
	}
	if err != nil {
		l.WithError(err).WarnWithFields("Fetch failed", fields)
		return
	}
	l.DebugWithFields("Fetch completed", fields)
}

// LogMediaItem records the outcome of processing one post.
func LogMediaItem(l Logger, postID int, ext string, skipped bool, err error) {
	entry := l.WithFields(map[string]interface{}{
		"post_id":   postID,
		"extension": ext,
	})
	switch {
	case err != nil:
		entry.WithError(err).Error("Media processing failed")
	case skipped:
		entry.Debug("Media already cached")
	default:
		entry.Info("Media cached")
	}
}

// LogGallery records a gallery level event.
func LogGallery(l Logger, galleryID int, name, msg string) {
	l.WithFields(map[string]interface{}{
		"gallery_id": galleryID,
		"gallery":    name,
	}).Info(msg)
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, settings map[string]interface{}) {
	entry := l.WithField("component", component)
	if len(settings) > 0 {
		entry = entry.WithFields(settings)
	}
	entry.Debug("Component started")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (n nopLogger) Debug(string)                                   {}
func (n nopLogger) Info(string)                                    {}
func (n nopLogger) Warn(string)                                    {}
func (n nopLogger) Error(string)                                   {}
func (n nopLogger) Fatal(string)                                   {}
func (n nopLogger) WithField(string, interface{}) Logger           { return n }
func (n nopLogger) WithFields(map[string]interface{}) Logger       { return n }
func (n nopLogger) WithError(error) Logger                         { return n }
func (n nopLogger) WithContext(context.Context) Logger             { return n }
func (n nopLogger) DebugWithFields(string, map[string]interface{}) {}
func (n nopLogger) InfoWithFields(string, map[string]interface{})  {}
func (n nopLogger) WarnWithFields(string, map[string]interface{})  {}
func (n nopLogger) ErrorWithFields(string, map[string]interface{}) {}
func (n nopLogger) FatalWithFields(string, map[string]interface{}) {}
func (n nopLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}
