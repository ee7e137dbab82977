// Package logging wires logrus entries into Sentry as events and
// breadcrumbs.
package logging

import (
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// promotedTags maps log fields worth filtering on in Sentry to their
// tag names. Everything else stays in the event extras.
var promotedTags = map[string]string{
	"method":   "http.method",
	"path":     "http.path",
	"status":   "http.status_code",
	"bucket":   "s3.bucket",
	"key":      "s3.key",
	"filename": "upload.filename",
}

// breadcrumbFields are the log fields carried on breadcrumbs. Kept short
// so a burst of uploads does not bloat the events they lead up to.
var breadcrumbFields = map[string]struct{}{
	"method": {}, "path": {}, "status": {},
	"bucket": {}, "key": {}, "filename": {}, "size": {},
}

func sentryLevel(level logrus.Level) sentry.Level {
	switch level {
	case logrus.PanicLevel, logrus.FatalLevel:
		return sentry.LevelFatal
	case logrus.ErrorLevel:
		return sentry.LevelError
	case logrus.WarnLevel:
		return sentry.LevelWarning
	case logrus.DebugLevel, logrus.TraceLevel:
		return sentry.LevelDebug
	default:
		return sentry.LevelInfo
	}
}

// SentryHook forwards warning-and-above logrus entries to Sentry as
// events, so store failures reach the error tracker without a separate
// capture call at every log site.
type SentryHook struct {
	levels []logrus.Level
}

// NewSentryHook builds the event hook. A nil levels slice selects
// warnings and above.
func NewSentryHook(levels []logrus.Level) *SentryHook {
	if levels == nil {
		levels = []logrus.Level{
			logrus.PanicLevel,
			logrus.FatalLevel,
			logrus.ErrorLevel,
			logrus.WarnLevel,
		}
	}
	return &SentryHook{levels: levels}
}

func (hook *SentryHook) Levels() []logrus.Level { return hook.levels }

func (hook *SentryHook) Fire(entry *logrus.Entry) error {
	hub := sentry.CurrentHub()
	if hub == nil {
		return nil
	}

	event := sentry.NewEvent()
	event.Timestamp = entry.Time
	event.Message = entry.Message
	event.Level = sentryLevel(entry.Level)
	event.Logger = "logrus"
	event.Tags = map[string]string{}
	event.Extra = map[string]interface{}{}

	for field, value := range entry.Data {
		event.Extra[field] = value
		if tag, ok := promotedTags[field]; ok {
			event.Tags[tag] = fmt.Sprintf("%v", value)
		}
	}

	// A WithError field becomes a proper exception so Sentry groups by
	// error type instead of message text.
	if err, ok := entry.Data[logrus.ErrorKey].(error); ok {
		event.Exception = []sentry.Exception{{
			Type:  fmt.Sprintf("%T", err),
			Value: err.Error(),
		}}
	}

	hub.CaptureEvent(event)
	return nil
}

// BreadcrumbHook records informational entries as breadcrumbs, giving
// upload failures the request trail that led up to them.
type BreadcrumbHook struct {
	levels []logrus.Level
}

// NewBreadcrumbHook builds the breadcrumb hook. A nil levels slice
// selects info and above.
func NewBreadcrumbHook(levels []logrus.Level) *BreadcrumbHook {
	if levels == nil {
		levels = []logrus.Level{
			logrus.InfoLevel,
			logrus.WarnLevel,
			logrus.ErrorLevel,
		}
	}
	return &BreadcrumbHook{levels: levels}
}

func (hook *BreadcrumbHook) Levels() []logrus.Level { return hook.levels }

func (hook *BreadcrumbHook) Fire(entry *logrus.Entry) error {
	hub := sentry.CurrentHub()
	if hub == nil {
		return nil
	}

	crumb := &sentry.Breadcrumb{
		Type:      "log",
		Category:  "logrus",
		Message:   entry.Message,
		Level:     sentryLevel(entry.Level),
		Data:      map[string]interface{}{},
		Timestamp: entry.Time,
	}
	for field, value := range entry.Data {
		if _, ok := breadcrumbFields[field]; ok {
			crumb.Data[field] = value
		}
	}

	// The hub-level call applies the client's MaxBreadcrumbs limit.
	hub.AddBreadcrumb(crumb, nil)
	return nil
}
