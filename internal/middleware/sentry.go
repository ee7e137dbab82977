package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/sirupsen/logrus"
)

// hubFor returns the request-scoped hub when the Sentry HTTP handler put
// one on the context, falling back to the process-wide hub otherwise.
func hubFor(ctx context.Context) *sentry.Hub {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}

// SentryMiddleware tags every request on the Sentry scope and reports
// 5xx responses as events. Client rejections (4xx) are expected traffic
// and are not reported.
func SentryMiddleware(repanic bool) func(http.Handler) http.Handler {
	sentryHandler := sentryhttp.New(sentryhttp.Options{
		Repanic:         repanic,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	})

	return func(next http.Handler) http.Handler {
		return sentryHandler.Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
				scope := hub.Scope()
				scope.SetRequest(r)
				scope.SetTag("http.method", r.Method)
				scope.SetTag("http.path", r.URL.Path)
				scope.SetTag("http.remote_addr", r.RemoteAddr)
			}

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			if wrapped.statusCode < http.StatusInternalServerError {
				return
			}
			hub := hubFor(r.Context())
			hub.WithScope(func(scope *sentry.Scope) {
				scope.SetLevel(sentry.LevelError)
				hub.CaptureMessage(fmt.Sprintf("HTTP %d: %s %s", wrapped.statusCode, r.Method, r.URL.Path))
			})
		}))
	}
}

// SentryRecoveryMiddleware turns a handler panic into the JSON 500 body
// the API promises, after logging and reporting it. It must sit inside
// any middleware that writes headers, since the response is untouched up
// to the panic point.
func SentryRecoveryMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}

				logrus.WithFields(logrus.Fields{
					"error":  rec,
					"method": r.Method,
					"path":   r.URL.Path,
				}).Error("Panic recovered")

				hub := hubFor(r.Context())
				hub.RecoverWithContext(r.Context(), rec)
				hub.Flush(2 * time.Second)

				// The panic message never reaches the client.
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"Server error: internal error"}`))
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter records the status code written by downstream handlers.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.written {
		return
	}
	rw.statusCode = code
	rw.written = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// CaptureError reports a server-side failure with tags and extra context.
// Used by the upload handler for 5xx outcomes, where the interesting
// context (filename, operation) is not on the request scope.
func CaptureError(ctx context.Context, err error, tags map[string]string, extra map[string]interface{}) {
	if err == nil {
		return
	}

	// Clone so the added tags do not leak onto the request scope.
	hub := hubFor(ctx).Clone()
	scope := hub.Scope()
	for k, v := range tags {
		scope.SetTag(k, v)
	}
	for k, v := range extra {
		scope.SetContext(k, map[string]interface{}{"value": v})
	}

	hub.CaptureException(err)
}
