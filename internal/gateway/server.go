// Package gateway implements the HTTP surface of the PDF upload service:
// the upload endpoint, health and config-status reporting, and the
// middleware stack around them.
package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/ksree/pdf-upload-service/internal/config"
	"github.com/ksree/pdf-upload-service/internal/metrics"
	"github.com/ksree/pdf-upload-service/internal/middleware"
	"github.com/ksree/pdf-upload-service/internal/storage"
)

// Server routes upload, health and config-status requests.
type Server struct {
	config  *config.Config
	store   storage.ObjectStore
	router  *mux.Router
	handler http.Handler
	metrics *metrics.Metrics
}

// NewServer wires routes and middleware around the given store. A nil
// store is accepted: uploads then fail with a client-initialization
// error while the health and config endpoints keep working.
func NewServer(cfg *config.Config, store storage.ObjectStore) *Server {
	s := &Server{
		config:  cfg,
		store:   store,
		router:  mux.NewRouter(),
		metrics: metrics.NewMetrics(""),
	}

	s.setupRoutes()

	s.router.Use(s.metrics.Middleware())
	s.router.Use(middleware.RequestLogger())
	s.router.Use(middleware.SentryRecoveryMiddleware())
	if cfg.Sentry.Enabled() {
		s.router.Use(middleware.SentryMiddleware(false))
		logrus.Info("Sentry middleware enabled")
	}

	// CORS wraps the router so preflights are answered without a
	// matching route.
	s.handler = middleware.CORS(cfg.Server.AllowedOrigins(), cfg.Server.AllowAllOrigins())(s.router)

	return s
}

// ServeHTTP applies security headers, then hands off to the middleware
// chain and router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setSecurityHeaders(w)
	s.handler.ServeHTTP(w, r)
}

func setSecurityHeaders(w http.ResponseWriter) {
	// Prevent clickjacking attacks
	w.Header().Set("X-Frame-Options", "DENY")

	// Prevent MIME type sniffing
	w.Header().Set("X-Content-Type-Options", "nosniff")
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/health", s.handleHealth).Methods("GET", "HEAD")
	s.router.HandleFunc("/api/config", s.handleConfigStatus).Methods("GET")
	s.router.HandleFunc("/api/upload", s.handleUpload).Methods("POST")
	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	s.router.Handle("/stats", s.metrics.StatsHandler()).Methods("GET")

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logrus.WithFields(logrus.Fields{
			"path":   r.URL.Path,
			"method": r.Method,
		}).Debug("No route matched")
		writeError(w, http.StatusNotFound, "Not found")
	})
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy","message":"PDF upload backend is running"}`))
}

// ConfigStatus reports which storage settings are present. It is
// recomputed from the injected configuration on every request.
type ConfigStatus struct {
	Configured bool          `json:"configured"`
	Details    ConfigDetails `json:"details"`
}

// ConfigDetails carries presence flags for the credentials and bucket,
// and the configured region as-is.
type ConfigDetails struct {
	AWSAccessKey bool   `json:"aws_access_key"`
	AWSSecretKey bool   `json:"aws_secret_key"`
	AWSBucket    bool   `json:"aws_bucket"`
	AWSRegion    string `json:"aws_region"`
}

func (s *Server) handleConfigStatus(w http.ResponseWriter, r *http.Request) {
	details := ConfigDetails{
		AWSAccessKey: s.config.AWS.AccessKeyID != "",
		AWSSecretKey: s.config.AWS.SecretAccessKey != "",
		AWSBucket:    s.config.AWS.Bucket != "",
		AWSRegion:    s.config.AWS.Region,
	}

	writeJSON(w, http.StatusOK, ConfigStatus{
		Configured: details.AWSAccessKey && details.AWSSecretKey &&
			details.AWSBucket && details.AWSRegion != "",
		Details:    details,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
