package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS builds the cross-origin middleware for the browser frontend.
// With allowAll set any origin may call the API; otherwise only the
// listed origins are allowed. An empty list with allowAll unset means
// no cross-origin caller is accepted, so the empty-list default of the
// underlying library (allow everything) is overridden.
func CORS(origins []string, allowAll bool) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods: []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Content-Length"},
		MaxAge:         300,
	}

	switch {
	case allowAll:
		opts.AllowedOrigins = []string{"*"}
	case len(origins) > 0:
		opts.AllowedOrigins = origins
	default:
		opts.AllowOriginFunc = func(r *http.Request, origin string) bool { return false }
	}

	return cors.Handler(opts)
}
