//nolint:revive
package common

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// AddHealthEndpoint registers a health check endpoint on the provided router.
//
// The health endpoint provides a simple way to verify that the service is
// running and responsive. It is commonly used by load balancers, monitoring
// systems and container orchestrators to determine service health.
//
// Endpoint details:
//   - Method: GET
//   - Path: {contextPath}/health
//   - Response: HTTP 200 with JSON body {"status":"OK","uptime":<seconds>}
func AddHealthEndpoint(r *chi.Mux, config *Config) {
	started := time.Now()
	r.Get(config.Server.ContextPath+"/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		uptime := time.Since(started).Seconds()
		if _, err := fmt.Fprintf(w, "{\"status\":\"OK\",\"uptime\":%.0f}", uptime); err != nil {
			http.Error(w, "Failed to write response", http.StatusInternalServerError)
		}
	})
}

// AddCors configures Cross-Origin Resource Sharing (CORS) middleware for the
// router based on the provided configuration.
func AddCors(r *chi.Mux, config *Config) {
	c := cors.New(cors.Options{
		AllowedOrigins:   config.CORS.AllowedOrigins,
		AllowedMethods:   config.CORS.AllowedMethods,
		AllowedHeaders:   config.CORS.AllowedHeaders,
		AllowCredentials: config.CORS.AllowCredentials,
	})
	r.Use(c.Handler)
}

// NormalizeBasePath returns "/" for an empty or root context path and
// otherwise a path that starts with a slash and carries no trailing slash,
// as chi's Mount expects.
func NormalizeBasePath(contextPath string) string {
	if contextPath == "" || contextPath == "/" {
		return "/"
	}
	p := contextPath
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimSuffix(p, "/")
}
