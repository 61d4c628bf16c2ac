// Package api implements the HTTP service layer of the slicing service:
// the pricing admin endpoints, the rate limited and queued slicing
// endpoints, artifact download and route registration.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/printforge/printforge-go-components/internal/common"
	"github.com/printforge/printforge-go-components/internal/slicingservice/admission"
	"github.com/printforge/printforge-go-components/internal/slicingservice/logger"
	"github.com/printforge/printforge-go-components/internal/slicingservice/model"
	"github.com/printforge/printforge-go-components/internal/slicingservice/pipeline"
	"github.com/printforge/printforge-go-components/internal/slicingservice/pricing"
	"github.com/printforge/printforge-go-components/internal/slicingservice/storage"
)

// SlicingServiceAPIService bundles the collaborators of the HTTP layer.
type SlicingServiceAPIService struct {
	cfg       *common.Config
	registry  *pricing.Registry
	pipeline  *pipeline.Pipeline
	queue     *admission.SliceQueue
	limiter   *admission.RateLimiter
	errorLog  *logger.ErrorLog
	artifacts *storage.LocalStore
}

// NewSlicingServiceAPIService creates the service layer over its
// collaborators.
func NewSlicingServiceAPIService(
	cfg *common.Config,
	registry *pricing.Registry,
	pipe *pipeline.Pipeline,
	queue *admission.SliceQueue,
	limiter *admission.RateLimiter,
	errorLog *logger.ErrorLog,
	artifacts *storage.LocalStore,
) *SlicingServiceAPIService {
	return &SlicingServiceAPIService{
		cfg:       cfg,
		registry:  registry,
		pipeline:  pipe,
		queue:     queue,
		limiter:   limiter,
		errorLog:  errorLog,
		artifacts: artifacts,
	}
}

// RegisterRoutes mounts every endpoint of the service on the router.
func (s *SlicingServiceAPIService) RegisterRoutes(r chi.Router) {
	r.Get("/pricing", s.GetPricing)
	r.Route("/pricing/{technology}", func(r chi.Router) {
		r.Use(s.adminOnly)
		r.Post("/", s.CreateMaterial)
		r.Patch("/{material}", s.UpdateMaterial)
		r.Delete("/{material}", s.DeleteMaterial)
	})

	r.Route("/slice/{technology}", func(r chi.Router) {
		r.Use(s.limiter.Middleware)
		r.Post("/", s.Slice)
	})

	r.Get("/download/{name}", s.Download)
}

// adminOnly guards the pricing mutation endpoints with the pre-shared
// x-api-key token. A missing server-side key is a deployment fault and maps
// to 503 rather than 401.
func (s *SlicingServiceAPIService) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Server.AdminAPIKey == "" {
			common.EncodeJSONResponse(w, http.StatusServiceUnavailable, common.ErrorEnvelope{
				Success:   false,
				ErrorCode: "ADMIN_API_UNAVAILABLE",
				Message:   "The pricing admin API is not configured on this deployment",
			})
			return
		}
		if r.Header.Get("x-api-key") != s.cfg.Server.AdminAPIKey {
			common.EncodeJSONResponse(w, http.StatusUnauthorized, common.ErrorEnvelope{
				Success:   false,
				ErrorCode: "UNAUTHORIZED",
				Message:   "Missing or invalid API key",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// routeTechnology canonicalizes the technology path segment.
func routeTechnology(r *http.Request) (model.Technology, bool) {
	return model.ParseTechnology(chi.URLParam(r, "technology"))
}
