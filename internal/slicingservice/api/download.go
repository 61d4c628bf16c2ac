package api

import (
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/printforge/printforge-go-components/internal/common"
)

// Download serves a finished print artifact from the output directory as an
// attachment. Artifact names never contain path separators; anything else
// is rejected before touching the filesystem.
func (s *SlicingServiceAPIService) Download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	path, ok := s.artifacts.Path(name)
	if !ok {
		common.WriteServiceError(w, common.NewErrNotFound("Unknown artifact"))
		return
	}

	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeFile(w, r, path)
}
