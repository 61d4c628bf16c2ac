package common

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	slicingdocu "github.com/printforge/printforge-go-components/docu/slicing"
)

// AddSwaggerUI mounts the swagger UI under {contextPath}/swagger/ together
// with the embedded OpenAPI document it renders. The document itself is
// maintained by hand in docu/slicing; this service does not generate it.
func AddSwaggerUI(r *chi.Mux, config *Config) {
	base := NormalizeBasePath(config.Server.ContextPath)
	prefix := base
	if prefix == "/" {
		prefix = ""
	}

	doc, err := slicingdocu.OpenAPIDocumentJSON()
	if err != nil {
		log.Printf("⚠️ Swagger UI disabled: embedded OpenAPI document unavailable: %v", err)
		return
	}

	r.Get(prefix+"/swagger/doc.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(doc); err != nil {
			log.Printf("❌ Failed to write OpenAPI document: %v", err)
		}
	})

	r.Get(prefix+"/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(prefix+"/swagger/doc.json"),
	))
}
