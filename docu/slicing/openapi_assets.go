package slicingdocu

import (
	"embed"
	"io/fs"
)

//go:embed openapi_slicing_service.json
var openAPIAssets embed.FS

// OpenAPIDocumentJSON returns the OpenAPI document for the slicing service
// endpoints, served by the swagger UI mount.
func OpenAPIDocumentJSON() ([]byte, error) {
	return fs.ReadFile(openAPIAssets, "openapi_slicing_service.json")
}
