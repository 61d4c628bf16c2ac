package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/printforge/printforge-go-components/internal/common"
)

type createMaterialBody struct {
	Material string `json:"material"`
	Price    int    `json:"price"`
}

type updateMaterialBody struct {
	Price int `json:"price"`
}

// GetPricing returns the full pricing map.
func (s *SlicingServiceAPIService) GetPricing(w http.ResponseWriter, _ *http.Request) {
	rates := s.registry.All()
	out := make(map[string]map[string]int, len(rates))
	for tech, materials := range rates {
		out[string(tech)] = materials
	}
	common.EncodeJSONResponse(w, http.StatusOK, out)
}

// decodeJSONBody decodes a JSON request body bounded by the configured
// limit.
func (s *SlicingServiceAPIService) decodeJSONBody(w http.ResponseWriter, r *http.Request, into any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Limits.JSONBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return common.NewErrBadRequest("INVALID_BODY", "The request body is not valid JSON for this endpoint")
	}
	return nil
}

// CreateMaterial handles POST /pricing/{technology}.
func (s *SlicingServiceAPIService) CreateMaterial(w http.ResponseWriter, r *http.Request) {
	tech, ok := routeTechnology(r)
	if !ok {
		common.WriteServiceError(w, common.NewErrNotFound("Unknown technology"))
		return
	}

	var body createMaterialBody
	if err := s.decodeJSONBody(w, r, &body); err != nil {
		common.WriteServiceError(w, err)
		return
	}

	key, err := s.registry.Create(tech, body.Material, body.Price)
	if err != nil {
		common.WriteServiceError(w, err)
		return
	}
	common.EncodeJSONResponse(w, http.StatusCreated, map[string]any{
		"success":    true,
		"technology": string(tech),
		"material":   key,
		"price":      body.Price,
	})
}

// UpdateMaterial handles PATCH /pricing/{technology}/{material}. The
// material is created when absent; the existing canonical spelling wins
// otherwise.
func (s *SlicingServiceAPIService) UpdateMaterial(w http.ResponseWriter, r *http.Request) {
	tech, ok := routeTechnology(r)
	if !ok {
		common.WriteServiceError(w, common.NewErrNotFound("Unknown technology"))
		return
	}
	material := chi.URLParam(r, "material")

	var body updateMaterialBody
	if err := s.decodeJSONBody(w, r, &body); err != nil {
		common.WriteServiceError(w, err)
		return
	}

	if _, err := s.registry.Update(tech, material, body.Price); err != nil {
		common.WriteServiceError(w, err)
		return
	}
	common.EncodeJSONResponse(w, http.StatusOK, map[string]any{
		"success":    true,
		"technology": string(tech),
		"material":   material,
		"price":      body.Price,
	})
}

// DeleteMaterial handles DELETE /pricing/{technology}/{material}.
func (s *SlicingServiceAPIService) DeleteMaterial(w http.ResponseWriter, r *http.Request) {
	tech, ok := routeTechnology(r)
	if !ok {
		common.WriteServiceError(w, common.NewErrNotFound("Unknown technology"))
		return
	}
	material := chi.URLParam(r, "material")

	if err := s.registry.Delete(tech, material); err != nil {
		common.WriteServiceError(w, err)
		return
	}
	common.EncodeJSONResponse(w, http.StatusOK, map[string]any{
		"success":    true,
		"technology": string(tech),
		"material":   material,
	})
}
