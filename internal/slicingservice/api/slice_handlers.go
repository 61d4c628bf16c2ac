package api

import (
	"errors"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"

	"github.com/printforge/printforge-go-components/internal/common"
	"github.com/printforge/printforge-go-components/internal/slicingservice/config"
	"github.com/printforge/printforge-go-components/internal/slicingservice/logger"
	"github.com/printforge/printforge-go-components/internal/slicingservice/model"
	"github.com/printforge/printforge-go-components/internal/slicingservice/pipeline"
)

// Slice handles POST /slice/{technology}: it validates the form fields,
// saves the upload, admits the request through the queue and runs the
// pipeline in a worker.
func (s *SlicingServiceAPIService) Slice(w http.ResponseWriter, r *http.Request) {
	tech, ok := routeTechnology(r)
	if !ok {
		common.WriteServiceError(w, common.NewErrNotFound("Unknown technology"))
		return
	}

	req, err := s.buildSliceRequest(w, r, tech)
	if err != nil {
		s.writeSliceError(w, r, err)
		return
	}

	var response *model.SliceResponse
	queueErr := s.queue.Do(func() {
		response, err = s.pipeline.Process(r.Context(), *req)
	})
	if queueErr != nil {
		// The upload never reached a worker; remove it here.
		if removeErr := os.Remove(req.UploadPath); removeErr != nil && !os.IsNotExist(removeErr) {
			logger.LogError("remove unadmitted upload", removeErr)
		}
		s.writeSliceError(w, r, queueErr)
		return
	}
	if err != nil {
		s.writeSliceError(w, r, err)
		return
	}

	common.EncodeJSONResponse(w, http.StatusOK, response)
}

// buildSliceRequest validates the multipart form and saves the upload into
// the input directory.
func (s *SlicingServiceAPIService) buildSliceRequest(w http.ResponseWriter, r *http.Request, tech model.Technology) (*pipeline.Request, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Limits.MaxUploadBytes)
	// Non-file form fields stay in memory up to the form body limit; the
	// upload itself spills to disk.
	if err := r.ParseMultipartForm(s.cfg.Limits.FormBodyBytes); err != nil {
		return nil, common.NewErrBadRequest("INVALID_BODY", "The request is not a valid multipart upload within the size limit")
	}

	layerHeight, err := strconv.ParseFloat(r.FormValue("layerHeight"), 64)
	if err != nil || math.IsNaN(layerHeight) || math.IsInf(layerHeight, 0) || layerHeight <= 0 {
		return nil, common.NewErrBadRequest(common.CodeInvalidLayerHeight, "layerHeight must be a positive number")
	}
	if !model.LayerHeightAllowed(tech, layerHeight) {
		return nil, common.NewErrBadRequest(common.CodeInvalidLayerHeightForTech,
			"layerHeight "+r.FormValue("layerHeight")+" is not available for "+string(tech))
	}

	material := r.FormValue("material")
	if material == "" {
		material = "default"
	}

	infill := 0
	if tech == model.FDM {
		if raw := r.FormValue("infill"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil {
				infill = parsed
			}
		}
	}

	depth := config.DefaultExtrusionDepthMM
	if raw := r.FormValue("depth"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed > 0 {
			depth = parsed
		}
	}

	file, header, err := r.FormFile("choosenFile")
	if err != nil {
		return nil, common.NewErrBadRequest("MISSING_FILE", "The choosenFile upload field is required")
	}
	defer func() { _ = file.Close() }()

	uploadPath, err := s.saveUpload(file)
	if err != nil {
		return nil, common.NewInternalServerErrorf("persist upload: %v", err)
	}

	return &pipeline.Request{
		Technology:   tech,
		Material:     material,
		LayerHeight:  layerHeight,
		Infill:       infill,
		DepthMM:      depth,
		UploadPath:   uploadPath,
		OriginalName: header.Filename,
	}, nil
}

func (s *SlicingServiceAPIService) saveUpload(src io.Reader) (string, error) {
	if err := os.MkdirAll(s.cfg.Paths.InputDir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(s.cfg.Paths.InputDir, "upload-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// writeSliceError converts any pipeline failure into its wire form.
// Internal faults are recorded in the rolling error log with their details;
// client rejections are not.
func (s *SlicingServiceAPIService) writeSliceError(w http.ResponseWriter, r *http.Request, err error) {
	se := common.AsServiceError(err)
	// Client rejections and admission backpressure never hit the rolling
	// log; only internal faults do.
	if se.Code == common.CodeInternalProcessingError {
		s.errorLog.Append(se.Message, se.Details, r.URL.Path)
		logger.LogError("slice request failed", errors.New(se.Message))
	}
	common.WriteServiceError(w, se)
}
