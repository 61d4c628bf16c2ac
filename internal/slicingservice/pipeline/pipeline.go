package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/printforge/printforge-go-components/internal/common"
	"github.com/printforge/printforge-go-components/internal/slicingservice/logger"
	"github.com/printforge/printforge-go-components/internal/slicingservice/model"
	"github.com/printforge/printforge-go-components/internal/slicingservice/runner"
	"github.com/printforge/printforge-go-components/internal/slicingservice/storage"
)

// RateResolver resolves the hourly rate the estimator applies.
type RateResolver interface {
	RateFor(tech model.Technology, material string) int
}

// Pipeline executes the slicing state machine for one request at a time per
// call. It owns no shared mutable state; everything request-scoped lives on
// the UploadContext.
type Pipeline struct {
	Runner     *runner.Runner
	Rates      RateResolver
	Classifier ErrorClassifier
	// Mirror receives finished artifacts when configured; uploads are
	// best-effort and never fail the request.
	Mirror storage.ArtifactStore

	InputDir      string
	OutputDir     string
	ConfigsDir    string
	ConvertersDir string
	SlicerBinary  string
	Python        string

	MaxZipEntries           int
	MaxZipUncompressedBytes int64
}

// Request carries the validated form fields and the saved upload of one
// slicing call.
type Request struct {
	Technology   model.Technology
	Material     string
	LayerHeight  float64
	Infill       int
	DepthMM      float64
	UploadPath   string
	OriginalName string
}

// Process runs the full state machine and returns the response envelope.
// Every temporary path is removed before Process returns, on success and on
// every failure path; only the finished artifact survives.
func (p *Pipeline) Process(ctx context.Context, req Request) (*model.SliceResponse, error) {
	uc := &UploadContext{
		OriginalName: req.OriginalName,
		Extension:    lowerExt(req.OriginalName),
		Technology:   req.Technology,
		Material:     req.Material,
		LayerHeight:  req.LayerHeight,
		Infill:       clampInfill(req.Infill),
		DepthMM:      req.DepthMM,
	}
	defer uc.Cleanup()

	// The multipart temp file is owned by the request from here on, even
	// when ingestion rejects it before the stamped rename.
	uc.AddCleanup(req.UploadPath)

	if uc.DepthMM <= 0 {
		uc.DepthMM = 2.0
	}

	if err := p.ingest(uc, req.UploadPath); err != nil {
		return nil, err
	}
	if err := p.convert(ctx, uc); err != nil {
		return nil, err
	}
	p.orient(ctx, uc)
	if err := p.measure(ctx, uc); err != nil {
		return nil, err
	}

	artifactName, err := p.slice(ctx, uc)
	if err != nil {
		return nil, err
	}

	response, err := p.finish(ctx, uc, artifactName)
	if err != nil {
		return nil, err
	}
	return response, nil
}

func clampInfill(infill int) int {
	if infill < 0 {
		return 0
	}
	if infill > 100 {
		return 100
	}
	return infill
}

// ingest renames the multipart temp file so the original extension is
// preserved, then resolves archives down to their first supported entry.
func (p *Pipeline) ingest(uc *UploadContext, uploadPath string) error {
	class := classify(uc.Extension)
	if class == classUnsupported {
		return common.NewErrBadRequest("UNSUPPORTED_FILE_TYPE",
			fmt.Sprintf("Unsupported file type %q", uc.Extension))
	}

	stamped := filepath.Join(p.InputDir, fmt.Sprintf("upload-%d-%s%s", time.Now().UnixMilli(), shortID(), uc.Extension))
	if err := os.Rename(uploadPath, stamped); err != nil {
		return common.NewInternalServerErrorf("move upload into input directory: %v", err)
	}
	uc.AddCleanup(stamped)
	uc.WorkingPath = stamped

	if class != classArchive {
		return nil
	}

	extractionDir := stamped + "-extracted"
	uc.AddCleanup(extractionDir)
	selected, err := extractArchive(stamped, extractionDir, archiveLimits{
		maxEntries:           p.MaxZipEntries,
		maxUncompressedBytes: p.MaxZipUncompressedBytes,
	})
	if err != nil {
		return err
	}
	uc.WorkingPath = selected
	uc.Extension = lowerExt(selected)
	return nil
}

// convert dispatches the working file to the converter of its format. STL
// passes through untouched; no converter repairs geometry, so converter
// failures with a known bad-input signature surface as client errors.
func (p *Pipeline) convert(ctx context.Context, uc *UploadContext) error {
	var script string
	var extraArgs []string
	switch classify(uc.Extension) {
	case classMesh3D:
		return nil
	case classImage:
		script = "img2stl.py"
		extraArgs = []string{formatMillimeters(uc.DepthMM)}
	case classVector:
		script = "vector2stl.py"
		extraArgs = []string{formatMillimeters(uc.DepthMM)}
	case classMeshForeign:
		script = "mesh2stl.py"
	case classCAD:
		script = "cad2stl.py"
	default:
		return common.NewErrBadRequest("UNSUPPORTED_FILE_TYPE",
			fmt.Sprintf("Unsupported file type %q", uc.Extension))
	}

	converted := uc.WorkingPath + ".stl"
	uc.AddCleanup(converted)

	args := append([]string{filepath.Join(p.ConvertersDir, script), uc.WorkingPath, converted}, extraArgs...)
	if _, err := p.Runner.Run(ctx, p.Python, args...); err != nil {
		return p.classifyConverterFailure(err)
	}
	if _, err := os.Stat(converted); err != nil {
		return common.NewInternalServerErrorf("converter %s produced no output: %v", script, err)
	}
	uc.WorkingPath = converted
	return nil
}

func (p *Pipeline) classifyConverterFailure(err error) error {
	var cmdErr *runner.CommandError
	if errors.As(err, &cmdErr) && !cmdErr.TimedOut &&
		p.Classifier.IsSourceGeometryError(cmdErr.Command, cmdErr.Output) {
		return &common.ServiceError{
			Code:    common.CodeInvalidSourceGeometry,
			Status:  http.StatusBadRequest,
			Message: "The uploaded file contains invalid or unsupported geometry. Geometry is never auto-repaired.",
			Details: cmdErr.Output,
		}
	}
	se := common.NewInternalServerErrorf("conversion failed: %v", err)
	if cmdErr != nil {
		se.Details = cmdErr.Output
	}
	return se
}

// orient is best-effort: a failed or silent orientation optimizer never
// fails the request.
func (p *Pipeline) orient(ctx context.Context, uc *UploadContext) {
	oriented := strings.TrimSuffix(uc.WorkingPath, ".stl") + "_oriented.stl"
	script := filepath.Join(p.ConvertersDir, "orient.py")
	if _, err := p.Runner.Run(ctx, p.Python, script, uc.WorkingPath, oriented, string(uc.Technology)); err != nil {
		logger.LogWarning("orientation optimizer failed, continuing with original orientation: " + err.Error())
		return
	}
	if _, err := os.Stat(oriented); err != nil {
		logger.LogWarning("orientation optimizer produced no output, continuing with original orientation")
		return
	}
	uc.AddCleanup(oriented)
	uc.WorkingPath = oriented
}

// measure reads the model dimensions through the slicer's info mode and
// enforces the build volume of the technology.
func (p *Pipeline) measure(ctx context.Context, uc *UploadContext) error {
	result, err := p.Runner.Run(ctx, p.SlicerBinary, "--info", uc.WorkingPath)
	if err != nil {
		var cmdErr *runner.CommandError
		se := common.NewInternalServerErrorf("slicer info mode failed: %v", err)
		if errors.As(err, &cmdErr) {
			se.Details = cmdErr.Output
		}
		return se
	}

	x, y, z := parseModelSizes(result.Stdout + "\n" + result.Stderr)
	uc.ObjectHeightMM = z

	volume := model.BuildVolumeFor(uc.Technology)
	if volume.Exceeds(x, y, z) {
		return common.NewErrBadRequest(common.CodeModelExceedsBuildVolume,
			fmt.Sprintf("The model measures (%.1f, %.1f, %.1f) mm and exceeds the %s build volume (%.0f, %.0f, %.0f) mm",
				x, y, z, uc.Technology, volume.X, volume.Y, volume.Z))
	}
	return nil
}

// slice locates the profile for (technology, layer height) and produces the
// final artifact in the output directory.
func (p *Pipeline) slice(ctx context.Context, uc *UploadContext) (string, error) {
	profile := filepath.Join(p.ConfigsDir,
		fmt.Sprintf("%s_%smm.ini", uc.Technology, formatMillimeters(uc.LayerHeight)))
	if _, err := os.Stat(profile); err != nil {
		return "", common.NewInternalServerErrorf("slicer profile missing: %s", profile)
	}

	extension := ".gcode"
	if uc.Technology == model.SLA {
		extension = ".sl1"
	}
	artifactName := fmt.Sprintf("output-%d-%s%s", time.Now().UnixMilli(), shortID(), extension)
	artifactPath := filepath.Join(p.OutputDir, artifactName)

	args := []string{"--load", profile, "--center", "100,100", uc.WorkingPath}
	if uc.Technology == model.FDM {
		args = append(args,
			"--support-material", "--support-material-auto",
			"--gcode-flavor", "marlin",
			"--export-gcode", "--output", artifactPath,
			"--fill-density", fmt.Sprintf("%d%%", uc.Infill),
		)
	} else {
		args = append(args, "--export-sla", "--output", artifactPath)
	}

	if _, err := p.Runner.Run(ctx, p.SlicerBinary, args...); err != nil {
		var cmdErr *runner.CommandError
		se := common.NewInternalServerErrorf("slicing failed: %v", err)
		if errors.As(err, &cmdErr) {
			se.Details = cmdErr.Output
		}
		return "", se
	}
	if _, err := os.Stat(artifactPath); err != nil {
		return "", common.NewInternalServerErrorf("slicer produced no artifact: %v", err)
	}
	return artifactName, nil
}

// finish parses the artifact into normalized statistics, prices the print
// and builds the response envelope.
func (p *Pipeline) finish(ctx context.Context, uc *UploadContext, artifactName string) (*model.SliceResponse, error) {
	artifactPath := filepath.Join(p.OutputDir, artifactName)

	seconds := 0
	filamentMeters := 0.0
	readable := ""

	if uc.Technology == model.FDM {
		stats, err := parseGCodeFile(artifactPath)
		if err != nil {
			return nil, common.NewInternalServerErrorf("read sliced artifact: %v", err)
		}
		seconds = stats.printTimeSeconds
		filamentMeters = stats.filamentMeters
		if seconds > 0 {
			readable = readableDuration(seconds)
		}
	} else if uc.ObjectHeightMM > 0 {
		// The resin artifact carries no usable time metadata; estimate
		// from the layer count.
		seconds = estimateSLASeconds(uc.ObjectHeightMM, uc.LayerHeight)
		readable = readableDuration(seconds) + "(Est.)"
	}

	rate := p.Rates.RateFor(uc.Technology, uc.Material)
	response := &model.SliceResponse{
		Success:           true,
		Technology:        string(uc.Technology),
		Material:          uc.Material,
		HourlyRate:        rate,
		PrintTimeSeconds:  seconds,
		PrintTimeReadable: readable,
		MaterialUsedM:     filamentMeters,
		ObjectHeightMM:    uc.ObjectHeightMM,
		EstimatedPriceHUF: estimatePriceHUF(seconds, rate),
		DownloadURL:       "/download/" + artifactName,
	}
	if uc.Technology == model.FDM {
		response.Infill = fmt.Sprintf("%d%%", uc.Infill)
	}

	p.mirror(ctx, artifactPath, artifactName)
	return response, nil
}

func (p *Pipeline) mirror(ctx context.Context, artifactPath, artifactName string) {
	if p.Mirror == nil {
		return
	}
	file, err := os.Open(artifactPath)
	if err != nil {
		logger.LogError("open artifact for mirroring", err)
		return
	}
	defer func() { _ = file.Close() }()
	info, err := file.Stat()
	if err != nil {
		logger.LogError("stat artifact for mirroring", err)
		return
	}
	if err := p.Mirror.SaveArtifact(ctx, artifactName, file, info.Size()); err != nil {
		logger.LogError("mirror artifact", err)
	}
}

// formatMillimeters renders a millimeter value without a trailing zero tail
// so 0.2 stays "0.2" and 0.025 stays "0.025".
func formatMillimeters(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func shortID() string {
	return uuid.NewString()[:8]
}
