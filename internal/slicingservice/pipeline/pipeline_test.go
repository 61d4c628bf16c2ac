package pipeline

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/printforge/printforge-go-components/internal/common"
	"github.com/printforge/printforge-go-components/internal/slicingservice/model"
	"github.com/printforge/printforge-go-components/internal/slicingservice/runner"
)

type fixedRates struct{}

func (fixedRates) RateFor(tech model.Technology, _ string) int {
	if tech == model.SLA {
		return 1800
	}
	return 900
}

type pipelineFixture struct {
	pipeline *Pipeline
	inputDir string
	outDir   string
	callsLog string
}

func writeScript(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
}

// newFixture builds a pipeline over stub external tools. The stub slicer
// reports the given model sizes in info mode and writes gcodeBody as the
// artifact otherwise; every invocation is appended to a call log.
func newFixture(t *testing.T, sizeX, sizeY, sizeZ float64, gcodeBody string) *pipelineFixture {
	t.Helper()
	root := t.TempDir()
	inputDir := filepath.Join(root, "input")
	outDir := filepath.Join(root, "output")
	configsDir := filepath.Join(root, "configs")
	convertersDir := filepath.Join(root, "converters")
	for _, dir := range []string{inputDir, outDir, configsDir, convertersDir} {
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}

	for _, layer := range []string{"0.1", "0.2", "0.3"} {
		require.NoError(t, os.WriteFile(filepath.Join(configsDir, "FDM_"+layer+"mm.ini"), []byte("; fdm profile\n"), 0o644))
	}
	for _, layer := range []string{"0.025", "0.05"} {
		require.NoError(t, os.WriteFile(filepath.Join(configsDir, "SLA_"+layer+"mm.ini"), []byte("; sla profile\n"), 0o644))
	}

	callsLog := filepath.Join(root, "calls.log")
	artifactBody := filepath.Join(root, "artifact-body")
	require.NoError(t, os.WriteFile(artifactBody, []byte(gcodeBody), 0o644))
	slicerPath := filepath.Join(root, "slicer")
	writeScript(t, slicerPath, fmt.Sprintf(`echo "$@" >> %q
if [ "$1" = "--info" ]; then
  echo "size_x = %f"
  echo "size_y = %f"
  echo "size_z = %f"
  exit 0
fi
out=""
prev=""
for a in "$@"; do
  if [ "$prev" = "--output" ]; then out="$a"; fi
  prev="$a"
done
cp %q "$out"
`, callsLog, sizeX, sizeY, sizeZ, artifactBody))

	// Converters copy their input; orientation succeeds by default.
	for _, script := range []string{"img2stl.py", "vector2stl.py", "mesh2stl.py", "cad2stl.py", "orient.py"} {
		writeScript(t, filepath.Join(convertersDir, script), `cp "$1" "$2"`)
	}

	return &pipelineFixture{
		pipeline: &Pipeline{
			Runner:                  runner.New(false),
			Rates:                   fixedRates{},
			Classifier:              NewHintClassifier(),
			InputDir:                inputDir,
			OutputDir:               outDir,
			ConfigsDir:              configsDir,
			ConvertersDir:           convertersDir,
			SlicerBinary:            slicerPath,
			Python:                  "sh",
			MaxZipEntries:           1000,
			MaxZipUncompressedBytes: 512 << 20,
		},
		inputDir: inputDir,
		outDir:   outDir,
		callsLog: callsLog,
	}
}

func (f *pipelineFixture) upload(t *testing.T, name, body string) Request {
	t.Helper()
	uploadPath := filepath.Join(f.inputDir, "multipart-tmp")
	require.NoError(t, os.WriteFile(uploadPath, []byte(body), 0o644))
	return Request{
		UploadPath:   uploadPath,
		OriginalName: name,
	}
}

func (f *pipelineFixture) requireInputClean(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.inputDir)
	require.NoError(t, err)
	require.Empty(t, entries, "every temporary path must be removed before the response is written")
}

func TestProcessFDMHappyPath(t *testing.T) {
	t.Parallel()

	gcode := "; estimated printing time = 1h 30m\n; filament used [mm] = 12450\nG1 X0\n"
	f := newFixture(t, 100, 100, 50, gcode)

	req := f.upload(t, "part.stl", "solid part")
	req.Technology = model.FDM
	req.Material = "PETG"
	req.LayerHeight = 0.2
	req.Infill = 20

	resp, err := f.pipeline.Process(context.Background(), req)
	require.NoError(t, err)

	require.True(t, resp.Success)
	require.Equal(t, "FDM", resp.Technology)
	require.Equal(t, "PETG", resp.Material)
	require.Equal(t, "20%", resp.Infill)
	require.Equal(t, 900, resp.HourlyRate)
	require.Equal(t, 5400, resp.PrintTimeSeconds)
	require.Equal(t, "1h 30m ", resp.PrintTimeReadable)
	require.InDelta(t, 12.45, resp.MaterialUsedM, 1e-9)
	require.InDelta(t, 50.0, resp.ObjectHeightMM, 1e-9)
	require.Equal(t, 1350, resp.EstimatedPriceHUF)
	require.True(t, strings.HasPrefix(resp.DownloadURL, "/download/output-"))
	require.True(t, strings.HasSuffix(resp.DownloadURL, ".gcode"))

	// The artifact survives; everything else is cleaned up.
	artifact := filepath.Join(f.outDir, strings.TrimPrefix(resp.DownloadURL, "/download/"))
	_, err = os.Stat(artifact)
	require.NoError(t, err)
	f.requireInputClean(t)
}

func TestProcessSLAEstimatePath(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 40, 40, 8.5, "resin layers")

	req := f.upload(t, "miniature.stl", "solid mini")
	req.Technology = model.SLA
	req.Material = "Standard"
	req.LayerHeight = 0.05

	resp, err := f.pipeline.Process(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, 1990, resp.PrintTimeSeconds)
	require.Equal(t, "0h 33m (Est.)", resp.PrintTimeReadable)
	require.Equal(t, 1800, resp.HourlyRate)
	require.Equal(t, 1000, resp.EstimatedPriceHUF)
	require.Empty(t, resp.Infill, "infill is an FDM-only field")
	require.True(t, strings.HasSuffix(resp.DownloadURL, ".sl1"))
	f.requireInputClean(t)
}

func TestProcessRejectsOversizedModelBeforeSlicing(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 130, 100, 100, "never sliced")

	req := f.upload(t, "big.stl", "solid big")
	req.Technology = model.SLA
	req.Material = "Standard"
	req.LayerHeight = 0.05

	_, err := f.pipeline.Process(context.Background(), req)
	se := common.AsServiceError(err)
	require.Equal(t, common.CodeModelExceedsBuildVolume, se.Code)
	require.Equal(t, 400, se.Status)
	require.Contains(t, se.Message, "130")
	require.Contains(t, se.Message, "120")

	// Only the info invocation reached the slicer.
	calls, readErr := os.ReadFile(f.callsLog)
	require.NoError(t, readErr)
	require.Equal(t, 1, strings.Count(string(calls), "\n"))
	require.Contains(t, string(calls), "--info")

	f.requireInputClean(t)
	entries, err := os.ReadDir(f.outDir)
	require.NoError(t, err)
	require.Empty(t, entries, "no artifact may be produced for a rejected model")
}

func TestProcessClassifiesGeometryFailures(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 100, 100, 50, "unused")
	writeScript(t, filepath.Join(f.pipeline.ConvertersDir, "vector2stl.py"),
		`echo "CRITICAL ERROR: No closed 2D geometry found. Open paths/lines are not auto-fixed." >&2; exit 1`)

	req := f.upload(t, "drawing.dxf", "not really a dxf")
	req.Technology = model.FDM
	req.Material = "PLA"
	req.LayerHeight = 0.2

	_, err := f.pipeline.Process(context.Background(), req)
	se := common.AsServiceError(err)
	require.Equal(t, common.CodeInvalidSourceGeometry, se.Code)
	require.Equal(t, 400, se.Status)
	f.requireInputClean(t)
}

func TestProcessTreatsUnknownConverterFailureAsInternal(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 100, 100, 50, "unused")
	writeScript(t, filepath.Join(f.pipeline.ConvertersDir, "cad2stl.py"),
		`echo "Segmentation fault" >&2; exit 139`)

	req := f.upload(t, "part.step", "step data")
	req.Technology = model.FDM
	req.Material = "PLA"
	req.LayerHeight = 0.2

	_, err := f.pipeline.Process(context.Background(), req)
	se := common.AsServiceError(err)
	require.Equal(t, common.CodeInternalProcessingError, se.Code)
	require.Equal(t, 500, se.Status)
	require.Contains(t, se.Details, "Segmentation fault")
	f.requireInputClean(t)
}

func TestProcessSurvivesOrientationFailure(t *testing.T) {
	t.Parallel()

	gcode := "M73 P0 R60\n; filament used [mm] = 1000\n"
	f := newFixture(t, 100, 100, 50, gcode)
	writeScript(t, filepath.Join(f.pipeline.ConvertersDir, "orient.py"), `exit 1`)

	req := f.upload(t, "part.stl", "solid part")
	req.Technology = model.FDM
	req.Material = "PLA"
	req.LayerHeight = 0.2

	resp, err := f.pipeline.Process(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 3600, resp.PrintTimeSeconds)
	f.requireInputClean(t)
}

func TestProcessExtractsArchiveAndSlicesFirstSupportedEntry(t *testing.T) {
	t.Parallel()

	gcode := "; estimated printing time = 30m\n"
	f := newFixture(t, 10, 10, 10, gcode)

	archivePath := filepath.Join(f.inputDir, "multipart-tmp")
	file, err := os.Create(archivePath)
	require.NoError(t, err)
	zw := zip.NewWriter(file)
	readme, err := zw.Create("readme.txt")
	require.NoError(t, err)
	_, err = readme.Write([]byte("instructions"))
	require.NoError(t, err)
	part, err := zw.Create("part.stl")
	require.NoError(t, err)
	_, err = part.Write([]byte("solid part"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, file.Close())

	req := Request{
		UploadPath:   archivePath,
		OriginalName: "bundle.zip",
		Technology:   model.FDM,
		Material:     "PLA",
		LayerHeight:  0.2,
	}

	resp, err := f.pipeline.Process(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1800, resp.PrintTimeSeconds)
	f.requireInputClean(t)
}

func TestProcessRejectsUnsupportedExtension(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10, 10, 10, "unused")
	req := f.upload(t, "malware.exe", "MZ")
	req.Technology = model.FDM
	req.Material = "PLA"
	req.LayerHeight = 0.2

	_, err := f.pipeline.Process(context.Background(), req)
	se := common.AsServiceError(err)
	require.Equal(t, 400, se.Status)
	f.requireInputClean(t)
}

func TestProcessReportsMissingProfileAsInternal(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10, 10, 10, "unused")
	require.NoError(t, os.Remove(filepath.Join(f.pipeline.ConfigsDir, "FDM_0.3mm.ini")))

	req := f.upload(t, "part.stl", "solid part")
	req.Technology = model.FDM
	req.Material = "PLA"
	req.LayerHeight = 0.3

	_, err := f.pipeline.Process(context.Background(), req)
	se := common.AsServiceError(err)
	require.Equal(t, common.CodeInternalProcessingError, se.Code)
	f.requireInputClean(t)
}
