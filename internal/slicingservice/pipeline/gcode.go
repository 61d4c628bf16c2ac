package pipeline

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/printforge/printforge-go-components/internal/slicingservice/config"
)

var (
	m73Pattern          = regexp.MustCompile(`(?m)^M73 P0 R(\d+)`)
	estimatedPattern    = regexp.MustCompile(`(?m)^;\s*estimated printing time.*=\s*(.+)$`)
	filamentUsedPattern = regexp.MustCompile(`(?m)^;\s*filament used \[mm\]\s*=\s*([0-9.]+)`)
	durationPartPattern = regexp.MustCompile(`(\d+)\s*([dhms])`)
	sizePatterns        = map[string]*regexp.Regexp{
		"x": regexp.MustCompile(`(?m)size_x\s*=\s*([0-9.eE+-]+)`),
		"y": regexp.MustCompile(`(?m)size_y\s*=\s*([0-9.eE+-]+)`),
		"z": regexp.MustCompile(`(?m)size_z\s*=\s*([0-9.eE+-]+)`),
	}
)

// gcodeStats is what the parser extracts from an FDM artifact.
type gcodeStats struct {
	printTimeSeconds int
	filamentMeters   float64
}

// parseGCodeFile reads the sliced artifact and extracts print time and
// filament usage. A missing value stays zero; the caller decides whether
// that is acceptable.
func parseGCodeFile(path string) (gcodeStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return gcodeStats{}, err
	}
	return parseGCode(string(data)), nil
}

func parseGCode(content string) gcodeStats {
	stats := gcodeStats{}

	// M73 remaining-time hints are the most reliable source: P0 R<minutes>
	// is emitted at the start of the print.
	if m := m73Pattern.FindStringSubmatch(content); m != nil {
		if minutes, err := strconv.Atoi(m[1]); err == nil {
			stats.printTimeSeconds = minutes * 60
		}
	}
	if stats.printTimeSeconds == 0 {
		if m := estimatedPattern.FindStringSubmatch(content); m != nil {
			stats.printTimeSeconds = parseDurationExpr(m[1])
		}
	}

	if m := filamentUsedPattern.FindStringSubmatch(content); m != nil {
		if mm, err := strconv.ParseFloat(m[1], 64); err == nil {
			stats.filamentMeters = mm / 1000.0
		}
	}
	return stats
}

// parseDurationExpr parses the slicer's human duration grammar
// "<int>d? <int>h? <int>m? <int>s?" (whitespace-tolerant, any combination).
// A bare integer is interpreted as seconds; this asymmetry is a frozen
// contract of the wire format.
func parseDurationExpr(expr string) int {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0
	}

	if bare, err := strconv.Atoi(expr); err == nil {
		return bare
	}

	total := 0
	for _, part := range durationPartPattern.FindAllStringSubmatch(expr, -1) {
		value, err := strconv.Atoi(part[1])
		if err != nil {
			continue
		}
		switch part[2] {
		case "d":
			total += value * 86400
		case "h":
			total += value * 3600
		case "m":
			total += value * 60
		case "s":
			total += value
		}
	}
	return total
}

// readableDuration formats seconds as "{h}h {m}m" with floor division,
// matching the legacy response format (including its trailing space).
func readableDuration(seconds int) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	return fmt.Sprintf("%dh %dm ", hours, minutes)
}

// estimateSLASeconds derives a resin print time from the object height when
// the slicer emits no usable time: a fixed setup cost plus a per-layer
// exposure cost.
func estimateSLASeconds(objectHeightMM, layerHeightMM float64) int {
	layers := math.Ceil(objectHeightMM / math.Max(layerHeightMM, config.MinSLALayerHeightMM))
	return config.SLABaseSeconds + int(layers)*config.SLASecondsPerLayer
}

// parseModelSizes extracts size_x/size_y/size_z from the slicer's info
// output. Missing values are treated as zero.
func parseModelSizes(output string) (x, y, z float64) {
	read := func(axis string) float64 {
		if m := sizePatterns[axis].FindStringSubmatch(output); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				return v
			}
		}
		return 0
	}
	return read("x"), read("y"), read("z")
}
