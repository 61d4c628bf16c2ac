package pipeline

import "strings"

// sourceClass is the converter family an upload extension maps to.
type sourceClass int

const (
	classUnsupported sourceClass = iota
	classMesh3D                  // already STL, no conversion
	classImage
	classVector
	classMeshForeign
	classCAD
	classArchive
)

var extensionClasses = map[string]sourceClass{
	".stl":  classMesh3D,
	".png":  classImage,
	".jpg":  classImage,
	".jpeg": classImage,
	".bmp":  classImage,
	".dxf":  classVector,
	".svg":  classVector,
	".eps":  classVector,
	".pdf":  classVector,
	".obj":  classMeshForeign,
	".3mf":  classMeshForeign,
	".ply":  classMeshForeign,
	".stp":  classCAD,
	".step": classCAD,
	".igs":  classCAD,
	".iges": classCAD,
	".zip":  classArchive,
}

func classify(ext string) sourceClass {
	return extensionClasses[ext]
}

// supportedMeshSource reports whether ext maps to something the pipeline
// can turn into a printable mesh (archives excluded).
func supportedMeshSource(ext string) bool {
	class := classify(ext)
	return class != classUnsupported && class != classArchive
}

// ErrorClassifier decides whether a failed converter signaled bad source
// data rather than an internal fault. The string-matching default stands in
// until the converters adopt an explicit exit-code contract; swap it per
// converter once they do.
type ErrorClassifier interface {
	IsSourceGeometryError(command, output string) bool
}

// hintClassifier matches the failed command identifier together with a
// closed set of known converter error messages.
type hintClassifier struct{}

// NewHintClassifier returns the default classifier.
func NewHintClassifier() ErrorClassifier {
	return hintClassifier{}
}

var converterIdentifiers = []string{"img2stl", "vector2stl", "mesh2stl", "cad2stl"}

var geometryErrorHints = []string{
	"scene is empty",
	"no 2d geometry found",
	"no closed 2d geometry",
	"invalid polygon geometry",
	"could not create any geometry",
	"failed to load path geometry",
	"failed to extrude",
	"not a cad file",
	"html",
	"cannot identify image file",
	"invalid file format",
	"unrecognized file",
	"error converting mesh",
}

// IsSourceGeometryError reports true only for failures of a known converter
// whose output carries a known bad-input signature. Uncertain failures stay
// internal.
func (hintClassifier) IsSourceGeometryError(command, output string) bool {
	cmd := strings.ToLower(command)
	known := false
	for _, id := range converterIdentifiers {
		if strings.Contains(cmd, id) {
			known = true
			break
		}
	}
	if !known {
		return false
	}
	out := strings.ToLower(output)
	for _, hint := range geometryErrorHints {
		if strings.Contains(out, hint) {
			return true
		}
	}
	return false
}
