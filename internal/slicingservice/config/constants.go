// Package config provides configuration constants for the slicing service.
package config

import "time"

const (
	// SubprocessTimeout is the hard kill timeout for every external
	// command spawned by the pipeline (converters, orientation, slicer).
	SubprocessTimeout = 600 * time.Second

	// MaxCapturedOutputBytes bounds stdout and stderr capture per stream.
	// Truncation is not fatal.
	MaxCapturedOutputBytes = 10 << 20

	// DefaultExtrusionDepthMM is the extrusion height applied to 2D inputs
	// when the request does not carry a depth field.
	DefaultExtrusionDepthMM = 2.0

	// MinimumBillableHours is the billing floor applied to every estimate.
	MinimumBillableHours = 0.25

	// PriceGranularityHUF is the rounding step of the final price.
	PriceGranularityHUF = 10

	// SLABaseSeconds and SLASecondsPerLayer parameterize the resin print
	// time estimate used when the slicer emits no usable time.
	SLABaseSeconds     = 120
	SLASecondsPerLayer = 11

	// MinSLALayerHeightMM floors the layer height in the resin estimate.
	MinSLALayerHeightMM = 0.025
)
