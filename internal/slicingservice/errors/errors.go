// Package errors provides centralized error definitions for the slicing
// service.
package errors

import "github.com/printforge/printforge-go-components/internal/common"

// Pricing registry errors
var (
	// ErrMaterialExists is returned when creating a material that already exists.
	ErrMaterialExists = common.NewErrConflict("Material already exists for this technology")

	// ErrMaterialNotFound is returned when the targeted material does not exist.
	ErrMaterialNotFound = common.NewErrNotFound("Material not found for this technology")

	// ErrDefaultMaterialProtected is returned on attempts to delete the legacy fallback material.
	ErrDefaultMaterialProtected = common.NewErrBadRequest("INVALID_MATERIAL", "The default material cannot be deleted")

	// ErrInvalidPrice is returned when a rate is not a finite positive integer.
	ErrInvalidPrice = common.NewErrBadRequest("INVALID_PRICE", "Price must be a positive integer")

	// ErrInvalidMaterialName is returned when the material identifier is empty.
	ErrInvalidMaterialName = common.NewErrBadRequest("INVALID_MATERIAL", "Material name must not be empty")

	// ErrPricingPersistence is returned when the registry cannot persist a mutation.
	ErrPricingPersistence = common.NewInternalServerError("Failed to persist pricing registry - mutation rolled back - see console for details")
)

// Admission errors
var (
	// ErrQueueFull is returned when the slice queue has no free pending slot.
	ErrQueueFull = common.NewErrUnavailable(common.CodeQueueFull, "The slicing queue is full. Try again later.")

	// ErrQueueTimeout is returned when a queued request waits past the admission budget.
	ErrQueueTimeout = common.NewErrUnavailable(common.CodeQueueTimeout, "The slicing queue wait timed out. Try again later.")
)
