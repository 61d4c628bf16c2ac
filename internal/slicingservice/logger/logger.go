// Package logger provides centralized logging functionality for the slicing
// service: a prefixed console logger plus the rolling JSON error log.
package logger

import (
	"log"
	"os"
)

// Logger provides structured logging for the slicing service.
var logger = log.New(os.Stderr, "[SlicingService] ", log.LstdFlags|log.Lshortfile)

// LogError logs an error with context information.
//
// Parameters:
//   - context: A description of where/when the error occurred
//   - err: The error that occurred
func LogError(context string, err error) {
	if err != nil {
		logger.Printf("ERROR: %s: %v", context, err)
	}
}

// LogInfo logs an informational message.
func LogInfo(message string) {
	logger.Printf("INFO: %s", message)
}

// LogWarning logs a warning message.
func LogWarning(message string) {
	logger.Printf("WARN: %s", message)
}

// LogDebug logs a debug message.
func LogDebug(message string) {
	logger.Printf("DEBUG: %s", message)
}
