package main

import "log"

var devMode bool

// logError logs an error with context; the session keeps going on
// best-effort in-memory correctness.
func logError(context string, err error) {
	log.Printf("ERROR [%s]: %v", context, err)
}

// debugLog logs verbose diagnostics when dev mode is enabled.
func debugLog(context, format string, args ...any) {
	if !devMode {
		return
	}
	log.Printf("DEBUG [%s] "+format, append([]any{context}, args...)...)
}
