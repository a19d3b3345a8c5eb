package server

import (
	"io"
	"log"
	"os"
)

var (
	errorLog = log.New(os.Stderr, "ERROR: ", log.LstdFlags)
	debugLog = log.New(io.Discard, "DEBUG: ", log.LstdFlags)
)

// EnableDebugLogging routes debug output to stderr.
func EnableDebugLogging() {
	debugLog.SetOutput(os.Stderr)
}
