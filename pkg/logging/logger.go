// Package logging provides the leveled log helpers shared by every stigforge
// component.
package logging

import (
	"io"
	"log"
	"os"
)

// DebugEnabled turns on Debugf output. The root command sets it from --debug.
var DebugEnabled bool

var logger = log.New(os.Stderr, "", log.LstdFlags)

// SetOutput redirects all log output, mainly for tests.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// Debugf prints messages only if DebugEnabled is true
func Debugf(format string, args ...interface{}) {
	if DebugEnabled {
		logger.Printf("[DEBUG] "+format, args...)
	}
}

// Infof prints messages always
func Infof(format string, args ...interface{}) {
	logger.Printf("[INFO] "+format, args...)
}

// Warnf reports recoverable problems: missing templates, patch conflicts,
// per-record I/O failures.
func Warnf(format string, args ...interface{}) {
	logger.Printf("[WARN] "+format, args...)
}

func Errorf(format string, args ...interface{}) {
	logger.Printf("[ERROR] "+format, args...)
}
