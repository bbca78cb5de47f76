package logger

import (
	"log"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Info logs informational messages
func Info(format string, args ...interface{}) {
	log.Printf("INFO: "+format, args...)
}

// Warn logs warning messages
func Warn(format string, args ...interface{}) {
	log.Printf("WARN: "+format, args...)
}

// Error logs error messages
func Error(format string, args ...interface{}) {
	log.Printf("ERROR: "+format, args...)
}

// Debug logs debug messages
func Debug(format string, args ...interface{}) {
	log.Printf("DEBUG: "+format, args...)
}

// New returns a named hclog logger for components that talk across the
// plugin boundary. The level comes from AVINPUT_LOG_LEVEL and defaults
// to info.
func New(name string) hclog.Logger {
	level := hclog.Info
	if env := strings.ToLower(os.Getenv("AVINPUT_LOG_LEVEL")); env != "" {
		level = hclog.LevelFromString(env)
		if level == hclog.NoLevel {
			level = hclog.Info
		}
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  level,
		Output: os.Stderr,
	})
}
