package logging

import (
	"os"

	"github.com/charmbracelet/log"
)

/*
Init configures the process-wide logger every package logs through.  Unknown
level names keep the default.
*/
func Init(level string) {
	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(true)

	if parsed, err := log.ParseLevel(level); err == nil {
		log.SetLevel(parsed)
	}
}
