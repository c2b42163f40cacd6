// Package logging wires up logrus: optional daily-rotated file hooks via
// dugong when LOG_DIR is set, text output otherwise. Every stage calls
// Setup once at startup and then uses logrus.WithFields for
// correlation-id-tagged logging.
package logging

import (
	"io/ioutil"
	"path/filepath"

	"github.com/matrix-org/dugong"
	log "github.com/sirupsen/logrus"
)

// Setup configures the global logrus logger for a single stage.
func Setup(stage, logDir string) {
	log.SetFormatter(&log.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05.000000",
		DisableColors:   true,
	})

	if logDir == "" {
		return
	}

	log.AddHook(dugong.NewFSHook(
		filepath.Join(logDir, stage+".info.log"),
		filepath.Join(logDir, stage+".warn.log"),
		filepath.Join(logDir, stage+".error.log"),
		&log.TextFormatter{
			TimestampFormat:  "2006-01-02 15:04:05.000000",
			DisableColors:    true,
			DisableTimestamp: false,
		}, &dugong.DailyRotationSchedule{GZip: false},
	))
	log.SetOutput(ioutil.Discard)
}

// WithCorrelation returns a logger entry pre-populated with the stage name
// and correlation ID, the pattern used at every stage boundary.
func WithCorrelation(stage, correlationID string) *log.Entry {
	return log.WithFields(log.Fields{
		"stage":          stage,
		"correlation_id": correlationID,
	})
}
