package utilities

import (
	"fmt"
	"path"
	"runtime"
	"strconv"

	log "github.com/sirupsen/logrus"
)

// InitLogger initialises the logger. Outside local mode entries are JSON so
// the orphaned-record markers can be picked up by log search.
func InitLogger(logLevel, mode string) {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.Errorf("invalid log level %s, defaulting to INFO log level", logLevel)
		level = log.InfoLevel
	}

	switch {
	case level == log.DebugLevel:
		log.SetReportCaller(true)
		log.SetFormatter(&log.TextFormatter{
			CallerPrettyfier: func(frame *runtime.Frame) (function string, file string) {
				fileName := path.Base(frame.File) + ":" + strconv.Itoa(frame.Line)
				return "", fileName
			},
			TimestampFormat: "2006-01-02 15:04:05", FullTimestamp: true,
		})
	case mode != "local":
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	}

	log.SetLevel(level)
}

// NewLogger returns the logger client
func NewLogger(fName string) *log.Entry {
	return log.WithFields(log.Fields{
		"fn": fmt.Sprintf("%s()", fName),
	})
}

func NewLoggerWithFields(fName string, fields map[string]interface{}) *log.Entry {
	f := log.Fields(fields)
	f["fn"] = fmt.Sprintf("%s()", fName)
	return log.WithFields(f)
}
