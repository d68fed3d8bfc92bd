package logconfig

import (
	"fmt"

	myLogger "github.com/sirupsen/logrus"
)

// This output format is used in the test (has terminal).
func ConfigDebugLogger() {
	myLogger.SetReportCaller(true)
	myLogger.SetLevel(myLogger.DebugLevel)
	myLogger.SetFormatter(&myLogger.TextFormatter{
		ForceColors:            true,
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
		PadLevelText:           true,
	})
}

func ConfigInfoLogger() {
	myLogger.SetReportCaller(false)
	myLogger.SetLevel(myLogger.InfoLevel)
	myLogger.SetFormatter(&myLogger.TextFormatter{
		ForceColors:            true,
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
		PadLevelText:           true,
	})
}

// This output format is used in production. Swap events are shipped as json
// so the audit trail can be collected by a log pipeline.
func ConfigProductionLogger() {
	myLogger.SetReportCaller(false)
	myLogger.SetLevel(myLogger.InfoLevel)
	myLogger.SetFormatter(&myLogger.JSONFormatter{})
}

// ConfigLogger picks a setup by name: "debug", "info" or "production".
// Any other logrus level name keeps the production format at that level.
func ConfigLogger(level string) error {
	switch level {
	case "", "production":
		ConfigProductionLogger()
		return nil
	case "debug":
		ConfigDebugLogger()
		return nil
	case "info":
		ConfigInfoLogger()
		return nil
	}

	lvl, err := myLogger.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	ConfigProductionLogger()
	myLogger.SetLevel(lvl)
	return nil
}
