package logger

import (
	"os"
	"strings"

	"github.com/pkg/errors"
)

// InitLog attaches stdout, the log file and the error log file to the
// backend log and starts it.
func InitLog(logFile, errLogFile string) error {
	err := BackendLog.AddLogWriter(os.Stdout, LevelDebug)
	if err != nil {
		return errors.Wrap(err, "adding stdout to the log backend")
	}
	err = BackendLog.AddLogFile(logFile, LevelTrace)
	if err != nil {
		return errors.Wrapf(err, "adding log file %s to the log backend", logFile)
	}
	err = BackendLog.AddLogFile(errLogFile, LevelWarn)
	if err != nil {
		return errors.Wrapf(err, "adding error log file %s to the log backend", errLogFile)
	}
	return BackendLog.Run()
}

// ParseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly. An appropriate error is returned if anything is
// invalid.
func ParseAndSetDebugLevels(debugLevel string) error {
	// When the specified string doesn't have any delimiters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		// Validate debug log level.
		if !validLogLevel(debugLevel) {
			return errors.Errorf("the specified debug level [%s] is invalid",
				debugLevel)
		}

		// Change the logging level for all subsystems.
		SetLogLevels(debugLevel)
		return nil
	}

	// Split the specified string into subsystem/level pairs while detecting
	// issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return errors.Errorf("the specified debug level contains an "+
				"invalid subsystem/level pair [%s]", logLevelPair)
		}

		// Extract the specified subsystem and log level.
		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		if !validLogLevel(logLevel) {
			return errors.Errorf("the specified debug level [%s] is invalid",
				logLevel)
		}

		SetLogLevel(subsysID, logLevel)
	}

	return nil
}

// validLogLevel returns whether the logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	_, ok := LevelFromString(logLevel)
	return ok
}
