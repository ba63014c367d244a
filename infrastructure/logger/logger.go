// Copyright (c) 2017 The btcsuite developers
// Copyright (c) 2017 The Lightning Network Developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package logger

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// logEntry is a single formatted log message together with the level it was
// written at, queued for the backend goroutine.
type logEntry struct {
	log   []byte
	level Level
}

// Logger is a subsystem logger. All messages are tagged with the subsystem
// tag and filtered by the logger's active level before being handed to the
// shared Backend.
type Logger struct {
	lvl          Level // atomic
	tag          string
	b            *Backend
	writeChan    chan<- logEntry
	writeChanMtx sync.Mutex
}

var (
	// BackendLog is the logging backend used to create all subsystem
	// loggers.
	BackendLog = NewBackend()

	subsystemsMtx sync.Mutex
	subsystems    = make(map[string]*Logger)
)

// RegisterSubSystem returns a logger for the given subsystem tag, creating
// it on the shared backend if it was not registered before.
func RegisterSubSystem(subsystem string) *Logger {
	subsystemsMtx.Lock()
	defer subsystemsMtx.Unlock()
	logger, ok := subsystems[subsystem]
	if !ok {
		logger = BackendLog.Logger(subsystem)
		logger.SetLevel(LevelInfo)
		subsystems[subsystem] = logger
	}
	return logger
}

// SetLogLevel sets the logging level for the provided subsystem. Invalid
// subsystems are ignored. Uninitialized subsystems are dynamically created as
// needed.
func SetLogLevel(subsystemID string, logLevel string) {
	level, _ := LevelFromString(logLevel)
	subsystemsMtx.Lock()
	defer subsystemsMtx.Unlock()
	logger, ok := subsystems[subsystemID]
	if !ok {
		return
	}
	logger.SetLevel(level)
}

// SetLogLevels sets the log level for all subsystem loggers to the passed
// level. It also dynamically creates the subsystem loggers as needed, so it
// can be used to initialize the logging system.
func SetLogLevels(logLevel string) {
	level, _ := LevelFromString(logLevel)
	subsystemsMtx.Lock()
	defer subsystemsMtx.Unlock()
	for _, logger := range subsystems {
		logger.SetLevel(level)
	}
}

// Level returns the current logging level.
func (l *Logger) Level() Level {
	return Level(atomic.LoadUint32((*uint32)(&l.lvl)))
}

// SetLevel changes the logging level to the passed level.
func (l *Logger) SetLevel(logLevel Level) {
	atomic.StoreUint32((*uint32)(&l.lvl), uint32(logLevel))
}

// Backend returns the backend this logger writes to.
func (l *Logger) Backend() *Backend {
	return l.b
}

// print outputs a log message to the backend write channel with the formatted
// header prepended.
func (l *Logger) print(logLevel Level, args ...interface{}) {
	if !l.b.IsRunning() || logLevel < l.Level() {
		return
	}
	l.write(logLevel, fmt.Sprint(args...))
}

// printf outputs a formatted log message to the backend write channel with
// the formatted header prepended.
func (l *Logger) printf(logLevel Level, format string, args ...interface{}) {
	if !l.b.IsRunning() || logLevel < l.Level() {
		return
	}
	l.write(logLevel, fmt.Sprintf(format, args...))
}

func (l *Logger) write(logLevel Level, msg string) {
	buf := bytes.NewBuffer(make([]byte, 0, normalLogSize))
	formatHeader(buf, logLevel, l.tag, l.b.flag)
	buf.WriteString(msg)
	buf.WriteByte('\n')

	l.writeChanMtx.Lock()
	defer l.writeChanMtx.Unlock()
	if !l.b.IsRunning() {
		return
	}
	l.writeChan <- logEntry{buf.Bytes(), logLevel}
}

// formatHeader writes the log header: a timestamp, the level tag, the
// subsystem tag and, if requested through the backend flags, the callsite.
func formatHeader(buf *bytes.Buffer, logLevel Level, tag string, flag uint32) {
	t := time.Now().UTC()
	buf.WriteString(t.Format("2006-01-02 15:04:05.000"))
	buf.WriteString(" [")
	buf.WriteString(logLevel.String())
	buf.WriteString("] ")
	buf.WriteString(tag)
	if flag&(LogFlagLongFile|LogFlagShortFile) != 0 {
		file, line := callsite(flag)
		fmt.Fprintf(buf, " %s:%d", file, line)
	}
	buf.WriteString(": ")
}

// callsite returns the file name and line number of the callsite to the
// subsystem logger.
func callsite(flag uint32) (string, int) {
	// Skip runtime.Callers, callsite, formatHeader, write, print(f) and the
	// exported logging method.
	_, file, line, ok := runtime.Caller(6)
	if !ok {
		return "???", 0
	}
	if flag&LogFlagShortFile != 0 {
		short := file
		for i := len(file) - 1; i > 0; i-- {
			if os.IsPathSeparator(file[i]) {
				short = file[i+1:]
				break
			}
		}
		file = short
	}
	return file, line
}

// Tracef formats message according to format specifier and writes to
// to log with LevelTrace.
func (l *Logger) Tracef(format string, args ...interface{}) {
	l.printf(LevelTrace, format, args...)
}

// Debugf formats message according to format specifier and writes to
// log with LevelDebug.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.printf(LevelDebug, format, args...)
}

// Infof formats message according to format specifier and writes to
// log with LevelInfo.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.printf(LevelInfo, format, args...)
}

// Warnf formats message according to format specifier and writes to
// to log with LevelWarn.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.printf(LevelWarn, format, args...)
}

// Errorf formats message according to format specifier and writes to
// to log with LevelError.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.printf(LevelError, format, args...)
}

// Criticalf formats message according to format specifier and writes to
// log with LevelCritical.
func (l *Logger) Criticalf(format string, args ...interface{}) {
	l.printf(LevelCritical, format, args...)
}

// Trace formats message using the default formats for its operands, prepends
// the prefix as necessary, and writes to log with LevelTrace.
func (l *Logger) Trace(args ...interface{}) {
	l.print(LevelTrace, args...)
}

// Debug formats message using the default formats for its operands, prepends
// the prefix as necessary, and writes to log with LevelDebug.
func (l *Logger) Debug(args ...interface{}) {
	l.print(LevelDebug, args...)
}

// Info formats message using the default formats for its operands, prepends
// the prefix as necessary, and writes to log with LevelInfo.
func (l *Logger) Info(args ...interface{}) {
	l.print(LevelInfo, args...)
}

// Warn formats message using the default formats for its operands, prepends
// the prefix as necessary, and writes to log with LevelWarn.
func (l *Logger) Warn(args ...interface{}) {
	l.print(LevelWarn, args...)
}

// Error formats message using the default formats for its operands, prepends
// the prefix as necessary, and writes to log with LevelError.
func (l *Logger) Error(args ...interface{}) {
	l.print(LevelError, args...)
}

// Critical formats message using the default formats for its operands,
// prepends the prefix as necessary, and writes to log with LevelCritical.
func (l *Logger) Critical(args ...interface{}) {
	l.print(LevelCritical, args...)
}
