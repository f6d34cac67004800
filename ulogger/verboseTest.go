package ulogger

import (
	"sync"
)

// TestingT is the subset of *testing.T the test loggers need.
type TestingT interface {
	Logf(format string, args ...any)
	Fatalf(format string, args ...any)
}

// VerboseTestLogger routes every log line to t.Logf so it shows up with -v
// and next to the failing assertion.
type VerboseTestLogger struct {
	t      TestingT
	prefix string
	mutex  sync.Mutex
}

func NewVerboseTestLogger(t TestingT) *VerboseTestLogger {
	return &VerboseTestLogger{t: t}
}

func (l *VerboseTestLogger) LogLevel() int {
	return LevelDebug
}

func (l *VerboseTestLogger) SetLogLevel(level string) {}

func (l *VerboseTestLogger) New(service string, options ...Option) Logger {
	return &VerboseTestLogger{t: l.t, prefix: "[" + service + "] "}
}

func (l *VerboseTestLogger) Duplicate(options ...Option) Logger {
	return &VerboseTestLogger{t: l.t, prefix: l.prefix}
}

func (l *VerboseTestLogger) Debugf(format string, args ...interface{}) {
	l.log("[DEBUG] ", format, args...)
}

func (l *VerboseTestLogger) Infof(format string, args ...interface{}) {
	l.log("[INFO] ", format, args...)
}

func (l *VerboseTestLogger) Warnf(format string, args ...interface{}) {
	l.log("[WARN] ", format, args...)
}

func (l *VerboseTestLogger) Errorf(format string, args ...interface{}) {
	l.log("[ERROR] ", format, args...)
}

func (l *VerboseTestLogger) Fatalf(format string, args ...interface{}) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.t.Fatalf("[FATAL] "+l.prefix+format, args...)
}

func (l *VerboseTestLogger) log(level, format string, args ...interface{}) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.t.Logf(level+l.prefix+format, args...)
}
