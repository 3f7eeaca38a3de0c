package log

import "github.com/sirupsen/logrus"

// BadgerLogger implements badger.Logger on top of a logrus entry.
// Badger's info output (compactions, table flushes) is demoted to debug.
type BadgerLogger struct {
	*logrus.Entry
}

// NewBadgerLogger creates a new adapter tagged with the badgerdb component
func NewBadgerLogger(entry *logrus.Entry) *BadgerLogger {
	return &BadgerLogger{entry.WithField("component", "badgerdb")}
}

// Errorf logs an error message
func (l *BadgerLogger) Errorf(f string, v ...interface{}) { l.Entry.Errorf(f, v...) }

// Warningf logs a warning message
func (l *BadgerLogger) Warningf(f string, v ...interface{}) { l.Entry.Warnf(f, v...) }

// Infof logs badger info messages at debug level
func (l *BadgerLogger) Infof(f string, v ...interface{}) { l.Entry.Debugf(f, v...) }

// Debugf logs a debug message
func (l *BadgerLogger) Debugf(f string, v ...interface{}) { l.Entry.Tracef(f, v...) }
