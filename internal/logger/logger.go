package logger

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// LogType routes a message to the user or operational stream.
type LogType string

const (
	UserLog LogType = "user"
	OpLog   LogType = "op"
)

var (
	User *UserLogger // Clean status messages for users (stdout)
	Op   *OpLogger   // Detailed operational logs with fields (stderr)

	log  *logrus.Logger
	once sync.Once
)

func init() {
	once.Do(func() {
		log = logrus.New()
		log.SetOutput(os.Stderr)
		log.SetLevel(logrus.InfoLevel)
		log.SetFormatter(NewSplitFormatter())
	})
	User = &UserLogger{logger: log}
	Op = &OpLogger{logger: log}
}

// Setup configures the global logger from CLI flags.
func Setup(verbose, jsonLogs, quiet bool) {
	switch {
	case quiet:
		log.SetLevel(logrus.ErrorLevel)
	case verbose:
		log.SetLevel(logrus.DebugLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	formatter := NewSplitFormatter()
	formatter.JSONFormat = jsonLogs
	log.SetFormatter(formatter)
}

// SetOutput redirects all log output, primarily for tests.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// UserLogger emits clean, prefixed messages intended for terminal users.
type UserLogger struct {
	logger *logrus.Logger
}

func (u *UserLogger) entry(prefix string) *logrus.Entry {
	fields := logrus.Fields{"log_type": string(UserLog)}
	if prefix != "" {
		fields["prefix"] = prefix
	}
	return u.logger.WithFields(fields)
}

func (u *UserLogger) Info(msg string) {
	u.entry("").Info(msg)
}

func (u *UserLogger) Infof(format string, args ...interface{}) {
	u.entry("").Infof(format, args...)
}

func (u *UserLogger) Warn(msg string) {
	u.entry("WARN").Warn(msg)
}

func (u *UserLogger) Warnf(format string, args ...interface{}) {
	u.entry("WARN").Warnf(format, args...)
}

func (u *UserLogger) Error(msg string) {
	u.entry("ERROR").Error(msg)
}

func (u *UserLogger) Errorf(format string, args ...interface{}) {
	u.entry("ERROR").Errorf(format, args...)
}

// Starting announces the beginning of a batch or long operation.
func (u *UserLogger) Starting(msg string) {
	u.entry("STARTING").Info(msg)
}

func (u *UserLogger) Startingf(format string, args ...interface{}) {
	u.entry("STARTING").Infof(format, args...)
}

// Success announces a completed task or batch.
func (u *UserLogger) Success(msg string) {
	u.entry("SUCCESS").Info(msg)
}

func (u *UserLogger) Successf(format string, args ...interface{}) {
	u.entry("SUCCESS").Infof(format, args...)
}

// Skip announces a voluntarily skipped task.
func (u *UserLogger) Skip(msg string) {
	u.entry("SKIPPED").Info(msg)
}

func (u *UserLogger) Skipf(format string, args ...interface{}) {
	u.entry("SKIPPED").Infof(format, args...)
}

// OpLogger emits structured operational logs for debugging and audit.
type OpLogger struct {
	logger *logrus.Logger
}

func (o *OpLogger) WithFields(fields map[string]interface{}) *logrus.Entry {
	f := logrus.Fields{"log_type": string(OpLog)}
	for k, v := range fields {
		f[k] = v
	}
	return o.logger.WithFields(f)
}

func (o *OpLogger) WithField(key string, value interface{}) *logrus.Entry {
	return o.logger.WithFields(logrus.Fields{"log_type": string(OpLog), key: value})
}

func (o *OpLogger) Debug(msg string) {
	o.WithFields(nil).Debug(msg)
}

func (o *OpLogger) Debugf(format string, args ...interface{}) {
	o.WithFields(nil).Debugf(format, args...)
}

func (o *OpLogger) Info(msg string) {
	o.WithFields(nil).Info(msg)
}

func (o *OpLogger) Infof(format string, args ...interface{}) {
	o.WithFields(nil).Infof(format, args...)
}

func (o *OpLogger) Warn(msg string) {
	o.WithFields(nil).Warn(msg)
}

func (o *OpLogger) Warnf(format string, args ...interface{}) {
	o.WithFields(nil).Warnf(format, args...)
}

func (o *OpLogger) Error(msg string) {
	o.WithFields(nil).Error(msg)
}

func (o *OpLogger) Errorf(format string, args ...interface{}) {
	o.WithFields(nil).Errorf(format, args...)
}
