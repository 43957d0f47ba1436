package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// SplitFormatter routes user-facing messages to stdout, based on the
// log_type field. Operational messages flow through the logger's own output,
// which stays on stderr.
type SplitFormatter struct {
	UserOutput    io.Writer
	EnableColors  bool
	ShowTimestamp bool
	JSONFormat    bool
}

// NewSplitFormatter creates a formatter with sensible defaults.
func NewSplitFormatter() *SplitFormatter {
	return &SplitFormatter{
		UserOutput:    os.Stdout,
		EnableColors:  isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsTerminal(os.Stderr.Fd()),
		ShowTimestamp: false,
	}
}

// Format implements logrus.Formatter.
func (f *SplitFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	if f.JSONFormat {
		jsonFormatter := &logrus.JSONFormatter{}
		return jsonFormatter.Format(entry)
	}

	logType, _ := entry.Data["log_type"].(string)
	if logType == string(UserLog) {
		prefix, _ := entry.Data["prefix"].(string)
		return f.formatUserLog(entry, prefix)
	}
	return f.formatOpLog(entry)
}

func (f *SplitFormatter) formatUserLog(entry *logrus.Entry, prefix string) ([]byte, error) {
	var b bytes.Buffer

	if prefix != "" {
		b.WriteString("[")
		b.WriteString(prefix)
		b.WriteString("] ")
	}
	b.WriteString(entry.Message)
	b.WriteByte('\n')

	if f.UserOutput != nil {
		_, _ = f.UserOutput.Write(b.Bytes())
		return nil, nil
	}
	return b.Bytes(), nil
}

func (f *SplitFormatter) formatOpLog(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer

	if f.ShowTimestamp {
		b.WriteString(entry.Time.Format("2006-01-02 15:04:05"))
		b.WriteString(" ")
	}

	levelColor := ""
	resetColor := ""
	if f.EnableColors {
		switch entry.Level {
		case logrus.ErrorLevel:
			levelColor = "\033[31m"
		case logrus.WarnLevel:
			levelColor = "\033[33m"
		case logrus.InfoLevel:
			levelColor = "\033[36m"
		case logrus.DebugLevel:
			levelColor = "\033[37m"
		}
		resetColor = "\033[0m"
	}

	b.WriteString(levelColor)
	b.WriteString(strings.ToUpper(entry.Level.String()))
	b.WriteString(resetColor)
	b.WriteString(": ")
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k == "log_type" || k == "prefix" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(fmt.Sprintf(" %s=%v", k, entry.Data[k]))
	}
	b.WriteByte('\n')

	return b.Bytes(), nil
}
