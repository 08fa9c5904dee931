package definition

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/jabolina/go-bus/pkg/bus/types"
	colorable "github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
)

// DefaultLogger is the bus's stock types.Logger implementation, backed by
// logrus rather than a bare standard-library logger, so level filtering,
// structured fields, and output formatting come from an ecosystem library
// instead of being hand-rolled. Level prefixes are colorized via
// fatih/color + mattn/go-colorable when attached to a terminal.
type DefaultLogger struct {
	entry *logrus.Entry
	debug bool
}

// NewDefaultLogger builds a DefaultLogger writing to stderr through a
// colorable writer.
func NewDefaultLogger(name string) *DefaultLogger {
	base := logrus.New()
	base.SetOutput(colorable.NewColorableStderr())
	base.SetLevel(logrus.InfoLevel)
	return &DefaultLogger{
		entry: base.WithField("peer", name),
		debug: false,
	}
}

func colorize(level string, attr color.Attribute) string {
	return color.New(attr).Sprintf("[%s]", level)
}

func (l *DefaultLogger) Info(v ...interface{}) {
	l.entry.Info(colorize("INFO", color.FgGreen), fmt.Sprint(v...))
}

func (l *DefaultLogger) Infof(format string, v ...interface{}) {
	l.entry.Info(colorize("INFO", color.FgGreen), fmt.Sprintf(format, v...))
}

func (l *DefaultLogger) Warn(v ...interface{}) {
	l.entry.Warn(colorize("WARN", color.FgYellow), fmt.Sprint(v...))
}

func (l *DefaultLogger) Warnf(format string, v ...interface{}) {
	l.entry.Warn(colorize("WARN", color.FgYellow), fmt.Sprintf(format, v...))
}

func (l *DefaultLogger) Error(v ...interface{}) {
	l.entry.Error(colorize("ERROR", color.FgRed), fmt.Sprint(v...))
}

func (l *DefaultLogger) Errorf(format string, v ...interface{}) {
	l.entry.Error(colorize("ERROR", color.FgRed), fmt.Sprintf(format, v...))
}

func (l *DefaultLogger) Debug(v ...interface{}) {
	if l.debug {
		l.entry.Debug(colorize("DEBUG", color.FgCyan), fmt.Sprint(v...))
	}
}

func (l *DefaultLogger) Debugf(format string, v ...interface{}) {
	if l.debug {
		l.entry.Debug(colorize("DEBUG", color.FgCyan), fmt.Sprintf(format, v...))
	}
}

func (l *DefaultLogger) Fatal(v ...interface{}) {
	l.entry.Error(colorize("FATAL", color.FgMagenta), fmt.Sprint(v...))
	os.Exit(1)
}

func (l *DefaultLogger) Fatalf(format string, v ...interface{}) {
	l.entry.Error(colorize("FATAL", color.FgMagenta), fmt.Sprintf(format, v...))
	os.Exit(1)
}

func (l *DefaultLogger) ToggleDebug(value bool) bool {
	l.debug = value
	if value {
		l.entry.Logger.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.Logger.SetLevel(logrus.InfoLevel)
	}
	return l.debug
}

var _ types.Logger = (*DefaultLogger)(nil)
