package mylog

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/MarcGrol/bookingportal/lib/mycontext"
)

var standard = logrus.New()

func init() {
	if os.Getenv("GOOGLE_CLOUD_PROJECT") == "" {
		New = newStandardLogger
	}
	standard.SetOutput(os.Stderr)
	standard.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// SetLevel adjusts the verbosity of the standard logger, e.g. "debug" or "warn"
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	standard.SetLevel(lvl)
}

type standardLogger struct {
	componentName string
	entry         *logrus.Entry
}

func newStandardLogger(componentName string) Logger {
	return standardLogger{
		componentName: componentName,
		entry:         standard.WithField("component", componentName),
	}
}

func (l standardLogger) Log(ctx context.Context, traceLabel string, severity Severity, format string, a ...any) {
	fields := logrus.Fields{}
	if traceLabel != "" {
		fields["aggregate"] = traceLabel
	}
	if trace := mycontext.TraceFromContext(ctx); trace != "" {
		fields["trace"] = trace
	}
	l.entry.WithFields(fields).Log(toLevel(severity), fmt.Sprintf(format, a...))
}

func toLevel(severity Severity) logrus.Level {
	switch severity {
	case SeverityDebug:
		return logrus.DebugLevel
	case SeverityWarn:
		return logrus.WarnLevel
	case SeverityError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
