package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is a thin wrapper around logrus that keeps every line tagged with
// the component and method it came from, so job output stays greppable.
type Logger struct {
	l *logrus.Logger
}

func New() *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "06-01-02 15:04:05",
	})

	if os.Getenv("LOG_LEVEL") == "debug" {
		l.SetLevel(logrus.DebugLevel)
	}

	return &Logger{l: l}
}

func (l *Logger) entry(component, method string) *logrus.Entry {
	return l.l.WithFields(logrus.Fields{
		"component": component,
		"method":    method,
	})
}

func (l *Logger) Debug(component, method, message string) {
	l.entry(component, method).Debug(message)
}

func (l *Logger) Info(component, method, message string) {
	l.entry(component, method).Info(message)
}

func (l *Logger) Warning(component, method, message string) {
	l.entry(component, method).Warning(message)
}

func (l *Logger) Error(component, method, message string) {
	l.entry(component, method).Error(message)
}
