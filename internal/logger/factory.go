package logger

import (
	"github.com/charmbracelet/log"
)

// Leveled adapts a charm logger to the leveled logger interface used by
// retrying HTTP clients (msg string, keysAndValues ...interface{}).
type Leveled struct {
	l *log.Logger
}

func NewLeveled(l *log.Logger) Leveled {
	if l == nil {
		l = log.Default()
	}
	return Leveled{l: l}
}

func (a Leveled) Error(msg string, keysAndValues ...interface{}) {
	a.l.Error(msg, keysAndValues...)
}

func (a Leveled) Info(msg string, keysAndValues ...interface{}) {
	a.l.Info(msg, keysAndValues...)
}

func (a Leveled) Debug(msg string, keysAndValues ...interface{}) {
	a.l.Debug(msg, keysAndValues...)
}

func (a Leveled) Warn(msg string, keysAndValues ...interface{}) {
	a.l.Warn(msg, keysAndValues...)
}
