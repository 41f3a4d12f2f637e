package scheduler

import (
	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
)

var _ gocron.Logger = (*gocronLogger)(nil)

// gocronLogger routes the internal messages of gocron to the scheduler logger.
// gocron reports every tick and job lifecycle change at info, those end up at debug.
type gocronLogger struct {
	l *log.Logger
}

func newGocronLogger(l *log.Logger) *gocronLogger {
	return &gocronLogger{l: l.WithPrefix("gocron")}
}

func (g *gocronLogger) Debug(msg string, args ...any) {
	g.l.Debug(msg, args...)
}

func (g *gocronLogger) Info(msg string, args ...any) {
	g.l.Debug(msg, args...)
}

func (g *gocronLogger) Warn(msg string, args ...any) {
	g.l.Warn(msg, args...)
}

func (g *gocronLogger) Error(msg string, args ...any) {
	g.l.Error(msg, args...)
}
