// Package logging provides structured logging for herdsync.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the global logger.
type Options struct {
	Level  string // debug|info|warn|error (default info)
	Format string // text|json (default text)
	File   string // optional log file; rotated when set
}

var (
	global *logrus.Logger
	once   sync.Once
)

// Init initializes the global logger. Safe to call more than once;
// only the first call takes effect.
func Init(opts Options) {
	once.Do(func() {
		global = build(opts)
	})
}

func build(opts Options) *logrus.Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(strings.TrimSpace(opts.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var out io.Writer = os.Stderr
	if opts.File != "" {
		out = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    20, // MB
			MaxBackups: 3,
			MaxAge:     14, // days
			Compress:   true,
		}
	}
	l.SetOutput(out)

	return l
}

// Get returns the global logger, initializing defaults on first use.
func Get() *logrus.Logger {
	if global == nil {
		Init(Options{})
	}
	return global
}

// Component returns an entry scoped to one engine component.
func Component(name string) *logrus.Entry {
	return Get().WithField("component", name)
}
