package logger

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// std is the process-wide logger used by the package-level helpers.
var std = logrus.New()

func init() {
	std.SetOutput(os.Stdout)
	std.SetLevel(logrus.InfoLevel)
	std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// Initialize sets up the global logger level based on input string (e.g., "debug", "info", "warn", "error").
// Unknown levels fall back to info. When path is set to anything other than
// "" or "console", output goes to a rotating file at that path.
func Initialize(level string, path string) {
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = logrus.InfoLevel
	}
	std.SetLevel(lvl)

	if path != "" && path != "console" {
		std.SetOutput(io.Writer(&lumberjack.Logger{
			Filename:   filepath.ToSlash(path),
			MaxSize:    5, // MB
			MaxBackups: 10,
			MaxAge:     30, // days
			Compress:   true,
		}))
	}
}

// SetOutput redirects log output, mostly useful in tests.
func SetOutput(w io.Writer) { std.SetOutput(w) }

// Package-level helpers
func Debug(format string, v ...interface{}) { std.Debugf(format, v...) }
func Info(format string, v ...interface{})  { std.Infof(format, v...) }
func Warn(format string, v ...interface{})  { std.Warnf(format, v...) }
func Error(format string, v ...interface{}) { std.Errorf(format, v...) }

// FromRequest returns an entry carrying the request id assigned by chi's RequestID middleware.
func FromRequest(r *http.Request) *logrus.Entry {
	entry := logrus.NewEntry(std)
	if id := middleware.GetReqID(r.Context()); id != "" {
		entry = entry.WithField("requestID", id)
	}
	return entry
}

// Middleware logs every request at debug level once routing has resolved its pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}
		FromRequest(r).
			WithField("endpoint", pattern).
			WithField("method", r.Method).
			WithField("status", ww.Status()).
			Debug("served request")
	})
}
