// Copyright 2026 The Append-FS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger provides the structured, leveled logging used
// throughout the engine: a small wrapper around log/slog with a
// package-level default logger, a severity ladder that puts TRACE below
// slog's DEBUG, and a text-or-json handler swappable in tests via
// SetOutput.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Severity is the engine's logging level. TRACE sits one rung below
// slog's own minimum (Debug), for replay tracing finer-grained than
// slog ships with.
type Severity int

const (
	Trace Severity = iota - 1
	Debug
	Info
	Warn
	Error
	Off
)

// slogLevel converts a Severity into the slog.Level it is implemented
// with. Trace is mapped one level below Debug.
func (s Severity) slogLevel() slog.Level {
	switch s {
	case Trace:
		return slog.LevelDebug - 4
	case Debug:
		return slog.LevelDebug
	case Info:
		return slog.LevelInfo
	case Warn:
		return slog.LevelWarn
	case Error:
		return slog.LevelError
	default:
		return slog.LevelError + 4
	}
}

var (
	programLevel  = new(slog.LevelVar)
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: programLevel}))
)

// SetLevel sets the minimum severity that will be emitted by the package
// default logger.
func SetLevel(s Severity) {
	programLevel.Set(s.slogLevel())
}

// SetOutput redirects the default logger to w using the given format,
// either "text" or "json". Tests use this to capture log output into a
// bytes.Buffer.
func SetOutput(w io.Writer, format string) {
	opts := &slog.HandlerOptions{Level: programLevel}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	defaultLogger = slog.New(handler)
}

func logf(level Severity, format string, v ...any) {
	defaultLogger.Log(context.Background(), level.slogLevel(), fmt.Sprintf(format, v...))
}

func Tracef(format string, v ...any) { logf(Trace, format, v...) }
func Debugf(format string, v ...any) { logf(Debug, format, v...) }
func Infof(format string, v ...any)  { logf(Info, format, v...) }
func Warnf(format string, v ...any)  { logf(Warn, format, v...) }
func Errorf(format string, v ...any) { logf(Error, format, v...) }
