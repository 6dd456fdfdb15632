// Copyright 2025 Google LLC
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

// Package logger provides the structured, leveled logging used by every
// subsystem in gopager: the buffer cache, inode layer, block layer, frame
// table, fault handler, and CLI commands all log through here rather than through
// fmt.Println or the bare log package.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/shimmeros/gopager/cfg"
	"gopkg.in/natefinch/lumberjack.v2"
)

// levelTrace sits one rung below slog.LevelDebug so Tracef can log
// sector/frame churn without drowning Debug output.
const levelTrace = slog.Level(-8)

var severityToLevel = map[cfg.Severity]slog.Level{
	cfg.TRACE:   levelTrace,
	cfg.DEBUG:   slog.LevelDebug,
	cfg.INFO:    slog.LevelInfo,
	cfg.WARNING: slog.LevelWarn,
	cfg.ERROR:   slog.LevelError,
}

var levelNames = map[slog.Leveler]string{
	levelTrace: "TRACE",
}

type loggerFactory struct {
	format string
	level  *slog.LevelVar
}

func (f *loggerFactory) handler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: f.level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				level := a.Value.Any().(slog.Level)
				if name, ok := levelNames[level]; ok {
					a.Value = slog.StringValue(name)
				}
			}
			return a
		},
	}
	if f.format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

var (
	defaultFactory = &loggerFactory{format: "text", level: programLevel()}
	defaultLogger  = slog.New(defaultFactory.handler(os.Stderr))
	closer         io.Closer
)

func programLevel() *slog.LevelVar {
	v := new(slog.LevelVar)
	v.Set(slog.LevelInfo)
	return v
}

// Init (re)configures the package-level logger from c. It is safe to call
// once at process start; gopager has no concept of hot log reconfiguration.
func Init(c cfg.LogConfig) error {
	defaultFactory.format = c.Format

	level, ok := severityToLevel[c.Severity]
	if c.Severity == cfg.OFF {
		level = slog.LevelError + 100 // above any level we emit: silences everything.
		ok = true
	}
	if !ok {
		return fmt.Errorf("unknown log severity %q", c.Severity)
	}
	defaultFactory.level.Set(level)

	var w io.Writer = os.Stderr
	if c.FilePath != "" {
		lj := &lumberjack.Logger{Filename: c.FilePath, MaxSize: 64, MaxBackups: 3}
		async := NewAsyncLogger(lj, 256)
		closer = async
		w = async
	}
	defaultLogger = slog.New(defaultFactory.handler(w))
	return nil
}

// Close flushes and closes the rotating log file, if one is configured.
func Close() error {
	if closer == nil {
		return nil
	}
	c := closer
	closer = nil
	return c.Close()
}

func Tracef(format string, args ...any) {
	defaultLogger.Log(context.Background(), levelTrace, fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...any) {
	defaultLogger.Debug(fmt.Sprintf(format, args...))
}

func Infof(format string, args ...any) {
	defaultLogger.Info(fmt.Sprintf(format, args...))
}

func Warnf(format string, args ...any) {
	defaultLogger.Warn(fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...any) {
	defaultLogger.Error(fmt.Sprintf(format, args...))
}
