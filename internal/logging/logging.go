/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package logging builds ripple's console logger.
package logging

import (
	"io"

	"github.com/charmbracelet/log"
)

// Logger is the logging surface the compiler, host and commands use.
type Logger interface {
	Debug(message string, keyvals ...any)
	Info(message string, keyvals ...any)
	Warn(message string, keyvals ...any)
	Error(message string, keyvals ...any)
}

// ConsoleLogger implements Logger using charmbracelet/log.
type ConsoleLogger struct {
	logger *log.Logger
}

// Options configures a ConsoleLogger.
type Options struct {
	Debug bool
	// Quiet suppresses everything below warnings.
	Quiet bool
}

// New creates a console logger writing to w.
func New(w io.Writer, opts Options) *ConsoleLogger {
	level := log.InfoLevel
	switch {
	case opts.Debug:
		level = log.DebugLevel
	case opts.Quiet:
		level = log.WarnLevel
	}
	return &ConsoleLogger{
		logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			Prefix:          "ripple",
			Level:           level,
		}),
	}
}

// With returns a logger that adds keyvals to every message.
func (c *ConsoleLogger) With(keyvals ...any) *ConsoleLogger {
	return &ConsoleLogger{logger: c.logger.With(keyvals...)}
}

// Info writes a message at INFO level.
func (c *ConsoleLogger) Info(message string, keyvals ...any) {
	c.logger.Info(message, keyvals...)
}

// Warn writes a message at WARN level.
func (c *ConsoleLogger) Warn(message string, keyvals ...any) {
	c.logger.Warn(message, keyvals...)
}

// Error writes a message at ERROR level.
func (c *ConsoleLogger) Error(message string, keyvals ...any) {
	c.logger.Error(message, keyvals...)
}

// Debug writes a message at DEBUG level.
func (c *ConsoleLogger) Debug(message string, keyvals ...any) {
	c.logger.Debug(message, keyvals...)
}

type discard struct{}

func (discard) Debug(string, ...any) {}
func (discard) Info(string, ...any)  {}
func (discard) Warn(string, ...any)  {}
func (discard) Error(string, ...any) {}

// Discard drops every message.
var Discard Logger = discard{}

// OrDiscard returns l, or Discard when l is nil.
func OrDiscard(l Logger) Logger {
	if l == nil {
		return Discard
	}
	return l
}
