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
package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestConsoleLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Options{})
	l.Debug("hidden")
	l.Info("shown", "generation", 1)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug message written at info level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "generation=1") {
		t.Errorf("info message missing or without keyvals: %q", out)
	}
}

func TestConsoleLoggerDebug(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, Options{Debug: true}).Debug("tree")
	if !strings.Contains(buf.String(), "tree") {
		t.Errorf("debug message not written: %q", buf.String())
	}
}

func TestConsoleLoggerQuiet(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Options{Quiet: true})
	l.Info("chatter")
	l.Warn("careful")
	if strings.Contains(buf.String(), "chatter") || !strings.Contains(buf.String(), "careful") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) != Discard {
		t.Error("nil logger should become Discard")
	}
	l := New(&bytes.Buffer{}, Options{})
	if OrDiscard(l) != Logger(l) {
		t.Error("non-nil logger should be returned as is")
	}
}
