/*
 * log.go, part of godft.
 *
 * Copyright 2024 Raul Mera <rmera{at}chemDOThelsinkiDOTfi>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

package pipeline

import (
	"io"
	"log"
	"os"
	"strings"
)

// Verbosity levels at which the different details are written to the log.
const (
	OptStepsLevel = 3
	SCFLevel      = 4
)

// Logger writes the diagnostics of a run to a single file, with one
// logger per level.
type Logger struct {
	Info      *log.Logger
	Warning   *log.Logger
	Error     *log.Logger
	Output    *log.Logger
	verbosity int
	w         io.Writer
	file      *os.File
}

// NewLogger creates (or truncates) the file path and returns a Logger that
// writes to it. If path is empty, everything is discarded.
func NewLogger(path string, verbosity int) (*Logger, error) {
	L := &Logger{verbosity: verbosity, w: io.Discard}
	if path != "" {
		file, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		L.file, L.w = file, file
	}
	L.Info = log.New(L.w, "INFO: ", log.Ldate|log.Ltime)
	L.Warning = log.New(L.w, "WARNING: ", log.Ldate|log.Ltime)
	L.Error = log.New(L.w, "ERROR: ", log.Ldate|log.Ltime)
	L.Output = log.New(L.w, "", 0)
	return L, nil
}

// Detail returns a writer to the log if the verbosity is at least level,
// or one that discards everything otherwise.
func (L *Logger) Detail(level int) io.Writer {
	if L.verbosity >= level {
		return L.w
	}
	return io.Discard
}

// DetailLogger is like Detail, but returns a log.Logger without prefix, or
// nil if the verbosity is lower than level.
func (L *Logger) DetailLogger(level int) *log.Logger {
	if L.verbosity >= level {
		return L.Output
	}
	return nil
}

// Delimiter writes a line of dashes to the output, to separate stages.
func (L *Logger) Delimiter() {
	L.Output.Println(strings.Repeat("-", 70))
}

// Close closes the log file.
func (L *Logger) Close() error {
	if L.file == nil {
		return nil
	}
	return L.file.Close()
}
