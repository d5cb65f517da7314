// Copyright 2018 The gVisor Authors.
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

// Package log provides a leveled logging facade for the kernel and the
// runos CLI. The backing emitter is a logrus logger; the CLI selects the
// destination and format once at startup, everything else calls the
// package-level helpers.
package log

import (
	"io"
	"io/ioutil"
	"os"

	"github.com/sirupsen/logrus"
)

// Level is a logging severity.
type Level int

// Log levels, from least to most verbose.
const (
	Warning Level = iota
	Info
	Debug
)

var logger = newDefault()

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(ioutil.Discard)
	l.SetLevel(logrus.WarnLevel)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: false})
	return l
}

// SetTarget directs all subsequent log output to w.
func SetTarget(w io.Writer) {
	logger.SetOutput(w)
}

// SetLevel adjusts the verbosity.
func SetLevel(level Level) {
	switch level {
	case Debug:
		logger.SetLevel(logrus.DebugLevel)
	case Info:
		logger.SetLevel(logrus.InfoLevel)
	default:
		logger.SetLevel(logrus.WarnLevel)
	}
}

// SetFormat selects the output format; "text" and "json" are supported.
// Unknown formats fall back to text.
func SetFormat(format string) {
	switch format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{})
	}
}

// IsLogging returns whether messages at the given level are emitted.
func IsLogging(level Level) bool {
	switch level {
	case Debug:
		return logger.IsLevelEnabled(logrus.DebugLevel)
	case Info:
		return logger.IsLevelEnabled(logrus.InfoLevel)
	default:
		return true
	}
}

// Debugf logs a debug message.
func Debugf(format string, args ...any) {
	logger.Debugf(format, args...)
}

// Infof logs an informational message.
func Infof(format string, args ...any) {
	logger.Infof(format, args...)
}

// Warningf logs a warning message.
func Warningf(format string, args ...any) {
	logger.Warnf(format, args...)
}

// Fatalf logs a message and exits the process with a failure status.
func Fatalf(format string, args ...any) {
	logger.Errorf(format, args...)
	os.Exit(128)
}
