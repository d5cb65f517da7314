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

// Package util groups miscellaneous helpers for runos commands.
package util

import (
	"fmt"
	"io"
	"os"

	"github.com/talismancer/minos/pkg/log"
)

// ErrorLogger, when set, receives a copy of fatal messages.
var ErrorLogger io.Writer

// Fatalf logs to stderr (and the error logger, if set) and exits with a
// failure status.
func Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Warningf("%s", msg)
	fmt.Fprintf(os.Stderr, "runos: %s\n", msg)
	if ErrorLogger != nil {
		fmt.Fprintf(ErrorLogger, "runos: %s\n", msg)
	}
	os.Exit(128)
}
