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

// Package cli is the main entrypoint for runos.
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/google/subcommands"
	"github.com/talismancer/minos/pkg/log"
	"github.com/talismancer/minos/runos/cmd"
	"github.com/talismancer/minos/runos/cmd/util"
	"github.com/talismancer/minos/runos/config"
	"github.com/talismancer/minos/runos/version"
	"golang.org/x/sys/unix"
)

// versionFlagName triggers printing the version from the top level, for
// callers that expect `runos --version` to work.
const versionFlagName = "version"

// panicLogFD, when set, receives the Go runtime's own messages so a
// panic is not lost when stderr is being captured for the console.
var panicLogFD = flag.Int("panic-log-fd", -1, "file descriptor to write Go's runtime messages.")

// Main is the main entrypoint.
func Main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(new(cmd.Run), "")
	subcommands.Register(new(cmd.Programs), "")
	subcommands.Register(new(cmd.Version), "")

	config.RegisterFlags(flag.CommandLine)
	if flag.Lookup(versionFlagName) == nil {
		flag.Bool(versionFlagName, false, "show version and exit.")
	}

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	if v, ok := flag.Lookup(versionFlagName).Value.(flag.Getter); ok && v.Get().(bool) {
		fmt.Fprintf(os.Stdout, "runos version %s\n", version.Version())
		os.Exit(0)
	}

	conf, err := config.NewFromFlags(flag.CommandLine)
	if err != nil {
		util.Fatalf("%v", err)
	}

	// Set up logging.
	logFile := os.Stderr
	if conf.LogFilename != "" {
		f, err := os.OpenFile(conf.LogFilename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			util.Fatalf("error opening log file %q: %v", conf.LogFilename, err)
		}
		logFile = f
		util.ErrorLogger = f
	}
	log.SetTarget(logFile)
	log.SetFormat(conf.LogFormat)
	if conf.Debug {
		log.SetLevel(log.Debug)
	}

	if *panicLogFD > -1 {
		// The console owns stdout/stderr during a run; dup our
		// stderr to the provided fd so panics land in the logs
		// instead of disappearing.
		if err := unix.Dup3(*panicLogFD, int(os.Stderr.Fd()), 0); err != nil {
			util.Fatalf("error dup'ing fd %d to stderr: %v", *panicLogFD, err)
		}
	}

	log.Infof("***************************")
	log.Infof("Args: %s", os.Args)
	log.Infof("Version %s", version.Version())
	log.Infof("GOOS: %s", runtime.GOOS)
	log.Infof("GOARCH: %s", runtime.GOARCH)
	log.Infof("PID: %d", os.Getpid())
	log.Infof("RootDir: %s", conf.RootDir)
	log.Infof("***************************")

	os.Exit(int(subcommands.Execute(context.Background(), conf)))
}
