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

package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/subcommands"
	"github.com/talismancer/minos/pkg/log"
	"github.com/talismancer/minos/runos/boot"
	"github.com/talismancer/minos/runos/cmd/util"
	"github.com/talismancer/minos/runos/config"
)

// Run implements subcommands.Command for the "run" command.
type Run struct {
	stats bool
}

// Name implements subcommands.Command.Name.
func (*Run) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Run) Synopsis() string {
	return "boot a machine from a manifest and run it to completion"
}

// Usage implements subcommands.Command.Usage.
func (*Run) Usage() string {
	return `run [flags] <manifest.toml> - boot a machine and run it to completion
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Run) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&r.stats, "stats", false, "print tick accounting after the run.")
}

// Execute implements subcommands.Command.Execute.
func (r *Run) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	manifest, err := boot.LoadManifest(f.Arg(0))
	if err != nil {
		util.Fatalf("%v", err)
	}

	// One machine per state directory at a time.
	if err := os.MkdirAll(conf.RootDir, 0o711); err != nil {
		util.Fatalf("creating state dir: %v", err)
	}
	machineLock := flock.New(filepath.Join(conf.RootDir, "machine.lock"))
	locked, err := machineLock.TryLock()
	if err != nil {
		util.Fatalf("locking state dir: %v", err)
	}
	if !locked {
		util.Fatalf("another machine is running in %q", conf.RootDir)
	}
	defer machineLock.Unlock()

	res, err := boot.Boot(conf, manifest)
	if err != nil {
		util.Fatalf("boot: %v", err)
	}

	fmt.Fprint(os.Stdout, res.Console)
	if r.stats {
		fmt.Fprintf(os.Stderr, "ticks: %d idle, %d kernel, %d user\n",
			res.Stats.IdleTicks, res.Stats.KernelTicks, res.Stats.UserTicks)
	}
	if res.Status != 0 {
		log.Warningf("boot process exited with status %d", res.Status)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
