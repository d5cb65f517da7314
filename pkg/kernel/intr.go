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

package kernel

import (
	"github.com/talismancer/minos/pkg/platform"
)

// intrGuard is a scoped critical section: critical() disables interrupts
// and captures the prior level, exit() restores it. Every mutation of
// scheduler state happens inside one; holding it across a suspension is
// legal because the next dispatched thread re-enables interrupts.
type intrGuard struct {
	k    *Kernel
	prev platform.IntrLevel
}

// critical enters a critical section.
func (k *Kernel) critical() intrGuard {
	return intrGuard{k: k, prev: k.intr.Disable()}
}

// exit leaves the critical section, restoring the captured level.
func (g intrGuard) exit() {
	g.k.intr.SetLevel(g.prev)
}
