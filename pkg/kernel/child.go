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

// ChildInfo is the record a parent keeps for each child, shared with the
// child through its selfInfo pointer. It outlives the child so a later
// wait can still collect the exit status; the parent frees it in Wait,
// or abandons it if the parent dies first.
type ChildInfo struct {
	tid        int
	exitStatus int
	waited     bool
	exited     bool
	completion *Semaphore
}

// TID returns the child's thread identifier.
func (ci *ChildInfo) TID() int {
	return ci.tid
}

func (k *Kernel) newChildInfo() *ChildInfo {
	return &ChildInfo{tid: -1, completion: k.NewSemaphore(0)}
}

// findChild locates the parent's record for the given tid, or nil.
func findChild(parent *Thread, tid int) *ChildInfo {
	for _, ci := range parent.children {
		if ci.tid == tid {
			return ci
		}
	}
	return nil
}

// unlinkChild removes the record from the parent's children.
func unlinkChild(parent *Thread, ci *ChildInfo) {
	for i, c := range parent.children {
		if c == ci {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			return
		}
	}
}
