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
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCreationPreemptsLowerPriorityCreator(t *testing.T) {
	tm := newTestMachine()
	tm.run(t, func() {
		tm.k.ThreadCreate("hi", PriMax, func() {
			tm.record("hi ran")
		})
		tm.record("creator resumed")
	})

	want := []string{"hi ran", "creator resumed"}
	if diff := cmp.Diff(want, tm.events); diff != "" {
		t.Errorf("event order mismatch (-want +got):\n%s", diff)
	}
}

func TestEqualPriorityCreationDoesNotPreempt(t *testing.T) {
	tm := newTestMachine()
	tm.run(t, func() {
		tm.k.ThreadCreate("peer", PriDefault, func() {
			tm.record("peer")
		})
		tm.record("creator")
		tm.k.ThreadYield()
	})

	want := []string{"creator", "peer"}
	if diff := cmp.Diff(want, tm.events); diff != "" {
		t.Errorf("event order mismatch (-want +got):\n%s", diff)
	}
}

func TestYieldIsFIFOWithinPriority(t *testing.T) {
	tm := newTestMachine()
	tm.run(t, func() {
		body := func(name string) func() {
			return func() {
				tm.record(name + "-1")
				tm.k.ThreadYield()
				tm.record(name + "-2")
			}
		}
		tm.k.ThreadCreate("a", PriDefault, body("a"))
		tm.k.ThreadCreate("b", PriDefault, body("b"))
		tm.k.ThreadYield()
		tm.k.ThreadYield()
		// Let both finish.
		tm.k.ThreadYield()
	})

	want := []string{"a-1", "b-1", "a-2", "b-2"}
	if diff := cmp.Diff(want, tm.events); diff != "" {
		t.Errorf("event order mismatch (-want +got):\n%s", diff)
	}
}

func TestSetPriorityRoundTrip(t *testing.T) {
	tm := newTestMachine()
	tm.run(t, func() {
		k := tm.k
		k.SetPriority(40)
		if got := k.GetPriority(); got != 40 {
			t.Errorf("GetPriority() = %d, want 40", got)
		}
		k.SetPriority(10)
		if got := k.GetPriority(); got != 10 {
			t.Errorf("GetPriority() = %d, want 10", got)
		}
	})
}

func TestSetPriorityYieldsWhenLowered(t *testing.T) {
	tm := newTestMachine()
	tm.run(t, func() {
		k := tm.k
		k.SetPriority(50)
		k.ThreadCreate("mid", 40, func() {
			tm.record("mid")
		})
		tm.record("before drop")
		k.SetPriority(20)
		tm.record("after drop")
	})

	want := []string{"before drop", "mid", "after drop"}
	if diff := cmp.Diff(want, tm.events); diff != "" {
		t.Errorf("event order mismatch (-want +got):\n%s", diff)
	}
}

func TestRunningThreadIsUnique(t *testing.T) {
	tm := newTestMachine()
	tm.run(t, func() {
		k := tm.k
		main := k.Current()
		k.ThreadCreate("child", PriMax, func() {
			if k.Current().Name() != "child" {
				t.Errorf("current = %q, want child", k.Current().Name())
			}
			if main.Status() != Ready {
				t.Errorf("creator status = %v, want ready", main.Status())
			}
		})
		if got := main.Status(); got != Running {
			t.Errorf("main status = %v, want running", got)
		}
	})
}

func TestThreadNameFirstToken(t *testing.T) {
	for _, tc := range []struct {
		cmd  string
		want string
	}{
		{"echo hello world", "echo"},
		{"averyverylongprogramname arg", "averyverylongpr"},
		{"  spaced   out  ", "spaced"},
	} {
		if got := threadName(tc.cmd); got != tc.want {
			t.Errorf("threadName(%q) = %q, want %q", tc.cmd, got, tc.want)
		}
	}
}

func TestTokenize(t *testing.T) {
	for _, tc := range []struct {
		cmd  string
		want []string
	}{
		{"echo hello world", []string{"echo", "hello", "world"}},
		{"  a  b ", []string{"a", "b"}},
		{"", nil},
		{"   ", nil},
		{"one\ttwo\nthree", []string{"one", "two", "three"}},
	} {
		if diff := cmp.Diff(tc.want, tokenize(tc.cmd)); diff != "" {
			t.Errorf("tokenize(%q) mismatch (-want +got):\n%s", tc.cmd, diff)
		}
	}
}

func TestIdleNeverDispatchedWhileReady(t *testing.T) {
	tm := newTestMachine()
	tm.run(t, func() {
		k := tm.k
		// Keep a peer runnable the whole time; the idle thread must
		// not accumulate ticks while it is.
		k.ThreadCreate("spin", PriDefault, func() {
			k.Burn(8)
		})
		k.Burn(8)
		if got := k.Timer().Stats().IdleTicks; got != 0 {
			t.Errorf("idle ticks = %d, want 0 while work was ready", got)
		}
	})
}
