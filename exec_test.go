package installer

import (
	"errors"
	"strings"
)

var errMounterFail = errors.New("mount refused")

// fakeRunner records every command and delegates behavior to an optional
// handler, so each test scripts exactly the failure it needs.
type fakeRunner struct {
	calls   [][]string
	handler func(name string, args []string) (string, error)
}

func (r *fakeRunner) Run(name string, args ...string) (string, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	if r.handler != nil {
		return r.handler(name, args)
	}
	return "", nil
}

// commandLines flattens the recorded calls for order assertions.
func (r *fakeRunner) commandLines() []string {
	lines := make([]string, len(r.calls))
	for i, call := range r.calls {
		lines[i] = strings.Join(call, " ")
	}
	return lines
}

// called reports whether any recorded call starts with the given words.
func (r *fakeRunner) called(prefix ...string) bool {
	for _, call := range r.calls {
		if len(call) < len(prefix) {
			continue
		}
		match := true
		for i, word := range prefix {
			if call[i] != word {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

type fakeMounter struct {
	mounted   []string
	unmounted []string
	failOn    string
}

func (m *fakeMounter) Mount(source, target, fstype string) error {
	if m.failOn != "" && target == m.failOn {
		return errMounterFail
	}
	m.mounted = append(m.mounted, target)
	return nil
}

func (m *fakeMounter) Unmount(target string) error {
	m.unmounted = append(m.unmounted, target)
	return nil
}

type staticConfirmer struct {
	answer bool
	asked  []string
}

func (c *staticConfirmer) Confirm(prompt string) (bool, error) {
	c.asked = append(c.asked, prompt)
	return c.answer, nil
}
