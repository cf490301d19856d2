// Package shelltest provides a scripted shell.Runner for tests.
package shelltest

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"pdsinstall/pkg/shell"
)

// Response is the scripted result for one command line.
type Response struct {
	Out []byte
	Err error
}

// Fake answers commands from a table keyed by the full command line
// ("ufw status", "docker compose --file /pds/compose.yaml up --detach").
// Unknown commands succeed with empty output.
type Fake struct {
	mu        sync.Mutex
	Responses map[string]Response
	Missing   map[string]bool
	Calls     []string
	// Hook, when set, is consulted before Responses.
	Hook func(line string) (Response, bool)
}

func New() *Fake {
	return &Fake{Responses: map[string]Response{}, Missing: map[string]bool{}}
}

// On scripts a successful response.
func (f *Fake) On(line string, out string) *Fake {
	f.Responses[line] = Response{Out: []byte(out)}
	return f
}

// Fail scripts a failing response.
func (f *Fake) Fail(line string, err error) *Fake {
	f.Responses[line] = Response{Err: err}
	return f
}

func (f *Fake) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	line := shell.Format(name, args...)
	f.mu.Lock()
	f.Calls = append(f.Calls, line)
	hook := f.Hook
	resp, ok := f.Responses[line]
	f.mu.Unlock()
	if hook != nil {
		if r, handled := hook(line); handled {
			return r.Out, r.Err
		}
	}
	if !ok {
		return nil, nil
	}
	if resp.Err != nil {
		return resp.Out, fmt.Errorf("%s failed: %w", line, resp.Err)
	}
	return resp.Out, nil
}

func (f *Fake) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Missing[name] {
		return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
	}
	return "/usr/bin/" + name, nil
}

// Ran reports whether the exact command line was executed.
func (f *Fake) Ran(line string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.Calls {
		if c == line {
			return true
		}
	}
	return false
}

// RanPrefix counts executed command lines starting with prefix.
func (f *Fake) RanPrefix(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}
