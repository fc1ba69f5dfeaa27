package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/roach88/fontrecipe/internal/ir"
	"github.com/roach88/fontrecipe/internal/ops"
)

// FakeOps stands in for the external font tools. Every catalogue operation
// keeps its name, arity and argument schema but runs in-process: a normal
// operation writes its input's content plus one line naming itself, an
// in-place operation appends that line to each file it rewrites. The final
// content of an artifact is therefore the history of the steps that made it.
//
// FakeOps records every execution and can be told to fail or stall
// particular operations.
type FakeOps struct {
	mu      sync.Mutex
	calls   []ops.Call
	fail    map[string]bool
	delay   time.Duration
	active  int
	maxSeen int
}

// NewFakeOps returns a recorder with no failures and no delay.
func NewFakeOps() *FakeOps {
	return &FakeOps{fail: make(map[string]bool)}
}

// Fail makes every execution of the named operations fail.
func (f *FakeOps) Fail(names ...string) *FakeOps {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range names {
		f.fail[n] = true
	}
	return f
}

// Delay makes every execution sleep for d before writing, so concurrency
// is observable.
func (f *FakeOps) Delay(d time.Duration) *FakeOps {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
	return f
}

// Registry returns a registry holding the fake catalogue.
func (f *FakeOps) Registry() *ops.Registry {
	reg := ops.NewRegistry(nil)
	for _, def := range ops.Catalogue() {
		def.Command = nil
		def.Exec = f.exec(def)
		if err := reg.Register(def); err != nil {
			panic(err)
		}
	}
	return reg
}

// Calls returns the recorded executions in start order.
func (f *FakeOps) Calls() []ops.Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ops.Call(nil), f.calls...)
}

// Count returns how many times spec ran.
func (f *FakeOps) Count(spec ir.OperationSpec) int {
	want := spec.String()
	n := 0
	for _, c := range f.Calls() {
		if c.Spec.String() == want {
			n++
		}
	}
	return n
}

// CountOutputs returns how many times each output path was written.
func (f *FakeOps) CountOutputs() map[string]int {
	counts := make(map[string]int)
	for _, c := range f.Calls() {
		counts[c.Output]++
	}
	return counts
}

// Names returns the operation names in start order.
func (f *FakeOps) Names() []string {
	var names []string
	for _, c := range f.Calls() {
		names = append(names, c.Spec.Name)
	}
	return names
}

// MaxConcurrent returns the highest number of operations seen running at once.
func (f *FakeOps) MaxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxSeen
}

func (f *FakeOps) exec(def ops.Definition) func(context.Context, ops.Runner, *ops.Bound, ops.Call) error {
	return func(ctx context.Context, _ ops.Runner, b *ops.Bound, c ops.Call) error {
		f.mu.Lock()
		f.calls = append(f.calls, c)
		f.active++
		if f.active > f.maxSeen {
			f.maxSeen = f.active
		}
		fail, delay := f.fail[def.Name], f.delay
		f.mu.Unlock()
		defer func() {
			f.mu.Lock()
			f.active--
			f.mu.Unlock()
		}()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if fail {
			return fmt.Errorf("%s: injected failure", def.Name)
		}

		line := b.Spec.String() + "\n"
		if def.InPlace {
			for _, p := range c.Inputs {
				if err := appendFile(c.Abs(p), line); err != nil {
					return err
				}
			}
			return nil
		}
		var content []byte
		for _, p := range c.Inputs {
			data, err := os.ReadFile(c.Abs(p))
			if err != nil {
				return err
			}
			content = append(content, data...)
		}
		content = append(content, line...)
		return os.WriteFile(c.Abs(c.Output), content, 0o644)
	}
}

func appendFile(path, line string) error {
	fh, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := fh.WriteString(line); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

// WriteSources creates each named source file under dir with its own name
// as content.
func WriteSources(dir string, names ...string) error {
	sort.Strings(names)
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte("source "+n+"\n"), 0o644); err != nil {
			return err
		}
	}
	return nil
}
