package executor

import (
	"context"
	"strings"
	"sync"
)

// Recorder is a Runner for tests: it records every invocation and returns
// canned output or errors keyed by command line prefix.
type Recorder struct {
	mu      sync.Mutex
	calls   []string
	outputs map[string][]byte
	errors  map[string]error
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		outputs: make(map[string][]byte),
		errors:  make(map[string]error),
	}
}

// Stub sets the output returned for command lines starting with prefix.
func (r *Recorder) Stub(prefix string, output []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs[prefix] = output
}

// Fail makes command lines starting with prefix return err.
func (r *Recorder) Fail(prefix string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors[prefix] = err
}

// Run records the invocation.
func (r *Recorder) Run(_ context.Context, name string, args ...string) error {
	line := r.record(name, args)
	return r.errorFor(line)
}

// Output records the invocation and returns any stubbed output.
func (r *Recorder) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	line := r.record(name, args)
	if err := r.errorFor(line); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for prefix, out := range r.outputs {
		if strings.HasPrefix(line, prefix) {
			return out, nil
		}
	}
	return nil, nil
}

// Calls returns the recorded command lines in invocation order.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// CalledWith reports whether any recorded command line starts with prefix.
func (r *Recorder) CalledWith(prefix string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, line := range r.calls {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func (r *Recorder) record(name string, args []string) string {
	line := strings.Join(append([]string{name}, args...), " ")
	r.mu.Lock()
	r.calls = append(r.calls, line)
	r.mu.Unlock()
	return line
}

func (r *Recorder) errorFor(line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for prefix, err := range r.errors {
		if strings.HasPrefix(line, prefix) {
			return err
		}
	}
	return nil
}
