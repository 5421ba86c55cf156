package testsupport

import (
	"context"
	"sync"

	"soilsense/pkg/errors"
)

// Breadcrumb is one step seen by a RecordingTracker
type Breadcrumb struct {
	Message  string
	Category string
	Level    errors.Level
	Data     map[string]interface{}
}

// RecordingTracker keeps everything sent to it so tests can assert on reported steps
type RecordingTracker struct {
	mu          sync.Mutex
	errs        []error
	messages    []string
	breadcrumbs []Breadcrumb
}

var _ errors.Tracker = (*RecordingTracker)(nil)

func (r *RecordingTracker) CaptureError(_ context.Context, err error, _ map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
	return nil
}

func (r *RecordingTracker) CaptureMessage(_ context.Context, message string, _ errors.Level, _ map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return nil
}

func (r *RecordingTracker) AddBreadcrumb(_ context.Context, message, category string, level errors.Level, data map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breadcrumbs = append(r.breadcrumbs, Breadcrumb{Message: message, Category: category, Level: level, Data: data})
}

func (r *RecordingTracker) Flush(context.Context) error { return nil }

// Breadcrumbs returns a copy of the recorded breadcrumbs in order
func (r *RecordingTracker) Breadcrumbs() []Breadcrumb {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Breadcrumb(nil), r.breadcrumbs...)
}

// Messages returns a copy of the captured messages
func (r *RecordingTracker) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

// Errors returns a copy of the captured errors
func (r *RecordingTracker) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}
