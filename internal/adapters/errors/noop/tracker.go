// Package noop drops every event. It backs the tracker when SENTRY_DSN is unset.
package noop

import (
	"context"

	"soilsense/pkg/errors"
)

// Tracker discards errors, messages and breadcrumbs
type Tracker struct{}

var _ errors.Tracker = Tracker{}

// New returns a tracker that records nothing
func New() *Tracker { return &Tracker{} }

func (Tracker) CaptureError(context.Context, error, map[string]string) error { return nil }

func (Tracker) CaptureMessage(context.Context, string, errors.Level, map[string]string) error {
	return nil
}

func (Tracker) AddBreadcrumb(context.Context, string, string, errors.Level, map[string]interface{}) {}

func (Tracker) Flush(context.Context) error { return nil }
