// Package progress fans deployment step events out to live observers.
package progress

import "github.com/autodock-deploy/models"

// Sink receives step-level progress events. Implementations must be
// fire-and-forget: an unavailable observer never blocks or fails the
// deployment producing the events.
type Sink interface {
	Emit(deploymentID string, event models.ProgressEvent)
}

// NopSink discards all events
type NopSink struct{}

func (NopSink) Emit(string, models.ProgressEvent) {}
