// Package inject delivers TranscriptionEvents to their final destination.
// Implementations are free to batch or buffer (spec §4.10); Swictation's
// defaults stay within scope by never invoking an external process.
package inject

import (
	"fmt"
	"log"

	"github.com/agalue/swictation/internal/swicterr"
	"github.com/agalue/swictation/internal/transform"
)

// Injector is the boundary contract the pipeline calls for every event a
// completed segment produces.
type Injector interface {
	Inject(event transform.TranscriptionEvent) error
}

// LogInjector writes each event to the standard logger — useful for local
// testing and as the degenerate default when no real injector is configured.
type LogInjector struct{}

// NewLogInjector returns an Injector that logs every event it receives.
func NewLogInjector() *LogInjector { return &LogInjector{} }

func (l *LogInjector) Inject(event transform.TranscriptionEvent) error {
	if event.Kind == transform.EventKeyAction {
		log.Printf("⌨️  key: %s", event.Key)
		return nil
	}
	log.Printf("🔤 text: %q", event.Text)
	return nil
}

// ChannelInjector hands each event to a bounded channel for an external
// consumer (e.g. the control-plane status endpoint, or a future OS text
// injector) to drain, matching the teacher's buffered-channel/non-blocking-
// send convention for cross-goroutine handoff.
type ChannelInjector struct {
	events chan transform.TranscriptionEvent
	drops  int
}

// NewChannelInjector returns a ChannelInjector with the given channel
// capacity.
func NewChannelInjector(capacity int) *ChannelInjector {
	return &ChannelInjector{events: make(chan transform.TranscriptionEvent, capacity)}
}

// Events returns the channel consumers should range over.
func (c *ChannelInjector) Events() <-chan transform.TranscriptionEvent { return c.events }

// Drops reports how many events were discarded because the channel was full.
func (c *ChannelInjector) Drops() int { return c.drops }

func (c *ChannelInjector) Inject(event transform.TranscriptionEvent) error {
	select {
	case c.events <- event:
		return nil
	default:
		c.drops++
		return swicterr.Injector("inject.ChannelInjector.Inject", fmt.Errorf("event queue full, dropped %s event", kindName(event.Kind)))
	}
}

// Close closes the underlying channel; callers must stop sending afterward.
func (c *ChannelInjector) Close() { close(c.events) }

func kindName(k transform.EventKind) string {
	if k == transform.EventKeyAction {
		return "key"
	}
	return "text"
}
