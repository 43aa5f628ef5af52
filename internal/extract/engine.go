// Package extract provides the extraction engines plugged into the
// lifecycle controller.
package extract

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pdftext/backend/internal/models"
)

// Engine produces an event stream for a selected file.
type Engine interface {
	// Name returns the unique name of the engine.
	Name() string
	// Extract streams progress and exactly one terminal event, then closes
	// the channel. It stops early once ctx is done.
	Extract(ctx context.Context, file models.FileDescriptor) <-chan models.ExtractionEvent
}

// Registry holds the available engines by name.
type Registry struct {
	engines map[string]Engine
}

// NewRegistry creates a registry holding the given engines.
func NewRegistry(engines ...Engine) *Registry {
	r := &Registry{engines: make(map[string]Engine)}
	for _, e := range engines {
		r.Register(e)
	}
	return r
}

// Register adds an engine. A later engine with the same name replaces
// the earlier one.
func (r *Registry) Register(e Engine) {
	r.engines[strings.ToLower(e.Name())] = e
}

// Get returns an engine by its name.
func (r *Registry) Get(name string) (Engine, error) {
	if e, ok := r.engines[strings.ToLower(strings.TrimSpace(name))]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("extraction engine not found: %q (available: %s)", name, strings.Join(r.Names(), ", "))
}

// Names returns the registered engine names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// emit sends ev unless ctx is done first.
func emit(ctx context.Context, ch chan<- models.ExtractionEvent, ev models.ExtractionEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func countWords(text string) int {
	return len(strings.Fields(text))
}
