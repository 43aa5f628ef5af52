package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pdftext/backend/internal/models"
)

const (
	demoBytesPerPage = 100 << 10
	demoMaxPages     = 50
	demoWordsPerPage = 250
	demoProgressStep = 10
)

const loremIpsum = "Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod tempor " +
	"incididunt ut labore et dolore magna aliqua. Ut enim ad minim veniam, quis nostrud " +
	"exercitation ullamco laboris nisi ut aliquip ex ea commodo consequat. Duis aute irure " +
	"dolor in reprehenderit in voluptate velit esse cillum dolore eu fugiat nulla pariatur. " +
	"Excepteur sint occaecat cupidatat non proident, sunt in culpa qui officia deserunt " +
	"mollit anim id est laborum."

// DemoEngine is a deterministic stand-in for a real extraction engine.
// It reports progress in fixed steps and returns a text block derived
// from the file name and size.
type DemoEngine struct {
	tick time.Duration
}

// NewDemoEngine creates a demo engine that waits tick between progress steps.
func NewDemoEngine(tick time.Duration) *DemoEngine {
	return &DemoEngine{tick: tick}
}

func (e *DemoEngine) Name() string { return "demo" }

func (e *DemoEngine) Extract(ctx context.Context, file models.FileDescriptor) <-chan models.ExtractionEvent {
	ch := make(chan models.ExtractionEvent)

	go func() {
		defer close(ch)

		var timer *time.Timer
		for p := 0; p <= 100; p += demoProgressStep {
			if p > 0 && e.tick > 0 {
				if timer == nil {
					timer = time.NewTimer(e.tick)
					defer timer.Stop()
				} else {
					timer.Reset(e.tick)
				}
				select {
				case <-timer.C:
				case <-ctx.Done():
					return
				}
			}
			if !emit(ctx, ch, models.ExtractionEvent{Progress: p}) {
				return
			}
		}

		emit(ctx, ch, models.ExtractionEvent{Result: DemoResult(file)})
	}()

	return ch
}

// DemoResult builds the canned extraction result for a file.
func DemoResult(file models.FileDescriptor) *models.ExtractionResult {
	pages := min(1+int(file.SizeBytes/demoBytesPerPage), demoMaxPages)
	words := pages * demoWordsPerPage

	var b strings.Builder
	fmt.Fprintf(&b, "Extracted text from %s\n", file.Name)
	fmt.Fprintf(&b, "Pages: %d | Words: %d | Size: %d bytes\n", pages, words, file.SizeBytes)
	for i := 1; i <= pages; i++ {
		fmt.Fprintf(&b, "\n--- Page %d ---\n%s\n", i, loremIpsum)
	}

	return &models.ExtractionResult{
		Text:      strings.TrimSpace(b.String()),
		PageCount: pages,
		WordCount: words,
	}
}
