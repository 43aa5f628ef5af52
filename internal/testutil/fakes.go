// fakes.go - Renderer, engine and journal fakes for lifecycle tests
package testutil

import (
	"context"
	"sync"

	"github.com/pdftext/backend/internal/models"
)

// RecordingRenderer keeps every snapshot it is shown.
type RecordingRenderer struct {
	mu        sync.Mutex
	snapshots []models.UploadSession
}

// NewRecordingRenderer creates an empty recorder
func NewRecordingRenderer() *RecordingRenderer {
	return &RecordingRenderer{}
}

func (r *RecordingRenderer) OnStateChange(session models.UploadSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, session)
}

// Snapshots returns a copy of all recorded snapshots
func (r *RecordingRenderer) Snapshots() []models.UploadSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.UploadSession(nil), r.snapshots...)
}

// States returns the state of each recorded snapshot
func (r *RecordingRenderer) States() []models.SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	states := make([]models.SessionState, len(r.snapshots))
	for i, s := range r.snapshots {
		states[i] = s.State
	}
	return states
}

// Saw reports whether any snapshot had the given state
func (r *RecordingRenderer) Saw(state models.SessionState) bool {
	for _, s := range r.States() {
		if s == state {
			return true
		}
	}
	return false
}

// ScriptedEngine is an extraction service whose streams are fed by the test.
type ScriptedEngine struct {
	mu      sync.Mutex
	streams []chan models.ExtractionEvent
	ctxs    []context.Context
	files   []models.FileDescriptor
}

// NewScriptedEngine creates an engine with no calls yet
func NewScriptedEngine() *ScriptedEngine {
	return &ScriptedEngine{}
}

func (e *ScriptedEngine) Extract(ctx context.Context, file models.FileDescriptor) <-chan models.ExtractionEvent {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan models.ExtractionEvent, 64)
	e.streams = append(e.streams, ch)
	e.ctxs = append(e.ctxs, ctx)
	e.files = append(e.files, file)
	return ch
}

// Calls returns how many extractions were requested
func (e *ScriptedEngine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.streams)
}

// Stream returns the event channel of the i-th call
func (e *ScriptedEngine) Stream(i int) chan<- models.ExtractionEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.streams[i]
}

// Context returns the context passed to the i-th call
func (e *ScriptedEngine) Context(i int) context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctxs[i]
}

// File returns the descriptor passed to the i-th call
func (e *ScriptedEngine) File(i int) models.FileDescriptor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.files[i]
}

// Progress sends a progress event on the i-th stream
func (e *ScriptedEngine) Progress(i, percent int) {
	e.Stream(i) <- models.ExtractionEvent{Progress: percent}
}

// Succeed sends a terminal result on the i-th stream
func (e *ScriptedEngine) Succeed(i int, text string) {
	e.Stream(i) <- models.ExtractionEvent{Result: &models.ExtractionResult{Text: text, PageCount: 1, WordCount: 1}}
}

// Fail sends a terminal error on the i-th stream
func (e *ScriptedEngine) Fail(i int, err error) {
	e.Stream(i) <- models.ExtractionEvent{Err: err}
}

// MemoryJournal records attempts in memory.
type MemoryJournal struct {
	mu       sync.Mutex
	attempts []models.Attempt
}

func (j *MemoryJournal) Record(_ context.Context, attempt models.Attempt) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.attempts = append(j.attempts, attempt)
	return nil
}

// Attempts returns a copy of the recorded attempts
func (j *MemoryJournal) Attempts() []models.Attempt {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]models.Attempt(nil), j.attempts...)
}
