// Package lifecycle drives the single upload session through file
// selection, extraction and result handling.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pdftext/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// recordTimeout bounds how long a journal write may take.
const recordTimeout = 5 * time.Second

// Renderer reflects session snapshots into a user interface.
// OnStateChange is invoked after every transition, in transition order,
// while the controller holds its lock. Implementations must not call
// back into the Controller synchronously.
type Renderer interface {
	OnStateChange(session models.UploadSession)
}

// RendererFunc adapts a plain function to Renderer.
type RendererFunc func(session models.UploadSession)

// OnStateChange calls f(session).
func (f RendererFunc) OnStateChange(session models.UploadSession) { f(session) }

type nopRenderer struct{}

func (nopRenderer) OnStateChange(models.UploadSession) {}

// ExtractionService turns a selected file into text. The returned channel
// yields progress events followed by exactly one terminal event. Senders
// must stop sending once ctx is done.
type ExtractionService interface {
	Extract(ctx context.Context, file models.FileDescriptor) <-chan models.ExtractionEvent
}

// AttemptRecorder receives every settled extraction attempt.
type AttemptRecorder interface {
	Record(ctx context.Context, attempt models.Attempt) error
}

// Options configures a Controller.
type Options struct {
	// MaxFileSize is the largest accepted file in bytes. Required.
	MaxFileSize int64
	// Timeout fails an extraction that has not settled in time. Zero disables it.
	Timeout time.Duration
	// Engine names the extraction service in journal records.
	Engine   string
	Renderer Renderer
	Recorder AttemptRecorder
	Logger   *logrus.Logger
	// OnRelease is called when a file leaves the session.
	OnRelease func(file models.FileDescriptor)
}

// Controller owns the upload session state machine.
type Controller struct {
	mu      sync.Mutex
	opts    Options
	service ExtractionService
	log     *logrus.Entry

	session models.UploadSession
	seq     uint64
	cancel  context.CancelFunc
	started time.Time
}

// NewController creates a controller in the Idle state.
func NewController(service ExtractionService, opts Options) (*Controller, error) {
	if service == nil {
		return nil, errors.New("extraction service is required")
	}
	if opts.MaxFileSize <= 0 {
		return nil, fmt.Errorf("max file size must be configured explicitly (got %d)", opts.MaxFileSize)
	}
	if opts.Renderer == nil {
		opts.Renderer = nopRenderer{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Controller{
		opts:    opts,
		service: service,
		log:     logger.WithField("component", "lifecycle"),
		session: models.NewUploadSession(),
	}, nil
}

// MaxFileSize returns the configured size limit in bytes.
func (c *Controller) MaxFileSize() int64 {
	return c.opts.MaxFileSize
}

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot() models.UploadSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

// SelectFile validates a candidate file and makes it the session's file.
// An invalid candidate moves the session to Error and leaves the
// previously selected file in place.
func (c *Controller) SelectFile(file models.FileDescriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.State == models.StateProcessing {
		return preconditionError("selecting a file", c.session.State)
	}

	if err := c.validate(file); err != nil {
		c.log.WithFields(logrus.Fields{
			"file": file.Name,
			"kind": err.Kind,
		}).Info("Rejected file selection")
		c.enterErrorLocked(err)
		return err
	}

	prev := c.session.File
	c.session = models.UploadSession{
		State:     models.StateFileSelected,
		File:      &file,
		Attempt:   c.seq,
		UpdatedAt: time.Now(),
	}
	if prev != nil && prev.ID != file.ID {
		c.releaseLocked(*prev)
	}

	c.log.WithFields(logrus.Fields{
		"file": file.Name,
		"size": file.SizeBytes,
	}).Info("File selected")
	c.notifyLocked()
	return nil
}

func (c *Controller) validate(file models.FileDescriptor) *Error {
	if file.MimeType != models.PDFMimeType {
		return newError(KindInvalidFileType, "%q has type %q; only %s files are accepted",
			file.Name, file.MimeType, models.PDFMimeType)
	}
	if file.SizeBytes < 0 {
		return newError(KindInvalidFileType, "%q reports a negative size", file.Name)
	}
	if file.SizeBytes > c.opts.MaxFileSize {
		return newError(KindFileTooLarge, "%q is %d bytes; the maximum file size is %d bytes",
			file.Name, file.SizeBytes, c.opts.MaxFileSize)
	}
	return nil
}

// StartExtraction begins extracting the selected file. It returns as soon
// as the attempt is scheduled; progress and the outcome are delivered to
// the renderer. At most one extraction is in flight.
func (c *Controller) StartExtraction() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.State != models.StateFileSelected || c.session.File == nil {
		return preconditionError("starting an extraction", c.session.State)
	}

	c.seq++
	seq := c.seq
	file := *c.session.File

	var ctx context.Context
	if c.opts.Timeout > 0 {
		ctx, c.cancel = context.WithTimeout(context.Background(), c.opts.Timeout)
	} else {
		ctx, c.cancel = context.WithCancel(context.Background())
	}
	c.started = time.Now()

	c.session.State = models.StateProcessing
	c.session.ProgressPercent = 0
	c.session.Attempt = seq
	c.session.UpdatedAt = c.started

	c.log.WithFields(logrus.Fields{
		"attempt": seq,
		"file":    file.Name,
	}).Info("Extraction started")
	c.notifyLocked()

	go c.run(ctx, seq, file)
	return nil
}

func (c *Controller) run(ctx context.Context, seq uint64, file models.FileDescriptor) {
	defer func() {
		if r := recover(); r != nil {
			c.log.WithField("attempt", seq).Errorf("Extraction panicked: %v", r)
			c.settle(seq, nil, newError(KindExtractionFailure, "extraction panicked: %v", r))
		}
	}()

	events := c.service.Extract(ctx, file)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					c.settleContext(ctx, seq)
					return
				}
				c.settle(seq, nil, newError(KindExtractionFailure, "extraction ended without a result"))
				return
			}
			switch {
			case ev.Err != nil:
				if ctx.Err() != nil {
					c.settleContext(ctx, seq)
					return
				}
				c.settle(seq, nil, &Error{Kind: KindExtractionFailure, Message: "text extraction failed", Err: ev.Err})
				return
			case ev.Result != nil:
				c.settle(seq, ev.Result, nil)
				return
			default:
				c.progress(seq, ev.Progress)
			}
		case <-ctx.Done():
			c.settleContext(ctx, seq)
			return
		}
	}
}

// settleContext settles an attempt whose context ended. A cancelled
// context means the session already moved on, so only deadlines count.
func (c *Controller) settleContext(ctx context.Context, seq uint64) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		c.settle(seq, nil, newError(KindTimeout, "extraction did not finish within %s", c.opts.Timeout))
		return
	}
	c.log.WithField("attempt", seq).Debug("Extraction context cancelled")
}

func (c *Controller) progress(seq uint64, percent int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isCurrentLocked(seq) {
		c.log.WithField("attempt", seq).Debug("Discarded stale progress")
		return
	}

	percent = min(max(percent, 0), 100)
	if percent <= c.session.ProgressPercent {
		return
	}
	c.session.ProgressPercent = percent
	c.session.UpdatedAt = time.Now()
	c.notifyLocked()
}

func (c *Controller) settle(seq uint64, result *models.ExtractionResult, lerr *Error) {
	c.mu.Lock()

	if !c.isCurrentLocked(seq) {
		c.mu.Unlock()
		c.log.WithField("attempt", seq).Debug("Discarded stale extraction outcome")
		return
	}

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	file := *c.session.File
	if lerr == nil && strings.TrimSpace(result.Text) == "" {
		lerr = newError(KindExtractionFailure, "no text could be extracted from %q", file.Name)
	}

	attempt := c.attemptLocked(file)
	if lerr != nil {
		attempt.Outcome = models.OutcomeFailed
		if lerr.Kind == KindTimeout {
			attempt.Outcome = models.OutcomeTimeout
		}
		attempt.ErrorKind = string(lerr.Kind)

		c.log.WithFields(logrus.Fields{
			"attempt": seq,
			"file":    file.Name,
			"kind":    lerr.Kind,
		}).WithError(lerr).Warn("Extraction failed")
		c.enterErrorLocked(lerr)
	} else {
		attempt.Outcome = models.OutcomeCompleted
		attempt.PageCount = result.PageCount
		attempt.WordCount = result.WordCount

		c.session.State = models.StateResult
		c.session.ExtractedText = result.Text
		c.session.PageCount = result.PageCount
		c.session.WordCount = result.WordCount
		c.session.ProgressPercent = 100
		c.session.UpdatedAt = time.Now()

		c.log.WithFields(logrus.Fields{
			"attempt":  seq,
			"file":     file.Name,
			"pages":    result.PageCount,
			"words":    result.WordCount,
			"duration": time.Since(c.started).Round(time.Millisecond),
		}).Info("Extraction complete")
		c.notifyLocked()
	}
	c.mu.Unlock()

	c.record(attempt)
}

// Cancel aborts an in-flight extraction and returns the session to Idle.
func (c *Controller) Cancel() {
	c.mu.Lock()
	aborted := c.resetLocked("cancel")
	c.mu.Unlock()
	c.recordAborted(aborted)
}

// Reset discards the file and any outcome and returns to Idle.
func (c *Controller) Reset() {
	c.mu.Lock()
	aborted := c.resetLocked("reset")
	c.mu.Unlock()
	c.recordAborted(aborted)
}

// Escape returns to Idle unless an extraction is in flight.
func (c *Controller) Escape() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.State == models.StateProcessing {
		return preconditionError("escape", c.session.State)
	}
	c.resetLocked("escape")
	return nil
}

// Close aborts any in-flight extraction and returns the session to Idle.
func (c *Controller) Close() {
	c.mu.Lock()
	aborted := c.resetLocked("close")
	c.mu.Unlock()
	c.recordAborted(aborted)
}

func (c *Controller) resetLocked(reason string) *models.Attempt {
	var aborted *models.Attempt
	if c.session.State == models.StateProcessing {
		attempt := c.attemptLocked(*c.session.File)
		attempt.Outcome = models.OutcomeCancelled
		aborted = &attempt

		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
		// Invalidates callbacks still in flight for the aborted attempt.
		c.seq++
	}

	if c.session.File != nil {
		c.releaseLocked(*c.session.File)
	}

	c.session = models.NewUploadSession()
	c.session.Attempt = c.seq

	c.log.WithFields(logrus.Fields{
		"reason":  reason,
		"aborted": aborted != nil,
	}).Info("Session reset")
	c.notifyLocked()
	return aborted
}

func (c *Controller) recordAborted(attempt *models.Attempt) {
	if attempt != nil {
		c.record(*attempt)
	}
}

func (c *Controller) isCurrentLocked(seq uint64) bool {
	return seq == c.seq && c.session.State == models.StateProcessing
}

func (c *Controller) enterErrorLocked(err *Error) {
	c.session.State = models.StateError
	c.session.ErrorKind = string(err.Kind)
	c.session.ErrorMessage = err.Detail()
	c.session.ExtractedText = ""
	c.session.PageCount = 0
	c.session.WordCount = 0
	c.session.ProgressPercent = 0
	c.session.UpdatedAt = time.Now()
	c.notifyLocked()
}

func (c *Controller) attemptLocked(file models.FileDescriptor) models.Attempt {
	return models.Attempt{
		Seq:        c.session.Attempt,
		FileName:   file.Name,
		SizeBytes:  file.SizeBytes,
		Engine:     c.opts.Engine,
		StartedAt:  c.started,
		FinishedAt: time.Now(),
	}
}

func (c *Controller) releaseLocked(file models.FileDescriptor) {
	if c.opts.OnRelease != nil {
		c.opts.OnRelease(file)
	}
}

// notifyLocked runs with c.mu held, so a panicking renderer is contained
// here instead of unwinding through the lock holder.
func (c *Controller) notifyLocked() {
	defer func() {
		if r := recover(); r != nil {
			c.log.WithFields(logrus.Fields{
				"attempt": c.session.Attempt,
				"state":   c.session.State,
			}).Errorf("Renderer panicked: %v", r)
		}
	}()
	c.opts.Renderer.OnStateChange(c.session.Clone())
}

func (c *Controller) record(attempt models.Attempt) {
	if c.opts.Recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := c.opts.Recorder.Record(ctx, attempt); err != nil {
		c.log.WithError(err).WithField("attempt", attempt.Seq).Warn("Failed to record extraction attempt")
	}
}
