// Package uploader is the client side of image uploads: it validates a file
// locally, posts it to the upload endpoint and reports the resulting URL to
// its owner through a change callback.
//
// The progress value a Widget reports is simulated. It climbs toward 90% on
// a fixed timer while the request is in flight and jumps to 100% when the
// endpoint answers; it does not measure bytes on the wire.
package uploader

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"startup-cms/internal/upload"
)

// Phase is the widget's position in the upload lifecycle.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseValidating Phase = "validating"
	PhaseUploading  Phase = "uploading"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
)

const (
	// DefaultTickInterval is the period of the simulated progress timer.
	DefaultTickInterval = 100 * time.Millisecond
	// DefaultResetDelay is how long 100% stays visible after success.
	DefaultResetDelay = 600 * time.Millisecond

	progressCeiling = 90.0
)

// Messages shown to the user.
const (
	MsgNotImage   = "Please upload an image file"
	MsgTooLarge   = "Image must be less than 50MB"
	MsgGenericErr = "Failed to upload image"
)

// ErrBusy is returned by Upload while another upload is in flight.
var ErrBusy = errors.New("uploader: an upload is already in progress")

// State is a snapshot of the widget.
type State struct {
	Phase     Phase
	Progress  float64
	Uploading bool
	Err       string
	Value     string
}

// Uploader sends a file and returns its public URL. *Client implements it.
type Uploader interface {
	Upload(ctx context.Context, f File) (string, error)
}

// Widget drives one image field.
type Widget struct {
	uploader   Uploader
	onChange   func(string)
	onState    func(State)
	tick       time.Duration
	resetDelay time.Duration

	mu      sync.Mutex
	state   State
	attempt *attempt
	closed  bool
}

// Option configures a Widget.
type Option func(*Widget)

// WithValue sets the current field value.
func WithValue(v string) Option {
	return func(w *Widget) { w.state.Value = v }
}

// WithStateListener registers a function called after every state change.
// It runs with the widget lock held: it must return quickly and must not
// call back into the widget.
func WithStateListener(fn func(State)) Option {
	return func(w *Widget) { w.onState = fn }
}

// WithTiming overrides the progress tick interval and the post-success
// reset delay.
func WithTiming(tick, resetDelay time.Duration) Option {
	return func(w *Widget) {
		if tick > 0 {
			w.tick = tick
		}
		if resetDelay > 0 {
			w.resetDelay = resetDelay
		}
	}
}

// New returns an idle widget. onChange receives the new field value: the
// uploaded URL, or "" when the image is removed.
func New(u Uploader, onChange func(string), opts ...Option) *Widget {
	w := &Widget{
		uploader:   u,
		onChange:   onChange,
		tick:       DefaultTickInterval,
		resetDelay: DefaultResetDelay,
		state:      State{Phase: PhaseIdle},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State returns the current snapshot.
func (w *Widget) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Upload validates f, sends it and, on success, passes the URL to the change
// callback. Invalid files fail before any network call. Failures are not
// retried; the returned error's text is also stored in State.Err.
//
// A widget runs one upload at a time. Calls made while one is in flight
// return ErrBusy and leave the state untouched.
func (w *Widget) Upload(ctx context.Context, f File) (string, error) {
	w.mu.Lock()
	if w.state.Uploading {
		w.mu.Unlock()
		return "", ErrBusy
	}
	w.state.Phase = PhaseValidating
	w.state.Err = ""
	w.notifyLocked()

	if err := upload.CheckFile(f.ContentType, f.Size); err != nil {
		msg := MsgNotImage
		if errors.Is(err, upload.ErrTooLarge) {
			msg = MsgTooLarge
		}
		w.state.Phase = PhaseFailed
		w.state.Err = msg
		w.notifyLocked()
		w.mu.Unlock()
		return "", errors.New(msg)
	}

	w.state.Phase = PhaseUploading
	w.state.Uploading = true
	a := w.startAttemptLocked()
	w.notifyLocked()
	w.mu.Unlock()

	url, err := w.uploader.Upload(ctx, f)

	w.mu.Lock()
	w.state.Uploading = false

	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = MsgGenericErr
		}
		w.releaseLocked(a)
		w.state.Phase = PhaseFailed
		w.state.Err = msg
		w.state.Progress = 0
		w.notifyLocked()
		w.mu.Unlock()
		return "", errors.New(msg)
	}

	w.state.Value = url
	w.state.Phase = PhaseCompleted
	w.completeLocked(a)
	w.notifyLocked()
	w.mu.Unlock()

	if w.onChange != nil {
		w.onChange(url)
	}
	return url, nil
}

// Remove clears the field value through the change callback.
func (w *Widget) Remove() {
	w.mu.Lock()
	w.state.Value = ""
	w.notifyLocked()
	w.mu.Unlock()

	if w.onChange != nil {
		w.onChange("")
	}
}

// Close releases the progress timers. An upload already in flight is not
// aborted; it completes and reports as usual.
func (w *Widget) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if w.attempt != nil {
		w.releaseLocked(w.attempt)
	}
}

// nextProgress advances the simulated progress by one tick.
func nextProgress(p float64) float64 {
	if p >= progressCeiling {
		return p
	}
	inc := math.Max(0.5, (progressCeiling-p)*0.05)
	return math.Min(progressCeiling, p+inc)
}

// attempt owns the timers of a single upload.
type attempt struct {
	stop     chan struct{}
	stopOnce sync.Once
	reset    *time.Timer
}

func (a *attempt) halt() {
	a.stopOnce.Do(func() { close(a.stop) })
}

func (w *Widget) startAttemptLocked() *attempt {
	if w.attempt != nil {
		w.releaseLocked(w.attempt)
	}
	a := &attempt{stop: make(chan struct{})}
	w.attempt = a
	w.state.Progress = 0
	if w.closed {
		return a
	}

	go w.runProgress(a)
	return a
}

func (w *Widget) runProgress(a *attempt) {
	t := time.NewTicker(w.tick)
	defer t.Stop()

	for {
		select {
		case <-a.stop:
			return
		case <-t.C:
		}

		w.mu.Lock()
		if w.attempt != a || w.state.Phase != PhaseUploading {
			w.mu.Unlock()
			return
		}
		w.state.Progress = nextProgress(w.state.Progress)
		reached := w.state.Progress >= progressCeiling
		w.notifyLocked()
		w.mu.Unlock()

		if reached {
			return
		}
	}
}

// completeLocked shows 100% and schedules the reset to 0.
func (w *Widget) completeLocked(a *attempt) {
	a.halt()
	w.state.Progress = 100
	if w.closed {
		w.state.Progress = 0
		w.attempt = nil
		return
	}
	a.reset = time.AfterFunc(w.resetDelay, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.attempt != a {
			return
		}
		w.attempt = nil
		w.state.Progress = 0
		w.notifyLocked()
	})
}

func (w *Widget) releaseLocked(a *attempt) {
	a.halt()
	if a.reset != nil {
		a.reset.Stop()
	}
	if w.attempt == a {
		w.attempt = nil
	}
}

func (w *Widget) notifyLocked() {
	if w.onState != nil {
		w.onState(w.state)
	}
}
