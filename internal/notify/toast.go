// Package notify implements the shared toast banner used for transient
// success and error feedback.
package notify

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Kind selects the toast styling.
type Kind string

const (
	// KindSuccess renders the green confirmation banner.
	KindSuccess Kind = "success"
	// KindError renders the red failure banner.
	KindError Kind = "error"
)

// Header returns the banner title shown for this kind.
func (k Kind) Header() string {
	if k == KindError {
		return "Error"
	}
	return "Success"
}

// Event describes one visible state change of the toast widget.
type Event struct {
	Visible bool
	Message string
	Kind    Kind
	Header  string
}

// Sink receives toast state changes. The transcript renderer and tests
// observe the widget through this interface.
type Sink interface {
	ToastChanged(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// ToastChanged implements Sink.
func (f SinkFunc) ToastChanged(ev Event) { f(ev) }

// DefaultVisibleDuration is how long a toast stays on screen before the
// auto-hide returns it to the hidden state.
const DefaultVisibleDuration = 4 * time.Second

// Toaster owns the page's single toast widget. A new Notify while a toast is
// visible replaces its content rather than stacking a second banner.
type Toaster struct {
	mu       sync.Mutex
	sink     Sink
	duration time.Duration
	hide     *time.Timer
	current  Event
}

// NewToaster creates a toaster that reports state changes to sink. A zero
// duration falls back to DefaultVisibleDuration.
func NewToaster(sink Sink, duration time.Duration) *Toaster {
	if duration <= 0 {
		duration = DefaultVisibleDuration
	}
	return &Toaster{sink: sink, duration: duration}
}

// Notify shows the toast with the given message and kind. Empty or
// whitespace-only messages are ignored.
func (t *Toaster) Notify(message string, kind Kind) {
	if strings.TrimSpace(message) == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Replace any pending auto-hide so the new content gets a full window.
	if t.hide != nil {
		t.hide.Stop()
	}

	t.current = Event{
		Visible: true,
		Message: message,
		Kind:    kind,
		Header:  kind.Header(),
	}
	t.emit(t.current)

	t.hide = time.AfterFunc(t.duration, t.autoHide)
}

// Current returns the widget's present state.
func (t *Toaster) Current() Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Dismiss hides the toast immediately.
func (t *Toaster) Dismiss() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hide != nil {
		t.hide.Stop()
		t.hide = nil
	}
	t.hideLocked()
}

func (t *Toaster) autoHide() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hide = nil
	t.hideLocked()
}

func (t *Toaster) hideLocked() {
	if !t.current.Visible {
		return
	}
	t.current = Event{}
	t.emit(t.current)
}

func (t *Toaster) emit(ev Event) {
	if t.sink == nil {
		slog.Debug("Toast state change with no sink attached", "visible", ev.Visible)
		return
	}
	t.sink.ToastChanged(ev)
}
