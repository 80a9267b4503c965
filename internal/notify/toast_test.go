package notify

import (
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) ToastChanged(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func TestNotifyIgnoresBlankMessages(t *testing.T) {
	sink := &recordingSink{}
	toaster := NewToaster(sink, time.Minute)

	toaster.Notify("", KindSuccess)
	toaster.Notify("   ", KindError)
	toaster.Notify("\t\n", KindSuccess)

	if got := len(sink.snapshot()); got != 0 {
		t.Errorf("Expected no events for blank messages, got %d", got)
	}
	if toaster.Current().Visible {
		t.Error("Expected widget to stay hidden")
	}
}

func TestNotifySetsKindAndHeader(t *testing.T) {
	sink := &recordingSink{}
	toaster := NewToaster(sink, time.Minute)

	toaster.Notify("saved", KindSuccess)

	cur := toaster.Current()
	if !cur.Visible {
		t.Fatal("Expected toast to be visible")
	}
	if cur.Message != "saved" || cur.Kind != KindSuccess || cur.Header != "Success" {
		t.Errorf("Unexpected state: %+v", cur)
	}

	toaster.Notify("boom", KindError)
	cur = toaster.Current()
	if cur.Message != "boom" || cur.Kind != KindError || cur.Header != "Error" {
		t.Errorf("Unexpected state after error toast: %+v", cur)
	}
}

func TestNotifyReplacesInsteadOfStacking(t *testing.T) {
	sink := &recordingSink{}
	toaster := NewToaster(sink, time.Minute)

	toaster.Notify("first", KindSuccess)
	toaster.Notify("second", KindError)

	events := sink.snapshot()
	if len(events) != 2 {
		t.Fatalf("Expected 2 show events, got %d", len(events))
	}
	for _, ev := range events {
		if !ev.Visible {
			t.Error("Expected no hide event between replacements")
		}
	}
	if toaster.Current().Message != "second" {
		t.Errorf("Expected second toast content, got %q", toaster.Current().Message)
	}
}

func TestAutoHideReturnsWidgetToHidden(t *testing.T) {
	sink := &recordingSink{}
	toaster := NewToaster(sink, 20*time.Millisecond)

	toaster.Notify("bye", KindSuccess)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !toaster.Current().Visible {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Toast never auto-hid")
}

func TestDismissHidesImmediately(t *testing.T) {
	toaster := NewToaster(nil, time.Minute)

	toaster.Notify("soon gone", KindSuccess)
	toaster.Dismiss()

	if toaster.Current().Visible {
		t.Error("Expected toast hidden after Dismiss")
	}
}
