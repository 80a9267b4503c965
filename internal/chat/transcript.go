package chat

import (
	"fmt"
	"time"

	"github.com/companionlabs/companion/internal/domain"
	"github.com/companionlabs/companion/internal/localtime"
)

// ElementKind distinguishes transcript entries.
type ElementKind string

const (
	// ElementMessage is a rendered chat message.
	ElementMessage ElementKind = "message"
	// ElementDivider is a date separator between calendar days.
	ElementDivider ElementKind = "divider"
)

// Element is one rendered entry in the chat log.
type Element struct {
	Kind       ElementKind
	Sender     domain.Sender
	SenderName string
	Body       string
	Clock      string
	Label      string // divider text
	Streaming  bool
}

// Transcript is the single chat-log container. Only the owning session's
// handlers mutate it, so no locking discipline is required beyond the
// session's own serialization.
type Transcript struct {
	zone        string
	elements    []Element
	lastDivider time.Time
	hasDivider  bool
	typing      bool
}

// NewTranscript creates a transcript that localizes timestamps into the
// given IANA zone. The zone is validated up front; an unknown identifier is
// a configuration error.
func NewTranscript(zone string) (*Transcript, error) {
	if _, err := time.LoadLocation(zone); err != nil {
		return nil, fmt.Errorf("transcript timezone: %w", err)
	}
	return &Transcript{zone: zone}, nil
}

// Append adds a message to the log in receipt order, inserting a date
// divider when the message's own local calendar date differs from the last
// divider emitted. Divider placement is a function of message timestamps,
// not wall-clock receive time.
func (t *Transcript) Append(msg domain.ChatMessage) error {
	if err := t.ensureDivider(msg.Timestamp); err != nil {
		return err
	}

	clock, err := localtime.Clock(msg.Timestamp, t.zone)
	if err != nil {
		return err
	}

	t.elements = append(t.elements, Element{
		Kind:       ElementMessage,
		Sender:     msg.Sender,
		SenderName: msg.SenderName,
		Body:       msg.Body,
		Clock:      clock,
	})
	return nil
}

func (t *Transcript) ensureDivider(ts time.Time) error {
	if t.hasDivider {
		same, err := localtime.SameCalendarDay(t.lastDivider, ts, t.zone)
		if err != nil {
			return err
		}
		if same {
			return nil
		}
	}

	label, err := localtime.CalendarDate(ts, t.zone)
	if err != nil {
		return err
	}
	t.elements = append(t.elements, Element{Kind: ElementDivider, Label: label})
	t.lastDivider = ts
	t.hasDivider = true
	return nil
}

// BeginStream appends the single mutable element that accumulates an agent
// reply. It returns the element index used by AppendChunk and Finalize.
func (t *Transcript) BeginStream(senderName string, ts time.Time) (int, error) {
	if err := t.ensureDivider(ts); err != nil {
		return 0, err
	}
	clock, err := localtime.Clock(ts, t.zone)
	if err != nil {
		return 0, err
	}
	t.elements = append(t.elements, Element{
		Kind:       ElementMessage,
		Sender:     domain.SenderAgent,
		SenderName: senderName,
		Clock:      clock,
		Streaming:  true,
	})
	return len(t.elements) - 1, nil
}

// AppendChunk concatenates a chunk onto a streaming element.
func (t *Transcript) AppendChunk(index int, chunk string) {
	if index < 0 || index >= len(t.elements) || !t.elements[index].Streaming {
		return
	}
	t.elements[index].Body += chunk
}

// Finalize replaces a streaming element's accumulated text with the
// canonical body and marks it complete.
func (t *Transcript) Finalize(index int, body string) {
	if index < 0 || index >= len(t.elements) || !t.elements[index].Streaming {
		return
	}
	t.elements[index].Body = body
	t.elements[index].Streaming = false
}

// ShowTyping displays the typing indicator. Creation is idempotent: at most
// one indicator instance exists.
func (t *Transcript) ShowTyping() {
	t.typing = true
}

// HideTyping removes the typing indicator if present.
func (t *Transcript) HideTyping() {
	t.typing = false
}

// TypingVisible reports whether the indicator is currently shown.
func (t *Transcript) TypingVisible() bool {
	return t.typing
}

// Elements returns the rendered log in order.
func (t *Transcript) Elements() []Element {
	out := make([]Element, len(t.elements))
	copy(out, t.elements)
	return out
}

// Len returns the number of rendered elements, dividers included.
func (t *Transcript) Len() int {
	return len(t.elements)
}
