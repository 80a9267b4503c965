// Package agent produces persona replies for chat rooms, streamed in chunks
// the way a companion "types".
package agent

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/companionlabs/companion/internal/persona"
)

// Config holds reply pacing configuration.
type Config struct {
	TypingSpeed time.Duration // delay between streamed chunks
	ThinkPause  time.Duration // delay before the first chunk
	ChunkSize   int           // characters per streamed chunk
}

// DefaultConfig returns the default pacing.
func DefaultConfig() Config {
	return Config{
		TypingSpeed: 75 * time.Millisecond,
		ThinkPause:  500 * time.Millisecond,
		ChunkSize:   12,
	}
}

// Request carries one user message to answer.
type Request struct {
	Persona string
	User    string
	Message string
	Room    string
}

// Chunk is one streamed piece of a reply. The final chunk carries the
// canonical full text.
type Chunk struct {
	StreamID string
	Persona  string
	Text     string
	Final    bool
}

// Responder generates streamed persona replies. The reply text here is
// template-based; a model-backed composer can replace Compose without
// touching the streaming contract.
type Responder struct {
	cfg Config
}

// NewResponder creates a responder with the given pacing. Zero values fall
// back to defaults.
func NewResponder(cfg Config) *Responder {
	def := DefaultConfig()
	if cfg.TypingSpeed <= 0 {
		cfg.TypingSpeed = def.TypingSpeed
	}
	if cfg.ThinkPause < 0 {
		cfg.ThinkPause = def.ThinkPause
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	return &Responder{cfg: cfg}
}

// openers gives each persona its voice. Unknown personas get the neutral
// fallback.
var openers = map[persona.ID]string{
	persona.Jill:     "Happy to help, %s.",
	persona.Zee:      "Ooh, %s, let's dive right in!",
	persona.Olivia:   "%s, here is the short version.",
	persona.Max:      "Ha! Good one, %s.",
	persona.Sean:     "Take a breath, %s. One step at a time.",
	persona.Frank:    "%s, in my experience...",
	persona.Sophia:   "I hear you, %s.",
	persona.Arlo:     "What if we looked at it sideways, %s?",
	persona.Buddy:    "Hey %s! Glad you asked.",
	persona.Leo:      "Let's keep it simple, %s.",
	persona.Dante:    "%s! Now we're talking!",
	persona.Grace:    "Of course, %s, happy to walk through it.",
	persona.Alex:     "Focusing in, %s.",
	persona.Kai:      "Interesting question, %s.",
	persona.Whiskers: "Purr... %s, let's see.",
}

// Compose builds the full reply text for a request.
func (r *Responder) Compose(req Request) string {
	opener := "Let me think about that, %s."
	if o, ok := openers[persona.ID(req.Persona)]; ok {
		opener = o
	}
	name := req.User
	if name == "" {
		name = "friend"
	}
	return fmt.Sprintf(opener, name) + " " +
		fmt.Sprintf("You said: %q — tell me more and we'll figure it out together.", strings.TrimSpace(req.Message))
}

// Reply streams the reply for a request as paced chunks, ending with a
// final chunk holding the canonical text. The iterator stops early when the
// context is canceled.
func (r *Responder) Reply(ctx context.Context, req Request) iter.Seq2[*Chunk, error] {
	return func(yield func(*Chunk, error) bool) {
		full := r.Compose(req)
		streamID := uuid.NewString()

		if r.cfg.ThinkPause > 0 {
			select {
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			case <-time.After(r.cfg.ThinkPause):
			}
		}

		runes := []rune(full)
		for start := 0; start < len(runes); start += r.cfg.ChunkSize {
			end := start + r.cfg.ChunkSize
			if end > len(runes) {
				end = len(runes)
			}
			chunk := &Chunk{StreamID: streamID, Persona: req.Persona, Text: string(runes[start:end])}
			if !yield(chunk, nil) {
				return
			}
			if end < len(runes) {
				select {
				case <-ctx.Done():
					yield(nil, ctx.Err())
					return
				case <-time.After(r.cfg.TypingSpeed):
				}
			}
		}

		yield(&Chunk{StreamID: streamID, Persona: req.Persona, Text: full, Final: true}, nil)
	}
}
