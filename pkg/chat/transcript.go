package chat

import (
	"sync"

	"echobot/pkg/llm"
)

// Limits applied when the corresponding Limits field is zero.
const (
	DefaultMaxTurns      = 100
	DefaultMaxCharacters = 100000 // roughly 25k tokens
)

// Limits caps a transcript's growth. Zero fields take the defaults; negative
// fields disable that cap.
type Limits struct {
	MaxTurns      int
	MaxCharacters int
}

func (l Limits) withDefaults() Limits {
	if l.MaxTurns == 0 {
		l.MaxTurns = DefaultMaxTurns
	}
	if l.MaxCharacters == 0 {
		l.MaxCharacters = DefaultMaxCharacters
	}
	return l
}

// Transcript is one session's conversation history in the order the turns
// happened. It becomes the context window handed to the model on the chat
// fallback, so growth is bounded: once a cap is exceeded the oldest turns
// fall off the front.
type Transcript struct {
	mu     sync.RWMutex
	turns  []llm.Message
	chars  int
	limits Limits
}

// NewTranscript creates a transcript with the default limits.
func NewTranscript() *Transcript {
	return NewTranscriptWithLimits(Limits{})
}

// NewTranscriptWithLimits creates a transcript with custom limits.
func NewTranscriptWithLimits(limits Limits) *Transcript {
	return &Transcript{limits: limits.withDefaults()}
}

// Append records one turn, evicting the oldest turns if the transcript is
// over either cap.
func (t *Transcript) Append(role, content string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.turns = append(t.turns, llm.Message{Role: role, Content: content})
	t.chars += len(content)
	t.trim()
}

// trim drops turns from the front until both caps hold again. The newest
// turn is never dropped, even when it alone exceeds the character cap.
// Caller holds the write lock.
func (t *Transcript) trim() {
	overTurns := func() bool {
		return t.limits.MaxTurns > 0 && len(t.turns) > t.limits.MaxTurns
	}
	overChars := func() bool {
		return t.limits.MaxCharacters > 0 && t.chars > t.limits.MaxCharacters && len(t.turns) > 1
	}
	for overTurns() || overChars() {
		t.chars -= len(t.turns[0].Content)
		t.turns = t.turns[1:]
	}
}

// Messages returns the turns in order. The slice is a copy; callers may hand
// it straight to the model.
func (t *Transcript) Messages() []llm.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]llm.Message, len(t.turns))
	copy(out, t.turns)
	return out
}

// Clear empties the transcript, starting the session's context over.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.turns = nil
	t.chars = 0
}

// Stats is a transcript's current size against its caps.
type Stats struct {
	TurnCount     int `json:"turn_count"`
	TotalChars    int `json:"total_chars"`
	MaxTurns      int `json:"max_turns"`
	MaxCharacters int `json:"max_characters"`
}

// Stats reports the transcript's usage.
func (t *Transcript) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return Stats{
		TurnCount:     len(t.turns),
		TotalChars:    t.chars,
		MaxTurns:      t.limits.MaxTurns,
		MaxCharacters: t.limits.MaxCharacters,
	}
}
