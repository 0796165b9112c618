// Package transcript provides the ordered, append-only log of attributed
// debate messages and the per-speaker perspective transform over it. The
// store is the single source of truth for what was said by whom; it is shared
// by all personas and never forked.
package transcript

import (
	"fmt"
	"sync"
)

// Message roles.
const (
	RoleAssistant = "assistant"
	RoleUser      = "user"
)

// SpeakerUser is the speaker label for the human participant.
const SpeakerUser = "user"

// Message is one attributed transcript entry. Seq is assigned by the store
// and strictly increasing; Speaker is immutable after append.
type Message struct {
	Role    string `json:"role"`
	Speaker string `json:"speaker"`
	Content string `json:"content"`
	Seq     int    `json:"seq"`
}

// Store is the ordered transcript log. Appends are totally ordered by
// arrival; the only mutation besides append is Amend, the corrective path for
// empty or interrupted entries.
type Store struct {
	mu       sync.RWMutex
	messages []Message
	nextSeq  int
}

// NewStore creates an empty transcript store.
func NewStore() *Store {
	return &Store{}
}

// Append adds a message and returns it with its assigned sequence number.
func (s *Store) Append(role, speaker, content string) Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := Message{Role: role, Speaker: speaker, Content: content, Seq: s.nextSeq}
	s.nextSeq++
	s.messages = append(s.messages, msg)
	return msg
}

// Amend replaces the content of the message with the given sequence number.
// It is keyed by message identity, not position, and never touches the
// speaker label. Used only to fix up an empty or interrupted entry.
func (s *Store) Amend(seq int, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.messages {
		if s.messages[i].Seq == seq {
			s.messages[i].Content = content
			return nil
		}
	}
	return fmt.Errorf("no message with seq %d", seq)
}

// Messages returns a copy of the transcript in order.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// HasUserMessage reports whether any user-authored message exists.
func (s *Store) HasUserMessage() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.messages {
		if m.Role == RoleUser {
			return true
		}
	}
	return false
}
