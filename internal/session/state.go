// Package session owns the mutable state shared across the lifetime of a
// debate session: the transcript, the hot-takes list, the research result
// table and the researching set. All of it is created at session start and
// destroyed with the session; nothing persists across sessions.
package session

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/podiumhq/podium/internal/llm"
	"github.com/podiumhq/podium/internal/persona"
	"github.com/podiumhq/podium/internal/transcript"
)

// State is the session-owned shared state, passed by reference to every
// component. Hot-takes mutations rely on the single-active-speaker invariant
// for serialization; the mutex exists because the research goroutines touch
// the research table and researching set concurrently with the debate flow.
type State struct {
	Topic      string
	Roster     *persona.Roster
	Transcript *transcript.Store

	mu          sync.RWMutex
	hotTakes    []string
	research    map[int]llm.Finding
	researching map[int]struct{}

	log *logrus.Logger
}

// New creates session state for a topic and roster.
func New(topic string, roster *persona.Roster, logger *logrus.Logger) *State {
	if logger == nil {
		logger = logrus.New()
	}
	return &State{
		Topic:       topic,
		Roster:      roster,
		Transcript:  transcript.NewStore(),
		research:    make(map[int]llm.Finding),
		researching: make(map[int]struct{}),
		log:         logger,
	}
}

// SetResearching marks a persona as away researching; it is omitted from
// peers' participant lists until cleared.
func (s *State) SetResearching(personaID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.researching[personaID] = struct{}{}
}

// ClearResearching marks a persona as back in the room.
func (s *State) ClearResearching(personaID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.researching, personaID)
}

// IsResearching reports whether a persona is currently away researching.
func (s *State) IsResearching(personaID int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.researching[personaID]
	return ok
}

// SetFinding stores fresh research findings for a persona.
func (s *State) SetFinding(personaID int, f llm.Finding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.research[personaID] = f
}

// Finding returns a persona's stored findings, if any. Findings are consumed
// for prompting purposes but never deleted from the table.
func (s *State) Finding(personaID int) (llm.Finding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.research[personaID]
	return f, ok
}

// Findings returns a copy of the research result table.
func (s *State) Findings() map[int]llm.Finding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]llm.Finding, len(s.research))
	for id, f := range s.research {
		out[id] = f
	}
	return out
}
