package debate

import (
	"fmt"
	"strings"

	"github.com/podiumhq/podium/internal/llm"
	"github.com/podiumhq/podium/internal/persona"
	"github.com/podiumhq/podium/internal/session"
	"github.com/podiumhq/podium/internal/transcript"
)

// Speaker is the ephemeral value object bound to (topic, persona, roster,
// session state). One is built on every handoff and discarded on the next;
// it is never mutated in place, so its instructions and transcript view are
// always derived fresh from current shared state.
type Speaker struct {
	Persona persona.Persona
	state   *session.State
}

// NewSpeaker builds a speaker for the persona against current session state.
func NewSpeaker(p persona.Persona, state *session.State) *Speaker {
	return &Speaker{Persona: p, state: state}
}

// Voice returns the speaker's assigned voice.
func (s *Speaker) Voice() string {
	return s.state.Roster.Voice(s.Persona.ID)
}

// Instructions renders the system prompt from current shared state: the
// other-participants list (omitting personas away researching), the hot-takes
// block, and the speaker's fresh research findings when present.
func (s *Speaker) Instructions() string {
	others := make([]string, 0)
	for _, p := range s.state.Roster.Personas() {
		if p.Name == s.Persona.Name || s.state.IsResearching(p.ID) {
			continue
		}
		others = append(others, p.Name)
	}
	participants := strings.Join(others, ", ") + ", and User"

	instructions := fmt.Sprintf(agentInstructions,
		s.Persona.Name,
		s.state.Topic,
		s.Persona.Prompt,
		participants,
		session.MaxHotTakes,
		s.hotTakesBlock(),
	)

	if finding, ok := s.state.Finding(s.Persona.ID); ok {
		instructions += fmt.Sprintf(researchFindingsPrompt, finding.Take, finding.Explanation)
	}
	return instructions
}

func (s *Speaker) hotTakesBlock() string {
	takes := s.state.HotTakes()
	if len(takes) == 0 {
		return "(none yet)"
	}
	lines := make([]string, len(takes))
	for i, t := range takes {
		lines[i] = "- " + t
	}
	return strings.Join(lines, "\n")
}

// History returns this speaker's perspective view of the transcript as model
// chat messages.
func (s *Speaker) History() []llm.ChatMessage {
	view := transcript.ForSpeaker(s.state.Transcript.Messages(), s.Persona.Name)
	history := make([]llm.ChatMessage, len(view))
	for i, m := range view {
		history[i] = llm.ChatMessage{Role: m.Role, Content: m.Content}
	}
	return history
}
