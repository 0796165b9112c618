package transcript

import "fmt"

// ForSpeaker derives the given persona's view of the transcript: messages it
// authored become assistant-role with untouched content, everything else
// (other personas and the user) becomes user-role with an attribution prefix
// identifying the original speaker. Pure function over a copy; the source
// messages are never mutated.
func ForSpeaker(messages []Message, personaName string) []Message {
	out := make([]Message, len(messages))
	for i, m := range messages {
		if m.Speaker == personaName {
			out[i] = Message{
				Role:    RoleAssistant,
				Speaker: personaName,
				Content: m.Content,
				Seq:     m.Seq,
			}
			continue
		}
		out[i] = Message{
			Role:    RoleUser,
			Speaker: m.Speaker,
			Content: fmt.Sprintf("*%s says* %s", m.Speaker, m.Content),
			Seq:     m.Seq,
		}
	}
	return out
}
