// Package persona holds the debate participant roster: fixed-identity
// personas, their stance prompts and the per-session voice assignment.
package persona

import "strings"

// Gender values used for voice selection.
const (
	GenderFemale = "female"
	GenderMale   = "male"
)

// Voices maps gender to the available voice identifiers.
var Voices = map[string][]string{
	GenderFemale: {"Ara", "Eve", "Una"},
	GenderMale:   {"Rex", "Sal", "Leo"},
}

// DefaultVoice is used when a gender has no voice options.
const DefaultVoice = "eve"

// Persona is a debate participant with a fixed identity. Immutable once
// generated; referenced, never copied mutably, by every speaker instance.
type Persona struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Prompt      string `json:"-"`
	Gender      string `json:"gender"`
	Description string `json:"description"`
}

// SelectVoice picks a deterministic voice for a persona by gender and id.
func SelectVoice(p Persona) string {
	return SelectVoiceFrom(Voices, p)
}

// SelectVoiceFrom picks a voice from the given gender tables.
func SelectVoiceFrom(tables map[string][]string, p Persona) string {
	options := tables[p.Gender]
	if len(options) == 0 {
		return DefaultVoice
	}
	return strings.ToLower(options[p.ID%len(options)])
}

// Roster is the immutable set of personas for one session plus the voice
// assignment computed once at generation time.
type Roster struct {
	personas []Persona
	voices   map[int]string
}

// NewRoster builds a roster and assigns voices from the default tables.
func NewRoster(personas []Persona) *Roster {
	return NewRosterWithVoices(personas, Voices)
}

// NewRosterWithVoices builds a roster assigning voices from the given gender
// tables. The assignment is computed once here and immutable afterwards.
func NewRosterWithVoices(personas []Persona, tables map[string][]string) *Roster {
	if tables == nil {
		tables = Voices
	}
	voices := make(map[int]string, len(personas))
	for _, p := range personas {
		voices[p.ID] = SelectVoiceFrom(tables, p)
	}
	return &Roster{personas: personas, voices: voices}
}

// Personas returns the roster members in generation order.
func (r *Roster) Personas() []Persona {
	return r.personas
}

// First returns the roster's first persona.
func (r *Roster) First() Persona {
	return r.personas[0]
}

// Voice returns the voice assigned to a persona id.
func (r *Roster) Voice(id int) string {
	if v, ok := r.voices[id]; ok {
		return v
	}
	return DefaultVoice
}

// ByName finds a persona by case-insensitive exact name match.
func (r *Roster) ByName(name string) (Persona, bool) {
	for _, p := range r.personas {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Persona{}, false
}
