package persona

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/podiumhq/podium/internal/llm"
)

const generationPrompt = `Topic: "%s"

%s

Create %d debaters who will genuinely clash.

Each persona represents a DIFFERENT core value under threat:
- security vs freedom, tradition vs progress, individual vs collective, pragmatism vs principle

Requirements:
- Skin in the game: what do they LOSE if wrong?
- A chip on their shoulder — something specific that drives them
- Voice: sharp, no hedging. "Look, I've seen what happens when..." not "I believe we should consider..."

Ban: passionate, innovative, holistic, synergy, leverage, ecosystem, "the power of"

These are people with opinions forged by experience, not downloaded from think tanks.

Output JSON:
{"personas": [{"name": "...", "prompt": "...", "description": "..."}]}

name: human first name matching gender. prompt: system prompt for the persona's
stance, argumentation style and rhetorical tactics (3-5 sentences).
description: public one-sentence bio for the UI.`

// Generator creates a debate roster from a topic via the language model.
type Generator struct {
	gen    llm.Generator
	voices map[string][]string
	log    *logrus.Logger
}

// NewGenerator creates a roster generator.
func NewGenerator(gen llm.Generator, logger *logrus.Logger) *Generator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Generator{gen: gen, log: logger}
}

// WithVoices overrides the gender voice tables used for assignment. Nil keeps
// the defaults.
func (g *Generator) WithVoices(tables map[string][]string) *Generator {
	g.voices = tables
	return g
}

type personaSchema struct {
	Name        string `json:"name"`
	Prompt      string `json:"prompt"`
	Description string `json:"description"`
}

type rosterSchema struct {
	Personas []personaSchema `json:"personas"`
}

// Generate produces a roster for the topic, one persona per requested gender.
// On any generation or parsing failure it falls back to the fixed demo roster
// so a session can always start.
func (g *Generator) Generate(ctx context.Context, topic string, genders []string) *Roster {
	if len(genders) == 0 {
		genders = []string{GenderMale, GenderFemale}
	}

	personas, err := g.generate(ctx, topic, genders)
	if err != nil {
		g.log.WithFields(logrus.Fields{
			"topic": topic,
			"error": err,
		}).Warn("Persona generation failed, using fallback roster")
		personas = FallbackPersonas(topic)
	}

	roster := NewRosterWithVoices(personas, g.voices)
	for _, p := range personas {
		g.log.WithFields(logrus.Fields{
			"id":     p.ID,
			"name":   p.Name,
			"gender": p.Gender,
		}).Infof("Persona ready: %s", p.Description)
	}
	return roster
}

func (g *Generator) generate(ctx context.Context, topic string, genders []string) ([]Persona, error) {
	if g.gen == nil {
		return nil, fmt.Errorf("no generator configured")
	}

	genderLine := "Genders, in order: " + strings.Join(genders, ", ")
	reply, err := g.gen.GenerateReply(ctx, &llm.GenerateRequest{
		Instructions: fmt.Sprintf(generationPrompt, topic, genderLine, len(genders)),
	})
	if err != nil {
		return nil, fmt.Errorf("generate personas: %w", err)
	}

	parsed, err := parseRoster(reply.Content)
	if err != nil {
		return nil, err
	}
	if len(parsed.Personas) < len(genders) {
		return nil, fmt.Errorf("generated %d personas, want %d", len(parsed.Personas), len(genders))
	}

	personas := make([]Persona, 0, len(genders))
	for i, gender := range genders {
		s := parsed.Personas[i]
		if s.Name == "" || s.Prompt == "" {
			return nil, fmt.Errorf("persona %d missing name or prompt", i)
		}
		personas = append(personas, Persona{
			ID:          i,
			Name:        s.Name,
			Prompt:      s.Prompt,
			Gender:      gender,
			Description: s.Description,
		})
	}
	return personas, nil
}

var jsonBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// parseRoster extracts the roster JSON from model output, tolerating fenced
// code blocks around it.
func parseRoster(content string) (*rosterSchema, error) {
	candidate := content
	if m := jsonBlockRe.FindStringSubmatch(content); m != nil {
		candidate = m[1]
	} else if start := strings.Index(content, "{"); start >= 0 {
		if end := strings.LastIndex(content, "}"); end > start {
			candidate = content[start : end+1]
		}
	}

	var parsed rosterSchema
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return nil, fmt.Errorf("parse roster JSON: %w", err)
	}
	return &parsed, nil
}

// FallbackPersonas returns the fixed demo roster used when generation fails.
func FallbackPersonas(topic string) []Persona {
	return []Persona{
		{
			ID:     0,
			Name:   "Raven",
			Gender: GenderFemale,
			Prompt: fmt.Sprintf(
				"You are Raven, a sardonic goth coder who treats '%s' like late-night stand-up. "+
					"Roast flimsy arguments, drop absurd metaphors, and keep replies tight and spiky.", topic),
			Description: "Raven is a goth coder who deflects with sarcasm and treats every debate like open mic night.",
		},
		{
			ID:     1,
			Name:   "Lumi",
			Gender: GenderFemale,
			Prompt: fmt.Sprintf(
				"You are Lumi, a chaotic optimist who loves turning '%s' into playful challenges. "+
					"Clap back with memes, hype wild ideas, and keep things light but pointed.", topic),
			Description: "Lumi is a chaotic optimist who responds with meme energy and playful jabs.",
		},
	}
}
