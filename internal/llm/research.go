package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

const researchSystem = `You are a research agent. Use web search to find info. Max 1 search.

Find the SINGLE most surprising, counterintuitive, or impactful insight.

Output JSON:
{
  "take": "One powerful sentence - the juiciest finding",
  "explanation": "2-3 sentences why this matters",
  "image_prompt": "MUST include: specific numbers/data from the take, comparison (before/after, old/new, X vs Y), visual metaphor. Format: 'Infographic: [specific data point] shown as [visual element]. Include [chart type] comparing [A] to [B]. Style: clean white background, bold accent color, large typography for key number, minimal text labels.'"
}`

// ImageGenerator renders an image from a prompt and returns its URL.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// ResearchAgent implements Researcher on top of a search-enabled model turn
// plus optional infographic rendering.
type ResearchAgent struct {
	gen    Generator
	images ImageGenerator
	log    *logrus.Logger
}

// NewResearchAgent creates a research agent. The image generator may be nil,
// in which case findings carry no image.
func NewResearchAgent(gen Generator, images ImageGenerator, logger *logrus.Logger) *ResearchAgent {
	if logger == nil {
		logger = logrus.New()
	}
	return &ResearchAgent{gen: gen, images: images, log: logger}
}

type findingSchema struct {
	Take        string `json:"take"`
	Explanation string `json:"explanation"`
	ImagePrompt string `json:"image_prompt"`
}

// ResearchOnce runs one research attempt: a single search-enabled completion
// synthesizing the finding, then a best-effort infographic. Image failures
// never fail the attempt.
func (a *ResearchAgent) ResearchOnce(ctx context.Context, query string) (*Finding, error) {
	reply, err := a.gen.GenerateReply(ctx, &GenerateRequest{
		Instructions: researchSystem,
		History:      []ChatMessage{{Role: RoleUser, Content: query}},
		EnableSearch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("research completion: %w", err)
	}

	parsed, err := parseFinding(reply.Content)
	if err != nil {
		return nil, err
	}
	if parsed.Take == "" {
		return nil, fmt.Errorf("research produced no take")
	}

	finding := &Finding{Take: parsed.Take, Explanation: parsed.Explanation}
	if a.images != nil {
		prompt := parsed.ImagePrompt
		if prompt == "" {
			prompt = "Infographic: " + query
		}
		url, err := a.images.GenerateImage(ctx, prompt)
		if err != nil {
			a.log.WithField("error", err).Warn("Infographic generation failed")
		} else {
			finding.ImageURL = url
		}
	}
	return finding, nil
}

var findingBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

func parseFinding(content string) (*findingSchema, error) {
	candidate := content
	if m := findingBlockRe.FindStringSubmatch(content); m != nil {
		candidate = m[1]
	} else if start := strings.Index(content, "{"); start >= 0 {
		if end := strings.LastIndex(content, "}"); end > start {
			candidate = content[start : end+1]
		}
	}

	var parsed findingSchema
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return nil, fmt.Errorf("parse finding JSON: %w", err)
	}
	return &parsed, nil
}
