// Package llm defines the narrow interfaces through which the debate core
// reaches its external collaborators: language-model turn generation,
// speech-to-text, text-to-speech playback and the research capability.
// Transport and wire format belong to the implementations.
package llm

import "context"

// Role values used in chat history.
const (
	RoleAssistant = "assistant"
	RoleUser      = "user"
	RoleSystem    = "system"
)

// ChatMessage is a single entry of the history handed to the model.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolParam describes one parameter of a tool exposed to the model.
// Type defaults to "string" when empty.
type ToolParam struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type,omitempty"`
}

// ToolSpec describes a callable tool exposed to the model.
type ToolSpec struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []ToolParam `json:"params"`
}

// ToolCall is a tool invocation produced by the model.
type ToolCall struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// GenerateRequest holds everything needed for one model turn.
type GenerateRequest struct {
	// Instructions is the system prompt for this turn.
	Instructions string
	// Extra is an additional per-turn nudge appended after the history
	// (e.g. "Now decide who should speak next.").
	Extra string
	// History is the perspective-transformed transcript.
	History []ChatMessage
	// Tools lists the callable tools for this turn.
	Tools []ToolSpec
	// ToolChoice, when non-empty, forces the model to call the named tool.
	ToolChoice string
	// EnableSearch turns on server-side live search for this turn.
	EnableSearch bool
}

// Reply is the model's output for one turn: spoken content, tool calls or both.
type Reply struct {
	Content   string
	ToolCalls []ToolCall
}

// Finding is the outcome of one research run.
type Finding struct {
	Take        string `json:"take"`
	Explanation string `json:"explanation"`
	ImageURL    string `json:"image_url"`
}

// Generator produces one model turn.
type Generator interface {
	GenerateReply(ctx context.Context, req *GenerateRequest) (*Reply, error)
}

// Transcriber delivers final user utterances from external speech-to-text.
type Transcriber interface {
	// TranscribeFinalUtterance blocks until the next final utterance.
	TranscribeFinalUtterance(ctx context.Context) (string, error)
}

// Speaker triggers external text-to-speech playback of a scripted line.
type Speaker interface {
	Speak(ctx context.Context, voice, text string) error
}

// Researcher runs one research attempt: web search, synthesis and image
// generation collapsed into a single fallible call.
type Researcher interface {
	ResearchOnce(ctx context.Context, query string) (*Finding, error)
}
