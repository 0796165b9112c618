package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultBaseURL is the xAI OpenAI-compatible endpoint.
	DefaultBaseURL = "https://api.x.ai/v1"
	// DefaultModel is the model used for debate turns.
	DefaultModel = "grok-4-1-fast-non-reasoning"
	// DefaultImageModel is the model used for research infographics.
	DefaultImageModel = "grok-2-image-1212"
)

// Client is an OpenAI-compatible chat-completions client implementing
// Generator against the xAI API.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	http    *RetryableHTTPClient
	log     *logrus.Logger
}

// NewClient creates a Client. Empty baseURL and model fall back to the xAI
// defaults.
func NewClient(apiKey, baseURL, model string, logger *logrus.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		http:    NewRetryableHTTPClient(nil, DefaultRetryConfig()),
		log:     logger,
	}
}

type chatRequest struct {
	Model            string            `json:"model"`
	Messages         []ChatMessage     `json:"messages"`
	Tools            []chatTool        `json:"tools,omitempty"`
	ToolChoice       interface{}       `json:"tool_choice,omitempty"`
	Temperature      float64           `json:"temperature,omitempty"`
	SearchParameters *searchParameters `json:"search_parameters,omitempty"`
}

type searchParameters struct {
	Mode string `json:"mode"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateReply runs one chat-completions turn. Tool-call arguments arrive as
// a JSON string and are decoded into a map; undecodable arguments surface the
// call with empty arguments rather than failing the turn.
func (c *Client) GenerateReply(ctx context.Context, req *GenerateRequest) (*Reply, error) {
	messages := make([]ChatMessage, 0, len(req.History)+2)
	if req.Instructions != "" {
		messages = append(messages, ChatMessage{Role: RoleSystem, Content: req.Instructions})
	}
	messages = append(messages, req.History...)
	if req.Extra != "" {
		messages = append(messages, ChatMessage{Role: RoleSystem, Content: req.Extra})
	}

	body := chatRequest{
		Model:    c.model,
		Messages: messages,
		Tools:    convertTools(req.Tools),
	}
	if req.EnableSearch {
		body.SearchParameters = &searchParameters{Mode: "auto"}
	}
	if req.ToolChoice != "" {
		body.ToolChoice = map[string]interface{}{
			"type":     "function",
			"function": map[string]string{"name": req.ToolChoice},
		}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("chat completion: HTTP %d: %s", resp.StatusCode, string(data))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: empty choices")
	}

	choice := parsed.Choices[0].Message
	reply := &Reply{Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		args := map[string]interface{}{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				c.log.WithFields(logrus.Fields{
					"tool":  tc.Function.Name,
					"error": err,
				}).Warn("Undecodable tool arguments")
				args = map[string]interface{}{}
			}
		}
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{Name: tc.Function.Name, Arguments: args})
	}
	return reply, nil
}

type imageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// GenerateImage renders one image from a prompt and returns its URL.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	raw, err := json.Marshal(imageRequest{Model: DefaultImageModel, Prompt: prompt, N: 1})
	if err != nil {
		return "", fmt.Errorf("marshal image request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/generations", bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("build image request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(ctx, httpReq)
	if err != nil {
		return "", fmt.Errorf("image generation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("image generation: HTTP %d: %s", resp.StatusCode, string(data))
	}

	var parsed imageResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode image response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return "", fmt.Errorf("image generation: empty data")
	}
	return parsed.Data[0].URL, nil
}

func convertTools(specs []ToolSpec) []chatTool {
	tools := make([]chatTool, 0, len(specs))
	for _, spec := range specs {
		props := map[string]interface{}{}
		required := make([]string, 0, len(spec.Params))
		for _, p := range spec.Params {
			typ := p.Type
			if typ == "" {
				typ = "string"
			}
			props[p.Name] = map[string]interface{}{
				"type":        typ,
				"description": p.Description,
			}
			required = append(required, p.Name)
		}
		tools = append(tools, chatTool{
			Type: "function",
			Function: chatFunction{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters: map[string]interface{}{
					"type":       "object",
					"properties": props,
					"required":   required,
				},
			},
		})
	}
	return tools
}
