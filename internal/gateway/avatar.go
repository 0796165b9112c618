package gateway

import (
	"fmt"
	"strings"
)

// Avatar animation allow-lists. The avatar tool sits between a variable
// model tool call and the UI; anything outside these tables is dropped.
var (
	supportedExpressions = map[string]struct{}{
		"smile": {}, "surprised": {}, "concerned": {}, "wink": {}, "laugh": {},
	}
	supportedAvatarIDs = map[string]struct{}{
		"assistant": {}, "local": {},
	}
	expressionSynonyms = map[string]string{
		"happy":   "smile",
		"serious": "concerned",
		"sad":     "concerned",
		"frown":   "concerned",
		"blink":   "wink",
		"winking": "wink",
	}
)

// AvatarCall is a model-issued UI animation instruction.
type AvatarCall struct {
	Type       string                 `json:"type"`
	Preset     string                 `json:"preset,omitempty"`
	Expression string                 `json:"expression,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// NormalizeAvatarCall validates a call against the allow-lists and returns
// the canonical payload to publish. A non-empty reason means the call must
// be dropped; that is a log-level outcome, never a session error.
func NormalizeAvatarCall(call AvatarCall) (map[string]interface{}, string) {
	callType := strings.TrimSpace(call.Type)
	if callType != "setExpression" {
		return nil, fmt.Sprintf("unsupported-type:%s", callType)
	}

	raw := call.Preset
	if raw == "" {
		raw = call.Expression
	}
	if raw == "" && call.Context != nil {
		if v, ok := call.Context["preset"].(string); ok {
			raw = v
		} else if v, ok := call.Context["expression"].(string); ok {
			raw = v
		}
	}
	if raw == "" {
		return nil, "missing-preset"
	}

	preset := strings.ToLower(raw)
	if canonical, ok := expressionSynonyms[preset]; ok {
		preset = canonical
	}
	if _, ok := supportedExpressions[preset]; !ok {
		return nil, fmt.Sprintf("unsupported-preset:%s", preset)
	}

	var avatarID string
	if call.Context != nil {
		if v, ok := call.Context["avatarId"].(string); ok {
			avatarID = v
		}
	}
	if avatarID != "" {
		if _, ok := supportedAvatarIDs[avatarID]; !ok {
			return nil, fmt.Sprintf("unsupported-avatar:%s", avatarID)
		}
	}

	normalized := map[string]interface{}{"type": "setExpression", "preset": preset}
	if avatarID != "" {
		normalized["context"] = map[string]interface{}{"avatarId": avatarID}
	}
	return map[string]interface{}{"kind": "avatar-tool", "call": normalized}, ""
}
