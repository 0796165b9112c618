package debate

import "github.com/podiumhq/podium/internal/llm"

// Tool names exposed to the language model. This is the only wire protocol
// the debate core defines.
const (
	ToolGiveTurn    = "giveTurnToNextSpeaker"
	ToolAddTake     = "addHotTake"
	ToolReplaceTake = "replaceHotTake"
	ToolDeleteTake  = "deleteHotTake"
	ToolEmoji       = "emojiReaction"
	ToolAvatar      = "avatarTool"
	ToolDigDeeper   = "digDeeper"
)

// toolSpecs lists the callable tools for every debate turn.
func toolSpecs() []llm.ToolSpec {
	return []llm.ToolSpec{
		{
			Name:        ToolGiveTurn,
			Description: turnToolDescription,
			Params: []llm.ToolParam{
				{Name: "speaker", Description: "Name of next speaker: one of the other participants or 'user'"},
			},
		},
		{
			Name:        ToolAddTake,
			Description: "Add a new hot take to the shared list",
			Params: []llm.ToolParam{
				{Name: "text", Description: "The hot take text - sharp, tweetable insight from the debate"},
			},
		},
		{
			Name:        ToolReplaceTake,
			Description: "Replace an existing hot take with a refined version",
			Params: []llm.ToolParam{
				{Name: "oldText", Description: "Exact text of the hot take to replace"},
				{Name: "newText", Description: "New refined text"},
			},
		},
		{
			Name:        ToolDeleteTake,
			Description: "Delete a hot take from the shared list",
			Params: []llm.ToolParam{
				{Name: "text", Description: "Exact text of the hot take to delete"},
			},
		},
		{
			Name:        ToolEmoji,
			Description: "Express your character's current emotion with a single emoji",
			Params: []llm.ToolParam{
				{Name: "emoji", Description: "A single valid emoji character"},
			},
		},
		{
			Name:        ToolAvatar,
			Description: "Animate avatars in the UI with gestures, poses, expressions.",
			Params: []llm.ToolParam{
				{Name: "call", Description: "Animation instruction, e.g. {\"type\": \"setExpression\", \"preset\": \"smile\", \"context\": {\"avatarId\": \"assistant\"}}", Type: "object"},
			},
		},
		{
			Name:        ToolDigDeeper,
			Description: "Research a topic when debate lacks facts or is stuck. You will leave to research and return with findings.",
			Params: []llm.ToolParam{
				{Name: "query", Description: "What to research - be specific about what facts/data you need"},
				{Name: "handOffTo", Description: "Name of participant to continue debate while you research"},
			},
		},
	}
}

// stringArg pulls a string argument from a tool call, tolerating absence.
func stringArg(call llm.ToolCall, key string) string {
	if v, ok := call.Arguments[key].(string); ok {
		return v
	}
	return ""
}
