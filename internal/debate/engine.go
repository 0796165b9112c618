package debate

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/podiumhq/podium/internal/events"
	"github.com/podiumhq/podium/internal/gateway"
	"github.com/podiumhq/podium/internal/llm"
	"github.com/podiumhq/podium/internal/persona"
	"github.com/podiumhq/podium/internal/research"
	"github.com/podiumhq/podium/internal/session"
	"github.com/podiumhq/podium/internal/transcript"
)

// Config holds engine settings.
type Config struct {
	// Genders requested for roster generation, in speaking order.
	Genders []string `yaml:"genders"`
	// MaxAutoTurns caps consecutive persona-to-persona handoffs per trigger
	// so a runaway decision chain cannot spin without the human. The
	// original system is paced by audio playout instead.
	MaxAutoTurns int `yaml:"max_auto_turns"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Genders:      []string{persona.GenderMale, persona.GenderFemale},
		MaxAutoTurns: 8,
	}
}

// Engine drives the debate: it owns the turn-taking state machine, builds
// ephemeral speakers, runs model turns and dispatches tool calls. All entry
// points run on the session's single logical thread of control.
type Engine struct {
	state    *session.State
	machine  *Machine
	bus      *events.Bus
	gen      llm.Generator
	tts      llm.Speaker
	research *research.Manager
	personas *persona.Generator
	config   Config
	log      *logrus.Logger

	personasAnnounced bool
	fallbackStreak    int
	wg                sync.WaitGroup
}

// NewEngine creates a debate engine over the given session state.
func NewEngine(
	state *session.State,
	bus *events.Bus,
	gen llm.Generator,
	tts llm.Speaker,
	researchMgr *research.Manager,
	personaGen *persona.Generator,
	config Config,
	logger *logrus.Logger,
) *Engine {
	if config.MaxAutoTurns <= 0 {
		config.MaxAutoTurns = DefaultConfig().MaxAutoTurns
	}
	if len(config.Genders) == 0 {
		config.Genders = DefaultConfig().Genders
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		state:    state,
		machine:  NewMachine(),
		bus:      bus,
		gen:      gen,
		tts:      tts,
		research: researchMgr,
		personas: personaGen,
		config:   config,
		log:      logger,
	}
}

// Machine exposes the turn-taking state machine, primarily for inspection.
func (e *Engine) Machine() *Machine {
	return e.machine
}

// Start begins the debate when a topic was supplied externally. Without a
// topic the engine stays in Bootstrap, quiescent until the first user
// utterance derives one.
func (e *Engine) Start(ctx context.Context) {
	if e.state.Topic == "" {
		e.log.Info("No topic yet; waiting for the first user utterance")
		return
	}
	if e.state.Roster == nil {
		if e.personas == nil {
			e.log.Warn("Topic set but no roster and no persona generator")
			return
		}
		e.state.Roster = e.personas.Generate(ctx, e.state.Topic, e.config.Genders)
	}
	e.runLoop(ctx, e.state.Roster.First(), true)
}

// OnUserUtterance handles a final user utterance: in Bootstrap it derives
// the topic and starts the debate; otherwise it appends the user turn and
// immediately requests a next-speaker decision from the active persona. The
// append always precedes the decision request.
func (e *Engine) OnUserUtterance(ctx context.Context, text string) {
	switch e.machine.Phase() {
	case PhaseBootstrap:
		e.bootstrap(ctx, text)
	case PhaseAwaitingUser, PhaseSpeakerActive:
		e.state.Transcript.Append(transcript.RoleUser, transcript.SpeakerUser, text)
		id, ok := e.machine.ActiveID()
		if !ok {
			return
		}
		current, ok := e.personaByID(id)
		if !ok {
			return
		}
		// Resuming from AwaitingUser: the yielding persona decides the next
		// speaker, exactly as after any user turn.
		e.machine.Activate(current.ID)
		sp := NewSpeaker(current, e.state)
		if next := e.requestDecision(ctx, sp, userTurnNudge); next != nil {
			e.runLoop(ctx, *next, false)
		}
	}
}

// Wait blocks until background utterances (user prompts) have been spoken.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) bootstrap(ctx context.Context, text string) {
	if e.state.Roster == nil && e.personas == nil {
		e.log.Warn("Topic received but no roster and no persona generator")
		return
	}

	topic := strings.TrimSpace(text)
	if topic == "" {
		topic = emptyTopicFallback
	}
	e.log.WithField("topic", topic).Info("Derived topic from first user utterance")

	e.state.Topic = topic
	if e.state.Roster == nil {
		e.state.Roster = e.personas.Generate(ctx, topic, e.config.Genders)
	}
	e.state.Transcript.Append(transcript.RoleUser, transcript.SpeakerUser, topic)
	e.runLoop(ctx, e.state.Roster.First(), true)
}

// runLoop enters speakers until a handoff chain ends: a yield to the user,
// a fallback no-op, a turn without a decision, or the auto-turn cap.
func (e *Engine) runLoop(ctx context.Context, p persona.Persona, first bool) {
	next := &p
	for turns := 0; next != nil; turns++ {
		if ctx.Err() != nil {
			return
		}
		// A yield to the human ends the chain; only a new user utterance
		// resumes the debate.
		if e.machine.Phase() == PhaseAwaitingUser {
			return
		}
		if turns >= e.config.MaxAutoTurns {
			e.log.WithField("turns", turns).Warn("Auto-turn cap reached; pausing until the user speaks")
			return
		}
		current := *next
		next = e.enterSpeaker(ctx, current, first)
		first = false
	}
}

// enterSpeaker swaps the turn to a persona: the previous ephemeral speaker
// is discarded and a fresh one is built from shared state. When a user
// message exists the speaker produces a direct reply followed by a forced
// next-speaker decision. Returns the decided handoff, if any.
func (e *Engine) enterSpeaker(ctx context.Context, p persona.Persona, first bool) *persona.Persona {
	e.machine.Activate(p.ID)
	e.fallbackStreak = 0

	e.bus.Emit(events.EventSpeakerChanged, map[string]interface{}{"id": p.ID})
	if first && !e.personasAnnounced {
		e.personasAnnounced = true
		e.bus.Emit(events.EventPersonasCreated, e.state.Roster.Personas())
	}

	sp := NewSpeaker(p, e.state)
	if !e.state.Transcript.HasUserMessage() {
		e.log.Info("Waiting for initial user input before responding")
		return nil
	}

	if handoff := e.generateTurn(ctx, sp, directReplyNudge, ""); handoff != nil {
		return handoff
	}
	// The reply turn may already have yielded inline; forcing a decision
	// then would override AwaitingUser and prompt the user twice.
	if e.machine.Phase() != PhaseSpeakerActive {
		return nil
	}
	return e.requestDecision(ctx, sp, decideNudge)
}

// requestDecision forces a giveTurnToNextSpeaker call from the speaker.
func (e *Engine) requestDecision(ctx context.Context, sp *Speaker, nudge string) *persona.Persona {
	return e.generateTurn(ctx, sp, nudge, ToolGiveTurn)
}

// generateTurn runs one model turn and processes its output. A generation
// failure is logged and swallowed; nothing here may terminate the session.
func (e *Engine) generateTurn(ctx context.Context, sp *Speaker, nudge, toolChoice string) *persona.Persona {
	reply, err := e.gen.GenerateReply(ctx, &llm.GenerateRequest{
		Instructions: sp.Instructions(),
		Extra:        nudge,
		History:      sp.History(),
		Tools:        toolSpecs(),
		ToolChoice:   toolChoice,
	})
	if err != nil {
		e.log.WithFields(logrus.Fields{
			"persona": sp.Persona.Name,
			"error":   err,
		}).Warn("Turn generation failed")
		return nil
	}
	return e.processReply(ctx, sp, reply)
}

func (e *Engine) processReply(ctx context.Context, sp *Speaker, reply *llm.Reply) *persona.Persona {
	if reply.Content != "" {
		e.state.Transcript.Append(transcript.RoleAssistant, sp.Persona.Name, reply.Content)
	}

	var handoff *persona.Persona
	for _, call := range reply.ToolCalls {
		if h := e.dispatchTool(ctx, sp, call); h != nil {
			handoff = h
		}
	}
	return handoff
}

// dispatchTool executes one tool call from the active speaker. Hot-take
// failures are fed back so the model can narrate a correction; everything
// else resolves locally.
func (e *Engine) dispatchTool(ctx context.Context, sp *Speaker, call llm.ToolCall) *persona.Persona {
	switch call.Name {
	case ToolGiveTurn:
		return e.giveTurn(ctx, sp, stringArg(call, "speaker"))

	case ToolAddTake:
		err := e.state.AddHotTake(sp.Persona.Name, stringArg(call, "text"))
		e.afterHotTakeOp(ctx, sp, call.Name, err)

	case ToolReplaceTake:
		err := e.state.ReplaceHotTake(sp.Persona.Name, stringArg(call, "oldText"), stringArg(call, "newText"))
		e.afterHotTakeOp(ctx, sp, call.Name, err)

	case ToolDeleteTake:
		err := e.state.DeleteHotTake(sp.Persona.Name, stringArg(call, "text"))
		e.afterHotTakeOp(ctx, sp, call.Name, err)

	case ToolEmoji:
		e.bus.Emit(events.EventEmojiReaction, map[string]interface{}{
			"emoji":      stringArg(call, "emoji"),
			"speaker_id": sp.Persona.ID,
		})

	case ToolAvatar:
		e.avatarTool(sp, call)

	case ToolDigDeeper:
		return e.digDeeper(ctx, sp, stringArg(call, "query"), stringArg(call, "handOffTo"))

	default:
		e.log.WithField("tool", call.Name).Warn("Unknown tool call ignored")
	}
	return nil
}

// giveTurn resolves a next-speaker decision. "user" yields to the human and
// schedules exactly one prompting utterance; an unknown name is a no-op
// fallback that keeps the current speaker and never crashes.
func (e *Engine) giveTurn(ctx context.Context, sp *Speaker, name string) *persona.Persona {
	if strings.EqualFold(name, "user") {
		if e.machine.Phase() != PhaseAwaitingUser {
			e.machine.AwaitUser()
			e.say(ctx, sp.Voice(), userPromptLine)
		}
		return nil
	}

	if p, ok := e.state.Roster.ByName(name); ok {
		return &p
	}

	e.fallbackStreak++
	e.log.WithFields(logrus.Fields{
		"speaker": name,
		"streak":  e.fallbackStreak,
	}).Warn("Unknown next speaker; keeping current persona active")
	return nil
}

func (e *Engine) afterHotTakeOp(ctx context.Context, sp *Speaker, tool string, err error) {
	if err != nil {
		e.log.WithFields(logrus.Fields{
			"persona": sp.Persona.Name,
			"tool":    tool,
			"error":   err,
		}).Info("Hot-take tool failed; requesting self-correction")
		e.correctionTurn(ctx, sp, tool, err)
		return
	}
	e.bus.Emit(events.EventHotTakesUpdated, map[string]interface{}{"takes": e.state.HotTakes()})
}

// correctionTurn reports a tool failure back to the speaker so the model can
// narrate the correction. Tool calls from the correction are ignored to keep
// the feedback loop bounded.
func (e *Engine) correctionTurn(ctx context.Context, sp *Speaker, tool string, toolErr error) {
	reply, err := e.gen.GenerateReply(ctx, &llm.GenerateRequest{
		Instructions: sp.Instructions(),
		Extra:        fmt.Sprintf(correctionNudge, fmt.Sprintf("%s: %v", tool, toolErr)),
		History:      sp.History(),
	})
	if err != nil {
		e.log.WithField("error", err).Warn("Correction turn failed")
		return
	}
	if reply.Content != "" {
		e.state.Transcript.Append(transcript.RoleAssistant, sp.Persona.Name, reply.Content)
	}
}

// avatarTool validates an animation call and forwards it to the UI; an
// invalid call is dropped with its reason in the logs, never an error.
func (e *Engine) avatarTool(sp *Speaker, call llm.ToolCall) {
	payload, reason := gateway.NormalizeAvatarCall(avatarCallFromArgs(call.Arguments))
	if reason != "" {
		e.log.WithFields(logrus.Fields{
			"persona": sp.Persona.Name,
			"reason":  reason,
		}).Warn("Avatar call dropped")
		return
	}
	e.bus.Emit(events.EventAvatarTool, payload)
}

// avatarCallFromArgs accepts the nested {"call": {...}} shape as well as
// flattened arguments, which models produce interchangeably.
func avatarCallFromArgs(args map[string]interface{}) gateway.AvatarCall {
	if nested, ok := args["call"].(map[string]interface{}); ok {
		args = nested
	}
	call := gateway.AvatarCall{}
	if v, ok := args["type"].(string); ok {
		call.Type = v
	}
	if v, ok := args["preset"].(string); ok {
		call.Preset = v
	}
	if v, ok := args["expression"].(string); ok {
		call.Expression = v
	}
	if v, ok := args["context"].(map[string]interface{}); ok {
		call.Context = v
	}
	return call
}

// digDeeper sends the speaker off to research and hands the floor to a named
// peer; with no valid peer the human is prompted to fill the gap.
func (e *Engine) digDeeper(ctx context.Context, sp *Speaker, query, handOffTo string) *persona.Persona {
	if e.research == nil {
		e.log.Warn("Research requested but no manager configured")
		return nil
	}

	e.log.WithFields(logrus.Fields{
		"persona": sp.Persona.Name,
		"query":   query,
	}).Info("Starting background research")
	e.research.Launch(ctx, sp.Persona, query)

	if p, ok := e.state.Roster.ByName(handOffTo); ok {
		e.say(ctx, sp.Voice(), fmt.Sprintf(
			"Let me dig deeper on this. %s, take it from here - I'll be back with what I find.", p.Name))
		return &p
	}

	e.machine.AwaitUser()
	e.say(ctx, sp.Voice(), "Let me research this. What do you think in the meantime?")
	return nil
}

// say triggers a scripted line through external text-to-speech without
// blocking the debate flow; playout ordering is the collaborator's concern.
func (e *Engine) say(ctx context.Context, voice, line string) {
	if e.tts == nil {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.tts.Speak(ctx, voice, line); err != nil {
			e.log.WithField("error", err).Warn("Scripted line playback failed")
		}
	}()
}

func (e *Engine) personaByID(id int) (persona.Persona, bool) {
	if e.state.Roster == nil {
		return persona.Persona{}, false
	}
	for _, p := range e.state.Roster.Personas() {
		if p.ID == id {
			return p, true
		}
	}
	return persona.Persona{}, false
}
