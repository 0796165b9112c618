package debate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podiumhq/podium/internal/events"
	"github.com/podiumhq/podium/internal/llm"
	"github.com/podiumhq/podium/internal/persona"
	"github.com/podiumhq/podium/internal/research"
	"github.com/podiumhq/podium/internal/session"
	"github.com/podiumhq/podium/internal/transcript"
)

// scriptedGenerator replays canned replies in order and records every
// request it saw.
type scriptedGenerator struct {
	mu       sync.Mutex
	replies  []*llm.Reply
	errs     []error
	requests []*llm.GenerateRequest
}

func (g *scriptedGenerator) GenerateReply(_ context.Context, req *llm.GenerateRequest) (*llm.Reply, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if len(g.replies) == 0 {
		return &llm.Reply{}, nil
	}
	reply := g.replies[0]
	g.replies = g.replies[1:]
	var err error
	if len(g.errs) > 0 {
		err = g.errs[0]
		g.errs = g.errs[1:]
	}
	return reply, err
}

func (g *scriptedGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func (g *scriptedGenerator) request(i int) *llm.GenerateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[i]
}

// recordingTTS captures scripted lines spoken through the speech collaborator.
type recordingTTS struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingTTS) Speak(_ context.Context, _, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, text)
	return nil
}

func (r *recordingTTS) spoken() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func reply(content string, calls ...llm.ToolCall) *llm.Reply {
	return &llm.Reply{Content: content, ToolCalls: calls}
}

func giveTurnCall(speaker string) llm.ToolCall {
	return llm.ToolCall{Name: ToolGiveTurn, Arguments: map[string]interface{}{"speaker": speaker}}
}

type engineFixture struct {
	engine *Engine
	state  *session.State
	gen    *scriptedGenerator
	tts    *recordingTTS
	sub    *events.Subscriber
	bus    *events.Bus
}

func newEngineFixture(t *testing.T, replies []*llm.Reply, config Config) *engineFixture {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	state := session.New("universal basic income", testRoster(), logger)
	bus := events.NewBus(events.DefaultBufferSize)
	t.Cleanup(bus.Close)
	sub := bus.Subscribe()

	gen := &scriptedGenerator{replies: replies}
	tts := &recordingTTS{}
	engine := NewEngine(state, bus, gen, tts, nil, nil, config, logger)

	return &engineFixture{engine: engine, state: state, gen: gen, tts: tts, sub: sub, bus: bus}
}

// drain collects events already delivered to the subscriber without blocking.
func (f *engineFixture) drain() []*events.Event {
	var out []*events.Event
	for {
		select {
		case e := <-f.sub.Channel:
			out = append(out, e)
		default:
			return out
		}
	}
}

func eventsOfType(evs []*events.Event, eventType events.EventType) []*events.Event {
	var out []*events.Event
	for _, e := range evs {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func TestEngineStartWithoutUserInputStaysQuiet(t *testing.T) {
	f := newEngineFixture(t, nil, DefaultConfig())
	f.engine.Start(context.Background())

	assert.Equal(t, 0, f.gen.calls())
	assert.Equal(t, PhaseSpeakerActive, f.engine.Machine().Phase())
	assert.Len(t, eventsOfType(f.drain(), events.EventSpeakerChanged), 1)
}

func TestEngineFirstUserTurn(t *testing.T) {
	f := newEngineFixture(t, []*llm.Reply{
		reply("", giveTurnCall("Raven")), // forced decision after the user turn
		reply("Raven here. UBI ends poverty, full stop."),
		reply("", giveTurnCall("user")),
	}, DefaultConfig())
	f.engine.Start(context.Background())
	f.drain()

	f.engine.OnUserUtterance(context.Background(), "Is UBI affordable?")
	f.engine.Wait()

	require.Equal(t, 3, f.gen.calls(), "decision, reply, decision")
	assert.Equal(t, userTurnNudge, f.gen.request(0).Extra)
	assert.Equal(t, ToolGiveTurn, f.gen.request(0).ToolChoice)

	messages := f.state.Transcript.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, transcript.RoleUser, messages[0].Role)
	assert.Equal(t, "Is UBI affordable?", messages[0].Content)
	assert.Equal(t, "Raven", messages[1].Speaker)

	assert.Equal(t, PhaseAwaitingUser, f.engine.Machine().Phase())
	assert.Equal(t, []string{userPromptLine}, f.tts.spoken())
}

func TestEngineHandoffChain(t *testing.T) {
	f := newEngineFixture(t, []*llm.Reply{
		reply("", giveTurnCall("Marcus")), // Raven's forced decision
		reply("Finland's pilot says otherwise, Raven."),
		reply("", giveTurnCall("user")),
	}, DefaultConfig())
	f.engine.Start(context.Background())
	f.drain()

	f.engine.OnUserUtterance(context.Background(), "Raven, your take?")
	f.engine.Wait()

	evs := eventsOfType(f.drain(), events.EventSpeakerChanged)
	require.Len(t, evs, 1)
	payload := evs[0].Payload.(map[string]interface{})
	assert.Equal(t, 1, payload["id"])

	messages := f.state.Transcript.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "Marcus", messages[1].Speaker)

	// The user append happened before the decision request was issued.
	assert.Equal(t, llm.ChatMessage{Role: llm.RoleUser, Content: "Raven, your take?"},
		f.gen.request(0).History[len(f.gen.request(0).History)-1])
}

func TestEngineUnknownSpeakerFallback(t *testing.T) {
	f := newEngineFixture(t, []*llm.Reply{
		reply("", giveTurnCall("Narrator")),
	}, DefaultConfig())
	f.engine.Start(context.Background())
	f.drain()

	f.engine.OnUserUtterance(context.Background(), "Who's next?")
	f.engine.Wait()

	// The fallback is a no-op: no transition, no extra turns, no crash.
	assert.Equal(t, 1, f.gen.calls())
	assert.Equal(t, PhaseSpeakerActive, f.engine.Machine().Phase())
	id, _ := f.engine.Machine().ActiveID()
	assert.Equal(t, 0, id)
	assert.Empty(t, eventsOfType(f.drain(), events.EventSpeakerChanged))
	assert.Equal(t, 1, f.engine.fallbackStreak)
}

func TestEngineAutoTurnCap(t *testing.T) {
	// Raven and Marcus hand off to each other forever; the cap stops them.
	var replies []*llm.Reply
	replies = append(replies, giveTurnReply("Marcus"))
	for i := 0; i < 20; i++ {
		replies = append(replies, reply("ping"))
		if i%2 == 0 {
			replies = append(replies, giveTurnReply("Raven"))
		} else {
			replies = append(replies, giveTurnReply("Marcus"))
		}
	}

	config := DefaultConfig()
	config.MaxAutoTurns = 3
	f := newEngineFixture(t, replies, config)
	f.engine.Start(context.Background())
	f.drain()

	f.engine.OnUserUtterance(context.Background(), "Fight.")
	f.engine.Wait()

	assert.Len(t, eventsOfType(f.drain(), events.EventSpeakerChanged), 3)
	assert.Equal(t, PhaseSpeakerActive, f.engine.Machine().Phase())
}

func giveTurnReply(speaker string) *llm.Reply {
	return reply("", giveTurnCall(speaker))
}

func TestEngineHotTakeTools(t *testing.T) {
	t.Run("add emits an update with the full list", func(t *testing.T) {
		f := newEngineFixture(t, []*llm.Reply{
			giveTurnReply("Raven"),
			reply("I'm adding one.", llm.ToolCall{
				Name:      ToolAddTake,
				Arguments: map[string]interface{}{"text": "UBI is a floor, not a ceiling"},
			}),
			giveTurnReply("user"),
		}, DefaultConfig())
		f.engine.Start(context.Background())
		f.drain()

		f.engine.OnUserUtterance(context.Background(), "Go.")
		f.engine.Wait()

		assert.Equal(t, []string{"UBI is a floor, not a ceiling"}, f.state.HotTakes())
		updates := eventsOfType(f.drain(), events.EventHotTakesUpdated)
		require.Len(t, updates, 1)
		payload := updates[0].Payload.(map[string]interface{})
		assert.Equal(t, []string{"UBI is a floor, not a ceiling"}, payload["takes"])
	})

	t.Run("failure triggers one self-correction turn", func(t *testing.T) {
		f := newEngineFixture(t, []*llm.Reply{
			giveTurnReply("Raven"),
			reply("Adding it again.", llm.ToolCall{
				Name:      ToolAddTake,
				Arguments: map[string]interface{}{"text": "UBI is a floor, not a ceiling"},
			}),
			reply("Scratch that, it's already on the board."),
			giveTurnReply("user"),
		}, DefaultConfig())
		require.NoError(t, f.state.AddHotTake("Raven", "UBI is a floor, not a ceiling"))
		f.engine.Start(context.Background())
		f.drain()

		f.engine.OnUserUtterance(context.Background(), "Go.")
		f.engine.Wait()

		// forced decision, failing reply, correction, next decision
		require.Equal(t, 4, f.gen.calls())
		correction := f.gen.request(2)
		assert.Contains(t, correction.Extra, "tool call failed")
		assert.Contains(t, correction.Extra, ToolAddTake)
		assert.Empty(t, correction.Tools)

		messages := f.state.Transcript.Messages()
		require.Len(t, messages, 3)
		assert.Equal(t, "Scratch that, it's already on the board.", messages[2].Content)
		assert.Empty(t, eventsOfType(f.drain(), events.EventHotTakesUpdated))
	})
}

func TestEngineEmojiReaction(t *testing.T) {
	f := newEngineFixture(t, []*llm.Reply{
		giveTurnReply("Raven"),
		reply("Ha!", llm.ToolCall{
			Name:      ToolEmoji,
			Arguments: map[string]interface{}{"emoji": "🔥"},
		}),
	}, DefaultConfig())
	f.engine.Start(context.Background())
	f.drain()

	f.engine.OnUserUtterance(context.Background(), "Go.")
	f.engine.Wait()

	reactions := eventsOfType(f.drain(), events.EventEmojiReaction)
	require.Len(t, reactions, 1)
	payload := reactions[0].Payload.(map[string]interface{})
	assert.Equal(t, "🔥", payload["emoji"])
	assert.Equal(t, 0, payload["speaker_id"])
}

func TestEngineAvatarTool(t *testing.T) {
	t.Run("valid call is normalized and forwarded", func(t *testing.T) {
		f := newEngineFixture(t, []*llm.Reply{
			giveTurnReply("Raven"),
			reply("Watch this.", llm.ToolCall{
				Name: ToolAvatar,
				Arguments: map[string]interface{}{
					"call": map[string]interface{}{
						"type":    "setExpression",
						"preset":  "Happy",
						"context": map[string]interface{}{"avatarId": "assistant"},
					},
				},
			}),
		}, DefaultConfig())
		f.engine.Start(context.Background())
		f.drain()

		f.engine.OnUserUtterance(context.Background(), "Go.")
		f.engine.Wait()

		calls := eventsOfType(f.drain(), events.EventAvatarTool)
		require.Len(t, calls, 1)
		payload := calls[0].Payload.(map[string]interface{})
		call := payload["call"].(map[string]interface{})
		assert.Equal(t, "smile", call["preset"])
	})

	t.Run("unsupported preset is dropped silently", func(t *testing.T) {
		f := newEngineFixture(t, []*llm.Reply{
			giveTurnReply("Raven"),
			reply("Grr.", llm.ToolCall{
				Name: ToolAvatar,
				Arguments: map[string]interface{}{
					"call": map[string]interface{}{"type": "setExpression", "preset": "angry"},
				},
			}),
		}, DefaultConfig())
		f.engine.Start(context.Background())
		f.drain()

		f.engine.OnUserUtterance(context.Background(), "Go.")
		f.engine.Wait()

		assert.Empty(t, eventsOfType(f.drain(), events.EventAvatarTool))
	})
}

func TestEngineBootstrap(t *testing.T) {
	t.Run("derives topic and announces personas once", func(t *testing.T) {
		logger := logrus.New()
		logger.SetLevel(logrus.ErrorLevel)

		state := session.New("", nil, logger)
		bus := events.NewBus(events.DefaultBufferSize)
		t.Cleanup(bus.Close)
		sub := bus.Subscribe()

		gen := &scriptedGenerator{
			replies: []*llm.Reply{
				nil, // roster generation fails, falling back to stock personas
				reply("Raven reporting in."),
				reply("", giveTurnCall("user")),
			},
			errs: []error{errors.New("model unavailable")},
		}
		tts := &recordingTTS{}
		engine := NewEngine(state, bus, gen, tts, nil, persona.NewGenerator(gen, logger), DefaultConfig(), logger)

		engine.Start(context.Background())
		assert.Equal(t, PhaseBootstrap, engine.Machine().Phase())

		engine.OnUserUtterance(context.Background(), "   ")
		engine.Wait()

		assert.Equal(t, "User provided no topic", state.Topic)
		require.NotNil(t, state.Roster)
		assert.Equal(t, "Raven", state.Roster.First().Name)

		var evs []*events.Event
		for {
			select {
			case e := <-sub.Channel:
				evs = append(evs, e)
				continue
			default:
			}
			break
		}
		assert.Len(t, eventsOfType(evs, events.EventPersonasCreated), 1)
		assert.Len(t, eventsOfType(evs, events.EventSpeakerChanged), 1)

		messages := state.Transcript.Messages()
		require.NotEmpty(t, messages)
		assert.Equal(t, "User provided no topic", messages[0].Content)
		assert.Equal(t, PhaseAwaitingUser, engine.Machine().Phase())
	})
}

func TestEngineInlineYieldEndsTurn(t *testing.T) {
	f := newEngineFixture(t, []*llm.Reply{
		giveTurnReply("Marcus"),
		reply("I want to hear the user.", giveTurnCall("user")),
		reply("This must never be spoken.", giveTurnCall("Raven")),
	}, DefaultConfig())
	f.engine.Start(context.Background())
	f.drain()

	f.engine.OnUserUtterance(context.Background(), "Marcus?")
	f.engine.Wait()

	// The inline yield is terminal: no forced decision afterwards, and only
	// a fresh user utterance may resume the debate.
	assert.Equal(t, 2, f.gen.calls())
	assert.Equal(t, PhaseAwaitingUser, f.engine.Machine().Phase())

	messages := f.state.Transcript.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "I want to hear the user.", messages[1].Content)
	assert.Equal(t, []string{userPromptLine}, f.tts.spoken())
}

func TestEngineRepeatedYieldPromptsOnce(t *testing.T) {
	f := newEngineFixture(t, []*llm.Reply{
		reply("Over to you.", giveTurnCall("user"), giveTurnCall("user")),
	}, DefaultConfig())
	f.engine.Start(context.Background())
	f.drain()

	f.engine.OnUserUtterance(context.Background(), "Go.")
	f.engine.Wait()

	assert.Equal(t, PhaseAwaitingUser, f.engine.Machine().Phase())
	assert.Equal(t, []string{userPromptLine}, f.tts.spoken())
}

func TestEngineDigDeeperWithoutPeerYields(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	state := session.New("universal basic income", testRoster(), logger)
	bus := events.NewBus(events.DefaultBufferSize)
	t.Cleanup(bus.Close)

	gen := &scriptedGenerator{replies: []*llm.Reply{
		giveTurnReply("Raven"),
		reply("Let me check the numbers.", llm.ToolCall{
			Name:      ToolDigDeeper,
			Arguments: map[string]interface{}{"query": "solar stats", "handOffTo": ""},
		}),
	}}
	tts := &recordingTTS{}
	researcher := &delayedResearcher{delay: 10 * time.Millisecond, finding: &llm.Finding{Take: "solar wins"}}
	mgr := research.NewManager(researcher, state, bus,
		research.Config{Attempts: 1, AttemptTimeout: time.Second}, logger)
	engine := NewEngine(state, bus, gen, tts, mgr, nil, DefaultConfig(), logger)

	engine.Start(context.Background())
	engine.OnUserUtterance(context.Background(), "Go.")
	mgr.Wait()
	engine.Wait()

	// Yielding after the research handoff failed is terminal; the research
	// itself keeps running and lands in the table.
	assert.Equal(t, 2, gen.calls())
	assert.Equal(t, PhaseAwaitingUser, engine.Machine().Phase())
	require.Len(t, tts.spoken(), 1)

	finding, ok := state.Finding(0)
	require.True(t, ok)
	assert.Equal(t, "solar wins", finding.Take)
	assert.False(t, state.IsResearching(0))
}

type delayedResearcher struct {
	delay   time.Duration
	finding *llm.Finding
}

func (r *delayedResearcher) ResearchOnce(ctx context.Context, _ string) (*llm.Finding, error) {
	select {
	case <-time.After(r.delay):
		return r.finding, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestEngineBootstrapWithoutGeneratorIsSafe(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	state := session.New("", nil, logger)
	bus := events.NewBus(events.DefaultBufferSize)
	t.Cleanup(bus.Close)

	engine := NewEngine(state, bus, &scriptedGenerator{}, nil, nil, nil, DefaultConfig(), logger)
	engine.Start(context.Background())
	engine.OnUserUtterance(context.Background(), "any topic")
	engine.Wait()

	assert.Equal(t, PhaseBootstrap, engine.Machine().Phase())
	assert.Empty(t, state.Topic)
	assert.Empty(t, state.Transcript.Messages())
}

func TestEngineGenerationFailureIsSwallowed(t *testing.T) {
	f := newEngineFixture(t, []*llm.Reply{nil}, DefaultConfig())
	f.gen.errs = []error{errors.New("rate limited")}
	f.engine.Start(context.Background())
	f.drain()

	f.engine.OnUserUtterance(context.Background(), "Go.")
	f.engine.Wait()

	// The session survives; the turn simply did not happen.
	assert.Equal(t, PhaseSpeakerActive, f.engine.Machine().Phase())
	assert.Len(t, f.state.Transcript.Messages(), 1)
}
