package debate

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/podiumhq/podium/internal/events"
	"github.com/podiumhq/podium/internal/llm"
	"github.com/podiumhq/podium/internal/persona"
	"github.com/podiumhq/podium/internal/research"
	"github.com/podiumhq/podium/internal/session"
	"github.com/podiumhq/podium/internal/transcript"
)

// SessionConfig configures one debate session.
type SessionConfig struct {
	// Topic, when set, starts the debate immediately; otherwise the first
	// user utterance supplies it.
	Topic string
	// Personas, when set, skip roster generation.
	Personas []persona.Persona
	// Voices, when set, override the gender voice tables.
	Voices   map[string][]string
	Engine   Config
	Research research.Config
}

// Session is one live debate: shared state, the engine driving it, and the
// research manager. User utterances are serialized through its mutex so the
// engine keeps its single logical thread of control.
type Session struct {
	ID        string
	CreatedAt time.Time

	state    *session.State
	engine   *Engine
	research *research.Manager
	bus      *events.Bus
	log      *logrus.Logger

	// ctx outlives any caller: engine work and research races run on it so a
	// returned HTTP request cannot cancel them. Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu sync.Mutex
}

// NewSession wires a session together. The researcher may be nil, disabling
// the digDeeper capability.
func NewSession(
	cfg SessionConfig,
	gen llm.Generator,
	tts llm.Speaker,
	researcher llm.Researcher,
	bus *events.Bus,
	logger *logrus.Logger,
) *Session {
	if logger == nil {
		logger = logrus.New()
	}

	var roster *persona.Roster
	if len(cfg.Personas) > 0 {
		roster = persona.NewRosterWithVoices(cfg.Personas, cfg.Voices)
	}
	state := session.New(cfg.Topic, roster, logger)

	var mgr *research.Manager
	if researcher != nil {
		mgr = research.NewManager(researcher, state, bus, cfg.Research, logger)
	}

	personaGen := persona.NewGenerator(gen, logger).WithVoices(cfg.Voices)
	engine := NewEngine(state, bus, gen, tts, mgr, personaGen, cfg.Engine, logger)

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		state:     state,
		engine:    engine,
		research:  mgr,
		bus:       bus,
		log:       logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins the debate when a topic is already known.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Start(s.ctx)
}

// HandleUtterance feeds one final user utterance into the debate.
func (s *Session) HandleUtterance(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.OnUserUtterance(s.ctx, text)
}

// AmendUtterance replaces the content of an earlier message in place, the
// corrective path for an interrupted or empty transcription.
func (s *Session) AmendUtterance(seq int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Transcript.Amend(seq, text)
}

// Listen pumps final user utterances from an external transcriber into the
// debate until the context ends or the transcriber fails.
func (s *Session) Listen(ctx context.Context, stt llm.Transcriber) error {
	for {
		text, err := stt.TranscribeFinalUtterance(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		s.HandleUtterance(text)
	}
}

// Close cancels in-flight work and waits for it to settle.
func (s *Session) Close() {
	s.cancel()
	if s.research != nil {
		s.research.Wait()
	}
	s.engine.Wait()
}

// Snapshot is a point-in-time view of a session for API consumers.
type Snapshot struct {
	ID            string               `json:"id"`
	Topic         string               `json:"topic"`
	Phase         string               `json:"phase"`
	ActiveSpeaker int                  `json:"active_speaker"`
	Personas      []persona.Persona    `json:"personas"`
	HotTakes      []string             `json:"hot_takes"`
	Transcript    []transcript.Message `json:"transcript"`
	Research      map[int]llm.Finding  `json:"research,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

// Snapshot captures the session's current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:            s.ID,
		Topic:         s.state.Topic,
		Phase:         s.engine.Machine().Phase().String(),
		ActiveSpeaker: -1,
		HotTakes:      s.state.HotTakes(),
		Transcript:    s.state.Transcript.Messages(),
		Research:      s.state.Findings(),
		CreatedAt:     s.CreatedAt,
	}
	if id, ok := s.engine.Machine().ActiveID(); ok {
		snap.ActiveSpeaker = id
	}
	if s.state.Roster != nil {
		snap.Personas = s.state.Roster.Personas()
	}
	return snap
}

// Registry tracks live sessions by id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers a session.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove deregisters and returns the session, if present.
func (r *Registry) Remove(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	return s, ok
}

// List returns snapshots of all live sessions.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		snaps = append(snaps, s.Snapshot())
	}
	return snaps
}
