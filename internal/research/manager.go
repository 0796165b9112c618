// Package research runs background research tasks for personas: up to three
// redundant attempts race per query, the first success wins, losers are
// cancelled and can never write into the result table after the race is
// decided.
package research

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/podiumhq/podium/internal/events"
	"github.com/podiumhq/podium/internal/llm"
	"github.com/podiumhq/podium/internal/persona"
	"github.com/podiumhq/podium/internal/session"
)

// Research task phases mirrored to the UI.
const (
	PhaseSearching  = "searching"
	PhaseProcessing = "processing_data"
	PhaseDone       = "done"
	PhaseError      = "error"
)

// ErrResearchExhausted means every attempt of a research race failed. The
// session continues; the persona proceeds without findings.
var ErrResearchExhausted = errors.New("all research attempts failed")

// Config holds research manager settings.
type Config struct {
	// Attempts is the number of parallel attempts per query.
	Attempts int `yaml:"attempts"`
	// AttemptTimeout bounds a single research run.
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Attempts:       3,
		AttemptTimeout: 2 * time.Minute,
	}
}

// Manager launches and tracks research tasks for one session.
type Manager struct {
	researcher llm.Researcher
	state      *session.State
	bus        *events.Bus
	config     Config
	group      singleflight.Group
	log        *logrus.Logger
	wg         sync.WaitGroup
}

// NewManager creates a research manager.
func NewManager(researcher llm.Researcher, state *session.State, bus *events.Bus, config Config, logger *logrus.Logger) *Manager {
	if config.Attempts <= 0 {
		config.Attempts = DefaultConfig().Attempts
	}
	if config.AttemptTimeout <= 0 {
		config.AttemptTimeout = DefaultConfig().AttemptTimeout
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{
		researcher: researcher,
		state:      state,
		bus:        bus,
		config:     config,
		log:        logger,
	}
}

// Launch starts a background research task for the persona. The persona
// enters the researching set immediately and leaves it when the task
// resolves either way. Launch never blocks on the research itself.
func (m *Manager) Launch(ctx context.Context, p persona.Persona, query string) {
	m.state.SetResearching(p.ID)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(ctx, p, query)
	}()
}

// Wait blocks until all launched tasks have resolved. Used on session
// teardown and in tests.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context, p persona.Persona, query string) {
	m.emitStatus(p, PhaseSearching, nil)

	v, err, _ := m.group.Do(query, func() (interface{}, error) {
		return m.race(ctx, query)
	})

	if err != nil {
		m.state.ClearResearching(p.ID)
		m.log.WithFields(logrus.Fields{
			"persona": p.Name,
			"query":   query,
			"error":   err,
		}).Error("Research exhausted")
		m.emitStatus(p, PhaseError, map[string]interface{}{"error": err.Error()})
		return
	}

	finding := v.(*llm.Finding)
	m.emitStatus(p, PhaseProcessing, nil)

	m.state.SetFinding(p.ID, *finding)
	m.state.ClearResearching(p.ID)
	m.log.WithFields(logrus.Fields{
		"persona": p.Name,
	}).Infof("Research complete: %s", truncate(finding.Take, 100))

	m.emitStatus(p, PhaseDone, map[string]interface{}{
		"take":        finding.Take,
		"explanation": finding.Explanation,
		"image_url":   finding.ImageURL,
	})
	m.bus.Emit(events.EventAgentReturned, map[string]interface{}{
		"agent_id":     p.ID,
		"agent_name":   p.Name,
		"has_findings": true,
	})
}

// race runs the attempts concurrently and resolves with the first success.
// A sync.Once gates the winning write so cancelled losers cannot race it;
// cancelling the shared context detaches the rest promptly.
func (m *Manager) race(ctx context.Context, query string) (*llm.Finding, error) {
	raceCtx, cancel := context.WithTimeout(ctx, m.config.AttemptTimeout)
	defer cancel()

	var winOnce sync.Once
	var attempts sync.WaitGroup
	won := make(chan *llm.Finding, 1)
	errs := make(chan error, m.config.Attempts)

	for i := 0; i < m.config.Attempts; i++ {
		attempts.Add(1)
		go func(attempt int) {
			defer attempts.Done()
			f, err := m.researcher.ResearchOnce(raceCtx, query)
			if err != nil {
				errs <- fmt.Errorf("attempt %d: %w", attempt+1, err)
				return
			}
			winOnce.Do(func() {
				won <- f
			})
		}(i)
	}

	// Detach losers as soon as the race is decided, then wait for them to
	// observe the cancellation before returning.
	defer func() {
		cancel()
		attempts.Wait()
	}()

	var failures []error
	for {
		select {
		case f := <-won:
			return f, nil
		case err := <-errs:
			failures = append(failures, err)
			if len(failures) == m.config.Attempts {
				return nil, fmt.Errorf("%w: %w", ErrResearchExhausted, errors.Join(failures...))
			}
		case <-ctx.Done():
			return nil, fmt.Errorf("research cancelled: %w", ctx.Err())
		}
	}
}

func (m *Manager) emitStatus(p persona.Persona, phase string, data map[string]interface{}) {
	m.bus.Emit(events.EventResearchStatus, map[string]interface{}{
		"agent_id":   p.ID,
		"agent_name": p.Name,
		"type":       phase,
		"data":       data,
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
