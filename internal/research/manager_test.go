package research

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/podiumhq/podium/internal/events"
	"github.com/podiumhq/podium/internal/llm"
	"github.com/podiumhq/podium/internal/persona"
	"github.com/podiumhq/podium/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// racingResearcher hands each attempt a different scripted outcome, in call
// order.
type racingResearcher struct {
	calls    int32
	outcomes []func(ctx context.Context) (*llm.Finding, error)
}

func (r *racingResearcher) ResearchOnce(ctx context.Context, _ string) (*llm.Finding, error) {
	n := atomic.AddInt32(&r.calls, 1) - 1
	if int(n) >= len(r.outcomes) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return r.outcomes[n](ctx)
}

func afterDelay(d time.Duration, f *llm.Finding) func(ctx context.Context) (*llm.Finding, error) {
	return func(ctx context.Context) (*llm.Finding, error) {
		select {
		case <-time.After(d):
			return f, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func never() func(ctx context.Context) (*llm.Finding, error) {
	return func(ctx context.Context) (*llm.Finding, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

func newFixture(t *testing.T) (*session.State, *events.Bus, persona.Persona) {
	t.Helper()
	roster := persona.NewRoster(persona.FallbackPersonas("testing"))
	state := session.New("testing", roster, quietLogger())
	bus := events.NewBus(256)
	t.Cleanup(bus.Close)
	return state, bus, roster.First()
}

func TestManager_FirstSuccessWinsAndLosersNeverWrite(t *testing.T) {
	state, bus, p := newFixture(t)
	sub := bus.Subscribe()

	fast := &llm.Finding{Take: "fast take", Explanation: "won the race"}
	slow := &llm.Finding{Take: "slow take"}
	researcher := &racingResearcher{outcomes: []func(ctx context.Context) (*llm.Finding, error){
		afterDelay(10*time.Millisecond, fast),
		afterDelay(50*time.Millisecond, slow),
		never(),
	}}

	m := NewManager(researcher, state, bus, Config{Attempts: 3, AttemptTimeout: time.Second}, quietLogger())
	m.Launch(context.Background(), p, "fusion breakthroughs")

	assert.True(t, state.IsResearching(p.ID), "persona leaves the room immediately")

	m.Wait()

	f, ok := state.Finding(p.ID)
	require.True(t, ok)
	assert.Equal(t, "fast take", f.Take, "table holds the first success only")
	assert.False(t, state.IsResearching(p.ID), "researching set empty after resolution")

	phases := drainPhases(sub)
	assert.Contains(t, phases, PhaseSearching)
	assert.Contains(t, phases, PhaseDone)
	assert.NotContains(t, phases, PhaseError)
}

func TestManager_AllAttemptsFailSurfacesTerminalError(t *testing.T) {
	state, bus, p := newFixture(t)
	sub := bus.Subscribe()

	fail := func(ctx context.Context) (*llm.Finding, error) {
		return nil, errors.New("search backend down")
	}
	researcher := &racingResearcher{outcomes: []func(ctx context.Context) (*llm.Finding, error){fail, fail, fail}}

	m := NewManager(researcher, state, bus, Config{Attempts: 3, AttemptTimeout: time.Second}, quietLogger())
	m.Launch(context.Background(), p, "doomed query")
	m.Wait()

	_, ok := state.Finding(p.ID)
	assert.False(t, ok, "no table write on exhaustion")
	assert.False(t, state.IsResearching(p.ID))

	phases := drainPhases(sub)
	assert.Contains(t, phases, PhaseError)
	assert.NotContains(t, phases, PhaseDone)
}

func TestManager_AgentReturnedNotification(t *testing.T) {
	state, bus, p := newFixture(t)
	sub := bus.Subscribe()

	researcher := &racingResearcher{outcomes: []func(ctx context.Context) (*llm.Finding, error){
		afterDelay(time.Millisecond, &llm.Finding{Take: "t"}),
		never(),
		never(),
	}}
	m := NewManager(researcher, state, bus, Config{Attempts: 3, AttemptTimeout: time.Second}, quietLogger())
	m.Launch(context.Background(), p, "q")
	m.Wait()

	var returned bool
	for {
		select {
		case ev := <-sub.Channel:
			if ev.Type == events.EventAgentReturned {
				payload := ev.Payload.(map[string]interface{})
				assert.Equal(t, p.ID, payload["agent_id"])
				assert.Equal(t, true, payload["has_findings"])
				returned = true
			}
			continue
		default:
		}
		break
	}
	assert.True(t, returned, "agent_returned event published")
}

func TestManager_ParentCancellation(t *testing.T) {
	state, bus, p := newFixture(t)

	researcher := &racingResearcher{outcomes: []func(ctx context.Context) (*llm.Finding, error){never(), never(), never()}}
	m := NewManager(researcher, state, bus, Config{Attempts: 3, AttemptTimeout: time.Minute}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	m.Launch(ctx, p, "q")
	cancel()
	m.Wait()

	_, ok := state.Finding(p.ID)
	assert.False(t, ok)
	assert.False(t, state.IsResearching(p.ID))
}

func drainPhases(sub *events.Subscriber) []string {
	var phases []string
	for {
		select {
		case ev := <-sub.Channel:
			if ev.Type == events.EventResearchStatus {
				payload := ev.Payload.(map[string]interface{})
				phases = append(phases, payload["type"].(string))
			}
		default:
			return phases
		}
	}
}
