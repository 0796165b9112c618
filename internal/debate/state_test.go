package debate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMachineTransitions(t *testing.T) {
	t.Run("starts in bootstrap with no active speaker", func(t *testing.T) {
		m := NewMachine()

		assert.Equal(t, PhaseBootstrap, m.Phase())
		_, ok := m.ActiveID()
		assert.False(t, ok)
	})

	t.Run("activate hands the turn to a persona", func(t *testing.T) {
		m := NewMachine()
		m.Activate(2)

		assert.Equal(t, PhaseSpeakerActive, m.Phase())
		id, ok := m.ActiveID()
		assert.True(t, ok)
		assert.Equal(t, 2, id)
	})

	t.Run("await user retains the yielding persona", func(t *testing.T) {
		m := NewMachine()
		m.Activate(1)
		m.AwaitUser()

		assert.Equal(t, PhaseAwaitingUser, m.Phase())
		id, ok := m.ActiveID()
		assert.True(t, ok)
		assert.Equal(t, 1, id)
	})

	t.Run("reactivation after await resumes the debate", func(t *testing.T) {
		m := NewMachine()
		m.Activate(0)
		m.AwaitUser()
		m.Activate(1)

		assert.Equal(t, PhaseSpeakerActive, m.Phase())
		id, _ := m.ActiveID()
		assert.Equal(t, 1, id)
	})
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "bootstrap", PhaseBootstrap.String())
	assert.Equal(t, "speaker_active", PhaseSpeakerActive.String())
	assert.Equal(t, "awaiting_user", PhaseAwaitingUser.String())
	assert.Equal(t, "unknown", Phase(99).String())
}
