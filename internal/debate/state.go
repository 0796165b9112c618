package debate

// Phase is the turn-taking state.
type Phase int

const (
	// PhaseBootstrap means no active speaker yet; the session is waiting
	// for a topic and roster.
	PhaseBootstrap Phase = iota
	// PhaseSpeakerActive means exactly one persona holds the turn.
	PhaseSpeakerActive
	// PhaseAwaitingUser means a speaker explicitly yielded to the human and
	// the debate is suspended until the user speaks.
	PhaseAwaitingUser
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case PhaseBootstrap:
		return "bootstrap"
	case PhaseSpeakerActive:
		return "speaker_active"
	case PhaseAwaitingUser:
		return "awaiting_user"
	default:
		return "unknown"
	}
}

// Machine is the turn-taking state machine. It advances only via explicit
// transitions; nothing polls it. It is confined to the session's single
// logical thread of control and needs no locking.
type Machine struct {
	phase    Phase
	activeID int
}

// NewMachine starts in Bootstrap with no active speaker.
func NewMachine() *Machine {
	return &Machine{phase: PhaseBootstrap, activeID: -1}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	return m.phase
}

// ActiveID returns the active persona id, valid only outside Bootstrap.
// AwaitingUser retains the yielding persona as the one that will decide the
// next speaker once the user has spoken.
func (m *Machine) ActiveID() (int, bool) {
	if m.activeID < 0 {
		return 0, false
	}
	return m.activeID, true
}

// Activate hands the turn to a persona.
func (m *Machine) Activate(personaID int) {
	m.phase = PhaseSpeakerActive
	m.activeID = personaID
}

// AwaitUser suspends the debate for the human's turn. The yielding persona
// stays recorded as active-in-waiting.
func (m *Machine) AwaitUser() {
	m.phase = PhaseAwaitingUser
}
