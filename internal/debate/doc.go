// Package debate implements the turn-taking core of a voice debate session:
// the active-speaker state machine, the ephemeral speaker instances built
// fresh from shared session state on every handoff, the tool surface exposed
// to the language model, and the engine that drives reply and handoff turns.
//
// At most one persona holds the turn at any instant; every mutation of the
// shared debate artifacts flows through the active speaker's tool calls, so
// the transcript and hot-takes list are serialized without locking.
package debate
