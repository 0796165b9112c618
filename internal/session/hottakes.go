package session

import (
	"errors"

	"github.com/sirupsen/logrus"
)

// MaxHotTakes bounds the shared hot-takes list.
const MaxHotTakes = 4

// Hot-takes tool failures, reported back to the invoking persona so the model
// can self-correct.
var (
	ErrDuplicateTake    = errors.New("hot take already exists")
	ErrCapacityExceeded = errors.New("hot takes limit reached; replace or delete first")
	ErrTakeNotFound     = errors.New("hot take not found")
)

// HotTakes returns a copy of the current list in order.
func (s *State) HotTakes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.hotTakes))
	copy(out, s.hotTakes)
	return out
}

// AddHotTake appends a take. Fails with ErrDuplicateTake on an exact-match
// duplicate and ErrCapacityExceeded at MaxHotTakes. by attributes the
// mutation for logging only.
func (s *State) AddHotTake(by, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.hotTakes {
		if t == text {
			return ErrDuplicateTake
		}
	}
	if len(s.hotTakes) >= MaxHotTakes {
		return ErrCapacityExceeded
	}
	s.hotTakes = append(s.hotTakes, text)
	s.log.WithFields(logrus.Fields{"persona": by}).Infof("ADD hot take: %s", text)
	return nil
}

// ReplaceHotTake swaps oldText for newText in place, preserving position.
// No uniqueness check is performed against newText.
func (s *State) ReplaceHotTake(by, oldText, newText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range s.hotTakes {
		if t == oldText {
			s.hotTakes[i] = newText
			s.log.WithFields(logrus.Fields{"persona": by}).Infof("REPLACE hot take: %q -> %q", oldText, newText)
			return nil
		}
	}
	return ErrTakeNotFound
}

// DeleteHotTake removes a take by exact text.
func (s *State) DeleteHotTake(by, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range s.hotTakes {
		if t == text {
			s.hotTakes = append(s.hotTakes[:i], s.hotTakes[i+1:]...)
			s.log.WithFields(logrus.Fields{"persona": by}).Infof("DELETE hot take: %s", text)
			return nil
		}
	}
	return ErrTakeNotFound
}
