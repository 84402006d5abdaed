// Package input tracks the controller state delivered to the guest before each tick.
package input

import (
	"strings"
	"sync"
)

// Button is one bit of the controller bitmask.
type Button uint32

const (
	Right Button = 1 << iota
	Left
	Up
	Down
	A
	B
	Select
	Start
)

var buttonNames = []struct {
	b    Button
	name string
}{
	{Right, "right"}, {Left, "left"}, {Up, "up"}, {Down, "down"},
	{A, "a"}, {B, "b"}, {Select, "select"}, {Start, "start"},
}

func (b Button) String() string {
	var parts []string
	for _, n := range buttonNames {
		if b&n.b != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// DefaultHoldFrames is how long a press without a release stays down.
const DefaultHoldFrames = 6

// State is the live controller. Terminals report key presses but rarely key
// releases, so a press holds its button for a number of snapshots unless it is
// released explicitly or pressed again. State is safe for concurrent use.
type State struct {
	hold       map[Button]int
	held       Button
	holdFrames int
	mu         sync.Mutex
}

// NewState creates a state where a press lasts holdFrames snapshots;
// holdFrames <= 0 keeps buttons down until Release.
func NewState(holdFrames int) *State {
	return &State{hold: make(map[Button]int), holdFrames: holdFrames}
}

// Press pushes buttons down, restarting their hold.
func (s *State) Press(b Button) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held |= b
	for _, n := range buttonNames {
		if b&n.b != 0 {
			s.hold[n.b] = s.holdFrames
		}
	}
}

// Release lets buttons up.
func (s *State) Release(b Button) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held &^= b
	for _, n := range buttonNames {
		if b&n.b != 0 {
			delete(s.hold, n.b)
		}
	}
}

// Set replaces the whole mask. Buttons set this way never decay.
func (s *State) Set(mask uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held = Button(mask)
	clear(s.hold)
}

// Held returns the current mask without advancing holds.
func (s *State) Held() Button {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held
}

// Snapshot returns the mask for the coming tick and ages timed presses.
func (s *State) Snapshot() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	mask := uint32(s.held)
	if s.holdFrames > 0 {
		for b, left := range s.hold {
			left--
			if left <= 0 {
				s.held &^= b
				delete(s.hold, b)
				continue
			}
			s.hold[b] = left
		}
	}
	return mask
}
