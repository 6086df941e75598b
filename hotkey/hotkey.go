// Package hotkey turns raw key events into toggle signals.
package hotkey

import (
	"errors"
	"time"
)

var ErrAlreadyRunning = errors.New("hotkey detector already running")

// KeyEvent is a single press or release of a named key.
type KeyEvent struct {
	Key     string
	Pressed bool
	Time    time.Time
}

// Source produces key events between Register and Unregister.
type Source interface {
	Register() error
	Unregister()
	Events() <-chan KeyEvent
}

// Toggle is emitted once per recognized combo or gesture.
type Toggle struct {
	Time time.Time
}

const sourceBuffer = 64

// send hands ev to ch unless stop is closed first.
func send(ch chan<- KeyEvent, stop <-chan struct{}, ev KeyEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-stop:
		return false
	}
}
