package hotkey

import (
	"sync"
	"time"
)

// Fake is a Source driven by the caller.
type Fake struct {
	// RegisterErr, if set, is returned by Register.
	RegisterErr error

	events chan KeyEvent

	mu         sync.Mutex
	registered bool
	registers  int
}

func NewFake() *Fake {
	return &Fake{events: make(chan KeyEvent, sourceBuffer)}
}

func (f *Fake) Register() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RegisterErr != nil {
		return f.RegisterErr
	}
	f.registered = true
	f.registers++
	return nil
}

func (f *Fake) Unregister() {
	f.mu.Lock()
	f.registered = false
	f.mu.Unlock()
}

func (f *Fake) Registered() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registered
}

func (f *Fake) Registers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registers
}

func (f *Fake) Events() <-chan KeyEvent { return f.events }

func (f *Fake) Send(ev KeyEvent) { f.events <- ev }

func (f *Fake) Press(key string)   { f.Send(KeyEvent{Key: key, Pressed: true, Time: time.Now()}) }
func (f *Fake) Release(key string) { f.Send(KeyEvent{Key: key, Time: time.Now()}) }

func (f *Fake) Tap(key string) {
	f.Press(key)
	f.Release(key)
}

// PressCombo presses every key of c in order and releases them in reverse.
func (f *Fake) PressCombo(c Combo) {
	keys := c.Keys()
	for _, k := range keys {
		f.Press(concrete(k))
	}
	for i := len(keys) - 1; i >= 0; i-- {
		f.Release(concrete(keys[i]))
	}
}
