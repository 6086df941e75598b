//go:build !linux

package hotkey

import (
	"sync"
	"time"

	hook "github.com/robotn/gohook"
)

// libuiohook keeps set-1 codes for the main block and prefixes the extended
// ones with 0x0E.
var uiohookExtra = map[uint16]string{
	0x0E1D: "ctrl_r",
	0x0E38: "alt_r",
	0x0E5B: "super_l",
	0x0E5C: "super_r",
}

func uiohookKey(code uint16) (string, bool) {
	if name, ok := uiohookExtra[code]; ok {
		return name, true
	}
	name, ok := scancodes[code]
	return name, ok
}

// hookSource is a process-wide keyboard hook. It sees every key, so modifier
// only combos and double presses work.
type hookSource struct {
	events chan KeyEvent

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func newHook() *hookSource {
	return &hookSource{events: make(chan KeyEvent, sourceBuffer)}
}

func (s *hookSource) Register() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return nil
	}
	raw := hook.Start()
	stop := make(chan struct{})
	done := make(chan struct{})
	s.stop, s.done = stop, done

	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			case ev, ok := <-raw:
				if !ok {
					return
				}
				kev, ok := convertHookEvent(ev)
				if !ok {
					continue
				}
				if !send(s.events, stop, kev) {
					return
				}
			}
		}
	}()
	return nil
}

// gohook reports a physical press as KeyHold and the character it produced
// as KeyDown. Both count as a press; the detector drops the duplicate.
func convertHookEvent(ev hook.Event) (KeyEvent, bool) {
	var pressed bool
	switch ev.Kind {
	case hook.KeyDown, hook.KeyHold:
		pressed = true
	case hook.KeyUp:
	default:
		return KeyEvent{}, false
	}
	name, ok := uiohookKey(ev.Keycode)
	if !ok {
		return KeyEvent{}, false
	}
	when := ev.When
	if when.IsZero() {
		when = time.Now()
	}
	return KeyEvent{Key: name, Pressed: pressed, Time: when}, true
}

func (s *hookSource) Unregister() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	hook.End()
	<-done
}

func (s *hookSource) Events() <-chan KeyEvent { return s.events }
