//go:build darwin || windows

package hotkey

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.design/x/hotkey"
)

var globalKeys = map[string]hotkey.Key{
	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD, "e": hotkey.KeyE,
	"f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH, "i": hotkey.KeyI, "j": hotkey.KeyJ,
	"k": hotkey.KeyK, "l": hotkey.KeyL, "m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO,
	"p": hotkey.KeyP, "q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX, "y": hotkey.KeyY,
	"z": hotkey.KeyZ,
	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3, "4": hotkey.Key4,
	"5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7, "8": hotkey.Key8, "9": hotkey.Key9,
	"space": hotkey.KeySpace, "enter": hotkey.KeyReturn, "esc": hotkey.KeyEscape, "tab": hotkey.KeyTab,
	"f1": hotkey.KeyF1, "f2": hotkey.KeyF2, "f3": hotkey.KeyF3, "f4": hotkey.KeyF4,
	"f5": hotkey.KeyF5, "f6": hotkey.KeyF6, "f7": hotkey.KeyF7, "f8": hotkey.KeyF8,
	"f9": hotkey.KeyF9, "f10": hotkey.KeyF10, "f11": hotkey.KeyF11, "f12": hotkey.KeyF12,
}

// globalSource registers the combo with the OS. It only hears that one
// combo, so it synthesizes press and release events for each of its keys.
type globalSource struct {
	combo  Combo
	hk     *hotkey.Hotkey
	events chan KeyEvent

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

func newGlobal(c Combo) (*globalSource, error) {
	mods, key, err := c.Split()
	if err != nil {
		return nil, err
	}
	k, ok := globalKeys[key]
	if !ok {
		return nil, fmt.Errorf("key %q cannot be registered as a global hotkey", key)
	}
	var hm []hotkey.Modifier
	for _, m := range mods {
		base, _, _ := strings.Cut(m, "_")
		mod, ok := globalModifiers[base]
		if !ok {
			return nil, fmt.Errorf("modifier %q not supported by global hotkeys", m)
		}
		hm = append(hm, mod)
	}
	return &globalSource{
		combo:  c,
		hk:     hotkey.New(hm, k),
		events: make(chan KeyEvent, sourceBuffer),
	}, nil
}

func (s *globalSource) Register() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return nil
	}
	if err := s.hk.Register(); err != nil {
		return fmt.Errorf("register %s: %w", s.combo, err)
	}
	stop := make(chan struct{})
	s.stop = stop
	keys := s.combo.Keys()

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-stop:
				return
			case <-s.hk.Keydown():
				now := time.Now()
				for _, k := range keys {
					if !send(s.events, stop, KeyEvent{Key: concrete(k), Pressed: true, Time: now}) {
						return
					}
				}
			}
		}
	}()
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-stop:
				return
			case <-s.hk.Keyup():
				now := time.Now()
				for i := len(keys) - 1; i >= 0; i-- {
					if !send(s.events, stop, KeyEvent{Key: concrete(keys[i]), Time: now}) {
						return
					}
				}
			}
		}
	}()
	return nil
}

func (s *globalSource) Unregister() {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	s.hk.Unregister()
	s.wg.Wait()
}

func (s *globalSource) Events() <-chan KeyEvent { return s.events }

func newGlobalSource(c Combo) (Source, error) {
	s, err := newGlobal(c)
	if err != nil {
		return nil, err
	}
	return s, nil
}
