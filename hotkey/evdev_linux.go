//go:build linux

package hotkey

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	evKey      = 1
	keyRelease = 0
	keyPress   = 1
	keyRepeat  = 2

	inputEventSize = 24
)

var evdevExtra = map[uint16]string{
	97:  "ctrl_r",
	100: "alt_r",
	125: "super_l",
	126: "super_r",
}

func evdevKey(code uint16) (string, bool) {
	if name, ok := evdevExtra[code]; ok {
		return name, true
	}
	name, ok := scancodes[code]
	return name, ok
}

// evdevSource reads every keyboard under /dev/input. The user needs to be in
// the input group.
type evdevSource struct {
	events chan KeyEvent

	mu    sync.Mutex
	files []*os.File
	stop  chan struct{}
	wg    sync.WaitGroup
}

func newEvdev() *evdevSource {
	return &evdevSource{events: make(chan KeyEvent, sourceBuffer)}
}

func (s *evdevSource) Register() error {
	keyboards, err := findKeyboards()
	if err != nil {
		return fmt.Errorf("finding keyboards: %w", err)
	}
	if len(keyboards) == 0 {
		return fmt.Errorf("no keyboard devices found (is user in 'input' group?)")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop = make(chan struct{})
	for _, path := range keyboards {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		s.files = append(s.files, f)
		s.wg.Add(1)
		go s.readEvents(f, s.stop)
	}
	if len(s.files) == 0 {
		close(s.stop)
		s.stop = nil
		return fmt.Errorf("could not open any keyboard device (run: sudo usermod -aG input $USER, then re-login)")
	}
	return nil
}

func (s *evdevSource) readEvents(f *os.File, stop <-chan struct{}) {
	defer s.wg.Done()
	buf := make([]byte, inputEventSize*16)
	for {
		n, err := f.Read(buf)
		if err != nil {
			return
		}
		for i := 0; i+inputEventSize <= n; i += inputEventSize {
			ev, ok := parseEvent(buf[i : i+inputEventSize])
			if !ok {
				continue
			}
			if !send(s.events, stop, ev) {
				return
			}
		}
	}
}

// parseEvent decodes a 64-bit struct input_event.
func parseEvent(b []byte) (KeyEvent, bool) {
	sec := int64(binary.LittleEndian.Uint64(b[0:]))
	usec := int64(binary.LittleEndian.Uint64(b[8:]))
	evType := binary.LittleEndian.Uint16(b[16:])
	code := binary.LittleEndian.Uint16(b[18:])
	value := int32(binary.LittleEndian.Uint32(b[20:]))

	if evType != evKey || value == keyRepeat {
		return KeyEvent{}, false
	}
	name, ok := evdevKey(code)
	if !ok {
		return KeyEvent{}, false
	}
	return KeyEvent{
		Key:     name,
		Pressed: value == keyPress,
		Time:    time.Unix(sec, usec*int64(time.Microsecond)),
	}, true
}

func (s *evdevSource) Unregister() {
	s.mu.Lock()
	if s.stop == nil {
		s.mu.Unlock()
		return
	}
	close(s.stop)
	for _, f := range s.files {
		f.Close()
	}
	s.files, s.stop = nil, nil
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *evdevSource) Events() <-chan KeyEvent { return s.events }

func findKeyboards() ([]string, error) {
	entries, err := os.ReadDir("/dev/input")
	if err != nil {
		return nil, err
	}

	var keyboards []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		if isKeyboard(e.Name()) {
			keyboards = append(keyboards, filepath.Join("/dev/input", e.Name()))
		}
	}
	return keyboards, nil
}

func isKeyboard(eventName string) bool {
	capsPath := filepath.Join("/sys/class/input", eventName, "device", "capabilities", "key")
	data, err := os.ReadFile(capsPath)
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(data))) > 10
}

func Diagnose() (string, error) {
	keyboards, err := findKeyboards()
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	if len(keyboards) == 0 {
		return "", fmt.Errorf("no keyboard devices found (is user in 'input' group?)")
	}

	var opened string
	for _, path := range keyboards {
		f, err := os.Open(path)
		if err == nil {
			f.Close()
			opened = path
			break
		}
	}
	if opened == "" {
		return "", fmt.Errorf("found %d keyboard(s) but cannot open any (run: sudo usermod -aG input $USER)", len(keyboards))
	}
	return fmt.Sprintf("%d keyboard(s) found, opened %s", len(keyboards), opened), nil
}
