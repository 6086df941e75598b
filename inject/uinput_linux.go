//go:build linux

package inject

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
)

// ioctl constants from linux/uinput.h
const (
	uiSetEvbit   = 0x40045564 // UI_SET_EVBIT
	uiSetKeybit  = 0x40045565 // UI_SET_KEYBIT
	uiDevCreate  = 0x5501     // UI_DEV_CREATE
	uiDevDestroy = 0x5502     // UI_DEV_DESTROY
)

// input event types from linux/input-event-codes.h
const (
	evSyn = 0x00
	evKey = 0x01

	keyLeftCtrl  = 29
	keyLeftShift = 42
	keyV         = 47
)

const (
	busUSB     = 0x03
	deviceName = "dictate-keyboard"
)

type inputEvent struct {
	Time  syscall.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type uinputUserDev struct {
	Name         [80]byte
	ID           inputID
	FfEffectsMax uint32
	Absmax       [64]int32
	Absmin       [64]int32
	Absfuzz      [64]int32
	Absflat      [64]int32
}

// Keyboard is a uinput virtual keyboard. It is shared by the type and paste
// backends and created once per process.
type Keyboard struct {
	mu sync.Mutex
	f  *os.File
}

var (
	sharedKB    *Keyboard
	sharedKBErr error
	sharedOnce  sync.Once
)

// OpenKeyboard creates the virtual keyboard on first use.
func OpenKeyboard() (*Keyboard, error) {
	sharedOnce.Do(func() {
		sharedKB, sharedKBErr = createKeyboard()
	})
	return sharedKB, sharedKBErr
}

func ioctl(f *os.File, req, arg uintptr) error {
	if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), req, arg); errno != 0 {
		return errno
	}
	return nil
}

func createKeyboard() (*Keyboard, error) {
	path := "/dev/uinput"
	if _, err := os.Stat(path); err != nil {
		path = "/dev/input/uinput"
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: uinput device not found, try: sudo modprobe uinput", ErrBackendUnavailable)
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|syscall.O_NONBLOCK, os.ModeDevice)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	fail := func(err error) (*Keyboard, error) {
		f.Close()
		return nil, err
	}
	if err := ioctl(f, uiSetEvbit, evKey); err != nil {
		return fail(err)
	}
	if err := ioctl(f, uiSetEvbit, evSyn); err != nil {
		return fail(err)
	}
	// Register all standard keys so udev classifies this as a keyboard
	for i := uintptr(0); i < 256; i++ {
		if err := ioctl(f, uiSetKeybit, i); err != nil {
			return fail(err)
		}
	}
	dev := uinputUserDev{}
	copy(dev.Name[:], deviceName)
	dev.ID.Bustype = busUSB
	dev.ID.Vendor = 0x1234
	dev.ID.Product = 0x5679
	dev.ID.Version = 1
	if err := binary.Write(f, binary.LittleEndian, &dev); err != nil {
		return fail(err)
	}
	if err := ioctl(f, uiDevCreate, 0); err != nil {
		return fail(err)
	}
	// Give compositor time to recognize the new input device
	time.Sleep(200 * time.Millisecond)
	return &Keyboard{f: f}, nil
}

func (k *Keyboard) writeEvent(typ, code uint16, value int32) error {
	ev := inputEvent{Type: typ, Code: code, Value: value}
	return binary.Write(k.f, binary.LittleEndian, &ev)
}

func (k *Keyboard) key(code uint16, value int32) error {
	if err := k.writeEvent(evKey, code, value); err != nil {
		return err
	}
	return k.writeEvent(evSyn, 0, 0)
}

func (k *Keyboard) tap(code uint16, mod uint16) error {
	if mod != 0 {
		if err := k.key(mod, 1); err != nil {
			return err
		}
		// Let compositor register modifier state
		time.Sleep(5 * time.Millisecond)
	}
	if err := k.key(code, 1); err != nil {
		return err
	}
	if err := k.key(code, 0); err != nil {
		return err
	}
	if mod != 0 {
		return k.key(mod, 0)
	}
	return nil
}

// PasteShortcut sends Ctrl+V.
func (k *Keyboard) PasteShortcut() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.tap(keyV, keyLeftCtrl)
}

// Type sends each ASCII character as a keystroke. Characters without a key
// on a US layout are skipped.
func (k *Keyboard) Type(ctx context.Context, text string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for i := 0; i < len(text); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		code, shift, ok := charToKey(text[i])
		if !ok {
			continue
		}
		var mod uint16
		if shift {
			mod = keyLeftShift
		}
		if err := k.tap(code, mod); err != nil {
			return err
		}
	}
	return nil
}

func (k *Keyboard) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.f == nil {
		return nil
	}
	ioctl(k.f, uiDevDestroy, 0)
	err := k.f.Close()
	k.f = nil
	return err
}

// Typer types text through the virtual keyboard.
type Typer struct {
	kb *Keyboard
}

func (t *Typer) Name() string { return BackendType }

func (t *Typer) Inject(ctx context.Context, text string) error {
	if err := t.kb.Type(ctx, text); err != nil {
		return &Error{Backend: BackendType, Err: err}
	}
	return nil
}

// Verify creates the virtual keyboard, sends Ctrl+V and reads it back from
// the kernel input layer to confirm delivery.
func Verify() (string, error) {
	kb, err := OpenKeyboard()
	if err != nil {
		return "", fmt.Errorf("uinput init: %w", err)
	}

	entries, err := os.ReadDir("/sys/class/input")
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	var evdevPath string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		data, err := os.ReadFile(filepath.Join("/sys/class/input", e.Name(), "device", "name"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(data)) == deviceName {
			evdevPath = filepath.Join("/dev/input", e.Name())
			break
		}
	}
	if evdevPath == "" {
		return "", errors.New(deviceName + " evdev device not found")
	}

	evdev, err := os.Open(evdevPath)
	if err != nil {
		return "", fmt.Errorf("cannot open %s: %w", evdevPath, err)
	}
	defer evdev.Close()

	if err := kb.PasteShortcut(); err != nil {
		return "", fmt.Errorf("paste send: %w", err)
	}

	type result struct {
		ctrl, v bool
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		buf := make([]byte, 24*32)
		var r result
		n, err := evdev.Read(buf)
		if err != nil {
			r.err = err
			ch <- r
			return
		}
		for i := 0; i+24 <= n; i += 24 {
			if binary.LittleEndian.Uint16(buf[i+16:]) != evKey {
				continue
			}
			switch binary.LittleEndian.Uint16(buf[i+18:]) {
			case keyLeftCtrl:
				r.ctrl = true
			case keyV:
				r.v = true
			}
		}
		ch <- r
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return "", fmt.Errorf("reading events: %w", r.err)
		}
		if !r.ctrl || !r.v {
			return "", fmt.Errorf("missing events (ctrl=%v, v=%v)", r.ctrl, r.v)
		}
		return fmt.Sprintf("Ctrl+V keystroke verified via %s", evdevPath), nil
	case <-time.After(500 * time.Millisecond):
		return "", errors.New("timed out waiting for keystroke events")
	}
}
