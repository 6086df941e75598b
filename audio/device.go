package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// ErrSelectionCancelled is returned when the picker is left with Ctrl+C.
var ErrSelectionCancelled = errors.New("device selection cancelled")

type pickAction int

const (
	pickNone pickAction = iota
	pickConfirm
	pickCancel
)

// pickKey applies one read from the terminal to the cursor. Arrow keys and
// j/k move, Enter confirms, Ctrl+C cancels.
func pickKey(cursor, n int, in []byte) (int, pickAction) {
	switch {
	case len(in) == 1 && (in[0] == '\r' || in[0] == '\n'):
		return cursor, pickConfirm
	case len(in) == 1 && in[0] == 3:
		return cursor, pickCancel
	case len(in) == 1 && in[0] == 'j', len(in) == 3 && in[0] == 0x1b && in[1] == '[' && in[2] == 'B':
		if cursor < n-1 {
			cursor++
		}
	case len(in) == 1 && in[0] == 'k', len(in) == 3 && in[0] == 0x1b && in[1] == '[' && in[2] == 'A':
		if cursor > 0 {
			cursor--
		}
	}
	return cursor, pickNone
}

func renderPicker(w io.Writer, devices []DeviceInfo, cursor int) {
	fmt.Fprint(w, "\r\x1b[J")
	fmt.Fprint(w, "Select input device (↑/↓, Enter to confirm):\r\n\r\n")
	for i, d := range devices {
		tag := ""
		if IsBluetooth(d.Name) {
			tag = " \x1b[33m[⚠ Lower audio quality]\x1b[0m"
		}
		if i == cursor {
			fmt.Fprintf(w, "  \x1b[1;36m▶ %s%s\x1b[0m\r\n", d.Name, tag)
		} else {
			fmt.Fprintf(w, "    %s%s\r\n", d.Name, tag)
		}
	}
}

// pick runs the picker loop over in, drawing to out.
func pick(in io.Reader, out io.Writer, devices []DeviceInfo) (*DeviceInfo, error) {
	cursor := 0
	renderPicker(out, devices, cursor)

	buf := make([]byte, 3)
	for {
		n, err := in.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		var act pickAction
		cursor, act = pickKey(cursor, len(devices), buf[:n])
		switch act {
		case pickConfirm:
			fmt.Fprint(out, "\r\n")
			return &devices[cursor], nil
		case pickCancel:
			fmt.Fprint(out, "\r\n")
			return nil, ErrSelectionCancelled
		}
		fmt.Fprintf(out, "\x1b[%dA", len(devices)+2)
		renderPicker(out, devices, cursor)
	}
}

// SelectDevice asks the user to choose a capture device on the terminal.
// With a single device it returns that device without prompting.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	switch len(devices) {
	case 0:
		return nil, fmt.Errorf("no capture devices found")
	case 1:
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	return pick(os.Stdin, os.Stdout, devices)
}
