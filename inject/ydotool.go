package inject

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Ydotool types through the ydotoold daemon, which works on Wayland
// compositors that ignore other virtual keyboards.
type Ydotool struct {
	bin string
	run func(cmd *exec.Cmd) error
}

func NewYdotool() (*Ydotool, error) {
	bin, err := exec.LookPath("ydotool")
	if err != nil {
		return nil, &Error{Backend: BackendYdotool, Err: fmt.Errorf("%w: ydotool not found in PATH (install it, e.g. sudo apt install ydotool)", ErrBackendUnavailable)}
	}
	return &Ydotool{bin: bin, run: (*exec.Cmd).Run}, nil
}

func (y *Ydotool) Name() string { return BackendYdotool }

func (y *Ydotool) Inject(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	cmd := exec.CommandContext(ctx, y.bin, "type", "--", text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := y.run(cmd); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return &Error{Backend: BackendYdotool, Err: err}
	}
	return nil
}
