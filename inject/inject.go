// Package inject delivers transcribed text to the focused application.
package inject

import (
	"context"
	"errors"
	"fmt"
	"unicode"
)

var ErrBackendUnavailable = errors.New("injection backend unavailable")

type Error struct {
	Backend string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("text injection failed (%s): %v", e.Backend, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap tags err with the backend name unless it already carries one.
func Wrap(backend string, err error) error {
	if err == nil {
		return nil
	}
	var ie *Error
	if errors.As(err, &ie) {
		return err
	}
	return &Error{Backend: backend, Err: err}
}

type Injector interface {
	Name() string
	Inject(ctx context.Context, text string) error
}

const (
	BackendAuto    = "auto"
	BackendType    = "type"
	BackendPaste   = "paste"
	BackendYdotool = "ydotool"
)

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// mixed types plain ASCII and pastes anything else, since the virtual
// keyboard only knows a US layout.
type mixed struct {
	typer Injector
	paste Injector
}

func (m *mixed) Name() string { return m.typer.Name() + "+" + m.paste.Name() }

func (m *mixed) Inject(ctx context.Context, text string) error {
	if isASCII(text) {
		return m.typer.Inject(ctx, text)
	}
	return m.paste.Inject(ctx, text)
}
