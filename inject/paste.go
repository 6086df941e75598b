package inject

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/atotto/clipboard"

	"dictate/log"
)

const clipboardRestoreDelay = 600 * time.Millisecond

// Paste puts the text on the clipboard and sends the paste shortcut. The
// previous clipboard content comes back once the target has read it.
type Paste struct {
	Restore bool

	shortcut func() error
	read     func() (string, error)
	write    func(string) error
	after    func(time.Duration, func())

	mu sync.Mutex // one paste at a time so restores don't interleave
}

func newPaste(shortcut func() error, restore bool) (*Paste, error) {
	if clipboard.Unsupported {
		return nil, &Error{Backend: BackendPaste, Err: fmt.Errorf("%w: no clipboard tool (install wl-clipboard, xclip or xsel)", ErrBackendUnavailable)}
	}
	return &Paste{
		Restore:  restore,
		shortcut: shortcut,
		read:     clipboard.ReadAll,
		write:    clipboard.WriteAll,
		after: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}, nil
}

func (p *Paste) Name() string { return BackendPaste }

func (p *Paste) Inject(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var prev string
	var hadPrev bool
	if p.Restore {
		if s, err := p.read(); err == nil {
			prev, hadPrev = s, true
		}
	}

	if err := p.write(text); err != nil {
		return &Error{Backend: BackendPaste, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return &Error{Backend: BackendPaste, Err: err}
	}
	if err := p.shortcut(); err != nil {
		return &Error{Backend: BackendPaste, Err: err}
	}

	if hadPrev && prev != text {
		p.after(clipboardRestoreDelay, func() {
			if err := p.write(prev); err != nil {
				log.Warnf("clipboard restore failed: %v", err)
			}
		})
	}
	return nil
}

// CheckClipboard writes a marker to the clipboard, reads it back and puts
// the previous content back. Clipboard tools can hang when the compositor
// is unreachable, so the round trip is bounded by timeout.
func CheckClipboard(timeout time.Duration) (string, error) {
	if clipboard.Unsupported {
		return "", fmt.Errorf("%w: no clipboard tool (install wl-clipboard, xclip or xsel)", ErrBackendUnavailable)
	}
	marker := fmt.Sprintf("dictate-doctor-%d", time.Now().UnixNano())
	ch := make(chan error, 1)
	go func() {
		prev, prevErr := clipboard.ReadAll()
		if err := clipboard.WriteAll(marker); err != nil {
			ch <- fmt.Errorf("write: %w", err)
			return
		}
		got, err := clipboard.ReadAll()
		if prevErr == nil {
			clipboard.WriteAll(prev)
		}
		switch {
		case err != nil:
			ch <- fmt.Errorf("read: %w", err)
		case got != marker:
			ch <- fmt.Errorf("mismatch: wrote %q, got %q", marker, got)
		default:
			ch <- nil
		}
	}()
	select {
	case err := <-ch:
		if err != nil {
			return "", err
		}
		return "clipboard write/read verified", nil
	case <-time.After(timeout):
		return "", fmt.Errorf("clipboard timed out (compositor not accessible?)")
	}
}
