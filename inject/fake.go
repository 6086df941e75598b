package inject

import (
	"context"
	"sync"
)

// Fake records injected text.
type Fake struct {
	Err error

	mu    sync.Mutex
	texts []string
}

func NewFake() *Fake { return &Fake{} }

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Inject(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	if f.Err != nil {
		return &Error{Backend: "fake", Err: f.Err}
	}
	return nil
}

func (f *Fake) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}
