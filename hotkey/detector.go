package hotkey

import (
	"fmt"
	"sync"
	"time"

	"dictate/log"
)

type Mode string

const (
	ModeCombo       Mode = "combo"
	ModeDoublePress Mode = "double"
)

const DefaultWindow = 500 * time.Millisecond

type Config struct {
	Mode   Mode
	Combo  Combo
	Key    string        // double-press key, may be a generic modifier
	Window time.Duration // double-press window
}

// Detector recognizes the configured combo or double press in a Source's
// event stream.
type Detector struct {
	src     Source
	cfg     Config
	toggles chan Toggle

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

func NewDetector(src Source, cfg Config) (*Detector, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeCombo
	}
	switch cfg.Mode {
	case ModeCombo:
		if cfg.Combo.IsZero() {
			return nil, fmt.Errorf("combo mode needs a combo")
		}
	case ModeDoublePress:
		k, err := NormalizeKey(cfg.Key)
		if err != nil {
			return nil, fmt.Errorf("double-press key: %w", err)
		}
		cfg.Key = k
		if cfg.Window <= 0 {
			cfg.Window = DefaultWindow
		}
	default:
		return nil, fmt.Errorf("unknown hotkey mode %q", cfg.Mode)
	}
	return &Detector{src: src, cfg: cfg, toggles: make(chan Toggle, 8)}, nil
}

func (d *Detector) Toggles() <-chan Toggle { return d.toggles }

func (d *Detector) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *Detector) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return ErrAlreadyRunning
	}
	if err := d.src.Register(); err != nil {
		return fmt.Errorf("register key source: %w", err)
	}
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	d.running = true
	go d.loop(d.src.Events(), d.stop, d.done)
	return nil
}

// Stop unregisters the source and waits for evaluation to finish.
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}
	close(d.stop)
	d.src.Unregister()
	<-d.done
	d.running = false
}

func (d *Detector) loop(events <-chan KeyEvent, stop, done chan struct{}) {
	defer close(done)
	m := newMatcher(d.cfg)
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if m.feed(ev) {
				d.emit(Toggle{Time: ev.Time})
			}
		}
	}
}

func (d *Detector) emit(t Toggle) {
	select {
	case d.toggles <- t:
	default:
		log.Warn("hotkey: toggle dropped, consumer not keeping up")
	}
}

// matcher holds the per-run gesture state. It is only touched by the
// detector goroutine.
type matcher struct {
	cfg    Config
	held   map[string]bool
	active bool      // combo fired and not yet released
	last   time.Time // baseline press for double-press
}

func newMatcher(cfg Config) *matcher {
	return &matcher{cfg: cfg, held: map[string]bool{}}
}

// feed reports whether ev completes a gesture.
func (m *matcher) feed(ev KeyEvent) bool {
	repeat := ev.Pressed && m.held[ev.Key]
	if ev.Pressed {
		m.held[ev.Key] = true
	} else {
		delete(m.held, ev.Key)
	}

	if m.cfg.Mode == ModeDoublePress {
		return m.double(ev, repeat)
	}
	return m.combo(ev)
}

func (m *matcher) combo(ev KeyEvent) bool {
	held := m.cfg.Combo.Held(m.held)
	if !held {
		m.active = false
		return false
	}
	if m.active || !ev.Pressed {
		return false
	}
	m.active = true
	return true
}

func (m *matcher) double(ev KeyEvent, repeat bool) bool {
	if !ev.Pressed || repeat || !Matches(m.cfg.Key, ev.Key) {
		return false
	}
	if !m.last.IsZero() && ev.Time.Sub(m.last) < m.cfg.Window {
		m.last = time.Time{}
		return true
	}
	m.last = ev.Time
	return false
}
