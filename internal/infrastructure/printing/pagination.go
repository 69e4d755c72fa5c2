package printing

import (
	"fmt"
	"sync"
)

// Phase is the state of one paginated render.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRendering
	PhaseNeedsNewPage
	PhaseComplete
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseRendering:
		return "Rendering"
	case PhaseNeedsNewPage:
		return "NeedsNewPage"
	case PhaseComplete:
		return "Complete"
	case PhaseFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// IsTerminal reports whether no further transition is allowed.
func (p Phase) IsTerminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}

// Tracker drives the Idle → Rendering → NeedsNewPage → Rendering ... →
// Complete | Failed state machine and counts pages. Failed is reachable from
// every non-terminal phase.
type Tracker struct {
	mu    sync.Mutex
	phase Phase
	page  int
	err   error
}

// NewTracker returns an idle tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Start enters Rendering on page 1.
func (t *Tracker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.phase != PhaseIdle {
		return t.illegal(PhaseRendering)
	}
	t.phase = PhaseRendering
	t.page = 1
	return nil
}

// Overflow records that the current page is full.
func (t *Tracker) Overflow() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.phase != PhaseRendering {
		return t.illegal(PhaseNeedsNewPage)
	}
	t.phase = PhaseNeedsNewPage
	return nil
}

// NewPage resumes rendering on the next page.
func (t *Tracker) NewPage() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.phase != PhaseNeedsNewPage {
		return t.illegal(PhaseRendering)
	}
	t.phase = PhaseRendering
	t.page++
	return nil
}

// AddPage is Overflow followed by NewPage. It returns the new page number.
func (t *Tracker) AddPage() (int, error) {
	if err := t.Overflow(); err != nil {
		return 0, err
	}
	if err := t.NewPage(); err != nil {
		return 0, err
	}
	return t.Page(), nil
}

// Complete finishes a render that is on a page.
func (t *Tracker) Complete() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.phase != PhaseRendering {
		return t.illegal(PhaseComplete)
	}
	t.phase = PhaseComplete
	return nil
}

// Fail moves the tracker to Failed and keeps the first cause.
func (t *Tracker) Fail(cause error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.phase.IsTerminal() {
		return t.illegal(PhaseFailed)
	}
	t.phase = PhaseFailed
	t.err = cause
	return nil
}

// Phase returns the current phase.
func (t *Tracker) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// Page returns the current page number, 0 before Start.
func (t *Tracker) Page() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.page
}

// Err returns the failure cause.
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Tracker) illegal(to Phase) error {
	return fmt.Errorf("illegal pagination transition %s -> %s", t.phase, to)
}
