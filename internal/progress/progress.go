// Package progress maps the true asynchronous progress of staging and
// transcoding onto a small ordered set of user-facing phases.
package progress

import "sync"

// Phase is one user-facing stage of a generation run.
type Phase int

const (
	PhasePreparing Phase = iota
	PhaseAudio
	PhaseVideo
	PhaseFinalizing
	phaseCount
)

func (p Phase) String() string {
	switch p {
	case PhasePreparing:
		return "preparing"
	case PhaseAudio:
		return "audio"
	case PhaseVideo:
		return "video"
	case PhaseFinalizing:
		return "finalizing"
	}
	return "unknown"
}

// Weight of each phase in the overall percentage.
var weights = [phaseCount]float64{20, 25, 50, 5}

// Tracker reports a monotonic 0-100 percentage per phase and a weighted
// overall blend. A phase cannot report progress until every earlier phase
// has reached 100.
type Tracker struct {
	mu       sync.Mutex
	current  Phase
	percents [phaseCount]float64
	onChange func(Phase, float64)
}

// NewTracker creates a tracker. onChange, if non-nil, is invoked with the
// current phase and overall percentage after every accepted report.
func NewTracker(onChange func(phase Phase, overall float64)) *Tracker {
	return &Tracker{onChange: onChange}
}

// Report records pct (0-100) for a phase. Reports for earlier phases or
// values below what a phase already reached are dropped so the visible
// number never moves backwards. Reporting a later phase completes every
// phase before it.
func (t *Tracker) Report(phase Phase, pct float64) {
	if phase < 0 || phase >= phaseCount {
		return
	}
	t.mu.Lock()

	if phase < t.current {
		t.mu.Unlock()
		return
	}
	if phase > t.current {
		for p := t.current; p < phase; p++ {
			t.percents[p] = 100
		}
		t.current = phase
	}

	if pct > 100 {
		pct = 100
	}
	if pct > t.percents[phase] {
		t.percents[phase] = pct
	}

	phaseNow := t.current
	overall := t.overallLocked()
	cb := t.onChange
	t.mu.Unlock()

	if cb != nil {
		cb(phaseNow, overall)
	}
}

// CurrentPhase returns the phase currently reporting.
func (t *Tracker) CurrentPhase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// PhasePercent returns the progress recorded for one phase.
func (t *Tracker) PhasePercent(phase Phase) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if phase < 0 || phase >= phaseCount {
		return 0
	}
	return t.percents[phase]
}

// Overall returns the weighted 0-100 blend across all phases.
func (t *Tracker) Overall() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.overallLocked()
}

func (t *Tracker) overallLocked() float64 {
	totalWeight := 0.0
	acc := 0.0
	for p := Phase(0); p < phaseCount; p++ {
		totalWeight += weights[p]
		acc += weights[p] * t.percents[p] / 100
	}
	return acc / totalWeight * 100
}
