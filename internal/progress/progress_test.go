package progress

import (
	"math"
	"testing"
)

func TestOverallWeightedBlend(t *testing.T) {
	tr := NewTracker(nil)
	tr.Report(PhasePreparing, 100)
	tr.Report(PhaseAudio, 100)
	tr.Report(PhaseVideo, 50)

	// 20 + 25 + 50*0.5 = 70 out of 100.
	if got := tr.Overall(); math.Abs(got-70) > 1e-9 {
		t.Errorf("Overall = %f, want 70", got)
	}
}

func TestMonotonicWithinPhase(t *testing.T) {
	tr := NewTracker(nil)
	tr.Report(PhaseAudio, 60)
	tr.Report(PhaseAudio, 40)
	if got := tr.PhasePercent(PhaseAudio); got != 60 {
		t.Errorf("phase percent moved backwards: %f", got)
	}
}

func TestLaterPhaseCompletesEarlier(t *testing.T) {
	tr := NewTracker(nil)
	tr.Report(PhaseVideo, 10)
	if got := tr.PhasePercent(PhasePreparing); got != 100 {
		t.Errorf("preparing = %f after video started, want 100", got)
	}
	if got := tr.PhasePercent(PhaseAudio); got != 100 {
		t.Errorf("audio = %f after video started, want 100", got)
	}
	if got := tr.CurrentPhase(); got != PhaseVideo {
		t.Errorf("current phase = %s, want video", got)
	}
}

func TestStaleEarlierPhaseDropped(t *testing.T) {
	tr := NewTracker(nil)
	tr.Report(PhaseVideo, 30)
	tr.Report(PhaseAudio, 10) // late completion callback from a finished stage
	if got := tr.PhasePercent(PhaseAudio); got != 100 {
		t.Errorf("stale report regressed audio to %f", got)
	}
}

func TestOnChangeObservesMonotonicOverall(t *testing.T) {
	var seen []float64
	tr := NewTracker(func(_ Phase, overall float64) {
		seen = append(seen, overall)
	})
	tr.Report(PhasePreparing, 50)
	tr.Report(PhasePreparing, 100)
	tr.Report(PhaseAudio, 20)
	tr.Report(PhaseVideo, 100)
	tr.Report(PhaseFinalizing, 100)

	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("overall regressed: %v", seen)
		}
	}
	if seen[len(seen)-1] != 100 {
		t.Errorf("final overall = %f, want 100", seen[len(seen)-1])
	}
}
