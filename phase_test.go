package main

import (
	"testing"
	"time"
)

func TestPhaseMachineTransitionSequence(t *testing.T) {
	result := ResultRunning
	pm := NewPhaseMachine(PhaseDurations{}, &result, nil, nil)

	if day, phase := pm.Current(); day != 0 || phase != PhasePre {
		t.Fatalf("fresh machine at day %d %s, want day 0 pre", day, phase)
	}

	steps := []struct {
		phase PhaseName
		day   int
	}{
		{PhaseDay, 1},
		{PhaseNight, 1},
		{PhaseDay, 2},
		{PhaseNight, 2},
		{PhaseDay, 3},
	}
	for i, step := range steps {
		if got := pm.Advance(); got != step.phase {
			t.Fatalf("advance %d entered %s, want %s", i, got, step.phase)
		}
		if day, _ := pm.Current(); day != step.day {
			t.Fatalf("advance %d at day %d, want %d", i, day, step.day)
		}
	}
}

func TestPhaseMachineForcedFinish(t *testing.T) {
	result := ResultRunning
	forced := 0
	pm := NewPhaseMachine(PhaseDurations{}, &result, nil, func() { forced++ })

	pm.Advance() // day 1
	result = ResultWerewolvesWin

	if got := pm.Advance(); got != PhaseFinished {
		t.Fatalf("settled result advanced to %s, want finished", got)
	}
	if forced != 1 {
		t.Fatalf("onForcedFinish ran %d times, want 1", forced)
	}
}

func TestPhaseMachineFinishedIsTerminal(t *testing.T) {
	result := ResultAbandoned
	forced := 0
	pm := NewPhaseMachine(PhaseDurations{}, &result, nil, func() { forced++ })

	pm.Advance()
	pm.Advance()
	pm.Advance()

	if _, phase := pm.Current(); phase != PhaseFinished {
		t.Fatalf("machine left finished: %s", phase)
	}
	if forced != 1 {
		t.Fatalf("onForcedFinish ran %d times on repeated advances, want 1", forced)
	}
}

func TestPhaseMachineTimerPostsElapsed(t *testing.T) {
	result := ResultRunning
	elapsed := make(chan struct{}, 1)
	pm := NewPhaseMachine(
		PhaseDurations{Pre: 5 * time.Millisecond, Day: time.Hour, Night: time.Hour},
		&result,
		func() { elapsed <- struct{}{} },
		nil,
	)
	defer pm.Stop()

	pm.Start()
	select {
	case <-elapsed:
	case <-time.After(time.Second):
		t.Fatal("pre-phase timer never posted elapsed")
	}
}

func TestPhaseMachineAdvanceWhileTimersFire(t *testing.T) {
	result := ResultRunning
	elapsed := make(chan struct{}, 1)
	pm := NewPhaseMachine(
		PhaseDurations{Pre: time.Millisecond, Day: time.Millisecond, Night: time.Millisecond},
		&result,
		func() {
			select {
			case elapsed <- struct{}{}:
			default:
			}
		},
		nil,
	)
	defer pm.Stop()

	// Re-arm repeatedly while expired timer callbacks are still firing; the
	// callbacks must not touch machine state the advances are rewriting.
	pm.Start()
	for i := 0; i < 50; i++ {
		pm.Advance()
	}
	pm.Stop()

	if day, phase := pm.Current(); day != 25 || phase != PhaseNight {
		t.Fatalf("machine at day %d %s after 50 advances, want night 25", day, phase)
	}
}

func TestPhaseMachineStopCancelsTimer(t *testing.T) {
	result := ResultRunning
	elapsed := make(chan struct{}, 1)
	pm := NewPhaseMachine(
		PhaseDurations{Pre: 20 * time.Millisecond},
		&result,
		func() { elapsed <- struct{}{} },
		nil,
	)

	pm.Start()
	pm.Stop()

	select {
	case <-elapsed:
		t.Fatal("stopped timer still fired")
	case <-time.After(60 * time.Millisecond):
	}
}
