package main

import (
	"log"
	"sync"
	"time"
)

type PhaseName string

const (
	PhasePre      PhaseName = "pre"
	PhaseDay      PhaseName = "day"
	PhaseNight    PhaseName = "night"
	PhaseFinished PhaseName = "finished"
)

type GameResult string

const (
	ResultRunning       GameResult = "running"
	ResultVillagersWin  GameResult = "villagersWin"
	ResultWerewolvesWin GameResult = "werewolvesWin"
	ResultFoxesWin      GameResult = "foxesWin"
	ResultAbandoned     GameResult = "abandoned"
)

// PhaseDurations holds the wall-clock length of each timed phase.
type PhaseDurations struct {
	Pre   time.Duration
	Day   time.Duration
	Night time.Duration
}

// PhaseMachine drives pre -> day <-> night -> finished for one session. It
// reads the session result through a shared holder: any result other than
// running forces the finished state on the next advance. finished is
// terminal.
//
// The machine itself never resolves anything; on timer expiry it posts an
// elapsed signal and waits for Advance to be called once resolution is done.
type PhaseMachine struct {
	mu        sync.Mutex
	day       int
	current   PhaseName
	changedAt time.Time
	timer     *time.Timer
	durations PhaseDurations

	result  *GameResult
	elapsed func() // posts the timer-elapsed signal to the session loop

	// onForcedFinish runs once when a non-running result forces the
	// finished state (marks persisted players as no longer playing).
	onForcedFinish func()
}

func NewPhaseMachine(durations PhaseDurations, result *GameResult, elapsed func(), onForcedFinish func()) *PhaseMachine {
	return &PhaseMachine{
		current:        PhasePre,
		changedAt:      time.Now(),
		durations:      durations,
		result:         result,
		elapsed:        elapsed,
		onForcedFinish: onForcedFinish,
	}
}

// Start arms the timer for the pre phase.
func (pm *PhaseMachine) Start() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.arm(pm.durations.Pre)
}

// Current returns the day counter and phase.
func (pm *PhaseMachine) Current() (int, PhaseName) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.day, pm.current
}

// ChangedAt returns when the current phase began.
func (pm *PhaseMachine) ChangedAt() time.Time {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.changedAt
}

// Advance applies the transition rule and re-arms the timer for the new
// phase. Returns the phase entered. Rule, in order: finished is terminal; a
// settled result forces finished; day goes to night; pre and night go to the
// next day.
func (pm *PhaseMachine) Advance() PhaseName {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.current == PhaseFinished {
		return PhaseFinished
	}

	if *pm.result != ResultRunning {
		pm.stopTimer()
		pm.current = PhaseFinished
		pm.changedAt = time.Now()
		if pm.onForcedFinish != nil {
			pm.onForcedFinish()
		}
		return PhaseFinished
	}

	switch pm.current {
	case PhaseDay:
		pm.current = PhaseNight
		pm.changedAt = time.Now()
		pm.arm(pm.durations.Night)
	default: // pre or night
		pm.day++
		pm.current = PhaseDay
		pm.changedAt = time.Now()
		pm.arm(pm.durations.Day)
	}
	return pm.current
}

// Stop cancels any scheduled timer work. Called on session teardown so a
// stale timer cannot fire into freed state.
func (pm *PhaseMachine) Stop() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.stopTimer()
}

func (pm *PhaseMachine) arm(d time.Duration) {
	pm.stopTimer()
	if pm.elapsed == nil {
		return
	}
	day, phase := pm.day, pm.current // capture under the lock arm is called with
	pm.timer = time.AfterFunc(d, func() {
		log.Printf("Phase timer elapsed (day %d, %s)", day, phase)
		pm.elapsed()
	})
}

func (pm *PhaseMachine) stopTimer() {
	if pm.timer != nil {
		pm.timer.Stop()
		pm.timer = nil
	}
}
