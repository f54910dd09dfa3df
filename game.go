package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sync"
)

// Store is the persistence collaborator. Failures during teardown are
// logged and never block in-memory teardown.
type Store interface {
	CreateSession(sessionID, groupID string) error
	PersistPlayers(sessionID string, players []Player) error
	PersistResult(sessionID string, result GameResult) error
	MarkNotPlaying(sessionID string) error
}

// Transport is the fire-and-forget broadcast sink. A nil audience means no
// restriction: every connection in the group receives the payload.
type Transport interface {
	Publish(groupID string, payload []byte, audience []string)
}

// GameSettings carries the per-session knobs the engine needs.
type GameSettings struct {
	Durations     PhaseDurations
	AllowSelfVote bool
	Seed          int64
}

// Game is one running session: the phase machine, the five action
// resolvers, and the resolution pipelines that tie them together.
//
// mu guards all session state: actions and queries take it per call, and
// the timer-driven pipeline holds it across resolution. The processing flag
// covers the stretch where the pipeline persists without the lock,
// rejecting submissions instead of queueing them.
type Game struct {
	ID      string
	GroupID string

	mu         sync.Mutex
	processing bool
	result     GameResult

	rng     *rand.Rand
	roster  *Roster
	phases  *PhaseMachine
	votes   *VoteManager
	divines *DivineManager
	guards  *GuardManager
	attacks *AttackManager
	mediums *MediumManager

	store     Store
	transport Transport
	narrator  *Narrator

	// onFinished removes the session from its registry once the result is
	// persisted and the timers are released.
	onFinished func(sessionID string)

	events    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewGame(id, groupID string, users []User, settings GameSettings, store Store, transport Transport, narrator *Narrator, onFinished func(string)) (*Game, error) {
	g := &Game{
		ID:         id,
		GroupID:    groupID,
		result:     ResultRunning,
		rng:        rand.New(rand.NewSource(settings.Seed)),
		store:      store,
		transport:  transport,
		narrator:   narrator,
		onFinished: onFinished,
		events:     make(chan struct{}, 1),
		done:       make(chan struct{}),
	}

	g.roster = NewRoster(g.rng)
	if err := g.roster.AssignRoles(users); err != nil {
		return nil, err
	}

	g.phases = NewPhaseMachine(settings.Durations, &g.result, g.postTimerElapsed, func() {
		if err := store.MarkNotPlaying(id); err != nil {
			logError("phase finish: markNotPlaying", err)
		}
	})

	g.votes = NewVoteManager(g.roster, g.phases, g.rng, settings.AllowSelfVote)
	g.divines = NewDivineManager(g.roster, g.phases, g.rng)
	g.guards = NewGuardManager(g.roster, g.phases, g.rng)
	g.attacks = NewAttackManager(g.roster, g.phases, g.rng, g.guards)
	g.mediums = NewMediumManager(g.roster, g.phases)

	return g, nil
}

// Start persists the seated players, arms the pre-phase timer, and starts
// the session event loop.
func (g *Game) Start() {
	if err := g.store.CreateSession(g.ID, g.GroupID); err != nil {
		logError("game start: createSession", err)
	}
	if err := g.store.PersistPlayers(g.ID, g.roster.Players()); err != nil {
		logError("game start: persistPlayers", err)
	}
	log.Printf("Session %s starting with %d players in group %s", g.ID, len(g.roster.Players()), g.GroupID)
	g.phases.Start()
	go g.run()
}

func (g *Game) postTimerElapsed() {
	select {
	case g.events <- struct{}{}:
	case <-g.done:
	}
}

// run is the per-session event loop. One goroutine owns all pipeline work,
// which makes ordering explicit and cancellation a channel close.
func (g *Game) run() {
	for {
		select {
		case <-g.events:
			g.handleTimerElapsed()
		case <-g.done:
			return
		}
	}
}

// handleTimerElapsed runs the resolution pipeline for the expiring phase,
// advances the machine, and publishes the switch. The session lock is held
// across resolution so submissions and queries never observe a
// half-resolved roster; finish, which persists, runs outside the lock with
// the processing flag still set. Exposed to tests, which drive phases
// synchronously instead of waiting on timers.
func (g *Game) handleTimerElapsed() {
	g.mu.Lock()
	if g.processing {
		g.mu.Unlock()
		return
	}
	_, phase := g.phases.Current()
	if phase == PhaseFinished {
		g.mu.Unlock()
		return
	}
	g.processing = true

	debugLog("pipeline", "session %s resolving %s", g.ID, phase)

	switch phase {
	case PhaseDay:
		g.resolveDay()
	case PhaseNight:
		g.resolveNight()
	}
	// pre has nothing to resolve; its expiry just opens the first day.

	next := g.phases.Advance()
	g.publishPhase(next)
	g.mu.Unlock()

	if next == PhaseFinished {
		g.finish()
	}

	g.mu.Lock()
	g.processing = false
	g.mu.Unlock()
}

// resolveDay executes the vote winner and everything that follows from the
// death: fox follow-deaths, the medium's reveal, and the win judgement.
func (g *Game) resolveDay() {
	day, _ := g.phases.Current()
	targetID := g.votes.ExecutionTarget()
	g.votes.RecordHistory()

	if targetID == "" {
		log.Printf("Session %s day %d: no votes cast, village abandoned", g.ID, day)
		g.result = ResultAbandoned
		return
	}

	target, _ := g.roster.Get(targetID)
	g.roster.Kill(targetID)
	log.Printf("Session %s day %d: village executed %s", g.ID, day, target.DisplayName)
	g.narrator.Announce(g.transport, g.GroupID,
		fmt.Sprintf("The village executed %s on day %d.", target.DisplayName, day),
		fmt.Sprintf("%s was executed by the village.", target.DisplayName))

	if target.Role == RoleFox {
		g.killImmoralists()
	}
	g.mediums.Reveal(targetID)

	g.result = g.judge()
	g.publishPlayers()
}

// resolveNight runs the night resolvers in their fixed order: divination
// (with the fox-curse cascade) first, then the attack, which consults the
// guard internally.
func (g *Game) resolveNight() {
	day, _ := g.phases.Current()

	if g.divines.Resolve() {
		if fox, err := g.roster.FindByRole(RoleFox); err == nil {
			log.Printf("Session %s day %d: the divination cursed the fox %s", g.ID, day, fox.DisplayName)
			g.roster.Kill(fox.ID)
			g.killImmoralists()
		}
	}

	if killedID := g.attacks.Resolve(); killedID != "" {
		if victim, ok := g.roster.Get(killedID); ok {
			g.narrator.Announce(g.transport, g.GroupID,
				fmt.Sprintf("%s was found dead on the morning after night %d.", victim.DisplayName, day),
				fmt.Sprintf("%s did not survive the night.", victim.DisplayName))
		}
	}
	g.guards.Discard()

	g.result = g.judge()
	g.publishPlayers()
}

// killImmoralists applies the follow-death: every living immoralist dies
// whenever the fox dies, by curse or execution.
func (g *Game) killImmoralists() {
	for _, p := range g.roster.Living() {
		if p.Role == RoleImmoralist {
			log.Printf("Session %s: immoralist %s follows the fox in death", g.ID, p.DisplayName)
			g.roster.Kill(p.ID)
		}
	}
}

// judge evaluates the win condition over the living role multiset. Foxes
// take precedence: a living fox steals any villager or werewolf win.
func (g *Game) judge() GameResult {
	wolves, others := 0, 0
	foxAlive := false
	for _, p := range g.roster.Living() {
		if p.Role == RoleWerewolf {
			wolves++
			continue
		}
		others++
		if p.Role == RoleFox {
			foxAlive = true
		}
	}

	switch {
	case foxAlive && (wolves == 0 || wolves >= others):
		return ResultFoxesWin
	case wolves == 0:
		return ResultVillagersWin
	case wolves >= others:
		return ResultWerewolvesWin
	default:
		return ResultRunning
	}
}

// finish persists the final result and releases the session. Persistence
// failures are logged; in-memory teardown always completes.
func (g *Game) finish() {
	if err := g.store.PersistResult(g.ID, g.result); err != nil {
		logError("game finish: persistResult", err)
	}
	log.Printf("Session %s finished: %s", g.ID, g.result)
	g.phases.Stop()
	g.closeOnce.Do(func() { close(g.done) })
	if g.onFinished != nil {
		g.onFinished(g.ID)
	}
}

// Teardown forcibly ends the session: cancels the timer, persists whatever
// the result is, and releases the loop. A session the pipeline already
// finished is left alone, so the result is persisted exactly once even when
// teardown races the final phase. Used by administrative removal and tests.
func (g *Game) Teardown() {
	g.mu.Lock()
	if _, phase := g.phases.Current(); phase == PhaseFinished {
		g.mu.Unlock()
		return
	}
	if g.result == ResultRunning {
		g.result = ResultAbandoned
	}
	g.phases.Advance() // forces finished and marks players not-playing
	g.mu.Unlock()
	g.finish()
}

// publishPhase broadcasts the phase switch plus its narrated announcement.
func (g *Game) publishPhase(phase PhaseName) {
	day, _ := g.phases.Current()
	g.publishEvent(map[string]any{"type": "phase", "phase": phase, "day": day, "result": g.result})

	switch phase {
	case PhaseDay:
		g.narrator.Announce(g.transport, g.GroupID,
			fmt.Sprintf("Morning of day %d breaks over the village.", day),
			"The sun rises. The village gathers to find out who survived the night.")
	case PhaseNight:
		g.narrator.Announce(g.transport, g.GroupID,
			fmt.Sprintf("Night %d falls.", day),
			"Night falls. Lock your doors; the wolves are hungry.")
	case PhaseFinished:
		g.narrator.Announce(g.transport, g.GroupID,
			fmt.Sprintf("The session ended: %s.", g.result),
			fmt.Sprintf("The game is over: %s.", g.result))
	}
}

// publishPlayers broadcasts the role-redacted roster after deaths.
func (g *Game) publishPlayers() {
	g.publishEvent(map[string]any{"type": "players", "players": g.roster.PlayersRedacted()})
}

func (g *Game) publishEvent(event map[string]any) {
	payload, err := json.Marshal(event)
	if err != nil {
		logError("publishEvent: marshal", err)
		return
	}
	g.transport.Publish(g.GroupID, payload, nil)
}

// ---- action surface, consumed by the shell ----

// submit runs an action under the session lock. Actions that arrive while a
// pipeline is persisting are rejected, not queued; callers may retry after
// the phase settles.
func (g *Game) submit(action func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.processing {
		return fmt.Errorf("%w: session %s is resolving a phase", ErrConflict, g.ID)
	}
	return action()
}

func (g *Game) ReceiveVote(voterID, voteeID string) error {
	return g.submit(func() error { return g.votes.ReceiveVote(voterID, voteeID) })
}

func (g *Game) ReceiveDivineRequest(actorID, targetID string) error {
	return g.submit(func() error { return g.divines.ReceiveRequest(actorID, targetID) })
}

func (g *Game) ReceiveGuardRequest(actorID, targetID string) error {
	return g.submit(func() error { return g.guards.ReceiveRequest(actorID, targetID) })
}

func (g *Game) ReceiveAttackRequest(actorID, targetID string) error {
	return g.submit(func() error { return g.attacks.ReceiveRequest(actorID, targetID) })
}

func (g *Game) PlayerState(viewerID string) PlayerState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.roster.ProjectState(viewerID)
}

// The history queries copy the day-indexed maps before returning them: the
// shell marshals query results without the session lock, and the pipeline
// may be appending to the live maps in the meantime.

func (g *Game) DivineResult(viewerID string) (map[int]DivineRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	history, err := g.divines.Result(viewerID)
	if err != nil {
		return nil, err
	}
	out := make(map[int]DivineRecord, len(history))
	for day, rec := range history {
		out[day] = rec
	}
	return out, nil
}

func (g *Game) GuardHistory(viewerID string) (map[int]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	history, err := g.guards.History(viewerID)
	if err != nil {
		return nil, err
	}
	return copyDayIndex(history), nil
}

func (g *Game) AttackHistory(viewerID string) (map[int]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	history, err := g.attacks.History(viewerID)
	if err != nil {
		return nil, err
	}
	return copyDayIndex(history), nil
}

func (g *Game) MediumResult(viewerID string) (map[int]Alignment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	history, err := g.mediums.Result(viewerID)
	if err != nil {
		return nil, err
	}
	out := make(map[int]Alignment, len(history))
	for day, alignment := range history {
		out[day] = alignment
	}
	return out, nil
}

func (g *Game) VoteHistory() map[int]map[string][]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	history := g.votes.History()
	out := make(map[int]map[string][]string, len(history))
	for day, tally := range history {
		entry := make(map[string][]string, len(tally))
		for votee, voters := range tally {
			entry[votee] = append([]string(nil), voters...)
		}
		out[day] = entry
	}
	return out
}

func copyDayIndex(history map[int]string) map[int]string {
	out := make(map[int]string, len(history))
	for day, targetID := range history {
		out[day] = targetID
	}
	return out
}

// SeatVisibility classifies a connection for the chat channel: dead players
// and non-players watch as spectators, living werewolves see the pack chat.
func (g *Game) SeatVisibility(userID string) Visibility {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.roster.Get(userID)
	switch {
	case !ok || p.Status == StatusDead:
		return VisSpectator
	case p.Role == RoleWerewolf:
		return VisWerewolf
	default:
		return VisNormal
	}
}

// PlayerAlive reports whether the user currently holds a living seat.
func (g *Game) PlayerAlive(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.roster.Alive(userID)
}

// SessionSnapshot is the public view of a session. Roles are revealed only
// once the session has concluded.
type SessionSnapshot struct {
	SessionID string     `json:"session_id"`
	GroupID   string     `json:"group_id"`
	Day       int        `json:"day"`
	Phase     PhaseName  `json:"phase"`
	Result    GameResult `json:"result"`
	Players   []Player   `json:"players"`
}

func (g *Game) Snapshot() SessionSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	day, phase := g.phases.Current()
	players := g.roster.PlayersRedacted()
	if phase == PhaseFinished {
		players = g.roster.Players()
	}
	return SessionSnapshot{
		SessionID: g.ID,
		GroupID:   g.GroupID,
		Day:       day,
		Phase:     phase,
		Result:    g.result,
		Players:   players,
	}
}

// Result returns the current session result.
func (g *Game) Result() GameResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.result
}
