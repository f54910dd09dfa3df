package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"
)

// fakeStore is an in-memory Store + MembershipStore for engine tests.
type fakeStore struct {
	mu           sync.Mutex
	sessions     map[string]string // session id -> group id
	players      map[string][]Player
	results      map[string]GameResult
	resultWrites map[string]int
	notPlaying   map[string]bool
	members      map[string]map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:     make(map[string]string),
		players:      make(map[string][]Player),
		results:      make(map[string]GameResult),
		resultWrites: make(map[string]int),
		notPlaying:   make(map[string]bool),
		members:      make(map[string]map[string]bool),
	}
}

func (fs *fakeStore) CreateSession(sessionID, groupID string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.sessions[sessionID] = groupID
	return nil
}

func (fs *fakeStore) PersistPlayers(sessionID string, players []Player) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.players[sessionID] = players
	return nil
}

func (fs *fakeStore) PersistResult(sessionID string, result GameResult) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.results[sessionID] = result
	fs.resultWrites[sessionID]++
	return nil
}

func (fs *fakeStore) MarkNotPlaying(sessionID string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.notPlaying[sessionID] = true
	return nil
}

func (fs *fakeStore) IsMember(groupID, userID string) (bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.members[groupID][userID], nil
}

func (fs *fakeStore) AddMember(groupID, userID string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.members[groupID] == nil {
		fs.members[groupID] = make(map[string]bool)
	}
	fs.members[groupID][userID] = true
	return nil
}

func (fs *fakeStore) result(sessionID string) (GameResult, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	r, ok := fs.results[sessionID]
	return r, ok
}

func (fs *fakeStore) resultWriteCount(sessionID string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.resultWrites[sessionID]
}

func (fs *fakeStore) markedNotPlaying(sessionID string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.notPlaying[sessionID]
}

// fakeTransport records every published payload for assertions.
type fakeTransport struct {
	mu        sync.Mutex
	published []publishedMessage
}

type publishedMessage struct {
	GroupID  string
	Payload  []byte
	Audience []string
}

func (ft *fakeTransport) Publish(groupID string, payload []byte, audience []string) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.published = append(ft.published, publishedMessage{GroupID: groupID, Payload: payload, Audience: audience})
}

// eventsOfType decodes the recorded payloads and returns those whose "type"
// matches.
func (ft *fakeTransport) eventsOfType(kind string) []map[string]any {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	var out []map[string]any
	for _, m := range ft.published {
		var event map[string]any
		if err := json.Unmarshal(m.Payload, &event); err != nil {
			continue
		}
		if event["type"] == kind {
			out = append(out, event)
		}
	}
	return out
}

// testUsers builds n users named p1..pn.
func testUsers(n int) []User {
	users := make([]User, n)
	for i := range users {
		users[i] = User{ID: fmt.Sprintf("p%d", i+1), DisplayName: fmt.Sprintf("Player %d", i+1)}
	}
	return users
}

// newTestResolvers builds a seated roster and a timerless phase machine for
// resolver-level tests. The machine has no elapsed hook, so Advance never
// arms anything.
func newTestResolvers(t *testing.T, n int, seed int64) (*Roster, *PhaseMachine, *rand.Rand) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	roster := NewRoster(rng)
	if err := roster.AssignRoles(testUsers(n)); err != nil {
		t.Fatalf("AssignRoles: %v", err)
	}
	result := ResultRunning
	return roster, NewPhaseMachine(PhaseDurations{}, &result, nil, nil), rng
}

// rosterRole returns the holder of a role, failing the test when the
// configuration has none.
func rosterRole(t *testing.T, roster *Roster, role Role) *Player {
	t.Helper()
	p, err := roster.FindByRole(role)
	if err != nil {
		t.Fatalf("no player with role %s: %v", role, err)
	}
	return p
}

// newTestGame builds a session with long phase durations so no timer fires
// during the test; phases are driven by calling Advance and
// handleTimerElapsed directly.
func newTestGame(t *testing.T, n int, seed int64) (*Game, *fakeStore, *fakeTransport) {
	t.Helper()
	store := newFakeStore()
	transport := &fakeTransport{}
	settings := GameSettings{
		Durations:     PhaseDurations{Pre: time.Hour, Day: time.Hour, Night: time.Hour},
		AllowSelfVote: false,
		Seed:          seed,
	}
	g, err := NewGame("session-1", "group-1", testUsers(n), settings, store, transport, nil, nil)
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	t.Cleanup(func() {
		g.phases.Stop()
		g.closeOnce.Do(func() { close(g.done) })
	})
	return g, store, transport
}

// toDay advances a fresh session from pre into day 1.
func toDay(t *testing.T, g *Game) {
	t.Helper()
	if phase := g.phases.Advance(); phase != PhaseDay {
		t.Fatalf("expected day phase, got %s", phase)
	}
}

// toNight advances a fresh session through day 1 into night 1.
func toNight(t *testing.T, g *Game) {
	t.Helper()
	toDay(t, g)
	if phase := g.phases.Advance(); phase != PhaseNight {
		t.Fatalf("expected night phase, got %s", phase)
	}
}

// byRole returns the seated player holding a role, failing the test when
// the configuration has none.
func byRole(t *testing.T, g *Game, role Role) *Player {
	t.Helper()
	p, err := g.roster.FindByRole(role)
	if err != nil {
		t.Fatalf("no player with role %s: %v", role, err)
	}
	return p
}

// livingVillager returns a living player with the plain villager role.
func livingVillager(t *testing.T, g *Game) *Player {
	t.Helper()
	for _, p := range g.roster.Living() {
		if p.Role == RoleVillager {
			return p
		}
	}
	t.Fatal("no living villager")
	return nil
}
