package main

import "testing"

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenSQLStore(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLStoreSessionLifecycle(t *testing.T) {
	s := newTestStore(t)

	if err := s.CreateSession("s1", "g1"); err != nil {
		t.Fatal(err)
	}
	// Re-creating is ignored, not an error.
	if err := s.CreateSession("s1", "g1"); err != nil {
		t.Fatal(err)
	}

	var result string
	if err := s.db.Get(&result, `SELECT result FROM session WHERE id = ?`, "s1"); err != nil {
		t.Fatal(err)
	}
	if result != string(ResultRunning) {
		t.Errorf("fresh session result = %s, want running", result)
	}

	if err := s.PersistResult("s1", ResultFoxesWin); err != nil {
		t.Fatal(err)
	}
	if err := s.db.Get(&result, `SELECT result FROM session WHERE id = ?`, "s1"); err != nil {
		t.Fatal(err)
	}
	if result != string(ResultFoxesWin) {
		t.Errorf("persisted result = %s, want foxesWin", result)
	}
}

func TestSQLStorePersistPlayers(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateSession("s1", "g1"); err != nil {
		t.Fatal(err)
	}

	players := []Player{
		{ID: "p1", DisplayName: "Player 1", Status: StatusAlive, Role: RoleSeer},
		{ID: "p2", DisplayName: "Player 2", Status: StatusAlive, Role: RoleWerewolf},
	}
	if err := s.PersistPlayers("s1", players); err != nil {
		t.Fatal(err)
	}

	// Re-persisting with a changed role updates rather than duplicates.
	players[0].Role = RoleVillager
	if err := s.PersistPlayers("s1", players); err != nil {
		t.Fatal(err)
	}

	var count int
	if err := s.db.Get(&count, `SELECT COUNT(*) FROM session_player WHERE session_id = ?`, "s1"); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("%d player rows, want 2", count)
	}

	var role string
	if err := s.db.Get(&role, `SELECT role FROM session_player WHERE session_id = ? AND player_id = ?`, "s1", "p1"); err != nil {
		t.Fatal(err)
	}
	if role != string(RoleVillager) {
		t.Errorf("p1 role = %s, want villager", role)
	}
}

func TestSQLStoreMarkNotPlaying(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateSession("s1", "g1"); err != nil {
		t.Fatal(err)
	}
	if err := s.PersistPlayers("s1", []Player{{ID: "p1", DisplayName: "Player 1", Role: RoleVillager}}); err != nil {
		t.Fatal(err)
	}

	if err := s.MarkNotPlaying("s1"); err != nil {
		t.Fatal(err)
	}

	var playing int
	if err := s.db.Get(&playing, `SELECT is_playing FROM session_player WHERE session_id = ? AND player_id = ?`, "s1", "p1"); err != nil {
		t.Fatal(err)
	}
	if playing != 0 {
		t.Error("player still flagged as playing")
	}
}

func TestSQLStoreMembership(t *testing.T) {
	s := newTestStore(t)

	ok, err := s.IsMember("g1", "p1")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("unknown user reported as member")
	}

	if err := s.AddMember("g1", "p1"); err != nil {
		t.Fatal(err)
	}
	// Duplicate adds are ignored.
	if err := s.AddMember("g1", "p1"); err != nil {
		t.Fatal(err)
	}

	if ok, err = s.IsMember("g1", "p1"); err != nil || !ok {
		t.Errorf("IsMember after add = %v (%v), want true", ok, err)
	}
	if ok, _ = s.IsMember("g2", "p1"); ok {
		t.Error("membership leaked across groups")
	}
}
