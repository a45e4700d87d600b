package room

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"landlord-server/cards"
	"landlord-server/config"
	"landlord-server/game"
	"landlord-server/gameerrors"
)

var (
	alice = Identity{UserID: "u1", Name: "Alice"}
	bob   = Identity{UserID: "u2", Name: "Bob"}
	carol = Identity{UserID: "u3", Name: "Carol"}
	dave  = Identity{UserID: "u4", Name: "Dave"}
)

type recordingNotifier struct {
	mu          sync.Mutex
	events      []Event
	listChanged int
}

func (n *recordingNotifier) RoomEvent(_ *Room, ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) RoomListChanged() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listChanged++
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, ev := range n.events {
		out[i] = ev.Kind.String()
	}
	return out
}

func (n *recordingNotifier) last(kind EventKind) (Event, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.events) - 1; i >= 0; i-- {
		if n.events[i].Kind == kind {
			return n.events[i], true
		}
	}
	return Event{}, false
}

type recordingPersister struct {
	mu      sync.Mutex
	saved   map[string]View
	deleted []string
	results []game.Result
}

func newRecordingPersister() *recordingPersister {
	return &recordingPersister{saved: make(map[string]View)}
}

func (p *recordingPersister) SaveRoom(v View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saved[v.ID] = v
}

func (p *recordingPersister) DeleteRoom(roomID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.saved, roomID)
	p.deleted = append(p.deleted, roomID)
}

func (p *recordingPersister) RecordResult(res game.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, res)
}

// fixedDeal deals the listed cards to seats and the reserve, filling the
// rest from the canonical deck.
func fixedDeal(t *testing.T, hands [3][]string, reserve []string) cards.ShuffleFunc {
	t.Helper()
	return func(deck []cards.Card) {
		used := make(map[string]bool)
		for _, h := range hands {
			for _, id := range h {
				used[id] = true
			}
		}
		for _, id := range reserve {
			used[id] = true
		}
		var rest []cards.Card
		for _, c := range cards.NewDeck() {
			if !used[c.ID] {
				rest = append(rest, c)
			}
		}
		fill := func(ids []string, size int) []cards.Card {
			out := make([]cards.Card, 0, size)
			for _, id := range ids {
				c, ok := cards.Lookup(id)
				if !ok {
					t.Fatalf("unknown card %q", id)
				}
				out = append(out, c)
			}
			for len(out) < size {
				out = append(out, rest[0])
				rest = rest[1:]
			}
			return out
		}
		out := make([]cards.Card, 0, cards.DeckSize)
		for _, h := range hands {
			out = append(out, fill(h, cards.HandSize)...)
		}
		out = append(out, fill(reserve, cards.ReserveSize)...)
		copy(deck, out)
	}
}

// quickWinDeal lets seat 0 win as landlord in four leads.
func quickWinDeal(t *testing.T) cards.ShuffleFunc {
	return fixedDeal(t, [3][]string{
		{"3S", "4S", "5S", "6S", "7S", "8S", "9S", "10S", "JS", "QS", "KS", "AS", "2S", "2H", "2C", "2D", "SJ"},
	}, []string{"BJ", "3H", "3C"})
}

func newTestCoordinator(t *testing.T, opts ...Option) (*Coordinator, *recordingNotifier, *recordingPersister) {
	t.Helper()
	n := &recordingNotifier{}
	p := newRecordingPersister()
	opts = append([]Option{WithNotifier(n), WithPersister(p)}, opts...)
	c := NewCoordinator(config.Defaults(), opts...)
	t.Cleanup(c.Close)
	return c, n, p
}

func mustCreate(t *testing.T, c *Coordinator, who Identity) View {
	t.Helper()
	v, err := c.Create("table", 3, who, Settings{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return v
}

func mustJoin(t *testing.T, c *Coordinator, roomID string, who Identity) {
	t.Helper()
	if _, err := c.Join(roomID, who); err != nil {
		t.Fatalf("Join(%s): %v", who.UserID, err)
	}
}

func mustReady(t *testing.T, c *Coordinator, roomID string, who Identity) {
	t.Helper()
	ready, err := c.ToggleReady(roomID, who)
	if err != nil {
		t.Fatalf("ToggleReady(%s): %v", who.UserID, err)
	}
	if !ready {
		t.Fatalf("expected %s to be ready", who.UserID)
	}
}

// fullRoom creates a room with alice, bob and carol, all ready.
func fullRoom(t *testing.T, c *Coordinator) string {
	t.Helper()
	v := mustCreate(t, c, alice)
	mustJoin(t, c, v.ID, bob)
	mustJoin(t, c, v.ID, carol)
	for _, who := range []Identity{alice, bob, carol} {
		mustReady(t, c, v.ID, who)
	}
	return v.ID
}

func startedRoom(t *testing.T, c *Coordinator) string {
	t.Helper()
	id := fullRoom(t, c)
	if _, err := c.Start(id, alice); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return id
}

func TestCreate(t *testing.T) {
	c, n, p := newTestCoordinator(t)

	v, err := c.Create("  Friday night  ", 0, alice, Settings{Private: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if v.Name != "Friday night" {
		t.Errorf("expected trimmed name, got %q", v.Name)
	}
	if v.Capacity != 3 {
		t.Errorf("expected default capacity 3, got %d", v.Capacity)
	}
	if v.Status != StatusWaiting || v.CreatorID != "u1" || !v.IsPrivate {
		t.Errorf("unexpected view %+v", v)
	}
	if len(v.Members) != 1 || v.Members[0].Ready {
		t.Errorf("expected the creator as sole unready member, got %+v", v.Members)
	}
	if id, ok := c.RoomOf("u1"); !ok || id != v.ID {
		t.Errorf("RoomOf(u1) = %q, %v", id, ok)
	}
	if _, ok := p.saved[v.ID]; !ok {
		t.Error("expected the room to be persisted")
	}
	if n.listChanged == 0 {
		t.Error("expected a room list change")
	}

	if _, err := c.Create("second", 3, alice, Settings{}); !errors.Is(err, gameerrors.ErrAlreadyInRoom) {
		t.Errorf("expected ALREADY_IN_ROOM, got %v", err)
	}
}

func TestCreateRejectsBadSettings(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	cases := []struct {
		name     string
		capacity int
		settings Settings
	}{
		{"", 3, Settings{}},
		{"   ", 3, Settings{}},
		{strings.Repeat("x", 33), 3, Settings{}},
		{"ok", 1, Settings{}},
		{"ok", 5, Settings{}},
		{"ok", 3, Settings{TurnTimeLimitSec: -1}},
	}
	for _, tc := range cases {
		_, err := c.Create(tc.name, tc.capacity, alice, tc.settings)
		if gameerrors.CodeOf(err) != gameerrors.CodeInvalidRoomSettings {
			t.Errorf("Create(%q, %d, %+v): expected INVALID_ROOM_SETTINGS, got %v", tc.name, tc.capacity, tc.settings, err)
		}
	}
	if _, ok := c.RoomOf("u1"); ok {
		t.Error("rejected creates must not register membership")
	}
}

func TestJoinRules(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	v := mustCreate(t, c, alice)

	if _, err := c.Join("missing", bob); !errors.Is(err, gameerrors.ErrRoomNotFound) {
		t.Errorf("expected ROOM_NOT_FOUND, got %v", err)
	}

	mustJoin(t, c, v.ID, bob)
	// Rejoining is a no-op.
	view, err := c.Join(v.ID, bob)
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if len(view.Members) != 2 {
		t.Errorf("expected 2 members after rejoin, got %d", len(view.Members))
	}

	mustJoin(t, c, v.ID, carol)
	if _, err := c.Join(v.ID, dave); !errors.Is(err, gameerrors.ErrRoomFull) {
		t.Errorf("expected ROOM_FULL, got %v", err)
	}

	other := mustCreate(t, c, dave)
	if _, err := c.Join(other.ID, bob); !errors.Is(err, gameerrors.ErrAlreadyInRoom) {
		t.Errorf("expected ALREADY_IN_ROOM, got %v", err)
	}
}

func TestJoinPlayingRoom(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	v, err := c.Create("big", 4, alice, Settings{})
	if err != nil {
		t.Fatal(err)
	}
	mustJoin(t, c, v.ID, bob)
	mustJoin(t, c, v.ID, carol)
	for _, who := range []Identity{alice, bob, carol} {
		mustReady(t, c, v.ID, who)
	}
	if _, err := c.Start(v.ID, bob); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := c.Join(v.ID, dave); !errors.Is(err, gameerrors.ErrRoomNotWaiting) {
		t.Errorf("expected ROOM_NOT_WAITING, got %v", err)
	}
}

func TestStartRejections(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	v := mustCreate(t, c, alice)
	mustJoin(t, c, v.ID, bob)
	mustReady(t, c, v.ID, alice)
	mustReady(t, c, v.ID, bob)

	if _, err := c.Start(v.ID, alice); !errors.Is(err, gameerrors.ErrInsufficientOrUnready) {
		t.Errorf("two players: expected INSUFFICIENT_OR_UNREADY_PLAYERS, got %v", err)
	}

	mustJoin(t, c, v.ID, carol)
	if _, err := c.Start(v.ID, alice); !errors.Is(err, gameerrors.ErrInsufficientOrUnready) {
		t.Errorf("unready player: expected INSUFFICIENT_OR_UNREADY_PLAYERS, got %v", err)
	}
	if _, err := c.Start(v.ID, dave); !errors.Is(err, gameerrors.ErrNotInRoom) {
		t.Errorf("outsider: expected NOT_IN_ROOM, got %v", err)
	}

	mustReady(t, c, v.ID, carol)
	if _, err := c.Start(v.ID, carol); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := c.Start(v.ID, alice); !errors.Is(err, gameerrors.ErrGameAlreadyInProgress) {
		t.Errorf("expected GAME_ALREADY_IN_PROGRESS, got %v", err)
	}
	if _, err := c.ToggleReady(v.ID, alice); !errors.Is(err, gameerrors.ErrRoomNotWaiting) {
		t.Errorf("expected ROOM_NOT_WAITING on ready toggle, got %v", err)
	}
}

func TestStartDealsPrivateHands(t *testing.T) {
	c, n, _ := newTestCoordinator(t)
	id := startedRoom(t, c)

	view, err := c.RoomView(id)
	if err != nil {
		t.Fatal(err)
	}
	if view.Status != StatusPlaying || view.SessionID == "" {
		t.Errorf("expected playing room with a session, got %+v", view)
	}
	if _, ok := n.last(EventGameStarted); !ok {
		t.Error("expected a gameStarted event")
	}

	for _, uid := range []string{"u1", "u2", "u3"} {
		st, err := c.GameState(id, uid)
		if err != nil {
			t.Fatalf("GameState(%s): %v", uid, err)
		}
		if st.You == nil || len(st.You.Hand) != cards.HandSize {
			t.Errorf("%s: expected own 17-card hand", uid)
		}
		if st.Phase != game.Bidding || st.CurrentTurn != 0 || st.ReserveCount != cards.ReserveSize {
			t.Errorf("%s: unexpected state %+v", uid, st)
		}
	}
	if _, err := c.GameState(id, "u4"); !errors.Is(err, gameerrors.ErrNotInRoom) {
		t.Errorf("expected NOT_IN_ROOM for outsider, got %v", err)
	}
}

func TestGameStateWithoutSession(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	v := mustCreate(t, c, alice)
	if _, err := c.GameState(v.ID, "u1"); !errors.Is(err, gameerrors.ErrGameNotFound) {
		t.Errorf("expected GAME_NOT_FOUND, got %v", err)
	}
	if err := c.Bid(v.ID, alice, 1); !errors.Is(err, gameerrors.ErrGameNotFound) {
		t.Errorf("expected GAME_NOT_FOUND on bid, got %v", err)
	}
}

func TestFullGameResetsRoom(t *testing.T) {
	c, n, p := newTestCoordinator(t, WithShuffle(quickWinDeal(t)))
	id := startedRoom(t, c)

	if err := c.Bid(id, bob, 1); !errors.Is(err, gameerrors.ErrNotYourTurn) {
		t.Errorf("expected NOT_YOUR_TURN, got %v", err)
	}
	if err := c.Bid(id, alice, 3); err != nil {
		t.Fatal(err)
	}
	if err := c.Bid(id, bob, 0); err != nil {
		t.Fatal(err)
	}
	if err := c.Bid(id, carol, 0); err != nil {
		t.Fatal(err)
	}
	done, ok := n.last(EventBiddingComplete)
	if !ok || done.LandlordID != "u1" {
		t.Fatalf("expected biddingComplete naming u1, got %+v", done)
	}

	leads := [][]string{
		{"3S", "4S", "5S", "6S", "7S", "8S", "9S", "10S", "JS", "QS", "KS", "AS"},
		{"2S", "2H", "2C", "2D"},
		{"SJ", "BJ"},
	}
	for _, lead := range leads {
		if err := c.Play(id, alice, lead); err != nil {
			t.Fatalf("Play(%v): %v", lead, err)
		}
		if err := c.Pass(id, bob); err != nil {
			t.Fatalf("bob pass: %v", err)
		}
		if err := c.Pass(id, carol); err != nil {
			t.Fatalf("carol pass: %v", err)
		}
	}
	if err := c.Play(id, alice, []string{"3H", "3C"}); err != nil {
		t.Fatalf("final play: %v", err)
	}

	view, err := c.RoomView(id)
	if err != nil {
		t.Fatal(err)
	}
	if view.Status != StatusWaiting {
		t.Errorf("expected room back to waiting, got %v", view.Status)
	}
	for _, m := range view.Members {
		if m.Ready {
			t.Errorf("expected readiness cleared for %s", m.UserID)
		}
	}

	fin, ok := n.last(EventGameFinished)
	if !ok || fin.Result == nil || !fin.Result.LandlordWon {
		t.Fatalf("expected gameFinished with a landlord win, got %+v", fin)
	}
	if len(p.results) != 1 || p.results[0].LandlordID != "u1" {
		t.Errorf("expected one recorded result, got %+v", p.results)
	}

	st, err := c.GameState(id, "u2")
	if err != nil {
		t.Fatalf("GameState after finish: %v", err)
	}
	if st.Phase != game.Finished || st.Scores["u1"] != 2 || st.Scores["u2"] != -1 {
		t.Errorf("unexpected final state: phase %v scores %v", st.Phase, st.Scores)
	}

	// The same members can go again.
	for _, who := range []Identity{alice, bob, carol} {
		mustReady(t, c, id, who)
	}
	if _, err := c.Start(id, bob); err != nil {
		t.Errorf("restart: %v", err)
	}

	kinds := n.kinds()
	if kinds[len(kinds)-1] != "gameStarted" {
		t.Errorf("expected gameStarted last, got %v", kinds[len(kinds)-1])
	}
}

func TestAllPassRestartsBidding(t *testing.T) {
	c, n, _ := newTestCoordinator(t)
	id := startedRoom(t, c)
	for _, who := range []Identity{alice, bob, carol} {
		if err := c.Bid(id, who, 0); err != nil {
			t.Fatalf("Bid(%s): %v", who.UserID, err)
		}
	}
	ev, ok := n.last(EventBidPlaced)
	if !ok || !ev.Restarted {
		t.Errorf("expected the third bidPlaced to flag a restart, got %+v", ev)
	}
	st, err := c.GameState(id, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if st.Phase != game.Bidding || st.CurrentTurn != 0 {
		t.Errorf("expected bidding at seat 0, got %v seat %d", st.Phase, st.CurrentTurn)
	}
}

func TestLeaveAbortsLiveGame(t *testing.T) {
	c, n, _ := newTestCoordinator(t)
	id := startedRoom(t, c)

	if err := c.Leave(id, bob); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	view, err := c.RoomView(id)
	if err != nil {
		t.Fatal(err)
	}
	if view.Status != StatusWaiting || len(view.Members) != 2 {
		t.Errorf("expected waiting room with 2 members, got %+v", view)
	}
	if _, err := c.GameState(id, "u1"); !errors.Is(err, gameerrors.ErrGameNotFound) {
		t.Errorf("expected aborted session to be gone, got %v", err)
	}
	found := false
	for _, ev := range n.events {
		if ev.Kind == EventRoomUpdated && ev.Reason == "player_left" {
			found = true
		}
	}
	if !found {
		t.Error("expected a roomUpdated event with reason player_left")
	}
	if _, ok := c.RoomOf("u2"); ok {
		t.Error("expected u2 to have no room")
	}
	if err := c.Leave(id, bob); !errors.Is(err, gameerrors.ErrNotInRoom) {
		t.Errorf("expected NOT_IN_ROOM on second leave, got %v", err)
	}
}

func TestLeaveTransfersCreatorAndRemovesEmptyRoom(t *testing.T) {
	c, _, p := newTestCoordinator(t)
	v := mustCreate(t, c, alice)
	mustJoin(t, c, v.ID, bob)

	if err := c.Leave(v.ID, alice); err != nil {
		t.Fatal(err)
	}
	view, err := c.RoomView(v.ID)
	if err != nil {
		t.Fatal(err)
	}
	if view.CreatorID != "u2" {
		t.Errorf("expected creator to pass to u2, got %s", view.CreatorID)
	}

	if err := c.Leave(v.ID, bob); err != nil {
		t.Fatal(err)
	}
	if _, err := c.RoomView(v.ID); !errors.Is(err, gameerrors.ErrRoomNotFound) {
		t.Errorf("expected ROOM_NOT_FOUND for emptied room, got %v", err)
	}
	if len(p.deleted) != 1 || p.deleted[0] != v.ID {
		t.Errorf("expected the room deletion to be persisted, got %v", p.deleted)
	}

	// Leaving frees the user to create again.
	mustCreate(t, c, alice)
}

func TestRoomList(t *testing.T) {
	tick := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c, _, _ := newTestCoordinator(t, WithClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}))
	open := mustCreate(t, c, alice)
	hidden, err := c.Create("secret", 3, bob, Settings{Private: true})
	if err != nil {
		t.Fatal(err)
	}
	full, err := c.Create("pair", 2, carol, Settings{})
	if err != nil {
		t.Fatal(err)
	}
	mustJoin(t, c, full.ID, dave)

	ids := func(views []View) []string {
		out := make([]string, len(views))
		for i, v := range views {
			out[i] = v.ID
		}
		return out
	}

	outsider := ids(c.RoomList("u9"))
	if len(outsider) != 1 || outsider[0] != open.ID {
		t.Errorf("outsider should see only the open room, got %v", outsider)
	}

	own := ids(c.RoomList("u2"))
	if len(own) != 2 || own[0] != open.ID || own[1] != hidden.ID {
		t.Errorf("bob should see the open room then his private room, got %v", own)
	}

	mine := ids(c.RoomList("u4"))
	if len(mine) != 2 {
		t.Errorf("dave should see the open room and his full room, got %v", mine)
	}
}

func TestSetConnected(t *testing.T) {
	c, n, _ := newTestCoordinator(t)
	id := startedRoom(t, c)

	c.SetConnected("u2", false)
	ev, ok := n.last(EventPresenceChanged)
	if !ok || ev.UserID != "u2" || ev.Online {
		t.Fatalf("expected presenceChanged offline for u2, got %+v", ev)
	}
	st, err := c.GameState(id, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if st.Players[1].Connected {
		t.Error("expected seat 1 to show disconnected")
	}
	if st.Phase != game.Bidding || st.CurrentTurn != 0 {
		t.Error("presence must not change the game")
	}

	before := len(n.kinds())
	c.SetConnected("u2", false)
	c.SetConnected("nobody", true)
	if len(n.kinds()) != before {
		t.Error("expected no events for unchanged or unknown presence")
	}
}

func TestTurnTimeoutActsForCurrentPlayer(t *testing.T) {
	c, n, _ := newTestCoordinator(t)
	id := startedRoom(t, c)

	r, err := c.lookup(id)
	if err != nil {
		t.Fatal(err)
	}
	r.mu.Lock()
	s := r.session
	stale := s.Version - 1
	current := s.Version
	r.mu.Unlock()

	c.turnTimeout(r, s, stale)
	if _, ok := n.last(EventBidPlaced); ok {
		t.Fatal("a stale timer must not act")
	}

	c.turnTimeout(r, s, current)
	ev, ok := n.last(EventBidPlaced)
	if !ok || ev.UserID != "u1" || ev.Amount != 0 {
		t.Fatalf("expected an automatic zero bid for u1, got %+v", ev)
	}
	st, err := c.GameState(id, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if st.CurrentTurn != 1 {
		t.Errorf("expected turn to move to seat 1, got %d", st.CurrentTurn)
	}
}

func TestTurnTimerArmedOnlyWithLimit(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	id := startedRoom(t, c)
	r, _ := c.lookup(id)
	r.mu.Lock()
	armed := r.turnTimer != nil
	r.mu.Unlock()
	if armed {
		t.Error("expected no timer when the room has no time limit")
	}

	c2, _, _ := newTestCoordinator(t)
	v, err := c2.Create("timed", 3, alice, Settings{TurnTimeLimitSec: 60})
	if err != nil {
		t.Fatal(err)
	}
	mustJoin(t, c2, v.ID, bob)
	mustJoin(t, c2, v.ID, carol)
	for _, who := range []Identity{alice, bob, carol} {
		mustReady(t, c2, v.ID, who)
	}
	if _, err := c2.Start(v.ID, alice); err != nil {
		t.Fatal(err)
	}
	r2, _ := c2.lookup(v.ID)
	r2.mu.Lock()
	armed = r2.turnTimer != nil
	r2.mu.Unlock()
	if !armed {
		t.Error("expected a timer for a timed room")
	}
	st, err := c2.GameState(v.ID, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if st.TurnEndsAtUnixMs == 0 {
		t.Error("expected a turn deadline in the state")
	}
}

func TestConcurrentJoinsNeverOverfill(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	v := mustCreate(t, c, alice)

	var wg sync.WaitGroup
	var mu sync.Mutex
	joined := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			who := Identity{UserID: fmt.Sprintf("p%d", i), Name: "P"}
			if _, err := c.Join(v.ID, who); err == nil {
				mu.Lock()
				joined++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if joined != 2 {
		t.Errorf("expected exactly 2 joins to succeed, got %d", joined)
	}
	view, _ := c.RoomView(v.ID)
	if len(view.Members) != 3 {
		t.Errorf("expected 3 members, got %d", len(view.Members))
	}
}

func TestConcurrentRoomsAreIndependent(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids := []Identity{
				{UserID: fmt.Sprintf("a%d", i)},
				{UserID: fmt.Sprintf("b%d", i)},
				{UserID: fmt.Sprintf("c%d", i)},
			}
			v, err := c.Create(fmt.Sprintf("room %d", i), 3, ids[0], Settings{})
			if err != nil {
				errs <- err
				return
			}
			for _, who := range ids[1:] {
				if _, err := c.Join(v.ID, who); err != nil {
					errs <- err
					return
				}
			}
			for _, who := range ids {
				if _, err := c.ToggleReady(v.ID, who); err != nil {
					errs <- err
					return
				}
			}
			if _, err := c.Start(v.ID, ids[0]); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestViewDecodesIntoItself(t *testing.T) {
	c := NewCoordinator(config.Defaults())
	defer c.Close()
	v, err := c.Create("table", 3, Identity{UserID: "u1", Name: "u1"}, Settings{})
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	var got View
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode own snapshot: %v", err)
	}
	if got.Status != StatusWaiting || got.ID != v.ID || len(got.Members) != 1 {
		t.Errorf("decoded %+v, want %+v", got, v)
	}

	var s Status
	if err := s.UnmarshalText([]byte("closed")); err == nil {
		t.Error("expected an error for an unknown status")
	}
}
