package roomsync

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pointroom/pointroom/internal/gateway"
	"github.com/pointroom/pointroom/internal/models"
)

// fakeGateway is a scriptable websocket endpoint: it can reject the first N
// upgrade attempts and records every ping received per connection.
type fakeGateway struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader
	roomID   uuid.UUID

	mu           sync.Mutex
	dialAttempts int
	rejectFirst  int
	pings        int
	conns        []*websocket.Conn
}

func newFakeGateway(t *testing.T, rejectFirst int) *fakeGateway {
	t.Helper()

	fg := &fakeGateway{
		roomID:      uuid.New(),
		rejectFirst: rejectFirst,
	}
	fg.srv = httptest.NewServer(http.HandlerFunc(fg.handle))
	t.Cleanup(fg.srv.Close)
	return fg
}

func (fg *fakeGateway) handle(w http.ResponseWriter, r *http.Request) {
	fg.mu.Lock()
	fg.dialAttempts++
	reject := fg.dialAttempts <= fg.rejectFirst
	fg.mu.Unlock()

	if reject {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := fg.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	fg.mu.Lock()
	fg.conns = append(fg.conns, conn)
	fg.mu.Unlock()

	for {
		var msg gateway.InboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case gateway.MessageTypePing:
			fg.mu.Lock()
			fg.pings++
			fg.mu.Unlock()
			conn.WriteJSON(gateway.OutboundMessage{Type: gateway.MessageTypePong})
		case gateway.MessageTypeRequestRoomState:
			conn.WriteJSON(gateway.OutboundMessage{
				Type:    gateway.MessageTypeRoomState,
				Payload: gateway.RoomPayload{Room: models.RoomState{ID: fg.roomID, Code: "123456"}},
			})
		}
	}
}

func (fg *fakeGateway) attempts() int {
	fg.mu.Lock()
	defer fg.mu.Unlock()
	return fg.dialAttempts
}

func (fg *fakeGateway) pingCount() int {
	fg.mu.Lock()
	defer fg.mu.Unlock()
	return fg.pings
}

func (fg *fakeGateway) closeCurrentConn() {
	fg.mu.Lock()
	defer fg.mu.Unlock()
	if len(fg.conns) > 0 {
		fg.conns[len(fg.conns)-1].Close()
	}
}

func testConfig(serverURL string) Config {
	cfg := DefaultConfig(serverURL, uuid.New(), uuid.New())
	cfg.BaseDelay = 10 * time.Millisecond
	cfg.MaxDelay = 100 * time.Millisecond
	cfg.MaxJitter = 0
	cfg.HeartbeatInterval = 25 * time.Millisecond
	return cfg
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestBackoffDelayFormula(t *testing.T) {
	cfg := DefaultConfig("http://localhost:8080", uuid.New(), uuid.New())
	s := New(cfg, nil)
	s.jitter = func() time.Duration { return 500 * time.Millisecond }

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1500 * time.Millisecond},
		{2, 2500 * time.Millisecond},
		{3, 4500 * time.Millisecond},
		{5, 16500 * time.Millisecond},
		{6, 30 * time.Second}, // capped
	}
	for _, c := range cases {
		if got := s.backoffDelay(c.attempt); got != c.want {
			t.Errorf("attempt %d: expected %v, got %v", c.attempt, c.want, got)
		}
	}
}

func TestResyncOnOpen(t *testing.T) {
	fg := newFakeGateway(t, 0)

	updates := make(chan models.RoomState, 8)
	s := New(testConfig(fg.srv.URL), func(room models.RoomState, stats *models.VoteStats) {
		updates <- room
	})
	if err := s.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Disconnect()

	select {
	case room := <-updates:
		if room.ID != fg.roomID {
			t.Fatalf("expected room %s from resync, got %s", fg.roomID, room.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("never received room state after connect")
	}
	if got := s.State(); got != StateOpen {
		t.Fatalf("expected open state, got %s", got)
	}
}

func TestReconnectsAfterFailedAttempts(t *testing.T) {
	fg := newFakeGateway(t, 2)

	updates := make(chan models.RoomState, 8)
	s := New(testConfig(fg.srv.URL), func(room models.RoomState, stats *models.VoteStats) {
		updates <- room
	})
	if err := s.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Disconnect()

	select {
	case <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("never recovered after failed attempts")
	}
	if got := fg.attempts(); got != 3 {
		t.Fatalf("expected success on 3rd attempt, got %d attempts", got)
	}
}

func TestResumesBroadcastsAfterDrop(t *testing.T) {
	fg := newFakeGateway(t, 0)

	updates := make(chan models.RoomState, 8)
	s := New(testConfig(fg.srv.URL), func(room models.RoomState, stats *models.VoteStats) {
		updates <- room
	})
	if err := s.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Disconnect()

	select {
	case <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("no initial state")
	}

	// Server drops the transport; the synchronizer must resynchronize on
	// its own, with a single heartbeat running afterwards.
	fg.closeCurrentConn()

	select {
	case <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("no state after reconnect")
	}

	before := fg.pingCount()
	time.Sleep(5 * s.config.HeartbeatInterval)
	sent := fg.pingCount() - before
	// A leaked second heartbeat would roughly double this.
	if sent < 2 || sent > 8 {
		t.Fatalf("expected ~5 heartbeat pings over the window, got %d", sent)
	}
}

func TestTerminalFailureAfterMaxAttempts(t *testing.T) {
	fg := newFakeGateway(t, 1000)

	cfg := testConfig(fg.srv.URL)
	cfg.BaseDelay = time.Millisecond
	cfg.MaxAttempts = 2
	s := New(cfg, nil)

	var mu sync.Mutex
	var transitions []State
	s.OnStateChange = func(state State) {
		mu.Lock()
		transitions = append(transitions, state)
		mu.Unlock()
	}

	if err := s.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return s.State() == StateFailed },
		"expected terminal failed state")

	if got := fg.attempts(); got != 3 { // initial + 2 retries
		t.Fatalf("expected 3 dial attempts, got %d", got)
	}

	mu.Lock()
	defer mu.Unlock()
	last := transitions[len(transitions)-1]
	if last != StateFailed {
		t.Fatalf("expected failed as final transition, got %v", transitions)
	}
}

func TestDisconnectCancelsPendingReconnect(t *testing.T) {
	fg := newFakeGateway(t, 1000)

	cfg := testConfig(fg.srv.URL)
	cfg.BaseDelay = time.Hour // park in backoff
	s := New(cfg, nil)

	if err := s.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return s.State() == StateReconnecting },
		"expected reconnecting state")

	done := make(chan struct{})
	go func() {
		s.Disconnect()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disconnect did not cancel the pending reconnect timer")
	}
	if got := s.State(); got != StateDisconnected {
		t.Fatalf("expected disconnected, got %s", got)
	}
}

func TestConnectIsSingleUse(t *testing.T) {
	fg := newFakeGateway(t, 0)

	s := New(testConfig(fg.srv.URL), nil)
	if err := s.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Disconnect()

	if err := s.Connect(); err == nil {
		t.Fatal("expected second connect to fail")
	}
}
