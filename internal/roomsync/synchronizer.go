package roomsync

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/pointroom/pointroom/internal/gateway"
	"github.com/pointroom/pointroom/internal/models"
)

// State is the connection lifecycle state of a Synchronizer.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateOpen         State = "open"
	StateReconnecting State = "reconnecting"
	// StateDisconnected is terminal: the client disconnected deliberately
	// and no reconnection will be attempted.
	StateDisconnected State = "disconnected"
	// StateFailed is terminal: the reconnect attempt cap was exceeded.
	StateFailed State = "failed"
)

// Config holds connection parameters and the reconnection policy.
type Config struct {
	// ServerURL is the base URL of the server, http(s) or ws(s) scheme.
	ServerURL     string
	RoomID        uuid.UUID
	ParticipantID uuid.UUID

	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxJitter   time.Duration
	MaxAttempts int

	HeartbeatInterval time.Duration
}

// DefaultConfig returns the standard reconnection policy: exponential
// backoff from 1s capped at 30s with up to 1s of jitter, five attempts,
// and a 30s heartbeat.
func DefaultConfig(serverURL string, roomID, participantID uuid.UUID) Config {
	return Config{
		ServerURL:         serverURL,
		RoomID:            roomID,
		ParticipantID:     participantID,
		BaseDelay:         time.Second,
		MaxDelay:          30 * time.Second,
		MaxJitter:         time.Second,
		MaxAttempts:       5,
		HeartbeatInterval: 30 * time.Second,
	}
}

// UpdateFunc receives every room snapshot pushed or requested over the
// connection. Stats is nil while the room is not revealed.
type UpdateFunc func(room models.RoomState, stats *models.VoteStats)

// Synchronizer maintains a single logical connection to the gateway. It
// resynchronizes on every (re)connect by requesting the current room state,
// sends heartbeat pings while open, and recovers from transport failure with
// bounded exponential backoff. A deliberate Disconnect is terminal.
type Synchronizer struct {
	config   Config
	onUpdate UpdateFunc

	// OnStateChange, if set before Connect, observes every lifecycle
	// transition.
	OnStateChange func(State)

	dialer *websocket.Dialer
	clock  clockwork.Clock
	jitter func() time.Duration

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	writeMu sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a synchronizer for one room connection.
func New(config Config, onUpdate UpdateFunc) *Synchronizer {
	s := &Synchronizer{
		config:   config,
		onUpdate: onUpdate,
		dialer:   websocket.DefaultDialer,
		clock:    clockwork.NewRealClock(),
		state:    StateIdle,
		done:     make(chan struct{}),
	}
	s.jitter = func() time.Duration {
		if config.MaxJitter <= 0 {
			return 0
		}
		return time.Duration(rand.Int64N(int64(config.MaxJitter)))
	}
	return s
}

// Connect starts the connection loop. It returns an error if the
// synchronizer was already started; a Synchronizer is single-use.
func (s *Synchronizer) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("synchronizer already started")
	}
	if s.state == StateDisconnected || s.state == StateFailed {
		return fmt.Errorf("synchronizer is in terminal state %s", s.state)
	}
	s.started = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.run(ctx)
	return nil
}

// Disconnect deliberately tears the connection down. Pending reconnect
// timers and the heartbeat are cancelled before the transport closes, so no
// reconnect can race with the teardown. Safe to call more than once.
func (s *Synchronizer) Disconnect() {
	s.mu.Lock()
	cancel := s.cancel
	conn := s.conn
	started := s.started
	s.mu.Unlock()

	if !started {
		s.setState(StateDisconnected)
		return
	}

	cancel()
	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnecting"),
			time.Now().Add(time.Second))
		conn.Close()
	}
	<-s.done
}

// State returns the current lifecycle state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Synchronizer) run(ctx context.Context) {
	defer close(s.done)

	attempt := 0
	for {
		s.setState(StateConnecting)
		conn, resp, err := s.dialer.DialContext(ctx, s.wsURL(), nil)
		if err != nil {
			if resp != nil {
				resp.Body.Close()
			}
			if ctx.Err() != nil {
				s.setState(StateDisconnected)
				return
			}
			log.Warn().Err(err).Msg("websocket dial failed")
			attempt++
			if !s.backoff(ctx, attempt) {
				return
			}
			continue
		}

		attempt = 0
		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()
		s.setState(StateOpen)

		// Resynchronize: state may have changed while disconnected.
		s.write(conn, gateway.InboundMessage{Type: gateway.MessageTypeRequestRoomState})

		heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
		go s.heartbeat(heartbeatCtx, conn)

		s.readLoop(conn)

		stopHeartbeat()
		conn.Close()
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()

		if ctx.Err() != nil {
			s.setState(StateDisconnected)
			return
		}

		attempt++
		if !s.backoff(ctx, attempt) {
			return
		}
	}
}

// backoff waits before reconnect attempt n. It returns false when the
// attempt cap is exceeded (terminal failure) or the context is cancelled,
// setting the corresponding terminal state.
func (s *Synchronizer) backoff(ctx context.Context, attempt int) bool {
	if attempt > s.config.MaxAttempts {
		log.Error().Int("attempts", s.config.MaxAttempts).Msg("reconnect attempts exhausted")
		s.setState(StateFailed)
		return false
	}
	s.setState(StateReconnecting)

	delay := s.backoffDelay(attempt)
	log.Info().
		Int("attempt", attempt).
		Int("max_attempts", s.config.MaxAttempts).
		Dur("delay", delay).
		Msg("reconnecting")

	timer := s.clock.NewTimer(delay)
	select {
	case <-timer.Chan():
		return true
	case <-ctx.Done():
		stopAndDrainTimer(timer)
		s.setState(StateDisconnected)
		return false
	}
}

// backoffDelay computes min(base * 2^(attempt-1) + jitter, max).
func (s *Synchronizer) backoffDelay(attempt int) time.Duration {
	delay := s.config.BaseDelay << (attempt - 1)
	delay += s.jitter()
	if delay > s.config.MaxDelay {
		delay = s.config.MaxDelay
	}
	return delay
}

// stopAndDrainTimer safely stops a timer and drains its channel so no
// goroutine leaks behind a cancelled wait.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

// heartbeat sends a ping every HeartbeatInterval while the connection is
// open. Pong receipt is not verified; this is a best-effort liveness signal,
// not a failure detector.
func (s *Synchronizer) heartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := s.clock.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.write(conn, gateway.InboundMessage{Type: gateway.MessageTypePing})
		}
	}
}

func (s *Synchronizer) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}
		s.handleMessage(data)
	}
}

func (s *Synchronizer) handleMessage(data []byte) {
	var env struct {
		Type    gateway.MessageType `json:"type"`
		Payload json.RawMessage     `json:"payload"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Msg("dropping malformed server message")
		return
	}

	switch env.Type {
	case gateway.MessageTypeRoomStateUpdate, gateway.MessageTypeRoomState:
		var payload gateway.RoomPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			log.Warn().Err(err).Msg("dropping malformed room payload")
			return
		}
		if s.onUpdate != nil {
			s.onUpdate(payload.Room, payload.Stats)
		}
	case gateway.MessageTypePong:
		// Best-effort liveness; nothing to correlate.
	default:
		log.Warn().Str("type", string(env.Type)).Msg("unknown server message type")
	}
}

func (s *Synchronizer) write(conn *websocket.Conn, msg gateway.InboundMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal client message")
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Debug().Err(err).Msg("websocket write failed")
	}
}

// wsURL derives the websocket endpoint from the configured server URL and
// appends the connection parameters.
func (s *Synchronizer) wsURL() string {
	base := s.config.ServerURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	case !strings.HasPrefix(base, "ws://") && !strings.HasPrefix(base, "wss://"):
		base = "ws://" + base
	}

	params := url.Values{}
	params.Set("roomId", s.config.RoomID.String())
	params.Set("participantId", s.config.ParticipantID.String())
	return base + "/ws?" + params.Encode()
}

func (s *Synchronizer) setState(state State) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	// Terminal states are never left.
	if s.state == StateDisconnected || s.state == StateFailed {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.mu.Unlock()

	log.Debug().Str("state", string(state)).Msg("synchronizer state change")
	if s.OnStateChange != nil {
		s.OnStateChange(state)
	}
}
