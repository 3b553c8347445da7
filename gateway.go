package voltgo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-metrics"
	"github.com/tidwall/gjson"
)

const (
	// DefaultHeartbeatInterval is the gateway ping cadence.
	DefaultHeartbeatInterval = 30 * time.Second
	// DefaultMaxReconnects bounds consecutive reconnect attempts before the
	// connection gives up with ErrReconnectExhausted.
	DefaultMaxReconnects = 10

	reconnectInitialBackoff = time.Second
	reconnectMaxBackoff     = time.Minute
	handshakeWriteTimeout   = 10 * time.Second
)

// ConnState is the gateway connection lifecycle state.
type ConnState int32

const (
	// StateDisconnected is the initial state before any connect attempt.
	StateDisconnected ConnState = iota
	// StateConnecting means the socket dial is in progress.
	StateConnecting
	// StateAuthenticating means the credential frame was sent and the
	// acknowledgement is pending.
	StateAuthenticating
	// StateReady is the steady state: envelopes flow and heartbeats run.
	StateReady
	// StateReconnecting means the connection dropped and a backoff delay or
	// re-handshake is in progress.
	StateReconnecting
	// StateClosed is terminal: the session ended or a fatal error surfaced.
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// gatewayConn owns the persistent socket: handshake, heartbeat, reconnect
// policy, and the translation pipeline from raw envelopes to dispatched
// events. One gatewayConn serves one session.
type gatewayConn struct {
	url        string
	token      string
	dialer     *websocket.Dialer
	decoder    *decoder
	dispatcher *dispatcher
	logger     *slog.Logger

	heartbeatInterval time.Duration
	maxReconnects     uint64

	state atomic.Int32
}

func newGatewayConn(
	url string,
	token string,
	store *Store,
	dispatch *dispatcher,
	logger *slog.Logger,
	heartbeatInterval time.Duration,
	maxReconnects int,
) *gatewayConn {
	if logger == nil {
		logger = slog.Default()
	}
	if heartbeatInterval <= 0 {
		heartbeatInterval = DefaultHeartbeatInterval
	}
	if maxReconnects <= 0 {
		maxReconnects = DefaultMaxReconnects
	}

	return &gatewayConn{
		url:               url,
		token:             token,
		dialer:            websocket.DefaultDialer,
		decoder:           newDecoder(store),
		dispatcher:        dispatch,
		logger:            logger,
		heartbeatInterval: heartbeatInterval,
		maxReconnects:     uint64(maxReconnects),
	}
}

// State returns the current lifecycle state.
func (g *gatewayConn) State() ConnState {
	return ConnState(g.state.Load())
}

func (g *gatewayConn) setState(state ConnState) {
	g.state.Store(int32(state))
}

// run blocks until context cancellation, an unrecoverable authentication
// rejection, or reconnect exhaustion. Every successful handshake resets the
// backoff budget; each re-entry into Ready is a fresh snapshot boundary, and
// cached entities from before the gap self-correct via replace-on-update.
func (g *gatewayConn) run(ctx context.Context) error {
	defer g.setState(StateClosed)

	retry := g.newBackoff()
	for {
		becameReady, err := g.runOnce(ctx)
		if errors.Is(err, ErrAuthRejected) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if becameReady {
			retry.Reset()
		}

		wait := retry.NextBackOff()
		if wait == backoff.Stop {
			return fmt.Errorf("gateway %s: %w: %w", g.url, ErrReconnectExhausted, err)
		}

		g.setState(StateReconnecting)
		metrics.IncrCounter(MetricGatewayReconnectCount, 1)
		g.logger.Warn("gateway connection lost; reconnecting",
			"error", err,
			"backoff", wait,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (g *gatewayConn) newBackoff() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = reconnectInitialBackoff
	policy.MaxInterval = reconnectMaxBackoff
	policy.MaxElapsedTime = 0

	return backoff.WithMaxRetries(policy, g.maxReconnects)
}

// runOnce performs one full connection attempt: dial, handshake, and the read
// loop until the socket fails. It reports whether the session reached Ready.
func (g *gatewayConn) runOnce(ctx context.Context) (bool, error) {
	g.setState(StateConnecting)

	conn, resp, err := g.dialer.DialContext(ctx, g.url, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return false, fmt.Errorf("dial gateway %s: %w", g.url, err)
	}
	metrics.IncrCounter(MetricGatewayConnectCount, 1)

	session := &gatewaySession{gateway: g, conn: conn}

	return session.run(ctx)
}

// gatewaySession is the state of one live socket. A new session is created
// for every (re)connect attempt so no heartbeat or ack state survives a gap.
type gatewaySession struct {
	gateway *gatewayConn
	conn    *websocket.Conn

	writeMu sync.Mutex

	// pingSentAt holds the send time (unix nanos) of the outstanding ping, or
	// zero when the last ping was acked.
	pingSentAt atomic.Int64

	failMu  sync.Mutex
	failErr error

	heartbeatOnce sync.Once
	heartbeatDone chan struct{}
}

func (s *gatewaySession) run(ctx context.Context) (becameReady bool, err error) {
	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Closing the socket is the cooperative cancellation point: it unblocks
	// the blocked read below and stops the heartbeat writer.
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		<-sessCtx.Done()
		s.conn.Close()
	}()
	defer func() {
		cancel()
		<-watcherDone
		if s.heartbeatDone != nil {
			<-s.heartbeatDone
		}
	}()

	s.gateway.setState(StateAuthenticating)
	if err := s.writeJSON(wireAuthenticate{Type: "Authenticate", Token: s.gateway.token}); err != nil {
		return false, fmt.Errorf("send authentication frame: %w", err)
	}

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if failure := s.failure(); failure != nil {
				return becameReady, failure
			}
			if ctx.Err() != nil {
				return becameReady, ctx.Err()
			}
			return becameReady, fmt.Errorf("read gateway envelope: %w", err)
		}

		if err := s.handleEnvelope(sessCtx, payload, &becameReady); err != nil {
			return becameReady, err
		}
	}
}

// handleEnvelope processes one inbound envelope: raw dispatch first, then the
// connection-level frames, then typed decode and dispatch. A decode failure
// is scoped to the envelope; the stream continues. A returned error ends the
// session.
func (s *gatewaySession) handleEnvelope(ctx context.Context, payload []byte, becameReady *bool) error {
	metrics.IncrCounter(MetricGatewayEnvelopeInCount, 1)

	envelopeType := gjson.GetBytes(payload, "type").String()
	if envelopeType == "" {
		metrics.IncrCounter(MetricGatewayDecodeErrorCount, 1)
		s.gateway.logger.Warn("dropping gateway envelope without type tag")
		return nil
	}

	s.gateway.dispatcher.dispatchRaw(ctx, envelopeType, payload)

	switch strings.ToLower(envelopeType) {
	case "authenticated":
		s.gateway.setState(StateReady)
		*becameReady = true
		s.startHeartbeat(ctx)
		return nil
	case "pong":
		s.ackHeartbeat()
		return nil
	case "error":
		return s.handleErrorFrame(payload)
	}

	event, err := s.gateway.decoder.decode(envelopeType, payload)
	if err != nil {
		metrics.IncrCounter(MetricGatewayDecodeErrorCount, 1)
		s.gateway.logger.Warn("failed to decode gateway envelope",
			"type", envelopeType,
			"error", err,
		)
		return nil
	}
	if _, unknown := event.(*UnknownEvent); unknown {
		// Raw handlers already saw the envelope; nothing typed to dispatch.
		return nil
	}

	s.gateway.dispatcher.dispatch(ctx, event)

	return nil
}

// handleErrorFrame maps protocol error frames. During authentication any
// error frame is an unrecoverable rejection; afterwards it tears the socket
// down into the reconnect path.
func (s *gatewaySession) handleErrorFrame(payload []byte) error {
	var frame wireError
	if err := json.Unmarshal(payload, &frame); err != nil || frame.Error == "" {
		frame.Error = "unspecified"
	}

	if s.gateway.State() == StateAuthenticating {
		return fmt.Errorf("%w: %s", ErrAuthRejected, frame.Error)
	}

	return fmt.Errorf("gateway protocol error: %s", frame.Error)
}

// startHeartbeat launches the heartbeat writer once per session. It pings on
// a fixed interval and treats a still-unacked ping at the next tick as a
// timeout, failing the session into the reconnect path.
func (s *gatewaySession) startHeartbeat(ctx context.Context) {
	s.heartbeatOnce.Do(func() {
		s.heartbeatDone = make(chan struct{})
		go func() {
			defer close(s.heartbeatDone)
			s.heartbeatLoop(ctx)
		}()
	})
}

func (s *gatewaySession) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(s.gateway.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.pingSentAt.Load() != 0 {
				s.fail(fmt.Errorf("%w: no ack within %s", ErrHeartbeatTimeout, s.gateway.heartbeatInterval))
				return
			}
			now := time.Now()
			if err := s.writeJSON(wirePing{Type: "Ping", Data: now.UnixNano()}); err != nil {
				s.fail(fmt.Errorf("send heartbeat: %w", err))
				return
			}
			s.pingSentAt.Store(now.UnixNano())
		}
	}
}

func (s *gatewaySession) ackHeartbeat() {
	sentAt := s.pingSentAt.Swap(0)
	if sentAt == 0 {
		return
	}
	metrics.MeasureSince(MetricGatewayHeartbeatLatency, time.Unix(0, sentAt))
}

// fail records the session's terminal error and closes the socket so the
// read loop observes it.
func (s *gatewaySession) fail(err error) {
	s.failMu.Lock()
	if s.failErr == nil {
		s.failErr = err
	}
	s.failMu.Unlock()
	s.conn.Close()
}

func (s *gatewaySession) failure() error {
	s.failMu.Lock()
	defer s.failMu.Unlock()

	return s.failErr
}

// writeJSON serializes one outbound frame. The gorilla connection permits a
// single concurrent writer, so all writes go through one mutex.
func (s *gatewaySession) writeJSON(frame any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(handshakeWriteTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := s.conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("write gateway frame: %w", err)
	}

	return nil
}
