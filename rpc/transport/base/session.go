package base

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/hmdlink/rpc/bitstream"
	"github.com/ValentinKolb/hmdlink/rpc/common"
	"github.com/ValentinKolb/hmdlink/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"net"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("session")

var (
	// ErrNotConnected is returned when sending on a connection that is not (or no longer) connected
	ErrNotConnected = errors.New("connection is not connected")
	// ErrSessionClosed is returned once Close was called
	ErrSessionClosed = errors.New("session is closed")
)

var (
	framesSent         = metrics.GetOrCreateCounter(`hmdlink_session_frames_total{direction="sent"}`)
	framesReceived     = metrics.GetOrCreateCounter(`hmdlink_session_frames_total{direction="received"}`)
	handshakesRejected = metrics.GetOrCreateCounter(`hmdlink_session_handshakes_rejected_total`)
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connect operations
type IClientConnector interface {
	// Connect establishes a single connection to endpoint
	Connect(endpoint string, timeout time.Duration) (net.Conn, error)

	// GetName returns the name of the transport type (e.g. "tcp6")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn) error
}

// IServerConnector defines the interface for transport-specific listen operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(endpoint string) (net.Listener, error)

	// GetName returns the name of the transport type (e.g. "tcp6")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn) error

	// AcceptPeer decides whether a connection from addr is served at all
	AcceptPeer(addr net.Addr) bool
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// SessionConfig holds the timing parameters of a session
type SessionConfig struct {
	// ConnectTimeout bounds a blocking Connect including the handshake
	ConnectTimeout time.Duration
	// HandshakeTimeout bounds the wait for the peer's hello or authorization
	HandshakeTimeout time.Duration
	// WriteTimeout bounds a single send, zero disables the deadline
	WriteTimeout time.Duration
	// PollInterval is the longest a non-blocking Poll waits for an event
	PollInterval time.Duration
}

type eventKind int

const (
	eventReceive eventKind = iota
	eventConnected
	eventDisconnected
)

// sessionEvent is produced by socket goroutines and consumed by Poll
type sessionEvent struct {
	kind eventKind
	conn *transport.Connection
	data []byte
}

// pendingConnect tracks an outgoing connect that is still dialing or handshaking
type pendingConnect struct {
	done   chan struct{}
	result transport.SessionResult
}

// Session owns sockets and connections and dispatches their traffic to the
// registered network plugins. Socket goroutines only enqueue events, every
// plugin callback runs inside Poll.
type Session struct {
	config          SessionConfig
	clientConnector IClientConnector
	serverConnector IServerConnector

	listenersMu sync.RWMutex
	listeners   []transport.INetworkPlugin

	connMu          sync.Mutex
	allConnections  []*transport.Connection // including connections in handshake
	fullConnections []*transport.Connection // connected only
	outgoing        map[string]*transport.Connection
	pending         map[string]*pendingConnect
	netListeners    []net.Listener

	activeSockets atomic.Int32
	events        *eventQueue[sessionEvent]
	closed        atomic.Bool
}

// -----------------------------------------------------------
// Session Factory Method (used for tcp)
// -----------------------------------------------------------

// NewSession creates a session. Either connector may be nil if the session
// only connects or only listens.
func NewSession(config SessionConfig, client IClientConnector, server IServerConnector) *Session {
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = common.DefaultConnectTimeoutMs * time.Millisecond
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = config.ConnectTimeout
	}
	if config.PollInterval <= 0 {
		config.PollInterval = common.DefaultPollIntervalMs * time.Millisecond
	}

	return &Session{
		config:          config,
		clientConnector: client,
		serverConnector: server,
		outgoing:        make(map[string]*transport.Connection),
		pending:         make(map[string]*pendingConnect),
		events:          newEventQueue[sessionEvent](),
	}
}

// --------------------------------------------------------------------------
// Listener Registration
// --------------------------------------------------------------------------

// AddSessionListener registers a plugin for all future events
func (s *Session) AddSessionListener(l transport.INetworkPlugin) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	if !slices.Contains(s.listeners, l) {
		s.listeners = append(s.listeners, l)
	}
}

// RemoveSessionListener unregisters a plugin
func (s *Session) RemoveSessionListener(l transport.INetworkPlugin) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	if i := slices.Index(s.listeners, l); i >= 0 {
		s.listeners = slices.Delete(s.listeners, i, i+1)
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.ISession)
// --------------------------------------------------------------------------

func (s *Session) Send(conn *transport.Connection, data []byte) error {
	if conn == nil {
		return ErrNotConnected
	}
	if !conn.IsConnected() {
		return fmt.Errorf("send to %s: %w", conn, ErrNotConnected)
	}

	err := conn.WithWriter(func(nc net.Conn) error {
		if s.config.WriteTimeout > 0 {
			if err := nc.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout)); err != nil {
				return err
			}
		}
		return writeFrame(nc, data)
	})
	if err != nil {
		// the reader goroutine notices the closed socket and drops the connection
		conn.Close()
		return fmt.Errorf("send to %s: %w", conn, err)
	}

	framesSent.Inc()
	return nil
}

func (s *Session) Broadcast(data []byte) error {
	s.connMu.Lock()
	conns := slices.Clone(s.fullConnections)
	s.connMu.Unlock()

	if len(conns) == 0 {
		return ErrNotConnected
	}

	var errs []error
	for _, conn := range conns {
		if err := s.Send(conn, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Session) GetConnectionCount() int {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return len(s.fullConnections)
}

func (s *Session) GetConnectionAtIndex(index int) *transport.Connection {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if index < 0 || index >= len(s.fullConnections) {
		return nil
	}
	return s.fullConnections[index]
}

// --------------------------------------------------------------------------
// Public Methods
// --------------------------------------------------------------------------

// GetActiveSocketsCount returns the number of open sockets, listeners included
func (s *Session) GetActiveSocketsCount() int {
	return int(s.activeSockets.Load())
}

// ListenAddr returns the address of the first listener, or nil
func (s *Session) ListenAddr() net.Addr {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if len(s.netListeners) == 0 {
		return nil
	}
	return s.netListeners[0].Addr()
}

// Connect opens a connection to endpoint and performs the handshake. A
// non-blocking connect returns ConnectInProgress right away; a blocking
// connect waits up to the configured connect timeout.
func (s *Session) Connect(endpoint string, blocking bool) transport.SessionResult {
	if s.closed.Load() {
		return transport.SessionResultClosed
	}
	if s.clientConnector == nil {
		return transport.SessionResultConnectFailure
	}

	s.connMu.Lock()
	if conn, ok := s.outgoing[endpoint]; ok && conn.IsConnected() {
		s.connMu.Unlock()
		return transport.SessionResultAlreadyConnected
	}
	p, inProgress := s.pending[endpoint]
	if !inProgress {
		p = &pendingConnect{done: make(chan struct{})}
		s.pending[endpoint] = p
		go s.dial(endpoint, p)
	}
	s.connMu.Unlock()

	if !blocking {
		return transport.SessionResultConnectInProgress
	}

	timer := time.NewTimer(s.config.ConnectTimeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return p.result
	case <-timer.C:
		Logger.Warningf("Connect to %s timed out after %s", endpoint, s.config.ConnectTimeout)
		return transport.SessionResultConnectFailure
	}
}

// IsConnecting reports whether a connect to endpoint is still dialing or handshaking
func (s *Session) IsConnecting(endpoint string) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	_, ok := s.pending[endpoint]
	return ok
}

// Listen binds endpoint and accepts connections in the background
func (s *Session) Listen(endpoint string) transport.SessionResult {
	if s.closed.Load() {
		return transport.SessionResultClosed
	}
	if s.serverConnector == nil {
		return transport.SessionResultListenFailure
	}

	listener, err := s.serverConnector.Listen(endpoint)
	if err != nil {
		Logger.Errorf("Failed to listen on %s: %v", endpoint, err)
		return transport.SessionResultBindFailure
	}

	s.connMu.Lock()
	s.netListeners = append(s.netListeners, listener)
	s.connMu.Unlock()
	s.activeSockets.Add(1)

	Logger.Infof("Listening on %s using %s transport", listener.Addr(), s.serverConnector.GetName())

	go s.acceptLoop(listener)
	return transport.SessionResultOK
}

// Poll dispatches queued events to the plugins. It must always be called
// from the same goroutine. A blocking poll waits for at least one event, a
// non-blocking poll waits at most the poll interval.
func (s *Session) Poll(blocking bool) {
	recv := s.events.Recv()

	if blocking {
		ev, ok := <-recv
		if !ok {
			return
		}
		s.dispatch(ev)
	} else {
		timer := time.NewTimer(s.config.PollInterval)
		select {
		case ev, ok := <-recv:
			timer.Stop()
			if !ok {
				return
			}
			s.dispatch(ev)
		case <-timer.C:
			return
		}
	}

	// drain whatever else is ready
	for {
		select {
		case ev, ok := <-recv:
			if !ok {
				return
			}
			s.dispatch(ev)
		default:
			return
		}
	}
}

// Shutdown closes all listeners and connections. The session stays usable
// and may connect or listen again.
func (s *Session) Shutdown() {
	s.connMu.Lock()
	listeners := s.netListeners
	s.netListeners = nil
	conns := slices.Clone(s.allConnections)
	s.connMu.Unlock()

	for _, l := range listeners {
		if err := l.Close(); err != nil {
			Logger.Debugf("Failed to close listener %s: %v", l.Addr(), err)
		}
		s.activeSockets.Add(-1)
	}
	for _, conn := range conns {
		s.dropConnection(conn, nil)
	}
}

// Close shuts the session down for good. Events already queued are still
// delivered by Poll, afterwards Poll returns immediately.
func (s *Session) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.Shutdown()
	s.events.Close()
}

// Drain dispatches every event still queued after Close. It blocks until
// the session is closed and its queue is empty.
func (s *Session) Drain() {
	for ev := range s.events.Recv() {
		s.dispatch(ev)
	}
}

// IsClosed returns true once Close was called
func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// --------------------------------------------------------------------------
// Helper Methods (outgoing connections)
// --------------------------------------------------------------------------

// dial runs one outgoing connect attempt and publishes its result
func (s *Session) dial(endpoint string, p *pendingConnect) {
	result := s.connectOutgoing(endpoint)

	s.connMu.Lock()
	delete(s.pending, endpoint)
	s.connMu.Unlock()

	p.result = result
	close(p.done)
}

func (s *Session) connectOutgoing(endpoint string) transport.SessionResult {
	nc, err := s.clientConnector.Connect(endpoint, s.config.ConnectTimeout)
	if err != nil {
		Logger.Debugf("Failed to connect to %s: %v", endpoint, err)
		return transport.SessionResultConnectFailure
	}
	if err := s.clientConnector.UpgradeConnection(nc); err != nil {
		_ = nc.Close()
		Logger.Warningf("Failed to upgrade connection to %s: %v", endpoint, err)
		return transport.SessionResultConnectFailure
	}

	conn := transport.NewConnection(nc, s.clientConnector.GetName(), false)
	if !s.track(conn) {
		conn.Close()
		return transport.SessionResultClosed
	}

	// Send hello
	bs := bitstream.New()
	common.GenerateHello(bs)
	if err := conn.WithWriter(func(nc net.Conn) error { return writeFrame(nc, bs.Bytes()) }); err != nil {
		Logger.Warningf("Failed to send hello to %s: %v", endpoint, err)
		s.dropConnection(conn, err)
		return transport.SessionResultConnectFailure
	}

	// Wait for the authorization
	data, err := s.readHandshake(conn)
	if err != nil {
		Logger.Warningf("No authorization received from %s: %v", endpoint, err)
		s.dropConnection(conn, err)
		return transport.SessionResultConnectFailure
	}

	var auth common.Authorization
	if err := auth.Deserialize(bitstream.NewFromBytes(data, false)); err != nil || !auth.Validate() {
		handshakesRejected.Inc()
		Logger.Errorf("REJECTED: service did not authorize us: %s", auth.AuthString)
		s.dropConnection(conn, nil)
		return transport.SessionResultIncompatibleProtocol
	}
	conn.SetRemoteVersion(auth.Version)

	if !s.promote(conn, endpoint) {
		s.dropConnection(conn, nil)
		return transport.SessionResultConnectFailure
	}

	Logger.Infof("Connected to %s running version %s (my version=%s)",
		conn, auth.Version, common.LocalProtocolVersion())

	go s.readLoop(conn)
	return transport.SessionResultOK
}

// --------------------------------------------------------------------------
// Helper Methods (incoming connections)
// --------------------------------------------------------------------------

// acceptLoop accepts connections until the listener is closed
func (s *Session) acceptLoop(listener net.Listener) {
	for {
		nc, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			Logger.Errorf("Accept error: %v", err)
			time.Sleep(s.config.PollInterval)
			continue
		}

		if !s.serverConnector.AcceptPeer(nc.RemoteAddr()) {
			Logger.Warningf("Rejected connection from non-loopback address %s", nc.RemoteAddr())
			_ = nc.Close()
			continue
		}

		go s.acceptIncoming(nc)
	}
}

// acceptIncoming validates the hello of a new client and serves it
func (s *Session) acceptIncoming(nc net.Conn) {
	if err := s.serverConnector.UpgradeConnection(nc); err != nil {
		Logger.Warningf("Failed to upgrade connection from %s: %v", nc.RemoteAddr(), err)
		_ = nc.Close()
		return
	}

	conn := transport.NewConnection(nc, s.serverConnector.GetName(), true)
	if !s.track(conn) {
		conn.Close()
		return
	}

	data, err := s.readHandshake(conn)
	if err != nil {
		Logger.Warningf("No hello received from %s: %v", conn, err)
		s.dropConnection(conn, err)
		return
	}

	var hello common.Hello
	if err := hello.Deserialize(bitstream.NewFromBytes(data, false)); err != nil || !hello.Validate() {
		handshakesRejected.Inc()
		Logger.Errorf("REJECTED: client %s is using an incompatible version %s (my version=%s)",
			conn, hello.Version, common.LocalProtocolVersion())

		bs := bitstream.New()
		common.GenerateAuthorization(bs, common.IncompatibleVersionError)
		_ = conn.WithWriter(func(nc net.Conn) error { return writeFrame(nc, bs.Bytes()) })
		s.dropConnection(conn, nil)
		return
	}
	conn.SetRemoteVersion(hello.Version)

	bs := bitstream.New()
	common.GenerateAuthorization(bs, "")
	if err := conn.WithWriter(func(nc net.Conn) error { return writeFrame(nc, bs.Bytes()) }); err != nil {
		Logger.Warningf("Failed to send authorization to %s: %v", conn, err)
		s.dropConnection(conn, err)
		return
	}

	if !s.promote(conn, "") {
		s.dropConnection(conn, nil)
		return
	}

	Logger.Infof("Accepted %s running version %s", conn, hello.Version)
	s.readLoop(conn)
}

// --------------------------------------------------------------------------
// Helper Methods (connection bookkeeping)
// --------------------------------------------------------------------------

// readHandshake reads the first frame of a connection within the handshake timeout
func (s *Session) readHandshake(conn *transport.Connection) ([]byte, error) {
	nc := conn.NetConn()
	if err := nc.SetReadDeadline(time.Now().Add(s.config.HandshakeTimeout)); err != nil {
		return nil, err
	}
	data, err := readFrame(nc, nil)
	if err != nil {
		return nil, err
	}
	if err := nc.SetReadDeadline(time.Time{}); err != nil {
		return nil, err
	}
	return data, nil
}

// readLoop reads frames until the connection fails and queues them
func (s *Session) readLoop(conn *transport.Connection) {
	nc := conn.NetConn()
	for {
		data, err := readFrame(nc, nil)
		if err != nil {
			s.dropConnection(conn, err)
			return
		}
		framesReceived.Inc()
		s.events.Push(&sessionEvent{kind: eventReceive, conn: conn, data: data})
	}
}

// track registers a connection in handshake
func (s *Session) track(conn *transport.Connection) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.closed.Load() {
		return false
	}
	s.allConnections = append(s.allConnections, conn)
	s.activeSockets.Add(1)
	return true
}

// promote marks a connection as connected and queues the connected event.
// The event is queued before the reader starts, so plugins always see
// OnConnected before the first message of a connection.
func (s *Session) promote(conn *transport.Connection, endpoint string) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.closed.Load() || conn.State() == transport.StateZombie {
		return false
	}
	conn.SetState(transport.StateConnected)
	s.fullConnections = append(s.fullConnections, conn)
	if endpoint != "" {
		s.outgoing[endpoint] = conn
	}
	s.events.Push(&sessionEvent{kind: eventConnected, conn: conn})
	return true
}

// dropConnection closes a connection and forgets it. A connected connection
// produces exactly one disconnected event, however often this is called.
func (s *Session) dropConnection(conn *transport.Connection, reason error) {
	conn.Close()

	s.connMu.Lock()
	tracked := false
	if i := slices.Index(s.allConnections, conn); i >= 0 {
		s.allConnections = slices.Delete(s.allConnections, i, i+1)
		tracked = true
	}
	wasConnected := false
	if i := slices.Index(s.fullConnections, conn); i >= 0 {
		s.fullConnections = slices.Delete(s.fullConnections, i, i+1)
		wasConnected = true
	}
	for endpoint, c := range s.outgoing {
		if c == conn {
			delete(s.outgoing, endpoint)
		}
	}
	if wasConnected {
		s.events.Push(&sessionEvent{kind: eventDisconnected, conn: conn})
	}
	s.connMu.Unlock()

	if !tracked {
		return
	}
	s.activeSockets.Add(-1)

	switch {
	case reason == nil, errors.Is(reason, io.EOF), errors.Is(reason, net.ErrClosed):
		Logger.Debugf("Connection %s closed", conn)
	default:
		Logger.Warningf("Connection %s lost: %v", conn, reason)
	}
}

// dispatch hands one event to every plugin
func (s *Session) dispatch(ev *sessionEvent) {
	s.listenersMu.RLock()
	listeners := slices.Clone(s.listeners)
	s.listenersMu.RUnlock()

	switch ev.kind {
	case eventReceive:
		payload := &transport.ReceivePayload{Connection: ev.conn, Data: ev.data}
		for _, l := range listeners {
			l.OnReceive(payload)
		}
	case eventConnected:
		for _, l := range listeners {
			l.OnConnected(ev.conn)
		}
	case eventDisconnected:
		for _, l := range listeners {
			l.OnDisconnected(ev.conn)
		}
	}
}
