package server

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/hmdlink/lib/store"
	"github.com/ValentinKolb/hmdlink/lib/store/bstore"
	"github.com/ValentinKolb/hmdlink/rpc/bitstream"
	"github.com/ValentinKolb/hmdlink/rpc/common"
	"github.com/ValentinKolb/hmdlink/rpc/observer"
	"github.com/ValentinKolb/hmdlink/rpc/rpc1"
	"github.com/ValentinKolb/hmdlink/rpc/transport"
	"github.com/ValentinKolb/hmdlink/rpc/transport/base"
	"github.com/ValentinKolb/hmdlink/rpc/transport/tcp"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("netserver")

var (
	clientsConnected    = metrics.GetOrCreateCounter(`hmdlink_service_clients_total{event="connected"}`)
	clientsDisconnected = metrics.GetOrCreateCounter(`hmdlink_service_clients_total{event="disconnected"}`)
)

// ErrShutdownRequested is returned by Serve when a client stopped the service
var ErrShutdownRequested = errors.New("shutdown requested by client")

// NetServer is the reference service. It answers every call of the client
// from a simulated set of HMDs and a profile store.
type NetServer struct {
	config  common.ServerConfig
	session *base.Session
	rpc     *rpc1.RPC1
	store   store.IStore

	adapters      []IServiceAdapter
	shutdownScope *observer.ObserverScope[rpc1.SlotFunc]
	hmdCount      atomic.Int32
	clients       atomic.Int32

	metricsServer *http.Server
	metricsAddr   net.Addr

	shutdown     chan struct{}
	shutdownOnce sync.Once
	closeOnce    sync.Once

	// serving is closed when the running Serve loop returns
	servingMu sync.Mutex
	serving   chan struct{}
}

// NewNetServer creates the service. If s is nil a badger store in
// config.DataDir is opened and owned by the service.
//
// Usage:
//
//	srv, err := server.NewNetServer(common.DefaultServerConfig(), nil)
//	if err != nil {
//		return err
//	}
//	defer srv.Close()
//	err = srv.Serve(ctx)
func NewNetServer(config common.ServerConfig, s store.IStore) (*NetServer, error) {
	if config.HMDCount < 0 {
		return nil, fmt.Errorf("invalid HMD count %d", config.HMDCount)
	}

	if s == nil {
		var err error
		if s, err = bstore.NewBadgerStore(config.DataDir); err != nil {
			return nil, fmt.Errorf("failed to open profile store: %w", err)
		}
	}

	session := tcp.NewServerSession(config)
	srv := &NetServer{
		config:   config,
		session:  session,
		rpc:      rpc1.New(session),
		store:    s,
		shutdown: make(chan struct{}),
	}
	srv.hmdCount.Store(int32(config.HMDCount))

	srv.adapters = []IServiceAdapter{
		NewProfileAdapter(store.NewProfile(s)),
		NewHMDAdapter(&srv.hmdCount, config.LatencyTester),
	}
	for _, a := range srv.adapters {
		a.Register(srv.rpc)
	}

	srv.shutdownScope = observer.NewScopeWithHandler[rpc1.SlotFunc](srv.onShutdown)
	srv.rpc.RegisterSlot(common.CallShutdown, srv.shutdownScope.Get())

	session.AddSessionListener(srv.rpc)
	session.AddSessionListener(srv)

	Logger.Infof("Created service")
	Logger.Infof(config.String())
	return srv, nil
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Listen binds the loopback port and the metrics endpoint. Serve calls it
// if it was not called yet.
func (s *NetServer) Listen() error {
	if s.session.ListenAddr() == nil {
		if res := s.session.Listen(s.config.Address()); res != transport.SessionResultOK {
			return fmt.Errorf("failed to listen on %s: %s", s.config.Address(), res)
		}
	}
	return s.startMetrics()
}

// Serve listens and polls the session until ctx is done, Close is called
// or a client requests a shutdown.
func (s *NetServer) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.servingMu.Lock()
	if s.serving != nil {
		s.servingMu.Unlock()
		return errors.New("service is already serving")
	}
	done := make(chan struct{})
	s.serving = done
	s.servingMu.Unlock()
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.shutdown:
			return ErrShutdownRequested
		default:
		}
		if s.session.IsClosed() {
			return nil
		}
		s.session.Poll(false)
	}
}

// Close stops the service and releases the store
func (s *NetServer) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.session.Close()

		// the poll loop must be gone before the remaining events are dispatched here
		s.servingMu.Lock()
		serving := s.serving
		s.servingMu.Unlock()
		if serving != nil {
			<-serving
		}
		s.session.Drain()

		for _, a := range s.adapters {
			a.Release(s.rpc)
		}
		s.rpc.UnregisterSlot(common.CallShutdown)
		s.shutdownScope.Shutdown()

		if s.metricsServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			err = errors.Join(err, s.metricsServer.Shutdown(ctx))
		}
		err = errors.Join(err, s.store.Close())
		Logger.Infof("Service closed")
	})
	return err
}

// Addr returns the address the service listens on, nil before Listen
func (s *NetServer) Addr() net.Addr {
	return s.session.ListenAddr()
}

// Port returns the port the service listens on, 0 before Listen
func (s *NetServer) Port() int {
	if addr, ok := s.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// MetricsAddr returns the address of the metrics endpoint, nil if disabled
func (s *NetServer) MetricsAddr() net.Addr {
	return s.metricsAddr
}

// Clients returns the number of connected clients
func (s *NetServer) Clients() int {
	return int(s.clients.Load())
}

// Store returns the profile store of the service
func (s *NetServer) Store() store.IStore {
	return s.store
}

// SetHMDCount changes the number of simulated HMDs and notifies all clients
func (s *NetServer) SetHMDCount(n int) {
	s.hmdCount.Store(int32(n))
	Logger.Infof("HMD count changed to %d", n)

	if s.session.GetConnectionCount() == 0 {
		return
	}
	args := bitstream.New()
	args.WriteInt32(int32(n))
	s.rpc.BroadcastSignal(common.PushHMDCountUpdate, args)
}

// startMetrics exposes the metrics in prometheus format
func (s *NetServer) startMetrics() error {
	if s.config.MetricsEndpoint == "" || s.metricsServer != nil {
		return nil
	}

	listener, err := net.Listen("tcp", s.config.MetricsEndpoint)
	if err != nil {
		return fmt.Errorf("failed to listen for metrics on %s: %w", s.config.MetricsEndpoint, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	s.metricsServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	s.metricsAddr = listener.Addr()

	go func() {
		if err := s.metricsServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("Metrics endpoint failed: %v", err)
		}
	}()
	Logger.Infof("Serving metrics on http://%s/metrics", listener.Addr())
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.INetworkPlugin)
// --------------------------------------------------------------------------

func (s *NetServer) OnReceive(payload *transport.ReceivePayload) {}

// OnConnected pushes the initial state to the new client
func (s *NetServer) OnConnected(conn *transport.Connection) {
	s.clients.Add(1)
	clientsConnected.Inc()
	Logger.Infof("Client %s connected, running version %s", conn, conn.RemoteVersion())

	state := bitstream.New()
	var tester uint8
	if s.config.LatencyTester {
		tester = 1
	}
	state.WriteUint8(tester)
	s.rpc.Signal(common.PushInitialServerState, state, conn)

	count := bitstream.New()
	count.WriteInt32(s.hmdCount.Load())
	s.rpc.Signal(common.PushHMDCountUpdate, count, conn)
}

func (s *NetServer) OnDisconnected(conn *transport.Connection) {
	s.clients.Add(-1)
	clientsDisconnected.Inc()
	Logger.Infof("Client %s disconnected", conn)
}

// onShutdown handles Shutdown_1
func (s *NetServer) onShutdown(_ *bitstream.BitStream, payload *transport.ReceivePayload) {
	if !s.config.AllowRemoteShutdown {
		Logger.Warningf("Ignoring shutdown request from %s", payload.Connection)
		return
	}
	Logger.Infof("Shutdown requested by %s", payload.Connection)
	s.shutdownOnce.Do(func() { close(s.shutdown) })
}
