package client

import (
	"github.com/ValentinKolb/hmdlink/rpc/bitstream"
	"github.com/ValentinKolb/hmdlink/rpc/common"
	"github.com/ValentinKolb/hmdlink/rpc/observer"
	"github.com/ValentinKolb/hmdlink/rpc/rpc1"
	"github.com/ValentinKolb/hmdlink/rpc/transport"
	"github.com/ValentinKolb/hmdlink/rpc/transport/base"
	"github.com/ValentinKolb/hmdlink/rpc/transport/tcp"
	"math"
	"net"
	"sync/atomic"
	"testing"
	"time"
)

// --------------------------------------------------------------------------
// Fake Service
// --------------------------------------------------------------------------

// fakeService is a minimal service answering only what a test registers
type fakeService struct {
	session *base.Session
	rpc     *rpc1.RPC1
	port    int

	// pushed on every new connection if set
	hmdCount      atomic.Int32
	pushHMDCount  atomic.Bool
	latencyTester atomic.Bool
}

func (f *fakeService) OnReceive(*transport.ReceivePayload) {}

func (f *fakeService) OnConnected(conn *transport.Connection) {
	if f.latencyTester.Load() {
		args := bitstream.New()
		args.WriteUint8(1)
		f.rpc.Signal(common.PushInitialServerState, args, conn)
	}
	if f.pushHMDCount.Load() {
		args := bitstream.New()
		args.WriteInt32(f.hmdCount.Load())
		f.rpc.Signal(common.PushHMDCountUpdate, args, conn)
	}
}

func (f *fakeService) OnDisconnected(*transport.Connection) {}

func requireLoopback(t *testing.T) {
	t.Helper()
	l, err := net.Listen("tcp6", "[::1]:0")
	if err != nil {
		t.Skipf("IPv6 loopback not available: %v", err)
	}
	l.Close()
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	requireLoopback(t)

	cfg := common.DefaultServerConfig()
	cfg.Port = 0
	s := tcp.NewServerSession(cfg)
	f := &fakeService{session: s, rpc: rpc1.New(s)}
	s.AddSessionListener(f.rpc)
	s.AddSessionListener(f)

	if res := s.Listen(cfg.Address()); res != transport.SessionResultOK {
		t.Fatalf("Listen failed: %s", res)
	}
	f.port = s.ListenAddr().(*net.TCPAddr).Port

	go func() {
		for !s.IsClosed() {
			s.Poll(false)
		}
	}()
	t.Cleanup(s.Close)
	return f
}

// unusedPort returns a loopback port nobody listens on
func unusedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to find a free port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

func newTestClient(t *testing.T, port int) *NetClient {
	t.Helper()
	cfg := common.DefaultClientConfig()
	cfg.Port = port
	cfg.ConnectTimeoutMs = 2000
	cfg.ReconnectIntervalMs = 0
	c := New(cfg)
	c.Start()
	t.Cleanup(c.Close)
	return c
}

// waitFor polls cond until it holds or the deadline passes
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("Timed out waiting for %s", what)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// bounded runs fn and fails the test if it does not return in time
func bounded(t *testing.T, what string, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatalf("%s did not return", what)
	}
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

// TestNoServiceReturnsDefaults checks that every call returns its default without a service
func TestNoServiceReturnsDefaults(t *testing.T) {
	c := newTestClient(t, unusedPort(t))

	bounded(t, "calls without service", func() {
		if v := c.GetIntValue(0, "k", 7); v != 7 {
			t.Errorf("GetIntValue: expected 7, got %d", v)
		}
		if v := c.GetStringValue(0, "k", "def"); v != "def" {
			t.Errorf("GetStringValue: expected def, got %q", v)
		}
		if v := c.GetBoolValue(0, "k", true); !v {
			t.Error("GetBoolValue: expected true")
		}
		if v := c.GetNumberValue(0, "k", 1.5); v != 1.5 {
			t.Errorf("GetNumberValue: expected 1.5, got %v", v)
		}
		if n := c.GetNumberValues(0, "k", make([]float64, 3)); n != 0 {
			t.Errorf("GetNumberValues: expected 0, got %d", n)
		}
		if c.SetIntValue(0, "k", 1) {
			t.Error("SetIntValue should fail")
		}
		if n := c.HmdDetect(); n != 0 {
			t.Errorf("HmdDetect: expected 0, got %d", n)
		}
		if _, ok := c.HmdCreate(0); ok {
			t.Error("HmdCreate should fail")
		}
		if _, ok := c.GetDriverMode(); ok {
			t.Error("GetDriverMode should fail")
		}
		if _, ok := c.LatencyUtilProcessInputs(0); ok {
			t.Error("LatencyUtilProcessInputs should fail")
		}
		if c.ShutdownServer() {
			t.Error("ShutdownServer should fail")
		}
	})

	if _, ok := c.GetRemoteProtocolVersion(); ok {
		t.Error("Expected no remote protocol version")
	}
	if c.GetLocalProtocolVersion() != common.LocalProtocolVersion() {
		t.Error("Unexpected local protocol version")
	}

	c.SetLastError("no service")
	if msg := c.HmdGetLastError(0); msg != "no service" {
		t.Errorf("Expected cached last error, got %q", msg)
	}
}

// TestGetIntValueFromService checks a getter against a service that always answers 42
func TestGetIntValueFromService(t *testing.T) {
	svc := newFakeService(t)

	type request struct {
		hmd        int32
		key        string
		defaultVal int32
	}
	requests := make(chan request, 1)
	svc.rpc.RegisterBlockingFunction(common.CallGetIntValue, func(args, result *bitstream.BitStream, p *transport.ReceivePayload) {
		var r request
		r.hmd, _ = args.ReadInt32()
		r.key, _ = args.ReadString()
		r.defaultVal, _ = args.ReadInt32()
		requests <- r
		result.WriteInt32(42)
	})

	c := newTestClient(t, svc.port)

	var v int
	bounded(t, "GetIntValue", func() { v = c.GetIntValue(2, "k", 7) })
	if v != 42 {
		t.Errorf("Expected 42, got %d", v)
	}

	select {
	case r := <-requests:
		if r != (request{hmd: 2, key: "k", defaultVal: 7}) {
			t.Errorf("Unexpected request %+v", r)
		}
	default:
		t.Error("Service saw no request")
	}

	if c.ConnectionState() != Connected {
		t.Errorf("Expected Connected, got %s", c.ConnectionState())
	}
	if version, ok := c.GetRemoteProtocolVersion(); !ok || version != common.LocalProtocolVersion() {
		t.Errorf("Unexpected remote version %s (%v)", version, ok)
	}
}

// TestUnregisteredCallsReturnDefaults checks calls the service does not know
func TestUnregisteredCallsReturnDefaults(t *testing.T) {
	svc := newFakeService(t)
	c := newTestClient(t, svc.port)

	if !c.Connect(true) {
		t.Fatal("Connect failed")
	}

	bounded(t, "unregistered calls", func() {
		if n := c.HmdDetect(); n != 0 {
			t.Errorf("HmdDetect: expected 0, got %d", n)
		}
		if v := c.GetIntValue(0, "k", 7); v != 7 {
			t.Errorf("GetIntValue: expected 7, got %d", v)
		}
		if v := c.GetStringValue(0, "k", "def"); v != "def" {
			t.Errorf("GetStringValue: expected def, got %q", v)
		}
		if _, ok := c.HmdGetHmdInfo(0); ok {
			t.Error("HmdGetHmdInfo should fail")
		}
		if caps := c.HmdSetEnabledCaps(0, 5); caps != 0 {
			t.Errorf("HmdSetEnabledCaps: expected 0, got %d", caps)
		}
		if c.SetDriverMode(true, false) {
			t.Error("SetDriverMode should fail")
		}
	})

	// a failed detect is not cached
	if c.edgeTriggeredHMDCount.Load() {
		t.Error("Failed HmdDetect must not mark the count as known")
	}
}

// TestHMDCountPush checks the edge triggered HMD count cache
func TestHMDCountPush(t *testing.T) {
	svc := newFakeService(t)
	svc.hmdCount.Store(3)
	svc.pushHMDCount.Store(true)

	var detectCalls atomic.Int32
	svc.rpc.RegisterBlockingFunction(common.CallHmdDetect, func(args, result *bitstream.BitStream, p *transport.ReceivePayload) {
		detectCalls.Add(1)
		result.WriteInt32(99)
	})

	c := newTestClient(t, svc.port)
	if !c.Connect(true) {
		t.Fatal("Connect failed")
	}
	waitFor(t, "HMD count push", c.edgeTriggeredHMDCount.Load)

	for i := 0; i < 3; i++ {
		if n := c.HmdDetect(); n != 3 {
			t.Fatalf("Expected 3, got %d", n)
		}
	}
	if n := detectCalls.Load(); n != 0 {
		t.Errorf("Expected no Hmd_Detect round trip, got %d", n)
	}

	// a disconnect resets the cache, the next connection pushes again
	svc.hmdCount.Store(4)
	c.Disconnect()
	waitFor(t, "cache reset", func() bool { return !c.edgeTriggeredHMDCount.Load() })

	if !c.Connect(true) {
		t.Fatal("Reconnect failed")
	}
	waitFor(t, "second HMD count push", c.edgeTriggeredHMDCount.Load)
	if n := c.HmdDetect(); n != 4 {
		t.Errorf("Expected 4 after reconnect, got %d", n)
	}
}

// TestDefaultReconnectPolicy runs the push and call scenarios with the
// default reconnect throttle. A call following a non-blocking reconnect
// must join the dial in flight instead of being throttled.
func TestDefaultReconnectPolicy(t *testing.T) {
	svc := newFakeService(t)
	svc.hmdCount.Store(3)
	svc.pushHMDCount.Store(true)
	svc.rpc.RegisterBlockingFunction(common.CallGetIntValue, func(args, result *bitstream.BitStream, p *transport.ReceivePayload) {
		result.WriteInt32(42)
	})

	cfg := common.DefaultClientConfig()
	cfg.Port = svc.port
	if cfg.ReconnectInterval() == 0 {
		t.Fatal("Expected the default config to throttle reconnects")
	}
	c := New(cfg)
	c.Start()
	t.Cleanup(c.Close)

	tests := []struct {
		name string
		run  func(t *testing.T)
	}{
		{"call joins non-blocking dial", func(t *testing.T) {
			bounded(t, "first calls", func() {
				c.HmdDetect()
				if v := c.GetIntValue(0, "k", 7); v != 42 {
					t.Errorf("Expected 42, got %d", v)
				}
			})
		}},
		{"pushed count is cached", func(t *testing.T) {
			waitFor(t, "HMD count push", c.edgeTriggeredHMDCount.Load)
			if n := c.HmdDetect(); n != 3 {
				t.Errorf("Expected 3, got %d", n)
			}
		}},
		{"reconnect after disconnect", func(t *testing.T) {
			svc.hmdCount.Store(4)
			c.Disconnect()
			waitFor(t, "cache reset", func() bool { return !c.edgeTriggeredHMDCount.Load() })

			// throttled attempts return the default until a dial is allowed
			waitFor(t, "reconnect", func() bool { return c.GetIntValue(0, "k", 7) == 42 })
			waitFor(t, "second HMD count push", c.edgeTriggeredHMDCount.Load)
			if n := c.HmdDetect(); n != 4 {
				t.Errorf("Expected 4 after reconnect, got %d", n)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.run)
	}
}

// TestHmdDetectRoundTrip checks that without a push the count is fetched once
func TestHmdDetectRoundTrip(t *testing.T) {
	svc := newFakeService(t)

	var detectCalls atomic.Int32
	svc.rpc.RegisterBlockingFunction(common.CallHmdDetect, func(args, result *bitstream.BitStream, p *transport.ReceivePayload) {
		detectCalls.Add(1)
		result.WriteInt32(2)
	})

	c := newTestClient(t, svc.port)
	if !c.Connect(true) {
		t.Fatal("Connect failed")
	}
	for i := 0; i < 3; i++ {
		if n := c.HmdDetect(); n != 2 {
			t.Fatalf("Expected 2, got %d", n)
		}
	}
	if n := detectCalls.Load(); n != 1 {
		t.Errorf("Expected exactly one round trip, got %d", n)
	}
}

// TestInt32RoundTrip checks the full int32 range through a service echoing the default
func TestInt32RoundTrip(t *testing.T) {
	svc := newFakeService(t)
	svc.rpc.RegisterBlockingFunction(common.CallGetIntValue, func(args, result *bitstream.BitStream, p *transport.ReceivePayload) {
		args.ReadInt32()
		args.ReadString()
		v, _ := args.ReadInt32()
		result.WriteInt32(v)
	})

	c := newTestClient(t, svc.port)

	tests := []struct {
		name string
		val  int
	}{
		{"zero", 0},
		{"one", 1},
		{"minus one", -1},
		{"max", math.MaxInt32},
		{"min", math.MinInt32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got int
			bounded(t, "GetIntValue", func() { got = c.GetIntValue(0, "k", tt.val) })
			if got != tt.val {
				t.Errorf("Expected %d, got %d", tt.val, got)
			}
		})
	}
}

// TestNumberValues checks array values and the clamping of the reply count
func TestNumberValues(t *testing.T) {
	svc := newFakeService(t)

	stored := make(chan []float64, 1)
	setScope := observer.NewScopeWithHandler[rpc1.SlotFunc](func(args *bitstream.BitStream, p *transport.ReceivePayload) {
		args.ReadInt32()
		args.ReadString()
		n, _ := args.ReadInt32()
		vals := make([]float64, n)
		for i := range vals {
			vals[i], _ = args.ReadFloat64()
		}
		stored <- vals
	})
	defer setScope.Shutdown()
	svc.rpc.RegisterSlot(common.CallSetNumberValues, setScope.Get())

	// always answers five values, whatever was asked for
	svc.rpc.RegisterBlockingFunction(common.CallGetNumberValues, func(args, result *bitstream.BitStream, p *transport.ReceivePayload) {
		result.WriteInt32(5)
		for i := 0; i < 5; i++ {
			result.WriteFloat64(float64(i) + 0.5)
		}
	})

	c := newTestClient(t, svc.port)

	if !c.SetNumberValues(0, "NeckModelVector3f", []float64{0.1, 0.2, 0.3}) {
		t.Fatal("SetNumberValues failed")
	}
	select {
	case vals := <-stored:
		if len(vals) != 3 || vals[0] != 0.1 || vals[2] != 0.3 {
			t.Errorf("Unexpected stored values %v", vals)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Service did not receive SetNumberValues_1")
	}

	values := make([]float64, 3)
	var n int
	bounded(t, "GetNumberValues", func() { n = c.GetNumberValues(0, "NeckModelVector3f", values) })
	if n != 3 {
		t.Fatalf("Expected 3 values, got %d", n)
	}
	for i, v := range values {
		if v != float64(i)+0.5 {
			t.Errorf("values[%d]: expected %v, got %v", i, float64(i)+0.5, v)
		}
	}
}

// TestLatencyTester checks the availability push and the latency calls
func TestLatencyTester(t *testing.T) {
	svc := newFakeService(t)
	svc.latencyTester.Store(true)

	svc.rpc.RegisterBlockingFunction(common.CallLatencyUtilProcessInputs, func(args, result *bitstream.BitStream, p *transport.ReceivePayload) {
		result.WriteUint8(10)
		result.WriteUint8(20)
		result.WriteUint8(30)
	})
	svc.rpc.RegisterBlockingFunction(common.CallLatencyUtilGetResultsString, func(args, result *bitstream.BitStream, p *transport.ReceivePayload) {
		result.WriteString("12 ms")
	})

	c := newTestClient(t, svc.port)
	if !c.Connect(true) {
		t.Fatal("Connect failed")
	}
	waitFor(t, "latency tester push", c.LatencyTesterAvailable)

	rgb, ok := c.LatencyUtilProcessInputs(1.0)
	if !ok || rgb != [3]uint8{10, 20, 30} {
		t.Errorf("Unexpected color %v (%v)", rgb, ok)
	}
	if s, ok := c.LatencyUtilGetResultsString(); !ok || s != "12 ms" {
		t.Errorf("Unexpected results %q (%v)", s, ok)
	}
}

// TestHmdCreateAndInfo checks the structured replies
func TestHmdCreateAndInfo(t *testing.T) {
	svc := newFakeService(t)

	want := common.HMDInfo{
		ProductName:        "Rift",
		Manufacturer:       "Oculus",
		ResolutionInPixels: common.Sizei{W: 1920, H: 1080},
	}
	svc.rpc.RegisterBlockingFunction(common.CallHmdCreate, func(args, result *bitstream.BitStream, p *transport.ReceivePayload) {
		index, _ := args.ReadInt32()
		info := common.HMDNetworkInfo{NetId: index + 100, SharedMemoryName: "shm"}
		info.Serialize(result)
	})
	svc.rpc.RegisterBlockingFunction(common.CallHmdGetHmdInfo, func(args, result *bitstream.BitStream, p *transport.ReceivePayload) {
		want.Serialize(result)
	})

	c := newTestClient(t, svc.port)

	netInfo, ok := c.HmdCreate(1)
	if !ok || netInfo.NetId != 101 || netInfo.SharedMemoryName != "shm" {
		t.Fatalf("Unexpected network info %+v (%v)", netInfo, ok)
	}

	info, ok := c.HmdGetHmdInfo(netInfo.NetId)
	if !ok {
		t.Fatal("HmdGetHmdInfo failed")
	}
	if info.ProductName != want.ProductName || info.ResolutionInPixels != want.ResolutionInPixels {
		t.Errorf("Unexpected info %+v", info)
	}
}

// TestCloseReleasesPendingCall checks that closing the client ends a pending call
func TestCloseReleasesPendingCall(t *testing.T) {
	svc := newFakeService(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	svc.rpc.RegisterBlockingFunction(common.CallGetIntValue, func(args, result *bitstream.BitStream, p *transport.ReceivePayload) {
		close(entered)
		<-release
	})
	defer close(release)

	c := newTestClient(t, svc.port)

	got := make(chan int, 1)
	go func() { got <- c.GetIntValue(0, "k", 7) }()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("Call never reached the service")
	}
	c.Close()

	select {
	case v := <-got:
		if v != 7 {
			t.Errorf("Expected default 7, got %d", v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not release the pending call")
	}
}
