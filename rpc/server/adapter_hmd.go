package server

import (
	"fmt"
	"github.com/ValentinKolb/hmdlink/rpc/bitstream"
	"github.com/ValentinKolb/hmdlink/rpc/common"
	"github.com/ValentinKolb/hmdlink/rpc/rpc1"
	"github.com/ValentinKolb/hmdlink/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"
	"math"
	"sync/atomic"
)

var (
	hmdsCreated  = metrics.GetOrCreateCounter(`hmdlink_service_hmds_total{op="create"}`)
	hmdsReleased = metrics.GetOrCreateCounter(`hmdlink_service_hmds_total{op="release"}`)
)

// Caps the simulated devices support
const (
	TrackingCapOrientation    uint32 = 0x0010
	TrackingCapMagYawCorrect  uint32 = 0x0020
	TrackingCapPosition       uint32 = 0x0040
	supportedTrackingCaps            = TrackingCapOrientation | TrackingCapMagYawCorrect | TrackingCapPosition
	defaultEnabledCaps        uint32 = 0x0080 | 0x0100 // low persistence, dynamic prediction
	errInvalidHMDMessage             = "invalid HMD"
	errUnsupportedCapsMessage        = "required tracking caps are not supported"
)

// hmdState is one HMD created by a client
type hmdState struct {
	index       int32
	pid         int32
	window      atomic.Uint64
	enabledCaps atomic.Uint32
	tracking    atomic.Uint64 // supported<<32 | required
	resets      atomic.Int32
	lastError   atomic.Pointer[string]
}

func (h *hmdState) setError(msg string) {
	h.lastError.Store(&msg)
}

// hmdAdapter simulates the HMD hardware of the service
type hmdAdapter struct {
	hmdCount   *atomic.Int32
	nextId     atomic.Int32
	hmds       *xsync.MapOf[common.VirtualHmdId, *hmdState]
	compatMode atomic.Bool
	hideDK1    atomic.Bool

	latencyTester bool
	latencyResult atomic.Pointer[string]
}

// NewHMDAdapter creates the adapter answering the Hmd_*, driver mode and
// latency tester calls. hmdCount is shared with the service so count
// updates are seen by Hmd_Detect_1.
func NewHMDAdapter(hmdCount *atomic.Int32, latencyTester bool) IServiceAdapter {
	return &hmdAdapter{
		hmdCount:      hmdCount,
		hmds:          xsync.NewMapOf[common.VirtualHmdId, *hmdState](),
		latencyTester: latencyTester,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see interface.go)
// --------------------------------------------------------------------------

func (a *hmdAdapter) functions() map[string]rpc1.BlockingFunc {
	fns := map[string]rpc1.BlockingFunc{
		common.CallHmdDetect:            a.detect,
		common.CallHmdCreate:            a.create,
		common.CallGetDriverMode:        a.getDriverMode,
		common.CallSetDriverMode:        a.setDriverMode,
		common.CallHmdAttachToWindow:    a.attachToWindow,
		common.CallHmdRelease:           a.release,
		common.CallHmdGetLastError:      a.getLastError,
		common.CallHmdGetHmdInfo:        a.getHmdInfo,
		common.CallHmdGetEnabledCaps:    a.getEnabledCaps,
		common.CallHmdSetEnabledCaps:    a.setEnabledCaps,
		common.CallHmdConfigureTracking: a.configureTracking,
		common.CallHmdResetTracking:     a.resetTracking,
	}
	// without a tester the latency calls stay unknown to clients
	if a.latencyTester {
		fns[common.CallLatencyUtilProcessInputs] = a.latencyProcessInputs
		fns[common.CallLatencyUtilGetResultsString] = a.latencyResults
	}
	return fns
}

func (a *hmdAdapter) Register(r *rpc1.RPC1) {
	for id, fn := range a.functions() {
		if !r.RegisterBlockingFunction(id, fn) {
			Logger.Warningf("Blocking function %s registered twice", id)
		}
	}
}

func (a *hmdAdapter) Release(r *rpc1.RPC1) {
	for id := range a.functions() {
		r.UnregisterBlockingFunction(id)
	}
}

// --------------------------------------------------------------------------
// HMD Management
// --------------------------------------------------------------------------

func (a *hmdAdapter) detect(_, result *bitstream.BitStream, _ *transport.ReceivePayload) {
	result.WriteInt32(a.hmdCount.Load())
}

func (a *hmdAdapter) create(args, result *bitstream.BitStream, p *transport.ReceivePayload) {
	index, err := args.ReadInt32()
	if err != nil {
		return
	}
	pid, _ := args.ReadInt32()

	if index < 0 || index >= a.hmdCount.Load() {
		Logger.Infof("Client %s asked for HMD %d, only %d present", p.Connection, index, a.hmdCount.Load())
		return
	}

	h := &hmdState{index: index, pid: pid}
	h.enabledCaps.Store(defaultEnabledCaps)
	id := a.nextId.Add(1) - 1
	a.hmds.Store(id, h)
	hmdsCreated.Inc()

	info := common.HMDNetworkInfo{
		NetId:            id,
		SharedMemoryName: fmt.Sprintf("hmdlink_hmd_%d_%d", pid, id),
	}
	info.Serialize(result)
	Logger.Infof("Created HMD %d (index %d) for process %d", id, index, pid)
}

func (a *hmdAdapter) release(args, _ *bitstream.BitStream, _ *transport.ReceivePayload) {
	id, err := args.ReadInt32()
	if err != nil {
		return
	}
	if _, ok := a.hmds.LoadAndDelete(id); ok {
		hmdsReleased.Inc()
		Logger.Infof("Released HMD %d", id)
	}
}

func (a *hmdAdapter) attachToWindow(args, _ *bitstream.BitStream, _ *transport.ReceivePayload) {
	h, ok := a.lookup(args)
	if !ok {
		return
	}
	window, err := args.ReadUint64()
	if err != nil {
		return
	}
	h.window.Store(window)
}

func (a *hmdAdapter) getLastError(args, result *bitstream.BitStream, _ *transport.ReceivePayload) {
	h, ok := a.lookup(args)
	if !ok {
		result.WriteString(errInvalidHMDMessage)
		return
	}
	msg := ""
	if p := h.lastError.Load(); p != nil {
		msg = *p
	}
	result.WriteString(msg)
}

func (a *hmdAdapter) getHmdInfo(args, result *bitstream.BitStream, _ *transport.ReceivePayload) {
	h, ok := a.lookup(args)
	if !ok {
		return
	}
	info := simulatedHMDInfo(h.index, a.compatMode.Load())
	info.Serialize(result)
}

func (a *hmdAdapter) getEnabledCaps(args, result *bitstream.BitStream, _ *transport.ReceivePayload) {
	h, ok := a.lookup(args)
	if !ok {
		return
	}
	result.WriteUint32(h.enabledCaps.Load())
}

func (a *hmdAdapter) setEnabledCaps(args, result *bitstream.BitStream, _ *transport.ReceivePayload) {
	h, ok := a.lookup(args)
	if !ok {
		return
	}
	caps, err := args.ReadUint32()
	if err != nil {
		return
	}
	h.enabledCaps.Store(caps)
	result.WriteUint32(h.enabledCaps.Load())
}

// --------------------------------------------------------------------------
// Driver Mode
// --------------------------------------------------------------------------

func (a *hmdAdapter) getDriverMode(_, result *bitstream.BitStream, _ *transport.ReceivePayload) {
	result.WriteInt32(1)
	result.WriteInt32(boolToInt32(a.compatMode.Load()))
	result.WriteInt32(boolToInt32(a.hideDK1.Load()))
}

func (a *hmdAdapter) setDriverMode(args, result *bitstream.BitStream, _ *transport.ReceivePayload) {
	if _, err := args.ReadInt32(); err != nil {
		return
	}
	compat, err := args.ReadInt32()
	if err != nil {
		return
	}
	hide, err := args.ReadInt32()
	if err != nil {
		return
	}
	a.compatMode.Store(compat != 0)
	a.hideDK1.Store(hide != 0)
	Logger.Infof("Driver mode changed: compat=%v hideDK1=%v", compat != 0, hide != 0)
	result.WriteInt32(1)
}

// --------------------------------------------------------------------------
// Tracking
// --------------------------------------------------------------------------

func (a *hmdAdapter) configureTracking(args, result *bitstream.BitStream, _ *transport.ReceivePayload) {
	h, ok := a.lookup(args)
	if !ok {
		result.WriteUint8(0)
		return
	}
	supported, err := args.ReadUint32()
	if err != nil {
		return
	}
	required, err := args.ReadUint32()
	if err != nil {
		return
	}

	if required&^supportedTrackingCaps != 0 {
		h.setError(errUnsupportedCapsMessage)
		result.WriteUint8(0)
		return
	}
	h.tracking.Store(uint64(supported)<<32 | uint64(required))
	result.WriteUint8(1)
}

func (a *hmdAdapter) resetTracking(args, _ *bitstream.BitStream, _ *transport.ReceivePayload) {
	if h, ok := a.lookup(args); ok {
		h.resets.Add(1)
	}
}

// --------------------------------------------------------------------------
// Latency Tester
// --------------------------------------------------------------------------

// latencyProcessInputs cycles the test color with the start time
func (a *hmdAdapter) latencyProcessInputs(args, result *bitstream.BitStream, _ *transport.ReceivePayload) {
	start, err := args.ReadFloat64()
	if err != nil {
		return
	}
	phase := uint8(int64(math.Floor(start*10)) % 256)
	result.WriteUint8(phase)
	result.WriteUint8(255 - phase)
	result.WriteUint8(128)

	msg := fmt.Sprintf("last test started at %.3fs", start)
	a.latencyResult.Store(&msg)
}

func (a *hmdAdapter) latencyResults(_, result *bitstream.BitStream, _ *transport.ReceivePayload) {
	msg := "no test run"
	if p := a.latencyResult.Load(); p != nil {
		msg = *p
	}
	result.WriteString(msg)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// lookup reads the HMD id and returns its state
func (a *hmdAdapter) lookup(args *bitstream.BitStream) (*hmdState, bool) {
	id, err := args.ReadInt32()
	if err != nil {
		return nil, false
	}
	return a.hmds.Load(id)
}

func boolToInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// simulatedHMDInfo describes a DK2 class device
func simulatedHMDInfo(index int32, compat bool) common.HMDInfo {
	return common.HMDInfo{
		ProductName:            "Simulated HMD",
		Manufacturer:           "hmdlink",
		Version:                1,
		HmdType:                common.HmdTypeDK2,
		ResolutionInPixels:     common.Sizei{W: 1920, H: 1080},
		ShimInfo:               common.ShimInfo{DeviceNumber: index, NativeWidth: 1080, NativeHeight: 1920, Rotation: 90},
		ScreenSizeInMeters:     common.Sizef{W: 0.12576, H: 0.07074},
		ScreenGapSizeInMeters:  0,
		CenterFromTopInMeters:  0.03537,
		LensSeparationInMeters: 0.0635,
		Shutter: common.ShutterInfo{
			Type:                        common.ShutterRollingRightToLeft,
			VsyncToNextVsync:            1.0 / 75,
			VsyncToFirstScanline:        0.000052,
			FirstScanlineToLastScanline: 0.016580,
			PixelSettleTime:             0.0,
			PixelPersistence:            0.0026,
		},
		DisplayDeviceName:          fmt.Sprintf("\\\\.\\DISPLAY%d", index+1),
		DisplayId:                  index,
		PrintedSerial:              fmt.Sprintf("SIM%07d", index),
		InCompatibilityMode:        compat,
		VendorId:                   0x2833,
		ProductId:                  0x0021,
		CameraFrustumFarZInMeters:  2.5,
		CameraFrustumHFovInRadians: 1.292,
		CameraFrustumNearZInMeters: 0.4,
		CameraFrustumVFovInRadians: 0.942,
		FirmwareMajor:              2,
		FirmwareMinor:              12,
	}
}
