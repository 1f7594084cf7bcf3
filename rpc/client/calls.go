package client

import (
	"github.com/ValentinKolb/hmdlink/rpc/bitstream"
	"github.com/ValentinKolb/hmdlink/rpc/common"
	"os"
)

// DriverMode describes the display driver state reported by the service
type DriverMode struct {
	DriverInstalled bool
	CompatMode      bool
	HideDK1Mode     bool
}

// --------------------------------------------------------------------------
// Profile Values
// --------------------------------------------------------------------------

// GetStringValue returns the profile string key, defaultVal if the service
// can not answer
func (c *NetClient) GetStringValue(hmd common.VirtualHmdId, key string, defaultVal string) string {
	if !c.IsConnected(true, true) {
		return defaultVal
	}

	args := keyArgs(hmd, key)
	args.WriteString(defaultVal)

	result, ok := c.call(common.CallGetStringValue, args)
	if !ok {
		return defaultVal
	}
	v, err := result.ReadString()
	if err != nil {
		return defaultVal
	}
	return v
}

func (c *NetClient) GetBoolValue(hmd common.VirtualHmdId, key string, defaultVal bool) bool {
	if !c.IsConnected(true, true) {
		return defaultVal
	}

	args := keyArgs(hmd, key)
	args.WriteBool(defaultVal)

	result, ok := c.call(common.CallGetBoolValue, args)
	if !ok {
		return defaultVal
	}
	v, err := result.ReadUint8()
	if err != nil {
		return defaultVal
	}
	return v != 0
}

func (c *NetClient) GetIntValue(hmd common.VirtualHmdId, key string, defaultVal int) int {
	if !c.IsConnected(true, true) {
		return defaultVal
	}

	args := keyArgs(hmd, key)
	args.WriteInt32(int32(defaultVal))

	result, ok := c.call(common.CallGetIntValue, args)
	if !ok {
		return defaultVal
	}
	v, err := result.ReadInt32()
	if err != nil {
		return defaultVal
	}
	return int(v)
}

func (c *NetClient) GetNumberValue(hmd common.VirtualHmdId, key string, defaultVal float64) float64 {
	if !c.IsConnected(true, true) {
		return defaultVal
	}

	args := keyArgs(hmd, key)
	args.WriteFloat64(defaultVal)

	result, ok := c.call(common.CallGetNumberValue, args)
	if !ok {
		return defaultVal
	}
	v, err := result.ReadFloat64()
	if err != nil {
		return defaultVal
	}
	return v
}

// GetNumberValues fills values with the profile array key and returns the
// number of entries written. The service never writes more than len(values).
func (c *NetClient) GetNumberValues(hmd common.VirtualHmdId, key string, values []float64) int {
	if !c.IsConnected(true, true) {
		return 0
	}

	args := keyArgs(hmd, key)
	args.WriteInt32(int32(len(values)))

	result, ok := c.call(common.CallGetNumberValues, args)
	if !ok {
		return 0
	}
	count, err := result.ReadInt32()
	if err != nil {
		return 0
	}
	n := min(max(int(count), 0), len(values))

	for i := 0; i < n; i++ {
		v, err := result.ReadFloat64()
		if err != nil {
			return i
		}
		values[i] = v
	}
	return n
}

func (c *NetClient) SetStringValue(hmd common.VirtualHmdId, key string, val string) bool {
	if !c.IsConnected(true, true) {
		return false
	}
	args := keyArgs(hmd, key)
	args.WriteString(val)
	return c.signal(common.CallSetStringValue, args)
}

func (c *NetClient) SetBoolValue(hmd common.VirtualHmdId, key string, val bool) bool {
	if !c.IsConnected(true, true) {
		return false
	}
	args := keyArgs(hmd, key)
	var b uint8
	if val {
		b = 1
	}
	args.WriteUint8(b)
	return c.signal(common.CallSetBoolValue, args)
}

func (c *NetClient) SetIntValue(hmd common.VirtualHmdId, key string, val int) bool {
	if !c.IsConnected(true, true) {
		return false
	}
	args := keyArgs(hmd, key)
	args.WriteInt32(int32(val))
	return c.signal(common.CallSetIntValue, args)
}

func (c *NetClient) SetNumberValue(hmd common.VirtualHmdId, key string, val float64) bool {
	if !c.IsConnected(true, true) {
		return false
	}
	args := keyArgs(hmd, key)
	args.WriteFloat64(val)
	return c.signal(common.CallSetNumberValue, args)
}

func (c *NetClient) SetNumberValues(hmd common.VirtualHmdId, key string, vals []float64) bool {
	if !c.IsConnected(true, true) {
		return false
	}
	args := keyArgs(hmd, key)
	args.WriteInt32(int32(len(vals)))
	for _, v := range vals {
		args.WriteFloat64(v)
	}
	return c.signal(common.CallSetNumberValues, args)
}

// --------------------------------------------------------------------------
// HMD Management
// --------------------------------------------------------------------------

// HmdDetect returns the number of HMDs known to the service. After the
// first answer or an HMDCountUpdate push the count is served from cache
// until the connection changes.
func (c *NetClient) HmdDetect() int {
	if !c.IsConnected(true, false) {
		return 0
	}

	if c.edgeTriggeredHMDCount.Load() {
		return int(c.hmdCount.Load())
	}

	result, ok := c.call(common.CallHmdDetect, bitstream.New())
	if !ok {
		return 0
	}
	n, err := result.ReadInt32()
	if err != nil {
		return 0
	}
	c.hmdCount.Store(n)
	c.edgeTriggeredHMDCount.Store(true)
	return int(n)
}

// HmdCreate asks the service to create the HMD at index for this process
func (c *NetClient) HmdCreate(index int) (common.HMDNetworkInfo, bool) {
	var info common.HMDNetworkInfo
	if !c.IsConnected(true, true) {
		return info, false
	}

	args := bitstream.New()
	args.WriteInt32(int32(index))
	args.WriteInt32(int32(os.Getpid()))

	result, ok := c.call(common.CallHmdCreate, args)
	if !ok {
		return info, false
	}
	if err := info.Deserialize(result); err != nil {
		Logger.Debugf("Malformed Hmd_Create reply: %v", err)
		return common.HMDNetworkInfo{}, false
	}
	return info, true
}

func (c *NetClient) GetDriverMode() (DriverMode, bool) {
	var mode DriverMode
	if !c.IsConnected(true, true) {
		return mode, false
	}

	result, ok := c.call(common.CallGetDriverMode, hmdArgs(common.InvalidVirtualHmdId))
	if !ok {
		return mode, false
	}

	var fields [3]int32
	for i := range fields {
		v, err := result.ReadInt32()
		if err != nil {
			return DriverMode{}, false
		}
		fields[i] = v
	}
	mode.DriverInstalled = fields[0] != 0
	mode.CompatMode = fields[1] != 0
	mode.HideDK1Mode = fields[2] != 0
	return mode, true
}

func (c *NetClient) SetDriverMode(compatMode, hideDK1Mode bool) bool {
	if !c.IsConnected(true, true) {
		return false
	}

	args := hmdArgs(common.InvalidVirtualHmdId)
	args.WriteInt32(boolToInt32(compatMode))
	args.WriteInt32(boolToInt32(hideDK1Mode))

	result, ok := c.call(common.CallSetDriverMode, args)
	if !ok {
		return false
	}
	v, err := result.ReadInt32()
	return err == nil && v != 0
}

// HmdAttachToWindow passes a native window handle to the service
func (c *NetClient) HmdAttachToWindow(hmd common.VirtualHmdId, window uint64) bool {
	if !c.IsConnected(false, false) {
		return false
	}

	args := hmdArgs(hmd)
	args.WriteUint64(window)

	_, ok := c.call(common.CallHmdAttachToWindow, args)
	return ok
}

func (c *NetClient) HmdRelease(hmd common.VirtualHmdId) {
	if !c.IsConnected(false, false) {
		return
	}
	c.call(common.CallHmdRelease, hmdArgs(hmd))
}

// SetLastError replaces the locally cached error string
func (c *NetClient) SetLastError(msg string) {
	c.lastErrorMu.Lock()
	c.lastError = msg
	c.lastErrorMu.Unlock()
}

// HmdGetLastError returns the last error of hmd. Without a valid HMD or a
// connection the locally cached error is returned.
func (c *NetClient) HmdGetLastError(hmd common.VirtualHmdId) string {
	if hmd == common.InvalidVirtualHmdId || !c.IsConnected(false, false) {
		return c.cachedLastError()
	}

	result, ok := c.call(common.CallHmdGetLastError, hmdArgs(hmd))
	if !ok {
		return c.cachedLastError()
	}
	msg, err := result.ReadString()
	if err != nil {
		return c.cachedLastError()
	}
	c.SetLastError(msg)
	return msg
}

func (c *NetClient) cachedLastError() string {
	c.lastErrorMu.Lock()
	defer c.lastErrorMu.Unlock()
	return c.lastError
}

// HmdGetHmdInfo returns the device description of hmd
func (c *NetClient) HmdGetHmdInfo(hmd common.VirtualHmdId) (common.HMDInfo, bool) {
	var info common.HMDInfo
	if !c.IsConnected(false, false) {
		return info, false
	}

	result, ok := c.call(common.CallHmdGetHmdInfo, hmdArgs(hmd))
	if !ok {
		return info, false
	}
	if err := info.Deserialize(result); err != nil {
		Logger.Debugf("Malformed Hmd_GetHmdInfo reply: %v", err)
		return common.HMDInfo{}, false
	}
	return info, true
}

func (c *NetClient) HmdGetEnabledCaps(hmd common.VirtualHmdId) uint32 {
	if !c.IsConnected(false, false) {
		return 0
	}

	result, ok := c.call(common.CallHmdGetEnabledCaps, hmdArgs(hmd))
	if !ok {
		return 0
	}
	caps, _ := result.ReadUint32()
	return caps
}

// HmdSetEnabledCaps updates the caps of hmd and returns the caps in effect
func (c *NetClient) HmdSetEnabledCaps(hmd common.VirtualHmdId, caps uint32) uint32 {
	if !c.IsConnected(false, false) {
		return 0
	}

	args := hmdArgs(hmd)
	args.WriteUint32(caps)

	result, ok := c.call(common.CallHmdSetEnabledCaps, args)
	if !ok {
		return 0
	}
	caps, _ = result.ReadUint32()
	return caps
}

// --------------------------------------------------------------------------
// Tracking
// --------------------------------------------------------------------------

func (c *NetClient) HmdConfigureTracking(hmd common.VirtualHmdId, supportedCaps, requiredCaps uint32) bool {
	if !c.IsConnected(false, false) {
		return false
	}

	args := hmdArgs(hmd)
	args.WriteUint32(supportedCaps)
	args.WriteUint32(requiredCaps)

	result, ok := c.call(common.CallHmdConfigureTracking, args)
	if !ok {
		return false
	}
	b, err := result.ReadUint8()
	return err == nil && b != 0
}

func (c *NetClient) HmdResetTracking(hmd common.VirtualHmdId) {
	if !c.IsConnected(false, false) {
		return
	}
	c.call(common.CallHmdResetTracking, hmdArgs(hmd))
}

// --------------------------------------------------------------------------
// Latency Tester
// --------------------------------------------------------------------------

// LatencyUtilProcessInputs drives the latency test and returns the color
// to display. It fails if the service has no latency tester.
func (c *NetClient) LatencyUtilProcessInputs(startTestSeconds float64) ([3]uint8, bool) {
	var rgb [3]uint8
	if !c.IsConnected(false, false) || !c.latencyTesterAvailable.Load() {
		return rgb, false
	}

	args := bitstream.New()
	args.WriteFloat64(startTestSeconds)

	result, ok := c.call(common.CallLatencyUtilProcessInputs, args)
	if !ok {
		return rgb, false
	}
	for i := range rgb {
		v, err := result.ReadUint8()
		if err != nil {
			return [3]uint8{}, false
		}
		rgb[i] = v
	}
	return rgb, true
}

// LatencyUtilGetResultsString returns the latest latency test results
func (c *NetClient) LatencyUtilGetResultsString() (string, bool) {
	if !c.IsConnected(false, false) {
		return "", false
	}

	result, ok := c.call(common.CallLatencyUtilGetResultsString, bitstream.New())
	if !ok {
		return "", false
	}
	s, err := result.ReadString()
	if err != nil {
		return "", false
	}
	return s, true
}

// --------------------------------------------------------------------------
// Service Control
// --------------------------------------------------------------------------

// ShutdownServer asks the service to exit. The service may ignore it.
func (c *NetClient) ShutdownServer() bool {
	if !c.IsConnected(false, false) {
		return false
	}
	return c.rpc.BroadcastSignal(common.CallShutdown, bitstream.New())
}

func boolToInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
