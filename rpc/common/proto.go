package common

// --------------------------------------------------------------------------
// Protocol Version
// --------------------------------------------------------------------------

// The protocol follows semantic versioning:
//
//	1.0.0 - initial version
//	1.1.0 - Get/SetDriverMode_1, HMDCountUpdate_1, version mismatch results
const (
	RPCVersionMajor uint16 = 1 // incompatible API changes
	RPCVersionMinor uint16 = 1 // backwards-compatible additions
	RPCVersionPatch uint16 = 0 // backwards-compatible fixes
)

// ServicePort is the well-known port the service listens on. Only the
// IPv6 loopback interface is ever bound.
const (
	ServicePort     = 30322
	LoopbackAddress = "::1"
)

// --------------------------------------------------------------------------
// Message IDs
// --------------------------------------------------------------------------

// MessageID is the first byte of every message and selects the plugin
// that consumes it.
type MessageID byte

const (
	MsgIDRPC1 MessageID = 0x11 // RPC1 dispatch tag
)

// RPCSubType is the second byte of every RPC1 message
type RPCSubType byte

const (
	RPCSignal                RPCSubType = 0
	RPCCallBlocking          RPCSubType = 1
	RPCFunctionNotRegistered RPCSubType = 2
	RPCReturn                RPCSubType = 3
	rpcSubTypeCount                     = 4
)

func (t RPCSubType) Valid() bool {
	return t < rpcSubTypeCount
}

func (t RPCSubType) String() string {
	switch t {
	case RPCSignal:
		return "Signal"
	case RPCCallBlocking:
		return "CallBlocking"
	case RPCFunctionNotRegistered:
		return "FunctionNotRegistered"
	case RPCReturn:
		return "Return"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Call Identifiers
// --------------------------------------------------------------------------

// Blocking calls and signals sent by the client. All identifiers carry a
// version suffix so an older peer answers with FunctionNotRegistered.
const (
	CallGetStringValue              = "GetStringValue_1"
	CallGetBoolValue                = "GetBoolValue_1"
	CallGetIntValue                 = "GetIntValue_1"
	CallGetNumberValue              = "GetNumberValue_1"
	CallGetNumberValues             = "GetNumberValues_1"
	CallSetStringValue              = "SetStringValue_1"
	CallSetBoolValue                = "SetBoolValue_1"
	CallSetIntValue                 = "SetIntValue_1"
	CallSetNumberValue              = "SetNumberValue_1"
	CallSetNumberValues             = "SetNumberValues_1"
	CallHmdDetect                   = "Hmd_Detect_1"
	CallHmdCreate                   = "Hmd_Create_1"
	CallGetDriverMode               = "GetDriverMode_1"
	CallSetDriverMode               = "SetDriverMode_1"
	CallHmdAttachToWindow           = "Hmd_AttachToWindow_1"
	CallHmdRelease                  = "Hmd_Release_1"
	CallHmdGetLastError             = "Hmd_GetLastError_1"
	CallHmdGetHmdInfo               = "Hmd_GetHmdInfo_1"
	CallHmdGetEnabledCaps           = "Hmd_GetEnabledCaps_1"
	CallHmdSetEnabledCaps           = "Hmd_SetEnabledCaps_1"
	CallHmdConfigureTracking        = "Hmd_ConfigureTracking_1"
	CallHmdResetTracking            = "Hmd_ResetTracking_1"
	CallLatencyUtilProcessInputs    = "LatencyUtil_ProcessInputs_1"
	CallLatencyUtilGetResultsString = "LatencyUtil_GetResultsString_1"
	CallShutdown                    = "Shutdown_1"
)

// Push notifications sent by the service
const (
	PushInitialServerState     = "InitialServerState_1"
	PushLatencyTesterAvailable = "LatencyTesterAvailable_1"
	PushHMDCountUpdate         = "HMDCountUpdate_1"
)

// --------------------------------------------------------------------------
// Domain Types
// --------------------------------------------------------------------------

// VirtualHmdId identifies an HMD instance created by the service
type VirtualHmdId = int32

const InvalidVirtualHmdId VirtualHmdId = -1
