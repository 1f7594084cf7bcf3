package common

import (
	"fmt"
	"github.com/ValentinKolb/hmdlink/rpc/bitstream"
)

// --------------------------------------------------------------------------
// HMD Network Info
// --------------------------------------------------------------------------

// HMDNetworkInfo is returned by Hmd_Create_1 and tells the client which
// virtual HMD it owns and where the service publishes its tracking state.
type HMDNetworkInfo struct {
	NetId            VirtualHmdId
	SharedMemoryName string
}

func (n *HMDNetworkInfo) Serialize(bs *bitstream.BitStream) {
	bs.WriteInt32(n.NetId)
	bs.WriteString(n.SharedMemoryName)
}

func (n *HMDNetworkInfo) Deserialize(bs *bitstream.BitStream) error {
	var err error
	if n.NetId, err = bs.ReadInt32(); err != nil {
		return fmt.Errorf("net id: %w", err)
	}
	if n.SharedMemoryName, err = bs.ReadString(); err != nil {
		return fmt.Errorf("shared memory name: %w", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// HMD Info
// --------------------------------------------------------------------------

type HmdType int32

const (
	HmdTypeNone HmdType = iota
	HmdTypeDKProto
	HmdTypeDK1
	HmdTypeDKHDProto
	HmdTypeDKHD2Proto
	HmdTypeDKHDProto566Mi
	HmdTypeCrystalCoveProto
	HmdTypeDK2
	HmdTypeUnknown
)

type ShutterType int32

const (
	ShutterGlobal ShutterType = iota
	ShutterRollingTopToBottom
	ShutterRollingLeftToRight
	ShutterRollingRightToLeft
)

type Sizei struct {
	W, H int32
}

type Sizef struct {
	W, H float32
}

// ShimInfo describes the display as seen by the display driver shim
type ShimInfo struct {
	DeviceNumber int32
	NativeWidth  int32
	NativeHeight int32
	Rotation     int32
}

// ShutterInfo holds display timing, all times in seconds
type ShutterInfo struct {
	Type                        ShutterType
	VsyncToNextVsync            float32
	VsyncToFirstScanline        float32
	FirstScanlineToLastScanline float32
	PixelSettleTime             float32
	PixelPersistence            float32
}

// HMDInfo describes one head mounted display as reported by Hmd_GetHmdInfo_1
type HMDInfo struct {
	ProductName  string
	Manufacturer string
	Version      int32
	HmdType      HmdType

	ResolutionInPixels Sizei
	ShimInfo           ShimInfo

	ScreenSizeInMeters     Sizef
	ScreenGapSizeInMeters  float32
	CenterFromTopInMeters  float32
	LensSeparationInMeters float32

	DesktopX int32
	DesktopY int32

	Shutter ShutterInfo

	DisplayDeviceName   string
	DisplayId           int32
	PrintedSerial       string
	InCompatibilityMode bool

	VendorId  int32
	ProductId int32

	CameraFrustumFarZInMeters  float32
	CameraFrustumHFovInRadians float32
	CameraFrustumNearZInMeters float32
	CameraFrustumVFovInRadians float32

	FirmwareMajor int32
	FirmwareMinor int32
}

// Serialize writes the HMD description in wire order
func (h *HMDInfo) Serialize(bs *bitstream.BitStream) {
	bs.WriteString(h.ProductName)
	bs.WriteString(h.Manufacturer)
	bs.WriteInt32(h.Version)
	bs.WriteInt32(int32(h.HmdType))

	bs.WriteInt32(h.ResolutionInPixels.W)
	bs.WriteInt32(h.ResolutionInPixels.H)

	bs.WriteInt32(h.ShimInfo.DeviceNumber)
	bs.WriteInt32(h.ShimInfo.NativeWidth)
	bs.WriteInt32(h.ShimInfo.NativeHeight)
	bs.WriteInt32(h.ShimInfo.Rotation)

	bs.WriteFloat32(h.ScreenSizeInMeters.W)
	bs.WriteFloat32(h.ScreenSizeInMeters.H)
	bs.WriteFloat32(h.ScreenGapSizeInMeters)
	bs.WriteFloat32(h.CenterFromTopInMeters)
	bs.WriteFloat32(h.LensSeparationInMeters)

	bs.WriteInt32(h.DesktopX)
	bs.WriteInt32(h.DesktopY)

	bs.WriteInt32(int32(h.Shutter.Type))
	bs.WriteFloat32(h.Shutter.VsyncToNextVsync)
	bs.WriteFloat32(h.Shutter.VsyncToFirstScanline)
	bs.WriteFloat32(h.Shutter.FirstScanlineToLastScanline)
	bs.WriteFloat32(h.Shutter.PixelSettleTime)
	bs.WriteFloat32(h.Shutter.PixelPersistence)

	bs.WriteString(h.DisplayDeviceName)
	bs.WriteInt32(h.DisplayId)
	bs.WriteString(h.PrintedSerial)

	var compat uint8
	if h.InCompatibilityMode {
		compat = 1
	}
	bs.WriteUint8(compat)

	bs.WriteInt32(h.VendorId)
	bs.WriteInt32(h.ProductId)

	bs.WriteFloat32(h.CameraFrustumFarZInMeters)
	bs.WriteFloat32(h.CameraFrustumHFovInRadians)
	bs.WriteFloat32(h.CameraFrustumNearZInMeters)
	bs.WriteFloat32(h.CameraFrustumVFovInRadians)

	bs.WriteInt32(h.FirmwareMajor)
	bs.WriteInt32(h.FirmwareMinor)
}

// hmdInfoReader reads fields in sequence and remembers the first error
type hmdInfoReader struct {
	bs  *bitstream.BitStream
	err error
}

func (r *hmdInfoReader) str(dst *string) {
	if r.err == nil {
		*dst, r.err = r.bs.ReadString()
	}
}

func (r *hmdInfoReader) i32(dst *int32) {
	if r.err == nil {
		*dst, r.err = r.bs.ReadInt32()
	}
}

func (r *hmdInfoReader) f32(dst *float32) {
	if r.err == nil {
		*dst, r.err = r.bs.ReadFloat32()
	}
}

// Deserialize reads an HMD description. An empty or truncated reply means
// that the service has no such HMD and yields an error.
func (h *HMDInfo) Deserialize(bs *bitstream.BitStream) error {
	r := &hmdInfoReader{bs: bs}
	var hmdType, shutterType int32
	var compat uint8

	r.str(&h.ProductName)
	r.str(&h.Manufacturer)
	r.i32(&h.Version)
	r.i32(&hmdType)

	r.i32(&h.ResolutionInPixels.W)
	r.i32(&h.ResolutionInPixels.H)

	r.i32(&h.ShimInfo.DeviceNumber)
	r.i32(&h.ShimInfo.NativeWidth)
	r.i32(&h.ShimInfo.NativeHeight)
	r.i32(&h.ShimInfo.Rotation)

	r.f32(&h.ScreenSizeInMeters.W)
	r.f32(&h.ScreenSizeInMeters.H)
	r.f32(&h.ScreenGapSizeInMeters)
	r.f32(&h.CenterFromTopInMeters)
	r.f32(&h.LensSeparationInMeters)

	r.i32(&h.DesktopX)
	r.i32(&h.DesktopY)

	r.i32(&shutterType)
	r.f32(&h.Shutter.VsyncToNextVsync)
	r.f32(&h.Shutter.VsyncToFirstScanline)
	r.f32(&h.Shutter.FirstScanlineToLastScanline)
	r.f32(&h.Shutter.PixelSettleTime)
	r.f32(&h.Shutter.PixelPersistence)

	r.str(&h.DisplayDeviceName)
	r.i32(&h.DisplayId)
	r.str(&h.PrintedSerial)
	if r.err == nil {
		compat, r.err = bs.ReadUint8()
	}

	r.i32(&h.VendorId)
	r.i32(&h.ProductId)

	r.f32(&h.CameraFrustumFarZInMeters)
	r.f32(&h.CameraFrustumHFovInRadians)
	r.f32(&h.CameraFrustumNearZInMeters)
	r.f32(&h.CameraFrustumVFovInRadians)

	r.i32(&h.FirmwareMajor)
	r.i32(&h.FirmwareMinor)

	if r.err != nil {
		return fmt.Errorf("hmd info: %w", r.err)
	}
	h.HmdType = HmdType(hmdType)
	h.Shutter.Type = ShutterType(shutterType)
	h.InCompatibilityMode = compat != 0
	return nil
}
