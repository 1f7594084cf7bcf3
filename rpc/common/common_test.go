package common

import (
	"github.com/ValentinKolb/hmdlink/rpc/bitstream"
	"reflect"
	"strings"
	"testing"
	"time"
)

// TestHelloValidate checks the version policy of the service
func TestHelloValidate(t *testing.T) {
	testCases := []struct {
		name  string
		hello Hello
		want  bool
	}{
		{"same version", Hello{HelloString, LocalProtocolVersion()}, true},
		{"case insensitive", Hello{strings.ToLower(HelloString), LocalProtocolVersion()}, true},
		{"older minor", Hello{HelloString, ProtocolVersion{RPCVersionMajor, 0, 7}}, true},
		{"newer minor", Hello{HelloString, ProtocolVersion{RPCVersionMajor, RPCVersionMinor + 1, 0}}, false},
		{"other major", Hello{HelloString, ProtocolVersion{RPCVersionMajor + 1, 0, 0}}, false},
		{"wrong string", Hello{"Hello", LocalProtocolVersion()}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			bs := bitstream.New()
			tc.hello.Serialize(bs)

			var got Hello
			if err := got.Deserialize(bs); err != nil {
				t.Fatalf("Failed to deserialize hello: %v", err)
			}
			if got != tc.hello {
				t.Errorf("Hello doesn't match after round trip: %+v != %+v", got, tc.hello)
			}
			if got.Validate() != tc.want {
				t.Errorf("Expected Validate() = %v for %+v", tc.want, got)
			}
		})
	}
}

// TestAuthorization checks accepted and rejected authorizations
func TestAuthorization(t *testing.T) {
	bs := bitstream.New()
	GenerateAuthorization(bs, "")
	var auth Authorization
	if err := auth.Deserialize(bs); err != nil {
		t.Fatal(err)
	}
	if !auth.Validate() || auth.Version != LocalProtocolVersion() {
		t.Errorf("Expected valid authorization, got %+v", auth)
	}

	bs.Reset()
	GenerateAuthorization(bs, IncompatibleVersionError)
	if err := auth.Deserialize(bs); err != nil {
		t.Fatal(err)
	}
	if auth.Validate() {
		t.Errorf("Expected rejected authorization")
	}
	if auth.AuthString != IncompatibleVersionError {
		t.Errorf("Expected error text to be transmitted, got %q", auth.AuthString)
	}

	// truncated authorization
	short := bitstream.New()
	short.WriteString(AuthorizedString)
	if err := auth.Deserialize(short); err == nil {
		t.Errorf("Expected error for truncated authorization")
	}
}

// TestHMDInfoRoundTrip checks the field order of the HMD description
func TestHMDInfoRoundTrip(t *testing.T) {
	info := HMDInfo{
		ProductName:            "Oculus Rift DK2",
		Manufacturer:           "Oculus VR",
		Version:                2,
		HmdType:                HmdTypeDK2,
		ResolutionInPixels:     Sizei{1920, 1080},
		ShimInfo:               ShimInfo{DeviceNumber: 1, NativeWidth: 1080, NativeHeight: 1920, Rotation: 90},
		ScreenSizeInMeters:     Sizef{0.12576, 0.07074},
		ScreenGapSizeInMeters:  0,
		CenterFromTopInMeters:  0.03537,
		LensSeparationInMeters: 0.0635,
		DesktopX:               1920,
		DesktopY:               -1,
		Shutter: ShutterInfo{
			Type:                        ShutterRollingRightToLeft,
			VsyncToNextVsync:            1.0 / 76,
			VsyncToFirstScanline:        0.000052,
			FirstScanlineToLastScanline: 0.0131,
			PixelSettleTime:             0.0001,
			PixelPersistence:            0.0018,
		},
		DisplayDeviceName:          `\\.\DISPLAY2`,
		DisplayId:                  3,
		PrintedSerial:              "DK2-000123",
		InCompatibilityMode:        true,
		VendorId:                   0x2833,
		ProductId:                  0x0021,
		CameraFrustumFarZInMeters:  2.5,
		CameraFrustumHFovInRadians: 1.29,
		CameraFrustumNearZInMeters: 0.4,
		CameraFrustumVFovInRadians: 0.94,
		FirmwareMajor:              2,
		FirmwareMinor:              12,
	}

	bs := bitstream.New()
	info.Serialize(bs)

	var got HMDInfo
	if err := got.Deserialize(bs); err != nil {
		t.Fatalf("Failed to deserialize: %v", err)
	}
	if !reflect.DeepEqual(info, got) {
		t.Errorf("HMDInfo doesn't match after round trip:\nOriginal: %+v\nResult: %+v", info, got)
	}

	// an empty reply means no hmd
	if err := got.Deserialize(bitstream.New()); err == nil {
		t.Errorf("Expected error for empty reply")
	}
}

// TestHMDNetworkInfo checks the Hmd_Create_1 reply codec
func TestHMDNetworkInfo(t *testing.T) {
	in := HMDNetworkInfo{NetId: 4, SharedMemoryName: "OVR_HMD_4"}
	bs := bitstream.New()
	in.Serialize(bs)

	var out HMDNetworkInfo
	if err := out.Deserialize(bs); err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Errorf("Expected %+v, got %+v", in, out)
	}
	if err := out.Deserialize(bs); err == nil {
		t.Errorf("Expected error on exhausted stream")
	}
}

// TestServiceProperties checks the key filter
func TestServiceProperties(t *testing.T) {
	testCases := []struct {
		accessor GetterSetter
		key      string
		want     bool
	}{
		{EGetStringValue, "CameraSerial", true},
		{EGetStringValue, "CenterPupilDepth", false},
		{EGetBoolValue, "ReleaseDK2Sensors", true},
		{EGetIntValue, "anything", false},
		{EGetIntValue, "server:anything", true},
		{ESetNumberValues, "NeckModelVector3f", true},
		{ENumTypes, "CameraSerial", false},
		{GetterSetter(-1), "server:x", true},
	}

	for _, tc := range testCases {
		if got := IsServiceProperty(tc.accessor, tc.key); got != tc.want {
			t.Errorf("IsServiceProperty(%d, %q) = %v, expected %v", tc.accessor, tc.key, got, tc.want)
		}
	}

	if got := FilterKeyPrefix("server:EyeHeight"); got != "EyeHeight" {
		t.Errorf("Expected prefix to be stripped, got %q", got)
	}
	if got := FilterKeyPrefix("EyeHeight"); got != "EyeHeight" {
		t.Errorf("Expected key to be unchanged, got %q", got)
	}
}

// TestConfigDefaults checks the fallbacks of the client configuration
func TestConfigDefaults(t *testing.T) {
	var c ClientConfig
	if c.ConnectTimeout() != DefaultConnectTimeoutMs*time.Millisecond {
		t.Errorf("Unexpected default connect timeout %v", c.ConnectTimeout())
	}
	if c.PollInterval() != DefaultPollIntervalMs*time.Millisecond {
		t.Errorf("Unexpected default poll interval %v", c.PollInterval())
	}

	d := DefaultClientConfig()
	if d.Address() != "[::1]:30322" {
		t.Errorf("Unexpected address %s", d.Address())
	}
	if !strings.Contains(d.String(), "[::1]:30322") {
		t.Errorf("Expected endpoint in String()")
	}

	s := DefaultServerConfig()
	if !strings.Contains(s.String(), "(in memory)") {
		t.Errorf("Expected in-memory storage in String()")
	}

	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Errorf("Expected error for unknown log level")
	}
}
