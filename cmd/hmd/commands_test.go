package hmd

import (
	"github.com/ValentinKolb/hmdlink/rpc/common"
	"strings"
	"testing"
)

func TestFormatInfo(t *testing.T) {
	netInfo := common.HMDNetworkInfo{NetId: 3, SharedMemoryName: "hmdlink_hmd_1_3"}
	info := common.HMDInfo{
		ProductName:        "Rift DK2",
		ResolutionInPixels: common.Sizei{W: 1920, H: 1080},
		FirmwareMajor:      2,
		FirmwareMinor:      12,
	}

	out := formatInfo(netInfo, info, 0x70)

	for _, want := range []string{"HMD\n", "DISPLAY\n", "hmdlink_hmd_1_3", "Rift DK2", "1920x1080", "2.12", "0x70"} {
		if !strings.Contains(out, want) {
			t.Errorf("formatInfo output is missing %q:\n%s", want, out)
		}
	}
}
