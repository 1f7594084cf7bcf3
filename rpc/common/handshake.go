package common

import (
	"fmt"
	"github.com/ValentinKolb/hmdlink/rpc/bitstream"
	"strings"
)

// --------------------------------------------------------------------------
// Connection Handshake
// --------------------------------------------------------------------------

const (
	HelloString      = "OculusVR_Hello"
	AuthorizedString = "OculusVR_Authorized"

	// IncompatibleVersionError is sent back to a client whose hello was rejected
	IncompatibleVersionError = "Incompatible protocol version. Please make sure the service and the client are both up to date."
)

// ProtocolVersion is a semantic version as exchanged during the handshake
type ProtocolVersion struct {
	Major, Minor, Patch uint16
}

// LocalProtocolVersion returns the version implemented by this build
func LocalProtocolVersion() ProtocolVersion {
	return ProtocolVersion{RPCVersionMajor, RPCVersionMinor, RPCVersionPatch}
}

func (v ProtocolVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

func (v ProtocolVersion) serialize(bs *bitstream.BitStream) {
	bs.WriteUint16(v.Major)
	bs.WriteUint16(v.Minor)
	bs.WriteUint16(v.Patch)
}

func (v *ProtocolVersion) deserialize(bs *bitstream.BitStream) (err error) {
	if v.Major, err = bs.ReadUint16(); err != nil {
		return err
	}
	if v.Minor, err = bs.ReadUint16(); err != nil {
		return err
	}
	v.Patch, err = bs.ReadUint16()
	return err
}

// Hello is the first message a client sends after the socket connected
type Hello struct {
	HelloString string
	Version     ProtocolVersion
}

// GenerateHello writes the hello of this build to bs
func GenerateHello(bs *bitstream.BitStream) {
	h := Hello{HelloString: HelloString, Version: LocalProtocolVersion()}
	h.Serialize(bs)
}

func (h *Hello) Serialize(bs *bitstream.BitStream) {
	bs.WriteString(h.HelloString)
	h.Version.serialize(bs)
}

func (h *Hello) Deserialize(bs *bitstream.BitStream) error {
	var err error
	if h.HelloString, err = bs.ReadString(); err != nil {
		return fmt.Errorf("hello string: %w", err)
	}
	if err = h.Version.deserialize(bs); err != nil {
		return fmt.Errorf("hello version: %w", err)
	}
	return nil
}

// Validate accepts clients with the same major and an equal or older minor version
func (h *Hello) Validate() bool {
	return h.Version.Major == RPCVersionMajor &&
		h.Version.Minor <= RPCVersionMinor &&
		strings.EqualFold(h.HelloString, HelloString)
}

// Authorization is the service's answer to a Hello
type Authorization struct {
	AuthString string
	Version    ProtocolVersion
}

// GenerateAuthorization writes an authorization to bs. A non-empty errorString
// rejects the client and is transmitted in place of the authorized string.
func GenerateAuthorization(bs *bitstream.BitStream, errorString string) {
	a := Authorization{AuthString: AuthorizedString, Version: LocalProtocolVersion()}
	if errorString != "" {
		a.AuthString = errorString
	}
	a.Serialize(bs)
}

func (a *Authorization) Serialize(bs *bitstream.BitStream) {
	bs.WriteString(a.AuthString)
	a.Version.serialize(bs)
}

func (a *Authorization) Deserialize(bs *bitstream.BitStream) error {
	var err error
	if a.AuthString, err = bs.ReadString(); err != nil {
		return fmt.Errorf("authorization string: %w", err)
	}
	if err = a.Version.deserialize(bs); err != nil {
		return fmt.Errorf("authorization version: %w", err)
	}
	return nil
}

func (a *Authorization) Validate() bool {
	return strings.EqualFold(a.AuthString, AuthorizedString)
}
