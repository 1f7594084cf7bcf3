package store

import (
	"fmt"
	"github.com/ValentinKolb/hmdlink/rpc/bitstream"
	"strconv"
	"strings"
)

// valueType tags every profile value with the accessor that wrote it
type valueType uint8

const (
	typeString valueType = iota + 1
	typeBool
	typeInt
	typeNumber
	typeNumbers
)

func (t valueType) String() string {
	switch t {
	case typeString:
		return "string"
	case typeBool:
		return "bool"
	case typeInt:
		return "int"
	case typeNumber:
		return "number"
	case typeNumbers:
		return "numbers"
	default:
		return "unknown"
	}
}

// Profile stores typed profile values per HMD on top of an IStore.
//
// Values are keyed "profile/<hmd>/<key>". The value bytes start with a type
// tag, so reading a value through the wrong accessor fails with
// ErrTypeMismatch instead of returning garbage.
type Profile struct {
	store IStore
}

// NewProfile creates a profile backed by s
func NewProfile(s IStore) *Profile {
	return &Profile{store: s}
}

// Store returns the underlying store
func (p *Profile) Store() IStore {
	return p.store
}

// ProfileKey returns the store key of a profile value
func ProfileKey(hmd int32, key string) string {
	return "profile/" + strconv.Itoa(int(hmd)) + "/" + key
}

// ParseProfileKey splits a store key created by ProfileKey
func ParseProfileKey(storeKey string) (hmd int32, key string, ok bool) {
	rest, found := strings.CutPrefix(storeKey, "profile/")
	if !found {
		return 0, "", false
	}
	id, key, found := strings.Cut(rest, "/")
	if !found {
		return 0, "", false
	}
	n, err := strconv.ParseInt(id, 10, 32)
	if err != nil {
		return 0, "", false
	}
	return int32(n), key, true
}

// --------------------------------------------------------------------------
// Getters
// --------------------------------------------------------------------------

func (p *Profile) GetString(hmd int32, key string) (string, error) {
	bs, err := p.load(hmd, key, typeString)
	if err != nil {
		return "", err
	}
	return bs.ReadString()
}

func (p *Profile) GetBool(hmd int32, key string) (bool, error) {
	bs, err := p.load(hmd, key, typeBool)
	if err != nil {
		return false, err
	}
	b, err := bs.ReadUint8()
	return b != 0, err
}

func (p *Profile) GetInt(hmd int32, key string) (int32, error) {
	bs, err := p.load(hmd, key, typeInt)
	if err != nil {
		return 0, err
	}
	return bs.ReadInt32()
}

func (p *Profile) GetNumber(hmd int32, key string) (float64, error) {
	bs, err := p.load(hmd, key, typeNumber)
	if err != nil {
		return 0, err
	}
	return bs.ReadFloat64()
}

func (p *Profile) GetNumbers(hmd int32, key string) ([]float64, error) {
	bs, err := p.load(hmd, key, typeNumbers)
	if err != nil {
		return nil, err
	}
	n, err := bs.ReadUint32()
	if err != nil {
		return nil, err
	}
	if int(n) > bs.UnreadBits()/64 {
		return nil, fmt.Errorf("profile value %s holds %d numbers: %w", key, n, bitstream.ErrUnderflow)
	}
	vals := make([]float64, n)
	for i := range vals {
		if vals[i], err = bs.ReadFloat64(); err != nil {
			return nil, err
		}
	}
	return vals, nil
}

// Describe returns a printable form of a stored value and its type
func (p *Profile) Describe(hmd int32, key string) (string, string, error) {
	raw, ok, err := p.store.Get(ProfileKey(hmd, key))
	if err != nil {
		return "", "", err
	}
	if !ok || len(raw) == 0 {
		return "", "", ErrNotFound
	}

	t := valueType(raw[0])
	var v any
	switch t {
	case typeString:
		v, err = p.GetString(hmd, key)
	case typeBool:
		v, err = p.GetBool(hmd, key)
	case typeInt:
		v, err = p.GetInt(hmd, key)
	case typeNumber:
		v, err = p.GetNumber(hmd, key)
	case typeNumbers:
		v, err = p.GetNumbers(hmd, key)
	default:
		return "", "", fmt.Errorf("profile value %s has unknown type %d", key, raw[0])
	}
	if err != nil {
		return "", "", err
	}
	return fmt.Sprint(v), t.String(), nil
}

// --------------------------------------------------------------------------
// Setters
// --------------------------------------------------------------------------

func (p *Profile) SetString(hmd int32, key string, val string) error {
	bs := newValue(typeString)
	bs.WriteString(val)
	return p.save(hmd, key, bs)
}

func (p *Profile) SetBool(hmd int32, key string, val bool) error {
	bs := newValue(typeBool)
	var b uint8
	if val {
		b = 1
	}
	bs.WriteUint8(b)
	return p.save(hmd, key, bs)
}

func (p *Profile) SetInt(hmd int32, key string, val int32) error {
	bs := newValue(typeInt)
	bs.WriteInt32(val)
	return p.save(hmd, key, bs)
}

func (p *Profile) SetNumber(hmd int32, key string, val float64) error {
	bs := newValue(typeNumber)
	bs.WriteFloat64(val)
	return p.save(hmd, key, bs)
}

func (p *Profile) SetNumbers(hmd int32, key string, vals []float64) error {
	bs := newValue(typeNumbers)
	bs.WriteUint32(uint32(len(vals)))
	for _, v := range vals {
		bs.WriteFloat64(v)
	}
	return p.save(hmd, key, bs)
}

// Delete removes a profile value
func (p *Profile) Delete(hmd int32, key string) error {
	return p.store.Delete(ProfileKey(hmd, key))
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func newValue(t valueType) *bitstream.BitStream {
	bs := bitstream.New()
	bs.WriteUint8(uint8(t))
	return bs
}

func (p *Profile) save(hmd int32, key string, bs *bitstream.BitStream) error {
	if key == "" {
		return ErrInvalidKey
	}
	return p.store.Set(ProfileKey(hmd, key), bs.Bytes())
}

// load returns the value of key positioned after the type tag
func (p *Profile) load(hmd int32, key string, want valueType) (*bitstream.BitStream, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	raw, ok, err := p.store.Get(ProfileKey(hmd, key))
	if err != nil {
		return nil, err
	}
	if !ok || len(raw) == 0 {
		return nil, ErrNotFound
	}
	if got := valueType(raw[0]); got != want {
		return nil, fmt.Errorf("profile value %s is %s, not %s: %w", key, got, want, ErrTypeMismatch)
	}
	bs := bitstream.NewFromBytes(raw, false)
	bs.IgnoreBytes(1)
	return bs, nil
}
