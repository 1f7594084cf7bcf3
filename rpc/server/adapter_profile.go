package server

import (
	"errors"
	"github.com/ValentinKolb/hmdlink/lib/store"
	"github.com/ValentinKolb/hmdlink/rpc/bitstream"
	"github.com/ValentinKolb/hmdlink/rpc/common"
	"github.com/ValentinKolb/hmdlink/rpc/observer"
	"github.com/ValentinKolb/hmdlink/rpc/rpc1"
	"github.com/ValentinKolb/hmdlink/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
)

var (
	profileReads  = metrics.GetOrCreateCounter(`hmdlink_service_profile_ops_total{op="get"}`)
	profileWrites = metrics.GetOrCreateCounter(`hmdlink_service_profile_ops_total{op="set"}`)
	profileErrors = metrics.GetOrCreateCounter(`hmdlink_service_profile_errors_total`)
)

// NewProfileAdapter creates the adapter answering the Get/Set*Value calls
// from profile p
func NewProfileAdapter(p *store.Profile) IServiceAdapter {
	return &profileAdapter{profile: p}
}

type profileAdapter struct {
	profile *store.Profile
	scopes  []*observer.ObserverScope[rpc1.SlotFunc]
}

// --------------------------------------------------------------------------
// Interface Methods (docu see interface.go)
// --------------------------------------------------------------------------

func (a *profileAdapter) Register(r *rpc1.RPC1) {
	r.RegisterBlockingFunction(common.CallGetStringValue, a.getStringValue)
	r.RegisterBlockingFunction(common.CallGetBoolValue, a.getBoolValue)
	r.RegisterBlockingFunction(common.CallGetIntValue, a.getIntValue)
	r.RegisterBlockingFunction(common.CallGetNumberValue, a.getNumberValue)
	r.RegisterBlockingFunction(common.CallGetNumberValues, a.getNumberValues)

	slots := map[string]rpc1.SlotFunc{
		common.CallSetStringValue:  a.setStringValue,
		common.CallSetBoolValue:    a.setBoolValue,
		common.CallSetIntValue:     a.setIntValue,
		common.CallSetNumberValue:  a.setNumberValue,
		common.CallSetNumberValues: a.setNumberValues,
	}
	for id, fn := range slots {
		scope := observer.NewScopeWithHandler(fn)
		a.scopes = append(a.scopes, scope)
		r.RegisterSlot(id, scope.Get())
	}
}

func (a *profileAdapter) Release(r *rpc1.RPC1) {
	for _, id := range []string{
		common.CallGetStringValue, common.CallGetBoolValue, common.CallGetIntValue,
		common.CallGetNumberValue, common.CallGetNumberValues,
	} {
		r.UnregisterBlockingFunction(id)
	}
	for _, id := range []string{
		common.CallSetStringValue, common.CallSetBoolValue, common.CallSetIntValue,
		common.CallSetNumberValue, common.CallSetNumberValues,
	} {
		r.UnregisterSlot(id)
	}
	for _, scope := range a.scopes {
		scope.Shutdown()
	}
	a.scopes = nil
}

// --------------------------------------------------------------------------
// Getters
// --------------------------------------------------------------------------

func (a *profileAdapter) getStringValue(args, result *bitstream.BitStream, _ *transport.ReceivePayload) {
	hmd, key, ok := readKey(args)
	if !ok {
		return
	}
	def, err := args.ReadString()
	if err != nil {
		return
	}
	v, err := a.profile.GetString(hmd, key)
	if a.missing(key, err) {
		v = def
	}
	result.WriteString(v)
}

func (a *profileAdapter) getBoolValue(args, result *bitstream.BitStream, _ *transport.ReceivePayload) {
	hmd, key, ok := readKey(args)
	if !ok {
		return
	}
	def, err := args.ReadBool()
	if err != nil {
		return
	}
	v, err := a.profile.GetBool(hmd, key)
	if a.missing(key, err) {
		v = def
	}
	var b uint8
	if v {
		b = 1
	}
	result.WriteUint8(b)
}

func (a *profileAdapter) getIntValue(args, result *bitstream.BitStream, _ *transport.ReceivePayload) {
	hmd, key, ok := readKey(args)
	if !ok {
		return
	}
	def, err := args.ReadInt32()
	if err != nil {
		return
	}
	v, err := a.profile.GetInt(hmd, key)
	if a.missing(key, err) {
		v = def
	}
	result.WriteInt32(v)
}

func (a *profileAdapter) getNumberValue(args, result *bitstream.BitStream, _ *transport.ReceivePayload) {
	hmd, key, ok := readKey(args)
	if !ok {
		return
	}
	def, err := args.ReadFloat64()
	if err != nil {
		return
	}
	v, err := a.profile.GetNumber(hmd, key)
	if a.missing(key, err) {
		v = def
	}
	result.WriteFloat64(v)
}

func (a *profileAdapter) getNumberValues(args, result *bitstream.BitStream, _ *transport.ReceivePayload) {
	hmd, key, ok := readKey(args)
	if !ok {
		return
	}
	limit, err := args.ReadInt32()
	if err != nil {
		return
	}
	vals, err := a.profile.GetNumbers(hmd, key)
	if a.missing(key, err) {
		vals = nil
	}
	n := min(max(int(limit), 0), len(vals))

	result.WriteInt32(int32(n))
	for _, v := range vals[:n] {
		result.WriteFloat64(v)
	}
}

// --------------------------------------------------------------------------
// Setters
// --------------------------------------------------------------------------

func (a *profileAdapter) setStringValue(args *bitstream.BitStream, _ *transport.ReceivePayload) {
	hmd, key, ok := readKey(args)
	if !ok {
		return
	}
	v, err := args.ReadString()
	if err != nil {
		return
	}
	a.stored(key, a.profile.SetString(hmd, key, v))
}

func (a *profileAdapter) setBoolValue(args *bitstream.BitStream, _ *transport.ReceivePayload) {
	hmd, key, ok := readKey(args)
	if !ok {
		return
	}
	v, err := args.ReadUint8()
	if err != nil {
		return
	}
	a.stored(key, a.profile.SetBool(hmd, key, v != 0))
}

func (a *profileAdapter) setIntValue(args *bitstream.BitStream, _ *transport.ReceivePayload) {
	hmd, key, ok := readKey(args)
	if !ok {
		return
	}
	v, err := args.ReadInt32()
	if err != nil {
		return
	}
	a.stored(key, a.profile.SetInt(hmd, key, v))
}

func (a *profileAdapter) setNumberValue(args *bitstream.BitStream, _ *transport.ReceivePayload) {
	hmd, key, ok := readKey(args)
	if !ok {
		return
	}
	v, err := args.ReadFloat64()
	if err != nil {
		return
	}
	a.stored(key, a.profile.SetNumber(hmd, key, v))
}

func (a *profileAdapter) setNumberValues(args *bitstream.BitStream, _ *transport.ReceivePayload) {
	hmd, key, ok := readKey(args)
	if !ok {
		return
	}
	n, err := args.ReadInt32()
	if err != nil || n < 0 || int(n) > args.UnreadBits()/64 {
		Logger.Warningf("Malformed SetNumberValues for %s", key)
		return
	}
	vals := make([]float64, n)
	for i := range vals {
		if vals[i], err = args.ReadFloat64(); err != nil {
			return
		}
	}
	a.stored(key, a.profile.SetNumbers(hmd, key, vals))
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// readKey reads the HMD id and the key, stripped of the bypass prefix
func readKey(args *bitstream.BitStream) (common.VirtualHmdId, string, bool) {
	hmd, err := args.ReadInt32()
	if err != nil {
		return 0, "", false
	}
	key, err := args.ReadString()
	if err != nil {
		return 0, "", false
	}
	return hmd, common.FilterKeyPrefix(key), true
}

// missing reports whether a lookup has to fall back to the default
func (a *profileAdapter) missing(key string, err error) bool {
	profileReads.Inc()
	if err == nil {
		return false
	}
	if !errors.Is(err, store.ErrNotFound) {
		profileErrors.Inc()
		Logger.Warningf("Failed to read profile value %s: %v", key, err)
	}
	return true
}

func (a *profileAdapter) stored(key string, err error) {
	profileWrites.Inc()
	if err != nil {
		profileErrors.Inc()
		Logger.Warningf("Failed to store profile value %s: %v", key, err)
	}
}
