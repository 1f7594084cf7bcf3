package common

import "strings"

// --------------------------------------------------------------------------
// Service Properties
// --------------------------------------------------------------------------

// BypassPrefix marks a profile key that is always forwarded to the service
const BypassPrefix = "server:"

// GetterSetter enumerates the profile accessors of the client
type GetterSetter int

const (
	EGetStringValue GetterSetter = iota
	EGetBoolValue
	EGetIntValue
	EGetNumberValue
	EGetNumberValues
	ESetStringValue
	ESetBoolValue
	ESetIntValue
	ESetNumberValue
	ESetNumberValues
	ENumTypes
)

// serviceKeys lists the keys owned by the service per accessor
var serviceKeys = [ENumTypes][]string{
	EGetStringValue:  {"CameraSerial", "CameraUUID"},
	EGetBoolValue:    {"ReleaseDK2Sensors", "ReleaseLegacySensors"},
	EGetIntValue:     nil,
	EGetNumberValue:  {"CenterPupilDepth"},
	EGetNumberValues: {"NeckModelVector3f"},
	ESetStringValue:  nil,
	ESetBoolValue:    {"ReleaseDK2Sensors", "ReleaseLegacySensors"},
	ESetIntValue:     nil,
	ESetNumberValue:  {"CenterPupilDepth"},
	ESetNumberValues: {"NeckModelVector3f"},
}

// FilterKeyPrefix strips the bypass prefix from key
func FilterKeyPrefix(key string) string {
	return strings.TrimPrefix(key, BypassPrefix)
}

// IsServiceProperty reports whether key must be read or written through the service
func IsServiceProperty(e GetterSetter, key string) bool {
	if e >= 0 && e < ENumTypes {
		for _, k := range serviceKeys[e] {
			if k == key {
				return true
			}
		}
	}
	return strings.HasPrefix(key, BypassPrefix)
}
