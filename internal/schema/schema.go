// Package schema is the static GATT table of the Photon light sensor: which
// services it exposes and which characteristic fills each logical role.
package schema

import (
	"strings"
)

// Role names a characteristic by what the session uses it for.
type Role int

const (
	RoleUnknown Role = iota
	LightLevel
	WifiScanCommand
	WifiSSIDs
	WifiConnectedSSID
	WifiConnectedStatus
	SensorName
	ScanInterval
	WifiCredentials
	WifiEnabled
)

var roleNames = map[Role]string{
	RoleUnknown:         "Unknown",
	LightLevel:          "LightLevel",
	WifiScanCommand:     "WifiScanCommand",
	WifiSSIDs:           "WifiSSIDs",
	WifiConnectedSSID:   "WifiConnectedSSID",
	WifiConnectedStatus: "WifiConnectedStatus",
	SensorName:          "SensorName",
	ScanInterval:        "ScanInterval",
	WifiCredentials:     "WifiCredentials",
	WifiEnabled:         "WifiEnabled",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "Unknown"
}

// MarshalText lets roles appear by name in JSON and YAML output.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Notifies reports whether the session subscribes to the role as soon as it is resolved.
func (r Role) Notifies() bool {
	switch r {
	case LightLevel, WifiSSIDs, WifiConnectedSSID, WifiConnectedStatus:
		return true
	default:
		return false
	}
}

// Service UUIDs
const (
	LightServiceUUID    = "3D80C0AA-56B9-458F-82A1-12CE0310E076"
	WifiServiceUUID     = "458800E6-FC10-46BD-8CDA-7F0F74BB1DBF"
	SettingsServiceUUID = "C1D5A3B2-7E2F-4F4C-9F1D-3A2B1C0D4E5F"
)

// Characteristic UUIDs
const (
	LightLevelUUID          = "646BD4E2-0927-45AC-BF41-FD9C69AA31DD"
	WifiScanCommandUUID     = "5F8B1E42-1A56-4B5A-8026-8B15BC7EE5F3"
	WifiSSIDsUUID           = "B30041A1-23DF-473A-AEEC-0C8514514B03"
	WifiConnectedSSIDUUID   = "A1B2C3D4-E5F6-4789-ABCD-EF0123456789"
	WifiConnectedStatusUUID = "12345678-9ABC-DEF0-1234-56789ABCDEF0"
	SensorNameUUID          = "D2C1A3B2-7E2F-4F4C-9F1D-3A2B1C0D4E5F"
	ScanIntervalUUID        = "E3F4B5C6-8D9E-4F0A-B1C2-D3E4F5A6B7C8"
	WifiCredentialsUUID     = "B2C1A3B2-7E2F-4F4C-9F1D-3A2B1C0D4E5F"
	WifiEnabledUUID         = "D3C1A3B2-7E2F-4F4C-9F1D-3A2B1C0D4E5F"
)

// Service groups the characteristics the session expects under one GATT service.
type Service struct {
	Name            string
	UUID            string
	Characteristics []Characteristic
}

// Characteristic binds a characteristic UUID to its role.
type Characteristic struct {
	Role Role
	UUID string
}

// Services is the full table, in discovery order.
var Services = []Service{
	{
		Name: "Light",
		UUID: LightServiceUUID,
		Characteristics: []Characteristic{
			{Role: LightLevel, UUID: LightLevelUUID},
		},
	},
	{
		Name: "Wifi",
		UUID: WifiServiceUUID,
		Characteristics: []Characteristic{
			{Role: WifiScanCommand, UUID: WifiScanCommandUUID},
			{Role: WifiSSIDs, UUID: WifiSSIDsUUID},
			{Role: WifiConnectedSSID, UUID: WifiConnectedSSIDUUID},
			{Role: WifiConnectedStatus, UUID: WifiConnectedStatusUUID},
		},
	},
	{
		Name: "Settings",
		UUID: SettingsServiceUUID,
		Characteristics: []Characteristic{
			{Role: SensorName, UUID: SensorNameUUID},
			{Role: ScanInterval, UUID: ScanIntervalUUID},
			{Role: WifiCredentials, UUID: WifiCredentialsUUID},
			{Role: WifiEnabled, UUID: WifiEnabledUUID},
		},
	},
}

// ServiceUUIDs returns the UUIDs of every known service.
func ServiceUUIDs() []string {
	ids := make([]string, 0, len(Services))
	for _, svc := range Services {
		ids = append(ids, svc.UUID)
	}
	return ids
}

// LookupService finds a service by UUID in any textual form.
func LookupService(uuid string) (Service, bool) {
	n := NormalizeUUID(uuid)
	for _, svc := range Services {
		if NormalizeUUID(svc.UUID) == n {
			return svc, true
		}
	}
	return Service{}, false
}

// LookupRole finds the role of a characteristic UUID. Characteristic UUIDs are unique
// across the table, so the owning service does not need to be known.
func LookupRole(uuid string) Role {
	n := NormalizeUUID(uuid)
	for _, svc := range Services {
		for _, c := range svc.Characteristics {
			if NormalizeUUID(c.UUID) == n {
				return c.Role
			}
		}
	}
	return RoleUnknown
}

// CharacteristicUUIDs lists the characteristic UUIDs declared for the service.
func (s Service) CharacteristicUUIDs() []string {
	ids := make([]string, 0, len(s.Characteristics))
	for _, c := range s.Characteristics {
		ids = append(ids, c.UUID)
	}
	return ids
}

// NormalizeUUID converts a UUID to lowercase hex without dashes or a 0x prefix.
// Full 128-bit UUIDs built on the Bluetooth SIG base are shortened to 16 bits,
// so "0000180f-0000-1000-8000-00805f9b34fb" and "180F" compare equal.
func NormalizeUUID(uuid string) string {
	s := strings.ToLower(strings.TrimSpace(uuid))
	s = strings.TrimPrefix(s, "0x")
	s = strings.ReplaceAll(s, "-", "")
	if len(s) == 32 && strings.HasPrefix(s, "0000") && strings.HasSuffix(s, "00001000800000805f9b34fb") {
		return s[4:8]
	}
	return s
}

// SameUUID compares two UUIDs after normalization.
func SameUUID(a, b string) bool {
	return NormalizeUUID(a) == NormalizeUUID(b)
}
