package session

import (
	"time"

	"github.com/srg/photonctl/internal/schema"
)

const (
	// UnknownLightLevel is displayed while no light reading is available.
	UnknownLightLevel = "?"

	// MaxLightHistory bounds the light sample history; older samples are evicted first.
	MaxLightHistory = 100
)

// Phase is the connection lifecycle position of the session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhaseConnecting
	PhaseConnected
	PhaseReconnecting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseScanning:
		return "scanning"
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	case PhaseReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// MarshalText renders the phase by name in JSON output.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// PeripheralInfo identifies a peripheral seen during scanning.
type PeripheralInfo struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// LightSample is one parsed light reading.
type LightSample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// State is the observable aggregate of a session. Values handed out by State() and
// by subscriptions are snapshots; receivers must treat their slices as read-only.
type State struct {
	Phase     Phase `json:"phase"`
	PoweredOn bool  `json:"powered_on"`
	Scanning  bool  `json:"scanning"`

	Discovered []PeripheralInfo `json:"discovered"`
	Connected  *PeripheralInfo  `json:"connected,omitempty"`

	CanConfigureWifi   bool          `json:"can_configure_wifi"`
	CanSendCredentials bool          `json:"can_send_credentials"`
	Resolved           []schema.Role `json:"resolved"`

	LightLevel   string        `json:"light_level"`
	LightHistory []LightSample `json:"light_history"`

	WifiNetworks  []string `json:"wifi_networks"`
	ScanningWifi  bool     `json:"scanning_wifi"`
	WifiConnected bool     `json:"wifi_connected"`
	WifiSSID      string   `json:"wifi_ssid"`

	// WifiScanRequests counts StartWifiScan calls, accepted or not.
	WifiScanRequests uint64 `json:"wifi_scan_requests"`
	// WifiScanError says why the latest Wi-Fi scan ended without results.
	WifiScanError string `json:"wifi_scan_error,omitempty"`
}

// NewState returns the state of a session that has not seen any radio event.
func NewState() State {
	return State{
		Phase:        PhaseIdle,
		Discovered:   []PeripheralInfo{},
		Resolved:     []schema.Role{},
		LightLevel:   UnknownLightLevel,
		LightHistory: []LightSample{},
		WifiNetworks: []string{},
	}
}

// Clone returns a deep copy.
func (s State) Clone() State {
	c := s
	c.Discovered = append([]PeripheralInfo{}, s.Discovered...)
	c.Resolved = append([]schema.Role{}, s.Resolved...)
	c.LightHistory = append([]LightSample{}, s.LightHistory...)
	c.WifiNetworks = append([]string{}, s.WifiNetworks...)
	if s.Connected != nil {
		p := *s.Connected
		c.Connected = &p
	}
	return c
}

// IsConnected reports whether a peripheral connection is established.
func (s State) IsConnected() bool {
	return s.Connected != nil
}

// LastSample returns the newest light sample, if any.
func (s State) LastSample() (LightSample, bool) {
	if len(s.LightHistory) == 0 {
		return LightSample{}, false
	}
	return s.LightHistory[len(s.LightHistory)-1], true
}
