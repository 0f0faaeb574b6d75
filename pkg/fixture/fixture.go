// Package fixture provides a session.Controller that never touches a radio.
// It serves canned sensor data so the CLI and its tests run without hardware.
package fixture

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/srg/photonctl/internal/schema"
	"github.com/srg/photonctl/pkg/session"
)

// DefaultNetworks is what a Wi-Fi scan reports unless overridden.
var DefaultNetworks = []string{"Home", "Office", "Guest"}

// Options shapes the canned sensor.
type Options struct {
	Name       string
	LightLevel string
	Networks   []string
	Clock      func() time.Time
}

// DefaultOptions returns a connected sensor reporting 120 lux.
func DefaultOptions() Options {
	return Options{
		Name:       "Photon (fixture)",
		LightLevel: "120.0 lux",
		Networks:   DefaultNetworks,
		Clock:      time.Now,
	}
}

// Fixture is a deterministic session.Controller.
type Fixture struct {
	opts   Options
	logger *logrus.Entry
	hub    *session.Hub
	peer   session.PeripheralInfo

	mu    sync.Mutex
	state session.State
}

var _ session.Controller = (*Fixture)(nil)

// New creates a fixture that starts idle and connects on the first StartScan.
func New(opts Options, logger *logrus.Logger) *Fixture {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Networks == nil {
		opts.Networks = DefaultNetworks
	}

	st := session.NewState()
	st.PoweredOn = true
	id := uuid.NewString()
	return &Fixture{
		opts:   opts,
		logger: logger.WithField("fixture", id),
		hub:    session.NewHub(),
		peer:   session.PeripheralInfo{ID: id, Name: opts.Name},
		state:  st,
	}
}

// State returns a snapshot of the canned state.
func (f *Fixture) State() session.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Clone()
}

// Subscribe registers an observer; the current state is delivered first.
func (f *Fixture) Subscribe(buffer int) *session.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hub.SubscribeFrom(buffer, f.state.Clone())
}

// StartScan "discovers" the canned sensor and connects to it at once.
func (f *Fixture) StartScan() {
	f.update(func(st *session.State) {
		if st.Connected != nil {
			return
		}
		st.Discovered = []session.PeripheralInfo{f.peer}
		peer := f.peer
		st.Connected = &peer
		st.Phase = session.PhaseConnected
		st.Resolved = []schema.Role{
			schema.LightLevel, schema.WifiScanCommand, schema.WifiSSIDs,
			schema.WifiConnectedSSID, schema.WifiConnectedStatus, schema.WifiCredentials,
		}
		st.CanConfigureWifi = true
		st.CanSendCredentials = true
		f.logger.WithField("peripheral", f.peer.ID).Info("Connected")
		f.ingest(st, f.opts.LightLevel)
	})
}

// StopScan has nothing to stop; the fixture is never scanning.
func (f *Fixture) StopScan() {
	f.update(func(st *session.State) {
		st.Scanning = false
		if st.Phase == session.PhaseScanning {
			st.Phase = session.PhaseIdle
		}
	})
}

// StartWifiScan reports the canned networks. Observers see the scan start and
// complete as two snapshots, the way a live session reports them.
func (f *Fixture) StartWifiScan() {
	started := false
	f.update(func(st *session.State) {
		st.WifiScanRequests++
		if !st.CanConfigureWifi {
			f.logger.Warn("Cannot send Wi-Fi scan command: missing peripheral or characteristic")
			st.ScanningWifi = false
			st.WifiScanError = session.ErrWifiUnavailable.Error()
			return
		}
		st.WifiNetworks = []string{}
		st.ScanningWifi = true
		st.WifiScanError = ""
		started = true
	})
	if !started {
		return
	}
	f.update(func(st *session.State) {
		st.WifiNetworks = append([]string{}, f.opts.Networks...)
		st.ScanningWifi = false
	})
}

// SendCredentials marks the sensor as joined to ssid. The password is ignored.
func (f *Fixture) SendCredentials(ssid, _ string) {
	f.update(func(st *session.State) {
		if !st.CanSendCredentials {
			f.logger.Warn("Cannot send Wi-Fi credentials: missing peripheral or characteristic")
			return
		}
		st.WifiSSID = ssid
		st.WifiConnected = true
		f.logger.WithField("ssid", ssid).Info("Wi-Fi connected SSID updated")
	})
}

// Feed pushes a light level notification as the sensor would send it.
func (f *Fixture) Feed(level string) {
	f.update(func(st *session.State) {
		if st.Connected == nil {
			return
		}
		f.ingest(st, level)
	})
}

// Close ends every subscription.
func (f *Fixture) Close() {
	f.hub.Close()
}

func (f *Fixture) ingest(st *session.State, level string) {
	st.LightLevel = level
	v, err := session.ParseLightLevel(level)
	if err != nil {
		f.logger.WithField("error", err).Warn("Could not parse light level")
		return
	}
	st.LightHistory = append(st.LightHistory, session.LightSample{Timestamp: f.opts.Clock(), Value: v})
	if n := len(st.LightHistory); n > session.MaxLightHistory {
		st.LightHistory = append([]session.LightSample{}, st.LightHistory[n-session.MaxLightHistory:]...)
	}
}

func (f *Fixture) update(fn func(st *session.State)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.state)
	f.hub.Broadcast(f.state.Clone())
}
