package session

import (
	"time"

	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/srg/photonctl/internal/device"
	"github.com/srg/photonctl/internal/schema"
)

// connectRetryBackoff spaces reconnect attempts the radio refuses outright.
const connectRetryBackoff = 500 * time.Millisecond

func (s *Session) onPowerChanged(ev device.PowerChanged) {
	s.state.PoweredOn = ev.On
	if !ev.On {
		s.logger.Warn("Bluetooth is not available")
		// The platform scan dies with the adapter.
		s.state.Scanning = false
		if s.state.Phase == PhaseScanning {
			s.state.Phase = PhaseIdle
		}
		return
	}

	s.logger.Info("Bluetooth powered on")
	if s.opts.AutoScan && s.state.Phase == PhaseIdle {
		s.startScan()
	}
}

func (s *Session) startScan() {
	// A scan issued with no connection in play is a fresh rescan.
	if s.conn == nil && s.target == "" {
		s.discovered = orderedmap.New[string, PeripheralInfo]()
		s.state.Discovered = []PeripheralInfo{}
	}

	s.state.Scanning = true
	if s.state.Phase == PhaseIdle {
		s.state.Phase = PhaseScanning
	}

	if err := s.radio.Scan([]string{schema.LightServiceUUID}); err != nil {
		s.logger.WithField("error", err).Error("Failed to start scanning")
		s.state.Scanning = false
		if s.state.Phase == PhaseScanning {
			s.state.Phase = PhaseIdle
		}
		return
	}
	s.logger.Info("Scanning for peripherals")
}

func (s *Session) stopScan() {
	s.haltScan()
	if s.state.Phase == PhaseScanning {
		s.state.Phase = PhaseIdle
	}
	s.logger.Info("Stopped scanning")
}

// haltScan clears the scanning flag and stops the platform scan without touching the phase.
func (s *Session) haltScan() {
	s.state.Scanning = false
	if err := s.radio.StopScan(); err != nil {
		s.logger.WithField("error", err).Warn("Failed to stop scanning")
	}
}

func (s *Session) onDiscovered(ev device.Discovered) {
	if _, seen := s.discovered.Get(ev.ID); seen {
		s.logger.WithField("peripheral", ev.ID).Debug("Peripheral already discovered")
		return
	}

	info := PeripheralInfo{ID: ev.ID, Name: ev.Name}
	s.discovered.Set(ev.ID, info)
	s.state.Discovered = append(s.state.Discovered, info)
	s.logger.WithFields(logrus.Fields{
		"peripheral": ev.ID,
		"name":       device.DisplayName(ev.Name),
		"rssi":       ev.RSSI,
	}).Info("Discovered peripheral")

	if s.conn != nil || s.target != "" {
		s.logger.WithField("peripheral", ev.ID).Debug("Connection already in progress, not auto-connecting")
		return
	}
	s.connect(ev.ID, PhaseConnecting)
}

func (s *Session) connect(id string, phase Phase) {
	s.target = id
	s.state.Phase = phase
	if err := s.radio.Connect(id); err != nil {
		s.logger.WithFields(logrus.Fields{
			"peripheral": id,
			"error":      err,
		}).Error("Failed to issue connect request")
		s.connectFailed(id, true)
	}
}

func (s *Session) onConnected(ev device.Connected) {
	p := ev.Peripheral
	if p == nil {
		return
	}
	if s.target != "" && p.ID() != s.target {
		s.logger.WithFields(logrus.Fields{
			"peripheral": p.ID(),
			"expected":   s.target,
		}).Warn("Ignoring connection to unexpected peripheral")
		return
	}

	if s.state.Scanning {
		s.haltScan()
	}

	name := p.Name()
	if name == "" {
		if info, ok := s.discovered.Get(p.ID()); ok {
			name = info.Name
		}
	}

	s.conn = p
	s.target = p.ID()
	s.state.Connected = &PeripheralInfo{ID: p.ID(), Name: name}
	s.state.Phase = PhaseConnected
	s.logger.WithFields(logrus.Fields{
		"peripheral": p.ID(),
		"name":       device.DisplayName(name),
	}).Info("Connected")

	if err := s.radio.DiscoverServices(p, schema.ServiceUUIDs()); err != nil {
		s.logger.WithField("error", err).Error("Failed to start service discovery")
	}
}

func (s *Session) onConnectFailed(ev device.ConnectFailed) {
	s.logger.WithFields(logrus.Fields{
		"peripheral": ev.ID,
		"error":      ev.Err,
	}).Warn("Connection attempt failed")
	s.connectFailed(ev.ID, false)
}

// connectFailed settles a connect attempt to id that did not produce a connection.
// A lost peripheral is retried without limit. A first attempt is abandoned so the
// next advertisement of any sensor can auto-connect again. rejected marks a request
// the radio refused synchronously, which is retried after a pause instead of at once.
func (s *Session) connectFailed(id string, rejected bool) {
	if s.conn != nil || id != s.target {
		return
	}

	switch s.state.Phase {
	case PhaseReconnecting:
		delay := s.opts.ReconnectDelay
		if rejected && delay < connectRetryBackoff {
			delay = connectRetryBackoff
		}
		s.scheduleReconnect(id, delay)
	case PhaseConnecting:
		s.target = ""
		if _, ok := s.discovered.Delete(id); ok {
			s.state.Discovered = discoveredList(s.discovered)
		}
		if s.state.Scanning {
			s.state.Phase = PhaseScanning
		} else {
			s.state.Phase = PhaseIdle
		}
		s.logger.WithField("peripheral", id).Info("Waiting for the next advertisement")
	}
}

func (s *Session) onDisconnected(ev device.Disconnected) {
	if !s.isCurrent(ev.Peripheral) {
		s.logger.Debug("Ignoring disconnect of a stale connection")
		return
	}

	id := s.conn.ID()
	fields := logrus.Fields{"peripheral": id, "name": device.DisplayName(s.state.Connected.Name)}
	if ev.Err != nil {
		fields["error"] = ev.Err
	}
	s.logger.WithFields(fields).Warn("Disconnected")

	s.conn = nil
	s.state.Connected = nil
	s.clearHandles()
	s.state.LightHistory = []LightSample{}
	s.state.LightLevel = UnknownLightLevel
	// No scan response can arrive on a dead link.
	if s.state.ScanningWifi {
		s.failWifiScan(ErrConnectionLost)
	}
	s.pendingCmd = nil

	s.reconnect(id)
}

func (s *Session) reconnect(id string) {
	s.scheduleReconnect(id, s.opts.ReconnectDelay)
}

func (s *Session) scheduleReconnect(id string, delay time.Duration) {
	s.target = id
	s.state.Phase = PhaseReconnecting

	if delay <= 0 {
		s.connect(id, PhaseReconnecting)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"peripheral": id,
		"delay":      delay,
	}).Info("Reconnect scheduled")
	time.AfterFunc(delay, func() {
		s.enqueue(reconnectDue{id: id})
	})
}

func (s *Session) onReconnectDue(id string) {
	if s.conn != nil || s.target != id {
		return
	}
	s.connect(id, PhaseReconnecting)
}

func discoveredList(m *orderedmap.OrderedMap[string, PeripheralInfo]) []PeripheralInfo {
	list := make([]PeripheralInfo, 0, m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		list = append(list, pair.Value)
	}
	return list
}

// isCurrent reports whether p is the peripheral of the live connection.
func (s *Session) isCurrent(p device.Peripheral) bool {
	return s.conn != nil && p != nil && p.ID() == s.conn.ID()
}
