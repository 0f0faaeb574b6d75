// Package session keeps one BLE session with a Photon light sensor: it finds and
// connects to the sensor, resolves its GATT characteristics, ingests light telemetry
// and runs the Wi-Fi provisioning exchange.
//
// All state is owned by a single goroutine (Run). Radio events and caller commands
// are queued into one inbox and handled to completion one at a time, so handlers
// never need locks and never block waiting for another event.
package session

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/srg/photonctl/internal/device"
	"github.com/srg/photonctl/internal/schema"
)

// Controller is what a presentation layer needs from a session. It is implemented by
// the live *Session and by the deterministic fixture.
type Controller interface {
	State() State
	Subscribe(buffer int) *Subscription

	StartScan()
	StopScan()
	StartWifiScan()
	SendCredentials(ssid, password string)
}

// Options tunes a Session.
type Options struct {
	// AutoScan starts scanning as soon as the radio reports it is powered on.
	AutoScan bool
	// ReconnectDelay postpones the reconnect issued after a disconnect. Zero reconnects immediately.
	ReconnectDelay time.Duration
	// InboxSize bounds the number of queued events and commands.
	InboxSize int
	// Clock stamps light samples. Defaults to time.Now.
	Clock func() time.Time
}

// DefaultOptions returns options matching the sensor firmware's expectations.
func DefaultOptions() Options {
	return Options{
		AutoScan:  true,
		InboxSize: 256,
		Clock:     time.Now,
	}
}

// Session is the live Controller backed by a device.Radio.
type Session struct {
	id     string
	radio  device.Radio
	opts   Options
	logger *logrus.Entry
	hub    *Hub

	inbox chan message
	done  chan struct{}
	once  sync.Once

	// Owned by the Run goroutine.
	state      State
	published  State
	discovered *orderedmap.OrderedMap[string, PeripheralInfo]
	target     string // identity being connected or reconnected
	conn       device.Peripheral
	handles    map[schema.Role]device.Characteristic
	wifiGen    uint64
	pendingCmd []uint64 // scan generations of in-flight command writes, oldest first

	mu       sync.RWMutex
	snapshot State
}

var _ Controller = (*Session)(nil)

// New creates a session driving radio. Nothing happens until Run is called.
func New(radio device.Radio, opts Options, logger *logrus.Logger) *Session {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = DefaultOptions().InboxSize
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	id := uuid.NewString()
	initial := NewState()
	return &Session{
		id:         id,
		radio:      radio,
		opts:       opts,
		logger:     logger.WithField("session", id),
		hub:        NewHub(),
		inbox:      make(chan message, opts.InboxSize),
		done:       make(chan struct{}),
		state:      initial,
		published:  initial.Clone(),
		snapshot:   initial.Clone(),
		discovered: orderedmap.New[string, PeripheralInfo](),
		handles:    make(map[schema.Role]device.Characteristic),
	}
}

// ID returns the session identifier used in log fields.
func (s *Session) ID() string {
	return s.id
}

// Run opens the radio and processes events until ctx is cancelled.
// It returns an error only when the radio cannot be opened.
func (s *Session) Run(ctx context.Context) error {
	defer s.stop()

	if err := s.radio.Open(s.post); err != nil {
		return fmt.Errorf("failed to open radio: %w", err)
	}
	defer func() {
		if err := s.radio.Close(); err != nil {
			s.logger.WithField("error", err).Warn("Failed to close radio")
		}
	}()

	s.logger.Info("Session started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Session stopped")
			return nil
		case m := <-s.inbox:
			s.handle(m)
		}
	}
}

func (s *Session) stop() {
	s.once.Do(func() {
		close(s.done)
		s.hub.Close()
	})
}

// State returns a snapshot of the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Clone()
}

// Subscribe registers an observer. The current state is delivered first.
func (s *Session) Subscribe(buffer int) *Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hub.SubscribeFrom(buffer, s.snapshot)
}

// StartScan begins scanning for the sensor.
func (s *Session) StartScan() { s.enqueue(startScanCmd{}) }

// StopScan halts scanning.
func (s *Session) StopScan() { s.enqueue(stopScanCmd{}) }

// StartWifiScan asks the sensor to scan for Wi-Fi networks.
func (s *Session) StartWifiScan() { s.enqueue(startWifiScanCmd{}) }

// SendCredentials hands Wi-Fi credentials to the sensor.
func (s *Session) SendCredentials(ssid, password string) {
	s.enqueue(sendCredentialsCmd{ssid: ssid, password: password})
}

// post is the device.EventSink given to the radio.
func (s *Session) post(ev device.Event) {
	s.enqueue(radioMessage{event: ev})
}

func (s *Session) enqueue(m message) {
	select {
	case s.inbox <- m:
	case <-s.done:
	}
}

// handle runs one message to completion and publishes the resulting state.
func (s *Session) handle(m message) {
	switch m := m.(type) {
	case radioMessage:
		s.handleEvent(m.event)
	case startScanCmd:
		s.startScan()
	case stopScanCmd:
		s.stopScan()
	case startWifiScanCmd:
		s.startWifiScan()
	case sendCredentialsCmd:
		s.sendCredentials(m.ssid, m.password)
	case reconnectDue:
		s.onReconnectDue(m.id)
	default:
		s.logger.WithField("message", fmt.Sprintf("%T", m)).Warn("Unhandled session message")
	}
	s.publish()
}

func (s *Session) handleEvent(ev device.Event) {
	switch ev := ev.(type) {
	case device.PowerChanged:
		s.onPowerChanged(ev)
	case device.Discovered:
		s.onDiscovered(ev)
	case device.Connected:
		s.onConnected(ev)
	case device.ConnectFailed:
		s.onConnectFailed(ev)
	case device.Disconnected:
		s.onDisconnected(ev)
	case device.ServicesDiscovered:
		s.onServicesDiscovered(ev)
	case device.CharacteristicsDiscovered:
		s.onCharacteristicsDiscovered(ev)
	case device.Subscribed:
		s.onSubscribed(ev)
	case device.Notified:
		s.onNotified(ev)
	case device.WriteCompleted:
		s.onWriteCompleted(ev)
	default:
		s.logger.WithField("event", fmt.Sprintf("%T", ev)).Warn("Unhandled radio event")
	}
}

func (s *Session) publish() {
	if reflect.DeepEqual(s.state, s.published) {
		return
	}
	snap := s.state.Clone()
	s.published = snap

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snap
	s.hub.Broadcast(snap)
}

// message is anything the Run goroutine processes.
type message interface {
	sessionMessage()
}

type radioMessage struct{ event device.Event }
type startScanCmd struct{}
type stopScanCmd struct{}
type startWifiScanCmd struct{}
type sendCredentialsCmd struct{ ssid, password string }
type reconnectDue struct{ id string }

func (radioMessage) sessionMessage()       {}
func (startScanCmd) sessionMessage()       {}
func (stopScanCmd) sessionMessage()        {}
func (startWifiScanCmd) sessionMessage()   {}
func (sendCredentialsCmd) sessionMessage() {}
func (reconnectDue) sessionMessage()       {}
