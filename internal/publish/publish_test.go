package publish

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/srg/photonctl/internal/testutils"
	"github.com/srg/photonctl/pkg/config"
	"github.com/srg/photonctl/pkg/session"
)

type message struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  string
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []message
	err  error
}

func (p *recordingPublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, message{Topic: topic, QoS: qos, Retained: retained, Payload: string(payload)})
	return nil
}

// take returns and clears the recorded messages.
func (p *recordingPublisher) take() []message {
	p.mu.Lock()
	defer p.mu.Unlock()
	msgs := p.msgs
	p.msgs = nil
	return msgs
}

type ForwarderSuite struct {
	suite.Suite
	pub *recordingPublisher
	fwd *Forwarder
	now time.Time
}

func (s *ForwarderSuite) SetupTest() {
	h := testutils.NewTestHelper(s.T())
	s.pub = &recordingPublisher{}
	s.fwd = NewForwarder(s.pub, "photon", 1, h.Logger)
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *ForwarderSuite) connected() session.State {
	st := session.NewState()
	st.Phase = session.PhaseConnected
	st.PoweredOn = true
	st.Connected = &session.PeripheralInfo{ID: "AA:BB", Name: "Photon"}
	return st
}

func (s *ForwarderSuite) TestNothingBeforeFirstConnection() {
	st := session.NewState()
	st.Phase = session.PhaseScanning
	st.Scanning = true

	s.Require().NoError(s.fwd.Forward(st))
	s.Empty(s.pub.take())
}

func (s *ForwarderSuite) TestConnectPublishesRetainedStatusAndWifi() {
	s.Require().NoError(s.fwd.Forward(s.connected()))

	testutils.NewJSONAsserter(s.T()).WithOptions(testutils.WithIgnoreExtraKeys(false)).AssertValue(s.pub.take(), `[
		{
			"Topic": "photon/AA:BB/status", "QoS": 1, "Retained": true,
			"Payload": "{\"peripheral_id\":\"AA:BB\",\"phase\":\"connected\",\"connected\":true}"
		},
		{
			"Topic": "photon/AA:BB/wifi", "QoS": 1, "Retained": true,
			"Payload": "{\"peripheral_id\":\"AA:BB\",\"connected\":false,\"ssid\":\"\",\"networks\":[]}"
		}
	]`)
}

func (s *ForwarderSuite) TestOnlyChangesArePublished() {
	st := s.connected()
	s.Require().NoError(s.fwd.Forward(st))
	s.pub.take()

	s.Require().NoError(s.fwd.Forward(st))
	s.Empty(s.pub.take(), "an unchanged snapshot MUST NOT republish")

	st.WifiNetworks = []string{"home", "office"}
	s.Require().NoError(s.fwd.Forward(st))
	msgs := s.pub.take()
	s.Require().Len(msgs, 1)
	s.Equal("photon/AA:BB/wifi", msgs[0].Topic)
	testutils.NewJSONAsserter(s.T()).Assert(msgs[0].Payload, `{"networks":["home","office"]}`)
}

func (s *ForwarderSuite) TestLightSamplesAreForwardedOnce() {
	st := s.connected()
	st.LightHistory = []session.LightSample{
		{Timestamp: s.now, Value: 10},
		{Timestamp: s.now.Add(time.Second), Value: 12.5},
	}
	s.Require().NoError(s.fwd.Forward(st))

	var light []message
	for _, m := range s.pub.take() {
		if m.Topic == "photon/AA:BB/light" {
			light = append(light, m)
		}
	}
	s.Require().Len(light, 2)
	s.False(light[0].Retained)
	testutils.NewJSONAsserter(s.T()).Assert(light[1].Payload, `{
		"peripheral_id": "AA:BB",
		"timestamp": "2026-03-01T12:00:01Z",
		"lux": 12.5
	}`)

	st.LightHistory = append(st.LightHistory, session.LightSample{Timestamp: s.now.Add(2 * time.Second), Value: 3})
	s.Require().NoError(s.fwd.Forward(st))
	msgs := s.pub.take()
	s.Require().Len(msgs, 1)
	testutils.NewJSONAsserter(s.T()).Assert(msgs[0].Payload, `{"lux": 3}`)
}

func (s *ForwarderSuite) TestDisconnectKeepsPeripheralTopic() {
	s.Require().NoError(s.fwd.Forward(s.connected()))
	s.pub.take()

	st := session.NewState()
	st.Phase = session.PhaseReconnecting
	s.Require().NoError(s.fwd.Forward(st))

	msgs := s.pub.take()
	s.Require().NotEmpty(msgs)
	s.Equal("photon/AA:BB/status", msgs[0].Topic)
	testutils.NewJSONAsserter(s.T()).Assert(msgs[0].Payload, `{"phase":"reconnecting","connected":false}`)
}

func (s *ForwarderSuite) TestPublishErrorIsRetried() {
	s.pub.err = ErrNotConnected
	s.ErrorIs(s.fwd.Forward(s.connected()), ErrNotConnected)

	s.pub.err = nil
	s.Require().NoError(s.fwd.Forward(s.connected()))
	s.Len(s.pub.take(), 2, "a failed publish MUST be sent again with the next snapshot")
}

func (s *ForwarderSuite) TestRunForwardsSubscription() {
	hub := session.NewHub()
	sub := hub.Subscribe(4)

	done := make(chan error, 1)
	go func() { done <- s.fwd.Run(context.Background(), sub) }()

	hub.Broadcast(s.connected())
	s.Eventually(func() bool {
		s.pub.mu.Lock()
		defer s.pub.mu.Unlock()
		return len(s.pub.msgs) == 2
	}, time.Second, 10*time.Millisecond)

	hub.Close()
	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(time.Second):
		s.Fail("Run did not return after the hub closed")
	}
}

func TestForwarderSuite(t *testing.T) {
	suite.Run(t, new(ForwarderSuite))
}

func TestNewClientOptions(t *testing.T) {
	cfg := config.DefaultConfig().MQTT
	cfg.Broker = "tcp://127.0.0.1:1883"
	cfg.Username = "sensor"
	cfg.Password = "secret"

	c := NewClient(cfg, "photonctl-1", nil)
	opts := c.client.OptionsReader()

	assert.Equal(t, "photonctl-1", opts.ClientID())
	assert.Equal(t, "sensor", opts.Username())
	require.Len(t, opts.Servers(), 1)
	assert.Equal(t, "127.0.0.1:1883", opts.Servers()[0].Host)
	assert.True(t, opts.AutoReconnect())
	assert.Equal(t, cfg.ConnectTimeout, opts.ConnectTimeout())

	cfg.ClientID = "fixed"
	fixedOpts := NewClient(cfg, "photonctl-1", nil).client.OptionsReader()
	assert.Equal(t, "fixed", fixedOpts.ClientID())
}

func TestClientRequiresConnection(t *testing.T) {
	cfg := config.DefaultConfig().MQTT
	cfg.Broker = "tcp://127.0.0.1:1883"
	c := NewClient(cfg, "photonctl-test", nil)

	assert.False(t, c.IsConnected())
	assert.ErrorIs(t, c.Publish("photon/x/status", 0, true, []byte("{}")), ErrNotConnected)

	c.Disconnect()
	c.Disconnect()
	err := c.Connect(context.Background())
	assert.True(t, errors.Is(err, ErrStopped))
}
