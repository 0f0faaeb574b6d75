package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/photonctl/pkg/session"
)

// LightMessage is published for every new light sample.
type LightMessage struct {
	PeripheralID string    `json:"peripheral_id"`
	Timestamp    time.Time `json:"timestamp"`
	Lux          float64   `json:"lux"`
}

// StatusMessage is the retained connection status of the sensor.
type StatusMessage struct {
	PeripheralID string        `json:"peripheral_id"`
	Phase        session.Phase `json:"phase"`
	Connected    bool          `json:"connected"`
}

// WifiMessage is the retained Wi-Fi status of the sensor.
type WifiMessage struct {
	PeripheralID string   `json:"peripheral_id"`
	Connected    bool     `json:"connected"`
	SSID         string   `json:"ssid"`
	Networks     []string `json:"networks"`
}

// Forwarder turns session snapshots into MQTT messages. Only changes are published.
type Forwarder struct {
	pub    Publisher
	prefix string
	qos    byte
	logger *logrus.Logger

	peripheral string
	lastSample time.Time
	status     *StatusMessage
	wifi       *WifiMessage
}

// NewForwarder publishes under prefix with the given QoS.
func NewForwarder(pub Publisher, prefix string, qos byte, logger *logrus.Logger) *Forwarder {
	if logger == nil {
		logger = logrus.New()
	}
	return &Forwarder{pub: pub, prefix: prefix, qos: qos, logger: logger}
}

// Run forwards every snapshot of sub until it is closed or ctx is done.
func (f *Forwarder) Run(ctx context.Context, sub *session.Subscription) error {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case st, ok := <-sub.C():
			if !ok {
				return nil
			}
			if err := f.Forward(st); err != nil {
				f.logger.WithField("error", err).Warn("Failed to forward telemetry")
			}
		}
	}
}

// Forward publishes what changed since the previous snapshot.
// Nothing is published before the first connection.
func (f *Forwarder) Forward(st session.State) error {
	if st.Connected != nil {
		f.peripheral = st.Connected.ID
	}
	if f.peripheral == "" {
		return nil
	}

	status := StatusMessage{PeripheralID: f.peripheral, Phase: st.Phase, Connected: st.IsConnected()}
	if f.status == nil || *f.status != status {
		if err := f.publish("status", true, status); err != nil {
			return err
		}
		f.status = &status
	}

	for _, sample := range st.LightHistory {
		if !sample.Timestamp.After(f.lastSample) {
			continue
		}
		msg := LightMessage{PeripheralID: f.peripheral, Timestamp: sample.Timestamp, Lux: sample.Value}
		if err := f.publish("light", false, msg); err != nil {
			return err
		}
		f.lastSample = sample.Timestamp
	}

	wifi := WifiMessage{
		PeripheralID: f.peripheral,
		Connected:    st.WifiConnected,
		SSID:         st.WifiSSID,
		Networks:     append([]string{}, st.WifiNetworks...),
	}
	if f.wifi == nil || !sameWifi(*f.wifi, wifi) {
		if err := f.publish("wifi", true, wifi); err != nil {
			return err
		}
		f.wifi = &wifi
	}
	return nil
}

func (f *Forwarder) publish(kind string, retained bool, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}
	topic := fmt.Sprintf("%s/%s/%s", f.prefix, f.peripheral, kind)
	if err := f.pub.Publish(topic, f.qos, retained, data); err != nil {
		return err
	}
	f.logger.WithField("topic", topic).Debug("Published telemetry")
	return nil
}

func sameWifi(a, b WifiMessage) bool {
	return a.PeripheralID == b.PeripheralID &&
		a.Connected == b.Connected &&
		a.SSID == b.SSID &&
		slices.Equal(a.Networks, b.Networks)
}
