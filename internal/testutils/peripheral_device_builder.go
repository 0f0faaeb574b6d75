package testutils

import (
	"encoding/json"
	"fmt"

	"github.com/srg/photonctl/internal/device"
	"github.com/srg/photonctl/internal/schema"
)

// CharacteristicConfig describes one characteristic of a mocked peripheral.
type CharacteristicConfig struct {
	UUID       string `json:"uuid"`
	Properties string `json:"properties,omitempty"` // e.g., "read,write,notify"
}

// ServiceConfig describes one service of a mocked peripheral.
type ServiceConfig struct {
	UUID            string                 `json:"uuid"`
	Characteristics []CharacteristicConfig `json:"characteristics,omitempty"`
}

// DeviceProfileConfig is the complete GATT layout of a mocked peripheral.
type DeviceProfileConfig struct {
	Services []ServiceConfig `json:"services"`
}

// PeripheralDeviceBuilder builds the discovery results a radio would report for a peripheral.
type PeripheralDeviceBuilder struct {
	id, name string
	profile  DeviceProfileConfig
}

// NewPeripheralDeviceBuilder creates a builder for a peripheral without services.
func NewPeripheralDeviceBuilder() *PeripheralDeviceBuilder {
	return &PeripheralDeviceBuilder{
		id:      "AA:BB:CC:DD:EE:FF",
		name:    "Photon",
		profile: DeviceProfileConfig{Services: []ServiceConfig{}},
	}
}

// WithIdentity sets the peripheral ID and advertised name.
func (b *PeripheralDeviceBuilder) WithIdentity(id, name string) *PeripheralDeviceBuilder {
	b.id, b.name = id, name
	return b
}

// WithService adds a service to the device profile
func (b *PeripheralDeviceBuilder) WithService(uuid string) *PeripheralDeviceBuilder {
	b.profile.Services = append(b.profile.Services, ServiceConfig{
		UUID:            uuid,
		Characteristics: []CharacteristicConfig{},
	})
	return b
}

// WithCharacteristic adds a characteristic to the last added service
func (b *PeripheralDeviceBuilder) WithCharacteristic(uuid, properties string) *PeripheralDeviceBuilder {
	if len(b.profile.Services) == 0 {
		panic("WithCharacteristic: no service added yet, call WithService first")
	}

	last := len(b.profile.Services) - 1
	b.profile.Services[last].Characteristics = append(b.profile.Services[last].Characteristics,
		CharacteristicConfig{UUID: uuid, Properties: properties})
	return b
}

// FromJSON fills the device profile from JSON
func (b *PeripheralDeviceBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *PeripheralDeviceBuilder {
	jsonStr := fmt.Sprintf(jsonStrFmt, args...)

	var config DeviceProfileConfig
	if err := json.Unmarshal([]byte(jsonStr), &config); err != nil {
		panic(fmt.Sprintf("PeripheralDeviceBuilder.FromJSON: failed to unmarshal: %v", err))
	}

	b.profile = config
	return b
}

// Build creates the peripheral handle and its discovery results.
func (b *PeripheralDeviceBuilder) Build() *MockPeripheral {
	mp := &MockPeripheral{
		Peripheral:      NewPeripheral(b.id, b.name),
		characteristics: make(map[string][]device.Characteristic),
	}
	for _, svcConfig := range b.profile.Services {
		svc := &FakeService{uuid: svcConfig.UUID}
		mp.services = append(mp.services, svc)
		chars := make([]device.Characteristic, 0, len(svcConfig.Characteristics))
		for _, cc := range svcConfig.Characteristics {
			chars = append(chars, NewCharacteristic(cc.UUID, ParseProperties(cc.Properties)))
		}
		mp.characteristics[svcConfig.UUID] = chars
	}
	return mp
}

// GetServices returns the configured services
func (b *PeripheralDeviceBuilder) GetServices() []ServiceConfig {
	return b.profile.Services
}

// PhotonProfile returns a builder for a sensor exposing the complete GATT table.
func PhotonProfile() *PeripheralDeviceBuilder {
	return NewPeripheralDeviceBuilder().FromJSON(`{
		"services": [
			{
				"uuid": %q,
				"characteristics": [
					{ "uuid": %q, "properties": "read,notify" }
				]
			},
			{
				"uuid": %q,
				"characteristics": [
					{ "uuid": %q, "properties": "write,writeWithoutResponse" },
					{ "uuid": %q, "properties": "read,notify" },
					{ "uuid": %q, "properties": "read,notify" },
					{ "uuid": %q, "properties": "read,notify" }
				]
			},
			{
				"uuid": %q,
				"characteristics": [
					{ "uuid": %q, "properties": "read,write" },
					{ "uuid": %q, "properties": "read,write" },
					{ "uuid": %q, "properties": "write" },
					{ "uuid": %q, "properties": "read,write" }
				]
			}
		]
	}`,
		schema.LightServiceUUID, schema.LightLevelUUID,
		schema.WifiServiceUUID, schema.WifiScanCommandUUID, schema.WifiSSIDsUUID,
		schema.WifiConnectedSSIDUUID, schema.WifiConnectedStatusUUID,
		schema.SettingsServiceUUID, schema.SensorNameUUID, schema.ScanIntervalUUID,
		schema.WifiCredentialsUUID, schema.WifiEnabledUUID)
}

// MockPeripheral is a built peripheral: its handle plus what discovery reports for it.
type MockPeripheral struct {
	Peripheral      *FakePeripheral
	services        []device.Service
	characteristics map[string][]device.Characteristic
}

// Services returns the service handles in profile order.
func (m *MockPeripheral) Services() []device.Service {
	return append([]device.Service(nil), m.services...)
}

// Service returns the handle of the service with the given UUID.
func (m *MockPeripheral) Service(uuid string) device.Service {
	for _, svc := range m.services {
		if schema.SameUUID(svc.UUID(), uuid) {
			return svc
		}
	}
	panic(fmt.Sprintf("MockPeripheral.Service: no service %s", uuid))
}

// Characteristics returns the characteristic handles of a service.
func (m *MockPeripheral) Characteristics(serviceUUID string) []device.Characteristic {
	return append([]device.Characteristic(nil), m.characteristics[m.Service(serviceUUID).UUID()]...)
}

// Characteristic returns the handle of the characteristic with the given UUID.
func (m *MockPeripheral) Characteristic(uuid string) device.Characteristic {
	for _, chars := range m.characteristics {
		for _, c := range chars {
			if schema.SameUUID(c.UUID(), uuid) {
				return c
			}
		}
	}
	panic(fmt.Sprintf("MockPeripheral.Characteristic: no characteristic %s", uuid))
}

// DiscoveryEvents returns the events a radio reports while the session resolves the
// peripheral: one ServicesDiscovered followed by one CharacteristicsDiscovered per service.
func (m *MockPeripheral) DiscoveryEvents() []device.Event {
	events := []device.Event{device.ServicesDiscovered{Peripheral: m.Peripheral, Services: m.Services()}}
	for _, svc := range m.services {
		events = append(events, device.CharacteristicsDiscovered{
			Peripheral:      m.Peripheral,
			Service:         svc,
			Characteristics: append([]device.Characteristic(nil), m.characteristics[svc.UUID()]...),
		})
	}
	return events
}
