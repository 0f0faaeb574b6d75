package goble

import (
	"context"
	"sync"

	"github.com/go-ble/ble"
	"github.com/stretchr/testify/mock"
)

type MockDevice struct {
	mock.Mock
	ads []Advertisement
}

func (m *MockDevice) Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error {
	args := m.Called(allowDup)
	for _, adv := range m.ads {
		handler(adv)
	}
	// A failing scan ends on its own, like an adapter reset.
	if err := args.Error(0); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func (m *MockDevice) Dial(_ context.Context, addr string) (Client, error) {
	args := m.Called(addr)
	client, _ := args.Get(0).(Client)
	return client, args.Error(1)
}

func (m *MockDevice) Stop() error {
	return m.Called().Error(0)
}

type MockClient struct {
	mock.Mock

	mu           sync.Mutex
	handlers     map[*ble.Characteristic]ble.NotificationHandler
	disconnected chan struct{}
}

func NewMockClient() *MockClient {
	return &MockClient{
		handlers:     make(map[*ble.Characteristic]ble.NotificationHandler),
		disconnected: make(chan struct{}),
	}
}

func (m *MockClient) DiscoverServices(filter []ble.UUID) ([]*ble.Service, error) {
	args := m.Called(filter)
	svcs, _ := args.Get(0).([]*ble.Service)
	return svcs, args.Error(1)
}

func (m *MockClient) DiscoverCharacteristics(filter []ble.UUID, s *ble.Service) ([]*ble.Characteristic, error) {
	args := m.Called(filter, s)
	chars, _ := args.Get(0).([]*ble.Characteristic)
	return chars, args.Error(1)
}

func (m *MockClient) DiscoverDescriptors(filter []ble.UUID, c *ble.Characteristic) ([]*ble.Descriptor, error) {
	args := m.Called(filter, c)
	descs, _ := args.Get(0).([]*ble.Descriptor)
	return descs, args.Error(1)
}

func (m *MockClient) Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error {
	args := m.Called(c, ind)
	if args.Error(0) == nil {
		m.mu.Lock()
		m.handlers[c] = h
		m.mu.Unlock()
	}
	return args.Error(0)
}

func (m *MockClient) WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error {
	return m.Called(c, value, noRsp).Error(0)
}

func (m *MockClient) CancelConnection() error {
	return m.Called().Error(0)
}

func (m *MockClient) Disconnected() <-chan struct{} {
	return m.disconnected
}

// Notify invokes the notification handler registered for c.
func (m *MockClient) Notify(c *ble.Characteristic, data []byte) bool {
	m.mu.Lock()
	h := m.handlers[c]
	m.mu.Unlock()
	if h == nil {
		return false
	}
	h(data)
	return true
}

// Drop simulates the peripheral going away.
func (m *MockClient) Drop() {
	close(m.disconnected)
}
