package goble

import (
	"context"

	"github.com/go-ble/ble"
)

// Advertisement is the part of a go-ble advertisement the radio reports.
type Advertisement struct {
	Addr      string
	LocalName string
	RSSI      int
	Services  []string
}

// Device is the subset of ble.Device the radio drives.
type Device interface {
	Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error
	Dial(ctx context.Context, addr string) (Client, error)
	Stop() error
}

// Client is the subset of ble.Client the radio drives.
type Client interface {
	DiscoverServices(filter []ble.UUID) ([]*ble.Service, error)
	DiscoverCharacteristics(filter []ble.UUID, s *ble.Service) ([]*ble.Characteristic, error)
	DiscoverDescriptors(filter []ble.UUID, c *ble.Characteristic) ([]*ble.Descriptor, error)
	Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error
	WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error
	CancelConnection() error
	// Disconnected is closed when the link drops. It may be nil on platforms that
	// never report it.
	Disconnected() <-chan struct{}
}

// DeviceFactory creates the platform device (can be overridden in tests)
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = func() (Device, error) {
	dev, err := newPlatformDevice()
	if err != nil {
		return nil, err
	}
	return &bleDevice{dev: dev}, nil
}

// bleDevice adapts ble.Device to Device.
type bleDevice struct {
	dev ble.Device
}

func (d *bleDevice) Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error {
	return d.dev.Scan(ctx, allowDup, func(a ble.Advertisement) {
		adv := Advertisement{
			LocalName: a.LocalName(),
			RSSI:      a.RSSI(),
		}
		if a.Addr() != nil {
			adv.Addr = a.Addr().String()
		}
		for _, u := range a.Services() {
			adv.Services = append(adv.Services, u.String())
		}
		handler(adv)
	})
}

func (d *bleDevice) Dial(ctx context.Context, addr string) (Client, error) {
	c, err := d.dev.Dial(ctx, ble.NewAddr(addr))
	if err != nil {
		return nil, err
	}
	return &bleClient{Client: c}, nil
}

func (d *bleDevice) Stop() error {
	return d.dev.Stop()
}

// bleClient adapts ble.Client to Client.
type bleClient struct {
	ble.Client
}

func (c *bleClient) Disconnected() <-chan struct{} {
	if dc, ok := c.Client.(interface{ Disconnected() <-chan struct{} }); ok {
		return dc.Disconnected()
	}
	return nil
}
