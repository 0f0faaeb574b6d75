// Package goble implements device.Radio on top of github.com/go-ble/ble.
//
// Every request is started on its own labelled goroutine or queued on the
// connection's GATT worker, and its outcome is delivered to the sink as an event.
// GATT requests on one connection run one at a time in the order they were
// issued, so completions arrive in request order.
package goble

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/srg/photonctl/internal/device"
	"github.com/srg/photonctl/internal/groutine"
	"github.com/srg/photonctl/internal/schema"
)

// DefaultQueueSize bounds the GATT requests waiting on one connection.
const DefaultQueueSize = 64

// ErrQueueFull is returned when a connection has too many GATT requests pending.
var ErrQueueFull = errors.New("gatt request queue full")

// Radio is the live device.Radio.
type Radio struct {
	logger *logrus.Logger

	mu         sync.Mutex
	sink       device.EventSink
	dev        Device
	ctx        context.Context
	cancel     context.CancelFunc
	scanCancel context.CancelFunc
	scanCtx    context.Context
	names      map[string]string
	conn       *peripheral
}

var _ device.Radio = (*Radio)(nil)

// NewRadio creates a radio. The platform device is created by Open.
func NewRadio(logger *logrus.Logger) *Radio {
	if logger == nil {
		logger = logrus.New()
	}
	return &Radio{
		logger: logger,
		names:  make(map[string]string),
	}
}

// Open creates the platform device and reports it powered on.
func (r *Radio) Open(sink device.EventSink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dev != nil {
		return device.ErrAlreadyConnected
	}
	dev, err := DeviceFactory()
	if err != nil {
		r.logger.WithField("error", err).Error("Failed to create BLE device")
		return fmt.Errorf("failed to create BLE device: %w", NormalizeError(err))
	}

	r.dev = dev
	r.sink = sink
	r.ctx, r.cancel = context.WithCancel(context.Background())

	// go-ble refuses to create a device while the adapter is off.
	r.goEmit("radio-power", func(context.Context) device.Event {
		return device.PowerChanged{On: true}
	})
	return nil
}

// Close stops scanning, drops the connection and stops event delivery.
func (r *Radio) Close() error {
	r.mu.Lock()
	if r.dev == nil {
		r.mu.Unlock()
		return nil
	}
	dev, conn := r.dev, r.conn
	if r.scanCancel != nil {
		r.scanCancel()
		r.scanCancel, r.scanCtx = nil, nil
	}
	r.cancel()
	r.dev, r.conn, r.sink = nil, nil, nil
	r.mu.Unlock()

	var errs []error
	if conn != nil {
		conn.stop()
		if err := conn.client.CancelConnection(); err != nil {
			errs = append(errs, fmt.Errorf("failed to cancel connection: %w", NormalizeError(err)))
		}
	}
	if err := dev.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop BLE device: %w", err))
	}
	return errors.Join(errs...)
}

// Scan reports advertisements of peripherals offering any of services.
// An empty list reports every peripheral.
func (r *Radio) Scan(services []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dev == nil {
		return device.ErrNotInitialized
	}
	if r.scanCancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(r.ctx)
	r.scanCancel = cancel
	r.scanCtx = ctx
	dev := r.dev
	filter := append([]string(nil), services...)

	groutine.Go(ctx, r.logger, "radio-scan", func(ctx context.Context) {
		err := dev.Scan(ctx, false, func(adv Advertisement) {
			if !advertises(adv, filter) {
				return
			}
			r.mu.Lock()
			if adv.LocalName != "" {
				r.names[adv.Addr] = adv.LocalName
			}
			r.mu.Unlock()
			r.emit(device.Discovered{ID: adv.Addr, Name: adv.LocalName, RSSI: adv.RSSI})
		})
		if err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
			r.logger.WithField("error", NormalizeError(err)).Warn("Scan ended with error")
		}

		// A scan that ended on its own must not block the next Scan.
		r.mu.Lock()
		if r.scanCtx == ctx {
			r.scanCancel = nil
			r.scanCtx = nil
		}
		r.mu.Unlock()
		cancel()
	})
	return nil
}

// StopScan cancels a running scan.
func (r *Radio) StopScan() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scanCancel != nil {
		r.scanCancel()
		r.scanCancel = nil
		r.scanCtx = nil
	}
	return nil
}

// Connect dials the peripheral with the given address.
func (r *Radio) Connect(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dev == nil {
		return device.ErrNotInitialized
	}
	if r.conn != nil {
		return device.ErrAlreadyConnected
	}
	dev := r.dev

	groutine.Go(r.ctx, r.logger, "radio-connect", func(ctx context.Context) {
		r.logger.WithField("peripheral", id).Debug("Dialing BLE device...")
		client, err := dev.Dial(ctx, id)
		if err != nil {
			r.emit(device.ConnectFailed{ID: id, Err: NormalizeError(err)})
			return
		}

		r.mu.Lock()
		if r.dev == nil || r.conn != nil {
			r.mu.Unlock()
			_ = client.CancelConnection()
			return
		}
		p := newPeripheral(id, r.names[id], client)
		r.conn = p
		r.mu.Unlock()

		groutine.Go(ctx, r.logger, "radio-gatt", func(context.Context) { p.work() })
		groutine.Go(ctx, r.logger, "radio-link-monitor", func(ctx context.Context) { r.monitor(ctx, p) })
		r.emit(device.Connected{Peripheral: p})
	})
	return nil
}

func (r *Radio) monitor(ctx context.Context, p *peripheral) {
	select {
	case <-p.client.Disconnected():
	case <-p.done:
		return
	case <-ctx.Done():
		return
	}

	r.mu.Lock()
	if r.conn == p {
		r.conn = nil
	}
	r.mu.Unlock()
	p.stop()

	r.logger.WithField("peripheral", p.id).Warn("BLE link reported disconnection")
	r.emit(device.Disconnected{Peripheral: p, Err: device.ErrNotConnected})
}

// DiscoverServices looks up the given services on the connected peripheral.
func (r *Radio) DiscoverServices(p device.Peripheral, services []string) error {
	conn, err := r.current(p)
	if err != nil {
		return err
	}
	filter, err := parseUUIDs(services)
	if err != nil {
		return err
	}

	return conn.enqueue(func() {
		found, err := conn.client.DiscoverServices(filter)
		ev := device.ServicesDiscovered{Peripheral: conn, Err: NormalizeError(err)}
		for _, s := range found {
			ev.Services = append(ev.Services, &service{raw: s})
		}
		r.emit(ev)
	})
}

// DiscoverCharacteristics looks up the given characteristics of svc.
func (r *Radio) DiscoverCharacteristics(p device.Peripheral, svc device.Service, characteristics []string) error {
	conn, err := r.current(p)
	if err != nil {
		return err
	}
	s, ok := svc.(*service)
	if !ok {
		return fmt.Errorf("service %s was not discovered by this radio", svc.UUID())
	}
	filter, err := parseUUIDs(characteristics)
	if err != nil {
		return err
	}

	return conn.enqueue(func() {
		found, err := conn.client.DiscoverCharacteristics(filter, s.raw)
		ev := device.CharacteristicsDiscovered{Peripheral: conn, Service: svc, Err: NormalizeError(err)}
		for _, c := range found {
			ev.Characteristics = append(ev.Characteristics, &characteristic{raw: c})
		}
		r.emit(ev)
	})
}

// Subscribe enables notifications (or indications) of c.
func (r *Radio) Subscribe(p device.Peripheral, c device.Characteristic) error {
	conn, err := r.current(p)
	if err != nil {
		return err
	}
	ch, ok := c.(*characteristic)
	if !ok {
		return fmt.Errorf("characteristic %s was not discovered by this radio", c.UUID())
	}

	return conn.enqueue(func() {
		if ch.raw.CCCD == nil {
			if _, err := conn.client.DiscoverDescriptors(nil, ch.raw); err != nil {
				r.logger.WithFields(logrus.Fields{
					"char_uuid": ch.UUID(),
					"error":     err,
				}).Debug("Descriptor discovery failed")
			}
		}

		props := ch.Properties()
		indicate := props.Has(device.PropIndicate) && !props.Has(device.PropNotify)
		err := conn.client.Subscribe(ch.raw, indicate, func(data []byte) {
			r.emit(device.Notified{
				Peripheral:     conn,
				Characteristic: ch,
				Value:          append([]byte(nil), data...),
			})
		})
		r.emit(device.Subscribed{Peripheral: conn, Characteristic: ch, Err: NormalizeError(err)})
	})
}

// Write sends data to c.
func (r *Radio) Write(p device.Peripheral, c device.Characteristic, data []byte, mode device.WriteMode) error {
	conn, err := r.current(p)
	if err != nil {
		return err
	}
	ch, ok := c.(*characteristic)
	if !ok {
		return fmt.Errorf("characteristic %s was not discovered by this radio", c.UUID())
	}
	payload := append([]byte(nil), data...)

	return conn.enqueue(func() {
		err := conn.client.WriteCharacteristic(ch.raw, payload, mode == device.WriteWithoutResponse)
		r.emit(device.WriteCompleted{Peripheral: conn, Characteristic: ch, Err: NormalizeError(err)})
	})
}

func (r *Radio) current(p device.Peripheral) (*peripheral, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dev == nil {
		return nil, device.ErrNotInitialized
	}
	conn, ok := p.(*peripheral)
	if !ok || conn != r.conn {
		return nil, device.ErrNotConnected
	}
	return conn, nil
}

func (r *Radio) emit(ev device.Event) {
	r.mu.Lock()
	sink := r.sink
	r.mu.Unlock()
	if sink != nil {
		sink(ev)
	}
}

func (r *Radio) goEmit(name string, fn func(context.Context) device.Event) {
	groutine.Go(r.ctx, r.logger, name, func(ctx context.Context) {
		r.emit(fn(ctx))
	})
}

func advertises(adv Advertisement, services []string) bool {
	if len(services) == 0 {
		return true
	}
	for _, have := range adv.Services {
		for _, want := range services {
			if schema.SameUUID(have, want) {
				return true
			}
		}
	}
	return false
}

func parseUUIDs(ids []string) ([]ble.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	out := make([]ble.UUID, 0, len(ids))
	for _, id := range ids {
		u, err := ble.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid UUID %q: %w", id, err)
		}
		out = append(out, u)
	}
	return out, nil
}
