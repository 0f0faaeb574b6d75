package goble

import (
	"sync"

	"github.com/go-ble/ble"

	"github.com/srg/photonctl/internal/device"
)

// peripheral is the connection handle handed to the session. It owns the GATT
// worker that serializes requests on the link.
type peripheral struct {
	id     string
	name   string
	client Client

	ops      chan func()
	done     chan struct{}
	stopOnce sync.Once
}

func newPeripheral(id, name string, client Client) *peripheral {
	return &peripheral{
		id:     id,
		name:   name,
		client: client,
		ops:    make(chan func(), DefaultQueueSize),
		done:   make(chan struct{}),
	}
}

func (p *peripheral) ID() string   { return p.id }
func (p *peripheral) Name() string { return p.name }

func (p *peripheral) enqueue(op func()) error {
	select {
	case <-p.done:
		return device.ErrNotConnected
	default:
	}
	select {
	case p.ops <- op:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *peripheral) work() {
	for {
		select {
		case <-p.done:
			return
		case op := <-p.ops:
			op()
		}
	}
}

func (p *peripheral) stop() {
	p.stopOnce.Do(func() { close(p.done) })
}

type service struct {
	raw *ble.Service
}

func (s *service) UUID() string { return s.raw.UUID.String() }

type characteristic struct {
	raw *ble.Characteristic
}

func (c *characteristic) UUID() string { return c.raw.UUID.String() }

func (c *characteristic) Properties() device.Properties {
	return NewProperties(c.raw.Property)
}
