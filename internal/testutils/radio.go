package testutils

import (
	"fmt"
	"strings"
	"sync"

	"github.com/srg/photonctl/internal/device"
)

// Radio operation names recorded by FakeRadio.
const (
	OpOpen                    = "Open"
	OpClose                   = "Close"
	OpScan                    = "Scan"
	OpStopScan                = "StopScan"
	OpConnect                 = "Connect"
	OpDiscoverServices        = "DiscoverServices"
	OpDiscoverCharacteristics = "DiscoverCharacteristics"
	OpSubscribe               = "Subscribe"
	OpWrite                   = "Write"
)

// RadioCall is one request observed by FakeRadio.
type RadioCall struct {
	Op             string
	Peripheral     string
	Service        string
	Characteristic string
	UUIDs          []string
	Data           []byte
	Mode           device.WriteMode
}

// FakeRadio is a device.Radio that records requests and never produces events on its
// own. Tests drive outcomes explicitly with Emit.
type FakeRadio struct {
	mu       sync.Mutex
	sink     device.EventSink
	calls    []RadioCall
	failures map[string]error
}

var _ device.Radio = (*FakeRadio)(nil)

// NewFakeRadio creates a radio that accepts every request.
func NewFakeRadio() *FakeRadio {
	return &FakeRadio{failures: make(map[string]error)}
}

// FailOn makes every later op request return err. A nil err clears the failure.
func (r *FakeRadio) FailOn(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failures, op)
		return
	}
	r.failures[op] = err
}

func (r *FakeRadio) record(call RadioCall) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	return r.failures[call.Op]
}

func (r *FakeRadio) Open(sink device.EventSink) error {
	r.mu.Lock()
	r.sink = sink
	r.mu.Unlock()
	return r.record(RadioCall{Op: OpOpen})
}

func (r *FakeRadio) Close() error {
	return r.record(RadioCall{Op: OpClose})
}

func (r *FakeRadio) Scan(services []string) error {
	return r.record(RadioCall{Op: OpScan, UUIDs: append([]string(nil), services...)})
}

func (r *FakeRadio) StopScan() error {
	return r.record(RadioCall{Op: OpStopScan})
}

func (r *FakeRadio) Connect(id string) error {
	return r.record(RadioCall{Op: OpConnect, Peripheral: id})
}

func (r *FakeRadio) DiscoverServices(p device.Peripheral, services []string) error {
	return r.record(RadioCall{Op: OpDiscoverServices, Peripheral: p.ID(), UUIDs: append([]string(nil), services...)})
}

func (r *FakeRadio) DiscoverCharacteristics(p device.Peripheral, svc device.Service, characteristics []string) error {
	return r.record(RadioCall{
		Op:         OpDiscoverCharacteristics,
		Peripheral: p.ID(),
		Service:    svc.UUID(),
		UUIDs:      append([]string(nil), characteristics...),
	})
}

func (r *FakeRadio) Subscribe(p device.Peripheral, c device.Characteristic) error {
	return r.record(RadioCall{Op: OpSubscribe, Peripheral: p.ID(), Characteristic: c.UUID()})
}

func (r *FakeRadio) Write(p device.Peripheral, c device.Characteristic, data []byte, mode device.WriteMode) error {
	return r.record(RadioCall{
		Op:             OpWrite,
		Peripheral:     p.ID(),
		Characteristic: c.UUID(),
		Data:           append([]byte(nil), data...),
		Mode:           mode,
	})
}

// Emit delivers ev to the sink registered by Open. It panics if Open was never called.
func (r *FakeRadio) Emit(ev device.Event) {
	r.mu.Lock()
	sink := r.sink
	r.mu.Unlock()
	if sink == nil {
		panic("FakeRadio.Emit: radio is not open")
	}
	sink(ev)
}

// IsOpen reports whether Open has been called.
func (r *FakeRadio) IsOpen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sink != nil
}

// Calls returns the recorded requests for op, or all requests when op is empty.
func (r *FakeRadio) Calls(op string) []RadioCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []RadioCall
	for _, c := range r.calls {
		if op == "" || c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// LastCall returns the most recent request for op.
func (r *FakeRadio) LastCall(op string) (RadioCall, bool) {
	calls := r.Calls(op)
	if len(calls) == 0 {
		return RadioCall{}, false
	}
	return calls[len(calls)-1], true
}

// Reset forgets recorded requests. Failures and the sink are kept.
func (r *FakeRadio) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// FakePeripheral is a device.Peripheral with fixed identity.
type FakePeripheral struct {
	id, name string
}

// NewPeripheral creates a peripheral handle.
func NewPeripheral(id, name string) *FakePeripheral {
	return &FakePeripheral{id: id, name: name}
}

func (p *FakePeripheral) ID() string   { return p.id }
func (p *FakePeripheral) Name() string { return p.name }

// FakeService is a device.Service handle.
type FakeService struct {
	uuid string
}

func (s *FakeService) UUID() string { return s.uuid }

// FakeCharacteristic is a device.Characteristic handle.
type FakeCharacteristic struct {
	uuid  string
	props device.Properties
}

// NewCharacteristic creates a characteristic handle.
func NewCharacteristic(uuid string, props device.Properties) *FakeCharacteristic {
	return &FakeCharacteristic{uuid: uuid, props: props}
}

func (c *FakeCharacteristic) UUID() string                 { return c.uuid }
func (c *FakeCharacteristic) Properties() device.Properties { return c.props }

var propertyTokens = map[string]device.Properties{
	"broadcast":            device.PropBroadcast,
	"read":                 device.PropRead,
	"writewithoutresponse": device.PropWriteWithoutResponse,
	"write":                device.PropWrite,
	"notify":               device.PropNotify,
	"indicate":             device.PropIndicate,
	"signedwrite":          device.PropSignedWrite,
	"extended":             device.PropExtended,
}

// ParseProperties converts a list such as "read,notify" into property flags.
// Unknown tokens panic; they are always a typo in a test.
func ParseProperties(props string) device.Properties {
	var p device.Properties
	for _, tok := range strings.Split(props, ",") {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" {
			continue
		}
		flag, ok := propertyTokens[tok]
		if !ok {
			panic(fmt.Sprintf("ParseProperties: unknown property %q", tok))
		}
		p |= flag
	}
	return p
}
