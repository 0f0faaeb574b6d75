package device

// Radio is the platform BLE central. Every operation returns as soon as the request
// has been issued; outcomes arrive later as Events on the sink passed to Open.
// A non-nil error means the request could not be issued at all.
type Radio interface {
	// Open powers the radio up and starts delivering events to sink.
	// A PowerChanged event reports when the radio is usable.
	Open(sink EventSink) error
	// Close stops scanning, drops any connection and stops event delivery.
	Close() error

	// Scan starts discovery of peripherals advertising any of the services.
	Scan(services []string) error
	StopScan() error
	Connect(id string) error

	DiscoverServices(p Peripheral, services []string) error
	DiscoverCharacteristics(p Peripheral, svc Service, characteristics []string) error
	Subscribe(p Peripheral, c Characteristic) error
	Write(p Peripheral, c Characteristic, data []byte, mode WriteMode) error
}

// EventSink receives radio events. Implementations must not block for long;
// the radio may call it from its own goroutines.
type EventSink func(Event)

// Event is one asynchronous outcome reported by a Radio.
// The set of variants is closed: only this package defines them.
type Event interface {
	radioEvent()
}

// PowerChanged reports the radio becoming usable or unusable.
type PowerChanged struct {
	On bool
}

// Discovered reports an advertisement from a peripheral matching the scan filter.
type Discovered struct {
	ID   string
	Name string
	RSSI int
}

// Connected reports an established connection.
type Connected struct {
	Peripheral Peripheral
}

// ConnectFailed reports a connection attempt that did not succeed.
type ConnectFailed struct {
	ID  string
	Err error
}

// Disconnected reports the loss of a connection. Err is nil for a local disconnect.
type Disconnected struct {
	Peripheral Peripheral
	Err        error
}

// ServicesDiscovered carries the result of DiscoverServices.
type ServicesDiscovered struct {
	Peripheral Peripheral
	Services   []Service
	Err        error
}

// CharacteristicsDiscovered carries the result of DiscoverCharacteristics.
type CharacteristicsDiscovered struct {
	Peripheral      Peripheral
	Service         Service
	Characteristics []Characteristic
	Err             error
}

// Subscribed carries the result of Subscribe.
type Subscribed struct {
	Peripheral     Peripheral
	Characteristic Characteristic
	Err            error
}

// Notified carries a value pushed by the peripheral. Value is owned by the receiver.
type Notified struct {
	Peripheral     Peripheral
	Characteristic Characteristic
	Value          []byte
}

// WriteCompleted carries the result of Write.
type WriteCompleted struct {
	Peripheral     Peripheral
	Characteristic Characteristic
	Err            error
}

func (PowerChanged) radioEvent()              {}
func (Discovered) radioEvent()                {}
func (Connected) radioEvent()                 {}
func (ConnectFailed) radioEvent()             {}
func (Disconnected) radioEvent()              {}
func (ServicesDiscovered) radioEvent()        {}
func (CharacteristicsDiscovered) radioEvent() {}
func (Subscribed) radioEvent()                {}
func (Notified) radioEvent()                  {}
func (WriteCompleted) radioEvent()            {}
