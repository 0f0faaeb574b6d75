package device

import "strings"

// Properties is the characteristic property bit set as advertised by the peripheral.
// Bit values follow the GATT Characteristic Properties field.
type Properties uint8

const (
	PropBroadcast            Properties = 0x01
	PropRead                 Properties = 0x02
	PropWriteWithoutResponse Properties = 0x04
	PropWrite                Properties = 0x08
	PropNotify               Properties = 0x10
	PropIndicate             Properties = 0x20
	PropSignedWrite          Properties = 0x40
	PropExtended             Properties = 0x80
)

var propertyNames = []struct {
	prop Properties
	name string
}{
	{PropBroadcast, "Broadcast"},
	{PropRead, "Read"},
	{PropWriteWithoutResponse, "WriteWithoutResponse"},
	{PropWrite, "Write"},
	{PropNotify, "Notify"},
	{PropIndicate, "Indicate"},
	{PropSignedWrite, "AuthenticatedSignedWrites"},
	{PropExtended, "ExtendedProperties"},
}

// Has reports whether every bit of q is set.
func (p Properties) Has(q Properties) bool {
	return p&q == q
}

// CanNotify reports notify or indicate support.
func (p Properties) CanNotify() bool {
	return p&(PropNotify|PropIndicate) != 0
}

// PreferredWriteMode picks write-without-response when the characteristic advertises it,
// write-with-response otherwise.
func (p Properties) PreferredWriteMode() WriteMode {
	if p.Has(PropWriteWithoutResponse) {
		return WriteWithoutResponse
	}
	return WriteWithResponse
}

// String returns the property names joined by commas, e.g. "Read,Notify".
func (p Properties) String() string {
	var names []string
	for _, pn := range propertyNames {
		if p.Has(pn.prop) {
			names = append(names, pn.name)
		}
	}
	return strings.Join(names, ",")
}

// WriteMode selects between acknowledged and unacknowledged GATT writes.
type WriteMode int

const (
	WriteWithResponse WriteMode = iota
	WriteWithoutResponse
)

func (m WriteMode) String() string {
	if m == WriteWithoutResponse {
		return "withoutResponse"
	}
	return "withResponse"
}
