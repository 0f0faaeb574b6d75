package goble

import (
	"github.com/go-ble/ble"

	"github.com/srg/photonctl/internal/device"
)

var propertyMap = []struct {
	ble ble.Property
	dev device.Properties
}{
	{ble.CharBroadcast, device.PropBroadcast},
	{ble.CharRead, device.PropRead},
	{ble.CharWriteNR, device.PropWriteWithoutResponse},
	{ble.CharWrite, device.PropWrite},
	{ble.CharNotify, device.PropNotify},
	{ble.CharIndicate, device.PropIndicate},
	{ble.CharSignedWrite, device.PropSignedWrite},
	{ble.CharExtended, device.PropExtended},
}

// NewProperties converts go-ble property flags.
func NewProperties(p ble.Property) device.Properties {
	var props device.Properties
	for _, m := range propertyMap {
		if p&m.ble != 0 {
			props |= m.dev
		}
	}
	return props
}
