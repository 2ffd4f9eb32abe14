package goble

import (
	"github.com/go-ble/ble"
)

var propertyNames = []struct {
	flag ble.Property
	name string
}{
	{ble.CharBroadcast, "Broadcast"},
	{ble.CharRead, "Read"},
	{ble.CharWriteNR, "WriteWithoutResponse"},
	{ble.CharWrite, "Write"},
	{ble.CharNotify, "Notify"},
	{ble.CharIndicate, "Indicate"},
	{ble.CharSignedWrite, "AuthenticatedSignedWrites"},
	{ble.CharExtended, "ExtendedProperties"},
}

// PropertyNames returns the human-readable names of the flags set in p.
func PropertyNames(p ble.Property) []string {
	names := make([]string, 0, len(propertyNames))
	for _, pn := range propertyNames {
		if p&pn.flag != 0 {
			names = append(names, pn.name)
		}
	}
	return names
}

// useIndication reports whether a subscription must request indications
// because the characteristic cannot notify.
func useIndication(p ble.Property) bool {
	return p&ble.CharNotify == 0 && p&ble.CharIndicate != 0
}
