package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/padctl/internal/device"
)

// Advertisement wraps ble.Advertisement to implement device.Advertisement
type Advertisement struct {
	adv ble.Advertisement
}

func NewAdvertisement(adv ble.Advertisement) device.Advertisement {
	return &Advertisement{adv: adv}
}

func (a *Advertisement) LocalName() string { return a.adv.LocalName() }
func (a *Advertisement) Connectable() bool { return a.adv.Connectable() }
func (a *Advertisement) RSSI() int         { return a.adv.RSSI() }

func (a *Advertisement) Addr() string {
	if addr := a.adv.Addr(); addr != nil {
		return addr.String()
	}
	return ""
}
