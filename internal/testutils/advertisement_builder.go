package testutils

import (
	"encoding/json"
	"fmt"

	"github.com/go-ble/ble"
	"github.com/srg/padctl/internal/testutils/mocks"
)

// AdvertisementBuilder builds mocked BLE advertisements for testing.
// Only explicitly set fields get mock expectations.
type AdvertisementBuilder struct {
	name        string
	address     string
	rssi        int
	connectable bool

	nameSet        bool
	addressSet     bool
	rssiSet        bool
	connectableSet bool
}

// NewAdvertisementBuilder creates a new AdvertisementBuilder.
func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{connectable: true}
}

// CreateMockAdvertisement is shorthand for the common name/address/RSSI case.
func CreateMockAdvertisement(name, address string, rssi int) *AdvertisementBuilder {
	return NewAdvertisementBuilder().WithName(name).WithAddress(address).WithRSSI(rssi)
}

func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.name = name
	b.nameSet = true
	return b
}

func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.address = addr
	b.addressSet = true
	return b
}

func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.rssi = rssi
	b.rssiSet = true
	return b
}

func (b *AdvertisementBuilder) WithConnectable(c bool) *AdvertisementBuilder {
	b.connectable = c
	b.connectableSet = true
	return b
}

// FromJSON fills builder fields from a JSON object with keys
// name, address, rssi and connectable. Panics on invalid JSON.
func (b *AdvertisementBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *AdvertisementBuilder {
	jsonStr := fmt.Sprintf(jsonStrFmt, args...)

	var fields struct {
		Name        *string `json:"name"`
		Address     *string `json:"address"`
		RSSI        *int    `json:"rssi"`
		Connectable *bool   `json:"connectable"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &fields); err != nil {
		panic(fmt.Sprintf("FromJSON: failed to unmarshal: %v", err))
	}

	if fields.Name != nil {
		b.WithName(*fields.Name)
	}
	if fields.Address != nil {
		b.WithAddress(*fields.Address)
	}
	if fields.RSSI != nil {
		b.WithRSSI(*fields.RSSI)
	}
	if fields.Connectable != nil {
		b.WithConnectable(*fields.Connectable)
	}
	return b
}

// Build creates a MockAdvertisement implementing ble.Advertisement.
func (b *AdvertisementBuilder) Build() *mocks.MockAdvertisement {
	adv := &mocks.MockAdvertisement{}

	if b.addressSet {
		addr := &mocks.MockAddr{}
		addr.On("String").Return(b.address)
		adv.On("Addr").Return(addr)
	}
	if b.nameSet {
		adv.On("LocalName").Return(b.name)
	}
	if b.rssiSet {
		adv.On("RSSI").Return(b.rssi)
	}
	if b.connectableSet {
		adv.On("Connectable").Return(b.connectable)
	}
	return adv
}

// BuildAll builds every builder into a slice usable as scan results.
func BuildAll(builders ...*AdvertisementBuilder) []ble.Advertisement {
	out := make([]ble.Advertisement, len(builders))
	for i, b := range builders {
		out[i] = b.Build()
	}
	return out
}
