package testutils

import (
	"encoding/json"
	"fmt"
	"strings"

	blelib "github.com/go-ble/ble"
	"github.com/srg/padctl/internal/testutils/mocks"
	"github.com/stretchr/testify/mock"
)

// CharacteristicConfig represents a BLE characteristic configuration for mocking
type CharacteristicConfig struct {
	UUID       string `json:"uuid"`
	Properties string `json:"properties,omitempty"` // e.g., "write,notify"
}

// ServiceConfig represents a BLE service configuration for mocking
type ServiceConfig struct {
	UUID            string                 `json:"uuid"`
	Characteristics []CharacteristicConfig `json:"characteristics,omitempty"`
}

// DeviceProfileConfig represents the complete device profile for mocking
type DeviceProfileConfig struct {
	Services []ServiceConfig `json:"services"`
}

// PeripheralDeviceBuilder builds a mocked GATT client serving a configured profile
type PeripheralDeviceBuilder struct {
	profile DeviceProfileConfig
}

// NewPeripheralDeviceBuilder creates a new peripheral device builder
func NewPeripheralDeviceBuilder() *PeripheralDeviceBuilder {
	return &PeripheralDeviceBuilder{}
}

// WalkingPadProfile returns a builder preloaded with the pad's FE00 service.
func WalkingPadProfile() *PeripheralDeviceBuilder {
	return NewPeripheralDeviceBuilder().
		WithService("fe00").
		WithCharacteristic("fe01", "notify").
		WithCharacteristic("fe02", "write,write-without-response")
}

// WithService adds a service to the device profile
func (b *PeripheralDeviceBuilder) WithService(uuid string) *PeripheralDeviceBuilder {
	b.profile.Services = append(b.profile.Services, ServiceConfig{UUID: uuid})
	return b
}

// WithCharacteristic adds a characteristic to the last added service
func (b *PeripheralDeviceBuilder) WithCharacteristic(uuid, properties string) *PeripheralDeviceBuilder {
	if len(b.profile.Services) == 0 {
		panic("WithCharacteristic: no service added yet, call WithService first")
	}

	last := len(b.profile.Services) - 1
	b.profile.Services[last].Characteristics = append(b.profile.Services[last].Characteristics,
		CharacteristicConfig{UUID: uuid, Properties: properties})
	return b
}

// FromJSON fills the device profile from JSON
func (b *PeripheralDeviceBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *PeripheralDeviceBuilder {
	jsonStr := fmt.Sprintf(jsonStrFmt, args...)

	var config DeviceProfileConfig
	if err := json.Unmarshal([]byte(jsonStr), &config); err != nil {
		panic(fmt.Sprintf("PeripheralDeviceBuilder.FromJSON: failed to unmarshal: %v", err))
	}

	b.profile = config
	return b
}

// parseCharacteristicProperties converts a comma separated property list to ble.Property flags
func parseCharacteristicProperties(props string) blelib.Property {
	if props == "" {
		return blelib.CharRead | blelib.CharWrite | blelib.CharNotify // default
	}

	var property blelib.Property
	for _, p := range strings.Split(props, ",") {
		switch strings.TrimSpace(p) {
		case "read":
			property |= blelib.CharRead
		case "write":
			property |= blelib.CharWrite
		case "write-without-response":
			property |= blelib.CharWriteNR
		case "notify":
			property |= blelib.CharNotify
		case "indicate":
			property |= blelib.CharIndicate
		default:
			panic(fmt.Sprintf("unknown characteristic property %q", p))
		}
	}
	return property
}

// BuildProfile creates the ble.Profile returned by DiscoverProfile
func (b *PeripheralDeviceBuilder) BuildProfile() *blelib.Profile {
	profile := &blelib.Profile{}
	for _, svcConfig := range b.profile.Services {
		svc := &blelib.Service{UUID: blelib.MustParse(svcConfig.UUID)}
		for _, charConfig := range svcConfig.Characteristics {
			svc.Characteristics = append(svc.Characteristics, &blelib.Characteristic{
				UUID:     blelib.MustParse(charConfig.UUID),
				Property: parseCharacteristicProperties(charConfig.Properties),
			})
		}
		profile.Services = append(profile.Services, svc)
	}
	return profile
}

// Build creates a mocked GATT client serving the configured profile.
// Discovery, subscription, unsubscription and cancellation succeed; write
// expectations are left to the test.
func (b *PeripheralDeviceBuilder) Build() (*mocks.MockGATTClient, *blelib.Profile) {
	client := mocks.NewMockGATTClient()
	profile := b.BuildProfile()

	client.On("DiscoverProfile", true).Return(profile, nil).Maybe()
	client.On("CancelConnection").Return(nil).Maybe()

	for _, svc := range profile.Services {
		for _, char := range svc.Characteristics {
			client.On("Subscribe", char, mock.Anything, mock.Anything).Return(nil).Maybe()
			client.On("Unsubscribe", char, mock.Anything).Return(nil).Maybe()
		}
	}
	return client, profile
}

// FindCharacteristic returns the characteristic of profile with the given short UUID.
func FindCharacteristic(profile *blelib.Profile, uuid string) *blelib.Characteristic {
	want := blelib.MustParse(uuid)
	for _, svc := range profile.Services {
		for _, c := range svc.Characteristics {
			if c.UUID.Equal(want) {
				return c
			}
		}
	}
	panic(fmt.Sprintf("characteristic %s not in profile", uuid))
}
