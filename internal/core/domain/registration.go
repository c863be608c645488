package domain

import (
	"github.com/vulpemventures/vault/pkg/descriptor"
)

// RegisteredDevice is a device that acknowledged a wallet policy. Token is
// the optional proof of registration returned by the device.
type RegisteredDevice struct {
	Fingerprint descriptor.Fingerprint
	Kind        string
	Token       []byte
}

// Registrations tracks the devices a policy has been registered on.
type Registrations struct {
	registered map[descriptor.Fingerprint]bool
	devices    []RegisteredDevice
}

func NewRegistrations() *Registrations {
	return &Registrations{
		registered: make(map[descriptor.Fingerprint]bool),
		devices:    make([]RegisteredDevice, 0),
	}
}

func (r *Registrations) IsRegistered(fingerprint descriptor.Fingerprint) bool {
	return r.registered[fingerprint]
}

// Add records the registration of a device. It returns false if the
// device was already registered.
func (r *Registrations) Add(device RegisteredDevice) bool {
	if r.registered[device.Fingerprint] {
		return false
	}
	r.registered[device.Fingerprint] = true
	if device.Token != nil {
		device.Token = append([]byte{}, device.Token...)
	}
	r.devices = append(r.devices, device)
	return true
}

// Devices returns the registered devices in registration order.
func (r *Registrations) Devices() []RegisteredDevice {
	devices := make([]RegisteredDevice, 0, len(r.devices))
	for _, d := range r.devices {
		if d.Token != nil {
			d.Token = append([]byte{}, d.Token...)
		}
		devices = append(devices, d)
	}
	return devices
}

// Fingerprints returns the fingerprints of the registered devices.
func (r *Registrations) Fingerprints() []descriptor.Fingerprint {
	fingerprints := make([]descriptor.Fingerprint, 0, len(r.devices))
	for _, d := range r.devices {
		fingerprints = append(fingerprints, d.Fingerprint)
	}
	return fingerprints
}

func (r *Registrations) Len() int {
	return len(r.devices)
}
