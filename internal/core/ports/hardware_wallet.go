package ports

import (
	"context"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	path "github.com/vulpemventures/vault/pkg/derivation-path"
	"github.com/vulpemventures/vault/pkg/descriptor"
)

// DeviceStatus tells whether a connected device can be used.
type DeviceStatus int

const (
	DeviceSupported DeviceStatus = iota
	// DeviceLocked devices must be unlocked (pin, passphrase, pairing) before
	// being used.
	DeviceLocked
	DeviceUnsupported
)

func (s DeviceStatus) String() string {
	switch s {
	case DeviceSupported:
		return "supported"
	case DeviceLocked:
		return "locked"
	default:
		return "unsupported"
	}
}

// HardwareSigner is the capability set of a connected signing device.
type HardwareSigner interface {
	// GetExtendedPubkey returns the extended public key at the given path.
	GetExtendedPubkey(
		ctx context.Context, path path.DerivationPath,
	) (*hdkeychain.ExtendedKey, error)
	// RegisterWallet registers the descriptor on the device under the given
	// label. The returned token is device dependent and may be nil.
	RegisterWallet(ctx context.Context, label, descriptor string) ([]byte, error)
}

// HardwareWallet is a device found during enumeration. Signer and
// Fingerprint are set only for supported devices.
type HardwareWallet struct {
	Kind        string
	Model       string
	Fingerprint descriptor.Fingerprint
	Status      DeviceStatus
	Signer      HardwareSigner
}

func (hw HardwareWallet) IsSupported() bool {
	return hw.Status == DeviceSupported && hw.Signer != nil
}

// DeviceEnumerator lists the signing devices connected to the host.
type DeviceEnumerator interface {
	ListDevices(ctx context.Context) ([]HardwareWallet, error)
}
