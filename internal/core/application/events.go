package application

import (
	"github.com/google/uuid"
	"github.com/vulpemventures/vault/internal/core/ports"
	"github.com/vulpemventures/vault/pkg/descriptor"
)

// Event is the result of an asynchronous operation, delivered through the
// Loop. The set of events is closed: DevicesListed, XpubImported and
// WalletRegistered.
type Event interface {
	OperationID() uuid.UUID
	isEvent()
}

// DevicesListed is the result of a device enumeration.
type DevicesListed struct {
	ID      uuid.UUID
	Devices []ports.HardwareWallet
	Err     error
}

// XpubImported is the result of an extended public key request to a
// device.
type XpubImported struct {
	ID          uuid.UUID
	Fingerprint descriptor.Fingerprint
	Key         *descriptor.Key
	Err         error
}

// WalletRegistered is the result of a wallet registration on a device.
type WalletRegistered struct {
	ID          uuid.UUID
	Fingerprint descriptor.Fingerprint
	Token       []byte
	Err         error
}

func (e DevicesListed) OperationID() uuid.UUID    { return e.ID }
func (e XpubImported) OperationID() uuid.UUID     { return e.ID }
func (e WalletRegistered) OperationID() uuid.UUID { return e.ID }

func (DevicesListed) isEvent()    {}
func (XpubImported) isEvent()     {}
func (WalletRegistered) isEvent() {}
