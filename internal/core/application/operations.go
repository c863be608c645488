package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/vault/internal/core/ports"
	path "github.com/vulpemventures/vault/pkg/derivation-path"
	"github.com/vulpemventures/vault/pkg/descriptor"
)

func loggers(component string) (
	func(format string, a ...interface{}),
	func(err error, format string, a ...interface{}),
) {
	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("%s: %s", component, format)
		log.Debugf(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("%s: %s", component, format)
		log.WithError(err).Warnf(format, a...)
	}
	return logFn, warnFn
}

func listDevices(enumerator ports.DeviceEnumerator) Operation {
	return func(ctx context.Context, id uuid.UUID) Event {
		devices, err := enumerator.ListDevices(ctx)
		if err != nil {
			deviceErrors.WithLabelValues(opListDevices).Inc()
		}
		return DevicesListed{ID: id, Devices: devices, Err: err}
	}
}

// getExtendedPubkey requests the xpub at the given path and returns it as a
// key with origin info.
func getExtendedPubkey(
	device ports.HardwareWallet, derivationPath path.DerivationPath,
) Operation {
	return func(ctx context.Context, id uuid.UUID) Event {
		event := XpubImported{ID: id, Fingerprint: device.Fingerprint}
		xkey, err := device.Signer.GetExtendedPubkey(ctx, derivationPath)
		if err != nil {
			event.Err = err
			return event
		}
		event.Key, event.Err = descriptor.NewKey(&descriptor.KeyOrigin{
			Fingerprint: device.Fingerprint,
			Path:        derivationPath,
		}, xkey)
		return event
	}
}

func registerWallet(
	device ports.HardwareWallet, label, desc string,
) Operation {
	return func(ctx context.Context, id uuid.UUID) Event {
		token, err := device.Signer.RegisterWallet(ctx, label, desc)
		return WalletRegistered{
			ID: id, Fingerprint: device.Fingerprint, Token: token, Err: err,
		}
	}
}

// signerKey derives the key of the software signer at the given path.
func signerKey(
	signer ports.SoftwareSigner, derivationPath path.DerivationPath,
) (*descriptor.Key, error) {
	xkey, err := signer.GetExtendedPubkey(derivationPath)
	if err != nil {
		return nil, err
	}
	return descriptor.NewKey(&descriptor.KeyOrigin{
		Fingerprint: signer.Fingerprint(),
		Path:        derivationPath,
	}, xkey)
}

func policyPath(network descriptor.Network, account uint32) path.DerivationPath {
	return path.StandardPolicyPath(network.CoinType(), account)
}
