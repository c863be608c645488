package ports

import (
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	path "github.com/vulpemventures/vault/pkg/derivation-path"
	"github.com/vulpemventures/vault/pkg/descriptor"
)

// SoftwareSigner is a local signer deriving keys from a fixed seed bound to
// the current network.
type SoftwareSigner interface {
	Fingerprint() descriptor.Fingerprint
	GetExtendedPubkey(path path.DerivationPath) (*hdkeychain.ExtendedKey, error)
	SetNetwork(network descriptor.Network)
	Network() descriptor.Network
}
