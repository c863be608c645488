package hotsigner

import (
	"fmt"
	"strings"
	"sync"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	tsbip39 "github.com/tyler-smith/go-bip39"
	"github.com/vulpemventures/go-bip39"
	path "github.com/vulpemventures/vault/pkg/derivation-path"
	"github.com/vulpemventures/vault/pkg/descriptor"
)

var (
	ErrInvalidEntropySize = fmt.Errorf("entropy size must be 128 or 256")
	ErrInvalidMnemonic    = fmt.Errorf("mnemonic is invalid")
	ErrMissingPath        = fmt.Errorf("missing derivation path")
)

type NewMnemonicArgs struct {
	EntropySize uint32
}

func (a NewMnemonicArgs) validate() error {
	if a.EntropySize > 0 {
		if a.EntropySize != 128 && a.EntropySize != 256 {
			return ErrInvalidEntropySize
		}
	}
	return nil
}

// NewMnemonic returns a new mnemonic as a list of words:
//   - EntropySize: 256 -> 24-words mnemonic.
//   - EntropySize: 128 -> 12-words mnemonic.
func NewMnemonic(args NewMnemonicArgs) ([]string, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}
	if args.EntropySize == 0 {
		args.EntropySize = 256
	}

	entropy, err := tsbip39.NewEntropy(int(args.EntropySize))
	if err != nil {
		return nil, err
	}
	mnemonic, err := tsbip39.NewMnemonic(entropy)
	if err != nil {
		return nil, err
	}
	return strings.Split(mnemonic, " "), nil
}

type NewSignerArgs struct {
	// Mnemonic is generated if empty.
	Mnemonic []string
	Network  descriptor.Network
}

func (a NewSignerArgs) validate() error {
	if !a.Network.IsValid() {
		return descriptor.ErrUnknownNetwork
	}
	if len(a.Mnemonic) > 0 && !bip39.IsMnemonicValid(strings.Join(a.Mnemonic, " ")) {
		return ErrInvalidMnemonic
	}
	return nil
}

// Signer is a software signer holding its seed in memory.
type Signer struct {
	mnemonic    []string
	seed        []byte
	fingerprint descriptor.Fingerprint

	lock    sync.RWMutex
	network descriptor.Network
}

func NewSigner(args NewSignerArgs) (*Signer, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}

	mnemonic := args.Mnemonic
	if len(mnemonic) <= 0 {
		var err error
		if mnemonic, err = NewMnemonic(NewMnemonicArgs{}); err != nil {
			return nil, err
		}
	}

	seed := bip39.NewSeed(strings.Join(mnemonic, " "), "")
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	fingerprint, err := descriptor.FingerprintFromKey(master)
	if err != nil {
		return nil, err
	}

	return &Signer{
		mnemonic:    append([]string{}, mnemonic...),
		seed:        seed,
		fingerprint: fingerprint,
		network:     args.Network,
	}, nil
}

// Mnemonic returns a copy of the words of the signer.
func (s *Signer) Mnemonic() []string {
	return append([]string{}, s.mnemonic...)
}

// Fingerprint returns the fingerprint of the master key, which doesn't
// depend on the network.
func (s *Signer) Fingerprint() descriptor.Fingerprint {
	return s.fingerprint
}

// GetExtendedPubkey derives the extended public key at the given path,
// encoded for the current network.
func (s *Signer) GetExtendedPubkey(
	derivationPath path.DerivationPath,
) (*hdkeychain.ExtendedKey, error) {
	if len(derivationPath) <= 0 {
		return nil, ErrMissingPath
	}

	master, err := hdkeychain.NewMaster(s.seed, s.Network().KeyParams())
	if err != nil {
		return nil, err
	}
	xkey := master
	for _, step := range derivationPath {
		if xkey, err = xkey.Derive(step); err != nil {
			return nil, err
		}
	}
	return xkey.Neuter()
}

func (s *Signer) SetNetwork(network descriptor.Network) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.network = network
}

func (s *Signer) Network() descriptor.Network {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.network
}
