package application_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/vault/internal/core/application"
	"github.com/vulpemventures/vault/internal/core/ports"
	path "github.com/vulpemventures/vault/pkg/derivation-path"
	"github.com/vulpemventures/vault/pkg/descriptor"
)

const eventTimeout = 5 * time.Second

// ports.DeviceEnumerator
type mockEnumerator struct {
	mock.Mock
}

func (m *mockEnumerator) ListDevices(ctx context.Context) ([]ports.HardwareWallet, error) {
	args := m.Called(ctx)
	var res []ports.HardwareWallet
	if a := args.Get(0); a != nil {
		res = a.([]ports.HardwareWallet)
	}
	return res, args.Error(1)
}

// ports.HardwareSigner
type mockHardwareSigner struct {
	mock.Mock
}

func (m *mockHardwareSigner) GetExtendedPubkey(
	ctx context.Context, derivationPath path.DerivationPath,
) (*hdkeychain.ExtendedKey, error) {
	args := m.Called(ctx, derivationPath)
	var res *hdkeychain.ExtendedKey
	if a := args.Get(0); a != nil {
		res = a.(*hdkeychain.ExtendedKey)
	}
	return res, args.Error(1)
}

func (m *mockHardwareSigner) RegisterWallet(
	ctx context.Context, label, desc string,
) ([]byte, error) {
	args := m.Called(ctx, label, desc)
	var res []byte
	if a := args.Get(0); a != nil {
		res = a.([]byte)
	}
	return res, args.Error(1)
}

// ports.SoftwareSigner
type testSigner struct {
	seed    []byte
	network descriptor.Network
}

func newTestSigner(seed byte, network descriptor.Network) *testSigner {
	return &testSigner{bytes.Repeat([]byte{seed}, 32), network}
}

func (s *testSigner) Fingerprint() descriptor.Fingerprint {
	master, _ := hdkeychain.NewMaster(s.seed, s.network.KeyParams())
	fingerprint, _ := descriptor.FingerprintFromKey(master)
	return fingerprint
}

func (s *testSigner) GetExtendedPubkey(
	derivationPath path.DerivationPath,
) (*hdkeychain.ExtendedKey, error) {
	master, err := hdkeychain.NewMaster(s.seed, s.network.KeyParams())
	if err != nil {
		return nil, err
	}
	return deriveXpub(master, derivationPath)
}

func (s *testSigner) SetNetwork(network descriptor.Network) {
	s.network = network
}

func (s *testSigner) Network() descriptor.Network {
	return s.network
}

func deriveXpub(
	xkey *hdkeychain.ExtendedKey, derivationPath path.DerivationPath,
) (*hdkeychain.ExtendedKey, error) {
	for _, step := range derivationPath {
		child, err := xkey.Derive(step)
		if err != nil {
			return nil, err
		}
		xkey = child
	}
	return xkey.Neuter()
}

func testMaster(t *testing.T, seed byte, network descriptor.Network) *hdkeychain.ExtendedKey {
	master, err := hdkeychain.NewMaster(bytes.Repeat([]byte{seed}, 32), network.KeyParams())
	require.NoError(t, err)
	return master
}

func testFingerprint(t *testing.T, seed byte) descriptor.Fingerprint {
	fingerprint, err := descriptor.FingerprintFromKey(testMaster(t, seed, descriptor.Bitcoin))
	require.NoError(t, err)
	return fingerprint
}

func testPolicyPath(network descriptor.Network, account uint32) path.DerivationPath {
	return path.StandardPolicyPath(network.CoinType(), path.Hardened(account))
}

func testXpub(
	t *testing.T, seed byte, network descriptor.Network, account uint32,
) *hdkeychain.ExtendedKey {
	xpub, err := deriveXpub(testMaster(t, seed, network), testPolicyPath(network, account))
	require.NoError(t, err)
	return xpub
}

// testKey returns the single path key with origin of the given seed at the
// given account.
func testKey(
	t *testing.T, seed byte, network descriptor.Network, account uint32,
) *descriptor.Key {
	key, err := descriptor.NewKey(&descriptor.KeyOrigin{
		Fingerprint: testFingerprint(t, seed),
		Path:        testPolicyPath(network, account),
	}, testXpub(t, seed, network, account))
	require.NoError(t, err)
	return key
}

// testDevice returns a supported device whose signer returns the keys of
// the given seed for the first accounts.
func testDevice(
	t *testing.T, seed byte, network descriptor.Network, kind string,
) (ports.HardwareWallet, *mockHardwareSigner) {
	signer := &mockHardwareSigner{}
	for account := uint32(0); account < 3; account++ {
		signer.On(
			"GetExtendedPubkey", mock.Anything, testPolicyPath(network, account),
		).Return(testXpub(t, seed, network, account), nil)
	}
	return ports.HardwareWallet{
		Kind:        kind,
		Model:       kind + "_model",
		Fingerprint: testFingerprint(t, seed),
		Status:      ports.DeviceSupported,
		Signer:      signer,
	}, signer
}

func newTestEnumerator(devices ...ports.HardwareWallet) *mockEnumerator {
	enumerator := &mockEnumerator{}
	enumerator.On("ListDevices", mock.Anything).Return(devices, nil)
	return enumerator
}

func nextEvent(t *testing.T, loop *application.Loop) application.Event {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	event, err := loop.Next(ctx)
	require.NoError(t, err)
	return event
}

// handleNext waits for the next event and requires the handler to consume
// it.
func handleNext(
	t *testing.T, loop *application.Loop, handle func(application.Event) bool,
) application.Event {
	event := nextEvent(t, loop)
	require.True(t, handle(event))
	return event
}
