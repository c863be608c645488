package descriptor_test

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
	path "github.com/vulpemventures/vault/pkg/derivation-path"
	"github.com/vulpemventures/vault/pkg/descriptor"
)

func TestNewDescriptor(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		keyA := newTestKey(t, 1, &chaincfg.TestNet3Params)
		keyB := newTestKey(t, 2, &chaincfg.TestNet3Params)
		keyC := newTestKey(t, 3, &chaincfg.TestNet3Params)

		desc := newTestDescriptor(t, []*descriptor.Key{keyA}, 2, []*descriptor.Key{keyB, keyC}, 1000)

		body := fmt.Sprintf(
			"wsh(or_d(pk(%s),and_v(v:multi(2,%s,%s),older(1000))))", keyA, keyB, keyC,
		)
		sum, err := descriptor.Checksum(body)
		require.NoError(t, err)
		require.Equal(t, body+"#"+sum, desc.String())
		require.Contains(t, desc.String(), "/<0;1>/*")
		require.Equal(t, uint16(1000), desc.Timelock())
		require.Len(t, desc.Keys(), 3)
		require.False(t, desc.IsMainnet())

		again := newTestDescriptor(t, []*descriptor.Key{keyA}, 2, []*descriptor.Key{keyB, keyC}, 1000)
		require.Equal(t, desc.String(), again.String())

		single := newTestDescriptor(t, []*descriptor.Key{keyA}, 1, []*descriptor.Key{keyB}, 52560)
		require.True(t, strings.HasPrefix(
			single.String(),
			fmt.Sprintf("wsh(or_d(pk(%s),and_v(v:pkh(%s),older(52560))))#", keyA, keyB),
		))

		multi := newTestDescriptor(t, []*descriptor.Key{keyA, keyB}, 1, []*descriptor.Key{keyC}, 10)
		require.True(t, strings.HasPrefix(
			multi.String(),
			fmt.Sprintf("wsh(or_d(multi(1,%s,%s),and_v(v:pkh(%s),older(10))))#", keyA, keyB, keyC),
		))
	})

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()

		keyA := newTestKey(t, 1, &chaincfg.TestNet3Params)
		keyB := newTestKey(t, 2, &chaincfg.TestNet3Params)
		mainnetKey := newTestKey(t, 3, &chaincfg.MainNetParams)
		singlePath, err := keyB.Branch(descriptor.ReceiveBranch)
		require.NoError(t, err)

		policy := func(keys ...*descriptor.Key) *descriptor.KeysPolicy {
			if len(keys) == 1 {
				p, err := descriptor.NewSingleKeyPolicy(keys[0])
				require.NoError(t, err)
				return p
			}
			p, err := descriptor.NewMultiKeyPolicy(len(keys), keys)
			require.NoError(t, err)
			return p
		}

		tests := []struct {
			primary  *descriptor.KeysPolicy
			recovery *descriptor.KeysPolicy
			timelock uint16
			err      error
		}{
			{nil, policy(keyB), 10, descriptor.ErrMissingPolicy},
			{policy(keyA), nil, 10, descriptor.ErrMissingPolicy},
			{policy(keyA), policy(keyB), 0, descriptor.ErrInvalidTimelock},
			{policy(keyA), policy(keyA), 10, descriptor.ErrDuplicateKey},
			{policy(keyA, keyB), policy(keyB), 10, descriptor.ErrDuplicateKey},
			{policy(keyA), policy(singlePath), 10, descriptor.ErrKeyNotMultipath},
			{policy(keyA), policy(mainnetKey), 10, descriptor.ErrMixedNetworks},
		}
		for i, tt := range tests {
			_, err := descriptor.New(tt.primary, tt.recovery, tt.timelock)
			require.ErrorIs(t, err, tt.err, i)
		}
	})
}

func TestNewMultiKeyPolicy(t *testing.T) {
	t.Parallel()

	keys := make([]*descriptor.Key, 0, descriptor.MaxKeysPerMulti+1)
	for i := 0; i <= descriptor.MaxKeysPerMulti; i++ {
		keys = append(keys, newTestKey(t, byte(i+1), &chaincfg.TestNet3Params))
	}

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		policy, err := descriptor.NewMultiKeyPolicy(2, keys[:3])
		require.NoError(t, err)
		require.Equal(t, 2, policy.Threshold())
		require.Len(t, policy.Keys(), 3)
		require.False(t, policy.IsSingleKey())

		policy, err = descriptor.NewMultiKeyPolicy(20, keys[:20])
		require.NoError(t, err)
		require.Len(t, policy.Keys(), 20)
	})

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			threshold int
			keys      []*descriptor.Key
			err       error
		}{
			{1, nil, descriptor.ErrMissingKeys},
			{0, keys[:2], descriptor.ErrInvalidThreshold},
			{3, keys[:2], descriptor.ErrInvalidThreshold},
			{2, keys, descriptor.ErrTooManyKeys},
			{2, []*descriptor.Key{keys[0], keys[1], keys[0]}, descriptor.ErrDuplicateKey},
			{1, []*descriptor.Key{keys[0], nil}, descriptor.ErrMissingKey},
		}
		for i, tt := range tests {
			_, err := descriptor.NewMultiKeyPolicy(tt.threshold, tt.keys)
			require.ErrorIs(t, err, tt.err, i)
		}
	})
}

func TestParseDescriptor(t *testing.T) {
	t.Parallel()

	keyA := newTestKey(t, 1, &chaincfg.TestNet3Params)
	keyB := newTestKey(t, 2, &chaincfg.TestNet3Params)
	keyC := newTestKey(t, 3, &chaincfg.TestNet3Params)

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		descriptors := []*descriptor.Descriptor{
			newTestDescriptor(t, []*descriptor.Key{keyA}, 2, []*descriptor.Key{keyB, keyC}, 1000),
			newTestDescriptor(t, []*descriptor.Key{keyA, keyB}, 2, []*descriptor.Key{keyC}, 65535),
			newTestDescriptor(t, []*descriptor.Key{keyA}, 1, []*descriptor.Key{keyB}, 1),
		}
		for _, desc := range descriptors {
			parsed, err := descriptor.Parse(desc.String())
			require.NoError(t, err)
			require.Equal(t, desc.String(), parsed.String())

			body, _, _ := strings.Cut(desc.String(), "#")
			parsed, err = descriptor.Parse(body)
			require.NoError(t, err)
			require.Equal(t, desc.String(), parsed.String())
		}
	})

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()

		desc := newTestDescriptor(t, []*descriptor.Key{keyA}, 2, []*descriptor.Key{keyB, keyC}, 1000)
		body, _, _ := strings.Cut(desc.String(), "#")

		tests := []struct {
			desc string
			err  error
		}{
			{body + "#qqqqqqqq", descriptor.ErrInvalidChecksum},
			{body + "#qqq", descriptor.ErrInvalidChecksum},
			{strings.Replace(body, "wsh(", "sh(", 1), descriptor.ErrInvalidDescriptor},
			{strings.Replace(body, "or_d(", "or_i(", 1), descriptor.ErrInvalidDescriptor},
			{strings.Replace(body, "older(1000)", "older(0)", 1), descriptor.ErrInvalidTimelock},
			{strings.Replace(body, "older(1000)", "older(70000)", 1), descriptor.ErrInvalidTimelock},
			{strings.Replace(body, "multi(2,", "multi(3,", 1), descriptor.ErrInvalidThreshold},
			{body + ")", descriptor.ErrInvalidDescriptor},
			{desc.ReceiveDescriptor(), descriptor.ErrKeyNotMultipath},
			{fmt.Sprintf("wsh(or_d(pk(%s),and_v(v:pkh(%s),older(10))))", keyA, keyA), descriptor.ErrDuplicateKey},
		}
		for _, tt := range tests {
			_, err := descriptor.Parse(tt.desc)
			require.ErrorIs(t, err, tt.err, tt.desc)
		}
	})
}

func TestSinglePathDescriptors(t *testing.T) {
	t.Parallel()

	keyA := newTestKey(t, 1, &chaincfg.TestNet3Params)
	keyB := newTestKey(t, 2, &chaincfg.TestNet3Params)
	desc := newTestDescriptor(t, []*descriptor.Key{keyA}, 1, []*descriptor.Key{keyB}, 144)

	receive := desc.ReceiveDescriptor()
	change := desc.ChangeDescriptor()
	require.NotContains(t, receive, "<0;1>")
	require.Equal(t, 2, strings.Count(receive, "/0/*"))
	require.Equal(t, 2, strings.Count(change, "/1/*"))

	for _, d := range []string{receive, change} {
		body, sum, found := strings.Cut(d, "#")
		require.True(t, found)
		expected, err := descriptor.Checksum(body)
		require.NoError(t, err)
		require.Equal(t, expected, sum)
	}
}

func TestWitnessScript(t *testing.T) {
	t.Parallel()

	keyA := newTestKey(t, 1, &chaincfg.TestNet3Params)
	keyB := newTestKey(t, 2, &chaincfg.TestNet3Params)
	keyC := newTestKey(t, 3, &chaincfg.TestNet3Params)

	t.Run("single keys", func(t *testing.T) {
		t.Parallel()

		desc := newTestDescriptor(t, []*descriptor.Key{keyA}, 1, []*descriptor.Key{keyB}, 1000)
		script, err := desc.WitnessScript(false, 0)
		require.NoError(t, err)

		// <A> CHECKSIG IFDUP NOTIF DUP HASH160 <h(B)> EQUALVERIFY
		// CHECKSIGVERIFY <1000> CSV ENDIF
		require.Len(t, script, 34+1+1+1+1+1+21+1+1+3+1+1)
		require.Equal(t, byte(txscript.OP_DATA_33), script[0])
		require.Equal(t, byte(txscript.OP_CHECKSIG), script[34])
		require.Equal(t, byte(txscript.OP_IFDUP), script[35])
		require.Equal(t, byte(txscript.OP_NOTIF), script[36])
		require.Equal(t, byte(txscript.OP_DUP), script[37])
		require.Equal(t, byte(txscript.OP_HASH160), script[38])
		require.Equal(t, byte(txscript.OP_CHECKSEQUENCEVERIFY), script[len(script)-2])
		require.Equal(t, byte(txscript.OP_ENDIF), script[len(script)-1])

		pubkey, err := keyA.Branch(descriptor.ReceiveBranch)
		require.NoError(t, err)
		derived, err := pubkey.Derive(0)
		require.NoError(t, err)
		require.Equal(t, derived.SerializeCompressed(), script[1:34])
	})

	t.Run("multisig", func(t *testing.T) {
		t.Parallel()

		desc := newTestDescriptor(t, []*descriptor.Key{keyA}, 2, []*descriptor.Key{keyB, keyC}, 1000)
		script, err := desc.WitnessScript(true, 5)
		require.NoError(t, err)

		// <A> CHECKSIG IFDUP NOTIF 2 <B> <C> 2 CHECKMULTISIGVERIFY
		// <1000> CSV ENDIF
		require.Len(t, script, 34+1+1+1+1+34+34+1+1+3+1+1)
		require.Equal(t, byte(txscript.OP_2), script[37])
		require.Equal(t, byte(txscript.OP_2), script[37+1+68])
		require.Equal(t, byte(txscript.OP_CHECKMULTISIGVERIFY), script[37+2+68])

		other, err := desc.WitnessScript(false, 5)
		require.NoError(t, err)
		require.NotEqual(t, script, other)
	})
}

func TestAddress(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			params *chaincfg.Params
			net    descriptor.Network
			prefix string
		}{
			{&chaincfg.MainNetParams, descriptor.Bitcoin, "bc1q"},
			{&chaincfg.TestNet3Params, descriptor.Testnet, "tb1q"},
			{&chaincfg.TestNet3Params, descriptor.Signet, "tb1q"},
			{&chaincfg.TestNet3Params, descriptor.Regtest, "bcrt1q"},
		}
		for _, tt := range tests {
			keyA := newTestKey(t, 1, tt.params)
			keyB := newTestKey(t, 2, tt.params)
			desc := newTestDescriptor(t, []*descriptor.Key{keyA}, 1, []*descriptor.Key{keyB}, 1000)

			receive, err := desc.Address(tt.net, false, 0)
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(receive, tt.prefix), receive)

			change, err := desc.Address(tt.net, true, 0)
			require.NoError(t, err)
			require.NotEqual(t, receive, change)

			next, err := desc.Address(tt.net, false, 1)
			require.NoError(t, err)
			require.NotEqual(t, receive, next)

			again, err := desc.Address(tt.net, false, 0)
			require.NoError(t, err)
			require.Equal(t, receive, again)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()

		keyA := newTestKey(t, 1, &chaincfg.TestNet3Params)
		keyB := newTestKey(t, 2, &chaincfg.TestNet3Params)
		desc := newTestDescriptor(t, []*descriptor.Key{keyA}, 1, []*descriptor.Key{keyB}, 1000)

		_, err := desc.Address(descriptor.Bitcoin, false, 0)
		require.ErrorIs(t, err, descriptor.ErrMixedNetworks)

		_, err = desc.Address(descriptor.Network("liquid"), false, 0)
		require.ErrorIs(t, err, descriptor.ErrUnknownNetwork)

		_, err = desc.Address(descriptor.Testnet, false, path.Hardened(0))
		require.ErrorIs(t, err, descriptor.ErrHardenedDerivation)
	})
}

// The keys are the m/0' and master xpubs of BIP32 test vectors 1 and 2.
func TestDescriptorVector(t *testing.T) {
	t.Parallel()

	const (
		keyA = "[3442193e/0']xpub68Gmy5EdvgibQVfPdqkBBCHxA5htiqg55crXYuXoQRKfDBFA1WEjWgP6LHhwBZeNK1VTsfTFUHCdrfp1bgwQ9xv5ski8PX9rL2dZXvgGDnw"
		keyB = "[bd16bee5]xpub661MyMwAqRbcFW31YEwpkMuc5THy2PSt5bDMsktWQcFF8syAmRUapSCGu8ED9W6oDMSgv6Zz8idoc4a6mr8BDzTJY47LJhkJ8UB7WEGuduB"
	)
	body := fmt.Sprintf(
		"wsh(or_d(pk(%s/<0;1>/*),and_v(v:pkh(%s/<0;1>/*),older(144))))", keyA, keyB,
	)

	desc, err := descriptor.Parse(body)
	require.NoError(t, err)
	require.Equal(t, body+"#p77u8ee7", desc.String())
	require.Equal(t, fmt.Sprintf(
		"wsh(or_d(pk(%s/0/*),and_v(v:pkh(%s/0/*),older(144))))#xjy0cpgw", keyA, keyB,
	), desc.ReceiveDescriptor())
	require.Equal(t, fmt.Sprintf(
		"wsh(or_d(pk(%s/1/*),and_v(v:pkh(%s/1/*),older(144))))#69qypw93", keyA, keyB,
	), desc.ChangeDescriptor())

	tests := []struct {
		change        bool
		witnessScript string
		address       string
	}{
		{
			change:        false,
			witnessScript: "21027b6a7dd645507d775215a9035be06700e1ed8c541da9351b4bd14bd50ab61428ac736476a914f103317b9f0b758a62cb3879281d23e3b1deb90d88ad029000b268",
			address:       "bc1q8wzt74gh8salr90ux4z2hwkv89nnwcf8wvkrr289sptnejdxjfp4w7zpq",
		},
		{
			change:        true,
			witnessScript: "2103e10f4f003b36e87c070fcda5201bb5f3f8a4a9537f853e3aaca53a44f166b630ac736476a9140419190d426bd393ea5ea3fad04d5ccd3369901f88ad029000b268",
			address:       "bc1qnxghwqevdt6k54zhr497d400n7k6sc5quwgezpcdl0rc0qr8rkpvkmmud",
		},
	}
	for _, tt := range tests {
		script, err := desc.WitnessScript(tt.change, 0)
		require.NoError(t, err)
		require.Equal(t, tt.witnessScript, hex.EncodeToString(script))

		addr, err := desc.Address(descriptor.Bitcoin, tt.change, 0)
		require.NoError(t, err)
		require.Equal(t, tt.address, addr)
	}
}

func testSeed(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

// newTestKey returns the multipath key at m/48'/coin'/0'/2' of a master key
// generated from a fixed seed.
func newTestKey(t *testing.T, seed byte, params *chaincfg.Params) *descriptor.Key {
	master, err := hdkeychain.NewMaster(testSeed(seed), params)
	require.NoError(t, err)
	fingerprint, err := descriptor.FingerprintFromKey(master)
	require.NoError(t, err)

	coinType := uint32(1)
	if params.Name == chaincfg.MainNetParams.Name {
		coinType = 0
	}
	originPath := path.StandardPolicyPath(coinType, path.Hardened(0))

	xkey := master
	for _, step := range originPath {
		xkey, err = xkey.Derive(step)
		require.NoError(t, err)
	}
	xpub, err := xkey.Neuter()
	require.NoError(t, err)

	key, err := descriptor.NewKey(
		&descriptor.KeyOrigin{Fingerprint: fingerprint, Path: originPath}, xpub,
	)
	require.NoError(t, err)
	return key.Multipath(0, 1)
}

// newTestDescriptor uses threshold for whichever policy has more than one
// key.
func newTestDescriptor(
	t *testing.T, primaryKeys []*descriptor.Key, threshold int,
	recoveryKeys []*descriptor.Key, timelock uint16,
) *descriptor.Descriptor {
	primary, err := newTestPolicy(threshold, primaryKeys)
	require.NoError(t, err)
	recovery, err := newTestPolicy(threshold, recoveryKeys)
	require.NoError(t, err)
	desc, err := descriptor.New(primary, recovery, timelock)
	require.NoError(t, err)
	return desc
}

func newTestPolicy(threshold int, keys []*descriptor.Key) (*descriptor.KeysPolicy, error) {
	if len(keys) == 1 {
		return descriptor.NewSingleKeyPolicy(keys[0])
	}
	return descriptor.NewMultiKeyPolicy(threshold, keys)
}
