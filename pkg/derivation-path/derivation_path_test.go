package path_test

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/stretchr/testify/require"
	path "github.com/vulpemventures/vault/pkg/derivation-path"
)

func TestParseDerivationPath(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			derivationPath string
			expected       path.DerivationPath
		}{
			// Plain absolute derivation paths
			{"m/48'/0'/0'/2'", path.DerivationPath{hdkeychain.HardenedKeyStart + 48, hdkeychain.HardenedKeyStart, hdkeychain.HardenedKeyStart, hdkeychain.HardenedKeyStart + 2}},
			{"m/48'/1'/7'/2'", path.DerivationPath{hdkeychain.HardenedKeyStart + 48, hdkeychain.HardenedKeyStart + 1, hdkeychain.HardenedKeyStart + 7, hdkeychain.HardenedKeyStart + 2}},
			{"m/48h/1h/7h/2h", path.DerivationPath{hdkeychain.HardenedKeyStart + 48, hdkeychain.HardenedKeyStart + 1, hdkeychain.HardenedKeyStart + 7, hdkeychain.HardenedKeyStart + 2}},
			{"m/84'/0'/0'/128", path.DerivationPath{hdkeychain.HardenedKeyStart + 84, hdkeychain.HardenedKeyStart, hdkeychain.HardenedKeyStart, 128}},

			// Weird inputs just to ensure they work
			{"	m  /   48			'\n/\n   0	\n\n\t'   /\n0 ' /\t\t	2'", path.DerivationPath{hdkeychain.HardenedKeyStart + 48, hdkeychain.HardenedKeyStart, hdkeychain.HardenedKeyStart, hdkeychain.HardenedKeyStart + 2}},

			// Highest index
			{"m/2147483647'/2147483647", path.DerivationPath{hdkeychain.HardenedKeyStart + path.MaxAccountIndex, path.MaxAccountIndex}},

			// Relative derivation paths
			{"48'/0'/0/0", path.DerivationPath{hdkeychain.HardenedKeyStart + 48, hdkeychain.HardenedKeyStart, 0, 0}},
			{"0/1", path.DerivationPath{0, 1}},
		}
		for _, tt := range tests {
			p, err := path.ParseDerivationPath(tt.derivationPath)
			require.NoError(t, err)
			require.Equal(t, tt.expected, p)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			derivationPath string
			expectedErr    error
		}{
			{"", path.ErrMissingDerivationPath},                // Empty relative derivation path
			{"m", path.ErrMalformedDerivationPath},             // Empty absolute derivation path
			{"m/", path.ErrMalformedDerivationPath},            // Missing last derivation component
			{"/48'/0'/0'/2'", path.ErrMalformedDerivationPath}, // Absolute path without m prefix, might be user error
			{"m/2147483648'", nil},                             // Overflows 32 bit integer (dynamic values on error, not constant)
			{"m/-1'", nil},                                     // Cannot contain negative number (dynamic values on error, not constant)
			{"0", path.ErrMalformedDerivationPath},             // Bad derivation path
			{"m/2147483648", path.ErrInvalidPathStep},          // Raw child numbers are not accepted
			{"m/48'/1'/0x0'/2'", path.ErrInvalidPathStep},      // Hexadecimal
			{"m/48'/1'/0_0'/2'", path.ErrInvalidPathStep},      // Digit separators
			{"m/48'/1'/010'/2'", path.ErrInvalidPathStep},      // Leading zeros, not octal
			{"m/48'/1'/00'/2'", path.ErrInvalidPathStep},       // Leading zeros
			{"m/+1/0", path.ErrInvalidPathStep},                // Sign
			{"m/48'/1'/h/2'", path.ErrInvalidPathStep},         // Marker without index
		}

		for _, tt := range tests {
			_, err := path.ParseDerivationPath(tt.derivationPath)
			require.Error(t, err)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
			}
		}
	})
}

func TestParseAbsoluteDerivationPath(t *testing.T) {
	t.Parallel()

	p, err := path.ParseAbsoluteDerivationPath("m/48'/1'/0'/2'")
	require.NoError(t, err)
	require.Equal(t, "m/48'/1'/0'/2'", p.String())

	_, err = path.ParseAbsoluteDerivationPath("48'/1'/0'/2'")
	require.EqualError(t, err, path.ErrRequiredAbsoluteDerivationPath.Error())
}

func TestParseOriginPath(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			origin   string
			expected path.DerivationPath
		}{
			{"", path.DerivationPath{}},
			{"0'", path.DerivationPath{hdkeychain.HardenedKeyStart}},
			{"48'/1'/0'/2'", path.StandardPolicyPath(1, hdkeychain.HardenedKeyStart)},
			{"48h/0h/3h/2h", path.StandardPolicyPath(0, hdkeychain.HardenedKeyStart+3)},
		}
		for _, tt := range tests {
			p, err := path.ParseOriginPath(tt.origin)
			require.NoError(t, err)
			require.Equal(t, tt.expected, p)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()

		for _, origin := range []string{"48'//0'", "/48'", "abc", "48'/-1"} {
			_, err := path.ParseOriginPath(origin)
			require.Error(t, err, origin)
		}
	})
}

func TestStandardPolicyPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		coinType uint32
		account  uint32
		expected string
	}{
		{0, path.Hardened(0), "m/48'/0'/0'/2'"},
		{0, path.Hardened(5), "m/48'/0'/5'/2'"},
		{1, path.Hardened(0), "m/48'/1'/0'/2'"},
		{1, path.Hardened(42), "m/48'/1'/42'/2'"},
	}
	for _, tt := range tests {
		p := path.StandardPolicyPath(tt.coinType, tt.account)
		require.Equal(t, tt.expected, p.String())

		account, ok := p.PolicyAccount()
		require.True(t, ok)
		require.Equal(t, tt.account, account)
	}
}

func TestPolicyAccount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path    string
		account uint32
		ok      bool
	}{
		{"m/48'/1'/3'/2'", path.Hardened(3), true},
		{"m/48'/1'/3'/2'/0/1", path.Hardened(3), true},
		{"m/48'/1'/3'", 0, false},
		{"m/84'/1'/3'/2'", 0, false},
		{"m/48/1'/3'/2'", 0, false},
	}
	for _, tt := range tests {
		p, err := path.ParseDerivationPath(tt.path)
		require.NoError(t, err)

		account, ok := p.PolicyAccount()
		require.Equal(t, tt.ok, ok, tt.path)
		require.Equal(t, tt.account, account, tt.path)
	}
}

func TestDerivationPathString(t *testing.T) {
	t.Parallel()

	p := path.DerivationPath{path.Hardened(48), path.Hardened(1), path.Hardened(0), path.Hardened(2), 0, 12}
	require.Equal(t, "m/48'/1'/0'/2'/0/12", p.String())
	require.Equal(t, "/48'/1'/0'/2'/0/12", p.Steps())
	require.Empty(t, path.DerivationPath{}.String())
	require.True(t, p.Equal(append(path.DerivationPath{}, p...)))
	require.False(t, p.Equal(p[:4]))
}
