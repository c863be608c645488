package application_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/vault/internal/core/application"
	"github.com/vulpemventures/vault/pkg/descriptor"
)

func TestImportDescriptor(t *testing.T) {
	t.Parallel()

	desc := newTestAppDescriptor(t)

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		signer := newTestSigner(9, descriptor.Bitcoin)
		imp, err := application.NewImportDescriptor(application.ImportDescriptorArgs{
			Network: descriptor.Regtest,
			Signer:  signer,
		})
		require.NoError(t, err)
		require.Equal(t, descriptor.Regtest, signer.Network())

		imp.SetDescriptorText("  " + desc.String() + "\n")
		ctx := &application.Context{Signer: signer}
		require.NoError(t, imp.Apply(ctx))
		require.NoError(t, imp.Err())
		require.Equal(t, descriptor.Regtest, ctx.Network)
		require.Equal(t, desc.String(), ctx.Descriptor.String())
		require.Nil(t, ctx.Signer)
	})

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()

		datadir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(datadir, "signet"), 0700))

		tests := []struct {
			name          string
			network       descriptor.Network
			text          string
			expectedError error
		}{
			{
				name:          "empty",
				network:       descriptor.Testnet,
				text:          " ",
				expectedError: application.ErrMissingDescriptor,
			},
			{
				name:          "malformed",
				network:       descriptor.Testnet,
				text:          "wsh(pk(",
				expectedError: descriptor.ErrInvalidDescriptor,
			},
			{
				name:          "wrong_network",
				network:       descriptor.Bitcoin,
				text:          desc.String(),
				expectedError: application.ErrDescriptorNetwork,
			},
			{
				name:          "network_not_available",
				network:       descriptor.Signet,
				text:          desc.String(),
				expectedError: application.ErrNetworkDatadirExists,
			},
		}

		for _, tt := range tests {
			tt := tt
			t.Run(tt.name, func(t *testing.T) {
				imp, err := application.NewImportDescriptor(application.ImportDescriptorArgs{
					Network: descriptor.Testnet,
					DataDir: datadir,
				})
				require.NoError(t, err)
				imp.SetNetwork(tt.network)
				imp.SetDescriptorText(tt.text)

				ctx := &application.Context{}
				err = imp.Apply(ctx)
				require.ErrorIs(t, err, tt.expectedError)
				require.Equal(t, err, imp.Err())
				require.Nil(t, ctx.Descriptor)
			})
		}
	})
}
