package main

import (
	"strings"

	"github.com/spf13/cobra"
	hotsigner "github.com/vulpemventures/vault/internal/infrastructure/software-signer/hot"
	path "github.com/vulpemventures/vault/pkg/derivation-path"
	"github.com/vulpemventures/vault/pkg/descriptor"
)

var (
	entropySize uint32

	signerNewCmd = &cobra.Command{
		Use:   "new",
		Short: "generate a random mnemonic",
		Long: "this command lets you generate a new random mnemonic for the " +
			"software signer, together with its fingerprint and first key",
		RunE: signerNew,
	}
	signerCmd = &cobra.Command{
		Use:   "signer",
		Short: "manage the software signer",
	}
)

func init() {
	signerNewCmd.Flags().Uint32Var(
		&entropySize, "entropy", 256, "entropy size in bits, 128 or 256",
	)
	signerCmd.AddCommand(signerNewCmd)
}

func signerNew(_ *cobra.Command, _ []string) error {
	mnemonic, err := hotsigner.NewMnemonic(hotsigner.NewMnemonicArgs{
		EntropySize: entropySize,
	})
	if err != nil {
		return err
	}
	signer, err := hotsigner.NewSigner(hotsigner.NewSignerArgs{
		Mnemonic: mnemonic,
		Network:  network,
	})
	if err != nil {
		return err
	}

	derivationPath := path.StandardPolicyPath(network.CoinType(), path.Hardened(0))
	xpub, err := signer.GetExtendedPubkey(derivationPath)
	if err != nil {
		return err
	}
	key, err := descriptor.NewKey(&descriptor.KeyOrigin{
		Fingerprint: signer.Fingerprint(),
		Path:        derivationPath,
	}, xpub)
	if err != nil {
		return err
	}

	return printJSON(map[string]string{
		"mnemonic":    strings.Join(mnemonic, " "),
		"fingerprint": signer.Fingerprint().String(),
		"xpub":        key.String(),
	})
}
