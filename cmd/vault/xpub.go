package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vulpemventures/vault/internal/core/application"
)

var (
	xpubDevices []string
	xpubSigner  bool

	xpubCmd = &cobra.Command{
		Use:   "xpub",
		Short: "export keys to participate in a descriptor",
		Long: "this command returns the keys of the given devices, and of the " +
			"software signer if requested, to be shared with whoever builds " +
			"the descriptor. Every export of the same device uses the next account",
		RunE: exportXpubs,
	}
)

func init() {
	xpubCmd.Flags().StringArrayVar(
		&xpubDevices, "device", nil,
		"fingerprint of a device to export a key from, repeatable",
	)
	xpubCmd.Flags().BoolVar(
		&xpubSigner, "signer", false, "export a key of the software signer",
	)
}

func exportXpubs(cmd *cobra.Command, _ []string) error {
	if len(xpubDevices) <= 0 && !xpubSigner {
		return fmt.Errorf("at least one device or the software signer must be given")
	}

	cfg, err := getAppConfig()
	if err != nil {
		return err
	}
	session, err := cfg.Session(application.FlowParticipate)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	participate := session.Current().Participate

	if err := waitFor(ctx, session, func() bool {
		return !participate.Listing()
	}); err != nil {
		return err
	}

	for _, fingerprint := range xpubDevices {
		index := -1
		for i, p := range participate.Participants() {
			if p.Device.IsSupported() && p.Device.Fingerprint.String() == fingerprint {
				index = i
				break
			}
		}
		if index < 0 {
			return fmt.Errorf("%w: %s", application.ErrDeviceNotFound, fingerprint)
		}
		if !participate.SelectDevice(index) {
			return application.ErrOperationInFlight
		}
		if err := waitFor(ctx, session, func() bool {
			return !participate.Participants()[index].Processing
		}); err != nil {
			return err
		}
		if err := participate.Participants()[index].Err; err != nil {
			return err
		}
	}
	if xpubSigner {
		if err := participate.UseSoftwareSigner(); err != nil {
			return err
		}
	}

	participate.SetShared(true)
	result, err := session.Finish()
	if err != nil {
		return err
	}

	xpubs := make(map[string][]string)
	for _, p := range participate.Participants() {
		for _, key := range p.Xpubs {
			fingerprint := p.Device.Fingerprint.String()
			xpubs[fingerprint] = append(xpubs[fingerprint], key.String())
		}
	}
	out := map[string]interface{}{
		"network": result.Network.String(),
		"devices": xpubs,
	}
	if result.Signer != nil {
		signerXpubs := make([]string, 0)
		for _, key := range participate.SignerXpubs() {
			signerXpubs = append(signerXpubs, key.String())
		}
		out["signer"] = map[string]interface{}{
			"fingerprint": cfg.SoftwareSigner().Fingerprint().String(),
			"mnemonic":    strings.Join(cfg.SoftwareSigner().Mnemonic(), " "),
			"xpubs":       signerXpubs,
		}
	}
	return printJSON(out)
}
