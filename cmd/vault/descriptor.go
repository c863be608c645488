package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	appconfig "github.com/vulpemventures/vault/internal/app-config"
	"github.com/vulpemventures/vault/internal/core/application"
	"github.com/vulpemventures/vault/internal/core/domain"
	"github.com/vulpemventures/vault/pkg/descriptor"
)

var (
	primaryKeys       []string
	recoveryKeys      []string
	primaryThreshold  int
	recoveryThreshold int
	timelock          string
	registerOn        []string
	descriptorText    string
	numOfAddresses    uint32

	descriptorCreateCmd = &cobra.Command{
		Use:   "create",
		Short: "create a new descriptor",
		Long: "this command lets you build a new descriptor from the given " +
			"primary and recovery keys and timelock, then register it on the " +
			"given devices. Keys are given as [alias=]source, where source is " +
			"either 'signer', 'device:<fingerprint>' or a key with origin info",
		RunE: descriptorCreate,
	}
	descriptorImportCmd = &cobra.Command{
		Use:   "import",
		Short: "import an existing descriptor",
		Long: "this command lets you import a descriptor created elsewhere " +
			"and register it on the given devices",
		RunE: descriptorImport,
	}
	descriptorInspectCmd = &cobra.Command{
		Use:   "inspect <descriptor>",
		Short: "show receive and change descriptors and addresses",
		Long: "this command returns the single path descriptors of the " +
			"receive and change branches and their first addresses",
		Args: cobra.ExactArgs(1),
		RunE: descriptorInspect,
	}
	descriptorCmd = &cobra.Command{
		Use:   "descriptor",
		Short: "create, import or inspect descriptors",
	}
)

func init() {
	descriptorCreateCmd.Flags().StringArrayVar(
		&primaryKeys, "primary", nil, "key of the primary path, repeatable",
	)
	descriptorCreateCmd.Flags().StringArrayVar(
		&recoveryKeys, "recovery", nil, "key of the recovery path, repeatable",
	)
	descriptorCreateCmd.Flags().IntVar(
		&primaryThreshold, "primary-threshold", 0,
		"signatures required on the primary path (defaults to all keys)",
	)
	descriptorCreateCmd.Flags().IntVar(
		&recoveryThreshold, "recovery-threshold", 0,
		"signatures required on the recovery path (defaults to all keys)",
	)
	descriptorCreateCmd.Flags().StringVar(
		&timelock, "timelock", "", "blocks to wait before the recovery path unlocks",
	)
	descriptorCreateCmd.Flags().StringArrayVar(
		&registerOn, "register", nil,
		"fingerprint of a device to register the descriptor on, repeatable",
	)
	descriptorCreateCmd.MarkFlagRequired("primary")
	descriptorCreateCmd.MarkFlagRequired("recovery")
	descriptorCreateCmd.MarkFlagRequired("timelock")

	descriptorImportCmd.Flags().StringVar(
		&descriptorText, "descriptor", "", "the descriptor to import",
	)
	descriptorImportCmd.Flags().StringArrayVar(
		&registerOn, "register", nil,
		"fingerprint of a device to register the descriptor on, repeatable",
	)
	descriptorImportCmd.MarkFlagRequired("descriptor")

	descriptorInspectCmd.Flags().Uint32Var(
		&numOfAddresses, "addresses", 5, "number of addresses to derive per branch",
	)

	descriptorCmd.AddCommand(
		descriptorCreateCmd, descriptorImportCmd, descriptorInspectCmd,
	)
}

func descriptorCreate(cmd *cobra.Command, _ []string) error {
	cfg, err := getAppConfig()
	if err != nil {
		return err
	}
	session, err := cfg.Session(application.FlowCreate)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	define := session.Current().Define

	branches := []struct {
		branch    domain.Branch
		keys      []string
		threshold int
	}{
		{domain.Primary, primaryKeys, primaryThreshold},
		{domain.Recovery, recoveryKeys, recoveryThreshold},
	}
	for _, b := range branches {
		for i := len(define.KeySet(b.branch).Slots); i < len(b.keys); i++ {
			define.AddKey(b.branch)
		}
		for i, str := range b.keys {
			if err := importKey(ctx, session, b.branch, i, parseKeyEntry(str)); err != nil {
				return fmt.Errorf("%s key #%d: %w", b.branch, i, err)
			}
		}
		if b.threshold > 0 {
			define.SetThreshold(b.branch, b.threshold)
		}
	}
	define.SetTimelock(timelock)
	if !define.Valid() {
		return fmt.Errorf("descriptor is incomplete")
	}

	if err := session.Next(); err != nil {
		return err
	}
	return registerAndPrint(ctx, cfg, session)
}

func descriptorImport(cmd *cobra.Command, _ []string) error {
	cfg, err := getAppConfig()
	if err != nil {
		return err
	}
	session, err := cfg.Session(application.FlowImport)
	if err != nil {
		return err
	}

	session.Current().Import.SetDescriptorText(descriptorText)
	if err := session.Next(); err != nil {
		return err
	}
	return registerAndPrint(cmd.Context(), cfg, session)
}

func descriptorInspect(_ *cobra.Command, args []string) error {
	desc, err := descriptor.Parse(args[0])
	if err != nil {
		return err
	}

	receive := make([]string, 0, numOfAddresses)
	change := make([]string, 0, numOfAddresses)
	for i := uint32(0); i < numOfAddresses; i++ {
		addr, err := desc.Address(network, false, i)
		if err != nil {
			return err
		}
		receive = append(receive, addr)
		if addr, err = desc.Address(network, true, i); err != nil {
			return err
		}
		change = append(change, addr)
	}

	keys := make([]string, 0)
	for _, key := range desc.Keys() {
		keys = append(keys, key.MasterFingerprint().String())
	}

	return printJSON(map[string]interface{}{
		"descriptor":         desc.String(),
		"receive_descriptor": desc.ReceiveDescriptor(),
		"change_descriptor":  desc.ChangeDescriptor(),
		"primary_threshold":  desc.Primary().Threshold(),
		"recovery_threshold": desc.Recovery().Threshold(),
		"timelock":           desc.Timelock(),
		"fingerprints":       keys,
		"receive_addresses":  receive,
		"change_addresses":   change,
	})
}

// importKey fills the i-th slot of the branch from the given entry.
func importKey(
	ctx context.Context, session *application.Session,
	branch domain.Branch, i int, entry keyEntry,
) error {
	define := session.Current().Define
	modal, err := define.EditKey(branch, i)
	if err != nil {
		return err
	}
	defer define.CloseModal()

	if err := waitFor(ctx, session, func() bool {
		return modal.State() != application.ImportAwaitingDeviceList
	}); err != nil {
		return err
	}

	if fingerprint, ok := entry.device(); ok {
		index, err := findDevice(modal.Devices(), fingerprint)
		if err != nil {
			return err
		}
		if !modal.SelectDevice(index) {
			if err := modal.Err(); err != nil {
				return err
			}
			return application.ErrDeviceNotSupported
		}
		if err := waitFor(ctx, session, func() bool {
			return !modal.Processing()
		}); err != nil {
			return err
		}
		if err := modal.Err(); err != nil {
			return err
		}
	} else if entry.source == signerSource {
		if err := modal.UseSoftwareSigner(); err != nil {
			return err
		}
	} else {
		modal.SetKeyText(entry.source)
		if !modal.KeyValid() {
			return application.ErrInvalidKeyText
		}
	}

	if entry.alias != "" && modal.AliasEditable() {
		modal.SetAlias(entry.alias)
	}
	return define.ConfirmKey()
}

// registerAndPrint registers the descriptor of the session on the devices
// given by flag, then prints the result of the session.
func registerAndPrint(
	ctx context.Context, cfg *appconfig.AppConfig, session *application.Session,
) error {
	register := session.Current().Register
	if len(registerOn) > 0 {
		if err := waitFor(ctx, session, func() bool {
			return !register.Listing()
		}); err != nil {
			return err
		}
	}

	for _, fingerprint := range registerOn {
		index, err := findDevice(register.Devices(), fingerprint)
		if err != nil {
			return err
		}
		if !register.Select(index) {
			return fmt.Errorf("%w: %s", application.ErrDeviceAlreadyRegistered, fingerprint)
		}
		if err := waitFor(ctx, session, func() bool {
			return !register.Processing()
		}); err != nil {
			return err
		}
		if err := register.Err(); err != nil {
			return err
		}
	}
	register.SetDone(true)

	result, err := session.Finish()
	if err != nil {
		return err
	}

	keys := make(map[string]string)
	for _, key := range result.Keys {
		keys[key.Fingerprint.String()] = key.Alias
	}
	registered := make([]map[string]string, 0, len(result.HardwareWallets))
	for _, device := range result.HardwareWallets {
		registered = append(registered, map[string]string{
			"kind":        device.Kind,
			"fingerprint": device.Fingerprint.String(),
			"token":       fmt.Sprintf("%x", device.Token),
		})
	}
	out := map[string]interface{}{
		"network":            result.Network.String(),
		"descriptor":         result.Descriptor.String(),
		"receive_descriptor": result.Descriptor.ReceiveDescriptor(),
		"change_descriptor":  result.Descriptor.ChangeDescriptor(),
		"keys":               keys,
		"registered_devices": registered,
	}
	if result.Signer != nil {
		out["signer_mnemonic"] = strings.Join(cfg.SoftwareSigner().Mnemonic(), " ")
	}
	return printJSON(out)
}
