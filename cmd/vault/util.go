package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	appconfig "github.com/vulpemventures/vault/internal/app-config"
	"github.com/vulpemventures/vault/internal/core/application"
	"github.com/vulpemventures/vault/internal/core/ports"
	"github.com/vulpemventures/vault/pkg/descriptor"
)

const signerSource = "signer"

func getAppConfig() (*appconfig.AppConfig, error) {
	var mnemonic []string
	if mnemonicFlag != "" {
		mnemonic = strings.Fields(mnemonicFlag)
	}
	cfg := &appconfig.AppConfig{
		Version:       version,
		Commit:        commit,
		Date:          date,
		Network:       network,
		Datadir:       datadir,
		WalletLabel:   walletLabel,
		HwiBinary:     hwiBinary,
		DeviceTimeout: deviceTimeout,
		Mnemonic:      mnemonic,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// waitFor handles the events of the session until done returns true.
func waitFor(ctx context.Context, session *application.Session, done func() bool) error {
	for !done() {
		if _, err := session.Process(ctx); err != nil {
			return err
		}
	}
	return nil
}

// findDevice returns the index of the listed device with the given
// fingerprint.
func findDevice(devices []ports.HardwareWallet, fingerprint string) (int, error) {
	fp, err := descriptor.ParseFingerprint(fingerprint)
	if err != nil {
		return -1, err
	}
	for i, device := range devices {
		if device.Fingerprint == fp && device.IsSupported() {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", application.ErrDeviceNotFound, fingerprint)
}

// keyEntry is a key given on the command line as [alias=]source where
// source is either "signer", "device:<fingerprint>" or a key with origin.
type keyEntry struct {
	alias  string
	source string
}

func parseKeyEntry(str string) keyEntry {
	str = strings.TrimSpace(str)
	if i := strings.Index(str, "="); i > 0 {
		return keyEntry{alias: str[:i], source: str[i+1:]}
	}
	return keyEntry{source: str}
}

func (e keyEntry) device() (string, bool) {
	if !strings.HasPrefix(e.source, "device:") {
		return "", false
	}
	return strings.TrimPrefix(e.source, "device:"), true
}

type deviceInfo struct {
	Kind        string `json:"kind"`
	Model       string `json:"model,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Status      string `json:"status"`
}

func newDeviceInfo(device ports.HardwareWallet) deviceInfo {
	info := deviceInfo{
		Kind:   device.Kind,
		Model:  device.Model,
		Status: device.Status.String(),
	}
	if device.IsSupported() {
		info.Fingerprint = device.Fingerprint.String()
	}
	return info
}

func printJSON(v interface{}) error {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal response: %s", err)
	}
	fmt.Println(string(buf))
	return nil
}
