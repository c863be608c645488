package main

import (
	"context"

	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "list connected hardware wallets",
	Long: "this command returns the connected hardware wallets and whether " +
		"they can be used right away or must be unlocked first",
	RunE: listDevices,
}

func listDevices(cmd *cobra.Command, _ []string) error {
	cfg, err := getAppConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if deviceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deviceTimeout)
		defer cancel()
	}

	devices, err := cfg.DeviceEnumerator().ListDevices(ctx)
	if err != nil {
		return err
	}

	out := make([]deviceInfo, 0, len(devices))
	for _, device := range devices {
		out = append(out, newDeviceInfo(device))
	}
	return printJSON(map[string]interface{}{"devices": out})
}
