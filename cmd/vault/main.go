package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vulpemventures/vault/internal/config"
	"github.com/vulpemventures/vault/pkg/profiler"
)

var (
	// Build info.
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Config from env vars.
	logLevel      = config.GetInt(config.LogLevelKey)
	datadir       = config.GetDatadir()
	network       = config.GetNetwork()
	hwiBinary     = config.GetString(config.HwiBinaryKey)
	deviceTimeout = config.GetDeviceTimeout()
	walletLabel   = config.GetString(config.WalletLabelKey)
	noStats       = config.GetBool(config.NoStatsKey)
	statsDir      = filepath.Join(datadir, config.ProfilerLocation)

	networkFlag  string
	mnemonicFlag string

	statsSvc *profiler.StatsService

	rootCmd = &cobra.Command{
		Use:   "vault",
		Short: "CLI for vault descriptors",
		Long: "This CLI lets you build, import and register on hardware " +
			"wallets multisig descriptors with a timelocked recovery path",
		PersistentPreRunE: setup,
		SilenceUsage:      true,
		Version:           formatVersion(),
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(
		&networkFlag, "network", "",
		"bitcoin network to use, overrides VAULT_NETWORK",
	)
	rootCmd.PersistentFlags().StringVar(
		&mnemonicFlag, "mnemonic", "",
		"space separated word list of the software signer, a new one is "+
			"generated if missing",
	)
	rootCmd.AddCommand(descriptorCmd, devicesCmd, xpubCmd, signerCmd)
}

func main() {
	log.SetLevel(log.Level(logLevel))

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if statsSvc != nil {
		statsSvc.Stop()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(_ *cobra.Command, _ []string) error {
	if networkFlag != "" {
		config.Set(config.NetworkKey, networkFlag)
		net := config.GetNetwork()
		if !net.IsValid() {
			return fmt.Errorf("invalid network %q", networkFlag)
		}
		network = net
	}

	if noStats || statsSvc != nil {
		return nil
	}
	svc, err := profiler.NewService(profiler.ServiceOpts{Datadir: statsDir})
	if err != nil {
		return err
	}
	svc.Start()
	statsSvc = svc
	return nil
}

func formatVersion() string {
	return fmt.Sprintf(
		"\nVersion: %s\nCommit: %s\nDate: %s", version, commit, date,
	)
}
