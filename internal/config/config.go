package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/spf13/viper"
	"github.com/vulpemventures/vault/pkg/descriptor"
)

const (
	// DatadirKey is the key to customize the vault datadir.
	DatadirKey = "DATADIR"
	// NetworkKey is the key to customize the bitcoin network.
	NetworkKey = "NETWORK"
	// LogLevelKey is the key to customize the log level to catch more specific
	// or more high level logs.
	LogLevelKey = "LOG_LEVEL"
	// HwiBinaryKey is the key to use a custom hwi executable instead of the
	// one found in PATH.
	HwiBinaryKey = "HWI_BINARY"
	// DeviceTimeoutKey is the key to customize the time in seconds to wait
	// for a device to reply before giving up.
	DeviceTimeoutKey = "DEVICE_TIMEOUT"
	// WalletLabelKey is the key to customize the name under which the
	// descriptor is registered on devices.
	WalletLabelKey = "WALLET_LABEL"
	// NoStatsKey is the key to disable dumping Prometheus stats at exit.
	NoStatsKey = "NO_STATS"

	// ProfilerLocation is the folder inside the datadir containing stats
	// files.
	ProfilerLocation = "stats"
)

var (
	vip *viper.Viper

	defaultDatadir       = btcutil.AppDataDir("vault", false)
	defaultNetwork       = descriptor.Bitcoin.String()
	defaultLogLevel      = 4
	defaultHwiBinary     = "hwi"
	defaultDeviceTimeout = 120
	defaultWalletLabel   = "Vault"
)

func init() {
	vip = viper.New()
	vip.SetEnvPrefix("VAULT")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(NetworkKey, defaultNetwork)
	vip.SetDefault(LogLevelKey, defaultLogLevel)
	vip.SetDefault(HwiBinaryKey, defaultHwiBinary)
	vip.SetDefault(DeviceTimeoutKey, defaultDeviceTimeout)
	vip.SetDefault(WalletLabelKey, defaultWalletLabel)
	vip.SetDefault(NoStatsKey, false)

	if err := validate(); err != nil {
		log.Fatalf("invalid config: %s", err)
	}

	if err := initDatadir(); err != nil {
		log.Fatalf("config: error while creating datadir: %s", err)
	}
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("datadir must not be null")
	}

	if _, err := descriptor.ParseNetwork(GetString(NetworkKey)); err != nil {
		return err
	}

	if GetInt(DeviceTimeoutKey) < 0 {
		return fmt.Errorf("device timeout must not be negative")
	}
	if len(GetString(WalletLabelKey)) <= 0 {
		return fmt.Errorf("wallet label must not be null")
	}
	return nil
}

// GetDatadir returns the root datadir. Wallets live in one subfolder per
// network.
func GetDatadir() string {
	return GetString(DatadirKey)
}

func GetNetwork() descriptor.Network {
	net, _ := descriptor.ParseNetwork(GetString(NetworkKey))
	return net
}

func GetDeviceTimeout() time.Duration {
	return time.Duration(GetInt(DeviceTimeoutKey)) * time.Second
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func Set(key string, val interface{}) {
	vip.Set(key, val)
}

func initDatadir() error {
	if GetBool(NoStatsKey) {
		return nil
	}
	return makeDirectoryIfNotExists(filepath.Join(GetDatadir(), ProfilerLocation))
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
