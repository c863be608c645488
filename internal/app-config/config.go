package appconfig

import (
	"fmt"
	"time"

	"github.com/vulpemventures/vault/internal/core/application"
	"github.com/vulpemventures/vault/internal/core/ports"
	"github.com/vulpemventures/vault/internal/infrastructure/hw/hwi"
	hotsigner "github.com/vulpemventures/vault/internal/infrastructure/software-signer/hot"
	"github.com/vulpemventures/vault/pkg/descriptor"
)

// AppConfig is the struct holding all configuration options for the
// descriptor sessions. This data structure acts also as a factory of the
// device enumerator, the software signer and the event loop used by them.
// Public config args:
//   - Network - (required) The bitcoin network (bitcoin, testnet, signet, regtest).
//   - Datadir - (optional) The folder where wallets are stored, one per network.
//   - WalletLabel - (optional) The name under which descriptors are registered on devices.
//   - HwiBinary - (optional) The hwi executable used to reach devices (defaults to hwi from PATH).
//   - HwiRunner - (optional) A custom runner for hwi commands, HwiBinary is ignored if set.
//   - DeviceTimeout - (optional) How long to wait for a device to reply, no timeout if zero.
//   - Mnemonic - (optional) The words of the software signer, generated if empty.
type AppConfig struct {
	Version string
	Commit  string
	Date    string

	Network       descriptor.Network
	Datadir       string
	WalletLabel   string
	HwiBinary     string
	HwiRunner     hwi.Runner
	DeviceTimeout time.Duration
	Mnemonic      []string

	enumerator ports.DeviceEnumerator
	signer     *hotsigner.Signer
	loop       *application.Loop
}

func (c *AppConfig) Validate() error {
	if !c.Network.IsValid() {
		return fmt.Errorf("network %w", descriptor.ErrUnknownNetwork)
	}
	if c.DeviceTimeout < 0 {
		return fmt.Errorf("device timeout must not be negative")
	}
	if _, err := c.deviceEnumerator(); err != nil {
		return err
	}
	if _, err := c.softwareSigner(); err != nil {
		return err
	}
	return nil
}

func (c *AppConfig) DeviceEnumerator() ports.DeviceEnumerator {
	enumerator, _ := c.deviceEnumerator()
	return enumerator
}

func (c *AppConfig) SoftwareSigner() *hotsigner.Signer {
	signer, _ := c.softwareSigner()
	return signer
}

func (c *AppConfig) Loop() *application.Loop {
	if c.loop == nil {
		c.loop = application.NewLoop(c.DeviceTimeout)
	}
	return c.loop
}

// Session returns a new session running the given flow. All sessions share
// the same signer, enumerator and loop.
func (c *AppConfig) Session(flow application.Flow) (*application.Session, error) {
	enumerator, err := c.deviceEnumerator()
	if err != nil {
		return nil, err
	}
	signer, err := c.softwareSigner()
	if err != nil {
		return nil, err
	}
	label := c.WalletLabel
	if label == "" {
		label = application.DefaultWalletLabel
	}

	return application.NewSession(application.SessionArgs{
		Flow:       flow,
		Network:    c.Network,
		DataDir:    c.Datadir,
		Label:      label,
		Signer:     signer,
		Enumerator: enumerator,
		Loop:       c.Loop(),
	})
}

func (c *AppConfig) BuildInfo() BuildInfo {
	version := "dev"
	if c.Version != "" {
		version = c.Version
	}
	commit := "none"
	if c.Commit != "" {
		commit = c.Commit
	}
	date := "unknown"
	if c.Date != "" {
		date = c.Date
	}
	return BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}
}

func (c *AppConfig) deviceEnumerator() (ports.DeviceEnumerator, error) {
	if c.enumerator != nil {
		return c.enumerator, nil
	}

	runner := c.HwiRunner
	if runner == nil {
		runner = hwi.NewRunner(c.HwiBinary)
	}
	client, err := hwi.NewClient(hwi.ClientArgs{
		Runner:  runner,
		Network: c.Network,
	})
	if err != nil {
		return nil, err
	}
	c.enumerator = client
	return c.enumerator, nil
}

func (c *AppConfig) softwareSigner() (*hotsigner.Signer, error) {
	if c.signer != nil {
		return c.signer, nil
	}

	signer, err := hotsigner.NewSigner(hotsigner.NewSignerArgs{
		Mnemonic: c.Mnemonic,
		Network:  c.Network,
	})
	if err != nil {
		return nil, err
	}
	c.signer = signer
	return c.signer, nil
}

type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}
