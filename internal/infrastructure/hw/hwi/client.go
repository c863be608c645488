package hwi

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/vault/internal/core/ports"
	path "github.com/vulpemventures/vault/pkg/derivation-path"
	"github.com/vulpemventures/vault/pkg/descriptor"
)

var (
	ErrMissingRunner   = fmt.Errorf("missing hwi runner")
	ErrMissingXpub     = fmt.Errorf("hwi returned no xpub")
	ErrInvalidResponse = fmt.Errorf("invalid hwi response")
)

var chains = map[descriptor.Network]string{
	descriptor.Bitcoin: "main",
	descriptor.Testnet: "test",
	descriptor.Signet:  "signet",
	descriptor.Regtest: "regtest",
}

// Error is an error reported by hwi or by the device.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("hwi error %d: %s", e.Code, e.Message)
}

type ClientArgs struct {
	Runner  Runner
	Network descriptor.Network
}

func (a ClientArgs) validate() error {
	if a.Runner == nil {
		return ErrMissingRunner
	}
	if _, ok := chains[a.Network]; !ok {
		return descriptor.ErrUnknownNetwork
	}
	return nil
}

// Client lists the devices supported by hwi.
type Client struct {
	runner  Runner
	network descriptor.Network
}

func NewClient(args ClientArgs) (*Client, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}
	return &Client{args.Runner, args.Network}, nil
}

type enumeratedDevice struct {
	Type                string `json:"type"`
	Model               string `json:"model"`
	Path                string `json:"path"`
	Fingerprint         string `json:"fingerprint"`
	NeedsPinSent        bool   `json:"needs_pin_sent"`
	NeedsPassphraseSent bool   `json:"needs_passphrase_sent"`
	Error               string `json:"error"`
	Code                int    `json:"code"`
}

type response struct {
	Error               string `json:"error"`
	Code                int    `json:"code"`
	Xpub                string `json:"xpub"`
	Hmac                string `json:"hmac"`
	ProofOfRegistration string `json:"proof_of_registration"`
}

// ListDevices runs hwi enumerate. Devices that need a pin or a passphrase
// are reported as locked, devices reporting an error as unsupported.
func (c *Client) ListDevices(ctx context.Context) ([]ports.HardwareWallet, error) {
	out, err := c.runner.Run(ctx, "enumerate")
	if err != nil {
		return nil, err
	}

	enumerated := make([]enumeratedDevice, 0)
	if err := json.Unmarshal(out, &enumerated); err != nil {
		// A failure of hwi itself is reported as a single json object.
		resp := response{}
		if json.Unmarshal(out, &resp) == nil && resp.Error != "" {
			return nil, &Error{resp.Code, resp.Error}
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidResponse, err)
	}

	devices := make([]ports.HardwareWallet, 0, len(enumerated))
	for _, d := range enumerated {
		device := ports.HardwareWallet{
			Kind:   d.Type,
			Model:  d.Model,
			Status: ports.DeviceSupported,
		}

		switch {
		case d.NeedsPinSent || d.NeedsPassphraseSent:
			device.Status = ports.DeviceLocked
		case d.Error != "":
			device.Status = ports.DeviceUnsupported
			log.Debugf("hwi: %s device %s unsupported: %s", d.Type, d.Path, d.Error)
		}

		if device.Status == ports.DeviceSupported {
			fingerprint, err := descriptor.ParseFingerprint(d.Fingerprint)
			if err != nil {
				device.Status = ports.DeviceLocked
			} else {
				device.Fingerprint = fingerprint
				device.Signer = &signer{c, d.Type, d.Path}
			}
		}
		devices = append(devices, device)
	}
	return devices, nil
}

// chain returns the hwi chain name: main for mainnet keys, otherwise the
// client network unless it is mainnet.
func (c *Client) chain(mainnet bool) string {
	if mainnet {
		return chains[descriptor.Bitcoin]
	}
	if c.network == descriptor.Bitcoin {
		return chains[descriptor.Testnet]
	}
	return chains[c.network]
}

func (c *Client) run(ctx context.Context, args ...string) (*response, error) {
	out, err := c.runner.Run(ctx, args...)
	if err != nil {
		return nil, err
	}
	resp := &response{}
	if err := json.Unmarshal(out, resp); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidResponse, err)
	}
	if resp.Error != "" {
		return nil, &Error{resp.Code, resp.Error}
	}
	return resp, nil
}

// signer is a device reached through hwi.
type signer struct {
	client *Client
	kind   string
	path   string
}

func (s *signer) GetExtendedPubkey(
	ctx context.Context, derivationPath path.DerivationPath,
) (*hdkeychain.ExtendedKey, error) {
	mainnet := len(derivationPath) > 1 &&
		derivationPath[1] == path.Hardened(descriptor.Bitcoin.CoinType())

	resp, err := s.client.run(ctx, s.args(mainnet, "getxpub", derivationPath.String())...)
	if err != nil {
		return nil, err
	}
	if resp.Xpub == "" {
		return nil, ErrMissingXpub
	}
	xpub, err := hdkeychain.NewKeyFromString(resp.Xpub)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidResponse, err)
	}
	return xpub, nil
}

// RegisterWallet returns the registration hmac, or proof of registration,
// returned by the device, if any.
func (s *signer) RegisterWallet(ctx context.Context, label, desc string) ([]byte, error) {
	parsed, err := descriptor.Parse(desc)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.run(
		ctx, s.args(parsed.IsMainnet(), "register", "--desc", desc, "--name", label)...,
	)
	if err != nil {
		return nil, err
	}

	token := resp.Hmac
	if token == "" {
		token = resp.ProofOfRegistration
	}
	if token == "" {
		return nil, nil
	}
	buf, err := hex.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return []byte(token), nil
	}
	return buf, nil
}

func (s *signer) args(mainnet bool, command ...string) []string {
	args := []string{
		"--device-type", s.kind,
		"--device-path", s.path,
		"--chain", s.client.chain(mainnet),
	}
	return append(args, command...)
}
