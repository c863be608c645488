package application

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vulpemventures/vault/internal/core/domain"
	"github.com/vulpemventures/vault/internal/core/ports"
	"github.com/vulpemventures/vault/pkg/descriptor"
)

// KeySetting is the name given to the keys of a master fingerprint.
type KeySetting struct {
	Fingerprint descriptor.Fingerprint
	Alias       string
}

// Context is what the steps of a session hand to each other: every step
// loads its state from it and applies its result to it.
type Context struct {
	Network         descriptor.Network
	DataDir         string
	Descriptor      *descriptor.Descriptor
	Keys            []KeySetting
	Signer          ports.SoftwareSigner
	HardwareWallets []domain.RegisteredDevice
}

// IsNetworkAvailable returns whether no wallet exists yet in the datadir for
// the given network.
func IsNetworkAvailable(dataDir string, network descriptor.Network) bool {
	if dataDir == "" {
		return true
	}
	_, err := os.Stat(filepath.Join(dataDir, network.String()))
	return errors.Is(err, fs.ErrNotExist)
}
